// 数据库连接：默认嵌入式 SQLite，postgres:// DSN 时使用 PostgreSQL
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"feedback-triage/logging"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

const (
	maxRetries = 3
	timeout    = 5 * time.Second
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

func (d dialect) driverName() string {
	if d == dialectPostgres {
		return "postgres"
	}
	return "sqlite"
}

// Store is the durable feedback store. Writes are serialized; reads run concurrently.
type Store struct {
	db      *sql.DB
	dialect dialect

	mu     sync.Mutex // 串行化写操作
	lastTS time.Time
	now    func() time.Time
}

type Option func(*openOptions)

type openOptions struct {
	retries int
	backoff time.Duration
	now     func() time.Time
}

// WithRetries sets how many connection attempts Open makes.
func WithRetries(n int) Option {
	return func(o *openOptions) { o.retries = n }
}

// WithBackoff sets the base delay between connection attempts; attempt i waits i*d.
func WithBackoff(d time.Duration) Option {
	return func(o *openOptions) { o.backoff = d }
}

// WithClock overrides the clock used to stamp records and evaluate the 24h window.
func WithClock(now func() time.Time) Option {
	return func(o *openOptions) { o.now = now }
}

// Open connects to dsn, creating the schema on first use. dsn is either a
// postgres:// URL or a filesystem path for the embedded SQLite database.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	o := openOptions{retries: maxRetries, backoff: time.Second, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.retries < 1 {
		o.retries = 1
	}

	var (
		db  *sql.DB
		d   dialect
		err error
	)
	for i := 0; i < o.retries; i++ {
		db, d, err = connect(ctx, dsn)
		if err == nil {
			break
		}
		logging.Warn("重试连接失败", logrus.Fields{"retry": i + 1, "error": err})
		if i == o.retries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, storageErr("open", ctx.Err())
		case <-time.After(o.backoff * time.Duration(i+1)):
		}
	}
	if err != nil {
		return nil, storageErr("open", fmt.Errorf("达到最大重试次数(%d): %w", o.retries, err))
	}

	s := &Store{db: db, dialect: d, now: o.now}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, storageErr("migrate", err)
	}
	logDBStats(db)
	logging.Info("数据库连接成功并已配置连接池", logrus.Fields{"driver": d.driverName()})
	return s, nil
}

func connect(ctx context.Context, dsn string) (*sql.DB, dialect, error) {
	d, source, err := resolveDSN(dsn)
	if err != nil {
		return nil, d, err
	}

	db, err := sql.Open(d.driverName(), source)
	if err != nil {
		return nil, d, errors.Wrap(err, "数据库驱动初始化失败")
	}
	// 设置数据库连接池的参数
	if d == dialectPostgres {
		db.SetMaxOpenConns(100)
		db.SetMaxIdleConns(10)
	} else {
		// SQLite 只有一个写者，少量连接足够
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(4)
	}
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, d, errors.Wrap(err, "数据库连接测试失败")
	}
	return db, d, nil
}

// resolveDSN picks the driver and builds the driver-specific source string.
func resolveDSN(dsn string) (dialect, string, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return dialectSQLite, "", errors.New("empty database location")
	}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return dialectPostgres, dsn, nil
	}

	path := strings.TrimPrefix(dsn, "file:")
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return dialectSQLite, "", errors.Wrapf(err, "创建数据目录 %s 失败", dir)
		}
	}
	return dialectSQLite, "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", nil
}

func (s *Store) migrate(ctx context.Context) error {
	idColumn := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.dialect == dialectPostgres {
		idColumn = "id BIGSERIAL PRIMARY KEY"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS feedback (
			` + idColumn + `,
			created_at BIGINT NOT NULL,
			rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
			review_text TEXT NOT NULL,
			user_response TEXT NOT NULL DEFAULT '',
			admin_summary TEXT NOT NULL DEFAULT '',
			recommended_actions TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_created_at ON feedback (created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_rating ON feedback (rating)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "建表失败")
		}
	}

	var last int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(created_at), 0) FROM feedback`).Scan(&last); err != nil {
		return errors.Wrap(err, "读取最新时间戳失败")
	}
	if last > 0 {
		s.lastTS = time.UnixMicro(last).UTC()
	}
	return nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) Close() error {
	return s.db.Close()
}
