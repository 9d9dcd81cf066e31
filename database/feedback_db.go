package database

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"feedback-triage/analytics"
	"feedback-triage/logging"
	"feedback-triage/models"
	"feedback-triage/monitoring"

	"github.com/sirupsen/logrus"
)

const selectColumns = `SELECT id, created_at, rating, review_text, user_response, admin_summary, recommended_actions FROM feedback`

const newestFirst = ` ORDER BY created_at DESC, id DESC`

// Insert 插入一条反馈，返回自增ID
func (s *Store) Insert(ctx context.Context, rating int, reviewText, userResponse, adminSummary, recommendedActions string) (int64, error) {
	if !models.ValidRating(rating) || strings.TrimSpace(reviewText) == "" {
		return 0, ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// 时间戳随ID单调不减
	ts := s.now().UTC().Truncate(time.Microsecond)
	if ts.Before(s.lastTS) {
		ts = s.lastTS
	}

	var id int64
	err := monitoring.RecordDBTime("InsertFeedback", func() error {
		query := `INSERT INTO feedback (created_at, rating, review_text, user_response, admin_summary, recommended_actions)
			VALUES (?, ?, ?, ?, ?, ?) RETURNING id`
		return s.db.QueryRowContext(ctx, s.rebind(query),
			ts.UnixMicro(), rating, reviewText, userResponse, adminSummary, recommendedActions,
		).Scan(&id)
	})
	if err != nil {
		logging.Error("Failed to insert feedback", logrus.Fields{"error": err, "rating": rating})
		return 0, storageErr("insert", err)
	}
	s.lastTS = ts

	logging.Info("Feedback inserted", logrus.Fields{"id": id, "rating": rating})
	return id, nil
}

// GetAll returns every record, newest first.
func (s *Store) GetAll(ctx context.Context) ([]models.FeedbackRecord, error) {
	return s.list(ctx, "GetAllFeedback", selectColumns+newestFirst)
}

// GetByRating returns the records with the given rating, newest first.
func (s *Store) GetByRating(ctx context.Context, rating int) ([]models.FeedbackRecord, error) {
	return s.list(ctx, "GetFeedbackByRating", selectColumns+` WHERE rating = ?`+newestFirst, rating)
}

// GetRecent returns at most limit records, newest first.
func (s *Store) GetRecent(ctx context.Context, limit int) ([]models.FeedbackRecord, error) {
	if limit <= 0 {
		return []models.FeedbackRecord{}, nil
	}
	return s.list(ctx, "GetRecentFeedback", selectColumns+newestFirst+` LIMIT ?`, limit)
}

// GetByID 按ID查询；不存在时 found 为 false 且 err 为 nil
func (s *Store) GetByID(ctx context.Context, id int64) (rec models.FeedbackRecord, found bool, err error) {
	err = monitoring.RecordDBTime("GetFeedbackByID", func() error {
		row := s.db.QueryRowContext(ctx, s.rebind(selectColumns+` WHERE id = ?`), id)
		return scanRecord(row, &rec)
	})
	if err == sql.ErrNoRows {
		return models.FeedbackRecord{}, false, nil
	}
	if err != nil {
		return models.FeedbackRecord{}, false, storageErr("get", err)
	}
	return rec, true, nil
}

// Statistics is computed from a single SELECT so the snapshot is internally consistent.
func (s *Store) Statistics(ctx context.Context) (models.StatisticsSnapshot, error) {
	var recs []models.FeedbackRecord
	err := monitoring.RecordDBTime("FeedbackStatistics", func() error {
		rows, err := s.db.QueryContext(ctx, `SELECT rating, created_at FROM feedback`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				rec models.FeedbackRecord
				ts  int64
			)
			if err := rows.Scan(&rec.Rating, &ts); err != nil {
				return err
			}
			rec.Timestamp = time.UnixMicro(ts).UTC()
			recs = append(recs, rec)
		}
		return rows.Err()
	})
	if err != nil {
		return models.StatisticsSnapshot{}, storageErr("statistics", err)
	}
	return analytics.ComputeStatistics(recs, s.now()), nil
}

// Delete 删除一条反馈，记录存在并被删除时返回 true
func (s *Store) Delete(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var affected int64
	err := monitoring.RecordDBTime("DeleteFeedback", func() error {
		res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM feedback WHERE id = ?`), id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		logging.Error("Failed to delete feedback", logrus.Fields{"error": err, "id": id})
		return false, storageErr("delete", err)
	}
	if affected > 0 {
		logging.Info("Feedback deleted", logrus.Fields{"id": id})
	}
	return affected > 0, nil
}

// ClearAll 清空所有反馈（不可恢复）。已分配的ID不会被复用。
func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		affected int64
		countErr error
	)
	err := monitoring.RecordDBTime("ClearAllFeedback", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		res, err := tx.ExecContext(ctx, `DELETE FROM feedback`)
		if err != nil {
			return err
		}
		affected, countErr = res.RowsAffected()
		return tx.Commit()
	})
	if err != nil {
		logging.Error("Failed to clear feedback", logrus.Fields{"error": err})
		return storageErr("clear", err)
	}
	fields := logrus.Fields{"deleted": affected}
	if countErr != nil {
		fields["deleted"] = "unknown"
		fields["count_error"] = countErr
	}
	logging.Warn("All feedback cleared", fields)
	return nil
}

func (s *Store) list(ctx context.Context, op, query string, args ...interface{}) ([]models.FeedbackRecord, error) {
	recs := []models.FeedbackRecord{}
	err := monitoring.RecordDBTime(op, func() error {
		rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var rec models.FeedbackRecord
			if err := scanRecord(rows, &rec); err != nil {
				return err
			}
			recs = append(recs, rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, storageErr("query", err)
	}
	return recs, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner, rec *models.FeedbackRecord) error {
	var ts int64
	if err := row.Scan(&rec.ID, &ts, &rec.Rating, &rec.ReviewText,
		&rec.UserResponse, &rec.AdminSummary, &rec.RecommendedActions); err != nil {
		return err
	}
	rec.Timestamp = time.UnixMicro(ts).UTC()
	return nil
}
