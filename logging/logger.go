package logging

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"feedback-triage/monitoring"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger    *logrus.Logger
	logChan   chan *logrus.Entry
	once      sync.Once
	logBuffer sync.Pool
)

const (
	logQueueSize = 10000
)

// Options controls where and how verbosely Init writes.
type Options struct {
	// File is the rotated log file; empty logs to stdout only.
	File  string
	Level string
}

func Init(opts Options) error {
	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}

	once.Do(func() {
		logger = logrus.New()
		logger.SetLevel(level)

		var out io.Writer = os.Stdout
		if opts.File != "" {
			// Configure lumberjack for log rotation
			logRotator := &lumberjack.Logger{
				Filename:   opts.File,
				MaxSize:    50, // megabytes
				MaxBackups: 3,
				MaxAge:     7, //days
				Compress:   true,
			}
			// Set multi-writer to log to both file and standard output
			out = io.MultiWriter(os.Stdout, logRotator)
		}
		logger.SetOutput(out)

		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			CallerPrettyfier: func(f *runtime.Frame) (string, string) {
				filename := strings.Split(f.File, "/")
				return fmt.Sprintf("%s()", f.Function), fmt.Sprintf("%s:%d", filename[len(filename)-1], f.Line)
			},
		})

		logger.SetReportCaller(true)

		logChan = make(chan *logrus.Entry, logQueueSize)
		logBuffer = sync.Pool{
			New: func() interface{} {
				return new(logrus.Entry)
			},
		}

		go consumeLogs()
	})
	return nil
}

func consumeLogs() {
	for entry := range logChan {
		monitoring.LogQueueSize.Set(float64(len(logChan)))
		entry.Logger.WithFields(entry.Data).WithTime(entry.Time).Log(entry.Level, entry.Message)
		logBuffer.Put(entry)
	}
}

// Flush waits briefly for queued entries to be written. Used before the process exits.
func Flush(timeout time.Duration) {
	if logChan == nil {
		return
	}
	deadline := time.Now().Add(timeout)
	for len(logChan) > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
}

func Log(level logrus.Level, message string, fields logrus.Fields) {
	if logger == nil {
		// 未初始化时（测试、CLI 早期）直接写标准 logger
		logrus.WithFields(fields).Log(level, message)
		return
	}
	if !logger.IsLevelEnabled(level) {
		return
	}

	entry := logBuffer.Get().(*logrus.Entry)
	entry.Logger = logger
	entry.Level = level
	entry.Message = message
	entry.Time = time.Now()
	entry.Data = fields

	select {
	case logChan <- entry:
	default:
		monitoring.LogsDroppedTotal.Inc()
	}
}

func Debug(message string, fields logrus.Fields) {
	Log(logrus.DebugLevel, message, fields)
}

func Info(message string, fields logrus.Fields) {
	Log(logrus.InfoLevel, message, fields)
}

func Warn(message string, fields logrus.Fields) {
	Log(logrus.WarnLevel, message, fields)
}

func Error(message string, fields logrus.Fields) {
	Log(logrus.ErrorLevel, message, fields)
}
