package database

import (
	"context"
	"database/sql"
	"time"

	"feedback-triage/logging"
	"feedback-triage/monitoring"

	"github.com/sirupsen/logrus"
)

// 监控连接池状态
func logDBStats(db *sql.DB) {
	if db != nil {
		stats := db.Stats()
		monitoring.DBOpenConnections.Set(float64(stats.OpenConnections))
		logging.Debug("数据库连接池状态", logrus.Fields{
			"open_connections":    stats.OpenConnections,
			"in_use":              stats.InUse,
			"idle":                stats.Idle,
			"wait_count":          stats.WaitCount,
			"wait_duration":       stats.WaitDuration,
			"max_idle_closed":     stats.MaxIdleClosed,
			"max_lifetime_closed": stats.MaxLifetimeClosed,
		})
	}
}

// StartDBMonitor 定期记录连接池状态并检查连接健康，ctx 取消时退出
func (s *Store) StartDBMonitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logDBStats(s.db)

				pingCtx, cancel := context.WithTimeout(ctx, timeout)
				if err := s.db.PingContext(pingCtx); err != nil {
					logging.Error("数据库连接异常", logrus.Fields{"error": err})
				}
				cancel()
				checkPoolUtilization(s.db)
			}
		}
	}()
}

// 检查连接池使用率
func checkPoolUtilization(db *sql.DB) {
	stats := db.Stats()
	if stats.OpenConnections > 0 {
		utilization := float64(stats.InUse) / float64(stats.OpenConnections)
		if utilization > 0.8 { // 使用率超过 80%
			logging.Warn("连接池使用率较高", logrus.Fields{"utilization": utilization})
		}
	}
}
