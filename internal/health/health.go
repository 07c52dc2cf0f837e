package health

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"commtrack/backend/internal/storage"
)

// QueuePinger 延迟索引队列连通性检查接口
type QueuePinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker 健康检查器
type HealthChecker struct {
	health healthcheck.Handler
	store  storage.Store
	queue  QueuePinger
	logger *zap.Logger
}

// NewHealthChecker 创建健康检查器（queue 可为 nil）
func NewHealthChecker(store storage.Store, queue QueuePinger, logger *zap.Logger) *HealthChecker {
	hc := &HealthChecker{
		health: healthcheck.NewHandler(),
		store:  store,
		queue:  queue,
		logger: logger,
	}

	// 添加健康检查
	hc.addChecks()

	return hc
}

// addChecks 添加健康检查
func (hc *HealthChecker) addChecks() {
	// 存储连接检查
	hc.health.AddLivenessCheck("storage", func() error {
		return hc.store.Health()
	})

	// 索引队列检查（未启用 Redis 队列时跳过）
	if hc.queue != nil {
		hc.health.AddReadinessCheck("index-queue", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			return hc.queue.Ping(ctx)
		})
	}
}

// Handler 返回健康检查处理器
func (hc *HealthChecker) Handler() http.Handler {
	return hc.health
}

// CheckHealth 执行健康检查
func (hc *HealthChecker) CheckHealth() map[string]string {
	results := make(map[string]string)

	// 检查存储
	if err := hc.store.Health(); err != nil {
		results["storage"] = fmt.Sprintf("ERROR: %v", err)
	} else {
		results["storage"] = "OK"
	}

	// 检查索引队列
	if hc.queue != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := hc.queue.Ping(ctx); err != nil {
			results["index-queue"] = fmt.Sprintf("ERROR: %v", err)
		} else {
			results["index-queue"] = "OK"
		}
		cancel()
	} else {
		results["index-queue"] = "NOT_AVAILABLE"
	}

	results["timestamp"] = time.Now().Format(time.RFC3339)

	return results
}

// DatabaseHealthCheck 数据库健康检查
func DatabaseHealthCheck(db *sql.DB) healthcheck.Check {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		return db.PingContext(ctx)
	}
}
