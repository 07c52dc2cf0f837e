package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"commtrack/backend/internal/monitoring"
)

// MonitoringMiddleware 监控中间件
type MonitoringMiddleware struct {
	metrics *monitoring.Metrics
	logger  *zap.Logger
	started time.Time
}

// NewMonitoringMiddleware 创建监控中间件
func NewMonitoringMiddleware(metrics *monitoring.Metrics, logger *zap.Logger) *MonitoringMiddleware {
	return &MonitoringMiddleware{
		metrics: metrics,
		logger:  logger,
		started: time.Now(),
	}
}

// HTTPMetrics HTTP 指标中间件
func (mm *MonitoringMiddleware) HTTPMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestSize := c.Request.ContentLength
		if requestSize < 0 {
			requestSize = 0
		}

		// 处理请求
		c.Next()

		// 计算指标
		duration := time.Since(start)
		statusCode := strconv.Itoa(c.Writer.Status())
		responseSize := int64(c.Writer.Size())

		// 记录指标
		mm.metrics.RecordHTTPRequest(
			c.Request.Method,
			c.FullPath(),
			statusCode,
			duration,
			requestSize,
			responseSize,
		)

		// 记录错误
		if c.Writer.Status() >= 400 {
			mm.metrics.RecordError("http_error", "http")
		}

		mm.metrics.UpdateSystemUptime(time.Since(mm.started))
	}
}

// PanicRecovery Panic 恢复中间件
func (mm *MonitoringMiddleware) PanicRecovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				// 记录 panic 指标
				mm.metrics.RecordPanic()

				// 记录错误日志
				mm.logger.Error("Panic recovered",
					zap.Any("error", err),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.String("ip", c.ClientIP()),
				)

				// 返回错误响应
				c.JSON(500, gin.H{
					"error": "Internal server error",
				})
				c.Abort()
			}
		}()

		c.Next()
	}
}

// BusinessMetrics 业务指标中间件
func (mm *MonitoringMiddleware) BusinessMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 处理请求
		c.Next()

		// 只统计成功的写操作
		if c.Writer.Status() >= 400 {
			return
		}

		// 根据路径记录业务指标
		switch c.FullPath() {
		case "/v1/communications/:id/move":
			if c.Request.Method == "POST" {
				mm.metrics.RecordCommunicationMoved()
			}
		case "/v1/communications/:id/clone":
			if c.Request.Method == "POST" {
				mm.metrics.RecordCommunicationCloned(1)
			}
		case "/v1/communications/:id":
			if c.Request.Method == "DELETE" {
				mm.metrics.RecordCommunicationDeleted()
			}
		}
	}
}
