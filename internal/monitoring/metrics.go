package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// 通信指标
	CommunicationsMoved   prometheus.Counter
	CommunicationsCloned  prometheus.Counter
	CommunicationsDeleted prometheus.Counter
	OrphansReceived       prometheus.Counter

	// 附件指标
	AttachmentsIngested    prometheus.Counter
	AttachmentsSkipped     prometheus.Counter
	AttachmentsDuplicated  prometheus.Counter
	AttachmentDataMissing  prometheus.Counter
	AttachmentSize         *prometheus.HistogramVec

	// 索引队列指标
	IndexJobsEnqueued     prometheus.Counter
	IndexEnqueueFailures  prometheus.Counter
	IndexQueueBacklog     prometheus.Gauge

	// 重发指标
	ResendsTotal  *prometheus.CounterVec
	ResendsFailed prometheus.Counter

	// 入站邮件指标
	InboundMailReceived prometheus.Counter
	InboundMailRejected prometheus.Counter

	// 系统指标
	SystemUptime        prometheus.Gauge
	DatabaseConnections prometheus.Gauge
	RedisConnections    prometheus.Gauge

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	return &Metrics{
		// HTTP 请求指标
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "commtrack_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "commtrack_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPRequestSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "commtrack_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "endpoint"},
		),

		HTTPResponseSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "commtrack_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "endpoint"},
		),

		// 通信指标
		CommunicationsMoved: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "commtrack_communications_moved_total",
				Help: "Total number of communications moved across cases",
			},
		),

		CommunicationsCloned: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "commtrack_communications_cloned_total",
				Help: "Total number of communication clones created",
			},
		),

		CommunicationsDeleted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "commtrack_communications_deleted_total",
				Help: "Total number of communications deleted",
			},
		),

		OrphansReceived: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "commtrack_orphans_received_total",
				Help: "Total number of orphan communications received",
			},
		),

		// 附件指标
		AttachmentsIngested: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "commtrack_attachments_ingested_total",
				Help: "Total number of attachments ingested",
			},
		),

		AttachmentsSkipped: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "commtrack_attachments_skipped_total",
				Help: "Total number of attachments skipped by ignore rules",
			},
		),

		AttachmentsDuplicated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "commtrack_attachments_duplicated_total",
				Help: "Total number of attachments duplicated during clone",
			},
		),

		AttachmentDataMissing: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "commtrack_attachment_data_missing_total",
				Help: "Total number of attachment duplications skipped for missing data",
			},
		),

		AttachmentSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "commtrack_attachment_size_bytes",
				Help:    "Attachment size in bytes",
				Buckets: prometheus.ExponentialBuckets(1024, 2, 20),
			},
			[]string{"content_type"},
		),

		// 索引队列指标
		IndexJobsEnqueued: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "commtrack_index_jobs_enqueued_total",
				Help: "Total number of index jobs enqueued",
			},
		),

		IndexEnqueueFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "commtrack_index_enqueue_failures_total",
				Help: "Total number of index enqueue failures",
			},
		),

		IndexQueueBacklog: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "commtrack_index_queue_backlog",
				Help: "Number of delayed index jobs waiting for dispatch",
			},
		),

		// 重发指标
		ResendsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "commtrack_resends_total",
				Help: "Total number of resend requests by channel",
			},
			[]string{"channel"},
		),

		ResendsFailed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "commtrack_resends_failed_total",
				Help: "Total number of failed resend requests",
			},
		),

		// 入站邮件指标
		InboundMailReceived: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "commtrack_inbound_mail_received_total",
				Help: "Total number of inbound mail messages received",
			},
		),

		InboundMailRejected: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "commtrack_inbound_mail_rejected_total",
				Help: "Total number of inbound mail messages rejected",
			},
		),

		// 系统指标
		SystemUptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "commtrack_system_uptime_seconds",
				Help: "System uptime in seconds",
			},
		),

		DatabaseConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "commtrack_database_connections",
				Help: "Number of database connections",
			},
		),

		RedisConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "commtrack_redis_connections",
				Help: "Number of Redis connections",
			},
		),

		// 错误指标
		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "commtrack_errors_total",
				Help: "Total number of errors",
			},
			[]string{"type", "component"},
		),

		PanicsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "commtrack_panics_total",
				Help: "Total number of panics",
			},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration, requestSize, responseSize int64) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	m.HTTPRequestSize.WithLabelValues(method, endpoint).Observe(float64(requestSize))
	m.HTTPResponseSize.WithLabelValues(method, endpoint).Observe(float64(responseSize))
}

// RecordCommunicationMoved 记录通信转移
func (m *Metrics) RecordCommunicationMoved() {
	m.CommunicationsMoved.Inc()
}

// RecordCommunicationCloned 记录通信克隆
func (m *Metrics) RecordCommunicationCloned(count int) {
	m.CommunicationsCloned.Add(float64(count))
}

// RecordCommunicationDeleted 记录通信删除
func (m *Metrics) RecordCommunicationDeleted() {
	m.CommunicationsDeleted.Inc()
}

// RecordOrphanReceived 记录孤儿通信接收
func (m *Metrics) RecordOrphanReceived() {
	m.OrphansReceived.Inc()
}

// RecordAttachmentIngested 记录附件入库
func (m *Metrics) RecordAttachmentIngested(contentType string, size int64) {
	m.AttachmentsIngested.Inc()
	m.AttachmentSize.WithLabelValues(contentType).Observe(float64(size))
}

// RecordAttachmentSkipped 记录附件跳过
func (m *Metrics) RecordAttachmentSkipped() {
	m.AttachmentsSkipped.Inc()
}

// RecordAttachmentDuplicated 记录附件复制
func (m *Metrics) RecordAttachmentDuplicated() {
	m.AttachmentsDuplicated.Inc()
}

// RecordAttachmentDataMissing 记录附件裸数据缺失
func (m *Metrics) RecordAttachmentDataMissing() {
	m.AttachmentDataMissing.Inc()
}

// RecordIndexJobEnqueued 记录索引任务入队
func (m *Metrics) RecordIndexJobEnqueued() {
	m.IndexJobsEnqueued.Inc()
}

// RecordIndexEnqueueFailure 记录索引入队失败
func (m *Metrics) RecordIndexEnqueueFailure() {
	m.IndexEnqueueFailures.Inc()
}

// UpdateIndexQueueBacklog 更新索引延迟队列积压量
func (m *Metrics) UpdateIndexQueueBacklog(count int64) {
	m.IndexQueueBacklog.Set(float64(count))
}

// RecordResend 记录重发请求
func (m *Metrics) RecordResend(channel string) {
	m.ResendsTotal.WithLabelValues(channel).Inc()
}

// RecordResendFailed 记录重发失败
func (m *Metrics) RecordResendFailed() {
	m.ResendsFailed.Inc()
}

// RecordInboundMailReceived 记录入站邮件接收
func (m *Metrics) RecordInboundMailReceived() {
	m.InboundMailReceived.Inc()
}

// RecordInboundMailRejected 记录入站邮件拒收
func (m *Metrics) RecordInboundMailRejected() {
	m.InboundMailRejected.Inc()
}

// RecordError 记录错误
func (m *Metrics) RecordError(errorType, component string) {
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// UpdateSystemUptime 更新系统运行时间
func (m *Metrics) UpdateSystemUptime(uptime time.Duration) {
	m.SystemUptime.Set(uptime.Seconds())
}

// UpdateDatabaseConnections 更新数据库连接数
func (m *Metrics) UpdateDatabaseConnections(count int) {
	m.DatabaseConnections.Set(float64(count))
}

// UpdateRedisConnections 更新 Redis 连接数
func (m *Metrics) UpdateRedisConnections(count int) {
	m.RedisConnections.Set(float64(count))
}

// HTTPHandler 返回 Prometheus HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.Handler()
}
