package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"commtrack/backend/internal/config"
	"commtrack/backend/internal/health"
	"commtrack/backend/internal/middleware"
	"commtrack/backend/internal/monitoring"
	"commtrack/backend/internal/service"
	"commtrack/backend/internal/storage"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config             *config.Config
	CommService        *service.CommunicationService
	ReplicationService *service.ReplicationService
	AttachmentService  *service.AttachmentService
	ChannelService     *service.ChannelService
	ResendService      *service.ResendService
	Store              storage.Store
	Metrics            *monitoring.Metrics
	HealthChecker      *health.HealthChecker
	Logger             *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	// 使用自定义中间件替代默认中间件
	router.Use(middleware.RecoveryHandler(deps.Logger))
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())

	// 全局请求体大小限制
	router.Use(middleware.AttachmentBodyLimit())

	// 监控中间件
	if deps.Metrics != nil {
		mm := middleware.NewMonitoringMiddleware(deps.Metrics, deps.Logger)
		router.Use(mm.HTTPMetrics())
		router.Use(mm.BusinessMetrics())
	}

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:  deps.Config.CORS.AllowedOrigins,
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	// 创建处理器
	handler := &Handler{
		comms:       deps.CommService,
		replication: deps.ReplicationService,
		attachments: deps.AttachmentService,
		channels:    deps.ChannelService,
		resend:      deps.ResendService,
	}
	caseHandler := NewCaseHandler(deps.Store)

	// Swagger 文档
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 健康检查
	if deps.HealthChecker != nil {
		router.GET("/live", gin.WrapH(deps.HealthChecker.Handler()))
		router.GET("/ready", gin.WrapH(deps.HealthChecker.Handler()))
	}
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Prometheus 指标
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	// V1 API
	v1 := router.Group("/v1")
	{
		// ========== Case Routes ==========
		caseRoutes := v1.Group("/cases")
		{
			caseRoutes.POST("", caseHandler.upsertCase)
			caseRoutes.GET("", caseHandler.listCases)
			caseRoutes.GET("/:id", caseHandler.getCase)
			caseRoutes.GET("/:id/communications", handler.listCaseCommunications)
		}

		// ========== Communication Routes ==========
		commRoutes := v1.Group("/communications")
		{
			commRoutes.POST("", handler.createCommunication)
			commRoutes.GET("/orphans", handler.listOrphanCommunications)
			commRoutes.GET("/:id", handler.getCommunication)
			commRoutes.DELETE("/:id", handler.deleteCommunication)

			// 复制引擎端点
			commRoutes.POST("/:id/move", handler.moveCommunication)
			commRoutes.POST("/:id/clone", handler.cloneCommunication)
			commRoutes.POST("/:id/resend", handler.resendCommunication)

			// 投递渠道解析
			commRoutes.GET("/:id/delivered", handler.getDelivered)

			// 附件端点
			commRoutes.POST("/:id/attachments", handler.uploadAttachment)
			commRoutes.GET("/:id/attachments/:attachmentId", handler.downloadAttachment)
		}
	}

	return router
}
