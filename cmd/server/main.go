package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"commtrack/backend/internal/cache"
	"commtrack/backend/internal/config"
	"commtrack/backend/internal/gateway"
	"commtrack/backend/internal/health"
	"commtrack/backend/internal/logger"
	"commtrack/backend/internal/mailin"
	"commtrack/backend/internal/monitoring"
	"commtrack/backend/internal/pool"
	"commtrack/backend/internal/service"
	"commtrack/backend/internal/storage"
	"commtrack/backend/internal/storage/filesystem"
	"commtrack/backend/internal/storage/memory"
	redisstore "commtrack/backend/internal/storage/redis"
	sqlstore "commtrack/backend/internal/storage/sql"
	httptransport "commtrack/backend/internal/transport/http"
)

// main 启动包含 HTTP API 与入站 SMTP 的通信归档服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		LogFile:     "",
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	log.Info("starting commtrack server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 初始化存储层
	var store storage.Store
	if cfg.Database.Type != "" && cfg.Database.DSN != "" {
		store, err = sqlstore.NewStore(
			cfg.Database.Type,
			cfg.Database.DSN,
			cfg.Database.MaxOpenConns,
			cfg.Database.MaxIdleConns,
			cfg.Database.ConnMaxLifetime,
		)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize database storage: %v", err))
		}
		log.Info("using database storage", zap.String("type", cfg.Database.Type))
	} else {
		store = memory.NewStore()
		log.Info("using memory storage (development mode)")
	}
	defer store.Close()

	// 附件字节内容落在文件系统
	blobs, err := filesystem.NewStore(cfg.Attachment.StoragePath)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize attachment storage: %v", err))
	}
	log.Info("attachment storage initialized", zap.String("path", cfg.Attachment.StoragePath))

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	// Redis 延迟索引队列（连不上时降级为不投递索引任务）
	var indexQueue *redisstore.IndexQueue
	redisClient, err := redisstore.New(&cfg.Redis, log)
	if err != nil {
		log.Warn("redis unavailable, index jobs will not be dispatched", zap.Error(err))
	} else {
		defer redisClient.Close()
		indexQueue = redisstore.NewIndexQueue(redisClient, cfg.Index.DelayedKey, cfg.Index.ReadyKey, log)
		indexQueue.StartDispatcher(groupCtx, cfg.Index.DispatchInterval)
		log.Info("index queue initialized",
			zap.String("delayed_key", cfg.Index.DelayedKey),
			zap.String("ready_key", cfg.Index.ReadyKey),
		)
	}

	// 异步投递协程池
	workers := pool.NewWorkerPool(cfg.Index.Workers, cfg.Index.QueueSize, log)
	workers.Start(groupCtx)
	defer workers.Stop()

	var dispatcher *service.IndexDispatcher
	if indexQueue != nil {
		dispatcher = service.NewIndexDispatcher(indexQueue, workers, cfg.Index.EnqueueDelay, log)
	} else {
		dispatcher = service.NewIndexDispatcher(nil, workers, cfg.Index.EnqueueDelay, log)
	}

	// 初始化监控与健康检查
	metrics := monitoring.NewMetrics()
	var queuePinger health.QueuePinger
	if indexQueue != nil {
		queuePinger = indexQueue
	}
	healthChecker := health.NewHealthChecker(store, queuePinger, log)

	// 初始化服务层
	truncationRules := make([]service.TruncationRule, 0, len(cfg.Normalizer.TruncationRules))
	for _, r := range cfg.Normalizer.TruncationRules {
		truncationRules = append(truncationRules, service.TruncationRule{
			Counterparty: r.Counterparty,
			Marker:       r.Marker,
		})
	}
	normalizer := service.NewNormalizer(truncationRules)

	ignoreRules := make([]service.IgnoreRule, 0, len(cfg.Attachment.IgnoreRules))
	for _, r := range cfg.Attachment.IgnoreRules {
		ignoreRules = append(ignoreRules, service.IgnoreRule{
			ContentType: r.ContentType,
			Extension:   r.Extension,
		})
	}

	commService := service.NewCommunicationService(store, normalizer, blobs, log)
	attachmentService := service.NewAttachmentService(store, blobs, dispatcher, ignoreRules, log)
	channelService := service.NewChannelService(store, log)
	caseCache := cache.NewCaseCache(5 * time.Minute)
	replicationService := service.NewReplicationService(
		store, commService, attachmentService, channelService, dispatcher, caseCache, log,
	)

	caseClient := gateway.NewCaseClient(cfg.Gateway.BaseURL, cfg.Gateway.Secret, cfg.Gateway.Timeout, log)
	resendService := service.NewResendService(store, caseClient, log)

	// 创建 HTTP 服务器
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:             cfg,
		CommService:        commService,
		ReplicationService: replicationService,
		AttachmentService:  attachmentService,
		ChannelService:     channelService,
		ResendService:      resendService,
		Store:              store,
		Metrics:            metrics,
		HealthChecker:      healthChecker,
		Logger:             log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 创建入站 SMTP 服务器
	var smtpServer *gosmtp.Server
	if cfg.MailIn.Enabled {
		limiter := mailin.NewConnectionLimiter(cfg.MailIn.MaxConns, cfg.MailIn.MaxRate)
		backend := mailin.NewBackend(
			commService, attachmentService, channelService, store,
			cfg.MailIn.Domain, limiter, log,
		)
		smtpServer = gosmtp.NewServer(backend)
		smtpServer.Addr = cfg.MailIn.BindAddr
		smtpServer.Domain = cfg.MailIn.Domain
		smtpServer.ReadTimeout = 10 * time.Second
		smtpServer.WriteTimeout = 10 * time.Second
		smtpServer.MaxMessageBytes = 25 * 1024 * 1024 // 25MB
		smtpServer.MaxRecipients = 50
	}

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// SMTP 服务器 goroutine
	if smtpServer != nil {
		group.Go(func() error {
			log.Info("starting inbound SMTP server",
				zap.String("address", cfg.MailIn.BindAddr),
				zap.String("domain", cfg.MailIn.Domain),
			)
			if err := smtpServer.ListenAndServe(); err != nil {
				log.Error("SMTP server error", zap.Error(err))
				return err
			}
			return nil
		})
	}

	// 索引队列积压指标采集 goroutine
	if indexQueue != nil {
		group.Go(func() error {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()

			for {
				select {
				case <-groupCtx.Done():
					return nil
				case <-ticker.C:
					backlog, err := indexQueue.Backlog(groupCtx)
					if err != nil {
						log.Warn("failed to read index queue backlog", zap.Error(err))
						continue
					}
					metrics.UpdateIndexQueueBacklog(backlog)
				}
			}
		})
	}

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		if smtpServer != nil {
			if err := smtpServer.Close(); err != nil {
				log.Warn("SMTP server close warning", zap.Error(err))
			}
		}

		log.Info("servers stopped")
		return nil
	})

	// 等待所有 goroutine 完成
	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}
