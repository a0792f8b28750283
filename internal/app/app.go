// Package app 组装服务运行所需的全部协作者，并在 main 中构造一次。
package app

import (
	"context"
	"fmt"
	"time"

	"sql-smart-go/internal/bootstrap"
	"sql-smart-go/internal/config"
	"sql-smart-go/internal/handler"
	"sql-smart-go/internal/memory"
	"sql-smart-go/internal/middleware"
	"sql-smart-go/internal/repository"
	"sql-smart-go/internal/service"
	"sql-smart-go/pkg/database"
	"sql-smart-go/pkg/es"
	"sql-smart-go/pkg/kafka"
	"sql-smart-go/pkg/llm"
	"sql-smart-go/pkg/log"
	"sql-smart-go/pkg/sqlrunner"
	"sql-smart-go/pkg/storage"
	"sql-smart-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// App 持有配置与所有已连接的资源。
type App struct {
	Config *config.Config

	DB        *gorm.DB
	Runner    sqlrunner.Runner
	Redis     *redis.Client // 未配置 redis.addr 时为 nil
	Memory    memory.Store
	Publisher kafka.Publisher
	Exporter  storage.Exporter // 未配置 minio.endpoint 时为 nil
	JWT       *token.JWTManager

	Agent         service.AgentService
	Conversations service.ConversationService
	MemoryService service.MemoryService
	Analytics     service.AnalyticsService

	schemaSource bootstrap.Source
}

// New 按配置连接数据库与各个可选后端。失败时关闭已打开的资源。
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}
	if err := a.connect(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) connect(ctx context.Context) (err error) {
	cfg := a.Config

	// 1. 业务数据库
	if a.DB, err = database.Open(cfg.Database.URL); err != nil {
		return err
	}
	a.Runner = sqlrunner.New(a.DB, cfg.Agent.MaxRows)

	// 2. Redis（对话历史与可选的记忆后端）
	var conversationRepo repository.ConversationRepository
	if cfg.Redis.Addr != "" {
		if a.Redis, err = database.OpenRedis(ctx, cfg.Redis); err != nil {
			return err
		}
		conversationRepo = repository.NewConversationRepository(a.Redis)
	}

	// 3. 记忆后端
	if a.Memory, err = newMemory(ctx, cfg, a.Redis); err != nil {
		return err
	}

	// 4. 审计事件与结果导出
	a.Publisher = kafka.NewPublisher(cfg.Kafka)
	if a.Exporter, err = storage.NewExporter(ctx, cfg.MinIO); err != nil {
		return err
	}

	// 5. 身份
	if cfg.JWT.Secret != "" {
		a.JWT = token.NewJWTManager(cfg.JWT.Secret)
	} else {
		log.Warnw("未配置 jwt.secret，所有请求将以默认用户身份处理")
	}

	// 6. Service
	llmClient := llm.NewClient(cfg.LLM)
	log.Infof("LLM 客户端初始化成功, model: %s", llmClient.Model())
	a.Agent = service.NewAgentService(service.AgentDeps{
		LLM:       llmClient,
		Runner:    a.Runner,
		Memory:    a.Memory,
		History:   conversationRepo,
		Publisher: a.Publisher,
		Exporter:  a.Exporter,
		Config:    cfg.Agent,
	})
	a.Conversations = service.NewConversationService(conversationRepo)
	a.MemoryService = service.NewMemoryService(a.Memory)
	a.Analytics = service.NewAnalyticsService(repository.NewAnalyticsRepository(a.DB))
	return nil
}

func newMemory(ctx context.Context, cfg *config.Config, rdb *redis.Client) (memory.Store, error) {
	switch cfg.Memory.Backend {
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("memory backend redis requires redis.addr")
		}
		log.Info("使用 Redis 记忆后端")
		return memory.NewRedisStore(rdb, cfg.Memory.MaxItems), nil
	case "elasticsearch":
		client, err := es.NewClient(cfg.Elasticsearch)
		if err != nil {
			return nil, err
		}
		store, err := memory.NewElasticStore(ctx, client, cfg.Elasticsearch.IndexName)
		if err != nil {
			return nil, err
		}
		log.Infof("使用 Elasticsearch 记忆后端, index: %s", cfg.Elasticsearch.IndexName)
		return store, nil
	default:
		log.Info("使用进程内记忆后端")
		return memory.NewLocalStore(cfg.Memory.MaxItems), nil
	}
}

// Bootstrap 同步执行 schema 训练；必须在 HTTP 服务启动之前调用。
func (a *App) Bootstrap(ctx context.Context) (bootstrap.Result, error) {
	res, err := bootstrap.Run(ctx, bootstrap.Deps{
		Catalog: a.Runner,
		Memory:  a.Memory,
		Schema:  a.Config.Database.Schema,
		Timeout: a.Config.Bootstrap.Timeout,
	})
	a.schemaSource = res.Source
	return res, err
}

// Router 创建 Gin 路由引擎并注册所有路由。
func (a *App) Router() *gin.Engine {
	gin.SetMode(a.Config.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	r.GET("/health", handler.NewHealthHandler(string(a.schemaSource)).Health)

	api := r.Group("/api")
	api.Use(middleware.UserResolver(a.JWT))
	{
		api.POST("/ask", handler.NewAskHandler(a.Agent).Ask)
		api.GET("/ws", handler.NewChatHandler(a.Agent).Handle)
		api.GET("/conversation", handler.NewConversationHandler(a.Conversations).GetConversations)

		analytics := handler.NewAnalyticsHandler(a.Analytics)
		api.GET("/stats", analytics.Stats)
		api.GET("/invoices", analytics.Invoices)
		api.GET("/invoice-trends", analytics.InvoiceTrends)
		api.GET("/vendors/top10", analytics.TopVendors)
		api.GET("/category-spend", analytics.CategorySpend)
		api.GET("/cash-outflow", analytics.CashOutflow)

		admin := api.Group("/admin")
		admin.Use(middleware.AdminAuthMiddleware())
		{
			adminHandler := handler.NewAdminHandler(a.MemoryService)
			admin.GET("/memory", adminHandler.ListMemory)
			admin.POST("/memory", adminHandler.AddMemory)
		}
	}
	return r
}

// Close 释放所有已打开的资源，可重复调用。
func (a *App) Close() {
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			log.Errorf("关闭 Kafka 生产者失败: %v", err)
		}
		a.Publisher = nil
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			log.Errorf("关闭 Redis 连接失败: %v", err)
		}
		a.Redis = nil
	}
	if a.DB != nil {
		database.Close(a.DB)
		a.DB = nil
	}
}

// ShutdownTimeout 是优雅停机的最长等待时间。
const ShutdownTimeout = 5 * time.Second
