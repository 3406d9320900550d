package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pharmalink/pharmalink/internal/config"
	direntity "github.com/pharmalink/pharmalink/internal/directory/entity"
	dirhandler "github.com/pharmalink/pharmalink/internal/directory/handler"
	dirrepo "github.com/pharmalink/pharmalink/internal/directory/repository"
	dirsvc "github.com/pharmalink/pharmalink/internal/directory/service"
	"github.com/pharmalink/pharmalink/internal/middleware"
	"github.com/pharmalink/pharmalink/internal/purchasing/entity"
	"github.com/pharmalink/pharmalink/internal/purchasing/handler"
	"github.com/pharmalink/pharmalink/internal/purchasing/repository"
	"github.com/pharmalink/pharmalink/internal/purchasing/service"
	"github.com/pharmalink/pharmalink/internal/shared/notify"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting pharmalink-erp service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 初始化数据库
	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	// 建表
	if err := db.AutoMigrate(
		&direntity.Supplier{},
		&direntity.Product{},
		&direntity.User{},
		&entity.ApprovalRule{},
		&entity.PurchaseRequest{},
		&entity.PRItem{},
		&entity.PurchaseRequestApproval{},
		&entity.PurchaseOrder{},
		&entity.POItem{},
		&entity.GoodsReceipt{},
		&entity.GRItem{},
		&entity.VendorBill{},
		&entity.BillItem{},
		&entity.MatchResult{},
		&entity.ActivityLog{},
	); err != nil {
		zapLogger.Fatal("AutoMigrate failed", zap.Error(err))
	}

	// 初始化Redis（对账锁）
	rdb := initRedis(cfg.Redis)

	// 通知sink
	var notifier notify.Notifier = notify.NopNotifier{}
	if cfg.Notify.WebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.Notify.WebhookURL)
	}

	// 仓库、服务、处理器
	dirRepos := dirrepo.NewRepositories(db)
	dirServices := dirsvc.NewServices(dirRepos)
	dirHandlers := dirhandler.NewHandlers(dirServices)

	purRepos := repository.NewRepositories(db)
	purServices := service.NewServices(purRepos, dirRepos, rdb, notifier)
	purHandlers := handler.NewHandlers(purServices)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	registerRoutes(router, cfg, purHandlers, dirHandlers)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func registerRoutes(r *gin.Engine, cfg *config.Config, purH *handler.Handlers, dirH *dirhandler.Handlers) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": Version})
	})

	v1 := r.Group("/api/v1")
	{
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(cfg.JWT.Secret))
		{
			// 主数据
			directory := authorized.Group("/directory")
			{
				suppliers := directory.Group("/suppliers")
				{
					suppliers.GET("", dirH.Supplier.ListSuppliers)
					suppliers.GET("/:id", dirH.Supplier.GetSupplier)
					suppliers.POST("", dirH.Supplier.CreateSupplier)
				}

				products := directory.Group("/products")
				{
					products.GET("", dirH.Product.ListProducts)
					products.GET("/:id", dirH.Product.GetProduct)
					products.POST("", dirH.Product.CreateProduct)
				}

				users := directory.Group("/users")
				{
					users.GET("", dirH.User.ListUsers)
					users.GET("/:id", dirH.User.GetUser)
					users.POST("", dirH.User.CreateUser)
				}
			}

			// 采购
			purchasing := authorized.Group("/purchasing")
			{
				rules := purchasing.Group("/approval-rules")
				{
					rules.GET("", purH.Rule.ListRules)
					rules.GET("/:id", purH.Rule.GetRule)
					rules.POST("", purH.Rule.CreateRule)
					rules.PUT("/:id", purH.Rule.UpdateRule)
					rules.DELETE("/:id", purH.Rule.DeactivateRule)
				}

				prs := purchasing.Group("/purchase-requests")
				{
					prs.GET("", purH.PR.ListPRs)
					prs.GET("/:id", purH.PR.GetPR)
					prs.POST("", purH.PR.CreatePR)
					prs.PUT("/:id", purH.PR.UpdatePR)
					prs.POST("/:id/submit", purH.PR.SubmitPR)
					prs.POST("/:id/approvals/:level/decide", purH.PR.Decide)
					prs.POST("/:id/convert", purH.PR.ConvertPR)
					prs.POST("/:id/cancel", purH.PR.CancelPR)
					prs.GET("/:id/activity", purH.PR.ListActivity)
				}

				purchasing.GET("/approvals/pending", purH.PR.ListMyPending)

				pos := purchasing.Group("/purchase-orders")
				{
					pos.GET("", purH.PO.ListPOs)
					pos.GET("/:id", purH.PO.GetPO)
					pos.POST("/:id/receipts", purH.PO.CreateReceipt)
					pos.GET("/:id/receipts", purH.PO.ListReceipts)
					pos.POST("/:id/bills", purH.PO.CreateBill)
					pos.GET("/:id/bills", purH.PO.ListBills)
					pos.POST("/:id/match", purH.Match.RunMatch)
					pos.GET("/:id/match-results", purH.Match.ListMatchResults)
					pos.GET("/:id/match-report", purH.Match.ExportMatchReport)
				}

				matches := purchasing.Group("/match-results")
				{
					matches.GET("/unresolved", purH.Match.ListUnresolved)
					matches.POST("/:id/resolve", purH.Match.ResolveException)
				}
			}
		}
	}
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}
