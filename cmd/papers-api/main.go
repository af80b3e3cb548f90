package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/sciclub-portal/papers-api/api/swagger"
	"github.com/sciclub-portal/papers-api/internal/handler"
	"github.com/sciclub-portal/papers-api/internal/middleware"
	"github.com/sciclub-portal/papers-api/internal/models"
	"github.com/sciclub-portal/papers-api/internal/repository"
	"github.com/sciclub-portal/papers-api/internal/service"
	"github.com/sciclub-portal/papers-api/pkg/cache"
	"github.com/sciclub-portal/papers-api/pkg/config"
	"github.com/sciclub-portal/papers-api/pkg/database"
	"github.com/sciclub-portal/papers-api/pkg/jobs"
	"github.com/sciclub-portal/papers-api/pkg/logger"
	"github.com/sciclub-portal/papers-api/pkg/mailer"
	corsmiddleware "github.com/sciclub-portal/papers-api/pkg/middleware/cors"
	reqidmiddleware "github.com/sciclub-portal/papers-api/pkg/middleware/requestid"
	"github.com/sciclub-portal/papers-api/pkg/storage"
)

// @title Student Papers API
// @version 1.0.0
// @description Submission and review portal for student research papers
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	var cacheRepo *repository.CacheRepository
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, reference caching disabled", "error", err)
		} else {
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
			defer cacheRepo.Close() //nolint:errcheck
		}
	}

	store, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)
	smtp := mailer.New(cfg.SMTP)

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	paperRepo := repository.NewPaperRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	fileRepo := repository.NewFileRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	clubRepo := repository.NewClubRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "papers-api",
	})

	statementSvc := service.NewStatementService(userRepo, fileRepo, store, logr, cfg.Statements.MagazineLabel, jobs.Config{
		Workers:    cfg.Statements.WorkerConcurrency,
		MaxRetries: cfg.Statements.WorkerRetries,
	}).WithMetrics(metricsSvc)

	paperSvc := service.NewPaperService(paperRepo, userRepo, fileRepo, clubRepo, store, signer, statementSvc, smtp, validate, logr, service.PaperServiceConfig{
		PageSize:         cfg.Papers.PageSize,
		MaxFileSizeBytes: cfg.Uploads.MaxFileSizeBytes,
		AllowedMIMEs:     cfg.Uploads.AllowedMIMEs,
	})
	reviewSvc := service.NewReviewService(reviewRepo, paperRepo, gradeRepo, userRepo, validate, logr, cfg.Papers.PageSize)

	referenceSvc := service.NewReferenceService(gradeRepo, clubRepo, cacheOrNil(cacheRepo), logr, cfg.Cache.ReferenceTTL).WithMetrics(metricsSvc)

	authHandler := handler.NewAuthHandler(authSvc)
	paperHandler := handler.NewPaperHandler(paperSvc)
	reviewHandler := handler.NewReviewHandler(reviewSvc)
	referenceHandler := handler.NewReferenceHandler(referenceSvc)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	statementSvc.Start(rootCtx)
	defer statementSvc.Stop()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	authSecured := auth.Group("", middleware.JWT(authSvc))
	authSecured.POST("/logout", authHandler.Logout)
	authSecured.GET("/me", authHandler.Me)

	api.GET("/files/download", paperHandler.Download)

	secured := api.Group("", middleware.JWT(authSvc))
	secured.GET("/grades", referenceHandler.ListGrades)
	secured.GET("/clubs", referenceHandler.ListClubs)

	secured.GET("/papers", paperHandler.List)
	secured.POST("/papers", paperHandler.Create)
	secured.GET("/papers/:id", paperHandler.Get)
	secured.PUT("/papers/:id", paperHandler.Update)
	secured.DELETE("/papers/:id", paperHandler.Delete)
	secured.GET("/papers/:id/files/:fileID/url", paperHandler.FileURL)

	staff := secured.Group("", middleware.RequireRoles(models.RoleAdmin))
	staff.PUT("/papers/:id/reviewers", paperHandler.AssignReviewers)
	staff.GET("/reviewers", paperHandler.ListReviewers)

	secured.GET("/papers/:id/reviews", reviewHandler.ListByPaper)
	reviewerOnly := secured.Group("", middleware.RequireRoles(models.RoleReviewer))
	reviewerOnly.POST("/papers/:id/reviews", reviewHandler.Create)
	reviewerOnly.GET("/papers/:id/reviews/mine", reviewHandler.Lookup)

	secured.GET("/reviews", reviewHandler.ListMine)
	secured.GET("/reviews/:id", reviewHandler.Get)
	secured.PUT("/reviews/:id", reviewHandler.Update)
	secured.DELETE("/reviews/:id", reviewHandler.Delete)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
}

// cacheOrNil keeps the reference service's cache parameter a typed nil-safe
// interface when Redis is absent.
func cacheOrNil(repo *repository.CacheRepository) service.ReferenceCache {
	if repo == nil {
		return nil
	}
	return repo
}
