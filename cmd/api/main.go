package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/daonbank/kcs/kcs-backend/internal/config"
	"github.com/daonbank/kcs/kcs-backend/internal/handler"
	"github.com/daonbank/kcs/kcs-backend/internal/middleware"
	"github.com/daonbank/kcs/kcs-backend/internal/repository/postgres"
	redisrepo "github.com/daonbank/kcs/kcs-backend/internal/repository/redis"
	"github.com/daonbank/kcs/kcs-backend/internal/repository/storage"
	"github.com/daonbank/kcs/kcs-backend/internal/service"
	"github.com/daonbank/kcs/kcs-backend/internal/util"
	"github.com/daonbank/kcs/kcs-backend/internal/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Initialize zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Connect to database
	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	// Verify database connection
	if err := pool.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Connected to database")

	// Connect to redis. The parameter and bureau caches degrade to
	// store/bureau reads when redis is down, so this is not fatal.
	var paramCache service.ParamCache
	var cbCache service.CBCache
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 2*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, running without caches")
	} else {
		paramCache = redisrepo.NewParamCache(redisClient)
		cbCache = redisrepo.NewCBCache(redisClient)
		log.Info().Msg("Connected to redis")
	}
	cancelPing()

	// Initialize repositories
	applicantRepo := postgres.NewApplicantRepository(pool)
	applicationRepo := postgres.NewApplicationRepository(pool)
	scoreRepo := postgres.NewCreditScoreRepository(pool)
	paramRepo := postgres.NewRegulationParamRepository(pool)
	auditRepo := postgres.NewAuditLogRepository(pool)
	eqGradeRepo := postgres.NewEQGradeMasterRepository(pool)
	irgRepo := postgres.NewIRGMasterRepository(pool)
	modelVersionRepo := postgres.NewModelVersionRepository(pool)
	outcomeRepo := postgres.NewOutcomeRepository(pool)
	ewsEventRepo := postgres.NewEWSEventRepository(pool)
	documentRepo := postgres.NewAppealDocumentRepository(pool)

	// Object storage for appeal documents and model artifacts. S3 in
	// deployed environments, a local directory otherwise.
	var docStore storage.DocumentStore
	if cfg.S3.AccessKeyID != "" {
		docStore, err = storage.NewS3DocumentStore(context.Background(), cfg.S3)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize S3 document store")
		}
		log.Info().Str("bucket", cfg.S3.Bucket).Msg("Using S3 document store")
	} else {
		dir := cfg.DocumentDir
		if dir == "" {
			dir = "data/documents"
		}
		docStore, err = storage.NewLocalDocumentStore(dir)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize local document store")
		}
		log.Info().Str("dir", dir).Msg("Using local document store")
	}

	// Initialize services
	paramService := service.NewParamService(paramRepo, paramCache, auditRepo)
	registry := service.NewModelRegistry()
	pdProvider := service.NewCompositePDProvider(registry)
	scoringEngine := service.NewScoringEngine(pdProvider, paramService, eqGradeRepo)

	cbConfig := service.DefaultCBConfig()
	cbConfig.BureauTimeout = cfg.CBBureauTimeout
	cbService := service.NewCBService(cbConfig, nil, cbCache)

	decisionService := service.NewDecisionService(applicationRepo, applicantRepo, scoreRepo, auditRepo, cbService, scoringEngine)
	applicationService := service.NewApplicationService(applicationRepo, applicantRepo, auditRepo, decisionService, nil)
	monitoringService := service.NewMonitoringService(scoreRepo, outcomeRepo)
	modelService := service.NewModelService(modelVersionRepo, docStore, registry, auditRepo)
	ewsService := service.NewEWSService(ewsEventRepo, applicationRepo, auditRepo, decisionService)
	documentService := service.NewDocumentService(docStore, documentRepo, applicationRepo, auditRepo)

	// Restore the persisted champion scorecard into the serving
	// registry. Without one, scoring falls back to the statistical PD.
	if err := modelService.LoadChampion(context.Background(), "application"); err != nil {
		log.Warn().Err(err).Msg("Failed to load champion model")
	}

	// WebSocket hub for decision and EWS events
	hub := websocket.NewHub()
	decisionService.SetEventPublisher(hub)
	applicationService.SetEventPublisher(hub)
	ewsService.SetEventPublisher(hub)
	modelService.SetEventPublisher(hub)

	hasher := util.NewIdentityHasher(cfg.ResidentHashKey)

	// Initialize auth middleware and rate limiters
	authMiddleware, err := middleware.NewAuthMiddleware(cfg.Auth0Domain, cfg.Auth0Audience)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create auth middleware")
	}
	apiLimiter := middleware.NewRateLimiter(cfg.RateLimitPerMin)
	evaluateLimiter := middleware.NewRateLimiter(cfg.EvaluateRateLimitPerMin)

	// Initialize handlers
	applicationHandler := handler.NewApplicationHandler(applicationService, decisionService, hasher)
	scoringHandler := handler.NewScoringHandler(decisionService)
	adminHandler := handler.NewAdminHandler(paramService, modelService, eqGradeRepo, irgRepo)
	monitoringHandler := handler.NewMonitoringHandler(monitoringService, ewsService)
	documentHandler := handler.NewDocumentHandler(documentService)

	wsValidator, err := websocket.NewAuth0JWTValidator(cfg.Auth0Domain, cfg.Auth0Audience, opsChannelLookup{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create WebSocket JWT validator")
	}
	wsHandler := handler.NewWebSocketHandler(hub, wsValidator, cfg.CORSOrigins)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Request ID middleware
	e.Use(echomiddleware.RequestID())

	// CORS middleware
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Security headers middleware (helmet-like)
	e.Use(echomiddleware.SecureWithConfig(echomiddleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'self'",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}))

	// Request logging middleware with zerolog
	e.Use(zerologMiddleware())

	// Recovery middleware
	e.Use(echomiddleware.Recover())

	// Health check endpoint
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// Register API routes
	handler.RegisterRoutes(e, authMiddleware, apiLimiter, evaluateLimiter, applicationHandler, scoringHandler, adminHandler, monitoringHandler, documentHandler, wsHandler)

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	if err := redisClient.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close redis client")
	}

	log.Info().Msg("Server exited")
}

// opsChannelLookup routes every authenticated staff subject to the ops
// event channel. Applicant channels are not token-addressable; the
// channel gateway terminates customer sessions upstream.
type opsChannelLookup struct{}

// GetChannelBySubject implements websocket.ChannelLookup
func (opsChannelLookup) GetChannelBySubject(string) (string, error) {
	return websocket.OpsChannel, nil
}

// zerologMiddleware returns a middleware that logs requests using zerolog
func zerologMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			log.Info().
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", res.Status).
				Dur("latency", time.Since(start)).
				Str("request_id", res.Header().Get(echo.HeaderXRequestID)).
				Msg("request")

			return nil
		}
	}
}
