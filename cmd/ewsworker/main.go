package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/daonbank/kcs/kcs-backend/internal/config"
	"github.com/daonbank/kcs/kcs-backend/internal/ews"
	"github.com/daonbank/kcs/kcs-backend/internal/repository/postgres"
	redisrepo "github.com/daonbank/kcs/kcs-backend/internal/repository/redis"
	"github.com/daonbank/kcs/kcs-backend/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// The EWS worker runs separately from the API so a slow alert storm
// never competes with evaluation traffic. It shares the database and
// the decision pipeline: amber alerts trigger shadow rescores through
// the same code path the API uses.
func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	if err := pool.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Connected to database")

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
	}
	cancelPing()

	applicantRepo := postgres.NewApplicantRepository(pool)
	applicationRepo := postgres.NewApplicationRepository(pool)
	scoreRepo := postgres.NewCreditScoreRepository(pool)
	paramRepo := postgres.NewRegulationParamRepository(pool)
	auditRepo := postgres.NewAuditLogRepository(pool)
	eqGradeRepo := postgres.NewEQGradeMasterRepository(pool)
	ewsEventRepo := postgres.NewEWSEventRepository(pool)

	paramService := service.NewParamService(paramRepo, paramCache, auditRepo)
	registry := service.NewModelRegistry()
	pdProvider := service.NewCompositePDProvider(registry)
	scoringEngine := service.NewScoringEngine(pdProvider, paramService, eqGradeRepo)

	cbConfig := service.DefaultCBConfig()
	cbConfig.BureauTimeout = cfg.CBBureauTimeout
	cbService := service.NewCBService(cbConfig, nil, cbCache)

	decisionService := service.NewDecisionService(applicationRepo, applicantRepo, scoreRepo, auditRepo, cbService, scoringEngine)
	ewsService := service.NewEWSService(ewsEventRepo, applicationRepo, auditRepo, decisionService)

	consumer := ews.NewConsumer(ews.ConsumerConfig{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
		GroupID: cfg.Kafka.GroupID,
	}, ewsService, log.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	consumer.Start(ctx)
	log.Info().
		Strs("brokers", cfg.Kafka.Brokers).
		Str("topic", cfg.Kafka.Topic).
		Str("group", cfg.Kafka.GroupID).
		Msg("EWS worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down EWS worker...")
	// Stop before cancelling so the consumer closes its reader; a
	// cancelled context makes Stop a no-op on an already-exited loop.
	consumer.Stop()
	cancel()

	if err := redisClient.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close redis client")
	}

	log.Info().Msg("EWS worker exited")
}
