// ABOUTME: Explicit dependency construction for the whole service
// ABOUTME: Gateway mode (live vs mock) is decided here, never by scattered conditionals
package bootstrap

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"trailer-engine/config"
	"trailer-engine/driver"
	"trailer-engine/handler"
	"trailer-engine/orchestrator"
	"trailer-engine/repository"
	"trailer-engine/retry"
	"trailer-engine/service"
)

// Dependencies holds all application dependencies.
type Dependencies struct {
	Config *config.Config
	Logger *slog.Logger

	RedisClient *redis.Client
	DBPool      *pgxpool.Pool

	JobRepo     repository.JobRepository
	SegmentRepo repository.SegmentRepository
	ProjectRepo repository.ProjectRepository

	WorkerPool *service.WorkerPool
	Runner     *orchestrator.Runner

	GenerationHandler *handler.GenerationHandler
	StatusHandler     *handler.StatusHandler
}

// BuildDependencies constructs the full dependency graph. The returned cleanup
// function closes infrastructure connections and should be deferred.
func BuildDependencies(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Dependencies, func(), error) {
	redisClient, err := driver.NewRedisClient(ctx, cfg.Redis.URL)
	if err != nil {
		return nil, nil, err
	}

	var dbPool *pgxpool.Pool
	if cfg.Database.URL != "" {
		dbPool, err = driver.NewPostgresPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			_ = redisClient.Close()
			return nil, nil, err
		}
	}

	jobRepo := repository.NewJobRepository(redisClient, repository.JobQueueConfig{
		KeyPrefix:          cfg.Queue.KeyPrefix,
		DefaultMaxRetries:  cfg.Queue.MaxRetries,
		RetryBaseDelay:     cfg.Queue.RetryBaseDelay,
		CompletedRetention: cfg.Queue.CompletedRetention,
		FailedRetention:    cfg.Queue.FailedRetention,
	}, log)
	segmentRepo := repository.NewSegmentRepository(dbPool, log)
	projectRepo := repository.NewProjectRepository(dbPool, log)

	var videoGateway repository.VideoGateway
	var scriptGateway repository.ScriptGateway
	if cfg.Gateway.Mode == config.GatewayModeLive {
		videoGateway = driver.NewVideoGatewayClient(driver.VideoGatewayConfig{
			Host:             cfg.Gateway.VideoHost,
			APIPath:          cfg.Gateway.VideoAPIPath,
			Timeout:          cfg.Gateway.Timeout,
			SubmitsPerMinute: cfg.Gateway.SubmitsPerMinute,
		}, log)
		scriptGateway = driver.NewScriptGatewayClient(driver.ScriptGatewayConfig{
			Host:    cfg.Gateway.ScriptHost,
			APIPath: cfg.Gateway.ScriptAPIPath,
			Model:   cfg.Gateway.ScriptModel,
			Timeout: cfg.Gateway.ScriptTimeout,
		}, log)
	} else {
		videoGateway = driver.NewMockVideoGateway(log)
		scriptGateway = driver.NewMockScriptGateway(log)
	}

	retrier := retry.New(retry.Config{
		MaxAttempts:   cfg.Retry.MaxAttempts,
		BaseDelay:     cfg.Retry.BaseDelay,
		MaxDelay:      cfg.Retry.MaxDelay,
		BackoffFactor: cfg.Retry.BackoffFactor,
		JitterFactor:  cfg.Retry.JitterFactor,
	}, func(err error) bool { return true }, log)

	aggregator := service.NewAggregator(jobRepo, segmentRepo, projectRepo, cfg.Aggregate.FailureRatio, log)
	worker := service.NewWorker(jobRepo, segmentRepo, videoGateway, scriptGateway, aggregator, retrier, service.WorkerConfig{
		PollInterval:    cfg.Worker.PollInterval,
		MaxPollAttempts: cfg.Worker.MaxPollAttempts,
	}, log)
	workerPool := service.NewWorkerPool(jobRepo, worker, service.WorkerPoolConfig{
		Concurrency: cfg.Worker.Concurrency,
		IdleWait:    cfg.Worker.IdleWait,
	}, log)

	runner := orchestrator.NewRunner(
		orchestrator.QueueMaintenanceTasks(jobRepo, cfg.Queue.PromoteInterval),
		log,
	)

	trailerService := service.NewTrailerService(jobRepo, segmentRepo, aggregator, log)

	cleanup := func() {
		if dbPool != nil {
			dbPool.Close()
		}
		_ = redisClient.Close()
	}

	return &Dependencies{
		Config:            cfg,
		Logger:            log,
		RedisClient:       redisClient,
		DBPool:            dbPool,
		JobRepo:           jobRepo,
		SegmentRepo:       segmentRepo,
		ProjectRepo:       projectRepo,
		WorkerPool:        workerPool,
		Runner:            runner,
		GenerationHandler: handler.NewGenerationHandler(trailerService, log),
		StatusHandler:     handler.NewStatusHandler(trailerService, log),
	}, cleanup, nil
}
