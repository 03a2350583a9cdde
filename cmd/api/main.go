package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/urbanecho/civic-service/internal/api/http"
	"github.com/urbanecho/civic-service/internal/api/http/handlers"
	"github.com/urbanecho/civic-service/internal/auth"
	"github.com/urbanecho/civic-service/internal/config"
	"github.com/urbanecho/civic-service/internal/events"
	"github.com/urbanecho/civic-service/internal/observability"
	"github.com/urbanecho/civic-service/internal/persistence"
	"github.com/urbanecho/civic-service/internal/repository"
	"github.com/urbanecho/civic-service/internal/repository/memory"
	"github.com/urbanecho/civic-service/internal/service"
	"github.com/urbanecho/civic-service/internal/worker"
)

type repositories struct {
	problems     repository.ProblemRepository
	cards        repository.CivicCardRepository
	transactions repository.TransactionRepository
	rewards      repository.RewardRepository
	codes        repository.RedemptionCodeRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	var (
		repos   repositories
		redis   *persistence.Redis
		limiter persistence.WindowCounter
		queue   persistence.JobQueue
	)
	if pg.Enabled() {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), persistence.DefaultMigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		pool := pg.PoolHandle()
		repos = repositories{
			problems:     repository.NewProblemRepository(pool),
			cards:        repository.NewCivicCardRepository(pool),
			transactions: repository.NewTransactionRepository(pool),
			rewards:      repository.NewRewardRepository(pool),
			codes:        repository.NewRedemptionCodeRepository(pool),
		}

		redis = persistence.NewRedis(cfg.Redis, logger)
		defer redis.Close()
		limiter = redis.ReportCounter()
		queue = redis.AwardQueue(cfg.Scheduler.AwardQueueKey)
	} else {
		store := memory.NewStore()
		repos = repositories{
			problems:     store.Problems(),
			cards:        store.Cards(),
			transactions: store.Transactions(),
			rewards:      store.Rewards(),
			codes:        store.RedemptionCodes(),
		}
		limiter = persistence.NewMemoryCounter(nil)
		queue = persistence.NewMemoryQueue()
	}

	dispatcher := events.NewInMemoryDispatcher(logger)

	ledger := service.NewLedgerService(service.LedgerDependencies{
		CardRepo:        repos.cards,
		TransactionRepo: repos.transactions,
		ProblemRepo:     repos.problems,
		DefaultPageSize: cfg.Rewards.DefaultPageSize,
		MaxPageSize:     cfg.Rewards.MaxPageSize,
		Logger:          logger,
	})
	problems := service.NewProblemService(service.ProblemDependencies{
		ProblemRepo: repos.problems,
		Dispatcher:  dispatcher,
		Limiter:     limiter,
		Lifecycle:   cfg.Lifecycle,
		RateLimit:   cfg.RateLimit,
		Rewards:     cfg.Rewards,
		Logger:      logger,
	})
	votes := service.NewVoteService(repos.problems, dispatcher, nil)
	rewards := service.NewRewardService(repos.rewards, cfg.Rewards.DefaultPageSize, cfg.Rewards.MaxPageSize, nil)
	redemptions := service.NewRedemptionService(service.RedemptionDependencies{
		Ledger:     ledger,
		RewardRepo: repos.rewards,
		CodeRepo:   repos.codes,
		Dispatcher: dispatcher,
		Config:     cfg.Rewards,
		Logger:     logger,
	})
	awards := service.NewCoinAwardService(service.CoinAwardDependencies{
		Dispatcher: dispatcher,
		Ledger:     ledger,
		Queue:      queue,
		Lifecycle:  cfg.Lifecycle,
		Scheduler:  cfg.Scheduler,
		Logger:     logger,
	})
	notifications := service.NewNotificationService(dispatcher, logger.Named("events"))
	worker.StartEventSubscribers(notifications, awards)

	scheduler, err := worker.NewScheduler(cfg.Scheduler, worker.NewJobRunner(awards, redemptions, logger), logger)
	if err != nil {
		logger.Fatal("failed to init scheduler", zap.Error(err))
	}
	scheduler.Start()

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
		Problems:       handlers.NewProblemsHandler(problems, votes),
		CivicCard:      handlers.NewCivicCardHandler(ledger),
		Rewards:        handlers.NewRewardsHandler(rewards, redemptions),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()
	logger.Info("civic service started",
		zap.String("addr", cfg.App.Addr()),
		zap.Bool("postgres", pg.Enabled()),
		zap.Bool("require_assignment", cfg.Lifecycle.RequireAssignment))

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	scheduler.Stop()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
