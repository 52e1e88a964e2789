package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"hotel-ops-backend/config"
	"hotel-ops-backend/internal/domain"
	"hotel-ops-backend/internal/metrics"
	repoInterface "hotel-ops-backend/internal/repository/interface"
	"hotel-ops-backend/internal/repository/memory"
	"hotel-ops-backend/internal/repository/postgres"
	"hotel-ops-backend/internal/scheduler"
	"hotel-ops-backend/internal/service/activity"
	"hotel-ops-backend/internal/service/encryption"
	"hotel-ops-backend/internal/service/formatter"
	"hotel-ops-backend/internal/service/integration"
	"hotel-ops-backend/internal/service/notify"
	"hotel-ops-backend/internal/service/webhook"
	"hotel-ops-backend/internal/transport/api"
	"hotel-ops-backend/internal/transport/middleware"
	"hotel-ops-backend/internal/transport/web"
)

type repositories struct {
	integrations repoInterface.IntegrationRepository
	guests       repoInterface.GuestRepository
	users        repoInterface.UserRepository
	close        func() error
}

func main() {
	// Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	log.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, err := openRepositories(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer repos.close()

	if err := bootstrapAdmin(ctx, cfg, repos.users); err != nil {
		logger.Fatal().Err(err).Msg("Failed to create admin user")
	}

	// Инициализируем сервисы
	m := metrics.New()
	vault := encryption.NewVault(cfg.EncryptionKey, encryption.WithCost(cfg.ScryptCost))
	activityLog := activity.NewLogger(repos.integrations, logger, m)

	svc := integration.NewService(
		repos.integrations,
		repos.guests,
		vault,
		activityLog,
		integration.Config{
			UserAgent:        cfg.UserAgent,
			RequestTimeout:   cfg.ProviderTimeout,
			Retries:          cfg.ProviderRetries,
			RetryDelay:       cfg.ProviderRetryDelay,
			AutoDisableAfter: cfg.AutoDisableAfter,
		},
		integration.WithLogger(logger.With().Str("component", "integration").Logger()),
		integration.WithMetrics(m),
	)

	hub := notify.NewHub(logger.With().Str("component", "notify").Logger(), m)
	var notifier notify.Notifier = hub
	if cfg.RedisURL != "" {
		client, err := notify.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to redis")
		}
		defer client.Close()

		relay := notify.NewRedisRelay(client, notify.DefaultChannel, hub, logger)
		go func() {
			if err := relay.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("notification relay stopped")
			}
		}()
		notifier = relay
	}

	dispatcher := webhook.NewDispatcher(
		repos.integrations,
		activityLog,
		logger.With().Str("component", "webhook").Logger(),
		m,
		webhook.DefaultHandlers(webhook.Deps{
			Guests:    repos.guests,
			Providers: svc.Registry(),
			Notifier:  notifier,
			Formatter: formatter.New(),
			Log:       logger,
		})...,
	)

	if cfg.SyncInterval > 0 {
		sched := scheduler.New(repos.integrations, svc, cfg.SyncInterval, logger.With().Str("component", "scheduler").Logger())
		if err := sched.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Failed to start scheduler")
		}
		defer sched.Stop()
	}

	// Создаем Echo сервер
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestLogger(logger))

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTSecret)
	api.SetupRoutes(e, api.Deps{
		Integrations: repos.integrations,
		Guests:       repos.guests,
		Users:        repos.users,
		Vault:        vault,
		Service:      svc,
		Dispatcher:   dispatcher,
		Notifier:     notifier,
		Hub:          hub,
		Auth:         authMiddleware,
		Metrics:      m.Handler(),
		BaseURL:      cfg.BaseURL,
	})
	web.SetupRoutes(e, repos.integrations, repos.guests, hub, authMiddleware)

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("starting server")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()

	<-ctx.Done()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// сокеты закрываем первыми, иначе Shutdown ждет их до таймаута
	hub.Close()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown failed")
	}
}

func openRepositories(cfg *config.Config) (*repositories, error) {
	if cfg.UseMemoryStore() {
		store := memory.NewStore()
		return &repositories{
			integrations: store,
			guests:       store.Guests(),
			users:        store,
			close:        func() error { return nil },
		}, nil
	}

	// Подключаемся к БД
	db, err := sqlx.Connect("postgres", cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	// Выполняем миграции
	if err := postgres.RunMigrations(db.DB, cfg.MigrationsDir); err != nil {
		db.Close()
		return nil, err
	}

	return &repositories{
		integrations: postgres.NewIntegrationRepository(db),
		guests:       postgres.NewGuestRepository(db),
		users:        postgres.NewUserRepository(db),
		close:        db.Close,
	}, nil
}

// bootstrapAdmin создает первого оператора, если его еще нет
func bootstrapAdmin(ctx context.Context, cfg *config.Config, users repoInterface.UserRepository) error {
	if cfg.AdminEmail == "" {
		return nil
	}
	if _, err := users.FindUserByEmail(ctx, cfg.AdminEmail); err == nil {
		return nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	hash, err := middleware.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}
	return users.CreateUser(ctx, &domain.User{
		HotelID:      cfg.AdminHotelID,
		Email:        cfg.AdminEmail,
		PasswordHash: hash,
		Role:         "admin",
	})
}
