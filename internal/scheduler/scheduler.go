// Package scheduler - периодическая синхронизация активных интеграций
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"

	"hotel-ops-backend/internal/domain"
	"hotel-ops-backend/internal/service/integration"
)

// Окно бронирований PMS для плановой синхронизации
const reservationWindowDays = 7

// IntegrationLister возвращает активные интеграции
type IntegrationLister interface {
	FindActive(ctx context.Context) ([]*domain.Integration, error)
}

// Syncer выполняет синхронизацию одной интеграции
type Syncer interface {
	Sync(ctx context.Context, in *domain.Integration, from time.Time, days int) (integration.SyncResult, error)
}

// Summary - итог одного прогона
type Summary struct {
	Integrations int
	Succeeded    int
	Failed       int
}

// SyncScheduler запускает синхронизации по расписанию
type SyncScheduler struct {
	scheduler *gocron.Scheduler
	repo      IntegrationLister
	syncer    Syncer
	interval  time.Duration
	log       zerolog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	nowFn     func() time.Time
}

// New создает планировщик
func New(repo IntegrationLister, syncer Syncer, interval time.Duration, log zerolog.Logger) *SyncScheduler {
	ctx, cancel := context.WithCancel(context.Background())

	s := gocron.NewScheduler(time.UTC)
	// следующий прогон пропускается, пока идет предыдущий
	s.SingletonModeAll()

	return &SyncScheduler{
		scheduler: s,
		repo:      repo,
		syncer:    syncer,
		interval:  interval,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
		nowFn:     func() time.Time { return time.Now().UTC() },
	}
}

// Start регистрирует задачу и запускает планировщик
func (s *SyncScheduler) Start() error {
	if s.interval <= 0 {
		return fmt.Errorf("sync interval must be positive, got %s", s.interval)
	}

	_, err := s.scheduler.Every(s.interval).WaitForSchedule().Do(func() {
		summary := s.RunOnce(s.ctx)
		s.log.Info().
			Int("integrations", summary.Integrations).
			Int("succeeded", summary.Succeeded).
			Int("failed", summary.Failed).
			Msg("scheduled sync finished")
	})
	if err != nil {
		return fmt.Errorf("failed to schedule sync: %w", err)
	}

	s.log.Info().Dur("interval", s.interval).Msg("starting sync scheduler")
	s.scheduler.StartAsync()
	return nil
}

// Stop отменяет текущий прогон и останавливает планировщик.
// Контекст отменяется до gocron Stop: тот ждет завершения задачи
func (s *SyncScheduler) Stop() {
	s.cancel()
	s.scheduler.Stop()
}

// RunOnce синхронизирует все активные интеграции последовательно.
// Ошибка одной интеграции не останавливает прогон.
func (s *SyncScheduler) RunOnce(ctx context.Context) Summary {
	var summary Summary

	integrations, err := s.repo.FindActive(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list active integrations")
		return summary
	}

	today := s.nowFn().Truncate(24 * time.Hour)
	for _, in := range integrations {
		if ctx.Err() != nil {
			break
		}
		summary.Integrations++

		result, err := s.syncer.Sync(ctx, in, today, reservationWindowDays)
		if err != nil {
			summary.Failed++
			s.log.Error().Err(err).
				Str("integration_id", in.ID).
				Str("category", in.Category).
				Str("provider", in.Provider).
				Msg("scheduled sync failed")
			continue
		}

		summary.Succeeded++
		s.log.Debug().
			Str("integration_id", in.ID).
			Int("processed", result.RecordsProcessed).
			Int("failed", result.RecordsFailed).
			Msg("scheduled sync done")
	}

	return summary
}
