// Package memory - хранилище в памяти для тестов и локального запуска без PostgreSQL
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"hotel-ops-backend/internal/domain"
	repoInterface "hotel-ops-backend/internal/repository/interface"
)

// Store реализует все репозитории в памяти
type Store struct {
	mu           sync.RWMutex
	integrations map[string]*domain.Integration
	logs         []*domain.IntegrationLog
	guests       map[string]*domain.Guest
	users        map[string]*domain.User
	nowFn        func() time.Time
}

// NewStore создает пустое хранилище
func NewStore() *Store {
	return &Store{
		integrations: make(map[string]*domain.Integration),
		guests:       make(map[string]*domain.Guest),
		users:        make(map[string]*domain.User),
		nowFn:        func() time.Time { return time.Now().UTC() },
	}
}

func notFound(entity, id string) error {
	return fmt.Errorf("%s %s: %w", entity, id, domain.ErrNotFound)
}

func cloneIntegration(in *domain.Integration) *domain.Integration {
	out := *in
	if in.Config != nil {
		out.Config = make(domain.JSONMap, len(in.Config))
		for k, v := range in.Config {
			out.Config[k] = v
		}
	}
	if in.LastSyncAt != nil {
		t := *in.LastSyncAt
		out.LastSyncAt = &t
	}
	return &out
}

// Create создает интеграцию
func (s *Store) Create(_ context.Context, integration *domain.Integration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if integration.ID == "" {
		integration.ID = uuid.NewString()
	}
	now := s.nowFn()
	integration.CreatedAt = now
	integration.UpdatedAt = now
	s.integrations[integration.ID] = cloneIntegration(integration)
	return nil
}

// Update обновляет настройки интеграции
func (s *Store) Update(_ context.Context, integration *domain.Integration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.integrations[integration.ID]
	if !ok || current.HotelID != integration.HotelID {
		return notFound("integration", integration.ID)
	}
	next := cloneIntegration(integration)
	next.CreatedAt = current.CreatedAt
	next.LastSyncAt = current.LastSyncAt
	next.LastSyncStatus = current.LastSyncStatus
	next.ErrorCount = current.ErrorCount
	next.LastError = current.LastError
	next.UpdatedAt = s.nowFn()
	s.integrations[integration.ID] = next
	return nil
}

// Delete удаляет интеграцию вместе с журналом
func (s *Store) Delete(_ context.Context, id string, hotelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.integrations[id]
	if !ok || current.HotelID != hotelID {
		return notFound("integration", id)
	}
	delete(s.integrations, id)

	kept := s.logs[:0]
	for _, l := range s.logs {
		if l.IntegrationID != id {
			kept = append(kept, l)
		}
	}
	s.logs = kept
	return nil
}

// FindByID находит интеграцию по ID
func (s *Store) FindByID(_ context.Context, id string) (*domain.Integration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	in, ok := s.integrations[id]
	if !ok {
		return nil, notFound("integration", id)
	}
	return cloneIntegration(in), nil
}

// FindByIDAndHotel находит интеграцию по ID в пределах отеля
func (s *Store) FindByIDAndHotel(ctx context.Context, id string, hotelID string) (*domain.Integration, error) {
	in, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.HotelID != hotelID {
		return nil, notFound("integration", id)
	}
	return in, nil
}

// FindByHotelID находит интеграции отеля
func (s *Store) FindByHotelID(_ context.Context, hotelID string) ([]*domain.Integration, error) {
	return s.filterIntegrations(func(in *domain.Integration) bool { return in.HotelID == hotelID }), nil
}

// FindActive находит активные интеграции
func (s *Store) FindActive(_ context.Context) ([]*domain.Integration, error) {
	return s.filterIntegrations(func(in *domain.Integration) bool { return in.IsActive() }), nil
}

func (s *Store) filterIntegrations(keep func(*domain.Integration) bool) []*domain.Integration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Integration
	for _, in := range s.integrations {
		if keep(in) {
			out = append(out, cloneIntegration(in))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// RecordSync обновляет учет синхронизации
func (s *Store) RecordSync(_ context.Context, id string, outcome domain.SyncOutcome) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	in, ok := s.integrations[id]
	if !ok {
		return 0, notFound("integration", id)
	}
	at := outcome.At
	in.LastSyncAt = &at
	if outcome.Success {
		in.LastSyncStatus = domain.LogStatusSuccess
		in.ErrorCount = 0
		in.LastError = ""
	} else {
		in.LastSyncStatus = domain.LogStatusFailed
		in.ErrorCount++
		in.LastError = outcome.Error
		if outcome.DisableAfter > 0 && in.ErrorCount >= outcome.DisableAfter {
			in.Status = domain.StatusError
		}
	}
	in.UpdatedAt = s.nowFn()
	return in.ErrorCount, nil
}

// CreateLog добавляет запись журнала
func (s *Store) CreateLog(_ context.Context, log *domain.IntegrationLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log.ID = uuid.NewString()
	log.CreatedAt = s.nowFn()
	entry := *log
	s.logs = append(s.logs, &entry)
	return nil
}

// GetLogs возвращает журнал, новые записи первыми
func (s *Store) GetLogs(_ context.Context, integrationID string, filter domain.LogFilter, limit, offset int) ([]*domain.IntegrationLog, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*domain.IntegrationLog
	for i := len(s.logs) - 1; i >= 0; i-- {
		l := s.logs[i]
		if l.IntegrationID != integrationID {
			continue
		}
		if filter.OperationType != "" && l.OperationType != filter.OperationType {
			continue
		}
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		entry := *l
		matched = append(matched, &entry)
	}
	return page(matched, limit, offset), len(matched), nil
}

// LogStats считает записи журнала по итогам
func (s *Store) LogStats(_ context.Context, integrationID string) (*domain.LogStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &domain.LogStats{}
	var timed int
	var totalMS int64
	for _, l := range s.logs {
		if l.IntegrationID != integrationID {
			continue
		}
		stats.Total++
		switch l.Status {
		case domain.LogStatusSuccess:
			stats.Success++
		case domain.LogStatusFailed:
			stats.Failed++
		case domain.LogStatusPartial:
			stats.Partial++
		case domain.LogStatusPending:
			stats.Pending++
		}
		if l.Status != domain.LogStatusPending {
			timed++
			totalMS += l.ProcessingTimeMS
		}
		if stats.LastAt == nil || l.CreatedAt.After(*stats.LastAt) {
			t := l.CreatedAt
			stats.LastAt = &t
		}
	}
	if timed > 0 {
		stats.AvgProcessingMS = float64(totalMS) / float64(timed)
	}
	return stats, nil
}

// Logs возвращает все записи журнала в порядке добавления
func (s *Store) Logs() []domain.IntegrationLog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.IntegrationLog, 0, len(s.logs))
	for _, l := range s.logs {
		out = append(out, *l)
	}
	return out
}

// Upsert создает или обновляет гостя по (external_id, external_source)
func (s *Store) Upsert(_ context.Context, guest *domain.Guest) (bool, error) {
	return s.upsertGuest(guest, false), nil
}

// StartStay - Upsert при заезде, дата выезда прошлого проживания не переносится
func (s *Store) StartStay(_ context.Context, guest *domain.Guest) (bool, error) {
	return s.upsertGuest(guest, true), nil
}

func (s *Store) upsertGuest(guest *domain.Guest, newStay bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFn()
	for _, existing := range s.guests {
		if existing.ExternalID == guest.ExternalID && existing.ExternalSource == guest.ExternalSource {
			guest.ID = existing.ID
			guest.CreatedAt = existing.CreatedAt
			if guest.CheckInAt == nil {
				guest.CheckInAt = existing.CheckInAt
			}
			if guest.CheckOutAt == nil && !newStay {
				guest.CheckOutAt = existing.CheckOutAt
			}
			guest.UpdatedAt = now
			stored := *guest
			s.guests[guest.ID] = &stored
			return false
		}
	}

	guest.ID = uuid.NewString()
	guest.CreatedAt = now
	guest.UpdatedAt = now
	stored := *guest
	s.guests[guest.ID] = &stored
	return true
}

// FindByExternalID находит гостя по идентификатору во внешней системе
func (s *Store) FindByExternalID(_ context.Context, externalID, externalSource string) (*domain.Guest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, g := range s.guests {
		if g.ExternalID == externalID && g.ExternalSource == externalSource {
			out := *g
			return &out, nil
		}
	}
	return nil, notFound("guest", externalSource+"/"+externalID)
}

// FindGuestsByHotel возвращает страницу гостей отеля
func (s *Store) FindGuestsByHotel(_ context.Context, hotelID string, limit, offset int) ([]*domain.Guest, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*domain.Guest
	for _, g := range s.guests {
		if g.HotelID == hotelID {
			out := *g
			matched = append(matched, &out)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		a := strings.ToLower(matched[i].LastName + " " + matched[i].FirstName)
		b := strings.ToLower(matched[j].LastName + " " + matched[j].FirstName)
		return a < b
	})
	return page(matched, limit, offset), len(matched), nil
}

// FindGuestByID находит гостя по ID
func (s *Store) FindGuestByID(_ context.Context, id string) (*domain.Guest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.guests[id]
	if !ok {
		return nil, notFound("guest", id)
	}
	out := *g
	return &out, nil
}

// CreateUser создает оператора
func (s *Store) CreateUser(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return fmt.Errorf("user %s already exists: %w", user.Email, domain.ErrInvalidInput)
		}
	}
	user.ID = uuid.NewString()
	user.CreatedAt = s.nowFn()
	user.UpdatedAt = user.CreatedAt
	stored := *user
	s.users[user.ID] = &stored
	return nil
}

// FindUserByEmail находит оператора по email
func (s *Store) FindUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			out := *u
			return &out, nil
		}
	}
	return nil, notFound("user", email)
}

// FindUserByID находит оператора по ID
func (s *Store) FindUserByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, notFound("user", id)
	}
	out := *u
	return &out, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// Guests возвращает представление хранилища как GuestRepository
func (s *Store) Guests() repoInterface.GuestRepository {
	return guestRepository{s}
}

type guestRepository struct {
	*Store
}

func (r guestRepository) FindByID(ctx context.Context, id string) (*domain.Guest, error) {
	return r.Store.FindGuestByID(ctx, id)
}

func (r guestRepository) FindByHotelID(ctx context.Context, hotelID string, limit, offset int) ([]*domain.Guest, int, error) {
	return r.Store.FindGuestsByHotel(ctx, hotelID, limit, offset)
}
