package _interface

import (
	"context"

	"hotel-ops-backend/internal/domain"
)

// IntegrationRepository - интерфейс для работы с интеграциями и их журналом
type IntegrationRepository interface {
	// Интеграции
	Create(ctx context.Context, integration *domain.Integration) error
	Update(ctx context.Context, integration *domain.Integration) error
	Delete(ctx context.Context, id string, hotelID string) error
	FindByID(ctx context.Context, id string) (*domain.Integration, error)
	FindByIDAndHotel(ctx context.Context, id string, hotelID string) (*domain.Integration, error)
	FindByHotelID(ctx context.Context, hotelID string) ([]*domain.Integration, error)
	FindActive(ctx context.Context) ([]*domain.Integration, error)

	// RecordSync обновляет учет синхронизаций и возвращает новое значение error_count
	RecordSync(ctx context.Context, id string, outcome domain.SyncOutcome) (int, error)

	// Журнал операций
	CreateLog(ctx context.Context, log *domain.IntegrationLog) error
	GetLogs(ctx context.Context, integrationID string, filter domain.LogFilter, limit, offset int) ([]*domain.IntegrationLog, int, error)
	LogStats(ctx context.Context, integrationID string) (*domain.LogStats, error)
}

// LogWriter - узкий интерфейс записи журнала
type LogWriter interface {
	CreateLog(ctx context.Context, log *domain.IntegrationLog) error
}

// GuestRepository - интерфейс для работы с гостями
type GuestRepository interface {
	// Upsert создает или обновляет гостя по паре (external_id, external_source)
	Upsert(ctx context.Context, guest *domain.Guest) (created bool, err error)
	// StartStay - Upsert для заезда: check_out_at прошлого проживания сбрасывается
	StartStay(ctx context.Context, guest *domain.Guest) (created bool, err error)
	FindByID(ctx context.Context, id string) (*domain.Guest, error)
	FindByExternalID(ctx context.Context, externalID, externalSource string) (*domain.Guest, error)
	FindByHotelID(ctx context.Context, hotelID string, limit, offset int) ([]*domain.Guest, int, error)
}

// UserRepository - интерфейс для работы с операторами
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
	FindUserByID(ctx context.Context, id string) (*domain.User, error)
}
