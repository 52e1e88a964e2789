package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"hotel-ops-backend/internal/domain"
	repoInterface "hotel-ops-backend/internal/repository/interface"
)

const integrationColumns = `id, hotel_id, name, category, provider, config, credentials, webhook_url, webhook_secret,
        status, last_sync_at, last_sync_status, error_count, last_error, created_at, updated_at`

// IntegrationRepository - PostgreSQL реализация
type IntegrationRepository struct {
	db *sqlx.DB
}

// NewIntegrationRepository создает новый репозиторий
func NewIntegrationRepository(db *sqlx.DB) repoInterface.IntegrationRepository {
	return &IntegrationRepository{db: db}
}

// Create создает новую интеграцию
func (r *IntegrationRepository) Create(ctx context.Context, integration *domain.Integration) error {
	query := `
        INSERT INTO integrations (id, hotel_id, name, category, provider, config, credentials, webhook_url, webhook_secret, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
        RETURNING id, created_at, updated_at
    `

	// ID может быть выдан заранее, чтобы построить webhook_url
	if integration.ID == "" {
		integration.ID = uuid.NewString()
	}

	row := r.db.QueryRowContext(ctx, query,
		integration.ID,
		integration.HotelID,
		integration.Name,
		integration.Category,
		integration.Provider,
		integration.Config,
		integration.Credentials,
		integration.WebhookURL,
		integration.WebhookSecret,
		integration.Status,
	)

	return row.Scan(&integration.ID, &integration.CreatedAt, &integration.UpdatedAt)
}

// Update обновляет настройки интеграции (без учета синхронизаций)
func (r *IntegrationRepository) Update(ctx context.Context, integration *domain.Integration) error {
	if err := checkID("integration", integration.ID); err != nil {
		return err
	}

	query := `
        UPDATE integrations
        SET name = $1, provider = $2, config = $3, credentials = $4, webhook_url = $5, webhook_secret = $6, status = $7, updated_at = NOW()
        WHERE id = $8 AND hotel_id = $9
    `

	result, err := r.db.ExecContext(ctx, query,
		integration.Name,
		integration.Provider,
		integration.Config,
		integration.Credentials,
		integration.WebhookURL,
		integration.WebhookSecret,
		integration.Status,
		integration.ID,
		integration.HotelID,
	)
	if err != nil {
		return err
	}

	return expectAffected(result, "integration", integration.ID)
}

// Delete удаляет интеграцию, журнал удаляется каскадно
func (r *IntegrationRepository) Delete(ctx context.Context, id string, hotelID string) error {
	if err := checkID("integration", id); err != nil {
		return err
	}
	query := `DELETE FROM integrations WHERE id = $1 AND hotel_id = $2`

	result, err := r.db.ExecContext(ctx, query, id, hotelID)
	if err != nil {
		return err
	}

	return expectAffected(result, "integration", id)
}

// FindByID находит интеграцию по ID
func (r *IntegrationRepository) FindByID(ctx context.Context, id string) (*domain.Integration, error) {
	if err := checkID("integration", id); err != nil {
		return nil, err
	}
	var integration domain.Integration

	query := `SELECT ` + integrationColumns + ` FROM integrations WHERE id = $1`

	if err := r.db.GetContext(ctx, &integration, query, id); err != nil {
		return nil, notFound(err, "integration", id)
	}

	return &integration, nil
}

// FindByIDAndHotel находит интеграцию по ID в пределах отеля
func (r *IntegrationRepository) FindByIDAndHotel(ctx context.Context, id string, hotelID string) (*domain.Integration, error) {
	if err := checkID("integration", id); err != nil {
		return nil, err
	}
	var integration domain.Integration

	query := `SELECT ` + integrationColumns + ` FROM integrations WHERE id = $1 AND hotel_id = $2`

	if err := r.db.GetContext(ctx, &integration, query, id, hotelID); err != nil {
		return nil, notFound(err, "integration", id)
	}

	return &integration, nil
}

// FindByHotelID находит все интеграции отеля
func (r *IntegrationRepository) FindByHotelID(ctx context.Context, hotelID string) ([]*domain.Integration, error) {
	var integrations []*domain.Integration

	query := `SELECT ` + integrationColumns + ` FROM integrations WHERE hotel_id = $1 ORDER BY created_at DESC`

	if err := r.db.SelectContext(ctx, &integrations, query, hotelID); err != nil {
		return nil, err
	}

	return integrations, nil
}

// FindActive находит все активные интеграции (для планировщика)
func (r *IntegrationRepository) FindActive(ctx context.Context) ([]*domain.Integration, error) {
	var integrations []*domain.Integration

	query := `SELECT ` + integrationColumns + ` FROM integrations WHERE status = $1 ORDER BY created_at`

	if err := r.db.SelectContext(ctx, &integrations, query, domain.StatusActive); err != nil {
		return nil, err
	}

	return integrations, nil
}

// RecordSync обновляет учет синхронизации. Конкурентные вызовы не блокируются: последний писатель выигрывает.
func (r *IntegrationRepository) RecordSync(ctx context.Context, id string, outcome domain.SyncOutcome) (int, error) {
	if err := checkID("integration", id); err != nil {
		return 0, err
	}
	query := `
        UPDATE integrations
        SET last_sync_at = $2,
            last_sync_status = $3,
            error_count = CASE WHEN $4::boolean THEN 0 ELSE error_count + 1 END,
            last_error = CASE WHEN $4::boolean THEN '' ELSE $5 END,
            status = CASE
                WHEN NOT $4::boolean AND $6::int > 0 AND error_count + 1 >= $6::int THEN 'error'
                ELSE status
            END,
            updated_at = NOW()
        WHERE id = $1
        RETURNING error_count
    `

	syncStatus := domain.LogStatusSuccess
	if !outcome.Success {
		syncStatus = domain.LogStatusFailed
	}

	var errorCount int
	err := r.db.QueryRowContext(ctx, query,
		id,
		outcome.At,
		syncStatus,
		outcome.Success,
		outcome.Error,
		outcome.DisableAfter,
	).Scan(&errorCount)
	if err != nil {
		return 0, notFound(err, "integration", id)
	}

	return errorCount, nil
}

// CreateLog добавляет запись журнала
func (r *IntegrationRepository) CreateLog(ctx context.Context, log *domain.IntegrationLog) error {
	query := `
        INSERT INTO integration_logs (integration_id, operation_type, operation_name, direction, status,
            request_payload, response_payload, error_message, error_code, processing_time_ms,
            records_processed, records_success, records_failed, metadata, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW())
        RETURNING id, created_at
    `

	return r.db.QueryRowContext(ctx, query,
		log.IntegrationID,
		log.OperationType,
		log.OperationName,
		log.Direction,
		log.Status,
		log.RequestPayload,
		log.ResponsePayload,
		log.ErrorMessage,
		log.ErrorCode,
		log.ProcessingTimeMS,
		log.RecordsProcessed,
		log.RecordsSuccess,
		log.RecordsFailed,
		log.Metadata,
	).Scan(&log.ID, &log.CreatedAt)
}

// GetLogs получает журнал операций интеграции
func (r *IntegrationRepository) GetLogs(ctx context.Context, integrationID string, filter domain.LogFilter, limit, offset int) ([]*domain.IntegrationLog, int, error) {
	var logs []*domain.IntegrationLog
	var total int

	where := []string{"integration_id = $1"}
	args := []interface{}{integrationID}
	if filter.OperationType != "" {
		args = append(args, filter.OperationType)
		where = append(where, fmt.Sprintf("operation_type = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	clause := strings.Join(where, " AND ")

	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM integration_logs WHERE `+clause, args...); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
        SELECT id, integration_id, operation_type, operation_name, direction, status,
            request_payload, response_payload, error_message, error_code, processing_time_ms,
            records_processed, records_success, records_failed, metadata, created_at
        FROM integration_logs
        WHERE %s
        ORDER BY created_at DESC
        LIMIT $%d OFFSET $%d
    `, clause, len(args)+1, len(args)+2)

	args = append(args, limit, offset)
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}

// LogStats считает записи журнала по итогам
func (r *IntegrationRepository) LogStats(ctx context.Context, integrationID string) (*domain.LogStats, error) {
	var row logStatsRow
	if err := r.db.GetContext(ctx, &row, logStatsQuery, integrationID); err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func expectAffected(result sql.Result, entity, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%s %s: %w", entity, id, domain.ErrNotFound)
	}
	return nil
}

// checkID отсекает идентификаторы, которые не могут быть UUID:
// иначе PostgreSQL вернет ошибку приведения типа вместо пустого результата
func checkID(entity, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%s %s: %w", entity, id, domain.ErrNotFound)
	}
	return nil
}

func notFound(err error, entity, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", entity, id, domain.ErrNotFound)
	}
	return err
}
