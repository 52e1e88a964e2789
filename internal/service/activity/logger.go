// Package activity - журнал операций интеграций.
// Ошибка записи журнала никогда не прерывает основную операцию.
package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"hotel-ops-backend/internal/domain"
	"hotel-ops-backend/internal/metrics"
	repoInterface "hotel-ops-backend/internal/repository/interface"
)

const writeTimeout = 5 * time.Second

// Entry - одна запись журнала
type Entry struct {
	IntegrationID    string
	OperationType    string
	OperationName    string
	Direction        string
	Status           string
	RequestPayload   interface{}
	ResponsePayload  interface{}
	Err              error
	ErrorMessage     string
	ErrorCode        string
	ProcessingTime   time.Duration
	RecordsProcessed int
	RecordsSuccess   int
	RecordsFailed    int
	Metadata         map[string]interface{}
}

// Logger записывает журнал операций
type Logger struct {
	repo    repoInterface.LogWriter
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// NewLogger создает журнал. metrics может быть nil
func NewLogger(repo repoInterface.LogWriter, log zerolog.Logger, m *metrics.Metrics) *Logger {
	return &Logger{repo: repo, log: log, metrics: m}
}

// Record добавляет ровно одну запись и никогда не возвращает ошибку
func (l *Logger) Record(ctx context.Context, e Entry) {
	entry := l.build(e)

	// запись журнала не должна отменяться вместе с запросом клиента
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	if err := l.repo.CreateLog(ctx, entry); err != nil {
		l.log.Error().Err(err).
			Str("integration_id", e.IntegrationID).
			Str("operation_type", e.OperationType).
			Str("operation_name", e.OperationName).
			Str("status", e.Status).
			Msg("failed to write integration log")
		if l.metrics != nil {
			l.metrics.LogWriteFailures.Inc()
		}
		return
	}

	if l.metrics != nil {
		l.metrics.Operations.WithLabelValues(entry.OperationType, entry.Status).Inc()
	}
}

func (l *Logger) build(e Entry) *domain.IntegrationLog {
	entry := &domain.IntegrationLog{
		IntegrationID:    e.IntegrationID,
		OperationType:    e.OperationType,
		OperationName:    e.OperationName,
		Direction:        e.Direction,
		Status:           e.Status,
		RequestPayload:   encodePayload(e.RequestPayload),
		ResponsePayload:  encodePayload(e.ResponsePayload),
		ErrorMessage:     e.ErrorMessage,
		ErrorCode:        e.ErrorCode,
		ProcessingTimeMS: e.ProcessingTime.Milliseconds(),
		RecordsProcessed: e.RecordsProcessed,
		RecordsSuccess:   e.RecordsSuccess,
		RecordsFailed:    e.RecordsFailed,
		Metadata:         domain.JSONMap(e.Metadata),
	}

	if e.Err != nil {
		if entry.ErrorMessage == "" {
			entry.ErrorMessage = e.Err.Error()
		}
		if entry.ErrorCode == "" {
			entry.ErrorCode = domain.ErrorCode(e.Err)
		}
	}
	if entry.Direction == "" {
		entry.Direction = domain.DirectionOutbound
	}
	if entry.Status == "" {
		entry.Status = domain.LogStatusSuccess
		if e.Err != nil {
			entry.Status = domain.LogStatusFailed
		}
	}

	return entry
}

// encodePayload приводит полезную нагрузку к JSON-тексту
func encodePayload(v interface{}) domain.Payload {
	switch p := v.(type) {
	case nil:
		return nil
	case domain.Payload:
		return textOrMarker(p)
	case json.RawMessage:
		return textOrMarker(p)
	case []byte:
		return textOrMarker(p)
	case string:
		if json.Valid([]byte(p)) {
			return domain.Payload(p)
		}
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return marker(fmt.Sprintf("%T", v), err)
	}
	return raw
}

func textOrMarker(raw []byte) domain.Payload {
	if len(raw) == 0 {
		return nil
	}
	if json.Valid(raw) {
		return domain.Payload(raw)
	}
	quoted, _ := json.Marshal(string(raw))
	return quoted
}

func marker(typeName string, err error) domain.Payload {
	raw, _ := json.Marshal(map[string]string{
		"unserializable": typeName,
		"error":          err.Error(),
	})
	return raw
}
