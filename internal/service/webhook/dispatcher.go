// Package webhook - прием подписанных вебхуков провайдеров и маршрутизация по (категория, event_type)
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"hotel-ops-backend/internal/domain"
	"hotel-ops-backend/internal/metrics"
	repoInterface "hotel-ops-backend/internal/repository/interface"
	"hotel-ops-backend/internal/service/activity"
)

// EventHandler обрабатывает события одной категории интеграций
type EventHandler interface {
	Category() string
	CanHandle(eventType string) bool
	Handle(ctx context.Context, in *domain.Integration, event *domain.WebhookEvent) (map[string]interface{}, error)
}

// Result - итог обработки вебхука
type Result struct {
	IntegrationID string                 `json:"integration_id"`
	EventType     string                 `json:"event_type"`
	Status        string                 `json:"status"`
	Details       map[string]interface{} `json:"details,omitempty"`
}

// Dispatcher проверяет подпись и передает событие обработчику категории
type Dispatcher struct {
	repo     repoInterface.IntegrationRepository
	activity *activity.Logger
	handlers map[string][]EventHandler
	log      zerolog.Logger
	metrics  *metrics.Metrics
}

// NewDispatcher создает диспетчер. metrics может быть nil
func NewDispatcher(
	repo repoInterface.IntegrationRepository,
	activityLog *activity.Logger,
	log zerolog.Logger,
	m *metrics.Metrics,
	handlers ...EventHandler,
) *Dispatcher {
	d := &Dispatcher{
		repo:     repo,
		activity: activityLog,
		handlers: make(map[string][]EventHandler),
		log:      log,
		metrics:  m,
	}
	for _, h := range handlers {
		d.RegisterHandler(h)
	}
	return d
}

// RegisterHandler добавляет обработчик категории
func (d *Dispatcher) RegisterHandler(h EventHandler) {
	d.handlers[h.Category()] = append(d.handlers[h.Category()], h)
}

// Handle обрабатывает вебхук. Каждый исход дает ровно одну запись журнала.
func (d *Dispatcher) Handle(ctx context.Context, integrationID string, headers http.Header, body []byte) (*Result, error) {
	start := time.Now()

	in, err := d.repo.FindByID(ctx, integrationID)
	if err != nil {
		// без интеграции записать журнал некуда
		d.log.Warn().Err(err).Str("integration_id", integrationID).Msg("webhook for unknown integration")
		d.count("unknown", "not_found")
		return nil, err
	}

	entry := activity.Entry{
		IntegrationID:  in.ID,
		OperationType:  domain.OperationWebhook,
		OperationName:  "webhook",
		Direction:      domain.DirectionInbound,
		RequestPayload: body,
		Metadata:       map[string]interface{}{"signed": in.HasWebhookSecret()},
	}
	fail := func(err error) (*Result, error) {
		entry.Status = domain.LogStatusFailed
		entry.Err = err
		entry.ProcessingTime = time.Since(start)
		d.activity.Record(ctx, entry)
		d.count(in.Category, domain.ErrorCode(err))
		return nil, err
	}

	if in.HasWebhookSecret() {
		signature := signatureFrom(headers)
		if signature == "" {
			entry.OperationName = "signature_validation"
			return fail(fmt.Errorf("missing signature header: %w", domain.ErrInvalidSignature))
		}
		if !Verify(in.WebhookSecret, body, signature) {
			entry.OperationName = "signature_validation"
			return fail(fmt.Errorf("signature mismatch: %w", domain.ErrInvalidSignature))
		}
	}

	var event domain.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fail(fmt.Errorf("malformed webhook body: %v: %w", err, domain.ErrInvalidInput))
	}
	event.EventType = strings.TrimSpace(event.EventType)
	if event.EventType == "" {
		return fail(fmt.Errorf("event_type is required: %w", domain.ErrInvalidInput))
	}
	if event.Data == nil {
		event.Data = map[string]interface{}{}
	}

	entry.OperationName = event.EventType
	if event.EventID != "" {
		entry.Metadata["event_id"] = event.EventID
	}

	handler := d.find(in.Category, event.EventType)
	if handler == nil {
		return fail(fmt.Errorf("%s event %q: %w", in.Category, event.EventType, domain.ErrUnsupportedEvent))
	}

	details, err := handler.Handle(ctx, in, &event)
	if err != nil {
		return fail(err)
	}

	entry.Status = domain.LogStatusSuccess
	entry.ResponsePayload = details
	entry.ProcessingTime = time.Since(start)
	entry.RecordsProcessed = 1
	entry.RecordsSuccess = 1
	d.activity.Record(ctx, entry)
	d.count(in.Category, "processed")

	return &Result{
		IntegrationID: in.ID,
		EventType:     event.EventType,
		Status:        "processed",
		Details:       details,
	}, nil
}

func (d *Dispatcher) find(category, eventType string) EventHandler {
	for _, h := range d.handlers[category] {
		if h.CanHandle(eventType) {
			return h
		}
	}
	return nil
}

func (d *Dispatcher) count(category, outcome string) {
	if d.metrics != nil {
		d.metrics.Webhooks.WithLabelValues(category, strings.ToLower(outcome)).Inc()
	}
}
