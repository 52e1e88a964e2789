package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"hotel-ops-backend/internal/domain"
	repoInterface "hotel-ops-backend/internal/repository/interface"
	"hotel-ops-backend/internal/service/formatter"
	"hotel-ops-backend/internal/service/integration"
	"hotel-ops-backend/internal/service/notify"
)

// События по категориям
const (
	EventCheckCreated = "check_created"
	EventCheckUpdated = "check_updated"
	EventCheckVoided  = "check_voided"

	EventCheckIn           = "check_in"
	EventCheckOut          = "check_out"
	EventRoomStatusChanged = "room_status_changed"

	EventGuestUpdated        = "guest_updated"
	EventChatMessageReceived = "chat_message_received"
)

// Deps - общие зависимости обработчиков событий
type Deps struct {
	Guests    repoInterface.GuestRepository
	Providers *integration.Registry
	Notifier  notify.Notifier
	Formatter *formatter.Formatter
	Log       zerolog.Logger
	Now       func() time.Time
}

// DefaultHandlers - обработчики для всех трех категорий
func DefaultHandlers(deps Deps) []EventHandler {
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	return []EventHandler{
		&POSHandler{},
		&PMSHandler{deps: deps},
		&GuestHandler{deps: deps},
	}
}

// POSHandler - чеки POS только фиксируются в журнале
type POSHandler struct{}

func (h *POSHandler) Category() string { return domain.CategoryPOS }

func (h *POSHandler) CanHandle(eventType string) bool {
	switch eventType {
	case EventCheckCreated, EventCheckUpdated, EventCheckVoided:
		return true
	}
	return false
}

func (h *POSHandler) Handle(_ context.Context, _ *domain.Integration, event *domain.WebhookEvent) (map[string]interface{}, error) {
	data := integration.Record(event.Data)
	return map[string]interface{}{
		"check_id": data.String("check_id", "checkId", "id", "guid"),
		"total":    data.Float("total", "totalAmount", "amount"),
		"room":     data.String("room_number", "roomNumber"),
		"action":   event.EventType,
	}, nil
}

// PMSHandler - заезд, выезд и статус номера
type PMSHandler struct {
	deps Deps
}

func (h *PMSHandler) Category() string { return domain.CategoryPMS }

func (h *PMSHandler) CanHandle(eventType string) bool {
	switch eventType {
	case EventCheckIn, EventCheckOut, EventRoomStatusChanged:
		return true
	}
	return false
}

func (h *PMSHandler) Handle(ctx context.Context, in *domain.Integration, event *domain.WebhookEvent) (map[string]interface{}, error) {
	switch event.EventType {
	case EventCheckIn:
		return h.checkIn(ctx, in, event)
	case EventCheckOut:
		return h.checkOut(ctx, in, event)
	case EventRoomStatusChanged:
		return h.roomStatus(ctx, in, event)
	}
	return nil, fmt.Errorf("pms event %q: %w", event.EventType, domain.ErrUnsupportedEvent)
}

func (h *PMSHandler) checkIn(ctx context.Context, in *domain.Integration, event *domain.WebhookEvent) (map[string]interface{}, error) {
	data := integration.Record(event.Data)
	guest, err := transformGuest(h.deps, in, data)
	if err != nil {
		return nil, err
	}
	if guest.RoomNumber == "" {
		guest.RoomNumber = data.String("room_number", "roomNumber", "room")
	}
	guest.CheckInAt = eventTime(h.deps, event)
	guest.CheckOutAt = nil

	created, err := h.deps.Guests.StartStay(ctx, guest)
	if err != nil {
		return nil, fmt.Errorf("failed to save guest: %w", err)
	}

	delivered := notifyGuest(ctx, h.deps, in, guest, formatter.CheckInWelcome, formatter.GuestBindings(guest), "check_in")
	return map[string]interface{}{
		"guest_id":    guest.ID,
		"created":     created,
		"room_number": guest.RoomNumber,
		"delivered":   delivered,
	}, nil
}

func (h *PMSHandler) checkOut(ctx context.Context, in *domain.Integration, event *domain.WebhookEvent) (map[string]interface{}, error) {
	data := integration.Record(event.Data)
	externalID := data.String("guest_id", "guestId", "guest.id", "guest.guest_id")
	if externalID == "" {
		return nil, fmt.Errorf("check_out without guest id: %w", domain.ErrInvalidInput)
	}

	guest, err := h.deps.Guests.FindByExternalID(ctx, externalID, in.Provider)
	if err != nil {
		return nil, err
	}
	guest.CheckOutAt = eventTime(h.deps, event)
	if _, err := h.deps.Guests.Upsert(ctx, guest); err != nil {
		return nil, fmt.Errorf("failed to save guest: %w", err)
	}

	delivered := notifyGuest(ctx, h.deps, in, guest, formatter.CheckOutFarewell, formatter.GuestBindings(guest), "check_out")
	return map[string]interface{}{
		"guest_id":  guest.ID,
		"delivered": delivered,
	}, nil
}

// roomStatus фиксирует смену статуса; гостя уведомляем, если он указан
func (h *PMSHandler) roomStatus(ctx context.Context, in *domain.Integration, event *domain.WebhookEvent) (map[string]interface{}, error) {
	data := integration.Record(event.Data)
	room := data.String("room_number", "roomNumber", "room")
	status := data.String("status", "room_status", "roomStatus")
	if room == "" || status == "" {
		return nil, fmt.Errorf("room_status_changed requires room_number and status: %w", domain.ErrInvalidInput)
	}

	details := map[string]interface{}{"room_number": room, "status": status}

	externalID := data.String("guest_id", "guestId")
	if externalID == "" {
		return details, nil
	}
	guest, err := h.deps.Guests.FindByExternalID(ctx, externalID, in.Provider)
	if err != nil {
		// статус номера уже зафиксирован, неизвестный гость не ошибка
		h.deps.Log.Debug().Err(err).Str("guest_id", externalID).Msg("room status for unknown guest")
		return details, nil
	}

	bindings := formatter.GuestBindings(guest)
	bindings["room_number"] = room
	bindings["status"] = status
	details["guest_id"] = guest.ID
	details["delivered"] = notifyGuest(ctx, h.deps, in, guest, formatter.RoomStatus, bindings, "room_status")
	return details, nil
}

// GuestHandler - события системы управления гостями
type GuestHandler struct {
	deps Deps
}

func (h *GuestHandler) Category() string { return domain.CategoryGuestManagement }

func (h *GuestHandler) CanHandle(eventType string) bool {
	return eventType == EventGuestUpdated || eventType == EventChatMessageReceived
}

func (h *GuestHandler) Handle(ctx context.Context, in *domain.Integration, event *domain.WebhookEvent) (map[string]interface{}, error) {
	data := integration.Record(event.Data)

	if event.EventType == EventGuestUpdated {
		guest, err := transformGuest(h.deps, in, data)
		if err != nil {
			return nil, err
		}
		created, err := h.deps.Guests.Upsert(ctx, guest)
		if err != nil {
			return nil, fmt.Errorf("failed to save guest: %w", err)
		}
		return map[string]interface{}{"guest_id": guest.ID, "created": created}, nil
	}

	externalID := data.String("guest_id", "guestId")
	text := data.String("text", "message", "body")
	if externalID == "" || text == "" {
		return nil, fmt.Errorf("chat_message_received requires guest_id and text: %w", domain.ErrInvalidInput)
	}
	guest, err := h.deps.Guests.FindByExternalID(ctx, externalID, in.Provider)
	if err != nil {
		return nil, err
	}

	bindings := formatter.GuestBindings(guest)
	bindings["sender"] = data.String("sender", "author", "from")
	bindings["text"] = text
	delivered := notifyGuest(ctx, h.deps, in, guest, formatter.ChatMessage, bindings, "chat")

	return map[string]interface{}{
		"guest_id":        guest.ID,
		"conversation_id": data.String("conversation_id", "conversationId"),
		"delivered":       delivered,
	}, nil
}

// transformGuest использует преобразование провайдера интеграции
func transformGuest(deps Deps, in *domain.Integration, data integration.Record) (*domain.Guest, error) {
	provider, err := deps.Providers.Lookup(in.Category, in.Provider)
	if err != nil {
		return nil, err
	}

	raw := data
	if nested := data.Object("guest"); len(nested) > 0 {
		raw = nested
	}
	guest, err := provider.TransformGuest(raw)
	if err != nil {
		return nil, err
	}
	guest.HotelID = in.HotelID
	guest.ExternalSource = in.Provider
	return guest, nil
}

// notifyGuest доставляет уведомление; ошибка доставки не отменяет событие
func notifyGuest(ctx context.Context, deps Deps, in *domain.Integration, guest *domain.Guest, template string, bindings map[string]interface{}, category string) int {
	if deps.Notifier == nil || deps.Formatter == nil {
		return 0
	}

	text, err := deps.Formatter.Render(in, template, bindings)
	if err != nil {
		deps.Log.Error().Err(err).Str("template", template).Msg("failed to render notification")
		return 0
	}

	n, err := deps.Notifier.SendToGuest(ctx, guest.ID, notify.Message{
		Type: notify.TypeNotification,
		Data: map[string]interface{}{
			"title":          text.Title,
			"body":           text.Body,
			"category":       category,
			"integration_id": in.ID,
		},
	})
	if err != nil {
		deps.Log.Error().Err(err).Str("guest_id", guest.ID).Msg("failed to push notification")
	}
	return n
}

func eventTime(deps Deps, event *domain.WebhookEvent) *time.Time {
	if event.Timestamp != nil {
		t := event.Timestamp.UTC()
		return &t
	}
	t := deps.Now()
	return &t
}
