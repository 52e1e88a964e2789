package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"hotel-ops-backend/internal/domain"
)

// Пути по умолчанию, переопределяются через config.endpoints
const (
	defaultMenusEndpoint         = "/menus"
	defaultReservationsEndpoint  = "/reservations"
	defaultGuestsEndpoint        = "/guests"
	defaultGuestEndpoint         = "/guests/{id}"
	defaultFeedbackEndpoint      = "/feedback"
	defaultChatMessagesEndpoint  = "/chat/messages"
	defaultNotificationsEndpoint = "/notifications"
)

// MenuSync - результат синхронизации меню
type MenuSync struct {
	SyncResult
	Menus []*domain.Menu `json:"menus"`
}

// ReservationSync - результат синхронизации бронирований
type ReservationSync struct {
	SyncResult
	Reservations []*domain.Reservation `json:"reservations"`
}

// GuestSync - результат синхронизации гостей
type GuestSync struct {
	SyncResult
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// SyncMenus загружает меню точек продаж из POS
func (s *Service) SyncMenus(ctx context.Context, integrationID string) (*MenuSync, error) {
	sess, err := s.Open(ctx, integrationID, true)
	if err != nil {
		return nil, err
	}

	op := operation{opType: domain.OperationSync, name: "sync_menus", direction: domain.DirectionInbound, started: time.Now()}
	if err := sess.requireCategory(domain.CategoryPOS); err != nil {
		sess.finish(ctx, op, err)
		return nil, err
	}

	resp, err := sess.Request(ctx, http.MethodGet, sess.Integration.Endpoint("menus", defaultMenusEndpoint), nil, nil)
	if err != nil {
		sess.finish(ctx, op, err)
		return nil, err
	}

	raws, err := extractRecords(resp.Body, "menus")
	if err != nil {
		sess.finish(ctx, op, err)
		return nil, err
	}

	menus, result := transformAll(sess, "menu", raws, sess.Provider.TransformMenu)
	out := &MenuSync{SyncResult: result, Menus: menus}

	op.result = &result
	op.response = map[string]interface{}{"menus": len(menus)}
	sess.finish(ctx, op, nil)
	return out, nil
}

// SyncReservations загружает бронирования из PMS за период
func (s *Service) SyncReservations(ctx context.Context, integrationID string, start, end *time.Time) (*ReservationSync, error) {
	sess, err := s.Open(ctx, integrationID, true)
	if err != nil {
		return nil, err
	}

	filter := map[string]string{}
	if start != nil {
		filter["start_date"] = start.Format("2006-01-02")
	}
	if end != nil {
		filter["end_date"] = end.Format("2006-01-02")
	}

	op := operation{
		opType:    domain.OperationSync,
		name:      "sync_reservations",
		direction: domain.DirectionInbound,
		started:   time.Now(),
		request:   filter,
	}
	if err := sess.requireCategory(domain.CategoryPMS); err != nil {
		sess.finish(ctx, op, err)
		return nil, err
	}

	endpoint := withQuery(sess.Integration.Endpoint("reservations", defaultReservationsEndpoint), sess.Provider.QueryParams(filter))
	resp, err := sess.Request(ctx, http.MethodGet, endpoint, nil, nil)
	if err != nil {
		sess.finish(ctx, op, err)
		return nil, err
	}

	raws, err := extractRecords(resp.Body, "reservations")
	if err != nil {
		sess.finish(ctx, op, err)
		return nil, err
	}

	reservations, result := transformAll(sess, "reservation", raws, sess.Provider.TransformReservation)
	out := &ReservationSync{SyncResult: result, Reservations: reservations}

	op.result = &result
	op.response = map[string]interface{}{"reservations": len(reservations)}
	sess.finish(ctx, op, nil)
	return out, nil
}

// SyncGuestData загружает одного или всех гостей и сохраняет их по (external_id, external_source).
// Записи обрабатываются последовательно, ошибка одной записи не прерывает пакет.
func (s *Service) SyncGuestData(ctx context.Context, integrationID, guestID string) (*GuestSync, error) {
	sess, err := s.Open(ctx, integrationID, true)
	if err != nil {
		return nil, err
	}

	op := operation{
		opType:    domain.OperationSync,
		name:      "sync_guest_data",
		direction: domain.DirectionInbound,
		started:   time.Now(),
	}
	if guestID != "" {
		op.request = map[string]string{"guest_id": guestID}
	}
	if err := sess.requireCategory(domain.CategoryGuestManagement); err != nil {
		sess.finish(ctx, op, err)
		return nil, err
	}

	endpoint := sess.Integration.Endpoint("guests", defaultGuestsEndpoint)
	if guestID != "" {
		endpoint = expandID(sess.Integration.Endpoint("guest", defaultGuestEndpoint), guestID)
	}

	resp, err := sess.Request(ctx, http.MethodGet, endpoint, nil, nil)
	if err != nil {
		sess.finish(ctx, op, err)
		return nil, err
	}

	raws, err := extractRecords(resp.Body, "guests", "guest")
	if err != nil {
		sess.finish(ctx, op, err)
		return nil, err
	}

	out := &GuestSync{}
	for i, raw := range raws {
		created, err := sess.upsertGuest(ctx, raw)
		if err != nil {
			out.RecordsFailed++
			s.log.Error().Err(err).
				Str("integration_id", sess.Integration.ID).
				Int("index", i).
				Msg("failed to sync guest record")
			continue
		}
		out.RecordsSuccess++
		if created {
			out.Created++
		} else {
			out.Updated++
		}
	}
	out.RecordsProcessed = out.RecordsSuccess + out.RecordsFailed

	op.result = &out.SyncResult
	op.response = map[string]int{"created": out.Created, "updated": out.Updated}
	sess.finish(ctx, op, nil)
	return out, nil
}

func (sess *Session) upsertGuest(ctx context.Context, raw Record) (bool, error) {
	guest, err := sess.Provider.TransformGuest(raw)
	if err != nil {
		return false, err
	}
	guest.HotelID = sess.Integration.HotelID
	guest.ExternalSource = sess.Integration.Provider
	return sess.svc.guests.Upsert(ctx, guest)
}

// PostFeedback отправляет отзыв гостя в систему управления гостями
func (s *Service) PostFeedback(ctx context.Context, integrationID string, feedback domain.Feedback) (json.RawMessage, error) {
	return s.post(ctx, integrationID, "post_feedback", OutboundFeedback, "feedback", defaultFeedbackEndpoint, feedback)
}

// PostChatMessage отправляет сообщение чата
func (s *Service) PostChatMessage(ctx context.Context, integrationID string, msg domain.ChatMessage) (json.RawMessage, error) {
	return s.post(ctx, integrationID, "post_chat_message", OutboundChatMessage, "chat_messages", defaultChatMessagesEndpoint, msg)
}

// PostNotification отправляет уведомление гостю через провайдера
func (s *Service) PostNotification(ctx context.Context, integrationID string, n domain.GuestNotification) (json.RawMessage, error) {
	return s.post(ctx, integrationID, "post_notification", OutboundNotification, "notifications", defaultNotificationsEndpoint, n)
}

func (s *Service) post(ctx context.Context, integrationID, name, kind, endpointName, fallback string, payload interface{}) (json.RawMessage, error) {
	sess, err := s.Open(ctx, integrationID, true)
	if err != nil {
		return nil, err
	}

	op := operation{
		opType:    domain.OperationAPICall,
		name:      name,
		direction: domain.DirectionOutbound,
		started:   time.Now(),
		request:   payload,
	}
	if err := sess.requireCategory(domain.CategoryGuestManagement); err != nil {
		sess.finish(ctx, op, err)
		return nil, err
	}

	body, err := sess.Provider.TransformOutbound(kind, payload)
	if err != nil {
		sess.finish(ctx, op, err)
		return nil, err
	}

	resp, err := sess.Request(ctx, http.MethodPost, sess.Integration.Endpoint(endpointName, fallback), body, nil)
	if err != nil {
		sess.finish(ctx, op, err)
		return nil, err
	}

	op.response = resp.Body
	sess.finish(ctx, op, nil)
	return rawJSON(resp.Body), nil
}

// GetFeedback читает отзывы с фильтром
func (s *Service) GetFeedback(ctx context.Context, integrationID string, filter map[string]string) ([]Record, error) {
	return s.list(ctx, integrationID, "get_feedback", "feedback", defaultFeedbackEndpoint, filter)
}

// GetChatMessages читает сообщения чата с фильтром
func (s *Service) GetChatMessages(ctx context.Context, integrationID string, filter map[string]string) ([]Record, error) {
	return s.list(ctx, integrationID, "get_chat_messages", "chat_messages", defaultChatMessagesEndpoint, filter)
}

// GetNotifications читает уведомления с фильтром
func (s *Service) GetNotifications(ctx context.Context, integrationID string, filter map[string]string) ([]Record, error) {
	return s.list(ctx, integrationID, "get_notifications", "notifications", defaultNotificationsEndpoint, filter)
}

func (s *Service) list(ctx context.Context, integrationID, name, endpointName, fallback string, filter map[string]string) ([]Record, error) {
	sess, err := s.Open(ctx, integrationID, true)
	if err != nil {
		return nil, err
	}

	op := operation{
		opType:    domain.OperationAPICall,
		name:      name,
		direction: domain.DirectionInbound,
		started:   time.Now(),
		request:   filter,
	}
	if err := sess.requireCategory(domain.CategoryGuestManagement); err != nil {
		sess.finish(ctx, op, err)
		return nil, err
	}

	endpoint := withQuery(sess.Integration.Endpoint(endpointName, fallback), sess.Provider.QueryParams(filter))
	resp, err := sess.Request(ctx, http.MethodGet, endpoint, nil, nil)
	if err != nil {
		sess.finish(ctx, op, err)
		return nil, err
	}

	records, err := extractRecords(resp.Body, endpointName)
	if err != nil {
		sess.finish(ctx, op, err)
		return nil, err
	}

	op.response = map[string]int{"records": len(records)}
	sess.finish(ctx, op, nil)
	return records, nil
}

// Sync запускает синхронизацию по категории интеграции. PMS берет окно from..from+days.
func (s *Service) Sync(ctx context.Context, in *domain.Integration, from time.Time, days int) (SyncResult, error) {
	switch in.Category {
	case domain.CategoryPOS:
		res, err := s.SyncMenus(ctx, in.ID)
		if err != nil {
			return SyncResult{}, err
		}
		return res.SyncResult, nil
	case domain.CategoryPMS:
		end := from.AddDate(0, 0, days)
		res, err := s.SyncReservations(ctx, in.ID, &from, &end)
		if err != nil {
			return SyncResult{}, err
		}
		return res.SyncResult, nil
	case domain.CategoryGuestManagement:
		res, err := s.SyncGuestData(ctx, in.ID, "")
		if err != nil {
			return SyncResult{}, err
		}
		return res.SyncResult, nil
	}
	return SyncResult{}, fmt.Errorf("category %q: %w", in.Category, domain.ErrUnsupportedProvider)
}

func rawJSON(body []byte) json.RawMessage {
	if len(body) == 0 || !json.Valid(body) {
		quoted, _ := json.Marshal(string(body))
		return quoted
	}
	return json.RawMessage(body)
}
