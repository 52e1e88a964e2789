// Package notify - доставка уведомлений в открытые сокеты гостей
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"hotel-ops-backend/internal/metrics"
)

// Типы сообщений для гостя
const (
	TypeConnection   = "connection"
	TypeNotification = "notification"
	TypeSystem       = "system"
)

// ErrHubClosed возвращается при регистрации после остановки
var ErrHubClosed = errors.New("notification hub is closed")

// Message - конверт сообщения для гостя
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Conn - открытый сокет гостя
type Conn interface {
	Send(ctx context.Context, payload []byte) error
	Close() error
}

// Notifier доставляет сообщения гостям. Возвращает число получателей.
type Notifier interface {
	SendToGuest(ctx context.Context, guestID string, msg Message) (int, error)
	SendToGuests(ctx context.Context, guestIDs []string, msg Message) (int, error)
	Broadcast(ctx context.Context, msg Message) (int, error)
}

// Stats - число соединений и уникальных гостей
type Stats struct {
	TotalConnections int `json:"total_connections"`
	UniqueGuests     int `json:"unique_guests"`
}

// Hub - реестр сокетов гостей, живет от старта до остановки сервера
type Hub struct {
	mu     sync.RWMutex
	guests map[string]map[Conn]struct{}
	total  int
	closed bool

	log     zerolog.Logger
	metrics *metrics.Metrics
}

// NewHub создает реестр. metrics может быть nil
func NewHub(log zerolog.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		guests:  make(map[string]map[Conn]struct{}),
		log:     log,
		metrics: m,
	}
}

// Register добавляет сокет гостя. Аутентификация выполняется до вызова.
func (h *Hub) Register(guestID string, c Conn) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHubClosed
	}

	set, ok := h.guests[guestID]
	if !ok {
		set = make(map[Conn]struct{})
		h.guests[guestID] = set
	}
	if _, exists := set[c]; !exists {
		set[c] = struct{}{}
		h.total++
		h.gauge()
	}
	return nil
}

// Unregister удаляет сокет, возвращает false если его не было
func (h *Hub) Unregister(guestID string, c Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.remove(guestID, c)
}

func (h *Hub) remove(guestID string, c Conn) bool {
	set, ok := h.guests[guestID]
	if !ok {
		return false
	}
	if _, exists := set[c]; !exists {
		return false
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.guests, guestID)
	}
	h.total--
	h.gauge()
	return true
}

func (h *Hub) gauge() {
	if h.metrics != nil {
		h.metrics.Connections.Set(float64(h.total))
	}
}

type target struct {
	guestID string
	conn    Conn
}

// SendToGuest доставляет сообщение во все сокеты гостя
func (h *Hub) SendToGuest(ctx context.Context, guestID string, msg Message) (int, error) {
	return h.SendToGuests(ctx, []string{guestID}, msg)
}

// SendToGuests доставляет сообщение нескольким гостям
func (h *Hub) SendToGuests(ctx context.Context, guestIDs []string, msg Message) (int, error) {
	h.mu.RLock()
	var targets []target
	for _, id := range guestIDs {
		for c := range h.guests[id] {
			targets = append(targets, target{guestID: id, conn: c})
		}
	}
	h.mu.RUnlock()

	return h.deliver(ctx, targets, msg)
}

// Broadcast доставляет сообщение всем подключенным гостям
func (h *Hub) Broadcast(ctx context.Context, msg Message) (int, error) {
	h.mu.RLock()
	targets := make([]target, 0, h.total)
	for id, set := range h.guests {
		for c := range set {
			targets = append(targets, target{guestID: id, conn: c})
		}
	}
	h.mu.RUnlock()

	return h.deliver(ctx, targets, msg)
}

// deliver отправляет вне блокировки; сокет с ошибкой удаляется и закрывается
func (h *Hub) deliver(ctx context.Context, targets []target, msg Message) (int, error) {
	if len(targets) == 0 {
		return 0, nil
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal message: %w", err)
	}

	delivered := 0
	for _, t := range targets {
		if err := t.conn.Send(ctx, payload); err != nil {
			h.log.Debug().Err(err).Str("guest_id", t.guestID).Msg("dropping guest socket")
			if h.Unregister(t.guestID, t.conn) {
				t.conn.Close()
			}
			h.count("dropped")
			continue
		}
		delivered++
		h.count("delivered")
	}
	return delivered, nil
}

func (h *Hub) count(outcome string) {
	if h.metrics != nil {
		h.metrics.Deliveries.WithLabelValues(outcome).Inc()
	}
}

// Stats возвращает текущее число соединений
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return Stats{TotalConnections: h.total, UniqueGuests: len(h.guests)}
}

// StatsFor считает соединения только указанных гостей
func (h *Hub) StatsFor(guestIDs []string) Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var st Stats
	for _, id := range guestIDs {
		if n := len(h.guests[id]); n > 0 {
			st.TotalConnections += n
			st.UniqueGuests++
		}
	}
	return st
}

// Close закрывает все сокеты, после него Register отклоняется
func (h *Hub) Close() {
	h.mu.Lock()
	var conns []Conn
	for _, set := range h.guests {
		for c := range set {
			conns = append(conns, c)
		}
	}
	h.guests = make(map[string]map[Conn]struct{})
	h.total = 0
	h.closed = true
	h.gauge()
	h.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}
