package domain

import (
	"encoding/json"
	"time"
)

// Guest - гость отеля, может быть связан с записью во внешней системе
type Guest struct {
	ID             string     `db:"id" json:"id"`
	HotelID        string     `db:"hotel_id" json:"hotel_id"`
	ExternalID     string     `db:"external_id" json:"external_id"`
	ExternalSource string     `db:"external_source" json:"external_source"`
	FirstName      string     `db:"first_name" json:"first_name"`
	LastName       string     `db:"last_name" json:"last_name"`
	Email          string     `db:"email" json:"email"`
	Phone          string     `db:"phone" json:"phone"`
	Language       string     `db:"language" json:"language"`
	RoomNumber     string     `db:"room_number" json:"room_number"`
	VIP            bool       `db:"vip" json:"vip"`
	Preferences    JSONMap    `db:"preferences" json:"preferences"`
	CheckInAt      *time.Time `db:"check_in_at" json:"check_in_at"`
	CheckOutAt     *time.Time `db:"check_out_at" json:"check_out_at"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// FullName возвращает имя для шаблонов уведомлений
func (g *Guest) FullName() string {
	switch {
	case g.FirstName == "":
		return g.LastName
	case g.LastName == "":
		return g.FirstName
	}
	return g.FirstName + " " + g.LastName
}

// Reservation - бронирование из PMS (не сохраняется, возвращается вызывающему)
type Reservation struct {
	ExternalID      string     `json:"external_id"`
	ConfirmationNo  string     `json:"confirmation_number"`
	GuestExternalID string     `json:"guest_external_id"`
	GuestName       string     `json:"guest_name"`
	RoomNumber      string     `json:"room_number"`
	RoomType        string     `json:"room_type"`
	Status          string     `json:"status"`
	Arrival         *time.Time `json:"arrival"`
	Departure       *time.Time `json:"departure"`
	Adults          int        `json:"adults"`
	Children        int        `json:"children"`
}

// Menu - меню точки продаж из POS
type Menu struct {
	ExternalID string     `json:"external_id"`
	Name       string     `json:"name"`
	Outlet     string     `json:"outlet"`
	Items      []MenuItem `json:"items"`
}

// MenuItem - позиция меню
type MenuItem struct {
	ExternalID string  `json:"external_id"`
	Name       string  `json:"name"`
	Category   string  `json:"category"`
	Price      float64 `json:"price"`
	Currency   string  `json:"currency"`
	Available  bool    `json:"available"`
}

// Feedback - отзыв гостя для системы управления гостями
type Feedback struct {
	GuestID  string                 `json:"guest_id"`
	Rating   int                    `json:"rating"`
	Comment  string                 `json:"comment"`
	Category string                 `json:"category"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ChatMessage - сообщение чата с гостем
type ChatMessage struct {
	GuestID        string `json:"guest_id"`
	ConversationID string `json:"conversation_id"`
	Sender         string `json:"sender"`
	Text           string `json:"text"`
}

// GuestNotification - уведомление, отправляемое гостю через провайдера
type GuestNotification struct {
	GuestID string `json:"guest_id"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	Channel string `json:"channel"`
}

// WebhookEvent - тело входящего вебхука
type WebhookEvent struct {
	EventType string                 `json:"event_type"`
	EventID   string                 `json:"event_id,omitempty"`
	Timestamp *time.Time             `json:"timestamp,omitempty"`
	Data      map[string]interface{} `json:"data"`
}

// DecodeData раскладывает data в структуру
func (e *WebhookEvent) DecodeData(v interface{}) error {
	raw, err := json.Marshal(e.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
