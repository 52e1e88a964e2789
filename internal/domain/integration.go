package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Категории интеграций
const (
	CategoryPOS             = "pos"
	CategoryPMS             = "pms"
	CategoryGuestManagement = "guest_management"
)

// Статусы интеграции
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusError    = "error"
	StatusTesting  = "testing"
)

// ValidCategory проверяет категорию интеграции
func ValidCategory(category string) bool {
	switch category {
	case CategoryPOS, CategoryPMS, CategoryGuestManagement:
		return true
	}
	return false
}

// ValidStatus проверяет статус интеграции
func ValidStatus(status string) bool {
	switch status {
	case StatusActive, StatusInactive, StatusError, StatusTesting:
		return true
	}
	return false
}

// User - оператор отеля (администратор)
type User struct {
	ID           string    `db:"id" json:"id"`
	HotelID      string    `db:"hotel_id" json:"hotel_id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Integration - подключение отеля к внешнему провайдеру
type Integration struct {
	ID             string               `db:"id" json:"id"`
	HotelID        string               `db:"hotel_id" json:"hotel_id"`
	Name           string               `db:"name" json:"name"`
	Category       string               `db:"category" json:"category"`
	Provider       string               `db:"provider" json:"provider"`
	Config         JSONMap              `db:"config" json:"config"`
	Credentials    EncryptedCredentials `db:"credentials" json:"-"`
	WebhookURL     string               `db:"webhook_url" json:"webhook_url"`
	WebhookSecret  string               `db:"webhook_secret" json:"-"`
	Status         string               `db:"status" json:"status"`
	LastSyncAt     *time.Time           `db:"last_sync_at" json:"last_sync_at"`
	LastSyncStatus string               `db:"last_sync_status" json:"last_sync_status"`
	ErrorCount     int                  `db:"error_count" json:"error_count"`
	LastError      string               `db:"last_error" json:"last_error"`
	CreatedAt      time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time            `db:"updated_at" json:"updated_at"`
}

// IsActive сообщает, разрешены ли синхронизации
func (i *Integration) IsActive() bool {
	return i.Status == StatusActive
}

// HasWebhookSecret сообщает, нужно ли проверять подпись вебхуков
func (i *Integration) HasWebhookSecret() bool {
	return strings.TrimSpace(i.WebhookSecret) != ""
}

// BaseURL возвращает базовый адрес API провайдера из config
func (i *Integration) BaseURL() string {
	for _, key := range []string{"base_url", "baseUrl"} {
		if v, ok := i.Config[key].(string); ok && v != "" {
			return strings.TrimRight(v, "/")
		}
	}
	return ""
}

// Endpoint возвращает путь операции из config.endpoints или значение по умолчанию
func (i *Integration) Endpoint(name, fallback string) string {
	var endpoints map[string]interface{}
	switch v := i.Config["endpoints"].(type) {
	case map[string]interface{}:
		endpoints = v
	case JSONMap:
		endpoints = v
	default:
		return fallback
	}
	if v, ok := endpoints[name].(string); ok && v != "" {
		return v
	}
	return fallback
}

// ConfigString читает строковый параметр конфигурации
func (i *Integration) ConfigString(key string) string {
	v, _ := i.Config[key].(string)
	return v
}

// SyncOutcome - результат попытки синхронизации для учета ошибок
type SyncOutcome struct {
	Success bool
	Error   string
	At      time.Time
	// DisableAfter - порог автоотключения, 0 означает "никогда"
	DisableAfter int
}

// EncryptedCredentials - зашифрованный набор секретов провайдера
type EncryptedCredentials struct {
	Encrypted string `json:"encrypted"`
	IV        string `json:"iv"`
	Salt      string `json:"salt"`
}

// IsZero сообщает, что секреты не заданы
func (c EncryptedCredentials) IsZero() bool {
	return c.Encrypted == "" && c.IV == "" && c.Salt == ""
}

func (c EncryptedCredentials) Value() (driver.Value, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (c *EncryptedCredentials) Scan(value interface{}) error {
	if value == nil {
		*c = EncryptedCredentials{}
		return nil
	}
	raw, err := scanBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, c)
}

// CredentialBundle - расшифрованные секреты провайдера, живут только в памяти
type CredentialBundle map[string]string

// Get возвращает первое непустое значение по списку ключей
func (b CredentialBundle) Get(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(b[k]); v != "" {
			return v
		}
	}
	return ""
}

// JSONMap представляет JSONB колонку
type JSONMap map[string]interface{}

func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return "{}", nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (j *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*j = JSONMap{}
		return nil
	}
	raw, err := scanBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, j)
}

// Payload - сериализованный JSON запроса или ответа
type Payload []byte

func (p Payload) Value() (driver.Value, error) {
	if len(p) == 0 {
		return nil, nil
	}
	return string(p), nil
}

func (p *Payload) Scan(value interface{}) error {
	if value == nil {
		*p = nil
		return nil
	}
	raw, err := scanBytes(value)
	if err != nil {
		return err
	}
	*p = append((*p)[:0], raw...)
	return nil
}

func (p Payload) MarshalJSON() ([]byte, error) {
	if len(p) == 0 {
		return []byte("null"), nil
	}
	return p, nil
}

func (p *Payload) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*p = nil
		return nil
	}
	*p = append((*p)[:0], b...)
	return nil
}

func scanBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported scan type %T", value)
	}
}
