package integration

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"hotel-ops-backend/internal/domain"
)

// Виды исходящих сообщений для TransformOutbound
const (
	OutboundFeedback     = "feedback"
	OutboundChatMessage  = "chat_message"
	OutboundNotification = "notification"
)

// TestSpec - фиксированная форма проверочного запроса провайдера
type TestSpec struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    interface{}
}

// Provider - возможности конкретного провайдера.
// Общий конвейер запросов вызывает только эти методы.
type Provider interface {
	Name() string
	Category() string
	BuildAuthHeaders(in *domain.Integration, creds domain.CredentialBundle) map[string]string
	TestConnection(in *domain.Integration, creds domain.CredentialBundle) TestSpec
	TransformGuest(raw Record) (*domain.Guest, error)
	TransformReservation(raw Record) (*domain.Reservation, error)
	TransformMenu(raw Record) (*domain.Menu, error)
	TransformOutbound(kind string, payload interface{}) (interface{}, error)
	QueryParams(filter map[string]string) url.Values
}

// BaseProvider - поведение по умолчанию, встраивается в конкретных провайдеров
type BaseProvider struct {
	name     string
	category string
}

// NewGenericProvider создает провайдера по умолчанию для категории
func NewGenericProvider(category string) *BaseProvider {
	return &BaseProvider{name: "generic", category: category}
}

func (p *BaseProvider) Name() string     { return p.name }
func (p *BaseProvider) Category() string { return p.category }

// BuildAuthHeaders выбирает схему по приоритету: API-ключ, bearer, basic
func (p *BaseProvider) BuildAuthHeaders(in *domain.Integration, creds domain.CredentialBundle) map[string]string {
	headers := make(map[string]string)

	if key := creds.Get("api_key", "apiKey"); key != "" {
		name := in.ConfigString("api_key_header")
		if name == "" {
			name = "X-API-Key"
		}
		headers[name] = key
		return headers
	}

	if token := creds.Get("access_token", "bearer_token", "token"); token != "" {
		headers["Authorization"] = "Bearer " + token
		return headers
	}

	if user := creds.Get("username"); user != "" {
		headers["Authorization"] = basicAuth(user, creds.Get("password"))
	}

	return headers
}

// TestConnection для неизвестных провайдеров: GET на config.testEndpoint или {base}/health.
// Здесь bearer проверяется раньше API-ключа.
func (p *BaseProvider) TestConnection(in *domain.Integration, creds domain.CredentialBundle) TestSpec {
	target := in.ConfigString("testEndpoint")
	if target == "" {
		target = in.ConfigString("test_endpoint")
	}
	switch {
	case target == "":
		target = in.BaseURL() + "/health"
	case !isAbsolute(target):
		target = joinURL(in.BaseURL(), target)
	}

	headers := map[string]string{}
	if token := creds.Get("access_token", "bearer_token", "token"); token != "" {
		headers["Authorization"] = "Bearer " + token
	} else if key := creds.Get("api_key", "apiKey"); key != "" {
		headers["X-API-Key"] = key
	}

	return TestSpec{Method: http.MethodGet, URL: target, Headers: headers}
}

func (p *BaseProvider) TransformGuest(raw Record) (*domain.Guest, error) {
	id := raw.String("id", "guest_id", "guestId", "external_id")
	if id == "" {
		return nil, fmt.Errorf("guest record without id: %w", domain.ErrInvalidInput)
	}
	return &domain.Guest{
		ExternalID:  id,
		FirstName:   raw.String("first_name", "firstName"),
		LastName:    raw.String("last_name", "lastName"),
		Email:       raw.String("email"),
		Phone:       raw.String("phone", "phone_number"),
		Language:    raw.String("language", "locale"),
		RoomNumber:  raw.String("room_number", "roomNumber", "room"),
		VIP:         raw.Bool("vip", "is_vip"),
		Preferences: domain.JSONMap(raw.Object("preferences")),
		CheckInAt:   raw.Time("check_in", "checkIn", "arrival"),
		CheckOutAt:  raw.Time("check_out", "checkOut", "departure"),
	}, nil
}

func (p *BaseProvider) TransformReservation(raw Record) (*domain.Reservation, error) {
	id := raw.String("id", "reservation_id", "reservationId")
	if id == "" {
		return nil, fmt.Errorf("reservation record without id: %w", domain.ErrInvalidInput)
	}
	return &domain.Reservation{
		ExternalID:      id,
		ConfirmationNo:  raw.String("confirmation_number", "confirmationNumber"),
		GuestExternalID: raw.String("guest_id", "guestId", "guest.id"),
		GuestName:       raw.String("guest_name", "guestName", "guest.name"),
		RoomNumber:      raw.String("room_number", "roomNumber", "room"),
		RoomType:        raw.String("room_type", "roomType"),
		Status:          raw.String("status"),
		Arrival:         raw.Time("arrival", "arrival_date", "check_in"),
		Departure:       raw.Time("departure", "departure_date", "check_out"),
		Adults:          raw.Int("adults"),
		Children:        raw.Int("children"),
	}, nil
}

func (p *BaseProvider) TransformMenu(raw Record) (*domain.Menu, error) {
	id := raw.String("id", "menu_id", "menuId")
	if id == "" {
		return nil, fmt.Errorf("menu record without id: %w", domain.ErrInvalidInput)
	}
	menu := &domain.Menu{
		ExternalID: id,
		Name:       raw.String("name"),
		Outlet:     raw.String("outlet", "outlet_name"),
	}
	for _, item := range raw.List("items") {
		menu.Items = append(menu.Items, domain.MenuItem{
			ExternalID: item.String("id", "item_id"),
			Name:       item.String("name"),
			Category:   item.String("category"),
			Price:      item.Float("price"),
			Currency:   item.String("currency"),
			Available:  !item.Bool("unavailable", "out_of_stock"),
		})
	}
	return menu, nil
}

// TransformOutbound по умолчанию отправляет данные как есть
func (p *BaseProvider) TransformOutbound(_ string, payload interface{}) (interface{}, error) {
	return payload, nil
}

func (p *BaseProvider) QueryParams(filter map[string]string) url.Values {
	q := url.Values{}
	for k, v := range filter {
		if v != "" {
			q.Set(k, v)
		}
	}
	return q
}

func basicAuth(user, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+password))
}

func isAbsolute(endpoint string) bool {
	return strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://")
}

func joinURL(base, endpoint string) string {
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return base + endpoint
}

// Registry хранит провайдеров по категории и имени
type Registry struct {
	providers map[string]Provider
	generic   map[string]Provider
}

// NewRegistry создает реестр с провайдерами по умолчанию для каждой категории
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{
		providers: make(map[string]Provider),
		generic: map[string]Provider{
			domain.CategoryPOS:             NewGenericProvider(domain.CategoryPOS),
			domain.CategoryPMS:             NewGenericProvider(domain.CategoryPMS),
			domain.CategoryGuestManagement: NewGenericProvider(domain.CategoryGuestManagement),
		},
	}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// DefaultRegistry - все встроенные провайдеры
func DefaultRegistry() *Registry {
	return NewRegistry(
		NewSimphonyProvider(),
		NewToastProvider(),
		NewOperaProvider(),
		NewCloudbedsProvider(),
		NewRevinateProvider(),
	)
}

func (r *Registry) Register(p Provider) {
	r.providers[p.Category()+"/"+p.Name()] = p
}

// Lookup находит провайдера, неизвестное имя получает провайдера категории по умолчанию
func (r *Registry) Lookup(category, name string) (Provider, error) {
	if p, ok := r.providers[category+"/"+name]; ok {
		return p, nil
	}
	if p, ok := r.generic[category]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("category %q: %w", category, domain.ErrUnsupportedProvider)
}

// Known сообщает, есть ли у провайдера собственная реализация
func (r *Registry) Known(category, name string) bool {
	_, ok := r.providers[category+"/"+name]
	return ok
}
