// Package formatter - тексты уведомлений гостям на шаблонах liquid
package formatter

import (
	"fmt"
	"strings"
	"sync"

	"github.com/osteele/liquid"

	"hotel-ops-backend/internal/domain"
)

// Имена шаблонов
const (
	CheckInWelcome   = "check_in_welcome"
	CheckOutFarewell = "check_out_farewell"
	ChatMessage      = "chat_message"
	RoomStatus       = "room_status"
)

// Text - заголовок и текст уведомления
type Text struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

var defaults = map[string]Text{
	CheckInWelcome: {
		Title: "Welcome{% if guest.first_name != '' %}, {{ guest.first_name }}{% endif %}!",
		Body:  "We're glad to have you with us{% if guest.room_number != '' %}. Your room is {{ guest.room_number }}{% endif %}. Let us know if there is anything we can do.",
	},
	CheckOutFarewell: {
		Title: "Thank you for staying with us",
		Body:  "Safe travels{% if guest.first_name != '' %}, {{ guest.first_name }}{% endif %}. We hope to welcome you back soon.",
	},
	ChatMessage: {
		Title: "New message{% if sender != '' %} from {{ sender }}{% endif %}",
		Body:  "{{ text }}",
	},
	RoomStatus: {
		Title: "Room {{ room_number }}",
		Body:  "Your room is now {{ status | replace: '_', ' ' }}.",
	},
}

// Formatter рендерит уведомления. Шаблоны можно переопределить в config.templates интеграции.
type Formatter struct {
	engine *liquid.Engine

	mu    sync.RWMutex
	cache map[string]*liquid.Template
}

func New() *Formatter {
	return &Formatter{
		engine: liquid.NewEngine(),
		cache:  make(map[string]*liquid.Template),
	}
}

// Render рендерит шаблон name для интеграции in (in может быть nil)
func (f *Formatter) Render(in *domain.Integration, name string, bindings map[string]interface{}) (Text, error) {
	tpl, ok := defaults[name]
	if !ok {
		return Text{}, fmt.Errorf("template %q: %w", name, domain.ErrInvalidInput)
	}
	if in != nil {
		tpl = override(in, name, tpl)
	}

	title, err := f.render(tpl.Title, bindings)
	if err != nil {
		return Text{}, fmt.Errorf("template %s title: %w", name, err)
	}
	body, err := f.render(tpl.Body, bindings)
	if err != nil {
		return Text{}, fmt.Errorf("template %s body: %w", name, err)
	}

	return Text{Title: strings.TrimSpace(title), Body: strings.TrimSpace(body)}, nil
}

func (f *Formatter) render(src string, bindings map[string]interface{}) (string, error) {
	f.mu.RLock()
	t, ok := f.cache[src]
	f.mu.RUnlock()

	if !ok {
		parsed, serr := f.engine.ParseString(src)
		if serr != nil {
			return "", serr
		}
		t = parsed
		f.mu.Lock()
		f.cache[src] = t
		f.mu.Unlock()
	}

	out, serr := t.RenderString(bindings)
	if serr != nil {
		return "", serr
	}
	return out, nil
}

// override читает config.templates.<name>: строка заменяет текст, объект - title/body
func override(in *domain.Integration, name string, tpl Text) Text {
	var templates map[string]interface{}
	switch v := in.Config["templates"].(type) {
	case map[string]interface{}:
		templates = v
	case domain.JSONMap:
		templates = v
	default:
		return tpl
	}

	switch v := templates[name].(type) {
	case string:
		if v != "" {
			tpl.Body = v
		}
	case map[string]interface{}:
		if s, ok := v["title"].(string); ok && s != "" {
			tpl.Title = s
		}
		if s, ok := v["body"].(string); ok && s != "" {
			tpl.Body = s
		}
	}
	return tpl
}

// GuestBindings - переменные гостя для шаблонов
func GuestBindings(g *domain.Guest) map[string]interface{} {
	return map[string]interface{}{
		"guest": map[string]interface{}{
			"id":          g.ID,
			"first_name":  g.FirstName,
			"last_name":   g.LastName,
			"full_name":   g.FullName(),
			"room_number": g.RoomNumber,
			"language":    g.Language,
			"vip":         g.VIP,
		},
	}
}
