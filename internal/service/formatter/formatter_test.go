package formatter

import (
	"errors"
	"strings"
	"testing"

	"hotel-ops-backend/internal/domain"
)

func TestRenderDefaultWelcome(t *testing.T) {
	f := New()
	g := &domain.Guest{FirstName: "Ana", LastName: "Lopez", RoomNumber: "512"}

	text, err := f.Render(nil, CheckInWelcome, GuestBindings(g))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if text.Title != "Welcome, Ana!" {
		t.Errorf("unexpected title %q", text.Title)
	}
	if !strings.Contains(text.Body, "Your room is 512") {
		t.Errorf("unexpected body %q", text.Body)
	}

	text, err = f.Render(nil, CheckInWelcome, GuestBindings(&domain.Guest{}))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if text.Title != "Welcome!" {
		t.Errorf("unexpected title for anonymous guest %q", text.Title)
	}
}

func TestRenderIntegrationOverride(t *testing.T) {
	f := New()
	in := &domain.Integration{Config: domain.JSONMap{
		"templates": map[string]interface{}{
			CheckOutFarewell: "Au revoir {{ guest.full_name }}",
			CheckInWelcome:   map[string]interface{}{"title": "Bienvenue {{ guest.first_name }}"},
		},
	}}
	g := &domain.Guest{FirstName: "Luc", LastName: "Martin"}

	text, err := f.Render(in, CheckOutFarewell, GuestBindings(g))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if text.Body != "Au revoir Luc Martin" || text.Title != "Thank you for staying with us" {
		t.Errorf("unexpected text %+v", text)
	}

	text, err = f.Render(in, CheckInWelcome, GuestBindings(g))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if text.Title != "Bienvenue Luc" || !strings.HasPrefix(text.Body, "We're glad") {
		t.Errorf("unexpected text %+v", text)
	}
}

func TestRenderRoomStatus(t *testing.T) {
	text, err := New().Render(nil, RoomStatus, map[string]interface{}{"room_number": "301", "status": "ready_for_guest"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if text.Body != "Your room is now ready for guest." {
		t.Errorf("unexpected body %q", text.Body)
	}
}

func TestRenderErrors(t *testing.T) {
	f := New()
	if _, err := f.Render(nil, "unknown", nil); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}

	in := &domain.Integration{Config: domain.JSONMap{
		"templates": map[string]interface{}{ChatMessage: "{% if %}"},
	}}
	if _, err := f.Render(in, ChatMessage, map[string]interface{}{"text": "hi"}); err == nil {
		t.Errorf("expected parse error for broken template")
	}
}
