package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"hotel-ops-backend/internal/domain"
)

func serve(m *AuthMiddleware, req *http.Request) (*httptest.ResponseRecorder, string) {
	e := echo.New()
	var hotel string
	handler := m.RequireAuth(func(c echo.Context) error {
		hotel = HotelID(c)
		return c.NoContent(http.StatusNoContent)
	})
	rec := httptest.NewRecorder()
	if err := handler(e.NewContext(req, rec)); err != nil {
		e.HTTPErrorHandler(err, e.NewContext(req, rec))
	}
	return rec, hotel
}

func TestRequireAuth(t *testing.T) {
	m := NewAuthMiddleware("secret")
	operator, err := m.GenerateJWT(&domain.User{ID: "u1", HotelID: "h1", Role: "admin"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	guest, err := m.GenerateGuestToken("g1", time.Hour)
	if err != nil {
		t.Fatalf("guest token: %v", err)
	}
	foreign, _ := NewAuthMiddleware("other").GenerateJWT(&domain.User{ID: "u1", HotelID: "h1"})

	tests := []struct {
		name   string
		header string
		cookie string
		want   int
	}{
		{"bearer header", "Bearer " + operator, "", http.StatusNoContent},
		{"dashboard cookie", "", operator, http.StatusNoContent},
		{"missing", "", "", http.StatusUnauthorized},
		{"guest token", "Bearer " + guest, "", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + foreign, "", http.StatusUnauthorized},
		{"garbage", "Bearer abc", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: TokenCookie, Value: tt.cookie})
			}
			rec, hotel := serve(m, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusNoContent && hotel != "h1" {
				t.Errorf("hotel = %q", hotel)
			}
		})
	}
}

func TestGuestToken(t *testing.T) {
	m := NewAuthMiddleware("secret")
	token, _ := m.GenerateGuestToken("g1", time.Minute)

	id, err := m.ValidateGuestToken(token)
	if err != nil || id != "g1" {
		t.Fatalf("got %q, %v", id, err)
	}

	operator, _ := m.GenerateJWT(&domain.User{ID: "u1", HotelID: "h1"})
	if _, err := m.ValidateGuestToken(operator); err == nil {
		t.Errorf("operator token must not open guest sockets")
	}

	m.nowFn = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := m.ValidateGuestToken(token); err == nil {
		t.Errorf("expired token accepted")
	}
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPassword("s3cret", hash) || CheckPassword("wrong", hash) {
		t.Errorf("bcrypt round trip failed")
	}
}
