package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"hotel-ops-backend/internal/domain"
	"hotel-ops-backend/internal/repository/memory"
	"hotel-ops-backend/internal/service/activity"
	"hotel-ops-backend/internal/service/encryption"
	"hotel-ops-backend/internal/service/formatter"
	"hotel-ops-backend/internal/service/integration"
	"hotel-ops-backend/internal/service/notify"
	"hotel-ops-backend/internal/service/webhook"
	"hotel-ops-backend/internal/transport/middleware"
)

type countingDoer struct {
	mu    sync.Mutex
	calls []*http.Request
}

func (d *countingDoer) Do(req *http.Request) (*http.Response, error) {
	d.mu.Lock()
	d.calls = append(d.calls, req)
	d.mu.Unlock()
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(`{"menus":[{"id":"m1","name":"Breakfast","items":[]}]}`)),
	}, nil
}

func (d *countingDoer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

type testServer struct {
	e     *echo.Echo
	store *memory.Store
	doer  *countingDoer
	auth  *middleware.AuthMiddleware
	hub   *notify.Hub
	token string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.NewStore()
	vault := encryption.NewVault("test-secret", encryption.WithCost(1<<10))
	logger := activity.NewLogger(store, zerolog.Nop(), nil)
	doer := &countingDoer{}
	svc := integration.NewService(store, store.Guests(), vault, logger, integration.Config{}, integration.WithHTTPClient(doer))
	hub := notify.NewHub(zerolog.Nop(), nil)
	t.Cleanup(hub.Close)

	dispatcher := webhook.NewDispatcher(store, logger, zerolog.Nop(), nil, webhook.DefaultHandlers(webhook.Deps{
		Guests:    store.Guests(),
		Providers: svc.Registry(),
		Notifier:  hub,
		Formatter: formatter.New(),
		Log:       zerolog.Nop(),
	})...)

	auth := middleware.NewAuthMiddleware("jwt-secret")
	hash, err := middleware.HashPassword("password")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := store.CreateUser(context.Background(), &domain.User{
		HotelID: "hotel-1", Email: "ops@hotel.test", PasswordHash: hash, Role: "admin",
	}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	e := echo.New()
	SetupRoutes(e, Deps{
		Integrations: store,
		Guests:       store.Guests(),
		Users:        store,
		Vault:        vault,
		Service:      svc,
		Dispatcher:   dispatcher,
		Notifier:     hub,
		Hub:          hub,
		Auth:         auth,
		BaseURL:      "https://ops.hotel.test",
	})

	s := &testServer{e: e, store: store, doer: doer, auth: auth, hub: hub}
	rec := s.do(t, http.MethodPost, "/api/v1/auth/login", `{"email":"ops@hotel.test","password":"password"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: %d %s", rec.Code, rec.Body.String())
	}
	var login LoginResponse
	decode(t, rec, &login)
	s.token = login.Token
	return s
}

func (s *testServer) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func (s *testServer) createIntegration(t *testing.T, body string) map[string]interface{} {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/integrations", body, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	var out map[string]interface{}
	decode(t, rec, &out)
	return out
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	s := newTestServer(t)
	s.token = ""
	rec := s.do(t, http.MethodPost, "/api/v1/auth/login", `{"email":"ops@hotel.test","password":"nope"}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCreateIntegrationNeverEchoesSecrets(t *testing.T) {
	s := newTestServer(t)
	out := s.createIntegration(t, `{"name":"Toast","category":"pos","provider":"toast",
		"config":{"base_url":"https://toast.test"},"credentials":{"api_key":"super-secret"},"webhook_secret":"whsec"}`)

	raw, _ := json.Marshal(out)
	for _, secret := range []string{"super-secret", "whsec"} {
		if strings.Contains(string(raw), secret) {
			t.Fatalf("response leaks %q: %s", secret, raw)
		}
	}
	if out["has_credentials"] != true || out["has_webhook_secret"] != true {
		t.Errorf("expected secret flags, got %v", out)
	}
	id, _ := out["id"].(string)
	if out["webhook_url"] != "https://ops.hotel.test/webhooks/"+id {
		t.Errorf("webhook_url = %v", out["webhook_url"])
	}

	stored, err := s.store.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if stored.Credentials.IsZero() || strings.Contains(stored.Credentials.Encrypted, "super-secret") {
		t.Errorf("credentials not encrypted: %+v", stored.Credentials)
	}
}

func TestCreateIntegrationValidation(t *testing.T) {
	s := newTestServer(t)
	for _, body := range []string{
		`{"name":"x","category":"spa","provider":"p"}`,
		`{"name":"","category":"pos","provider":"p"}`,
		`{"name":"x","category":"pos","provider":"p","status":"paused"}`,
	} {
		if rec := s.do(t, http.MethodPost, "/api/v1/integrations", body, nil); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", body, rec.Code)
		}
	}
}

func TestIntegrationsAreScopedToHotel(t *testing.T) {
	s := newTestServer(t)
	foreign := &domain.Integration{HotelID: "hotel-2", Name: "other", Category: domain.CategoryPMS, Provider: "opera_cloud", Status: domain.StatusActive}
	if err := s.store.Create(context.Background(), foreign); err != nil {
		t.Fatalf("create: %v", err)
	}

	if rec := s.do(t, http.MethodGet, "/api/v1/integrations/"+foreign.ID, "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("get foreign: %d", rec.Code)
	}
	if rec := s.do(t, http.MethodDelete, "/api/v1/integrations/"+foreign.ID, "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("delete foreign: %d", rec.Code)
	}

	rec := s.do(t, http.MethodGet, "/api/v1/integrations", "", nil)
	var list struct {
		Total int `json:"total"`
	}
	decode(t, rec, &list)
	if list.Total != 0 {
		t.Errorf("foreign integration listed")
	}
}

func TestSyncInactiveIntegration(t *testing.T) {
	s := newTestServer(t)
	out := s.createIntegration(t, `{"name":"POS","category":"pos","provider":"toast","status":"inactive",
		"config":{"base_url":"https://toast.test"},"credentials":{"api_key":"k"}}`)

	rec := s.do(t, http.MethodPost, "/api/v1/integrations/"+out["id"].(string)+"/sync", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d %s", rec.Code, rec.Body.String())
	}
	var body errorResponse
	decode(t, rec, &body)
	if body.Code != "INACTIVE_INTEGRATION" {
		t.Errorf("code = %q", body.Code)
	}
	if s.doer.count() != 0 {
		t.Errorf("inactive sync made %d outbound calls", s.doer.count())
	}
}

func TestSyncMenusAndLogs(t *testing.T) {
	s := newTestServer(t)
	out := s.createIntegration(t, `{"name":"POS","category":"pos","provider":"simphony_cloud",
		"config":{"base_url":"https://pos.test"},"credentials":{"api_key":"k"}}`)
	id := out["id"].(string)

	rec := s.do(t, http.MethodPost, "/api/v1/integrations/"+id+"/sync", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("sync: %d %s", rec.Code, rec.Body.String())
	}
	if s.doer.count() != 1 {
		t.Fatalf("expected one outbound call, got %d", s.doer.count())
	}

	rec = s.do(t, http.MethodGet, "/api/v1/integrations/"+id+"/logs?operation_type=sync", "", nil)
	var logs struct {
		Data  []domain.IntegrationLog `json:"data"`
		Total int                     `json:"total"`
	}
	decode(t, rec, &logs)
	if logs.Total != 1 || logs.Data[0].OperationName != "sync_menus" {
		t.Errorf("unexpected sync logs %+v", logs)
	}

	rec = s.do(t, http.MethodGet, "/api/v1/integrations/"+id+"/stats", "", nil)
	var stats domain.LogStats
	decode(t, rec, &stats)
	// pending и success вызова провайдера плюс итог синхронизации
	if stats.Total != 3 || stats.Pending != 1 || stats.Success != 2 || stats.LastAt == nil {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestWebhookSignature(t *testing.T) {
	s := newTestServer(t)
	out := s.createIntegration(t, `{"name":"POS","category":"pos","provider":"toast","webhook_secret":"whsec"}`)
	path := "/webhooks/" + out["id"].(string)
	body := `{"event_type":"check_created","data":{"check_id":"c1","total":12.5}}`

	s.token = ""
	if rec := s.do(t, http.MethodPost, path, body, map[string]string{"X-Webhook-Signature": "deadbeef"}); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad signature: %d", rec.Code)
	}

	sig := webhook.Sign("whsec", []byte(body))
	rec := s.do(t, http.MethodPost, path, body, map[string]string{"X-Webhook-Signature": "sha256=" + sig})
	if rec.Code != http.StatusOK {
		t.Fatalf("signed webhook: %d %s", rec.Code, rec.Body.String())
	}
	var result webhook.Result
	decode(t, rec, &result)
	if result.Status != "processed" || result.EventType != "check_created" {
		t.Errorf("unexpected result %+v", result)
	}

	if rec := s.do(t, http.MethodPost, "/webhooks/missing", body, nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown integration: %d", rec.Code)
	}
}

func TestGuestNotifyAndToken(t *testing.T) {
	s := newTestServer(t)
	guests := s.store.Guests()
	guest := &domain.Guest{HotelID: "hotel-1", ExternalID: "p-1", ExternalSource: "opera_cloud", FirstName: "Ann"}
	if _, err := guests.Upsert(context.Background(), guest); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	rec := s.do(t, http.MethodPost, "/api/v1/guests/"+guest.ID+"/notify", `{"title":"Hi","body":"Towels on the way"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("notify: %d %s", rec.Code, rec.Body.String())
	}
	var delivered struct {
		Delivered int `json:"delivered"`
	}
	decode(t, rec, &delivered)
	if delivered.Delivered != 0 {
		t.Errorf("offline guest delivered = %d", delivered.Delivered)
	}

	if rec := s.do(t, http.MethodPost, "/api/v1/guests/"+guest.ID+"/notify", `{"title":"Hi"}`, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("empty body: %d", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/api/v1/guests/"+guest.ID+"/token", "", nil)
	var token struct {
		Token string `json:"token"`
	}
	decode(t, rec, &token)
	subject, err := s.auth.ValidateGuestToken(token.Token)
	if err != nil || subject != guest.ID {
		t.Errorf("guest token subject %q, %v", subject, err)
	}
}

func TestSocketRejectsForeignToken(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.auth.GenerateGuestToken("guest-a", time.Minute)

	s.token = ""
	rec := s.do(t, http.MethodGet, "/ws?guestId=guest-b&token="+token, "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrInactiveIntegration, http.StatusBadRequest},
		{domain.ErrUnsupportedEvent, http.StatusBadRequest},
		{domain.ErrUnsupportedProvider, http.StatusBadRequest},
		{domain.ErrInvalidSignature, http.StatusUnauthorized},
		{domain.ErrDecryption, http.StatusInternalServerError},
		{&domain.ProviderError{StatusCode: 503}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("%v: got %d, want %d", tt.err, got, tt.want)
		}
	}
}

type countingConn struct {
	mu   sync.Mutex
	sent int
}

func (c *countingConn) Send(context.Context, []byte) error {
	c.mu.Lock()
	c.sent++
	c.mu.Unlock()
	return nil
}

func (c *countingConn) Close() error { return nil }

func TestBroadcastStaysWithinHotel(t *testing.T) {
	s := newTestServer(t)
	guests := s.store.Guests()
	ctx := context.Background()

	own := &domain.Guest{HotelID: "hotel-1", ExternalID: "p-1", ExternalSource: "opera_cloud"}
	foreign := &domain.Guest{HotelID: "hotel-2", ExternalID: "p-2", ExternalSource: "opera_cloud"}
	for _, g := range []*domain.Guest{own, foreign} {
		if _, err := guests.Upsert(ctx, g); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	ownConn, foreignConn := &countingConn{}, &countingConn{}
	s.hub.Register(own.ID, ownConn)
	s.hub.Register(foreign.ID, foreignConn)

	rec := s.do(t, http.MethodPost, "/api/v1/notifications/broadcast", `{"title":"Pool","body":"Pool closes at 22:00"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("broadcast: %d %s", rec.Code, rec.Body.String())
	}
	var res struct {
		Delivered int `json:"delivered"`
	}
	decode(t, rec, &res)
	if res.Delivered != 1 || ownConn.sent != 1 || foreignConn.sent != 0 {
		t.Errorf("delivered=%d own=%d foreign=%d", res.Delivered, ownConn.sent, foreignConn.sent)
	}

	rec = s.do(t, http.MethodGet, "/api/v1/notifications/stats", "", nil)
	var stats notify.Stats
	decode(t, rec, &stats)
	if stats.TotalConnections != 1 || stats.UniqueGuests != 1 {
		t.Errorf("stats leak other hotels: %+v", stats)
	}
}
