package integration

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"hotel-ops-backend/internal/domain"
	"hotel-ops-backend/internal/repository/memory"
	"hotel-ops-backend/internal/service/activity"
	"hotel-ops-backend/internal/service/encryption"
)

type fakeTransport struct {
	mu      sync.Mutex
	calls   []*http.Request
	respond func(req *http.Request, n int) (*http.Response, error)
}

func (f *fakeTransport) Do(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	n := len(f.calls)
	f.mu.Unlock()
	return f.respond(req, n)
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeTransport) last() *http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func reply(status int, body string) func(*http.Request, int) (*http.Response, error) {
	return func(*http.Request, int) (*http.Response, error) {
		return jsonResponse(status, body), nil
	}
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

type fixture struct {
	svc       *Service
	store     *memory.Store
	vault     *encryption.Vault
	transport *fakeTransport
}

func newFixture(t *testing.T, cfg Config, respond func(*http.Request, int) (*http.Response, error)) *fixture {
	t.Helper()
	store := memory.NewStore()
	vault := encryption.NewVault("test-secret", encryption.WithCost(1<<10))
	transport := &fakeTransport{respond: respond}
	logger := activity.NewLogger(store, zerolog.Nop(), nil)
	svc := NewService(store, store.Guests(), vault, logger, cfg, WithHTTPClient(transport))
	return &fixture{svc: svc, store: store, vault: vault, transport: transport}
}

func (f *fixture) integration(t *testing.T, category, provider, status string, config domain.JSONMap, creds domain.CredentialBundle) *domain.Integration {
	t.Helper()
	in := &domain.Integration{
		HotelID:  "hotel-1",
		Name:     provider,
		Category: category,
		Provider: provider,
		Config:   config,
		Status:   status,
	}
	if creds != nil {
		enc, err := f.vault.Encrypt(creds)
		if err != nil {
			t.Fatalf("encrypt: %v", err)
		}
		in.Credentials = enc
	}
	if err := f.store.Create(context.Background(), in); err != nil {
		t.Fatalf("create integration: %v", err)
	}
	return in
}

func logsOf(store *memory.Store, integrationID string) []domain.IntegrationLog {
	var out []domain.IntegrationLog
	for _, l := range store.Logs() {
		if l.IntegrationID == integrationID {
			out = append(out, l)
		}
	}
	return out
}

func TestSyncOnInactiveIntegrationMakesNoCalls(t *testing.T) {
	f := newFixture(t, Config{}, reply(200, `[]`))
	ctx := context.Background()
	cfg := domain.JSONMap{"base_url": "https://provider.test"}

	pos := f.integration(t, domain.CategoryPOS, "toast", domain.StatusInactive, cfg, domain.CredentialBundle{"access_token": "t"})
	pms := f.integration(t, domain.CategoryPMS, "opera_cloud", domain.StatusError, cfg, nil)
	gm := f.integration(t, domain.CategoryGuestManagement, "revinate", domain.StatusTesting, cfg, nil)

	if _, err := f.svc.SyncMenus(ctx, pos.ID); !errors.Is(err, domain.ErrInactiveIntegration) {
		t.Errorf("SyncMenus: expected ErrInactiveIntegration, got %v", err)
	}
	if _, err := f.svc.SyncReservations(ctx, pms.ID, nil, nil); !errors.Is(err, domain.ErrInactiveIntegration) {
		t.Errorf("SyncReservations: expected ErrInactiveIntegration, got %v", err)
	}
	if _, err := f.svc.SyncGuestData(ctx, gm.ID, ""); !errors.Is(err, domain.ErrInactiveIntegration) {
		t.Errorf("SyncGuestData: expected ErrInactiveIntegration, got %v", err)
	}

	if n := f.transport.count(); n != 0 {
		t.Fatalf("expected no outbound calls, got %d", n)
	}

	logs := logsOf(f.store, pos.ID)
	if len(logs) != 1 || logs[0].OperationType != domain.OperationError || logs[0].ErrorCode != "INACTIVE_INTEGRATION" {
		t.Fatalf("expected one error entry, got %+v", logs)
	}
}

func TestSyncGuestDataCountsPerRecordFailures(t *testing.T) {
	body := `{"guests": [
		{"id": "g1", "firstName": "Ana", "lastName": "Lopez", "email": "ana@example.com"},
		{"firstName": "No", "lastName": "Id"},
		{"id": "g3", "firstName": "Ben"},
		{"email": "missing@example.com"},
		{"id": "g5", "firstName": "Chen", "vip": true}
	]}`
	f := newFixture(t, Config{}, reply(200, body))
	ctx := context.Background()

	in := f.integration(t, domain.CategoryGuestManagement, "acme_crm", domain.StatusActive,
		domain.JSONMap{"base_url": "https://crm.test/api/"}, domain.CredentialBundle{"api_key": "k"})

	res, err := f.svc.SyncGuestData(ctx, in.ID, "")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if res.RecordsProcessed != 5 || res.RecordsSuccess != 3 || res.RecordsFailed != 2 {
		t.Fatalf("expected 5/3/2, got %+v", res.SyncResult)
	}
	if res.Created != 3 {
		t.Errorf("expected 3 created guests, got %d", res.Created)
	}

	if got := f.transport.last().URL.String(); got != "https://crm.test/api/guests" {
		t.Errorf("unexpected url %s", got)
	}

	guests, total, err := f.store.Guests().FindByHotelID(ctx, "hotel-1", 0, 0)
	if err != nil || total != 3 {
		t.Fatalf("expected 3 stored guests, got %d (%v)", total, err)
	}
	for _, g := range guests {
		if g.ExternalSource != "acme_crm" {
			t.Errorf("guest %s has source %q", g.ExternalID, g.ExternalSource)
		}
	}

	logs := logsOf(f.store, in.ID)
	summary := logs[len(logs)-1]
	if summary.OperationType != domain.OperationSync || summary.Status != domain.LogStatusPartial {
		t.Fatalf("unexpected summary entry %+v", summary)
	}
	if summary.RecordsProcessed != 5 || summary.RecordsSuccess != 3 || summary.RecordsFailed != 2 {
		t.Errorf("summary counts mismatch: %+v", summary)
	}

	stored, _ := f.store.FindByID(ctx, in.ID)
	if stored.LastSyncStatus != domain.LogStatusSuccess || stored.ErrorCount != 0 || stored.LastSyncAt == nil {
		t.Errorf("unexpected sync bookkeeping: %+v", stored)
	}

	// повторная синхронизация обновляет, а не создает
	res, err = f.svc.SyncGuestData(ctx, in.ID, "")
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if res.Created != 0 || res.Updated != 3 {
		t.Errorf("expected 3 updates, got %+v", res)
	}
}

func TestSyncGuestDataSingleGuest(t *testing.T) {
	f := newFixture(t, Config{}, reply(200, `{"guest": {"id": "r-42", "firstName": "Dana", "preferredLanguage": "fr"}}`))
	in := f.integration(t, domain.CategoryGuestManagement, "revinate", domain.StatusActive,
		domain.JSONMap{"base_url": "https://revinate.test", "endpoints": map[string]interface{}{"guest": "/v2/guests/{id}/profile"}},
		domain.CredentialBundle{"username": "ops", "api_key": "secret"})

	res, err := f.svc.SyncGuestData(context.Background(), in.ID, "r-42")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if res.RecordsSuccess != 1 {
		t.Fatalf("expected 1 success, got %+v", res)
	}

	req := f.transport.last()
	if req.URL.Path != "/v2/guests/r-42/profile" {
		t.Errorf("unexpected path %s", req.URL.Path)
	}
	if req.Header.Get("X-Revinate-Porter-Key") != "secret" {
		t.Errorf("missing revinate auth headers: %v", req.Header)
	}

	g, err := f.store.FindByExternalID(context.Background(), "r-42", "revinate")
	if err != nil {
		t.Fatalf("guest not stored: %v", err)
	}
	if g.Language != "fr" {
		t.Errorf("expected language fr, got %q", g.Language)
	}
}

func TestRequestAuthHeaderPriority(t *testing.T) {
	cases := []struct {
		name   string
		config domain.JSONMap
		creds  domain.CredentialBundle
		header string
		want   string
	}{
		{"api key wins", nil, domain.CredentialBundle{"api_key": "k1", "access_token": "t1", "username": "u", "password": "p"}, "X-API-Key", "k1"},
		{"custom key header", domain.JSONMap{"api_key_header": "X-Auth-Key"}, domain.CredentialBundle{"api_key": "k2"}, "X-Auth-Key", "k2"},
		{"bearer before basic", nil, domain.CredentialBundle{"access_token": "t2", "username": "u", "password": "p"}, "Authorization", "Bearer t2"},
		{"basic", nil, domain.CredentialBundle{"username": "u", "password": "p"}, "Authorization", "Basic dTpw"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, Config{}, reply(200, `{}`))
			cfg := domain.JSONMap{"base_url": "https://pos.test"}
			for k, v := range tc.config {
				cfg[k] = v
			}
			in := f.integration(t, domain.CategoryPOS, "generic_pos", domain.StatusActive, cfg, tc.creds)

			sess, err := f.svc.Open(context.Background(), in.ID, true)
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			if _, err := sess.Request(context.Background(), http.MethodGet, "/ping", nil, nil); err != nil {
				t.Fatalf("request: %v", err)
			}

			req := f.transport.last()
			if got := req.Header.Get(tc.header); got != tc.want {
				t.Errorf("%s = %q, want %q", tc.header, got, tc.want)
			}
			if req.Header.Get("User-Agent") == "" || req.Header.Get("Content-Type") != "application/json" {
				t.Errorf("default headers missing: %v", req.Header)
			}
		})
	}
}

func TestRequestLogsPendingThenOutcome(t *testing.T) {
	f := newFixture(t, Config{}, reply(404, `{"code": "MENU_MISSING", "message": "no such menu"}`))
	in := f.integration(t, domain.CategoryPOS, "toast", domain.StatusActive,
		domain.JSONMap{"base_url": "https://toast.test"}, domain.CredentialBundle{"access_token": "t"})

	sess, err := f.svc.Open(context.Background(), in.ID, true)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_, err = sess.Request(context.Background(), http.MethodGet, "/menus/v2/menus", nil, nil)

	var pe *domain.ProviderError
	if !errors.As(err, &pe) || pe.StatusCode != 404 || pe.Code != "MENU_MISSING" {
		t.Fatalf("expected provider error, got %v", err)
	}

	logs := logsOf(f.store, in.ID)
	if len(logs) != 2 {
		t.Fatalf("expected pending + failed entries, got %d", len(logs))
	}
	if logs[0].Status != domain.LogStatusPending || logs[1].Status != domain.LogStatusFailed {
		t.Errorf("unexpected statuses %q, %q", logs[0].Status, logs[1].Status)
	}
	if logs[1].ErrorCode != "MENU_MISSING" {
		t.Errorf("unexpected error code %q", logs[1].ErrorCode)
	}
}

func TestSyncFailureBookkeeping(t *testing.T) {
	ctx := context.Background()

	t.Run("never disabled by default", func(t *testing.T) {
		f := newFixture(t, Config{}, reply(500, `{"message": "down"}`))
		in := f.integration(t, domain.CategoryPOS, "toast", domain.StatusActive,
			domain.JSONMap{"base_url": "https://toast.test"}, nil)

		for i := 0; i < 3; i++ {
			if _, err := f.svc.SyncMenus(ctx, in.ID); err == nil {
				t.Fatalf("expected failure")
			}
		}
		stored, _ := f.store.FindByID(ctx, in.ID)
		if stored.ErrorCount != 3 || stored.Status != domain.StatusActive {
			t.Fatalf("expected 3 errors and active status, got %d %q", stored.ErrorCount, stored.Status)
		}
		if stored.LastSyncStatus != domain.LogStatusFailed || !strings.Contains(stored.LastError, "down") {
			t.Errorf("unexpected last sync: %q %q", stored.LastSyncStatus, stored.LastError)
		}
	})

	t.Run("auto disable threshold", func(t *testing.T) {
		f := newFixture(t, Config{AutoDisableAfter: 2}, reply(500, `{}`))
		in := f.integration(t, domain.CategoryPOS, "toast", domain.StatusActive,
			domain.JSONMap{"base_url": "https://toast.test"}, nil)

		f.svc.SyncMenus(ctx, in.ID)
		f.svc.SyncMenus(ctx, in.ID)
		stored, _ := f.store.FindByID(ctx, in.ID)
		if stored.Status != domain.StatusError {
			t.Fatalf("expected error status, got %q", stored.Status)
		}

		calls := f.transport.count()
		if _, err := f.svc.SyncMenus(ctx, in.ID); !errors.Is(err, domain.ErrInactiveIntegration) {
			t.Fatalf("expected disabled integration to reject sync, got %v", err)
		}
		if f.transport.count() != calls {
			t.Errorf("disabled integration made an outbound call")
		}
	})

	t.Run("success resets error count", func(t *testing.T) {
		f := newFixture(t, Config{}, func(_ *http.Request, n int) (*http.Response, error) {
			if n == 1 {
				return jsonResponse(502, `{}`), nil
			}
			return jsonResponse(200, `{"menus": [{"menuId": "m1", "name": "Bar"}]}`), nil
		})
		in := f.integration(t, domain.CategoryPOS, "simphony_cloud", domain.StatusActive,
			domain.JSONMap{"base_url": "https://simphony.test"}, nil)

		f.svc.SyncMenus(ctx, in.ID)
		res, err := f.svc.SyncMenus(ctx, in.ID)
		if err != nil {
			t.Fatalf("sync: %v", err)
		}
		if len(res.Menus) != 1 || res.Menus[0].Name != "Bar" {
			t.Errorf("unexpected menus %+v", res.Menus)
		}
		stored, _ := f.store.FindByID(ctx, in.ID)
		if stored.ErrorCount != 0 || stored.LastError != "" {
			t.Errorf("expected reset error count, got %d %q", stored.ErrorCount, stored.LastError)
		}
	})
}

func TestRequestRetriesWhenConfigured(t *testing.T) {
	f := newFixture(t, Config{Retries: 2, RetryDelay: time.Millisecond}, func(_ *http.Request, n int) (*http.Response, error) {
		if n < 3 {
			return jsonResponse(503, `{}`), nil
		}
		return jsonResponse(200, `[]`), nil
	})
	in := f.integration(t, domain.CategoryPMS, "cloudbeds", domain.StatusActive,
		domain.JSONMap{"base_url": "https://cloudbeds.test"}, nil)

	if _, err := f.svc.SyncReservations(context.Background(), in.ID, nil, nil); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if n := f.transport.count(); n != 3 {
		t.Fatalf("expected 3 attempts, got %d", n)
	}
}

func TestRequestDoesNotRetryByDefault(t *testing.T) {
	f := newFixture(t, Config{}, reply(503, `{}`))
	in := f.integration(t, domain.CategoryPMS, "cloudbeds", domain.StatusActive,
		domain.JSONMap{"base_url": "https://cloudbeds.test"}, nil)

	if _, err := f.svc.SyncReservations(context.Background(), in.ID, nil, nil); err == nil {
		t.Fatalf("expected failure")
	}
	if n := f.transport.count(); n != 1 {
		t.Fatalf("expected a single attempt, got %d", n)
	}
}

func TestSyncReservationsTranslatesDates(t *testing.T) {
	body := `{"reservations": [{
		"reservationIdList": [{"id": "R1"}],
		"confirmationNumber": "C-100",
		"reservationGuest": {"id": "P9", "givenName": "Eva", "surname": "Kim"},
		"roomStay": {"roomId": "512", "arrivalDate": "2026-03-01", "departureDate": "2026-03-04", "adultCount": 2},
		"reservationStatus": "Reserved"
	}]}`
	f := newFixture(t, Config{}, reply(200, body))
	in := f.integration(t, domain.CategoryPMS, "opera_cloud", domain.StatusActive,
		domain.JSONMap{"base_url": "https://opera.test", "hotel_code": "HQ1"},
		domain.CredentialBundle{"access_token": "t", "app_key": "app"})

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7)
	res, err := f.svc.SyncReservations(context.Background(), in.ID, &start, &end)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}

	req := f.transport.last()
	if q := req.URL.Query(); q.Get("arrivalStartDate") != "2026-03-01" || q.Get("arrivalEndDate") != "2026-03-08" {
		t.Errorf("unexpected query %s", req.URL.RawQuery)
	}
	if req.Header.Get("x-hotelid") != "HQ1" || req.Header.Get("x-app-key") != "app" {
		t.Errorf("missing opera headers: %v", req.Header)
	}

	if len(res.Reservations) != 1 {
		t.Fatalf("expected 1 reservation, got %d", len(res.Reservations))
	}
	r := res.Reservations[0]
	if r.ExternalID != "R1" || r.GuestName != "Eva Kim" || r.RoomNumber != "512" || r.Adults != 2 {
		t.Errorf("unexpected reservation %+v", r)
	}
	if r.Arrival == nil || !r.Arrival.Equal(start) {
		t.Errorf("unexpected arrival %v", r.Arrival)
	}
}

func TestDecryptionFailureIsLoggedAndAborts(t *testing.T) {
	f := newFixture(t, Config{}, reply(200, `[]`))
	in := f.integration(t, domain.CategoryPOS, "toast", domain.StatusActive,
		domain.JSONMap{"base_url": "https://toast.test"}, domain.CredentialBundle{"access_token": "t"})

	stored, _ := f.store.FindByID(context.Background(), in.ID)
	stored.Credentials.IV = "00"
	if err := f.store.Update(context.Background(), stored); err != nil {
		t.Fatalf("update: %v", err)
	}

	if _, err := f.svc.SyncMenus(context.Background(), in.ID); !errors.Is(err, domain.ErrDecryption) {
		t.Fatalf("expected ErrDecryption, got %v", err)
	}
	if f.transport.count() != 0 {
		t.Fatalf("expected no outbound calls")
	}
	logs := logsOf(f.store, in.ID)
	if len(logs) != 1 || logs[0].ErrorCode != "DECRYPTION_FAILED" {
		t.Fatalf("expected decryption error entry, got %+v", logs)
	}
}

func TestOpenUnknownIntegration(t *testing.T) {
	f := newFixture(t, Config{}, reply(200, `[]`))
	if _, err := f.svc.SyncMenus(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTestConnectionRedactsSecrets(t *testing.T) {
	f := newFixture(t, Config{}, reply(200, `{"status": "ok"}`))
	in := f.integration(t, domain.CategoryGuestManagement, "homegrown", domain.StatusInactive,
		domain.JSONMap{"base_url": "https://crm.test", "testEndpoint": "/status"},
		domain.CredentialBundle{"api_key": "very-secret-key", "access_token": "very-secret-token"})

	res, err := f.svc.TestConnection(context.Background(), in.ID)
	if err != nil {
		t.Fatalf("test connection: %v", err)
	}
	if !res.Success || res.Provider != "generic" {
		t.Errorf("unexpected result %+v", res)
	}

	req := f.transport.last()
	if req.URL.String() != "https://crm.test/status" {
		t.Errorf("unexpected url %s", req.URL)
	}
	if req.Header.Get("Authorization") != "Bearer very-secret-token" || req.Header.Get("X-API-Key") != "" {
		t.Errorf("generic test should prefer bearer: %v", req.Header)
	}

	logs := logsOf(f.store, in.ID)
	if len(logs) != 1 || logs[0].OperationType != domain.OperationTest {
		t.Fatalf("expected one test entry, got %+v", logs)
	}
	if strings.Contains(string(logs[0].RequestPayload), "very-secret") {
		t.Fatalf("secret leaked into log: %s", logs[0].RequestPayload)
	}
	if !strings.Contains(string(logs[0].RequestPayload), "***") {
		t.Errorf("expected redacted header in %s", logs[0].RequestPayload)
	}
}

func TestTestConnectionDefaultsToHealth(t *testing.T) {
	f := newFixture(t, Config{}, reply(401, `{"error": "unauthorized"}`))
	in := f.integration(t, domain.CategoryPOS, "unknown_pos", domain.StatusActive,
		domain.JSONMap{"baseUrl": "https://pos.test/"}, domain.CredentialBundle{"api_key": "k"})

	res, err := f.svc.TestConnection(context.Background(), in.ID)
	if err != nil {
		t.Fatalf("test connection: %v", err)
	}
	if res.Success || res.StatusCode != 401 {
		t.Errorf("expected failed result, got %+v", res)
	}
	if got := f.transport.last().URL.String(); got != "https://pos.test/health" {
		t.Errorf("unexpected url %s", got)
	}
	if got := f.transport.last().Header.Get("X-API-Key"); got != "k" {
		t.Errorf("expected api key fallback, got %q", got)
	}
}

func TestGetFeedbackTranslatesFilter(t *testing.T) {
	f := newFixture(t, Config{}, reply(200, `{"data": [{"id": "f1", "rating": 5}]}`))
	in := f.integration(t, domain.CategoryGuestManagement, "revinate", domain.StatusActive,
		domain.JSONMap{"base_url": "https://revinate.test"}, domain.CredentialBundle{"username": "u", "api_key": "k"})

	records, err := f.svc.GetFeedback(context.Background(), in.ID, map[string]string{"guest_id": "g1", "since": "2026-01-01"})
	if err != nil {
		t.Fatalf("get feedback: %v", err)
	}
	if len(records) != 1 || records[0].Int("rating") != 5 {
		t.Errorf("unexpected records %+v", records)
	}

	q := f.transport.last().URL.Query()
	if q.Get("guestId") != "g1" || q.Get("updatedSince") != "2026-01-01" || q.Get("guest_id") != "" {
		t.Errorf("unexpected query %v", q)
	}
}

func TestPostFeedbackTransformsPayload(t *testing.T) {
	var sent map[string]interface{}
	f := newFixture(t, Config{}, func(req *http.Request, _ int) (*http.Response, error) {
		raw, _ := io.ReadAll(req.Body)
		json.Unmarshal(raw, &sent)
		return jsonResponse(201, `{"id": "fb-1"}`), nil
	})
	in := f.integration(t, domain.CategoryGuestManagement, "revinate", domain.StatusActive,
		domain.JSONMap{"base_url": "https://revinate.test"}, domain.CredentialBundle{"username": "u", "api_key": "k"})

	out, err := f.svc.PostFeedback(context.Background(), in.ID, domain.Feedback{GuestID: "g1", Rating: 4, Comment: "Lovely spa"})
	if err != nil {
		t.Fatalf("post feedback: %v", err)
	}
	if string(out) != `{"id": "fb-1"}` {
		t.Errorf("unexpected response %s", out)
	}
	if sent["comments"] != "Lovely spa" || sent["guestId"] != "g1" {
		t.Errorf("unexpected outbound body %v", sent)
	}
	if f.transport.last().Method != http.MethodPost {
		t.Errorf("expected POST")
	}
}

func TestPostOnWrongCategory(t *testing.T) {
	f := newFixture(t, Config{}, reply(200, `{}`))
	in := f.integration(t, domain.CategoryPOS, "toast", domain.StatusActive,
		domain.JSONMap{"base_url": "https://toast.test"}, nil)

	if _, err := f.svc.PostChatMessage(context.Background(), in.ID, domain.ChatMessage{Text: "hi"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if f.transport.count() != 0 {
		t.Fatalf("expected no outbound calls")
	}
}

func TestSyncGuestDataEscapesGuestID(t *testing.T) {
	f := newFixture(t, Config{}, reply(200, `{"guest": {"id": "x", "firstName": "Dana"}}`))
	in := f.integration(t, domain.CategoryGuestManagement, "revinate", domain.StatusActive,
		domain.JSONMap{"base_url": "https://revinate.test", "endpoints": map[string]interface{}{"guest": "/v2/guests/{id}/profile"}},
		domain.CredentialBundle{"api_key": "secret"})

	if _, err := f.svc.SyncGuestData(context.Background(), in.ID, "../admin/users?all=1"); err != nil {
		t.Fatalf("sync: %v", err)
	}

	req := f.transport.last()
	if req.URL.Host != "revinate.test" || req.URL.RawQuery != "" {
		t.Errorf("guest id rewrote the url: %s", req.URL)
	}
	if got := req.URL.EscapedPath(); got != "/v2/guests/..%2Fadmin%2Fusers%3Fall=1/profile" {
		t.Errorf("unexpected path %s", got)
	}
}

func TestBuiltInTestSpecsSkipEmptyCredentials(t *testing.T) {
	in := &domain.Integration{Config: domain.JSONMap{"base_url": "https://provider.test"}}
	providers := []Provider{
		NewSimphonyProvider(),
		NewToastProvider(),
		NewOperaProvider(),
		NewCloudbedsProvider(),
		NewRevinateProvider(),
	}
	for _, p := range providers {
		check := p.TestConnection(in, domain.CredentialBundle{})
		if _, ok := check.Headers["Authorization"]; ok {
			t.Errorf("%s: authorization header without token", p.Name())
		}
		for k, v := range check.Headers {
			if v == "" {
				t.Errorf("%s: empty header %s", p.Name(), k)
			}
		}
	}

	check := NewCloudbedsProvider().TestConnection(in, domain.CredentialBundle{"access_token": "tok"})
	if check.Headers["Authorization"] != "Bearer tok" {
		t.Errorf("token not sent: %v", check.Headers)
	}
}

func TestRequestLogsUnencodableBody(t *testing.T) {
	f := newFixture(t, Config{}, reply(200, `{}`))
	in := f.integration(t, domain.CategoryPOS, "toast", domain.StatusActive,
		domain.JSONMap{"base_url": "https://toast.test"}, domain.CredentialBundle{"access_token": "t"})

	sess, err := f.svc.Open(context.Background(), in.ID, true)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := sess.Request(context.Background(), http.MethodPost, "/orders", make(chan int), nil); err == nil {
		t.Fatalf("expected marshal error")
	}
	if f.transport.count() != 0 {
		t.Fatalf("request sent with unencodable body")
	}

	logs := logsOf(f.store, in.ID)
	if len(logs) != 1 || logs[0].Status != domain.LogStatusFailed || logs[0].OperationType != domain.OperationAPICall {
		t.Fatalf("expected one failed api_call entry, got %+v", logs)
	}
}
