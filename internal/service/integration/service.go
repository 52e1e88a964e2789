// Package integration - конвейер исходящих вызовов к POS, PMS и системам управления гостями
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"hotel-ops-backend/internal/domain"
	"hotel-ops-backend/internal/metrics"
	repoInterface "hotel-ops-backend/internal/repository/interface"
	"hotel-ops-backend/internal/service/activity"
)

const maxResponseBody = 4 << 20

// Doer - HTTP транспорт, в тестах подменяется
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Decrypter расшифровывает секреты интеграции
type Decrypter interface {
	Decrypt(enc domain.EncryptedCredentials) (domain.CredentialBundle, error)
}

// Config - настройки исходящих вызовов. Нулевые значения отключают повторы,
// таймауты и автоотключение.
type Config struct {
	UserAgent        string
	RequestTimeout   time.Duration
	Retries          int
	RetryDelay       time.Duration
	AutoDisableAfter int
}

// Service выполняет операции интеграций
type Service struct {
	repo     repoInterface.IntegrationRepository
	guests   repoInterface.GuestRepository
	vault    Decrypter
	activity *activity.Logger
	registry *Registry
	client   Doer
	config   Config
	log      zerolog.Logger
	metrics  *metrics.Metrics
	nowFn    func() time.Time
}

// Option настраивает Service
type Option func(*Service)

func WithHTTPClient(client Doer) Option {
	return func(s *Service) { s.client = client }
}

func WithRegistry(r *Registry) Option {
	return func(s *Service) { s.registry = r }
}

func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) { s.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.nowFn = now }
}

// NewService создает сервис интеграций
func NewService(
	repo repoInterface.IntegrationRepository,
	guests repoInterface.GuestRepository,
	vault Decrypter,
	activityLog *activity.Logger,
	config Config,
	opts ...Option,
) *Service {
	if config.UserAgent == "" {
		config.UserAgent = "hotel-ops-backend/1.0"
	}
	s := &Service{
		repo:     repo,
		guests:   guests,
		vault:    vault,
		activity: activityLog,
		registry: DefaultRegistry(),
		client:   http.DefaultClient,
		config:   config,
		log:      zerolog.Nop(),
		nowFn:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry возвращает реестр провайдеров
func (s *Service) Registry() *Registry {
	return s.registry
}

// Session - готовое к вызовам состояние одной операции.
// Секреты живут только в сессии и не переживают операцию.
type Session struct {
	svc         *Service
	Integration *domain.Integration
	Provider    Provider
	creds       domain.CredentialBundle
}

// Open загружает интеграцию, проверяет статус и расшифровывает секреты
func (s *Service) Open(ctx context.Context, integrationID string, requireActive bool) (*Session, error) {
	in, err := s.repo.FindByID(ctx, integrationID)
	if err != nil {
		s.log.Warn().Err(err).Str("integration_id", integrationID).Msg("integration lookup failed")
		return nil, err
	}

	fail := func(err error) (*Session, error) {
		s.activity.Record(ctx, activity.Entry{
			IntegrationID: in.ID,
			OperationType: domain.OperationError,
			OperationName: "initialize",
			Direction:     domain.DirectionOutbound,
			Status:        domain.LogStatusFailed,
			Err:           err,
			Metadata:      map[string]interface{}{"provider": in.Provider, "status": in.Status},
		})
		return nil, err
	}

	if requireActive && !in.IsActive() {
		return fail(fmt.Errorf("integration %s has status %q: %w", in.ID, in.Status, domain.ErrInactiveIntegration))
	}

	provider, err := s.registry.Lookup(in.Category, in.Provider)
	if err != nil {
		return fail(err)
	}

	creds := domain.CredentialBundle{}
	if !in.Credentials.IsZero() {
		creds, err = s.vault.Decrypt(in.Credentials)
		if err != nil {
			return fail(err)
		}
	}

	return &Session{svc: s, Integration: in, Provider: provider, creds: creds}, nil
}

// Response - ответ провайдера
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode раскладывает JSON ответа
func (r *Response) Decode(v interface{}) error {
	return json.Unmarshal(r.Body, v)
}

// Request выполняет один вызов провайдера и пишет записи pending и success/failed
func (sess *Session) Request(ctx context.Context, method, endpoint string, body interface{}, headers map[string]string) (*Response, error) {
	s := sess.svc
	name := method + " " + endpoint

	target, err := sess.url(endpoint)
	if err != nil {
		s.activity.Record(ctx, activity.Entry{
			IntegrationID: sess.Integration.ID,
			OperationType: domain.OperationAPICall,
			OperationName: name,
			Status:        domain.LogStatusFailed,
			Err:           err,
		})
		return nil, err
	}

	var payload []byte
	if body != nil {
		if payload, err = json.Marshal(body); err != nil {
			err = fmt.Errorf("failed to marshal request body: %w", err)
			s.activity.Record(ctx, activity.Entry{
				IntegrationID: sess.Integration.ID,
				OperationType: domain.OperationAPICall,
				OperationName: name,
				Status:        domain.LogStatusFailed,
				Err:           err,
			})
			return nil, err
		}
	}

	reqHeaders := map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
		"User-Agent":   s.config.UserAgent,
	}
	for k, v := range sess.Provider.BuildAuthHeaders(sess.Integration, sess.creds) {
		reqHeaders[k] = v
	}
	for k, v := range headers {
		reqHeaders[k] = v
	}

	s.activity.Record(ctx, activity.Entry{
		IntegrationID:  sess.Integration.ID,
		OperationType:  domain.OperationAPICall,
		OperationName:  name,
		Status:         domain.LogStatusPending,
		RequestPayload: payload,
		Metadata:       map[string]interface{}{"url": target},
	})

	start := time.Now()
	resp, attempts, err := s.do(ctx, method, target, payload, reqHeaders)
	elapsed := time.Since(start)

	meta := map[string]interface{}{"url": target, "attempts": attempts}
	entry := activity.Entry{
		IntegrationID:  sess.Integration.ID,
		OperationType:  domain.OperationAPICall,
		OperationName:  name,
		RequestPayload: payload,
		ProcessingTime: elapsed,
		Metadata:       meta,
	}

	if err == nil && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		err = providerError(resp)
	}
	if resp != nil {
		meta["status_code"] = resp.StatusCode
		entry.ResponsePayload = resp.Body
	}

	status := domain.LogStatusSuccess
	if err != nil {
		status = domain.LogStatusFailed
		entry.Err = err
	}
	entry.Status = status
	s.activity.Record(ctx, entry)

	if s.metrics != nil {
		s.metrics.ProviderRequests.WithLabelValues(sess.Integration.Provider, status).Observe(elapsed.Seconds())
	}

	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (sess *Session) url(endpoint string) (string, error) {
	if isAbsolute(endpoint) {
		return endpoint, nil
	}
	base := sess.Integration.BaseURL()
	if base == "" {
		return "", fmt.Errorf("integration %s has no base_url configured: %w", sess.Integration.ID, domain.ErrInvalidInput)
	}
	return joinURL(base, endpoint), nil
}

// do выполняет запрос с повторами из конфигурации.
// Повторяются только ошибки транспорта и ответы 429/5xx.
func (s *Service) do(ctx context.Context, method, target string, payload []byte, headers map[string]string) (*Response, int, error) {
	var (
		resp *Response
		err  error
	)

	attempts := 0
	for attempt := 0; attempt <= s.config.Retries; attempt++ {
		if attempt > 0 && s.config.RetryDelay > 0 {
			select {
			case <-ctx.Done():
				return resp, attempts, ctx.Err()
			case <-time.After(s.config.RetryDelay):
			}
		}

		attempts++
		resp, err = s.send(ctx, method, target, payload, headers)
		if err == nil && resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode < 500 {
			return resp, attempts, nil
		}
		if ctx.Err() != nil {
			break
		}
	}

	return resp, attempts, err
}

func (s *Service) send(ctx context.Context, method, target string, payload []byte, headers map[string]string) (*Response, error) {
	if s.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RequestTimeout)
		defer cancel()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	httpResp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &Response{StatusCode: httpResp.StatusCode, Header: httpResp.Header, Body: raw}, nil
}

// providerError переносит код и сообщение провайдера в ошибку
func providerError(resp *Response) error {
	pe := &domain.ProviderError{StatusCode: resp.StatusCode, Body: string(resp.Body)}

	var body Record
	if json.Unmarshal(resp.Body, &body) == nil {
		pe.Code = body.String("code", "error_code", "errorCode", "error.code")
		pe.Message = body.String("message", "error_description", "error.message", "error", "detail")
	}
	if pe.Message == "" {
		pe.Message = http.StatusText(resp.StatusCode)
	}
	return pe
}

// SyncResult - счетчики пакетной операции. Processed всегда равно Success + Failed.
type SyncResult struct {
	RecordsProcessed int `json:"records_processed"`
	RecordsSuccess   int `json:"records_success"`
	RecordsFailed    int `json:"records_failed"`
}

func (r SyncResult) status() string {
	switch {
	case r.RecordsFailed == 0:
		return domain.LogStatusSuccess
	case r.RecordsSuccess == 0:
		return domain.LogStatusFailed
	}
	return domain.LogStatusPartial
}

// operation - итог одной доменной операции для записи журнала
type operation struct {
	opType    string
	name      string
	direction string
	started   time.Time
	request   interface{}
	response  interface{}
	result    *SyncResult
	metadata  map[string]interface{}
}

// finish пишет итоговую запись операции и, для синхронизаций, обновляет учет ошибок
func (sess *Session) finish(ctx context.Context, op operation, err error) {
	s := sess.svc

	entry := activity.Entry{
		IntegrationID:   sess.Integration.ID,
		OperationType:   op.opType,
		OperationName:   op.name,
		Direction:       op.direction,
		RequestPayload:  op.request,
		ResponsePayload: op.response,
		ProcessingTime:  time.Since(op.started),
		Metadata:        op.metadata,
		Err:             err,
		Status:          domain.LogStatusSuccess,
	}
	if op.result != nil {
		entry.RecordsProcessed = op.result.RecordsProcessed
		entry.RecordsSuccess = op.result.RecordsSuccess
		entry.RecordsFailed = op.result.RecordsFailed
		entry.Status = op.result.status()
	}
	if err != nil {
		entry.Status = domain.LogStatusFailed
	}
	s.activity.Record(ctx, entry)

	if op.opType == domain.OperationSync {
		sess.recordSync(ctx, entry.Status, err)
	}
}

func (sess *Session) recordSync(ctx context.Context, status string, err error) {
	s := sess.svc

	outcome := domain.SyncOutcome{
		Success:      status != domain.LogStatusFailed,
		At:           s.nowFn(),
		DisableAfter: s.config.AutoDisableAfter,
	}
	if err != nil {
		outcome.Error = err.Error()
	} else if !outcome.Success {
		outcome.Error = "all records failed"
	}

	count, recErr := s.repo.RecordSync(context.WithoutCancel(ctx), sess.Integration.ID, outcome)
	if recErr != nil {
		s.log.Error().Err(recErr).Str("integration_id", sess.Integration.ID).Msg("failed to record sync outcome")
		return
	}
	if !outcome.Success && outcome.DisableAfter > 0 && count >= outcome.DisableAfter {
		s.log.Warn().
			Str("integration_id", sess.Integration.ID).
			Int("error_count", count).
			Msg("integration moved to error status after repeated failures")
	}
}

// requireCategory отклоняет операцию чужой категории
func (sess *Session) requireCategory(category string) error {
	if sess.Integration.Category != category {
		return fmt.Errorf("integration %s is %s, not %s: %w",
			sess.Integration.ID, sess.Integration.Category, category, domain.ErrInvalidInput)
	}
	return nil
}

// transformAll преобразует записи по одной: ошибка записи не прерывает пакет
func transformAll[T any](sess *Session, kind string, raws []Record, fn func(Record) (T, error)) ([]T, SyncResult) {
	var (
		out    []T
		result SyncResult
	)
	for i, raw := range raws {
		item, err := fn(raw)
		if err != nil {
			result.RecordsFailed++
			sess.svc.log.Error().Err(err).
				Str("integration_id", sess.Integration.ID).
				Str("kind", kind).
				Int("index", i).
				Msg("failed to transform record")
			continue
		}
		out = append(out, item)
		result.RecordsSuccess++
	}
	result.RecordsProcessed = result.RecordsSuccess + result.RecordsFailed
	return out, result
}

func expandID(endpoint, id string) string {
	id = url.PathEscape(id)
	if strings.Contains(endpoint, "{id}") {
		return strings.ReplaceAll(endpoint, "{id}", id)
	}
	return strings.TrimRight(endpoint, "/") + "/" + id
}

func withQuery(endpoint string, q url.Values) string {
	if len(q) == 0 {
		return endpoint
	}
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + q.Encode()
}
