package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"hotel-ops-backend/internal/domain"
	"hotel-ops-backend/internal/service/activity"
)

// TestResult - итог проверки подключения
type TestResult struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"status_code,omitempty"`
	LatencyMS  int64  `json:"latency_ms"`
	Message    string `json:"message"`
	Provider   string `json:"provider"`
}

// TestConnection выполняет проверочный запрос провайдера.
// Допускается в любом статусе интеграции; секреты в журнале маскируются.
func (s *Service) TestConnection(ctx context.Context, integrationID string) (*TestResult, error) {
	sess, err := s.Open(ctx, integrationID, false)
	if err != nil {
		return nil, err
	}

	check := sess.Provider.TestConnection(sess.Integration, sess.creds)
	if check.Method == "" {
		check.Method = http.MethodGet
	}

	result := &TestResult{Provider: sess.Provider.Name()}
	if !s.registry.Known(sess.Integration.Category, sess.Integration.Provider) {
		result.Provider = "generic"
	}

	start := time.Now()
	statusCode, respBody, err := s.sendTest(ctx, check)
	elapsed := time.Since(start)

	result.LatencyMS = elapsed.Milliseconds()
	result.StatusCode = statusCode
	switch {
	case err != nil:
		result.Message = err.Error()
	case statusCode < 200 || statusCode > 299:
		err = providerError(&Response{StatusCode: statusCode, Body: respBody})
		result.Message = err.Error()
	default:
		result.Success = true
		result.Message = "connection successful"
	}

	entry := activity.Entry{
		IntegrationID: sess.Integration.ID,
		OperationType: domain.OperationTest,
		OperationName: "test_connection",
		Direction:     domain.DirectionOutbound,
		Status:        domain.LogStatusSuccess,
		RequestPayload: map[string]interface{}{
			"method":  check.Method,
			"url":     check.URL,
			"headers": redactHeaders(check.Headers),
		},
		ResponsePayload: respBody,
		ProcessingTime:  elapsed,
		Metadata: map[string]interface{}{
			"provider":    result.Provider,
			"status_code": statusCode,
		},
	}
	if err != nil {
		entry.Status = domain.LogStatusFailed
		entry.Err = err
	}
	s.activity.Record(ctx, entry)

	return result, nil
}

func (s *Service) sendTest(ctx context.Context, check TestSpec) (int, []byte, error) {
	if s.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RequestTimeout)
		defer cancel()
	}

	var body io.Reader
	if check.Body != nil {
		raw, err := json.Marshal(check.Body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal test body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, check.Method, check.URL, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build test request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", s.config.UserAgent)
	if check.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range check.Headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", check.Method, check.URL, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read test response: %w", err)
	}
	return resp.StatusCode, raw, nil
}

// redactHeaders маскирует значения всех заголовков, кроме служебных
func redactHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		switch http.CanonicalHeaderKey(k) {
		case "Accept", "Content-Type", "User-Agent":
			out[k] = v
		default:
			if v == "" {
				out[k] = ""
			} else {
				out[k] = "***"
			}
		}
	}
	return out
}
