package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInactiveIntegration = errors.New("integration is not active")
	ErrInvalidSignature    = errors.New("invalid webhook signature")
	ErrDecryption          = errors.New("failed to decrypt credentials")
	ErrUnsupportedEvent    = errors.New("unsupported event type")
	ErrUnsupportedProvider = errors.New("unsupported provider")
	ErrInvalidInput        = errors.New("invalid input")
	ErrUnauthorized        = errors.New("unauthorized")
)

// ProviderError - ответ провайдера с кодом не 2xx
type ProviderError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("provider returned %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	if e.Message != "" {
		return fmt.Sprintf("provider returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider returned %d", e.StatusCode)
}

// ErrorCode извлекает код ошибки для журнала
func ErrorCode(err error) string {
	var pe *ProviderError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &pe):
		if pe.Code != "" {
			return pe.Code
		}
		return fmt.Sprintf("HTTP_%d", pe.StatusCode)
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrInactiveIntegration):
		return "INACTIVE_INTEGRATION"
	case errors.Is(err, ErrInvalidSignature):
		return "INVALID_SIGNATURE"
	case errors.Is(err, ErrDecryption):
		return "DECRYPTION_FAILED"
	case errors.Is(err, ErrUnsupportedEvent):
		return "UNSUPPORTED_EVENT"
	case errors.Is(err, ErrUnsupportedProvider):
		return "UNSUPPORTED_PROVIDER"
	case errors.Is(err, ErrInvalidInput):
		return "INVALID_INPUT"
	}
	return "INTERNAL"
}
