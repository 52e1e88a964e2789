package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"hotel-ops-backend/internal/domain"
)

// errorResponse - тело ответа об ошибке
type errorResponse struct {
	Error          string `json:"error"`
	Code           string `json:"code"`
	ProviderStatus int    `json:"provider_status,omitempty"`
}

// statusFor сопоставляет доменную ошибку HTTP статусу
func statusFor(err error) int {
	var pe *domain.ProviderError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidSignature), errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrInactiveIntegration),
		errors.Is(err, domain.ErrUnsupportedEvent),
		errors.Is(err, domain.ErrUnsupportedProvider),
		errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.As(err, &pe):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondError пишет ошибку с кодом из доменной таксономии
func respondError(c echo.Context, err error) error {
	status := statusFor(err)
	body := errorResponse{Error: err.Error(), Code: domain.ErrorCode(err)}

	var pe *domain.ProviderError
	if errors.As(err, &pe) {
		body.ProviderStatus = pe.StatusCode
	}
	// детали внутренних ошибок наружу не отдаем
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request().URL.Path).Msg("request failed")
		body.Error = http.StatusText(status)
	}
	return c.JSON(status, body)
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, errorResponse{Error: message, Code: "INVALID_INPUT"})
}
