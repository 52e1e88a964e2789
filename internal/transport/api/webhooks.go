package api

import (
	"io"
	"net/http"

	"github.com/coder/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"hotel-ops-backend/internal/service/notify"
	"hotel-ops-backend/internal/service/webhook"
	"hotel-ops-backend/internal/transport/middleware"
)

const maxWebhookBody = 1 << 20

// WebhookAPI - публичные эндпоинты провайдеров и сокеты гостей
type WebhookAPI struct {
	dispatcher *webhook.Dispatcher
	hub        *notify.Hub
	auth       *middleware.AuthMiddleware
}

func NewWebhookAPI(dispatcher *webhook.Dispatcher, hub *notify.Hub, auth *middleware.AuthMiddleware) *WebhookAPI {
	return &WebhookAPI{
		dispatcher: dispatcher,
		hub:        hub,
		auth:       auth,
	}
}

// Receive принимает вебхук. Подпись проверяется по сырому телу
func (api *WebhookAPI) Receive(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody+1))
	if err != nil {
		return badRequest(c, "failed to read body")
	}
	if len(body) > maxWebhookBody {
		return c.JSON(http.StatusRequestEntityTooLarge, errorResponse{Error: "body too large", Code: "INVALID_INPUT"})
	}

	result, err := api.dispatcher.Handle(c.Request().Context(), c.Param("id"), c.Request().Header, body)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// Socket открывает websocket гостя по гостевому токену
func (api *WebhookAPI) Socket(c echo.Context) error {
	guestID := c.QueryParam("guestId")
	token := c.QueryParam("token")
	if guestID == "" || token == "" {
		return badRequest(c, "guestId and token are required")
	}

	subject, err := api.auth.ValidateGuestToken(token)
	if err != nil || subject != guestID {
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "invalid token", Code: "UNAUTHORIZED"})
	}

	conn, err := websocket.Accept(c.Response(), c.Request(), nil)
	if err != nil {
		// Accept уже ответил клиенту
		log.Warn().Err(err).Str("guest_id", guestID).Msg("websocket upgrade failed")
		return nil
	}

	if err := api.hub.Serve(c.Request().Context(), guestID, conn); err != nil {
		log.Warn().Err(err).Str("guest_id", guestID).Msg("guest socket closed with error")
	}
	return nil
}
