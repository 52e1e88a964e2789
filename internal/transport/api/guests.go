package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"hotel-ops-backend/internal/domain"
	repoInterface "hotel-ops-backend/internal/repository/interface"
	"hotel-ops-backend/internal/service/notify"
	"hotel-ops-backend/internal/transport/middleware"
)

const guestTokenTTL = 12 * time.Hour

type GuestAPI struct {
	guests   repoInterface.GuestRepository
	notifier notify.Notifier
	hub      *notify.Hub
	auth     *middleware.AuthMiddleware
}

// NotifyRequest - уведомление гостю от оператора
type NotifyRequest struct {
	Title string                 `json:"title"`
	Body  string                 `json:"body"`
	Type  string                 `json:"type"`
	Data  map[string]interface{} `json:"data"`
}

func (r NotifyRequest) message() notify.Message {
	data := map[string]interface{}{"title": r.Title, "body": r.Body}
	for k, v := range r.Data {
		if _, ok := data[k]; !ok {
			data[k] = v
		}
	}
	msgType := r.Type
	if msgType != notify.TypeSystem {
		msgType = notify.TypeNotification
	}
	return notify.Message{Type: msgType, Data: data}
}

func NewGuestAPI(guests repoInterface.GuestRepository, notifier notify.Notifier, hub *notify.Hub, auth *middleware.AuthMiddleware) *GuestAPI {
	return &GuestAPI{
		guests:   guests,
		notifier: notifier,
		hub:      hub,
		auth:     auth,
	}
}

func (api *GuestAPI) List(c echo.Context) error {
	limit, offset := paging(c)
	guests, total, err := api.guests.FindByHotelID(c.Request().Context(), middleware.HotelID(c), limit, offset)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":   guests,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (api *GuestAPI) Get(c echo.Context) error {
	guest, err := api.find(c)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, guest)
}

// Token выдает гостю токен для подключения к /ws
func (api *GuestAPI) Token(c echo.Context) error {
	guest, err := api.find(c)
	if err != nil {
		return respondError(c, err)
	}

	token, err := api.auth.GenerateGuestToken(guest.ID, guestTokenTTL)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"token":      token,
		"guest_id":   guest.ID,
		"expires_in": int(guestTokenTTL.Seconds()),
	})
}

func (api *GuestAPI) Notify(c echo.Context) error {
	var req NotifyRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if strings.TrimSpace(req.Body) == "" {
		return badRequest(c, "body is required")
	}

	guest, err := api.find(c)
	if err != nil {
		return respondError(c, err)
	}

	delivered, err := api.notifier.SendToGuest(c.Request().Context(), guest.ID, req.message())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"guest_id": guest.ID, "delivered": delivered})
}

func (api *GuestAPI) Broadcast(c echo.Context) error {
	var req NotifyRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if strings.TrimSpace(req.Body) == "" {
		return badRequest(c, "body is required")
	}

	ctx := c.Request().Context()
	ids, err := notify.HotelGuestIDs(ctx, api.guests, middleware.HotelID(c))
	if err != nil {
		return respondError(c, err)
	}

	delivered := 0
	if len(ids) > 0 {
		if delivered, err = api.notifier.SendToGuests(ctx, ids, req.message()); err != nil {
			return respondError(c, err)
		}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"delivered": delivered})
}

// Stats - соединения гостей отеля на этом экземпляре
func (api *GuestAPI) Stats(c echo.Context) error {
	ids, err := notify.HotelGuestIDs(c.Request().Context(), api.guests, middleware.HotelID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, api.hub.StatsFor(ids))
}

// find ищет гостя в пределах отеля оператора
func (api *GuestAPI) find(c echo.Context) (*domain.Guest, error) {
	guest, err := api.guests.FindByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return nil, err
	}
	if guest.HotelID != middleware.HotelID(c) {
		return nil, domain.ErrNotFound
	}
	return guest, nil
}
