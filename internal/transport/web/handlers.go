package web

import (
	"net/http"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"hotel-ops-backend/internal/domain"
	repoInterface "hotel-ops-backend/internal/repository/interface"
	"hotel-ops-backend/internal/service/notify"
	"hotel-ops-backend/internal/transport/middleware"
	"hotel-ops-backend/internal/web/templates"
)

const logsPageSize = 100

// Handler - обработчик веб-интерфейса
type Handler struct {
	repo   repoInterface.IntegrationRepository
	guests repoInterface.GuestRepository
	hub    *notify.Hub
}

// NewHandler создает новый обработчик
func NewHandler(repo repoInterface.IntegrationRepository, guests repoInterface.GuestRepository, hub *notify.Hub) *Handler {
	return &Handler{
		repo:   repo,
		guests: guests,
		hub:    hub,
	}
}

// Dashboard отображает главную страницу с дашбордом
func (h *Handler) Dashboard(c echo.Context) error {
	hotelID := middleware.HotelID(c)

	integrations, err := h.repo.FindByHotelID(c.Request().Context(), hotelID)
	if err != nil {
		return c.String(http.StatusInternalServerError, "Failed to load data")
	}

	guestIDs, err := notify.HotelGuestIDs(c.Request().Context(), h.guests, hotelID)
	if err != nil {
		return c.String(http.StatusInternalServerError, "Failed to load data")
	}

	stats := h.hub.StatsFor(guestIDs)
	return render(c, templates.Dashboard(templates.DashboardData{
		HotelID:      hotelID,
		Integrations: integrations,
		Connections:  stats.TotalConnections,
		Guests:       stats.UniqueGuests,
	}))
}

// IntegrationLogs отображает журнал интеграции
func (h *Handler) IntegrationLogs(c echo.Context) error {
	ctx := c.Request().Context()

	in, err := h.repo.FindByIDAndHotel(ctx, c.Param("id"), middleware.HotelID(c))
	if err != nil {
		return c.String(http.StatusNotFound, "Integration not found")
	}

	logs, total, err := h.repo.GetLogs(ctx, in.ID, domain.LogFilter{
		OperationType: c.QueryParam("operation_type"),
		Status:        c.QueryParam("status"),
	}, logsPageSize, 0)
	if err != nil {
		return c.String(http.StatusInternalServerError, "Failed to load logs")
	}

	stats, err := h.repo.LogStats(ctx, in.ID)
	if err != nil {
		return c.String(http.StatusInternalServerError, "Failed to load logs")
	}

	return render(c, templates.IntegrationLogs(in, logs, total, stats))
}

func render(c echo.Context, component templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(http.StatusOK)
	return component.Render(c.Request().Context(), c.Response().Writer)
}
