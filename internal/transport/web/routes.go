package web

import (
	"github.com/labstack/echo/v4"

	repoInterface "hotel-ops-backend/internal/repository/interface"
	"hotel-ops-backend/internal/service/notify"
	"hotel-ops-backend/internal/transport/middleware"
)

func SetupRoutes(
	e *echo.Echo,
	repo repoInterface.IntegrationRepository,
	guests repoInterface.GuestRepository,
	hub *notify.Hub,
	authMiddleware *middleware.AuthMiddleware,
) {
	handler := NewHandler(repo, guests, hub)

	// Защищенные маршруты, токен берется из cookie после логина
	e.GET("/", handler.Dashboard, authMiddleware.RequireAuth)
	e.GET("/integrations/:id/logs", handler.IntegrationLogs, authMiddleware.RequireAuth)
}
