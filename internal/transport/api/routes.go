package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	repoInterface "hotel-ops-backend/internal/repository/interface"
	"hotel-ops-backend/internal/service/integration"
	"hotel-ops-backend/internal/service/notify"
	"hotel-ops-backend/internal/service/webhook"
	"hotel-ops-backend/internal/transport/middleware"
)

// Deps - зависимости HTTP API
type Deps struct {
	Integrations repoInterface.IntegrationRepository
	Guests       repoInterface.GuestRepository
	Users        repoInterface.UserRepository
	Vault        Encrypter
	Service      *integration.Service
	Dispatcher   *webhook.Dispatcher
	Notifier     notify.Notifier
	Hub          *notify.Hub
	Auth         *middleware.AuthMiddleware
	Metrics      http.Handler
	BaseURL      string
}

// SetupRoutes настраивает маршруты API
func SetupRoutes(e *echo.Echo, deps Deps) {
	// Публичные маршруты (без аутентификации)
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(deps.Metrics))
	}

	webhookAPI := NewWebhookAPI(deps.Dispatcher, deps.Hub, deps.Auth)
	e.POST("/webhooks/:id", webhookAPI.Receive)
	e.GET("/ws", webhookAPI.Socket)

	v1 := e.Group("/api/v1")
	authAPI := NewAuthAPI(deps.Users, deps.Auth)
	v1.POST("/auth/login", authAPI.Login)

	// Защищенные маршруты (требуют JWT)
	protected := v1.Group("", deps.Auth.RequireAuth)
	protected.GET("/me", authAPI.Me)

	// Интеграции
	integrationAPI := NewIntegrationAPI(deps.Integrations, deps.Vault, deps.Service, deps.BaseURL)
	protected.GET("/integrations", integrationAPI.List)
	protected.POST("/integrations", integrationAPI.Create)
	protected.GET("/integrations/:id", integrationAPI.Get)
	protected.PUT("/integrations/:id", integrationAPI.Update)
	protected.DELETE("/integrations/:id", integrationAPI.Delete)
	protected.GET("/integrations/:id/logs", integrationAPI.GetLogs)
	protected.GET("/integrations/:id/stats", integrationAPI.Stats)
	protected.POST("/integrations/:id/test", integrationAPI.Test)
	protected.POST("/integrations/:id/sync", integrationAPI.Sync)

	// Система управления гостями
	protected.POST("/integrations/:id/feedback", integrationAPI.PostFeedback)
	protected.GET("/integrations/:id/feedback", integrationAPI.GetFeedback)
	protected.POST("/integrations/:id/chat-messages", integrationAPI.PostChatMessage)
	protected.GET("/integrations/:id/chat-messages", integrationAPI.GetChatMessages)
	protected.POST("/integrations/:id/notifications", integrationAPI.PostNotification)
	protected.GET("/integrations/:id/notifications", integrationAPI.GetNotifications)

	// Гости и уведомления
	guestAPI := NewGuestAPI(deps.Guests, deps.Notifier, deps.Hub, deps.Auth)
	protected.GET("/guests", guestAPI.List)
	protected.GET("/guests/:id", guestAPI.Get)
	protected.POST("/guests/:id/token", guestAPI.Token)
	protected.POST("/guests/:id/notify", guestAPI.Notify)
	protected.POST("/notifications/broadcast", guestAPI.Broadcast)
	protected.GET("/notifications/stats", guestAPI.Stats)
}
