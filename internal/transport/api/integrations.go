package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"hotel-ops-backend/internal/domain"
	repoInterface "hotel-ops-backend/internal/repository/interface"
	"hotel-ops-backend/internal/service/integration"
	"hotel-ops-backend/internal/transport/middleware"
)

// Encrypter шифрует секреты провайдера перед сохранением
type Encrypter interface {
	Encrypt(bundle domain.CredentialBundle) (domain.EncryptedCredentials, error)
}

type IntegrationAPI struct {
	repo    repoInterface.IntegrationRepository
	vault   Encrypter
	svc     *integration.Service
	baseURL string
}

type CreateIntegrationRequest struct {
	Name          string                 `json:"name"`
	Category      string                 `json:"category"`
	Provider      string                 `json:"provider"`
	Config        map[string]interface{} `json:"config"`
	Credentials   map[string]string      `json:"credentials"`
	WebhookSecret string                 `json:"webhook_secret"`
	Status        string                 `json:"status"`
}

// UpdateIntegrationRequest - частичное обновление, nil поля не меняются
type UpdateIntegrationRequest struct {
	Name          *string                `json:"name"`
	Config        map[string]interface{} `json:"config"`
	Credentials   map[string]string      `json:"credentials"`
	WebhookSecret *string                `json:"webhook_secret"`
	Status        *string                `json:"status"`
}

// SyncRequest - параметры ручной синхронизации
type SyncRequest struct {
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
	GuestID   string     `json:"guest_id"`
}

// integrationView - интеграция без секретов
type integrationView struct {
	*domain.Integration
	HasCredentials   bool `json:"has_credentials"`
	HasWebhookSecret bool `json:"has_webhook_secret"`
}

func view(in *domain.Integration) integrationView {
	return integrationView{
		Integration:      in,
		HasCredentials:   !in.Credentials.IsZero(),
		HasWebhookSecret: in.HasWebhookSecret(),
	}
}

func NewIntegrationAPI(repo repoInterface.IntegrationRepository, vault Encrypter, svc *integration.Service, baseURL string) *IntegrationAPI {
	return &IntegrationAPI{
		repo:    repo,
		vault:   vault,
		svc:     svc,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (api *IntegrationAPI) List(c echo.Context) error {
	integrations, err := api.repo.FindByHotelID(c.Request().Context(), middleware.HotelID(c))
	if err != nil {
		return respondError(c, err)
	}

	views := make([]integrationView, 0, len(integrations))
	for _, in := range integrations {
		views = append(views, view(in))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":  views,
		"total": len(views),
	})
}

func (api *IntegrationAPI) Create(c echo.Context) error {
	var req CreateIntegrationRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Provider = strings.TrimSpace(req.Provider)
	if req.Name == "" || req.Provider == "" {
		return badRequest(c, "name and provider are required")
	}
	if !domain.ValidCategory(req.Category) {
		return badRequest(c, "unknown category")
	}
	if req.Status == "" {
		req.Status = domain.StatusActive
	}
	if !domain.ValidStatus(req.Status) {
		return badRequest(c, "unknown status")
	}

	in := &domain.Integration{
		ID:            uuid.NewString(),
		HotelID:       middleware.HotelID(c),
		Name:          req.Name,
		Category:      req.Category,
		Provider:      req.Provider,
		Config:        domain.JSONMap(req.Config),
		WebhookSecret: req.WebhookSecret,
		Status:        req.Status,
	}
	if in.Config == nil {
		in.Config = domain.JSONMap{}
	}
	in.WebhookURL = api.baseURL + "/webhooks/" + in.ID

	// Шифруем секреты
	if len(req.Credentials) > 0 {
		enc, err := api.vault.Encrypt(domain.CredentialBundle(req.Credentials))
		if err != nil {
			return respondError(c, err)
		}
		in.Credentials = enc
	}

	if err := api.repo.Create(c.Request().Context(), in); err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusCreated, view(in))
}

func (api *IntegrationAPI) Get(c echo.Context) error {
	in, err := api.find(c)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, view(in))
}

func (api *IntegrationAPI) Update(c echo.Context) error {
	var req UpdateIntegrationRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	in, err := api.find(c)
	if err != nil {
		return respondError(c, err)
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return badRequest(c, "name must not be empty")
		}
		in.Name = strings.TrimSpace(*req.Name)
	}
	if req.Config != nil {
		in.Config = domain.JSONMap(req.Config)
	}
	if req.WebhookSecret != nil {
		in.WebhookSecret = *req.WebhookSecret
	}
	if req.Status != nil {
		if !domain.ValidStatus(*req.Status) {
			return badRequest(c, "unknown status")
		}
		in.Status = *req.Status
	}
	if len(req.Credentials) > 0 {
		enc, err := api.vault.Encrypt(domain.CredentialBundle(req.Credentials))
		if err != nil {
			return respondError(c, err)
		}
		in.Credentials = enc
	}

	if err := api.repo.Update(c.Request().Context(), in); err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, view(in))
}

func (api *IntegrationAPI) Delete(c echo.Context) error {
	if err := api.repo.Delete(c.Request().Context(), c.Param("id"), middleware.HotelID(c)); err != nil {
		return respondError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (api *IntegrationAPI) GetLogs(c echo.Context) error {
	in, err := api.find(c)
	if err != nil {
		return respondError(c, err)
	}

	limit, offset := paging(c)
	filter := domain.LogFilter{
		OperationType: c.QueryParam("operation_type"),
		Status:        c.QueryParam("status"),
	}

	logs, total, err := api.repo.GetLogs(c.Request().Context(), in.ID, filter, limit, offset)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":   logs,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// Stats - сводка журнала интеграции
func (api *IntegrationAPI) Stats(c echo.Context) error {
	in, err := api.find(c)
	if err != nil {
		return respondError(c, err)
	}

	stats, err := api.repo.LogStats(c.Request().Context(), in.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

// Test проверяет подключение к провайдеру. Неуспешная проверка - не ошибка запроса
func (api *IntegrationAPI) Test(c echo.Context) error {
	in, err := api.find(c)
	if err != nil {
		return respondError(c, err)
	}

	result, err := api.svc.TestConnection(c.Request().Context(), in.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// Sync запускает синхронизацию по категории интеграции
func (api *IntegrationAPI) Sync(c echo.Context) error {
	var req SyncRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return badRequest(c, "invalid request")
		}
	}

	in, err := api.find(c)
	if err != nil {
		return respondError(c, err)
	}

	ctx := c.Request().Context()
	var result interface{}
	switch in.Category {
	case domain.CategoryPOS:
		result, err = api.svc.SyncMenus(ctx, in.ID)
	case domain.CategoryPMS:
		result, err = api.svc.SyncReservations(ctx, in.ID, req.StartDate, req.EndDate)
	case domain.CategoryGuestManagement:
		result, err = api.svc.SyncGuestData(ctx, in.ID, req.GuestID)
	default:
		return badRequest(c, "unknown category")
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

func (api *IntegrationAPI) PostFeedback(c echo.Context) error {
	var req domain.Feedback
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if req.GuestID == "" {
		return badRequest(c, "guest_id is required")
	}
	if req.Rating < 0 || req.Rating > 5 {
		return badRequest(c, "rating must be between 0 and 5")
	}
	return api.passthrough(c, func(id string) (interface{}, error) {
		return api.svc.PostFeedback(c.Request().Context(), id, req)
	})
}

func (api *IntegrationAPI) PostChatMessage(c echo.Context) error {
	var req domain.ChatMessage
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if req.GuestID == "" || strings.TrimSpace(req.Text) == "" {
		return badRequest(c, "guest_id and text are required")
	}
	return api.passthrough(c, func(id string) (interface{}, error) {
		return api.svc.PostChatMessage(c.Request().Context(), id, req)
	})
}

func (api *IntegrationAPI) PostNotification(c echo.Context) error {
	var req domain.GuestNotification
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if req.GuestID == "" || strings.TrimSpace(req.Body) == "" {
		return badRequest(c, "guest_id and body are required")
	}
	return api.passthrough(c, func(id string) (interface{}, error) {
		return api.svc.PostNotification(c.Request().Context(), id, req)
	})
}

func (api *IntegrationAPI) GetFeedback(c echo.Context) error {
	return api.passthrough(c, func(id string) (interface{}, error) {
		return api.svc.GetFeedback(c.Request().Context(), id, queryFilter(c))
	})
}

func (api *IntegrationAPI) GetChatMessages(c echo.Context) error {
	return api.passthrough(c, func(id string) (interface{}, error) {
		return api.svc.GetChatMessages(c.Request().Context(), id, queryFilter(c))
	})
}

func (api *IntegrationAPI) GetNotifications(c echo.Context) error {
	return api.passthrough(c, func(id string) (interface{}, error) {
		return api.svc.GetNotifications(c.Request().Context(), id, queryFilter(c))
	})
}

// passthrough проверяет принадлежность интеграции отелю и отдает ответ провайдера
func (api *IntegrationAPI) passthrough(c echo.Context, call func(id string) (interface{}, error)) error {
	in, err := api.find(c)
	if err != nil {
		return respondError(c, err)
	}
	data, err := call(in.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": data})
}

// find ищет интеграцию в пределах отеля оператора
func (api *IntegrationAPI) find(c echo.Context) (*domain.Integration, error) {
	return api.repo.FindByIDAndHotel(c.Request().Context(), c.Param("id"), middleware.HotelID(c))
}

func queryFilter(c echo.Context) map[string]string {
	filter := make(map[string]string)
	for key, values := range c.QueryParams() {
		if len(values) > 0 && values[0] != "" {
			filter[key] = values[0]
		}
	}
	return filter
}

func paging(c echo.Context) (int, int) {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
