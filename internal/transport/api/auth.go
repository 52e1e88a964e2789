package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	repoInterface "hotel-ops-backend/internal/repository/interface"
	"hotel-ops-backend/internal/transport/middleware"
)

type AuthAPI struct {
	users repoInterface.UserRepository
	auth  *middleware.AuthMiddleware
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userView struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Role    string `json:"role"`
	HotelID string `json:"hotel_id"`
}

type LoginResponse struct {
	Token string   `json:"token"`
	User  userView `json:"user"`
}

func NewAuthAPI(users repoInterface.UserRepository, auth *middleware.AuthMiddleware) *AuthAPI {
	return &AuthAPI{
		users: users,
		auth:  auth,
	}
}

func (a *AuthAPI) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	// Ищем пользователя
	user, err := a.users.FindUserByEmail(c.Request().Context(), strings.TrimSpace(req.Email))
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
	}

	// Проверяем пароль
	if !middleware.CheckPassword(req.Password, user.PasswordHash) {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
	}

	token, err := a.auth.GenerateJWT(user)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to generate token"})
	}

	// cookie для дашборда
	c.SetCookie(&http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return c.JSON(http.StatusOK, LoginResponse{
		Token: token,
		User:  userView{ID: user.ID, Email: user.Email, Role: user.Role, HotelID: user.HotelID},
	})
}

func (a *AuthAPI) Me(c echo.Context) error {
	userID, _ := c.Get(middleware.ContextUserID).(string)

	user, err := a.users.FindUserByID(c.Request().Context(), userID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, userView{ID: user.ID, Email: user.Email, Role: user.Role, HotelID: user.HotelID})
}
