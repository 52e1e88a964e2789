package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"hotel-ops-backend/internal/domain"
)

// Ключи echo.Context, заполняемые RequireAuth
const (
	ContextUserID  = "user_id"
	ContextRole    = "user_role"
	ContextHotelID = "hotel_id"
)

// Cookie дашборда с токеном оператора
const TokenCookie = "token"

const (
	operatorTokenTTL = 24 * time.Hour
	guestScope       = "guest"
)

// AuthMiddleware - middleware для аутентификации
type AuthMiddleware struct {
	jwtSecret []byte
	nowFn     func() time.Time
}

// NewAuthMiddleware создает новый middleware
func NewAuthMiddleware(jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{
		jwtSecret: []byte(jwtSecret),
		nowFn:     time.Now,
	}
}

// RequireAuth требует аутентификации оператора через JWT
func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := extractToken(c.Request())
		if token == "" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing token"})
		}

		claims, err := m.validateJWT(token)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid token"})
		}

		// гостевой токен не дает доступа к API операторов
		if scope, _ := claims["scope"].(string); scope == guestScope {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid token"})
		}
		userID, _ := claims["user_id"].(string)
		hotelID, _ := claims["hotel_id"].(string)
		if userID == "" || hotelID == "" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid token"})
		}

		c.Set(ContextUserID, userID)
		c.Set(ContextRole, claims["role"])
		c.Set(ContextHotelID, hotelID)

		return next(c)
	}
}

// GenerateJWT генерирует JWT токен для оператора
func (m *AuthMiddleware) GenerateJWT(user *domain.User) (string, error) {
	now := m.nowFn()
	claims := jwt.MapClaims{
		"user_id":  user.ID,
		"role":     user.Role,
		"hotel_id": user.HotelID,
		"exp":      now.Add(operatorTokenTTL).Unix(),
		"iat":      now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.jwtSecret)
}

// GenerateGuestToken выдает токен для подключения гостя к /ws
func (m *AuthMiddleware) GenerateGuestToken(guestID string, ttl time.Duration) (string, error) {
	now := m.nowFn()
	claims := jwt.MapClaims{
		"sub":   guestID,
		"scope": guestScope,
		"exp":   now.Add(ttl).Unix(),
		"iat":   now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.jwtSecret)
}

// ValidateGuestToken проверяет гостевой токен и возвращает ID гостя
func (m *AuthMiddleware) ValidateGuestToken(tokenString string) (string, error) {
	claims, err := m.validateJWT(tokenString)
	if err != nil {
		return "", err
	}
	if scope, _ := claims["scope"].(string); scope != guestScope {
		return "", domain.ErrUnauthorized
	}
	guestID, _ := claims["sub"].(string)
	if guestID == "" {
		return "", domain.ErrUnauthorized
	}
	return guestID, nil
}

// validateJWT проверяет JWT токен
func (m *AuthMiddleware) validateJWT(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrUnauthorized
		}
		return m.jwtSecret, nil
	}, jwt.WithTimeFunc(m.nowFn))

	if err != nil {
		return nil, errors.Join(domain.ErrUnauthorized, err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, domain.ErrUnauthorized
}

// HashPassword хеширует пароль
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword проверяет пароль
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// HotelID возвращает отель текущего оператора
func HotelID(c echo.Context) string {
	v, _ := c.Get(ContextHotelID).(string)
	return v
}

// extractToken берет токен из заголовка Authorization или cookie дашборда
func extractToken(r *http.Request) string {
	bearToken := r.Header.Get("Authorization")
	parts := strings.Split(bearToken, " ")
	if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
		return parts[1]
	}
	if cookie, err := r.Cookie(TokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}
