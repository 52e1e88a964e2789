package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// RequestLogger логирует все запросы
func RequestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				// записываем статус до логирования
				c.Error(err)
			}

			logEvent := log.Info()
			if err != nil {
				logEvent = log.Error().Err(err)
			}

			logEvent.Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Int("status", c.Response().Status).
				Str("ip", c.RealIP()).
				Dur("latency", time.Since(start)).
				Str("user_agent", c.Request().UserAgent()).
				Msg("request")

			return nil
		}
	}
}
