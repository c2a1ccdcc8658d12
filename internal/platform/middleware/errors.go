package middleware

import "github.com/labstack/echo/v4"

// apiError builds an HTTP error whose body matches the handlers' {"code","message"} shape.
func apiError(status int, code, message string) *echo.HTTPError {
	return echo.NewHTTPError(status, map[string]string{"code": code, "message": message})
}
