package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"Wonderland/pkg/logger"

	"github.com/labstack/echo/v4"
)

func Recover(lgr *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					lgr.Error("http handler panic",
						logger.String("panic", fmt.Sprint(r)),
						logger.String("path", c.Path()),
						logger.String("stack", string(debug.Stack())))
					err = c.JSON(http.StatusInternalServerError, map[string]interface{}{
						"status":  http.StatusInternalServerError,
						"message": http.StatusText(http.StatusInternalServerError),
					})
				}
			}()
			return next(c)
		}
	}
}
