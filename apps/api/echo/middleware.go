package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomo-fees/core"
)

// cleanParamsMiddleware trims path params in place and rejects empty ones.
// ParamValues shares its backing array with the pooled context.
func cleanParamsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		names, values := ctx.ParamNames(), ctx.ParamValues()
		for i := range values {
			values[i] = core.CleanString(values[i])
			if values[i] == "" {
				return echo.NewHTTPError(http.StatusBadRequest, names[i]+" is required")
			}
		}
		return next(ctx)
	}
}
