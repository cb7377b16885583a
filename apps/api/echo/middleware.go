package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/virtuallab/core/user"
)

// revokedTokenMiddleware rejects tokens invalidated by a logout or a refresh.
// It must run after the JWT middleware.
func revokedTokenMiddleware(svc user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.Id == "" {
				return errTokenRevoked
			}
			revoked, err := svc.IsTokenRevoked(ctx.Request().Context(), claims.Id)
			if err != nil {
				return errors.Wrap(err, "checking revoked token")
			}
			if revoked {
				return errTokenRevoked
			}
			return next(ctx)
		}
	}
}
