package middleware

import (
	"net/http"
	"strings"

	flowAuth "github.com/MrEthical07/flowAuth"
	"github.com/MrEthical07/flowAuth/jwt"
	"github.com/labstack/echo/v4"
)

const claimsContextKey = "flowauth.claims"

// ClaimsFromContext returns the claims stored by [RequireBearer].
func ClaimsFromContext(c echo.Context) (*jwt.SessionClaims, bool) {
	claims, ok := c.Get(claimsContextKey).(*jwt.SessionClaims)
	return claims, ok
}

// RequireBearer rejects requests whose Authorization header does not carry a
// token the engine can verify. Opaque tokens are never accepted because the
// engine keeps no lookup for them.
func RequireBearer(engine *flowAuth.Engine) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if engine == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
			}

			token, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
			}

			claims, err := engine.ParseToken(token)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
			}

			c.Set(claimsContextKey, claims)
			return next(c)
		}
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
