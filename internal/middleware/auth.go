package middleware

import (
	"errors"
	"net/http"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"storefront/internal/auth"
	apperrors "storefront/internal/errors"
)

// ClaimsContextKey is where Authenticate stores the caller's *auth.Claims.
const ClaimsContextKey = "auth.claims"

var errTokenRevoked = errors.New("token has been revoked")

// Authenticate requires a valid "Authorization: Bearer <token>" header. The
// token must be signed by jwtService and must not have been revoked.
func Authenticate(jwtService *auth.JWTService, tokens auth.TokenStoreInterface) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey:  ClaimsContextKey,
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		ParseTokenFunc: func(c echo.Context, raw string) (interface{}, error) {
			claims, err := jwtService.ValidateToken(raw)
			if err != nil {
				return nil, err
			}
			if tokens != nil && tokens.IsRevoked(c.Request().Context(), claims.ID) {
				return nil, errTokenRevoked
			}
			return claims, nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			message := apperrors.ErrUnauthenticated.Error()
			switch {
			case errors.Is(err, errTokenRevoked):
				message = errTokenRevoked.Error()
			case errors.Is(err, auth.ErrInvalidToken):
				message = "invalid or expired token"
			}
			return echo.NewHTTPError(http.StatusUnauthorized, apperrors.ErrorResponse{
				Error: message,
				Code:  "UNAUTHENTICATED",
			})
		},
	})
}

// RequireAdmin rejects callers whose token does not carry the admin role.
// It must run after Authenticate.
func RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims := ClaimsFrom(c)
		if claims == nil {
			return echo.NewHTTPError(http.StatusUnauthorized, apperrors.ErrorResponse{
				Error: apperrors.ErrUnauthenticated.Error(),
				Code:  "UNAUTHENTICATED",
			})
		}
		if !claims.Identity().IsAdmin() {
			return echo.NewHTTPError(http.StatusForbidden, apperrors.ErrorResponse{
				Error: apperrors.ErrForbidden.Error(),
				Code:  "FORBIDDEN",
			})
		}
		return next(c)
	}
}

// ClaimsFrom returns the verified token claims, or nil on public routes.
func ClaimsFrom(c echo.Context) *auth.Claims {
	claims, _ := c.Get(ClaimsContextKey).(*auth.Claims)
	return claims
}

// IdentityFrom returns the authenticated caller. The zero Identity means
// nobody is signed in.
func IdentityFrom(c echo.Context) auth.Identity {
	if claims := ClaimsFrom(c); claims != nil {
		return claims.Identity()
	}
	return auth.Identity{}
}
