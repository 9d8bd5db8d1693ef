package router

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/time/rate"

	"storefront/internal/auth"
	"storefront/internal/config"
	"storefront/internal/errors"
	"storefront/internal/handler"
	"storefront/internal/metrics"
	mw "storefront/internal/middleware"
)

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	cfg *config.Config,
	log logrus.FieldLogger,
	jwtService *auth.JWTService,
	tokenStore auth.TokenStoreInterface,
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	productHandler *handler.ProductHandler,
	orderHandler *handler.OrderHandler,
) {
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = handler.ErrorHandler(log)

	e.Use(middleware.RequestID())
	e.Use(mw.RequestLogger(log))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSAllowOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(middleware.BodyLimit("1M"))
	e.Use(metrics.Middleware())

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	authn := mw.Authenticate(jwtService, tokenStore)
	credentialsLimiter := authRateLimiter(cfg.AuthRateLimit, cfg.AuthRateBurst)

	api := e.Group("/api")

	// Account routes
	users := api.Group("/users")
	users.POST("/register", authHandler.Register, credentialsLimiter)
	users.POST("/login", authHandler.Login, credentialsLimiter)
	users.POST("/logout", authHandler.Logout, authn)
	users.GET("/profile", userHandler.GetProfile, authn)
	users.PUT("/profile", userHandler.UpdateProfile, authn)
	users.DELETE("/profile", userHandler.DeleteProfile, authn)

	// Catalog routes; writes are admin only
	products := api.Group("/products")
	products.GET("", productHandler.ListProducts)
	products.GET("/:id", productHandler.GetProduct)
	products.POST("", productHandler.CreateProduct, authn, mw.RequireAdmin)
	products.PUT("/:id", productHandler.UpdateProduct, authn, mw.RequireAdmin)
	products.DELETE("/:id", productHandler.DeleteProduct, authn, mw.RequireAdmin)

	// Order routes
	orders := api.Group("/orders", authn)
	orders.POST("", orderHandler.CreateOrder)
	orders.GET("", orderHandler.ListOrders)
	orders.GET("/:id", orderHandler.GetOrder)
}

// authRateLimiter throttles credential endpoints per client IP.
func authRateLimiter(perSecond float64, burst int) echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(perSecond),
			Burst:     burst,
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, errors.ErrorResponse{
				Error: "too many requests, try again later",
				Code:  "RATE_LIMITED",
			})
		},
	})
}
