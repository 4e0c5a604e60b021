package main

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"taskhub-service/internal/audit"
	"taskhub-service/internal/handler"
	"taskhub-service/internal/middleware"
	"taskhub-service/internal/seed"
	"taskhub-service/pkg/config"
	"taskhub-service/pkg/database"
	"taskhub-service/pkg/jwtutil"
	"taskhub-service/pkg/logger"
	"taskhub-service/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(cfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer log.Sync() //nolint:errcheck

	log.Info("Starting taskhub service...", zap.String("environment", cfg.Server.Env))

	db, err := database.Connect(&cfg.DB)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connected and migrated")

	if cfg.Server.SeedDemo {
		if err := seed.Run(db, log); err != nil {
			log.Fatal("Failed to seed database", zap.Error(err))
		}
	}

	signer := jwtutil.NewSigner(&cfg.JWT)
	recorder := audit.NewRecorder(db, log)
	loginLimiter := middleware.NewRateLimiter(cfg.RateLimit.LoginRPS, cfg.RateLimit.LoginBurst)

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = errorHandler(log)

	// Order matters: recovery first, then request identity, logging, metrics.
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestID)
	e.Use(logger.Middleware(log))
	e.Use(prometheus.MetricsMiddleware())

	handler.RegisterRoutes(e, db, signer, recorder, loginLimiter)

	log.Info("Starting server", zap.String("port", cfg.Server.Port))
	if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}

// errorHandler translates uncaught errors into the standard envelope.
// Internal detail stays in the log, never in the response.
func errorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		message := "Server error"

		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			status = httpErr.Code
			if msg, ok := httpErr.Message.(string); ok {
				message = msg
			}
		} else {
			log.Error("Unhandled error",
				zap.String("path", c.Request().URL.Path),
				zap.Error(err))
		}

		_ = c.JSON(status, echo.Map{"success": false, "message": message})
	}
}
