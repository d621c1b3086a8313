package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/chimeradata/chimera/pkg/api/handlers"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/sirupsen/logrus"
)

// Service defines the API service interface
type Service interface {
	Start(ctx context.Context) error
	Stop() error
}

type service struct {
	app    *fiber.App
	server *http.Server
	config *Config
	srv    *handlers.Server
	log    logrus.FieldLogger
}

// NewService creates a new API service
func NewService(log logrus.FieldLogger, cfg *Config, srv *handlers.Server) Service {
	return &service{
		config: cfg,
		srv:    srv,
		log:    log.WithField("service", "api"),
	}
}

// Start initializes and starts the API server
func (s *service) Start(_ context.Context) error {
	if !s.config.Enabled {
		s.log.Info("API service is disabled")

		return nil
	}

	s.app = fiber.New(fiber.Config{
		ErrorHandler: newErrorHandler(s.log),
		AppName:      "Chimera API",
	})

	setupMiddleware(s.app)

	s.srv.Register(s.app.Group("/api/v1"))

	s.server = &http.Server{
		Addr:              s.config.Addr,
		Handler:           adaptor.FiberApp(s.app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		s.log.WithField("addr", s.config.Addr).Info("Starting API server")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("Server failed to start")
		}
	}()

	return nil
}

// Stop gracefully shuts down the API server
func (s *service) Stop() error {
	if s.server == nil {
		return nil
	}

	s.log.Info("Stopping API server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}
