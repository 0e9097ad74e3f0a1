package config

import (
	relayHandler "SignSync/internal/api/relay/handler"
	relayService "SignSync/internal/api/relay/service"
	"SignSync/internal/middleware"
	"SignSync/pkg/classifier"
	"SignSync/pkg/imaging"
	"SignSync/pkg/utils"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type ServerOption func(*Server) error

type Server struct {
	engine     *fiber.App
	env        *Env
	log        *logrus.Logger
	middleware middleware.Middleware
	validator  *validator.Validate
	utils      utils.IUtils
	classifier classifier.Classifier
	handlers   []handler
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.env == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if server.utils == nil {
		server.utils = utils.New()
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithEnv(cfg *Env) ServerOption {
	return func(s *Server) error {
		s.env = cfg
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

// WithClassifier hands over the loaded model. The server owns it from here
// and closes it on Shutdown.
func WithClassifier(model classifier.Classifier) ServerOption {
	return func(s *Server) error {
		s.classifier = model
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		if s.env == nil {
			return fmt.Errorf("configuration must be loaded before middleware")
		}
		s.middleware = middleware.New(s.log, middleware.Config{
			RateLimit: rate.Limit(s.env.UpgradeRate),
			Burst:     s.env.UpgradeBurst,
		})
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		s.utils = utils.New()
		return nil
	}
}

func (s *Server) RegisterHandler() error {
	if s.middleware == nil {
		return fmt.Errorf("middleware is required")
	}

	relayServices, err := relayService.NewRelayService(
		s.log,
		s.env.RelayMode,
		imaging.NewPreprocessor(s.env.Model.ImageSize),
		s.classifier,
	)
	if err != nil {
		return fmt.Errorf("failed to create relay service: %w", err)
	}

	relayHandlers := relayHandler.New(s.log, s.validator, s.middleware, relayServices, s.utils, relayHandler.Config{
		Origins:          s.env.AllowedOrigins,
		IdleTimeout:      s.env.SocketIdle,
		LegacyEventNames: s.env.LegacyEventNames,
		MaxMessageSize:   s.env.MaxMessageBytes,
	})

	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewLoggingMiddleware())
	s.engine.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(s.env.AllowedOrigins, ","),
		AllowMethods: "GET,OPTIONS",
	}))

	s.setupHealthCheck()
	s.handlers = append(s.handlers, relayHandlers)

	for _, h := range s.handlers {
		h.Start(s.engine)
	}

	s.log.WithFields(logrus.Fields{
		"mode":    relayServices.Mode(),
		"origins": s.env.AllowedOrigins,
	}).Info("Frame relay registered")

	return nil
}

func (s *Server) Run() error {
	s.log.WithField("address", s.env.Address()).Info("Listening")
	return s.engine.Listen(s.env.Address())
}

func (s *Server) Shutdown(timeout time.Duration) error {
	err := s.engine.ShutdownWithTimeout(timeout)

	if s.classifier != nil {
		if closeErr := s.classifier.Close(); closeErr != nil {
			s.log.WithError(closeErr).Warn("Failed to release classifier")
		}
	}

	return err
}

// Engine exposes the fiber app for tests and embedding.
func (s *Server) Engine() *fiber.App {
	return s.engine
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/health", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).SendString("OK")
	})
}
