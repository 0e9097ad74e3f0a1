package relayHandler

import (
	relayService "SignSync/internal/api/relay/service"
	"SignSync/internal/middleware"
	"SignSync/pkg/handlerUtil"
	"SignSync/pkg/utils"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

const (
	clientIPKey  = "client_ip"
	writeTimeout = 10 * time.Second
)

type Config struct {
	Origins          []string
	IdleTimeout      time.Duration
	LegacyEventNames bool
	// MaxMessageSize caps one inbound socket message in bytes. Larger
	// messages close the session with 1009.
	MaxMessageSize int64
}

type RelayHandler struct {
	log          *logrus.Logger
	validator    *validator.Validate
	middleware   middleware.Middleware
	relayService relayService.IRelayService
	utils        utils.IUtils
	errHandler   *handlerUtil.ErrorHandler
	cfg          Config
}

func New(
	log *logrus.Logger,
	validator *validator.Validate,
	middleware middleware.Middleware,
	rs relayService.IRelayService,
	utils utils.IUtils,
	cfg Config,
) *RelayHandler {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 4 * 1024 * 1024
	}
	if len(cfg.Origins) == 0 {
		cfg.Origins = []string{"*"}
	}

	return &RelayHandler{
		relayService: rs,
		log:          log,
		validator:    validator,
		middleware:   middleware,
		utils:        utils,
		errHandler:   handlerUtil.New(log),
		cfg:          cfg,
	}
}

func (h *RelayHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals(clientIPKey, c.IP())
			h.log.WithFields(logrus.Fields{
				"request_id": h.middleware.GetRequestID(c),
				"client_ip":  c.IP(),
			}).Debug("Socket upgrade requested")
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	srv.Use("/ws", wsMiddleware, h.middleware.NewRateLimiter)
	srv.Get("/ws", websocket.New(h.handleSession, websocket.Config{
		Origins:          h.cfg.Origins,
		HandshakeTimeout: 10 * time.Second,
	}))
}
