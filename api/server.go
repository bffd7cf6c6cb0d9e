package api

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	orchestrator "github.com/tanpawarit/asic-salesbot/agent/agents/orchestrator"
	qstashx "github.com/tanpawarit/asic-salesbot/pkg/qstash"
)

type Config struct {
	Addr string `envconfig:"ADDR" default:":8080"`

	// PublicURL is the externally visible base URL; when set, signed
	// deliveries must name it as their subject.
	PublicURL        string        `split_words:"true"`
	VerifySignatures bool          `split_words:"true" default:"false"`
	BodyLimit        int           `split_words:"true" default:"65536" validate:"gte=1024"`
	ShutdownTimeout  time.Duration `split_words:"true" default:"10s"`
}

// TurnHandler is the conversation surface the HTTP layer drives.
type TurnHandler interface {
	HandleMessage(ctx context.Context, sessionID string, text string) (orchestrator.Reply, error)
	ResetSession(ctx context.Context, sessionID string) error
}

type Server struct {
	app      *fiber.App
	handler  TurnHandler
	verifier *qstashx.Verifier
	cfg      Config
}

var validate = validator.New()

// New wires routes and middleware. verifier may be nil when signatures are
// not checked.
func New(handler TurnHandler, verifier *qstashx.Verifier, cfg Config) (*Server, error) {
	if handler == nil {
		return nil, errors.New("turn handler is required")
	}
	if cfg.VerifySignatures && verifier == nil {
		return nil, errors.New("signature verification enabled without a verifier")
	}
	if cfg.BodyLimit <= 0 {
		cfg.BodyLimit = 64 * 1024
	}

	s := &Server{
		handler:  handler,
		verifier: verifier,
		cfg:      cfg,
	}

	app := fiber.New(fiber.Config{
		AppName:               "asic-salesbot",
		BodyLimit:             cfg.BodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(requestLogger)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	v1 := app.Group("/v1")
	if cfg.VerifySignatures {
		v1.Use(s.verifySignature)
	}
	v1.Post("/turns", s.postTurn)
	v1.Delete("/sessions/:id", s.deleteSession)

	s.app = app
	return s, nil
}

func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen() error {
	log.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
	return s.app.Listen(s.cfg.Addr)
}

func (s *Server) Shutdown() error {
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return s.app.ShutdownWithTimeout(timeout)
}

// requestLogger puts a request-scoped zerolog logger into the user context
// so every layer below logs with the request id.
func requestLogger(c *fiber.Ctx) error {
	rid := c.GetRespHeader(fiber.HeaderXRequestID)
	logger := log.With().Str("request_id", rid).Logger()
	c.SetUserContext(logger.WithContext(c.UserContext()))

	started := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	var fe *fiber.Error
	if err != nil {
		status = statusFor(err)
		if errors.As(err, &fe) {
			status = fe.Code
		}
	}
	logger.Info().
		Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status", status).
		Dur("took", time.Since(started)).
		Msg("request")
	return err
}

func (s *Server) verifySignature(c *fiber.Ctx) error {
	url := ""
	if base := strings.TrimRight(strings.TrimSpace(s.cfg.PublicURL), "/"); base != "" {
		url = base + c.OriginalURL()
	}
	if err := s.verifier.Verify(c.Get(qstashx.SignatureHeader), c.Body(), url); err != nil {
		return err
	}
	return c.Next()
}
