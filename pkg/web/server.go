// Package web exposes the service over HTTP and WebSocket: a health
// endpoint and the conversation socket that feeds the pipeline.
package web

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/voicebridge/pkg/health"
	"github.com/teslashibe/voicebridge/pkg/hub"
	"github.com/teslashibe/voicebridge/pkg/pipeline"
)

// Server hosts the HTTP API and the conversation WebSocket.
type Server struct {
	app       *fiber.App
	port      int
	orch      *pipeline.Orchestrator
	health    *health.Aggregator
	statusHub *hub.Hub
	logger    *slog.Logger
}

// Options configure a Server.
type Options struct {
	Port         int
	Orchestrator *pipeline.Orchestrator
	Health       *health.Aggregator
	// StatusHub, when set, serves live status updates on /ws/status.
	StatusHub *hub.Hub
	Logger    *slog.Logger
}

// NewServer wires the routes and returns a server ready to listen.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Server{
		port:      opts.Port,
		orch:      opts.Orchestrator,
		health:    opts.Health,
		statusHub: opts.StatusHub,
		logger:    opts.Logger,
	}

	app := fiber.New(fiber.Config{
		AppName:               "voicebridge",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New())

	app.Get("/health", s.handleHealth)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/conversation", websocket.New(s.handleConversation))
	if s.statusHub != nil {
		app.Get("/ws/status", websocket.New(s.handleStatusSocket))
	}

	s.app = app
	return s
}

// Listen blocks serving requests until Shutdown is called.
func (s *Server) Listen() error {
	if s.statusHub != nil {
		go s.statusHub.Run()
	}
	s.logger.Info("server listening", "port", s.port)
	return s.app.Listen(fmt.Sprintf(":%d", s.port))
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// handleHealth reports aggregate component health. The endpoint always
// answers 200; a degraded service still serves traffic and the body carries
// the per-component detail.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(s.health.Check(c.Context()))
}

// handleConversation hands the upgraded socket to the pipeline, which owns
// it for the rest of the session.
func (s *Server) handleConversation(c *websocket.Conn) {
	conn := newWSConn(c)
	id := s.orch.Run(context.Background(), conn)
	s.logger.Debug("conversation socket released", "session_id", id)
}

// handleStatusSocket attaches the subscriber to the status hub and blocks
// until it disconnects.
func (s *Server) handleStatusSocket(c *websocket.Conn) {
	hub.NewClient(s.statusHub, c).Run()
}
