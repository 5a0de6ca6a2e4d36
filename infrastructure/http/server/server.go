// Package server exposes the chat service over HTTP. Handlers do nothing
// but extract the identity header, parse the payload, call the service and
// translate its outcome into a status code.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"chatroom/services"
)

// HeaderIdentity carries the caller's participant name. Identity always
// comes from this header, never from the request body.
const HeaderIdentity = "X-User"

type Server struct {
	app     *fiber.App
	service services.IChatService
	log     *slog.Logger
}

func NewServer(service services.IChatService, log *slog.Logger) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "chatroom",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	s := &Server{app: app, service: service, log: log}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Post("/participants", s.registerParticipant)
	s.app.Get("/participants", s.listParticipants)
	s.app.Post("/messages", s.postMessage)
	s.app.Get("/messages", s.getMessages)
	s.app.Get("/messages/search", s.searchMessages)
	s.app.Put("/messages/:id", s.editMessage)
	s.app.Delete("/messages/:id", s.deleteMessage)
	s.app.Post("/status", s.heartbeat)
	s.app.Get("/healthz", s.healthz)
}

func (s *Server) Listen(address string) error {
	return s.app.Listen(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// Test dispatches an in-memory request, for handler tests.
func (s *Server) Test(req *http.Request) (*http.Response, error) {
	return s.app.Test(req, -1)
}
