package http_handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/anvndev/go-distributed-search/internal/node/config"
	"github.com/anvndev/go-distributed-search/internal/node/index"
)

// Server exposes one node's document and search API, the surface the
// coordinator's HTTP adapter talks to.
type Server struct {
	app *fiber.App
	cfg *config.Config
	idx *index.Index
}

func NewServer(cfg *config.Config, idx *index.Index) *Server {
	app := fiber.New(fiber.Config{
		AppName: "search-node",
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())

	s := &Server{app: app, cfg: cfg, idx: idx}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.app.Post("/documents", s.handlePutDocument)
	s.app.Delete("/documents/:id", s.handleDeleteDocument)
	s.app.Post("/search", s.handleSearch)
	s.app.Get("/healthz", s.handleHealth)
}

func (s *Server) Start() error {
	return s.app.Listen(s.cfg.Server.Addr)
}

func (s *Server) Stop(ctx context.Context) error {
	return s.app.Shutdown()
}

// App exposes the fiber app for in-process tests.
func (s *Server) App() *fiber.App {
	return s.app
}

type putDocumentRequest struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

func (s *Server) handlePutDocument(c *fiber.Ctx) error {
	var req putDocumentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.ID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing 'id'"})
	}

	s.idx.Put(req.ID, req.Fields)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": req.ID})
}

func (s *Server) handleDeleteDocument(c *fiber.Ctx) error {
	if !s.idx.Delete(c.Params("id")) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Document not found"})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type searchRequest struct {
	Query  string `json:"query"`
	Limit  uint   `json:"limit"`
	Offset uint   `json:"offset"`
}

func (s *Server) handleSearch(c *fiber.Ctx) error {
	var req searchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	return c.JSON(s.idx.Search(req.Query, req.Limit, req.Offset))
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"node_id":   s.cfg.Node.ID,
		"documents": s.idx.Len(),
	})
}
