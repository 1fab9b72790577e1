package http_handler

import (
	"context"
	"errors"

	sdklogger "github.com/anthanhphan/gosdk/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/anvndev/go-distributed-search/internal/coordinator/config"
	"github.com/anvndev/go-distributed-search/internal/coordinator/metrics"
	"github.com/anvndev/go-distributed-search/internal/coordinator/port"
	"github.com/anvndev/go-distributed-search/internal/coordinator/service"
)

// Server exposes the search and administrative APIs over HTTP.
type Server struct {
	app      *fiber.App
	cfg      *config.Config
	searcher port.SearchService
	admin    port.AdminService
}

func NewServer(cfg *config.Config, searcher port.SearchService, admin port.AdminService, m *metrics.Metrics) *Server {
	app := fiber.New(fiber.Config{
		AppName: "search-coordinator",
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())

	s := &Server{
		app:      app,
		cfg:      cfg,
		searcher: searcher,
		admin:    admin,
	}
	s.registerRoutes(m)
	return s
}

func (s *Server) registerRoutes(m *metrics.Metrics) {
	s.app.Post("/search", s.handleSearch)
	s.app.Get("/search", s.handleSimpleSearch)

	s.app.Post("/nodes", s.handleAddNode)
	s.app.Post("/nodes/batch", s.handleAddNodes)
	s.app.Delete("/nodes/:id", s.handleRemoveNode)
	s.app.Put("/nodes/:id/status", s.handleSetNodeStatus)
	s.app.Get("/nodes/active", s.handleActiveNodes)
	s.app.Get("/nodes/:id/stats", s.handleNodeStats)

	s.app.Put("/config", s.handleConfigure)
	s.app.Get("/cluster/stats", s.handleClusterStats)

	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))
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

func (s *Server) sendJSONError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": message})
}

// sendServiceError maps domain errors onto HTTP status codes.
func (s *Server) sendServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, port.ErrNodeNotFound):
		return s.sendJSONError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, port.ErrNodeAlreadyExists):
		return s.sendJSONError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, config.ErrInvalidConfig):
		return s.sendJSONError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, port.ErrNoActiveNodes):
		return s.sendJSONError(c, fiber.StatusServiceUnavailable, err.Error())
	case errors.Is(err, port.ErrAllNodesFailed):
		return s.sendJSONError(c, fiber.StatusBadGateway, err.Error())
	default:
		return s.sendJSONError(c, fiber.StatusInternalServerError, err.Error())
	}
}

type searchRequest struct {
	Query  string `json:"query"`
	Limit  uint   `json:"limit"`
	Offset uint   `json:"offset"`
}

func (s *Server) handleSearch(c *fiber.Ctx) error {
	var req searchRequest
	if err := c.BodyParser(&req); err != nil {
		return s.sendJSONError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if req.Query == "" {
		return s.sendJSONError(c, fiber.StatusBadRequest, "Missing 'query'")
	}
	if req.Limit == 0 {
		req.Limit = service.DefaultSearchLimit
	}

	result, err := s.searcher.Search(c.Context(), req.Query, req.Limit, req.Offset)
	if err != nil {
		sdklogger.Warnw("Search failed", "query", req.Query, "error", err.Error())
		return s.sendServiceError(c, err)
	}
	return c.JSON(result)
}

func (s *Server) handleSimpleSearch(c *fiber.Ctx) error {
	query := c.Query("q")
	if query == "" {
		return s.sendJSONError(c, fiber.StatusBadRequest, "Missing 'q' query parameter")
	}

	result, err := s.searcher.SimpleSearch(c.Context(), query)
	if err != nil {
		sdklogger.Warnw("Search failed", "query", query, "error", err.Error())
		return s.sendServiceError(c, err)
	}
	return c.JSON(result)
}

func (s *Server) handleAddNode(c *fiber.Ctx) error {
	var spec port.NodeSpec
	if err := c.BodyParser(&spec); err != nil {
		return s.sendJSONError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if spec.ID == "" || spec.Locator == "" {
		return s.sendJSONError(c, fiber.StatusBadRequest, "Missing 'id' or 'locator'")
	}

	if err := s.admin.AddNode(spec.ID, spec.Locator, spec.Weight); err != nil {
		return s.sendServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": spec.ID})
}

type addNodesRequest struct {
	Nodes []port.NodeSpec `json:"nodes"`
}

func (s *Server) handleAddNodes(c *fiber.Ctx) error {
	var req addNodesRequest
	if err := c.BodyParser(&req); err != nil {
		return s.sendJSONError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if len(req.Nodes) == 0 {
		return s.sendJSONError(c, fiber.StatusBadRequest, "Empty 'nodes' batch")
	}

	if err := s.admin.AddNodes(req.Nodes); err != nil {
		// Partial application is allowed; report what failed.
		return s.sendJSONError(c, fiber.StatusMultiStatus, err.Error())
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"added": len(req.Nodes)})
}

func (s *Server) handleRemoveNode(c *fiber.Ctx) error {
	if err := s.admin.RemoveNode(c.Params("id")); err != nil {
		return s.sendServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type setStatusRequest struct {
	Active bool `json:"active"`
}

func (s *Server) handleSetNodeStatus(c *fiber.Ctx) error {
	var req setStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return s.sendJSONError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	if err := s.admin.SetNodeStatus(c.Params("id"), req.Active); err != nil {
		return s.sendServiceError(c, err)
	}
	return c.JSON(fiber.Map{"id": c.Params("id"), "active": req.Active})
}

func (s *Server) handleActiveNodes(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"nodes": s.admin.GetActiveNodes()})
}

func (s *Server) handleNodeStats(c *fiber.Ctx) error {
	stats, err := s.admin.GetNodeStats(c.Params("id"))
	if err != nil {
		return s.sendServiceError(c, err)
	}
	return c.JSON(stats)
}

func (s *Server) handleConfigure(c *fiber.Ctx) error {
	var cfg config.SearcherConfig
	if err := c.BodyParser(&cfg); err != nil {
		return s.sendJSONError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	if err := s.admin.Configure(cfg); err != nil {
		return s.sendServiceError(c, err)
	}
	return c.JSON(cfg)
}

func (s *Server) handleClusterStats(c *fiber.Ctx) error {
	return c.JSON(s.admin.GetClusterStats())
}
