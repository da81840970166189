package server

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/coursepilot/coursepilot/internal/rag"
	"github.com/coursepilot/coursepilot/internal/tools"
)

// QuerySystem is what the HTTP layer needs from the RAG system.
type QuerySystem interface {
	Query(ctx context.Context, query, sessionID string) (string, []tools.Source, error)
	NewSession() string
	DeleteSession(id string)
	GetAnalytics(ctx context.Context) (rag.Analytics, error)
}

// QueryRequest is the body of POST /api/query.
type QueryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

// QueryResponse is the answer payload.
type QueryResponse struct {
	Answer    string         `json:"answer"`
	Sources   []tools.Source `json:"sources"`
	SessionID string         `json:"session_id"`
}

// Server exposes the query system over HTTP.
type Server struct {
	system      QuerySystem
	frontendDir string
}

// New creates the HTTP server. frontendDir, when non-empty, is served as
// static files at the root.
func New(system QuerySystem, frontendDir string) *Server {
	return &Server{system: system, frontendDir: frontendDir}
}

// Echo builds the configured echo instance.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.POST("/api/query", s.handleQuery)
	e.GET("/api/courses", s.handleCourses)
	e.DELETE("/api/sessions/:id", s.handleDeleteSession)

	if s.frontendDir != "" {
		e.Static("/", s.frontendDir)
	}
	return e
}

// Start runs the server on addr, blocking until it stops.
func (s *Server) Start(addr string) error {
	return s.Echo().Start(addr)
}

func (s *Server) handleQuery(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if req.Query == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "query is required"})
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = s.system.NewSession()
	}

	answer, sources, err := s.system.Query(c.Request().Context(), req.Query, sessionID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if sources == nil {
		sources = []tools.Source{}
	}

	return c.JSON(http.StatusOK, QueryResponse{
		Answer:    answer,
		Sources:   sources,
		SessionID: sessionID,
	})
}

func (s *Server) handleCourses(c echo.Context) error {
	analytics, err := s.system.GetAnalytics(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, analytics)
}

func (s *Server) handleDeleteSession(c echo.Context) error {
	s.system.DeleteSession(c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}
