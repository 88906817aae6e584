// Package http provides the HTTP API for skilld.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/skilld/pkg/manifest"
	"github.com/fyrsmithlabs/skilld/pkg/trigger"
)

// Server exposes the skill registry and trigger dispatch over HTTP.
type Server struct {
	echo       *echo.Echo
	registry   *manifest.Registry
	dispatcher *trigger.Dispatcher
	logger     *zap.Logger
	config     *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates a new HTTP server.
func NewServer(registry *manifest.Registry, dispatcher *trigger.Dispatcher, logger *zap.Logger, cfg *Config) (*Server, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 9190,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:       e,
		registry:   registry,
		dispatcher: dispatcher,
		logger:     logger,
		config:     cfg,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/skills", s.handleListSkills)
	v1.GET("/skills/:id", s.handleGetSkill)
	v1.POST("/skills/:id/run", s.handleRunSkill)

	// Webhook triggers carry the skill ID in the path; the payload is
	// opaque to skilld and passed through to the skill's actions.
	s.echo.POST("/hooks/:id", s.handleWebhook)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Skills int    `json:"skills"`
}

// SkillSummary is one entry in the GET /api/v1/skills response.
type SkillSummary struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Version     string            `json:"version"`
	Category    manifest.Category `json:"category"`
	ActionCount int               `json:"action_count"`
}

// DispatchResponse is the response body for dispatch endpoints.
type DispatchResponse struct {
	SkillID string `json:"skill_id"`
	Source  string `json:"source"`
	Status  string `json:"status"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status: "ok",
		Skills: len(s.registry.List()),
	})
}

// handleListSkills returns a summary of every registered skill.
func (s *Server) handleListSkills(c echo.Context) error {
	skills := s.registry.List()
	summaries := make([]SkillSummary, 0, len(skills))
	for _, skill := range skills {
		summaries = append(summaries, SkillSummary{
			ID:          skill.ID,
			Name:        skill.Name,
			Version:     skill.Version,
			Category:    skill.Category,
			ActionCount: len(skill.Actions),
		})
	}
	return c.JSON(http.StatusOK, summaries)
}

// handleGetSkill returns one full skill manifest.
func (s *Server) handleGetSkill(c echo.Context) error {
	skill, err := s.registry.Get(c.Param("id"))
	if errors.Is(err, manifest.ErrSkillNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, skill)
}

// handleRunSkill dispatches a manual pipeline run.
func (s *Server) handleRunSkill(c echo.Context) error {
	return s.dispatch(c, manifest.TriggerManual)
}

// handleWebhook dispatches a webhook-triggered pipeline run. Skills that
// do not declare a webhook trigger are rejected.
func (s *Server) handleWebhook(c echo.Context) error {
	return s.dispatch(c, manifest.TriggerWebhook)
}

func (s *Server) dispatch(c echo.Context, source manifest.TriggerType) error {
	skillID := c.Param("id")

	err := s.dispatcher.Dispatch(c.Request().Context(), skillID, source)
	switch {
	case errors.Is(err, manifest.ErrSkillNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, trigger.ErrTriggerNotDeclared):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case err != nil:
		s.logger.Error("dispatch failed",
			zap.String("skill", skillID),
			zap.String("source", string(source)),
			zap.Error(err),
		)
		return echo.NewHTTPError(http.StatusInternalServerError, "dispatch failed")
	}

	return c.JSON(http.StatusAccepted, DispatchResponse{
		SkillID: skillID,
		Source:  string(source),
		Status:  "dispatched",
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
