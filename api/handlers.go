package api

import (
	"database/sql"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/promptsentinel/sentinel/internal/app"
	"github.com/promptsentinel/sentinel/internal/store"
)

type runRequest struct {
	Filter          string `json:"filter,omitempty"`
	Concurrency     *int   `json:"concurrency,omitempty"`
	TimeoutMs       *int   `json:"timeout_ms,omitempty"`
	UpdateSnapshots bool   `json:"update_snapshots,omitempty"`
}

func (s *Server) registerRoutes() error {
	if s == nil || s.router == nil {
		return nil
	}

	s.router.GET("/healthz", s.handleHealth)

	api := s.router.Group("/api/v1")
	apiKey := strings.TrimSpace(os.Getenv("SENTINEL_API_KEY"))
	if apiKey != "" {
		api.Use(apiKeyAuthMiddleware(apiKey))
	} else if strings.EqualFold(strings.TrimSpace(os.Getenv("SENTINEL_DISABLE_AUTH")), "true") {
		// Explicitly allow unauthenticated access.
	} else {
		return errors.New("api: missing auth configuration: set SENTINEL_API_KEY or set SENTINEL_DISABLE_AUTH=true")
	}

	api.POST("/runs", s.handleStartRun)
	api.GET("/runs", s.handleListRuns)
	api.GET("/runs/:id", s.handleGetRun)
	api.GET("/runs/:id/results", s.handleGetRunResults)
	api.GET("/history/:test", s.handleGetTestHistory)

	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStartRun(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	var req runRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, err)
			return
		}
	}

	opts := app.RunOptions{
		ConfigPath:      s.configPath,
		Filter:          req.Filter,
		UpdateSnapshots: req.UpdateSnapshots,
		History:         s.store,
	}
	if req.Concurrency != nil {
		if *req.Concurrency < 1 {
			respondError(c, http.StatusBadRequest, errors.New("concurrency must be >= 1"))
			return
		}
		opts.Concurrency = *req.Concurrency
	}
	if req.TimeoutMs != nil {
		if *req.TimeoutMs < 1 {
			respondError(c, http.StatusBadRequest, errors.New("timeout_ms must be >= 1"))
			return
		}
		opts.Timeout = time.Duration(*req.TimeoutMs) * time.Millisecond
	}

	res, err := app.ExecuteRun(c.Request.Context(), opts)
	if err != nil {
		var verr *app.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":    verr.Error(),
				"problems": verr.Problems,
			})
			return
		}
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	resp := gin.H{
		"run_id":  res.RunID,
		"summary": res.Summary,
	}
	if res.HistoryErr != nil {
		resp["history_error"] = res.HistoryErr.Error()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListRuns(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	limit, err := parseLimitParam(c.Query("limit"), 20)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	runs, err := s.store.ListRuns(c.Request.Context(), store.RunFilter{
		TestID: strings.TrimSpace(c.Query("test")),
		Limit:  limit,
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, runs)
}

func (s *Server) handleGetRun(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	run, err := s.store.GetRun(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(c, http.StatusNotFound, errors.New("run not found"))
			return
		}
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) handleGetRunResults(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	results, err := s.store.GetTestResults(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func (s *Server) handleGetTestHistory(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	limit, err := parseLimitParam(c.Query("limit"), 20)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	history, err := s.store.GetTestHistory(c.Request.Context(), strings.TrimSpace(c.Param("test")), limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func respondError(c *gin.Context, status int, err error) {
	if err == nil {
		c.Status(status)
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func parseLimitParam(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.New("limit must be a positive integer")
	}
	return n, nil
}
