// Package api exposes run history and on-demand runs over HTTP.
package api

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/promptsentinel/sentinel/internal/store"
)

type Server struct {
	router *gin.Engine
	store  store.Store
	// configPath is the test file POST /runs executes.
	configPath string
}

func NewServer(st store.Store, configPath string) (*Server, error) {
	r := gin.New()
	s := &Server{
		router:     r,
		store:      st,
		configPath: configPath,
	}
	s.registerMiddleware()
	if err := s.registerRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) Run(addr string) error {
	if s == nil || s.router == nil {
		return errors.New("api: nil server")
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		addr = ":8080"
	}
	return s.router.Run(addr)
}
