// Package server exposes the HTTP API: upload CRUD, map listing with
// capture-time filtering, and the verification triggers.
package server

import (
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"

	"github.com/christo725/seen/internal/store"
	"github.com/christo725/seen/internal/verify"
)

// Server wires the gin router to the store and verifier.
type Server struct {
	store    *store.Store
	verifier *verify.Verifier
	log      *zap.Logger
	engine   *gin.Engine
}

// New builds the server and registers routes.
func New(st *store.Store, verifier *verify.Verifier, log *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		store:    st,
		verifier: verifier,
		log:      log,
		engine:   gin.New(),
	}
	s.engine.Use(gin.Recovery())
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.health)

	api := s.engine.Group("/api")
	{
		api.POST("/uploads", s.createUpload)
		api.GET("/uploads", s.listUploads)
		api.GET("/uploads/:id", s.getUpload)
		api.DELETE("/uploads/:id", s.deleteUpload)
		api.POST("/uploads/:id/verify", s.verifyUpload)
		api.POST("/verify/pending", s.verifyPending)
	}
}

// Engine exposes the router for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run serves on addr until the listener fails.
func (s *Server) Run(addr string) error {
	s.log.Info("http server listening", zap.String("addr", addr))
	return s.engine.Run(addr)
}
