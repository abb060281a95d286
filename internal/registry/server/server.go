// Package server implements the distribution-spec HTTP registry surface
// over a storage.Store and an auth.Provider.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rockslide/rockslide/internal/registry/auth"
	"github.com/rockslide/rockslide/internal/registry/storage"
	"github.com/rockslide/rockslide/internal/xlog"
)

// Hooks lets a caller (the deployment controller) observe manifest uploads
// without the registry depending on the controller package. The dependency
// only ever points one way: server -> Hooks -> (controller implements it).
type Hooks interface {
	// OnManifestUploaded is called after a manifest PUT succeeds. Hook
	// failures are the hook implementation's own responsibility to log and
	// swallow; the registry does not inspect or react to them.
	OnManifestUploaded(ctx context.Context, ref storage.ManifestReference)
}

// Server is the distribution-spec HTTP registry.
type Server struct {
	store *storage.Store
	auth  auth.Provider
	hooks Hooks
	realm string

	httpServer *http.Server
}

// Config configures a Server.
type Config struct {
	Store *storage.Store
	Auth  auth.Provider
	Hooks Hooks
	Realm string
	// Addr is the address to bind, e.g. ":5000".
	Addr string
}

// New builds a Server and its underlying gin router, but does not start
// listening; call Run to do that.
func New(c Config) *Server {
	realm := c.Realm
	if realm == "" {
		realm = "rockslide registry"
	}
	s := &Server{
		store: c.Store,
		auth:  c.Auth,
		hooks: c.Hooks,
		realm: realm,
	}
	s.httpServer = &http.Server{
		Addr:              c.Addr,
		Handler:           s.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the server's http.Handler, primarily for tests that want
// to drive it with httptest.NewServer without binding a real port.
func (s *Server) Handler() http.Handler {
	return s.router()
}

func (s *Server) router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	v2 := r.Group("/v2")
	v2.Use(s.requireAuth())

	v2.GET("/", s.handleIndex)

	image := v2.Group("/:repository/:image")
	image.HEAD("/blobs/:digest", s.requireRead(), s.handleBlobCheck)
	image.POST("/blobs/uploads/", s.requireWrite(), s.handleUploadNew)
	image.PATCH("/uploads/:uuid", s.requireWrite(), s.handleUploadAddChunk)
	image.PUT("/uploads/:uuid", s.requireWrite(), s.handleUploadFinalize)
	image.PUT("/manifests/:reference", s.requireWrite(), s.handleManifestPut)
	image.GET("/manifests/:reference", s.requireRead(), s.handleManifestGet)

	return r
}

// Run starts the HTTP server and blocks until ctx is canceled, at which
// point it shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	xlog.C(ctx).Info("registry listening", "addr", s.httpServer.Addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		xlog.C(ctx).Error("registry shutdown failed", "error", err)
		return err
	}
	xlog.C(ctx).Info("registry stopped")
	return nil
}
