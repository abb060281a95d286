// Package proxy forwards inbound HTTP requests to the running container
// published for the request's Host header, rebuilding its routing table
// atomically whenever the deployment controller reports a new container
// set.
package proxy

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/rockslide/rockslide/internal/controller"
	"github.com/rockslide/rockslide/internal/xlog"
)

// hostSuffix is the default hostname convention used when a container has
// no explicit HTTPAccess override: "<image>.<repository>.rockslide.local".
const hostSuffix = "rockslide.local"

// Proxy forwards requests by Host header to the backend published for
// that host, swapping its routing table atomically on every update so
// ServeHTTP never observes a half-built table.
type Proxy struct {
	routes atomic.Pointer[map[string]*url.URL]
}

// New returns an empty Proxy; call UpdateContainers to populate routes.
func New() *Proxy {
	p := &Proxy{}
	empty := map[string]*url.URL{}
	p.routes.Store(&empty)
	return p
}

// UpdateContainers implements controller.ProxyUpdater. It rebuilds the
// entire routing table from scratch and swaps it in with one atomic store,
// never mutating the table readers may currently hold.
func (p *Proxy) UpdateContainers(ctx context.Context, containers []controller.PublishedContainer) {
	routes := make(map[string]*url.URL, len(containers))
	for _, c := range containers {
		backend, err := url.Parse("http://" + c.HostAddr)
		if err != nil {
			xlog.C(ctx).Error("skipping container with unparseable address", "container", c.Reference, "error", err)
			continue
		}
		hosts := c.Config.HTTPAccess
		if len(hosts) == 0 {
			hosts = map[string]string{defaultHost(c): ""}
		}
		for host := range hosts {
			routes[host] = backend
		}
	}
	xlog.C(ctx).Info("routing table updated", "routes", len(routes))
	p.routes.Store(&routes)
}

func defaultHost(c controller.PublishedContainer) string {
	loc := c.Reference.Location
	return fmt.Sprintf("%s.%s.%s", loc.Image, loc.Repository, hostSuffix)
}

func (p *Proxy) backendFor(host string) (*url.URL, bool) {
	routes := *p.routes.Load()
	backend, ok := routes[host]
	return backend, ok
}

// ServeHTTP implements http.Handler, routing by r.Host.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	backend, ok := p.backendFor(r.Host)
	if !ok {
		xlog.C(ctx).Warn("no route for host", "host", r.Host)
		http.Error(w, "no backend published for this host", http.StatusBadGateway)
		return
	}

	rp := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(backend)
			pr.Out.Host = backend.Host
		},
		ErrorLog: nil,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			xlog.C(ctx).Error("proxying request failed", "host", r.Host, "backend", backend, "error", err)
			http.Error(w, "upstream container unavailable", http.StatusBadGateway)
		},
	}
	xlog.C(ctx).Debug("proxying request", "host", r.Host, "path", r.URL.Path, "backend", backend)
	rp.ServeHTTP(w, r)
}

// Run starts an HTTP server serving p on addr and blocks until ctx is
// canceled, shutting down gracefully.
func (p *Proxy) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           p,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	xlog.C(ctx).Info("reverse proxy listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		xlog.C(ctx).Error("reverse proxy shutdown failed", "error", err)
		return err
	}
	xlog.C(ctx).Info("reverse proxy stopped")
	return nil
}
