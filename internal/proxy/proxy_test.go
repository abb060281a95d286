package proxy_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rockslide/rockslide/internal/controller"
	"github.com/rockslide/rockslide/internal/proxy"
	"github.com/rockslide/rockslide/internal/registry/storage"
)

func TestServeReturnsBadGatewayWithoutRoute(t *testing.T) {
	p := proxy.New()
	req := httptest.NewRequest(http.MethodGet, "http://unknown.rockslide.local/", nil)
	rec := httptest.NewRecorder()

	p.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestServeForwardsToDefaultHost(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello from nginx"))
	}))
	defer backend.Close()

	p := proxy.New()
	p.UpdateContainers(context.Background(), []controller.PublishedContainer{
		{
			HostAddr: backend.Listener.Addr().String(),
			Reference: storage.ManifestReference{
				Location:  storage.ImageLocation{Repository: "library", Image: "nginx"},
				Reference: storage.Reference{Tag: "prod"},
			},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "http://nginx.library.rockslide.local/", nil)
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello from nginx", string(body))
}

func TestServeForwardsToConfiguredHost(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer backend.Close()

	p := proxy.New()
	p.UpdateContainers(context.Background(), []controller.PublishedContainer{
		{
			HostAddr: backend.Listener.Addr().String(),
			Reference: storage.ManifestReference{
				Location:  storage.ImageLocation{Repository: "library", Image: "nginx"},
				Reference: storage.Reference{Tag: "prod"},
			},
			Config: controller.RuntimeConfig{
				HTTPAccess: map[string]string{"example.com": "primary"},
			},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
