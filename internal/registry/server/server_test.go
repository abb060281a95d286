package server_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	godigest "github.com/opencontainers/go-digest"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rockslide/rockslide/internal/registry/auth"
	"github.com/rockslide/rockslide/internal/registry/server"
	"github.com/rockslide/rockslide/internal/registry/storage"
)

func TestUnauthenticatedIndexChallenges(t *testing.T) {
	st, err := storage.New(afero.NewMemMapFs(), "/data")
	require.NoError(t, err)
	srv := server.New(server.Config{Store: st, Auth: auth.DenyAll{}})

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v2/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("WWW-Authenticate"), "Basic")
}

func TestFullBlobAndManifestFlow(t *testing.T) {
	st, err := storage.New(afero.NewMemMapFs(), "/data")
	require.NoError(t, err)
	srv := server.New(server.Config{Store: st, Auth: auth.AllowAll{}})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	content := []byte("layer content")
	d := godigest.FromBytes(content)

	resp, err := http.Post(ts.URL+"/v2/library/nginx/blobs/uploads/", "application/octet-stream", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	uploadLoc := resp.Header.Get("Location")
	resp.Body.Close()
	require.NotEmpty(t, uploadLoc)

	req, err := http.NewRequest(http.MethodPatch, ts.URL+uploadLoc, bytes.NewReader(content))
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	finalizeURL := ts.URL + uploadLoc + "?digest=" + d.String()
	req, err = http.NewRequest(http.MethodPut, finalizeURL, nil)
	require.NoError(t, err)
	req.ContentLength = 0
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, d.String(), resp.Header.Get("Docker-Content-Digest"))
	resp.Body.Close()

	headReq, err := http.NewRequest(http.MethodHead, ts.URL+"/v2/library/nginx/blobs/"+d.String(), nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(headReq)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	manifest := map[string]any{
		"mediaType": "application/vnd.oci.image.manifest.v1+json",
		"config":    map[string]string{"digest": d.String()},
		"layers":    []any{},
	}
	body, err := json.Marshal(manifest)
	require.NoError(t, err)

	putReq, err := http.NewRequest(http.MethodPut, ts.URL+"/v2/library/nginx/manifests/prod", bytes.NewReader(body))
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(putReq)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	manifestDigest := resp.Header.Get("Docker-Content-Digest")
	resp.Body.Close()
	assert.NotEmpty(t, manifestDigest)

	getResp, err := http.Get(ts.URL + "/v2/library/nginx/manifests/prod")
	require.NoError(t, err)
	defer getResp.Body.Close()
	assert.Equal(t, http.StatusOK, getResp.StatusCode)
	assert.Equal(t, manifestDigest, getResp.Header.Get("Docker-Content-Digest"))
	got, err := io.ReadAll(getResp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, string(body), string(got))
}

func TestUploadChunkRejectsRangeHeader(t *testing.T) {
	st, err := storage.New(afero.NewMemMapFs(), "/data")
	require.NoError(t, err)
	srv := server.New(server.Config{Store: st, Auth: auth.AllowAll{}})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v2/library/nginx/blobs/uploads/", "application/octet-stream", nil)
	require.NoError(t, err)
	uploadLoc := resp.Header.Get("Location")
	resp.Body.Close()

	req, err := http.NewRequest(http.MethodPatch, ts.URL+uploadLoc, bytes.NewReader([]byte("x")))
	require.NoError(t, err)
	req.Header.Set("Range", "0-0")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}
