package server

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rockslide/rockslide/internal/errdefs"
	rsdigest "github.com/rockslide/rockslide/internal/registry/digest"
	"github.com/rockslide/rockslide/internal/registry/storage"
	"github.com/rockslide/rockslide/internal/xlog"
)

func (s *Server) locationFromParams(c *gin.Context) (storage.ImageLocation, error) {
	return storage.NewImageLocation(c.Param("repository"), c.Param("image"))
}

func (s *Server) handleError(c *gin.Context, err error) {
	xlog.C(c.Request.Context()).Error("request failed", "path", c.Request.URL.Path, "error", err)
	c.AbortWithStatus(statusFor(err))
}

// handleIndex implements GET /v2/, a capability ping that also doubles as
// the login check: a client probes this before attempting anything else.
func (s *Server) handleIndex(c *gin.Context) {
	c.Header("WWW-Authenticate", fmt.Sprintf("Basic realm=%q", s.realm))
	c.Status(http.StatusOK)
}

// handleBlobCheck implements HEAD /v2/{repo}/{img}/blobs/{digest}.
func (s *Server) handleBlobCheck(c *gin.Context) {
	d, err := rsdigest.Parse(c.Param("digest"))
	if err != nil {
		s.handleError(c, err)
		return
	}
	stat, ok := s.store.BlobStat(c.Request.Context(), d)
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}
	c.Header("Content-Length", strconv.FormatInt(stat.Size, 10))
	c.Header("Docker-Content-Digest", d.String())
	c.Header("Content-Type", "application/octet-stream")
	c.Status(http.StatusOK)
}

func uploadLocation(loc storage.ImageLocation, uploadID string) string {
	return fmt.Sprintf("/v2/%s/%s/uploads/%s", loc.Repository, loc.Image, uploadID)
}

// handleUploadNew implements POST /v2/{repo}/{img}/blobs/uploads/.
func (s *Server) handleUploadNew(c *gin.Context) {
	loc, err := s.locationFromParams(c)
	if err != nil {
		s.handleError(c, err)
		return
	}
	id, err := s.store.BeginUpload(c.Request.Context())
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.Header("Location", uploadLocation(loc, id))
	c.Header("Docker-Upload-UUID", id)
	c.Header("Content-Length", "0")
	c.Status(http.StatusAccepted)
}

// handleUploadAddChunk implements PATCH /v2/{repo}/{img}/uploads/{uuid}.
// Only monolithic (single-request, no Range header) uploads are supported;
// a Range header signals a chunked upload, which is rejected outright.
func (s *Server) handleUploadAddChunk(c *gin.Context) {
	loc, err := s.locationFromParams(c)
	if err != nil {
		s.handleError(c, err)
		return
	}
	if c.GetHeader("Range") != "" {
		s.handleError(c, errdefs.Newf(errdefs.ErrUnsupportedFeature, "chunked uploads are not supported"))
		return
	}
	id := c.Param("uuid")
	w, err := s.store.Writer(c.Request.Context(), id, 0)
	if err != nil {
		s.handleError(c, err)
		return
	}
	n, err := io.Copy(w, c.Request.Body)
	closeErr := w.Close()
	if err != nil {
		s.handleError(c, errdefs.NewE(errdefs.ErrSystem, err))
		return
	}
	if closeErr != nil {
		s.handleError(c, errdefs.NewE(errdefs.ErrSystem, closeErr))
		return
	}
	c.Header("Location", uploadLocation(loc, id))
	c.Header("Docker-Upload-UUID", id)
	c.Header("Range", fmt.Sprintf("0-%d", n-1))
	c.Status(http.StatusNoContent)
}

// handleUploadFinalize implements PUT /v2/{repo}/{img}/uploads/{uuid}?digest=....
// The body must be empty; this registry does not support a trailing final
// chunk on the finalize request.
func (s *Server) handleUploadFinalize(c *gin.Context) {
	if c.Request.ContentLength > 0 {
		s.handleError(c, errdefs.Newf(errdefs.ErrUnsupportedFeature, "final chunk on finalize is not supported"))
		return
	}
	d, err := rsdigest.Parse(c.Query("digest"))
	if err != nil {
		s.handleError(c, err)
		return
	}
	id := c.Param("uuid")
	stat, err := s.store.FinalizeUpload(c.Request.Context(), id, d)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.Header("Docker-Content-Digest", stat.Digest.String())
	c.Header("Content-Length", "0")
	c.Status(http.StatusCreated)
}

// handleManifestPut implements PUT /v2/{repo}/{img}/manifests/{reference}.
func (s *Server) handleManifestPut(c *gin.Context) {
	loc, err := s.locationFromParams(c)
	if err != nil {
		s.handleError(c, err)
		return
	}
	ref, err := storage.ParseReference(c.Param("reference"))
	if err != nil {
		s.handleError(c, err)
		return
	}
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		s.handleError(c, errdefs.NewE(errdefs.ErrSystem, err))
		return
	}
	manifestRef := storage.ManifestReference{Location: loc, Reference: ref}
	d, err := s.store.PutManifest(c.Request.Context(), manifestRef, raw)
	if err != nil {
		s.handleError(c, err)
		return
	}

	if s.hooks != nil {
		s.hooks.OnManifestUploaded(c.Request.Context(), manifestRef)
	}

	c.Header("Location", fmt.Sprintf("/v2/%s/%s/manifests/%s", loc.Repository, loc.Image, d))
	c.Header("Content-Length", "0")
	c.Header("Docker-Content-Digest", d.String())
	c.Status(http.StatusCreated)
}

// handleManifestGet implements GET /v2/{repo}/{img}/manifests/{reference}.
func (s *Server) handleManifestGet(c *gin.Context) {
	loc, err := s.locationFromParams(c)
	if err != nil {
		s.handleError(c, err)
		return
	}
	ref, err := storage.ParseReference(c.Param("reference"))
	if err != nil {
		s.handleError(c, err)
		return
	}
	raw, d, err := s.store.GetManifest(c.Request.Context(), storage.ManifestReference{Location: loc, Reference: ref})
	if err != nil {
		s.handleError(c, err)
		return
	}
	parsed, err := storage.ParseManifest(raw)
	if err != nil {
		s.handleError(c, err)
		return
	}
	contentType := parsed.MediaType
	if contentType == "" {
		contentType = "application/vnd.oci.image.manifest.v1+json"
	}
	c.Header("Docker-Content-Digest", d.String())
	c.Data(http.StatusOK, contentType, raw)
}
