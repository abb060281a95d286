package server

import (
	"errors"
	"net/http"

	"github.com/rockslide/rockslide/internal/errdefs"
)

// statusFor maps an internal error to the HTTP status rockslide's error
// taxonomy assigns it. DigestMismatch and UnsupportedFeature both map to
// 500: a malformed or unsupported request on the wire is as much a server
// refusal as an internal failure in this taxonomy.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errdefs.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, errdefs.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, errdefs.ErrInvalidParameter):
		return http.StatusBadRequest
	case errors.Is(err, errdefs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errdefs.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, errdefs.ErrDigestMismatch):
		return http.StatusInternalServerError
	case errors.Is(err, errdefs.ErrUnsupportedFeature):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
