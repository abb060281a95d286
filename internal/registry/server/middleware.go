package server

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rockslide/rockslide/internal/registry/auth"
)

const authContextKey = "rockslide.validUser"

// parseBasicAuth parses an Authorization header into UnverifiedCredentials.
// A missing header is NoCredentials, not an error; a present-but-malformed
// header is reported so the caller can answer 400 rather than 401.
func parseBasicAuth(header string) (auth.UnverifiedCredentials, error) {
	if header == "" {
		return auth.UnverifiedCredentials{}, nil
	}
	const prefix = "Basic "
	if !strings.HasPrefix(header, prefix) {
		return auth.UnverifiedCredentials{}, fmt.Errorf("malformed Authorization header")
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, prefix))
	if err != nil {
		return auth.UnverifiedCredentials{}, fmt.Errorf("malformed basic auth encoding: %w", err)
	}
	user, pass, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return auth.UnverifiedCredentials{}, fmt.Errorf("malformed basic auth payload")
	}
	return auth.NewUsernameAndPassword(user, pass), nil
}

// requireAuth authenticates every request against provider, storing the
// ValidUser in the gin context for handlers to authorize against. It does
// not itself check read/write permission; see requirePermission.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		unverified, err := parseBasicAuth(c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}
		user, ok := s.auth.CheckCredentials(c.Request.Context(), unverified)
		if !ok {
			c.Header("WWW-Authenticate", fmt.Sprintf("Basic realm=%q", s.realm))
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Set(authContextKey, user)
		c.Next()
	}
}

func validUserFrom(c *gin.Context) *auth.ValidUser {
	v, ok := c.Get(authContextKey)
	if !ok {
		return nil
	}
	user, _ := v.(*auth.ValidUser)
	return user
}

// requireRead rejects requests whose ValidUser lacks read permission on the
// image location named by the request's path parameters.
func (s *Server) requireRead() gin.HandlerFunc {
	return s.requirePermission(auth.Permissions.PermitRead)
}

// requireWrite rejects requests whose ValidUser lacks write permission on
// the image location named by the request's path parameters.
func (s *Server) requireWrite() gin.HandlerFunc {
	return s.requirePermission(auth.Permissions.PermitWrite)
}

func (s *Server) requirePermission(permit func(auth.Permissions) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		loc, err := s.locationFromParams(c)
		if err != nil {
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}
		user := validUserFrom(c)
		perms := s.auth.GetPermissions(c.Request.Context(), user, loc)
		if !permit(perms) {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}
