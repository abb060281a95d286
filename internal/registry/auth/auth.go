// Package auth implements rockslide's pluggable authentication and
// authorization: anything that can check a set of credentials and decide
// what they're allowed to touch can back the registry.
package auth

import (
	"context"
	"crypto/subtle"

	"github.com/rockslide/rockslide/internal/registry/storage"
)

// UnverifiedCredentials is what a request carries before it's been checked.
// The zero value means NoCredentials.
type UnverifiedCredentials struct {
	Username string
	Password string
	// present is false for the zero value (NoCredentials).
	present bool
}

// NewUsernameAndPassword builds an UnverifiedCredentials carrying a
// basic-auth username and password.
func NewUsernameAndPassword(username, password string) UnverifiedCredentials {
	return UnverifiedCredentials{Username: username, Password: password, present: true}
}

// HasCredentials reports whether any credentials were supplied at all.
func (u UnverifiedCredentials) HasCredentials() bool {
	return u.present
}

// ValidUser is an opaque marker that credentials were accepted by a
// Provider. Callers only ever check its presence; they never need to
// inspect what a particular Provider chose to stash inside it.
type ValidUser struct {
	principal any
}

// newValidUser wraps principal, the provider-specific identity value.
func newValidUser(principal any) *ValidUser {
	return &ValidUser{principal: principal}
}

// Principal returns the provider-specific value passed to newValidUser,
// e.g. the matched username for UserPassMap.
func (v *ValidUser) Principal() any {
	if v == nil {
		return nil
	}
	return v.principal
}

// Permissions describes what a ValidUser may do against one ImageLocation.
type Permissions uint8

const (
	NoAccess  Permissions = 0
	WriteOnly Permissions = 2
	Read      Permissions = 4
	ReadWrite Permissions = 6
)

// PermitRead reports whether p includes read access.
func (p Permissions) PermitRead() bool {
	return p == Read || p == ReadWrite
}

// PermitWrite reports whether p includes write access.
func (p Permissions) PermitWrite() bool {
	return p == WriteOnly || p == ReadWrite
}

// Provider authenticates credentials and authorizes a ValidUser against an
// ImageLocation. Implementations need not distinguish "wrong password" from
// "unknown user": both are a plain rejection.
type Provider interface {
	// CheckCredentials authenticates unverified, returning ok=false if they
	// don't check out.
	CheckCredentials(ctx context.Context, unverified UnverifiedCredentials) (user *ValidUser, ok bool)
	// GetPermissions authorizes user against image.
	GetPermissions(ctx context.Context, user *ValidUser, image storage.ImageLocation) Permissions
}

// AllowAll accepts any credentials, including none, and grants ReadWrite
// everywhere. Intended for local development and tests.
type AllowAll struct{}

func (AllowAll) CheckCredentials(context.Context, UnverifiedCredentials) (*ValidUser, bool) {
	return newValidUser(nil), true
}

func (AllowAll) GetPermissions(context.Context, *ValidUser, storage.ImageLocation) Permissions {
	return ReadWrite
}

// DenyAll rejects every request. Useful as a safe zero-configuration default.
type DenyAll struct{}

func (DenyAll) CheckCredentials(context.Context, UnverifiedCredentials) (*ValidUser, bool) {
	return nil, false
}

func (DenyAll) GetPermissions(context.Context, *ValidUser, storage.ImageLocation) Permissions {
	return NoAccess
}

// UserPassMap authenticates against a fixed username-to-password table,
// comparing passwords in constant time to avoid leaking length/prefix via
// timing. A caller that authenticates is granted ReadWrite everywhere.
type UserPassMap map[string]string

func (m UserPassMap) CheckCredentials(_ context.Context, unverified UnverifiedCredentials) (*ValidUser, bool) {
	if !unverified.HasCredentials() {
		return nil, false
	}
	want, ok := m[unverified.Username]
	if !ok {
		return nil, false
	}
	if subtle.ConstantTimeCompare([]byte(want), []byte(unverified.Password)) != 1 {
		return nil, false
	}
	return newValidUser(unverified.Username), true
}

func (m UserPassMap) GetPermissions(context.Context, *ValidUser, storage.ImageLocation) Permissions {
	return ReadWrite
}

// MasterPassword authenticates any username against a single shared secret,
// rockslide's "master password" mode.
type MasterPassword string

func (p MasterPassword) CheckCredentials(_ context.Context, unverified UnverifiedCredentials) (*ValidUser, bool) {
	if !unverified.HasCredentials() {
		return nil, false
	}
	if subtle.ConstantTimeCompare([]byte(p), []byte(unverified.Password)) != 1 {
		return nil, false
	}
	return newValidUser(unverified.Username), true
}

func (p MasterPassword) GetPermissions(context.Context, *ValidUser, storage.ImageLocation) Permissions {
	return ReadWrite
}
