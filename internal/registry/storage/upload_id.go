package storage

import "github.com/google/uuid"

// newUploadID mints a new upload session id. Distribution-spec clients treat
// this as an opaque string, so a UUID is as good a choice as any.
func newUploadID() string {
	return uuid.NewString()
}
