package storage

import (
	"fmt"
	"regexp"

	"github.com/rockslide/rockslide/internal/errdefs"
)

// componentPattern matches a single path segment of a repository or image
// name: lowercase alphanumerics, separated by '.', '_' or '-'.
var componentPattern = regexp.MustCompile(`^[a-z0-9]+(?:[._-][a-z0-9]+)*$`)

// ImageLocation identifies a two-level repository/image pair, the unit
// rockslide's auth provider grants permissions on and the deployment
// controller names containers after.
type ImageLocation struct {
	Repository string
	Image      string
}

// NewImageLocation validates and builds an ImageLocation.
func NewImageLocation(repository, image string) (ImageLocation, error) {
	loc := ImageLocation{Repository: repository, Image: image}
	if err := loc.Validate(); err != nil {
		return ImageLocation{}, err
	}
	return loc, nil
}

// Validate reports whether both components are well-formed path segments.
func (l ImageLocation) Validate() error {
	if !componentPattern.MatchString(l.Repository) {
		return errdefs.Newf(errdefs.ErrInvalidParameter, "storage: invalid repository name %q", l.Repository)
	}
	if !componentPattern.MatchString(l.Image) {
		return errdefs.Newf(errdefs.ErrInvalidParameter, "storage: invalid image name %q", l.Image)
	}
	return nil
}

// String renders the location as "repository/image".
func (l ImageLocation) String() string {
	return fmt.Sprintf("%s/%s", l.Repository, l.Image)
}

// ManagedName is the name rockslide's deployment controller uses for
// containers it manages for this location, "rockslide-<repository>-<image>".
func (l ImageLocation) ManagedName() string {
	return fmt.Sprintf("rockslide-%s-%s", l.Repository, l.Image)
}

// Reference identifies a manifest by tag or by digest.
type Reference struct {
	// Tag is non-empty when the reference is a mutable tag like "prod".
	Tag string
	// Digest is non-empty when the reference is an immutable content digest.
	Digest string
}

// IsDigest reports whether the reference names an immutable digest.
func (r Reference) IsDigest() bool {
	return r.Digest != ""
}

// String renders the reference the way it appears in a pull string, without
// a leading ':' before a tag.
func (r Reference) String() string {
	if r.IsDigest() {
		return r.Digest
	}
	return r.Tag
}

// ParseReference classifies raw as a tag or a digest reference.
func ParseReference(raw string) (Reference, error) {
	if raw == "" {
		return Reference{}, errdefs.Newf(errdefs.ErrInvalidParameter, "storage: empty reference")
	}
	if looksLikeDigest(raw) {
		return Reference{Digest: raw}, nil
	}
	return Reference{Tag: raw}, nil
}

func looksLikeDigest(raw string) bool {
	const prefix = "sha256:"
	return len(raw) > len(prefix) && raw[:len(prefix)] == prefix
}

// ManifestReference pairs an ImageLocation with a Reference, identifying one
// manifest uniquely.
type ManifestReference struct {
	Location  ImageLocation
	Reference Reference
}

// String renders the manifest reference as "repository/image:tag" or
// "repository/image@sha256:...".
func (m ManifestReference) String() string {
	if m.Reference.IsDigest() {
		return fmt.Sprintf("%s@%s", m.Location, m.Reference.Digest)
	}
	return fmt.Sprintf("%s:%s", m.Location, m.Reference.Tag)
}
