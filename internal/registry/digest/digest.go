// Package digest parses and verifies the sha256:<hex> content digests the
// registry uses as blob and manifest keys.
package digest

import (
	"errors"
	"fmt"
	"io"

	"github.com/opencontainers/go-digest"

	"github.com/rockslide/rockslide/internal/errdefs"
)

const (
	prefix      = "sha256:"
	hexLen      = 64 // sha256 produces 32 bytes, 64 hex characters
	expectedLen = len(prefix) + hexLen
)

// Sentinel parse errors, named after the distribution-spec's own digest
// validation failure modes.
var (
	ErrWrongLength = errors.New("digest: wrong length")
	ErrWrongPrefix = errors.New("digest: wrong prefix")
	ErrHexDecode   = errors.New("digest: hex decode error")
)

// Parse validates raw as a "sha256:<64 lowercase hex chars>" digest string.
// Unlike digest.Parse, which accepts any registered algorithm, Parse only
// ever accepts sha256, the one algorithm rockslide's storage layer writes.
func Parse(raw string) (digest.Digest, error) {
	if len(raw) != expectedLen {
		return "", errdefs.NewE(errdefs.ErrInvalidParameter, ErrWrongLength)
	}
	if raw[:len(prefix)] != prefix {
		return "", errdefs.NewE(errdefs.ErrInvalidParameter, ErrWrongPrefix)
	}
	hex := raw[len(prefix):]
	for _, c := range hex {
		isLowerHex := (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')
		if !isLowerHex {
			return "", errdefs.NewE(errdefs.ErrInvalidParameter, ErrHexDecode)
		}
	}
	d := digest.Digest(raw)
	if err := d.Validate(); err != nil {
		return "", errdefs.Newf(errdefs.ErrInvalidParameter, "digest: %w", err)
	}
	return d, nil
}

// FromBytes computes the sha256 digest of content.
func FromBytes(content []byte) digest.Digest {
	return digest.FromBytes(content)
}

// Verifier wraps an io.Reader, computing its sha256 digest as it is read and
// reporting a mismatch against want once the reader is fully drained.
//
// Callers must read the wrapped reader to io.EOF for verification to run;
// Verifier only ever signals a mismatch from a Read call, not from a
// separate method, so partial reads never falsely pass.
type Verifier struct {
	r    io.Reader
	want digest.Digest

	digester digest.Digester
	size     int64
	wantSize int64
}

// NewVerifier returns a Verifier that checks r's content against wantSize
// bytes hashing to want.
func NewVerifier(r io.Reader, want digest.Digest, wantSize int64) *Verifier {
	digester := want.Algorithm().Digester()
	return &Verifier{
		r:        io.TeeReader(r, digester.Hash()),
		want:     want,
		digester: digester,
		wantSize: wantSize,
	}
}

func (v *Verifier) Read(p []byte) (int, error) {
	n, err := v.r.Read(p)
	v.size += int64(n)
	if err == nil {
		if v.wantSize >= 0 && v.size > v.wantSize {
			return n, fmt.Errorf("%w: content exceeds declared size %d", errdefs.ErrDigestMismatch, v.wantSize)
		}
		return n, nil
	}
	if err != io.EOF {
		return n, err
	}
	if verr := v.verify(); verr != nil {
		return n, verr
	}
	return n, err
}

func (v *Verifier) verify() error {
	if v.wantSize >= 0 && v.size != v.wantSize {
		return fmt.Errorf("%w: size mismatch (got %d, want %d)", errdefs.ErrDigestMismatch, v.size, v.wantSize)
	}
	got := v.digester.Digest()
	if got != v.want {
		return fmt.Errorf("%w: content hashes to %s, want %s", errdefs.ErrDigestMismatch, got, v.want)
	}
	return nil
}
