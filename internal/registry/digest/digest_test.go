package digest_test

import (
	"bytes"
	"io"
	"testing"

	godigest "github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rockslide/rockslide/internal/registry/digest"
)

func TestParse(t *testing.T) {
	content := []byte("hello rockslide")
	want := godigest.FromBytes(content)

	got, err := digest.Parse(want.String())
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = digest.Parse("sha256:deadbeef")
	assert.ErrorIs(t, err, digest.ErrWrongLength)

	_, err = digest.Parse("sha255:" + want.Encoded())
	assert.ErrorIs(t, err, digest.ErrWrongPrefix)

	bad := "sha256:" + string(make([]byte, 64))
	_, err = digest.Parse(bad)
	assert.ErrorIs(t, err, digest.ErrHexDecode)
}

func TestVerifierAccepts(t *testing.T) {
	content := []byte("hello rockslide")
	want := godigest.FromBytes(content)

	v := digest.NewVerifier(bytes.NewReader(content), want, int64(len(content)))
	_, err := io.Copy(io.Discard, v)
	require.NoError(t, err)
}

func TestVerifierRejectsMismatch(t *testing.T) {
	content := []byte("hello rockslide")
	wrong := godigest.FromBytes([]byte("something else"))

	v := digest.NewVerifier(bytes.NewReader(content), wrong, int64(len(content)))
	_, err := io.Copy(io.Discard, v)
	assert.Error(t, err)
}

func TestVerifierRejectsSizeMismatch(t *testing.T) {
	content := []byte("hello rockslide")
	want := godigest.FromBytes(content)

	v := digest.NewVerifier(bytes.NewReader(content), want, int64(len(content))+1)
	_, err := io.Copy(io.Discard, v)
	assert.Error(t, err)
}
