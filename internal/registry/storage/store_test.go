package storage_test

import (
	"context"
	"io"
	"testing"

	godigest "github.com/opencontainers/go-digest"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rockslide/rockslide/internal/registry/storage"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.New(afero.NewMemMapFs(), "/data")
	require.NoError(t, err)
	return s
}

func TestBlobUploadLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	content := []byte("hello rockslide blob")
	d := godigest.FromBytes(content)

	id, err := s.BeginUpload(ctx)
	require.NoError(t, err)

	w, err := s.Writer(ctx, id, 0)
	require.NoError(t, err)
	_, err = w.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	stat, err := s.FinalizeUpload(ctx, id, d)
	require.NoError(t, err)
	assert.Equal(t, d, stat.Digest)
	assert.Equal(t, int64(len(content)), stat.Size)

	got, ok := s.BlobStat(ctx, d)
	require.True(t, ok)
	assert.Equal(t, stat, got)

	rc, err := s.OpenBlob(ctx, d)
	require.NoError(t, err)
	defer rc.Close()
	readBack, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, content, readBack)
}

func TestFinalizeUploadRejectsDigestMismatch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.BeginUpload(ctx)
	require.NoError(t, err)
	w, err := s.Writer(ctx, id, 0)
	require.NoError(t, err)
	_, err = w.Write([]byte("actual content"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	wrong := godigest.FromBytes([]byte("different content"))
	_, err = s.FinalizeUpload(ctx, id, wrong)
	assert.Error(t, err)
}

func TestWriterRejectsOffsetMismatch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.BeginUpload(ctx)
	require.NoError(t, err)

	_, err = s.Writer(ctx, id, 5)
	assert.Error(t, err)
}

func TestManifestTagPublishAndResolve(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	loc, err := storage.NewImageLocation("library", "nginx")
	require.NoError(t, err)

	manifest := []byte(`{"mediaType":"application/vnd.oci.image.manifest.v1+json","config":{"digest":"sha256:` + godigest.FromBytes([]byte("cfg")).Encoded() + `"},"layers":[]}`)

	ref := storage.ManifestReference{Location: loc, Reference: storage.Reference{Tag: "prod"}}
	d, err := s.PutManifest(ctx, ref, manifest)
	require.NoError(t, err)

	raw, resolved, err := s.GetManifest(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, d, resolved)
	assert.Equal(t, manifest, raw)

	byDigest := storage.ManifestReference{Location: loc, Reference: storage.Reference{Digest: d.String()}}
	raw2, resolved2, err := s.GetManifest(ctx, byDigest)
	require.NoError(t, err)
	assert.Equal(t, d, resolved2)
	assert.Equal(t, manifest, raw2)
}

func TestGetManifestUnknownTag(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	loc, err := storage.NewImageLocation("library", "nginx")
	require.NoError(t, err)

	_, _, err = s.GetManifest(ctx, storage.ManifestReference{
		Location:  loc,
		Reference: storage.Reference{Tag: "missing"},
	})
	assert.Error(t, err)
}

func TestImageLocationValidation(t *testing.T) {
	_, err := storage.NewImageLocation("Library", "nginx")
	assert.Error(t, err)

	loc, err := storage.NewImageLocation("library", "nginx")
	require.NoError(t, err)
	assert.Equal(t, "rockslide-library-nginx", loc.ManagedName())
}
