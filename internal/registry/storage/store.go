// Package storage implements rockslide's content-addressed blob store and
// tag-pointer manifest store, the on-disk layout the registry protocol
// handlers sit on top of.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	godigest "github.com/opencontainers/go-digest"
	imagespecv1 "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/spf13/afero"

	"github.com/rockslide/rockslide/internal/errdefs"
	"github.com/rockslide/rockslide/internal/registry/digest"
	"github.com/rockslide/rockslide/internal/xcache"
	"github.com/rockslide/rockslide/internal/xlog"
)

const (
	blobsDir     = "blobs"
	uploadsDir   = "uploads"
	manifestsDir = "manifests"

	statCacheCapacity = 4096
	statCacheTTL      = 10 * time.Minute
)

// BlobStat describes a stored blob.
type BlobStat struct {
	Digest godigest.Digest
	Size   int64
}

// Manifest is the subset of a manifest's JSON this registry parses: just
// enough to learn its media type and the blobs it references, not a full
// OCI Manifest/Index object model.
type Manifest struct {
	MediaType string
	Config    *godigest.Digest
	Layers    []godigest.Digest
}

// ParseManifest parses raw into a Manifest, failing only on malformed JSON;
// unknown fields are ignored since the store only needs the digests. The
// wire shape is the OCI image manifest (imagespecv1.Manifest); the store
// decodes through that type rather than a hand-rolled one so a change to
// the upstream schema is caught by the dependency, not silently ignored.
func ParseManifest(raw []byte) (Manifest, error) {
	var mj imagespecv1.Manifest
	if err := json.Unmarshal(raw, &mj); err != nil {
		return Manifest{}, errdefs.Newf(errdefs.ErrInvalidParameter, "storage: parse manifest: %w", err)
	}
	m := Manifest{MediaType: mj.MediaType}
	if mj.Config.Digest != "" {
		d := mj.Config.Digest
		m.Config = &d
	}
	for _, l := range mj.Layers {
		m.Layers = append(m.Layers, l.Digest)
	}
	return m, nil
}

// Store is rockslide's blob and manifest store, backed by an afero.Fs so
// tests can run entirely against afero.NewMemMapFs() while the deployed
// binary uses afero.NewOsFs().
type Store struct {
	fs    afero.Fs
	root  string
	stats xcache.Cache[BlobStat]
}

// New returns a Store rooted at root on fs. root is created if missing.
func New(fs afero.Fs, root string) (*Store, error) {
	if err := fs.MkdirAll(root, 0o755); err != nil {
		return nil, errdefs.NewE(errdefs.ErrSystem, err)
	}
	s := &Store{
		fs:    fs,
		root:  root,
		stats: xcache.NewMemory[BlobStat](statCacheCapacity, statCacheTTL),
	}
	for _, dir := range []string{blobsDir, uploadsDir, manifestsDir} {
		if err := fs.MkdirAll(path.Join(root, dir), 0o755); err != nil {
			return nil, errdefs.NewE(errdefs.ErrSystem, err)
		}
	}
	return s, nil
}

func (s *Store) blobPath(d godigest.Digest) string {
	return path.Join(s.root, blobsDir, d.Encoded())
}

func (s *Store) uploadPath(id string) string {
	return path.Join(s.root, uploadsDir, id)
}

func (s *Store) repoImageDir(loc ImageLocation) string {
	return path.Join(s.root, manifestsDir, loc.Repository, loc.Image)
}

func (s *Store) tagPath(loc ImageLocation, tag string) string {
	return path.Join(s.repoImageDir(loc), "tags", tag)
}

func (s *Store) revisionPath(loc ImageLocation, d godigest.Digest) string {
	return path.Join(s.repoImageDir(loc), "revisions", d.Encoded())
}

// BeginUpload starts a new resumable blob upload, returning its session id.
func (s *Store) BeginUpload(ctx context.Context) (string, error) {
	id := newUploadID()
	f, err := s.fs.Create(s.uploadPath(id))
	if err != nil {
		return "", errdefs.NewE(errdefs.ErrSystem, err)
	}
	defer f.Close()
	xlog.C(ctx).Debug("upload started", "upload_id", id)
	return id, nil
}

// UploadOffset returns the number of bytes received so far for id.
func (s *Store) UploadOffset(_ context.Context, id string) (int64, error) {
	info, err := s.fs.Stat(s.uploadPath(id))
	if err != nil {
		return 0, errdefs.NewE(errdefs.ErrNotFound, err)
	}
	return info.Size(), nil
}

// Writer returns a writer appending to upload id at the given offset. The
// caller must supply the offset it believes the upload is at; a mismatch
// against the file's actual size is a conflict, not silently corrected,
// since it usually means two clients raced on the same session.
func (s *Store) Writer(ctx context.Context, id string, offset int64) (io.WriteCloser, error) {
	cur, err := s.UploadOffset(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur != offset {
		return nil, errdefs.Newf(errdefs.ErrConflict, "storage: upload %s at offset %d, got %d", id, cur, offset)
	}
	f, err := s.fs.OpenFile(s.uploadPath(id), os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errdefs.NewE(errdefs.ErrSystem, err)
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		f.Close()
		return nil, errdefs.NewE(errdefs.ErrSystem, err)
	}
	return f, nil
}

// FinalizeUpload verifies the accumulated upload content hashes to
// expectedDigest, then moves it into content-addressed blob storage.
func (s *Store) FinalizeUpload(ctx context.Context, id string, expectedDigest godigest.Digest) (BlobStat, error) {
	uploadPath := s.uploadPath(id)
	info, err := s.fs.Stat(uploadPath)
	if err != nil {
		return BlobStat{}, errdefs.NewE(errdefs.ErrNotFound, err)
	}

	f, err := s.fs.Open(uploadPath)
	if err != nil {
		return BlobStat{}, errdefs.NewE(errdefs.ErrSystem, err)
	}

	v := digest.NewVerifier(f, expectedDigest, info.Size())
	_, verifyErr := io.Copy(io.Discard, v)
	f.Close()
	if verifyErr != nil {
		if err := s.CancelUpload(ctx, id); err != nil {
			xlog.C(ctx).Error("failed to remove mismatched upload", "upload_id", id, "error", err)
		}
		return BlobStat{}, verifyErr
	}

	dest := s.blobPath(expectedDigest)
	if err := s.fs.MkdirAll(path.Dir(dest), 0o755); err != nil {
		return BlobStat{}, errdefs.NewE(errdefs.ErrSystem, err)
	}
	if err := s.fs.Rename(uploadPath, dest); err != nil {
		return BlobStat{}, errdefs.NewE(errdefs.ErrSystem, err)
	}

	stat := BlobStat{Digest: expectedDigest, Size: info.Size()}
	s.stats.Set(ctx, expectedDigest.String(), stat)
	xlog.C(ctx).Info("blob finalized", "digest", expectedDigest, "size", stat.Size)
	return stat, nil
}

// CancelUpload discards an in-progress upload.
func (s *Store) CancelUpload(_ context.Context, id string) error {
	if err := s.fs.Remove(s.uploadPath(id)); err != nil {
		return errdefs.NewE(errdefs.ErrSystem, err)
	}
	return nil
}

// BlobStat returns metadata for a stored blob, using the in-memory stat
// cache to avoid re-stat-ing the same digest on every HEAD request.
func (s *Store) BlobStat(ctx context.Context, d godigest.Digest) (BlobStat, bool) {
	return s.stats.Get(ctx, d.String(), xcache.WithLoader(func(_ context.Context, _ string) (BlobStat, bool) {
		info, err := s.fs.Stat(s.blobPath(d))
		if err != nil {
			return BlobStat{}, false
		}
		return BlobStat{Digest: d, Size: info.Size()}, true
	}))
}

// OpenBlob opens a stored blob for reading.
func (s *Store) OpenBlob(_ context.Context, d godigest.Digest) (io.ReadCloser, error) {
	f, err := s.fs.Open(s.blobPath(d))
	if err != nil {
		return nil, errdefs.NewE(errdefs.ErrNotFound, err)
	}
	return f, nil
}

// PutManifest stores raw under its own digest, and if ref names a tag,
// atomically repoints that tag at the new digest.
func (s *Store) PutManifest(ctx context.Context, ref ManifestReference, raw []byte) (godigest.Digest, error) {
	if _, err := ParseManifest(raw); err != nil {
		return "", err
	}
	d := digest.FromBytes(raw)

	revPath := s.revisionPath(ref.Location, d)
	if err := s.fs.MkdirAll(path.Dir(revPath), 0o755); err != nil {
		return "", errdefs.NewE(errdefs.ErrSystem, err)
	}
	if err := afero.WriteFile(s.fs, revPath, raw, 0o644); err != nil {
		return "", errdefs.NewE(errdefs.ErrSystem, err)
	}

	if !ref.Reference.IsDigest() {
		if err := s.publishTag(ref.Location, ref.Reference.Tag, d); err != nil {
			return "", err
		}
	}
	xlog.C(ctx).Info("manifest published", "ref", ref, "digest", d)
	return d, nil
}

// publishTag atomically repoints tag at d: write-to-temp, then Fs.Rename
// over the existing pointer so a concurrent reader never observes a
// partially written file.
func (s *Store) publishTag(loc ImageLocation, tag string, d godigest.Digest) error {
	tagPath := s.tagPath(loc, tag)
	if err := s.fs.MkdirAll(path.Dir(tagPath), 0o755); err != nil {
		return errdefs.NewE(errdefs.ErrSystem, err)
	}
	tmp := tagPath + fmt.Sprintf(".tmp-%s", newUploadID())
	if err := afero.WriteFile(s.fs, tmp, []byte(d.String()), 0o644); err != nil {
		return errdefs.NewE(errdefs.ErrSystem, err)
	}
	if err := s.fs.Rename(tmp, tagPath); err != nil {
		return errdefs.NewE(errdefs.ErrSystem, err)
	}
	return nil
}

// GetManifest resolves ref (tag or digest) and returns the manifest bytes
// along with the digest they were stored under.
func (s *Store) GetManifest(_ context.Context, ref ManifestReference) ([]byte, godigest.Digest, error) {
	d := godigest.Digest(ref.Reference.Digest)
	if !ref.Reference.IsDigest() {
		resolved, err := afero.ReadFile(s.fs, s.tagPath(ref.Location, ref.Reference.Tag))
		if err != nil {
			return nil, "", errdefs.NewE(errdefs.ErrNotFound, err)
		}
		d = godigest.Digest(resolved)
	}
	raw, err := afero.ReadFile(s.fs, s.revisionPath(ref.Location, d))
	if err != nil {
		return nil, "", errdefs.NewE(errdefs.ErrNotFound, err)
	}
	return raw, d, nil
}

// DeleteTag removes a tag pointer without touching the underlying revision.
func (s *Store) DeleteTag(_ context.Context, loc ImageLocation, tag string) error {
	if err := s.fs.Remove(s.tagPath(loc, tag)); err != nil {
		return errdefs.NewE(errdefs.ErrNotFound, err)
	}
	return nil
}
