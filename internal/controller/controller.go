// Package controller reconciles running containers with production-tagged
// manifests by driving an external container engine.
package controller

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/afero"

	"github.com/rockslide/rockslide/internal/registry/storage"
	"github.com/rockslide/rockslide/internal/xlog"
)

// productionTag is the only tag the controller reconciles against. It is a
// fixed convention, not user-configurable.
const productionTag = "prod"

const managedPrefix = "rockslide-"

// PublishedContainer is one managed container ready to be routed to by the
// reverse proxy.
type PublishedContainer struct {
	HostAddr  string
	Reference storage.ManifestReference
	Config    RuntimeConfig
}

// ProxyUpdater receives the current set of published containers. The
// reverse proxy implements this; the controller only depends on the
// interface so the two packages don't import each other.
type ProxyUpdater interface {
	UpdateContainers(ctx context.Context, containers []PublishedContainer)
}

// Credentials is the controller's login identity against its own registry.
type Credentials struct {
	Username string
	Password string
}

// Controller reconciles containers against production-tagged manifests.
type Controller struct {
	engine      Engine
	proxy       ProxyUpdater
	fs          afero.Fs
	configsDir  string
	localAddr   string
	credentials Credentials
}

// New builds a Controller. localAddr is the registry's own advertised
// address (host:port), used both for podman login and for the pull URL.
func New(engine Engine, proxy ProxyUpdater, fs afero.Fs, configsDir, localAddr string, creds Credentials) (*Controller, error) {
	if err := fs.MkdirAll(configsDir, 0o755); err != nil {
		return nil, err
	}
	return &Controller{
		engine:      engine,
		proxy:       proxy,
		fs:          fs,
		configsDir:  configsDir,
		localAddr:   localAddr,
		credentials: creds,
	}, nil
}

// parseManagedName recovers the ImageLocation a managed container was
// started for, or ok=false if name doesn't match the "rockslide-<repo>-<image>"
// convention.
func parseManagedName(name string) (storage.ImageLocation, bool) {
	subname, ok := strings.CutPrefix(name, managedPrefix)
	if !ok {
		return storage.ImageLocation{}, false
	}
	left, right, ok := strings.Cut(subname, "-")
	if !ok {
		return storage.ImageLocation{}, false
	}
	return storage.ImageLocation{Repository: left, Image: right}, true
}

// imageReference extracts the tag from a "repo/image:tag" image string.
// Digest references aren't produced by this controller's own Run calls, so
// only the tag form is handled.
func imageReference(image string) (storage.Reference, bool) {
	idx := strings.LastIndex(image, ":")
	if idx < 0 {
		return storage.Reference{}, false
	}
	return storage.Reference{Tag: image[idx+1:]}, true
}

func (c *Controller) managedRef(info ContainerInfo) (storage.ManifestReference, bool) {
	loc, ok := parseManagedName(info.Name)
	if !ok {
		return storage.ManifestReference{}, false
	}
	ref, ok := imageReference(info.Image)
	if !ok {
		return storage.ManifestReference{}, false
	}
	return storage.ManifestReference{Location: loc, Reference: ref}, true
}

// OnManifestUploaded implements server.Hooks. It reconciles the uploaded
// reference (a no-op unless it's the production tag) and republishes the
// container set to the proxy either way, so a reconcile failure never
// leaves the routing table stale.
func (c *Controller) OnManifestUploaded(ctx context.Context, ref storage.ManifestReference) {
	c.reconcile(ctx, ref)
	c.refreshPublishedSet(ctx)
}

// SyncAll reconciles every managed container found on the engine whose image
// carries the production tag; called once at startup.
func (c *Controller) SyncAll(ctx context.Context) error {
	containers, err := c.engine.List(ctx, true)
	if err != nil {
		return err
	}
	for _, info := range containers {
		ref, ok := c.managedRef(info)
		if !ok {
			continue
		}
		c.reconcile(ctx, ref)
	}
	return nil
}

// reconcile runs the rm -> login -> pull -> run sequence for ref if it
// names the production tag. Each step logs and swallows its own error so a
// failure reconciling one image never blocks another.
func (c *Controller) reconcile(ctx context.Context, ref storage.ManifestReference) {
	if ref.Reference.Tag != productionTag {
		return
	}
	loc := ref.Location
	name := loc.ManagedName()
	log := xlog.C(ctx).With("container", name)

	log.Info("removing existing container")
	if err := c.engine.Remove(ctx, name, true); err != nil {
		log.Error("failed to remove container", "error", err)
		return
	}

	imageURL := fmt.Sprintf("%s/%s/%s:%s", c.localAddr, loc.Repository, loc.Image, productionTag)

	log.Info("logging in to local registry")
	if err := c.engine.Login(ctx, c.credentials.Username, c.credentials.Password, c.localAddr, false); err != nil {
		log.Error("failed to login to local registry", "error", err)
		return
	}

	log.Info("pulling container")
	if err := c.engine.Pull(ctx, imageURL); err != nil {
		log.Error("failed to pull container", "error", err)
		return
	}

	log.Info("starting container")
	if err := c.engine.Run(ctx, imageURL, RunOptions{
		Name:      name,
		RmOnExit:  true,
		RmiOnExit: true,
		TLSVerify: false,
		Publish:   "127.0.0.1::8000",
		Env:       map[string]string{"PORT": "8000"},
	}); err != nil {
		log.Error("failed to launch container", "error", err)
		return
	}

	log.Info("new production image running")
}

// refreshPublishedSet lists running managed containers and hands the
// result to the proxy. List failures are logged and swallowed: a transient
// engine error shouldn't take the proxy's routing table down.
func (c *Controller) refreshPublishedSet(ctx context.Context) {
	containers, err := c.engine.List(ctx, false)
	if err != nil {
		xlog.C(ctx).Error("could not fetch running containers", "error", err)
		return
	}

	managed := lo.Filter(containers, func(info ContainerInfo, _ int) bool {
		_, ok := c.managedRef(info)
		return ok && len(info.Ports) > 0
	})

	published := lo.FilterMap(managed, func(info ContainerInfo, _ int) (PublishedContainer, bool) {
		ref, _ := c.managedRef(info)
		port := info.Ports[0]
		cfg, err := loadRuntimeConfig(c.fs, c.configsDir, ref.Location, ref.Reference)
		if err != nil {
			xlog.C(ctx).Error("could not load runtime config", "container", info.Name, "error", err)
			return PublishedContainer{}, false
		}
		return PublishedContainer{
			HostAddr:  fmt.Sprintf("%s:%d", port.HostIP, port.HostPort),
			Reference: ref,
			Config:    cfg,
		}, true
	})

	xlog.C(ctx).Info("updating running container set", "count", len(published))
	c.proxy.UpdateContainers(ctx, published)
}
