package controller_test

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/rockslide/rockslide/internal/controller"
	"github.com/rockslide/rockslide/internal/controller/mocks"
	"github.com/rockslide/rockslide/internal/registry/storage"
)

type recordingProxy struct {
	containers []controller.PublishedContainer
}

func (p *recordingProxy) UpdateContainers(ctx context.Context, containers []controller.PublishedContainer) {
	p.containers = containers
}

func newTestController(t *testing.T, engine controller.Engine, proxy controller.ProxyUpdater) *controller.Controller {
	t.Helper()
	c, err := controller.New(engine, proxy, afero.NewMemMapFs(), "/data/configs", "127.0.0.1:5000", controller.Credentials{
		Username: "admin",
		Password: "secret",
	})
	require.NoError(t, err)
	return c
}

func TestOnManifestUploadedReconcilesProdTag(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := mocks.NewMockEngine(ctrl)
	proxy := &recordingProxy{}

	loc := storage.ImageLocation{Repository: "library", Image: "nginx"}
	ref := storage.ManifestReference{Location: loc, Reference: storage.Reference{Tag: "prod"}}
	name := loc.ManagedName()

	gomock.InOrder(
		engine.EXPECT().Remove(gomock.Any(), name, true).Return(nil),
		engine.EXPECT().Login(gomock.Any(), "admin", "secret", "127.0.0.1:5000", false).Return(nil),
		engine.EXPECT().Pull(gomock.Any(), "127.0.0.1:5000/library/nginx:prod").Return(nil),
		engine.EXPECT().Run(gomock.Any(), "127.0.0.1:5000/library/nginx:prod", gomock.Any()).Return(nil),
	)
	engine.EXPECT().List(gomock.Any(), false).Return([]controller.ContainerInfo{
		{
			Name:  name,
			Image: "127.0.0.1:5000/library/nginx:prod",
			Ports: []controller.PortMapping{{HostIP: "127.0.0.1", HostPort: 34567, ContainerPort: 8000}},
		},
	}, nil)

	c := newTestController(t, engine, proxy)
	c.OnManifestUploaded(context.Background(), ref)

	require.Len(t, proxy.containers, 1)
	require.Equal(t, "127.0.0.1:34567", proxy.containers[0].HostAddr)
	require.Equal(t, ref, proxy.containers[0].Reference)
}

func TestOnManifestUploadedIgnoresNonProdTag(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := mocks.NewMockEngine(ctrl)
	proxy := &recordingProxy{}

	loc := storage.ImageLocation{Repository: "library", Image: "nginx"}
	ref := storage.ManifestReference{Location: loc, Reference: storage.Reference{Tag: "staging"}}

	engine.EXPECT().List(gomock.Any(), false).Return(nil, nil)

	c := newTestController(t, engine, proxy)
	c.OnManifestUploaded(context.Background(), ref)

	require.Empty(t, proxy.containers)
}

func TestReconcileStepFailureDoesNotStopRefresh(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := mocks.NewMockEngine(ctrl)
	proxy := &recordingProxy{}

	loc := storage.ImageLocation{Repository: "library", Image: "redis"}
	ref := storage.ManifestReference{Location: loc, Reference: storage.Reference{Tag: "prod"}}

	engine.EXPECT().Remove(gomock.Any(), loc.ManagedName(), true).Return(assertError{})
	engine.EXPECT().List(gomock.Any(), false).Return(nil, nil)

	c := newTestController(t, engine, proxy)
	c.OnManifestUploaded(context.Background(), ref)

	require.Empty(t, proxy.containers)
}

func TestSyncAllReconcilesOnlyManagedContainers(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := mocks.NewMockEngine(ctrl)
	proxy := &recordingProxy{}

	loc := storage.ImageLocation{Repository: "library", Image: "nginx"}
	name := loc.ManagedName()

	engine.EXPECT().List(gomock.Any(), true).Return([]controller.ContainerInfo{
		{Name: name, Image: "127.0.0.1:5000/library/nginx:prod"},
		{Name: "some-other-container", Image: "debian:latest"},
	}, nil)
	engine.EXPECT().Remove(gomock.Any(), name, true).Return(nil)
	engine.EXPECT().Login(gomock.Any(), "admin", "secret", "127.0.0.1:5000", false).Return(nil)
	engine.EXPECT().Pull(gomock.Any(), "127.0.0.1:5000/library/nginx:prod").Return(nil)
	engine.EXPECT().Run(gomock.Any(), "127.0.0.1:5000/library/nginx:prod", gomock.Any()).Return(nil)

	c := newTestController(t, engine, proxy)
	require.NoError(t, c.SyncAll(context.Background()))
}

type assertError struct{}

func (assertError) Error() string { return "boom" }
