package controller

import "context"

// ContainerInfo describes one container as reported by the engine's list
// operation.
type ContainerInfo struct {
	ID    string
	Name  string
	Image string
	Ports []PortMapping
}

// PortMapping is one published port on a container.
type PortMapping struct {
	HostIP        string
	HostPort      uint16
	ContainerPort uint16
	Protocol      string
}

// RunOptions configures Engine.Run.
type RunOptions struct {
	Name      string
	RmOnExit  bool
	RmiOnExit bool
	TLSVerify bool
	// Publish is a podman-style publish spec, e.g. "127.0.0.1::8000".
	Publish string
	Env     map[string]string
}

// Engine is the external container-engine collaborator the controller
// drives: in production, a podman CLI wrapper; in tests, a hand-written
// mock (internal/controller/mocks).
type Engine interface {
	// List returns running containers, or all containers (incl. stopped) if all is true.
	List(ctx context.Context, all bool) ([]ContainerInfo, error)
	// Remove removes a container by name. If force is true, removing an
	// absent container is not an error.
	Remove(ctx context.Context, name string, force bool) error
	// Login authenticates against a registry host.
	Login(ctx context.Context, username, password, registryHost string, tlsVerify bool) error
	// Pull fetches imageURL, always hitting the registry regardless of any
	// local cache.
	Pull(ctx context.Context, imageURL string) error
	// Run starts imageURL detached according to opts, returning once the
	// container has launched.
	Run(ctx context.Context, imageURL string, opts RunOptions) error
}
