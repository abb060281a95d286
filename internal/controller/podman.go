package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/rockslide/rockslide/internal/errdefs"
	"github.com/rockslide/rockslide/internal/xlog"
)

// PodmanEngine drives a podman binary via os/exec. It is the production
// Engine: rockslide never links a container-engine client library, treating
// the engine as an arbitrary external CLI instead.
type PodmanEngine struct {
	binary string
	remote bool
}

// NewPodmanEngine returns an Engine that shells out to the podman binary at
// path. remote mirrors PODMAN_IS_REMOTE: when true, the engine is assumed
// to run against a remote podman service rather than a local socket.
func NewPodmanEngine(path string, remote bool) *PodmanEngine {
	return &PodmanEngine{binary: path, remote: remote}
}

func (p *PodmanEngine) baseArgs() []string {
	if p.remote {
		return []string{"--remote"}
	}
	return nil
}

func (p *PodmanEngine) run(ctx context.Context, args ...string) ([]byte, error) {
	fullArgs := append(p.baseArgs(), args...)
	cmd := exec.CommandContext(ctx, p.binary, fullArgs...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	xlog.C(ctx).Debug("running podman", "args", fullArgs)
	if err := cmd.Run(); err != nil {
		return nil, errdefs.Newf(errdefs.ErrSystem, "podman %v: %w: %s", args, err, stderr.String())
	}
	return stdout.Bytes(), nil
}

type podmanContainerJSON struct {
	ID    string   `json:"Id"`
	Names []string `json:"Names"`
	Image string   `json:"Image"`
	Ports []struct {
		HostIP        string `json:"host_ip"`
		ContainerPort uint16 `json:"container_port"`
		HostPort      uint16 `json:"host_port"`
		Protocol      string `json:"protocol"`
	} `json:"Ports"`
}

// List implements Engine.
func (p *PodmanEngine) List(ctx context.Context, all bool) ([]ContainerInfo, error) {
	args := []string{"ps", "--format", "json"}
	if all {
		args = append(args, "--all")
	}
	out, err := p.run(ctx, args...)
	if err != nil {
		return nil, err
	}
	var raw []podmanContainerJSON
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, errdefs.Newf(errdefs.ErrSystem, "podman ps: parse output: %w", err)
	}
	infos := make([]ContainerInfo, 0, len(raw))
	for _, c := range raw {
		name := ""
		if len(c.Names) > 0 {
			name = c.Names[0]
		}
		info := ContainerInfo{ID: c.ID, Name: name, Image: c.Image}
		for _, pm := range c.Ports {
			info.Ports = append(info.Ports, PortMapping{
				HostIP:        pm.HostIP,
				HostPort:      pm.HostPort,
				ContainerPort: pm.ContainerPort,
				Protocol:      pm.Protocol,
			})
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Remove implements Engine.
func (p *PodmanEngine) Remove(ctx context.Context, name string, force bool) error {
	args := []string{"rm", name}
	if force {
		args = append(args, "--force", "--ignore")
	}
	_, err := p.run(ctx, args...)
	return err
}

// Login implements Engine.
func (p *PodmanEngine) Login(ctx context.Context, username, password, registryHost string, tlsVerify bool) error {
	args := []string{"login", registryHost, "--username", username, "--password-stdin"}
	if !tlsVerify {
		args = append(args, "--tls-verify=false")
	}
	fullArgs := append(p.baseArgs(), args...)
	cmd := exec.CommandContext(ctx, p.binary, fullArgs...)
	cmd.Stdin = bytes.NewBufferString(password)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return errdefs.Newf(errdefs.ErrSystem, "podman login: %w: %s", err, stderr.String())
	}
	return nil
}

// Pull implements Engine.
func (p *PodmanEngine) Pull(ctx context.Context, imageURL string) error {
	_, err := p.run(ctx, "pull", imageURL)
	return err
}

// Run implements Engine.
func (p *PodmanEngine) Run(ctx context.Context, imageURL string, opts RunOptions) error {
	args := []string{"run", "--detach"}
	if opts.RmOnExit {
		args = append(args, "--rm")
	}
	if opts.RmiOnExit {
		args = append(args, "--rmi")
	}
	if opts.Name != "" {
		args = append(args, "--name", opts.Name)
	}
	args = append(args, "--tls-verify="+strconv.FormatBool(opts.TLSVerify))
	if opts.Publish != "" {
		args = append(args, "--publish", opts.Publish)
	}
	for k, v := range opts.Env {
		args = append(args, "--env", fmt.Sprintf("%s=%s", k, v))
	}
	args = append(args, imageURL)
	_, err := p.run(ctx, args...)
	return err
}
