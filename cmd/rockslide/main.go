// Package main is the entry of the application.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cast"
	"github.com/urfave/cli/v3"

	"github.com/rockslide/rockslide/internal/appinfo"
	"github.com/rockslide/rockslide/internal/cmdhelper"
	"github.com/rockslide/rockslide/internal/config"
	"github.com/rockslide/rockslide/internal/controller"
	"github.com/rockslide/rockslide/internal/proxy"
	"github.com/rockslide/rockslide/internal/registry/auth"
	"github.com/rockslide/rockslide/internal/registry/server"
	"github.com/rockslide/rockslide/internal/registry/storage"
	"github.com/rockslide/rockslide/internal/xlog"
)

// registryAddr is the registry's fixed internal listen address. It is not a
// configuration key (the config file only governs the public-facing
// reverse_proxy.http_bind): the controller needs a stable endpoint to log in
// to and pull images from.
const registryAddr = "127.0.0.1:5000"

func main() {
	app := &cli.Command{
		Name:                  "rockslide",
		Usage:                 "a minimal self-contained container platform",
		Suggest:               true,
		EnableShellCompletion: true,
		HideHelpCommand:       true,
		Before:                cli.BeforeFunc(cmdhelper.MaximumNArgs(1)),
		Commands: []*cli.Command{
			newVersionCommand(),
		},
		Action: runServer,
		ExitErrHandler: func(_ context.Context, c *cli.Command, err error) {
			cli.HandleExitCoder(err)
			cmdhelper.Fprintf(c.ErrWriter, "Error: %+v\n", err)
			os.Exit(1)
		},
	}
	//nolint:errcheck // already checked in root command ExitErrHandler
	_ = app.Run(context.Background(), os.Args)
}

func newVersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "show version",
		Action: func(_ context.Context, cmd *cli.Command) error {
			return appinfo.NewVersionWriter(appinfo.GetVersion()).
				SetAppName(cmd.Root().Name).
				Write(cmd.Writer)
		},
	}
}

func runServer(ctx context.Context, cmd *cli.Command) error {
	cfg := config.Default()
	if cmd.Args().Len() == 1 {
		loaded, err := config.Load(cmd.Args().First())
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}

	level, err := xlog.ParseLevel(cfg.Rockslide.Log)
	if err != nil {
		return err
	}
	logCfg := xlog.NewConfig()
	logCfg.Level = level
	xlog.SetDefault(xlog.New(logCfg))

	ctx = xlog.WithContext(ctx)
	log := xlog.C(ctx)

	fs := afero.NewOsFs()
	store, err := storage.New(fs, cfg.Registry.StoragePath)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}

	authProvider := auth.MasterPassword(cfg.Rockslide.MasterKey)

	reverseProxy := proxy.New()

	podmanRemote := cast.ToBool(os.Getenv("PODMAN_IS_REMOTE"))
	engine := controller.NewPodmanEngine(cfg.Containers.PodmanPath, podmanRemote)

	localAddr, err := advertisedRegistryAddr(podmanRemote)
	if err != nil {
		return fmt.Errorf("resolving local address: %w", err)
	}

	ctl, err := controller.New(engine, reverseProxy, fs, cfg.Registry.StoragePath+"/configs", localAddr, controller.Credentials{
		Username: "rockslide",
		Password: cfg.Rockslide.MasterKey,
	})
	if err != nil {
		return fmt.Errorf("starting controller: %w", err)
	}

	registrySrv := server.New(server.Config{
		Store: store,
		Auth:  authProvider,
		Hooks: ctl,
		Addr:  registryAddr,
	})

	if err := ctl.SyncAll(ctx); err != nil {
		log.Error("startup sync failed", "error", err)
	}

	errCh := make(chan error, 2)
	go func() { errCh <- registrySrv.Run(ctx) }()
	go func() { errCh <- reverseProxy.Run(ctx, cfg.ReverseProxy.HTTPBind) }()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-sigCtx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}
	return nil
}

// advertisedRegistryAddr returns the address the deployment controller
// tells the container engine to pull from: loopback when the engine runs
// on this host, or this host's resolvable address when PODMAN_IS_REMOTE is
// set (the engine then runs elsewhere and can't reach 127.0.0.1 here).
func advertisedRegistryAddr(remote bool) (string, error) {
	if !remote {
		return registryAddr, nil
	}
	hostname, err := os.Hostname()
	if err != nil {
		return "", err
	}
	addrs, err := net.LookupHost(hostname)
	if err != nil || len(addrs) == 0 {
		return "", fmt.Errorf("resolving hostname %q: %w", hostname, err)
	}
	_, port, err := net.SplitHostPort(registryAddr)
	if err != nil {
		return "", err
	}
	return net.JoinHostPort(addrs[0], port), nil
}
