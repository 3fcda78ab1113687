package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/flemzord/edgecycle/internal/config"
	"github.com/flemzord/edgecycle/pkg/app"
)

const serviceStopTimeout = 40 * time.Second

var errServiceNeedsProxyChoice = errors.New("use_proxy must be set in the configuration to run as a service")

// program adapts app.Run to the service manager's Start/Stop contract.
type program struct {
	cfgPath string

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	logger service.Logger
}

var _ service.Interface = (*program)(nil)

func (p *program) Start(s service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	p.mu.Lock()
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	go func() {
		defer close(done)
		err := app.Run(ctx, app.RunParams{
			ConfigPath: p.cfgPath,
			Version:    version,
			Commit:     commit,
			Date:       date,
		})
		if ctx.Err() != nil {
			return
		}
		// Run only returns on its own when startup failed.
		switch {
		case err == nil:
		case app.IsNoAccounts(err):
			p.logf("%s", noWalletsHint)
		default:
			p.logf("edgecycle stopped: %v", err)
		}
		if service.Interactive() {
			_ = s.Stop()
			return
		}
		os.Exit(exitCode(err))
	}()
	return nil
}

// exitCode maps a Run error to a process status. Having no wallets is
// not a failure: the service manager should not restart-loop on it.
func exitCode(err error) int {
	if err == nil || app.IsNoAccounts(err) {
		return 0
	}
	return 1
}

func (p *program) Stop(_ service.Service) error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()
	if cancel == nil {
		return nil
	}

	cancel()
	select {
	case <-done:
		return nil
	case <-time.After(serviceStopTimeout):
		return errors.New("edgecycle did not stop in time")
	}
}

func (p *program) logf(format string, args ...any) {
	if p.logger != nil {
		_ = p.logger.Errorf(format, args...)
		return
	}
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
}

func serviceConfig(cfgPath string) *service.Config {
	args := []string{"service", "run"}
	if cfgPath != "" {
		args = append(args, "--config", cfgPath)
	}
	return &service.Config{
		Name:        "edgecycle",
		DisplayName: "edgecycle",
		Description: "Keeps LayerEdge light nodes alive for a list of wallets.",
		Arguments:   args,
	}
}

// checkServiceConfig loads the configuration a service would run with.
// A service cannot answer the proxy prompt, so use_proxy must be set.
func checkServiceConfig(path string) (string, error) {
	cfg, resolved, err := config.LoadDefault(path)
	if err != nil {
		return "", err
	}
	if err := config.Validate(cfg); err != nil {
		return "", err
	}
	if cfg.UseProxy == nil {
		return "", errServiceNeedsProxyChoice
	}
	if resolved == "" {
		return "", nil
	}
	return filepath.Abs(resolved)
}

func newService(cfgPath string) (service.Service, *program, error) {
	prg := &program{cfgPath: cfgPath}
	s, err := service.New(prg, serviceConfig(cfgPath))
	if err != nil {
		return nil, nil, fmt.Errorf("service: %w", err)
	}
	return s, prg, nil
}

func serviceCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Install and control edgecycle as a system service",
	}
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to configuration file")

	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run under the service manager",
		RunE: func(_ *cobra.Command, _ []string) error {
			path, err := checkServiceConfig(cfgPath)
			if err != nil {
				return err
			}
			s, prg, err := newService(path)
			if err != nil {
				return err
			}
			if prg.logger, err = s.Logger(nil); err != nil {
				return fmt.Errorf("service: logger: %w", err)
			}
			return s.Run()
		},
	})

	for _, action := range []string{"install", "uninstall", "start", "stop", "restart"} {
		cmd.AddCommand(&cobra.Command{
			Use:   action,
			Short: fmt.Sprintf("%s the edgecycle service", action),
			RunE: func(cmd *cobra.Command, _ []string) error {
				path := cfgPath
				if action == "install" {
					resolved, err := checkServiceConfig(cfgPath)
					if err != nil {
						return err
					}
					path = resolved
				}
				s, _, err := newService(path)
				if err != nil {
					return err
				}
				if err := service.Control(s, action); err != nil {
					return fmt.Errorf("service %s: %w", action, err)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "service %s: ok\n", action)
				return nil
			},
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the service status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, _, err := newService(cfgPath)
			if err != nil {
				return err
			}
			st, err := s.Status()
			if err != nil {
				return fmt.Errorf("service status: %w", err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), statusText(st))
			return nil
		},
	})
	return cmd
}

func statusText(st service.Status) string {
	switch st {
	case service.StatusRunning:
		return "running"
	case service.StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
