package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	osservice "github.com/kardianos/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// serviceName is the unit name registered with the OS service manager.
const serviceName = "styletransfer"

// program adapts serve to the OS service lifecycle.
type program struct {
	a      *app
	cancel context.CancelFunc
	done   chan error
}

func (p *program) Start(osservice.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan error, 1)
	go func() { p.done <- p.a.serve(ctx) }()
	return nil
}

func (p *program) Stop(osservice.Service) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()

	select {
	case err := <-p.done:
		return err
	case <-time.After(p.a.cfg.ShutdownTimeout + 5*time.Second):
		return fmt.Errorf("timeout waiting for the service to stop")
	}
}

// serviceConfig describes the installed unit. The unit runs "service run"
// with the same env file and asset override this invocation was given,
// resolved to absolute paths.
func (a *app) serviceConfig() (*osservice.Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}

	args := []string{"service", "run", "--env-file", absPath(wd, a.envFile)}
	if a.assets != "" {
		args = append(args, "--assets", absPath(wd, a.assets))
	}
	return &osservice.Config{
		Name:             serviceName,
		DisplayName:      "Style Transfer",
		Description:      "Neural style transfer HTTP API",
		Arguments:        args,
		WorkingDirectory: wd,
		Option: osservice.KeyValue{
			"StartType": "automatic",
			"Restart":   "on-failure",
		},
	}, nil
}

func absPath(wd, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(wd, p)
}

func newServiceCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Install and control the HTTP API as an OS service",
		Long: `Install and control the HTTP API as an OS service (systemd, launchd or the
Windows service manager).

"service run" is what the installed unit executes; it serves until the
service manager stops it.`,
		Example: `  styletransfer service install --env-file /etc/styletransfer.env
  styletransfer service status`,
	}

	for _, action := range osservice.ControlAction {
		action := action
		cmd.AddCommand(&cobra.Command{
			Use:   action,
			Short: fmt.Sprintf("%s the %s service", action, serviceName),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				s, err := a.newOSService(&program{a: a})
				if err != nil {
					return err
				}
				if err := osservice.Control(s, action); err != nil {
					return err
				}
				a.logger.Info("Service control", zap.String("action", action))
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s done\n", serviceName, action)
				return nil
			},
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Report whether the service is installed and running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.newOSService(&program{a: a})
			if err != nil {
				return err
			}
			status, err := s.Status()
			if err != nil && err != osservice.ErrNotInstalled {
				return fmt.Errorf("query service status: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", serviceName, statusName(status, err))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:    "run",
		Short:  "Serve under the OS service manager",
		Args:   cobra.NoArgs,
		Hidden: true,
		RunE: func(*cobra.Command, []string) error {
			s, err := a.newOSService(&program{a: a})
			if err != nil {
				return err
			}
			return s.Run()
		},
	})
	return cmd
}

func (a *app) newOSService(p *program) (osservice.Service, error) {
	cfg, err := a.serviceConfig()
	if err != nil {
		return nil, err
	}
	s, err := osservice.New(p, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}
	return s, nil
}

func statusName(status osservice.Status, err error) string {
	if err == osservice.ErrNotInstalled {
		return "not installed"
	}
	switch status {
	case osservice.StatusRunning:
		return "running"
	case osservice.StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
