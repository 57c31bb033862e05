package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"tilebridge/pkg/config"
	"tilebridge/pkg/gateway"
	"tilebridge/pkg/logger"
	"tilebridge/pkg/snapshot"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bridge host",
	Long: `Run the tilebridge host: state backend, shortcut registry, snapshot
scheduler and the script gateway.

Examples:
  # Run in foreground (default)
  tilebridge serve

  # Install as a user service
  tilebridge serve install
  tilebridge serve start
  tilebridge serve status`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runForeground()
	},
}

var serveRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run under the service manager, or in foreground when started manually",
	RunE: func(cmd *cobra.Command, args []string) error {
		if service.Interactive() {
			return runForeground()
		}
		return RunService()
	},
}

func serviceAction(use, short string, action func(service.Service) error, done string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newService(NewHostService())
			if err != nil {
				return err
			}
			if err := action(s); err != nil {
				return fmt.Errorf("%s service: %w", use, err)
			}
			fmt.Println(done)
			return nil
		},
	}
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check service status",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newService(NewHostService())
		if err != nil {
			return err
		}
		status, err := s.Status()
		if err != nil {
			return fmt.Errorf("getting service status: %w", err)
		}

		statusStr := "Unknown"
		switch status {
		case service.StatusRunning:
			statusStr = "Running"
		case service.StatusStopped:
			statusStr = "Stopped"
		}
		fmt.Printf("Service Status: %s\n", statusStr)
		return nil
	},
}

func init() {
	serveCmd.AddCommand(serveRunCmd)
	serveCmd.AddCommand(serviceAction("install", "Install as a service", service.Service.Install,
		"Service installed. Use 'tilebridge serve start' to start it."))
	serveCmd.AddCommand(serviceAction("uninstall", "Uninstall the service", service.Service.Uninstall,
		"Service uninstalled."))
	serveCmd.AddCommand(serviceAction("start", "Start the service", service.Service.Start,
		"Service started."))
	serveCmd.AddCommand(serviceAction("stop", "Stop the service", service.Service.Stop,
		"Service stopped."))
	serveCmd.AddCommand(serviceAction("restart", "Restart the service", service.Service.Restart,
		"Service restarted."))
	serveCmd.AddCommand(serveStatusCmd)

	rootCmd.AddCommand(serveCmd)
}

// hostModules is the full server graph.
func hostModules(mode string) fx.Option {
	return fx.Options(
		coreModules(),
		snapshot.Module,
		gateway.Module,

		fx.Invoke(func(lc fx.Lifecycle, log *logger.Logger, cfg *config.Config, _ *snapshot.Scheduler, srv *gateway.Server) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					log.Info("tilebridge started",
						zap.String("mode", mode),
						zap.String("backend", cfg.State.Backend),
						zap.String("gateway", srv.Addr()))
					return nil
				},
				OnStop: func(ctx context.Context) error {
					log.Info("tilebridge stopped")
					return nil
				},
			})
		}),
	)
}

// runForeground runs the host until SIGINT or SIGTERM.
func runForeground() error {
	app := fx.New(hostModules("foreground"), fx.NopLogger)

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return fmt.Errorf("starting tilebridge: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	fmt.Println("\nShutting down tilebridge...")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	return app.Stop(stopCtx)
}

// HostService implements service.Interface.
type HostService struct {
	app    *fx.App
	logger service.Logger
}

// NewHostService creates a new host service.
func NewHostService() *HostService {
	return &HostService{}
}

// Start implements service.Interface.
func (h *HostService) Start(svc service.Service) error {
	if h.logger != nil {
		h.logger.Info("Starting tilebridge service")
	}

	h.app = fx.New(hostModules("service"), fx.NopLogger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return h.app.Start(ctx)
}

// Stop implements service.Interface.
func (h *HostService) Stop(svc service.Service) error {
	if h.logger != nil {
		h.logger.Info("Stopping tilebridge service")
	}
	if h.app == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := h.app.Stop(ctx); err != nil {
		if h.logger != nil {
			h.logger.Errorf("Error stopping service: %v", err)
		}
		return err
	}
	return nil
}

// ServiceConfig returns the service configuration. The config path in use
// is passed through so the service reads the same file.
func ServiceConfig() *service.Config {
	args := []string{}
	path := configPath
	if path == "" {
		path = os.Getenv(config.ConfigPathEnv)
	}
	if path != "" {
		args = append(args, "-c", path)
	}
	args = append(args, "serve", "run")

	return &service.Config{
		Name:        "tilebridge",
		DisplayName: "tilebridge",
		Description: "Persistent state bridge for window manager tiling scripts",
		Arguments:   args,
		Option: service.KeyValue{
			"UserService": true,
		},
	}
}

func newService(h *HostService) (service.Service, error) {
	s, err := service.New(h, ServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("creating service: %w", err)
	}
	return s, nil
}

// RunService runs the host under the service manager.
func RunService() error {
	h := NewHostService()
	s, err := newService(h)
	if err != nil {
		return err
	}

	svcLogger, err := s.Logger(nil)
	if err != nil {
		return fmt.Errorf("creating service logger: %w", err)
	}
	h.logger = svcLogger

	if err := s.Run(); err != nil {
		svcLogger.Error(err)
		return err
	}
	return nil
}
