package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/lowbac/app"
	"github.com/kilianp07/lowbac/config"
	coremon "github.com/kilianp07/lowbac/core/monitoring"
	"github.com/kilianp07/lowbac/core/session"
	"github.com/kilianp07/lowbac/infra/logger"
	"github.com/kilianp07/lowbac/infra/monitoring"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:          "lowbac",
	Short:        "Relay IoT sensor webhooks to vehicle commands",
	SilenceUsage: true,
	RunE:         run,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Authorize, then accept webhook and MQTT signals",
	RunE:  run,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file, empty for environment only")
	rootCmd.AddCommand(serveCmd)
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

// setup loads the configuration and initializes logging and monitoring. The
// returned function flushes both.
func setup() (*config.Config, func(), error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	closeLog, err := logger.Setup(cfg.Logging.Options())
	if err != nil {
		return nil, nil, fmt.Errorf("logging: %w", err)
	}
	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		logger.New("main").Warnf("sentry disabled: %v", err)
		mon = coremon.NopMonitor{}
	}
	coremon.Init(mon)
	return cfg, func() {
		coremon.Flush(2 * time.Second)
		_ = closeLog()
	}, nil
}

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	return fatal(svc.Run(ctx))
}

// fatal reports startup failures that must stop the process.
func fatal(err error) error {
	var fe *session.FatalError
	if errors.As(err, &fe) {
		logger.New("main").Errorf("refusing to accept signals: %v", err)
		coremon.CaptureException(err, map[string]string{"session_fatal": fe.Code()})
	}
	return err
}
