// Command lucena-service runs a Service dispatch loop with a pool of
// default (built-ins-only) workers. Domain-specific handler binding is left
// to embedders of the service package; see service.TestEndToEndDefaultEchoAndArithmetic
// for the pattern a custom entry point would follow.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/geoffjay/lucena/config"
	"github.com/geoffjay/lucena/log"
	"github.com/geoffjay/lucena/service"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "lucena-service",
		Short: "Run a Lucena Service dispatch loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, cmd.Flags())
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return run(cfg)
		},
	}
	root.Flags().StringVar(&configPath, "config", "", "directory to search for lucena.yaml")
	root.Flags().String("endpoint", "tcp://*:6000", "external ROUTER endpoint to bind")
	root.Flags().Int("workers", 4, "number of in-process workers")
	root.Flags().String("log-level", "info", "log level")
	root.Flags().String("loki-endpoint", "", "Loki push endpoint (disabled if empty)")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	logger := log.Initialize(log.Options{Level: cfg.LogLevel, LokiEndpoint: cfg.LokiEndpoint, Component: "service"})

	sup := service.NewSupervisor(logger)
	if err := sup.Start(cfg.WorkerCount, cfg.Endpoint); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	logger.WithFields(map[string]interface{}{"endpoint": cfg.Endpoint, "workers": cfg.WorkerCount}).Info("service started")
	<-sig
	logger.Info("service shutting down")
	return sup.Stop(cfg.StopTimeout)
}
