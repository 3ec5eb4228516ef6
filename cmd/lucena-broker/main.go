// Command lucena-broker runs a standalone Majordomo broker process.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/geoffjay/lucena/config"
	"github.com/geoffjay/lucena/log"
	"github.com/geoffjay/lucena/mdp"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "lucena-broker",
		Short: "Run the Lucena Majordomo broker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, cmd.Flags())
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return run(cfg)
		},
	}
	root.Flags().StringVar(&configPath, "config", "", "directory to search for lucena.yaml")
	root.Flags().String("endpoint", "tcp://*:5555", "ROUTER endpoint to bind")
	root.Flags().String("log-level", "info", "log level")
	root.Flags().String("loki-endpoint", "", "Loki push endpoint (disabled if empty)")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	logger := log.Initialize(log.Options{Level: cfg.LogLevel, LokiEndpoint: cfg.LokiEndpoint, Component: "broker"})

	broker, err := mdp.NewBroker(cfg.Endpoint)
	if err != nil {
		return fmt.Errorf("failed to create broker: %w", err)
	}
	if err := broker.Bind(); err != nil {
		return fmt.Errorf("failed to bind broker: %w", err)
	}
	defer broker.Close()

	done := make(chan bool, 1)
	go broker.Run(done)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	logger.WithField("endpoint", cfg.Endpoint).Info("broker started")
	<-sig
	logger.Info("broker shutting down")
	return nil
}
