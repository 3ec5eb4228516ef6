// Command lucena-worker runs a standalone MDP worker process that connects
// to a remote lucena-broker and serves one named service. Unlike the
// in-process worker pool a Service owns, this binary is the out-of-process
// counterpart: it speaks the Majordomo wire protocol (mdp.Worker) so it can
// live in a different process, or on a different host, from the broker.
// It answers every request the way an in-process Worker with only the
// built-in handlers answers an unmatched one: the request is echoed with a
// null $rep and a "No handler match" error. It does not use handler.Table
// and has no domain-specific handlers.
package main

import (
	"encoding/json"
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
	var configPath, service string

	root := &cobra.Command{
		Use:   "lucena-worker",
		Short: "Run a standalone MDP worker connected to a Lucena broker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, cmd.Flags())
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return run(cfg, service)
		},
	}
	root.Flags().StringVar(&configPath, "config", "", "directory to search for lucena.yaml")
	root.Flags().String("endpoint", "tcp://127.0.0.1:5555", "broker endpoint to connect to")
	root.Flags().StringVar(&service, "service", "echo", "service name to register for")
	root.Flags().String("log-level", "info", "log level")
	root.Flags().String("loki-endpoint", "", "Loki push endpoint (disabled if empty)")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cfg *config.Config, service string) error {
	logger := log.Initialize(log.Options{Level: cfg.LogLevel, LokiEndpoint: cfg.LokiEndpoint, Component: "worker"})

	w, err := mdp.NewWorker(cfg.Endpoint, service)
	if err != nil {
		return fmt.Errorf("failed to connect worker to broker: %w", err)
	}
	defer w.Close()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Info("worker shutting down")
		w.Shutdown()
	}()

	logger.WithFields(map[string]interface{}{"broker": cfg.Endpoint, "service": service}).Info("worker started")

	var reply []string
	for !w.Terminated() {
		request, err := w.Recv(reply)
		if err != nil || request == nil {
			reply = nil
			continue
		}
		reply = []string{resolve(request)}
	}
	return nil
}

// resolve answers a single JSON request frame the way a worker bound with
// only the handler table's built-ins would: echo with a "no handler match"
// error, since this process has no domain-specific bindings of its own.
func resolve(request []string) string {
	msg := map[string]interface{}{}
	if len(request) > 0 {
		_ = json.Unmarshal([]byte(request[0]), &msg)
	}
	msg["$rep"] = nil
	msg["$error"] = "No handler match"
	out, _ := json.Marshal(msg)
	return string(out)
}
