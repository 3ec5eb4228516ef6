// Package log centralizes structured logging for every Lucena component,
// matching the teacher's logrus+lokirus combination: logrus is the logging
// facade used throughout the codebase (mdp, controller, service, worker all
// log through log.WithFields), and lokirus ships those records to Loki when
// a sink is configured, so that operators get the same structured records
// whether they're reading stdout or a log aggregator.
package log

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/yukitsune/lokirus"
)

// Options configures Initialize.
type Options struct {
	// Level is one of logrus's parseable level strings (trace, debug,
	// info, warn, error, fatal, panic).
	Level string

	// LokiEndpoint, if non-empty, adds a lokirus hook shipping every log
	// record at Level and above to that Loki push endpoint.
	LokiEndpoint string

	// Component is attached to every record as a static field (e.g.
	// "broker", "service", "worker") so multiplexed logs can be filtered
	// by origin.
	Component string
}

// Initialize configures the package-level logrus logger and returns an
// Entry pre-populated with the component field. Every Lucena entry point
// (cmd/lucena-broker, cmd/lucena-service, cmd/lucena-worker) calls this
// once at startup.
func Initialize(opts Options) *logrus.Entry {
	logger := logrus.StandardLogger()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if opts.LokiEndpoint != "" {
		hookOpts := lokirus.NewLokiHookOptions().
			WithLevelMap(lokirus.LevelMap{
				logrus.PanicLevel: "critical",
				logrus.FatalLevel: "critical",
				logrus.ErrorLevel: "error",
				logrus.WarnLevel:  "warning",
				logrus.InfoLevel:  "info",
				logrus.DebugLevel: "debug",
				logrus.TraceLevel: "trace",
			}).
			WithStaticLabels(lokirus.Labels{
				"app":       "lucena",
				"component": opts.Component,
			})
		hook := lokirus.NewLokiHookWithOpts(opts.LokiEndpoint, hookOpts, logrus.AllLevels...)
		logger.AddHook(hook)
	}

	return logger.WithField("component", opts.Component)
}
