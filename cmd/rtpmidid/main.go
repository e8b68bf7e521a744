// Package main provides rtpmidid, an AppleMIDI (RTP-MIDI) session responder.
//
// rtpmidid accepts invitations from AppleMIDI initiators such as macOS
// Audio MIDI Setup, answers clock synchronization and logs every MIDI
// message it receives. Optionally it serves an operator HTTP API with
// Prometheus metrics, a JSON status document and peer removal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opd-ai/rtpmidi/config"
	"github.com/opd-ai/rtpmidi/metrics"
	"github.com/opd-ai/rtpmidi/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// CLI configuration
type CLIConfig struct {
	configPath      string
	name            string
	port            int
	logLevel        string
	metricsAddress  string
	shutdownTimeout time.Duration
	help            bool
}

// parseCLIFlags parses command-line flags and returns the configuration.
func parseCLIFlags() *CLIConfig {
	cli := &CLIConfig{}

	flag.StringVar(&cli.configPath, "config", "", "Configuration file (.yaml, .yml or .toml)")
	flag.StringVar(&cli.name, "name", "", "Session name advertised to remotes (overrides config)")
	flag.IntVar(&cli.port, "port", 0, "Control port, MIDI uses port+1 (overrides config)")
	flag.StringVar(&cli.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	flag.StringVar(&cli.metricsAddress, "metrics", "", "Serve the HTTP API (metrics, status, peers) on this address (overrides config)")
	flag.DurationVar(&cli.shutdownTimeout, "shutdown-timeout", 5*time.Second, "Time allowed for graceful shutdown")
	flag.BoolVar(&cli.help, "help", false, "Show help message")

	flag.Parse()
	return cli
}

// printUsage prints the usage information.
func printUsage() {
	fmt.Println("rtpmidid - AppleMIDI session responder")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Printf("  %s [options]\n", os.Args[0])
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Printf("  %s -name studio -port 5004\n", os.Args[0])
	fmt.Printf("  %s -config /etc/rtpmidid.toml -metrics 127.0.0.1:9464\n", os.Args[0])
}

// loadConfig builds the effective configuration from the file and flags.
func loadConfig(cli *CLIConfig) (*config.Config, error) {
	cfg := config.Default()
	if cli.configPath != "" {
		loaded, err := config.Load(cli.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if cli.name != "" {
		cfg.Name = cli.name
	}
	if cli.port != 0 {
		cfg.ControlPort = cli.port
	}
	if cli.logLevel != "" {
		cfg.Logging.Level = cli.logLevel
	}
	if cli.metricsAddress != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Address = cli.metricsAddress
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// logMidi returns the consumer that logs received MIDI messages.
func logMidi(logger *logrus.Logger) transport.MidiHandler {
	return func(msg transport.MidiMessage) {
		entry := logger.WithFields(logrus.Fields{
			"remote_name": msg.RemoteName,
			"remote_ssrc": fmt.Sprintf("%08X", msg.SSRC),
		})

		messages, err := splitSection(msg.Payload)
		for _, m := range messages {
			entry.WithField("midi", m.String()).Info("MIDI received")
		}
		if err != nil {
			entry.WithFields(logrus.Fields{
				"payload": fmt.Sprintf("% X", msg.Payload),
				"error":   err.Error(),
			}).Warn("Malformed MIDI command section")
		}
	}
}

// startHTTPServer serves the operator API on address.
func startHTTPServer(address string, handler http.Handler, logger *logrus.Logger) *http.Server {
	server := &http.Server{
		Addr:              address,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("HTTP server failed")
		}
	}()

	logger.WithField("address", address).Info("HTTP API listening (/metrics, /status, /peers)")
	return server
}

func run(cli *CLIConfig) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}

	logger, closer, err := cfg.Logging.NewLogger()
	if err != nil {
		return err
	}
	defer closer.Close()

	logger.WithFields(logrus.Fields{
		"name":         cfg.Name,
		"control_addr": cfg.ControlAddress(),
		"midi_addr":    cfg.MidiAddress(),
		"version":      version,
	}).Info("Starting rtpmidid")

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)

	srv, err := transport.NewServer(&transport.Options{
		Name:        cfg.Name,
		BindAddress: cfg.BindAddress,
		ControlPort: cfg.ControlPort,
		MaxPeers:    cfg.MaxPeers,
		Logger:      logger,
		Metrics:     m,
	})
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	srv.OnMidi(logMidi(logger))

	var httpServer *http.Server
	if cfg.Metrics.Enabled {
		httpServer = startHTTPServer(cfg.Metrics.Address, newAPIHandler(cfg, registry, srv, logger), logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cli.shutdownTimeout)
	defer cancel()

	var shutdownErr error
	if httpServer != nil {
		shutdownErr = httpServer.Shutdown(shutdownCtx)
	}
	return errors.Join(shutdownErr, srv.Close(shutdownCtx))
}

func main() {
	cli := parseCLIFlags()
	if cli.help {
		printUsage()
		os.Exit(0)
	}

	if err := run(cli); err != nil {
		fmt.Fprintf(os.Stderr, "rtpmidid: %v\n", err)
		os.Exit(1)
	}
}
