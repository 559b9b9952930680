package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/worldnine/textwell-mcp/config"
	"github.com/worldnine/textwell-mcp/internal/appcheck"
	"github.com/worldnine/textwell-mcp/internal/common"
	"github.com/worldnine/textwell-mcp/internal/gate"
	"github.com/worldnine/textwell-mcp/internal/httpshell"
	"github.com/worldnine/textwell-mcp/internal/invoker"
	"github.com/worldnine/textwell-mcp/internal/telemetry"
	"github.com/worldnine/textwell-mcp/internal/textwell"
	"github.com/worldnine/textwell-mcp/pkg/mcp"
)

const (
	serverName    = "textwell-mcp"
	serverVersion = "0.1.0"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, warnings, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.ExpandPaths()

	logger := common.NewLogger(
		common.ParseLogLevel(cfg.Global.LogLevel),
		common.ParseLogFormat(cfg.Global.LogFormat),
		os.Stderr,
		serverName,
	)
	for _, w := range warnings {
		logger.Warn(w)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := common.ValidateOpener(cfg.Textwell.Opener); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, serverName, serverVersion, cfg.Global.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer flushCancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warnf("Failed to flush traces: %v", err)
		}
	}()

	if cfg.Textwell.CheckApp {
		warnIfAppMissing(ctx, logger, cfg.Textwell.AppName)
	}

	g := gate.New()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		g.Close()
		cancel()
	}()

	switch cfg.Global.Transport {
	case config.TransportHTTP:
		err = runHTTP(ctx, cfg, g, logger)
	default:
		err = runStdio(ctx, cfg, g, logger)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Errorf("Failed to start server: %v", err)
		return err
	}
	return nil
}

func runStdio(ctx context.Context, cfg *config.Config, g *gate.Gate, logger *common.Logger) error {
	server := mcp.NewServer(serverName, serverVersion)

	// Core log lines reach both stderr and the connected client.
	sink := common.MultiSink{
		logger,
		common.SinkFunc(func(level common.LogLevel, msg string) {
			server.LogMessage(level.String(), serverName, msg)
		}),
	}

	dispatcher, err := newDispatcher(cfg, g, sink)
	if err != nil {
		return err
	}
	dispatcher.RegisterTools(server)

	server.OnInitialized(func() {
		if g.MarkConnected() {
			sink.Log(common.LogLevelInfo, "Server started and ready")
		}
	})

	return server.Run(ctx)
}

func runHTTP(ctx context.Context, cfg *config.Config, g *gate.Gate, logger *common.Logger) error {
	dispatcher, err := newDispatcher(cfg, g, logger)
	if err != nil {
		return err
	}
	server := httpshell.NewServer(httpshell.Options{
		Name:       serverName,
		Version:    serverVersion,
		Dispatcher: dispatcher,
		Connector:  g,
		Logger:     logger,
	})
	return httpshell.Serve(ctx, cfg.Global.HTTPAddr, httpshell.Handler(server), logger)
}

func newDispatcher(cfg *config.Config, g *gate.Gate, sink common.Sink) (*textwell.Dispatcher, error) {
	mapping, err := textwell.NewModeMapping(cfg.Textwell.Paths)
	if err != nil {
		return nil, err
	}
	timeout := time.Duration(cfg.Textwell.TimeoutMs) * time.Millisecond

	inv := invoker.New(invoker.Options{
		Opener:          cfg.Textwell.Opener,
		OpenerArgs:      cfg.Textwell.OpenerArgs,
		DefaultDeadline: timeout,
		Sink:            sink,
	})

	return textwell.NewDispatcher(textwell.Options{
		Ready:       g,
		Mapping:     mapping,
		Invoker:     inv,
		Sink:        sink,
		Timeout:     timeout,
		MaxURLBytes: cfg.Textwell.MaxURLBytes,
		BridgeURL:   cfg.Textwell.BridgeURL,
	})
}

func warnIfAppMissing(ctx context.Context, logger *common.Logger, appName string) {
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	running, err := appcheck.New().IsRunning(checkCtx, appName)
	switch {
	case err != nil:
		logger.Debugf("Could not check for %s: %v", appName, err)
	case !running:
		logger.Warnf("%s does not appear to be running; URL scheme calls may fail", appName)
	}
}
