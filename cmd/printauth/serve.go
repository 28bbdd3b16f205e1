// ABOUTME: The serve command: wires store, printer client, orchestrator and HTTP server
// ABOUTME: Runs the lifecycle loop and the API until a signal arrives or setup fails

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/2389/printauth/internal/auth"
	"github.com/2389/printauth/internal/broadcast"
	"github.com/2389/printauth/internal/config"
	"github.com/2389/printauth/internal/metrics"
	"github.com/2389/printauth/internal/natsbridge"
	"github.com/2389/printauth/internal/orchestrator"
	"github.com/2389/printauth/internal/printer"
	"github.com/2389/printauth/internal/server"
	"github.com/2389/printauth/internal/store"
	"github.com/2389/printauth/internal/tailnet"
)

// app holds everything runServe starts, in the order it must be torn down.
type app struct {
	logger    *slog.Logger
	store     store.CredentialStore
	node      *tailnet.Node
	events    *broadcast.Broadcaster
	forwarder *natsbridge.Forwarder
	orch      *orchestrator.Orchestrator
	server    *server.Server
	listener  net.Listener
}

func runServe(ctx context.Context) error {
	configPath := config.DefaultPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	printStartup(configPath, cfg)

	logger.Info("starting printauth",
		"config", configPath,
		"application", cfg.Application,
		"hosts", len(cfg.Printers.Hosts),
	)

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	return a.run(ctx)
}

func printStartup(configPath string, cfg *config.Config) {
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)
	gray := color.New(color.FgHiBlack)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("App:       %s (user %s)\n", cfg.Application, cfg.AppUser)
	green.Print("    ▶ ")
	fmt.Printf("Printers:  %d\n", len(cfg.Printers.Hosts))
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Driver)

	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		if cfg.Tailscale.DialPrinters {
			gray.Print(" (printers via tailnet)")
		}
		fmt.Println()
	} else {
		green.Print("    ▶ ")
		fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	}

	if cfg.NATS.URL != "" {
		green.Print("    ▶ ")
		fmt.Printf("NATS:      %s -> %s\n", cfg.NATS.URL, cfg.NATS.Subject)
	}
	if cfg.Auth.JWTSecret == "" {
		yellow.Println("    ! API auth disabled (no auth.jwt_secret)")
	}

	fmt.Println()
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{logger: logger}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	dsn := cfg.Database.Path
	if cfg.Database.Driver == store.DriverPostgres {
		dsn = cfg.Database.DSN
	}
	a.store, err = store.Open(ctx, cfg.Database.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	var tailnetDial printer.DialContextFunc
	if cfg.Tailscale.Enabled {
		a.node, err = tailnet.Start(ctx, tailnet.Config{
			Hostname:  cfg.Tailscale.Hostname,
			AuthKey:   cfg.Tailscale.AuthKey,
			StateDir:  cfg.Tailscale.StateDir,
			Ephemeral: cfg.Tailscale.Ephemeral,
			HTTPS:     cfg.Tailscale.HTTPS,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("tailnet: %w", err)
		}
		tailnetDial = a.node.Dial
	}

	var m *metrics.Metrics
	var gatherer prometheus.Gatherer
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m = metrics.New(reg)
		gatherer = reg
	}

	a.events = broadcast.NewBroadcaster(logger)
	m.WatchEvents(a.events)

	if cfg.NATS.URL != "" {
		a.forwarder, err = natsbridge.Connect(cfg.NATS.URL, cfg.NATS.Subject, logger)
		if err != nil {
			return nil, fmt.Errorf("connecting to NATS: %w", err)
		}
	}

	printers := printer.NewClient(printerConfig(cfg, tailnetDial, logger))
	a.orch, err = orchestrator.New(orchestratorConfig(cfg), orchestratorOptions(a.store, printers, a.events, m, logger))
	if err != nil {
		return nil, fmt.Errorf("creating orchestrator: %w", err)
	}

	var verifier auth.TokenVerifier
	if cfg.Auth.JWTSecret != "" {
		v, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
		if err != nil {
			return nil, fmt.Errorf("creating JWT verifier: %w", err)
		}
		verifier = v
	}

	a.server = server.New(server.Options{
		Orchestrator: a.orch,
		Events:       a.events,
		Verifier:     verifier,
		Gatherer:     gatherer,
		MetricsPath:  cfg.Metrics.Path,
		Logger:       logger,
	})

	if a.node != nil {
		a.listener, err = a.node.ListenHTTP()
	} else {
		a.listener, err = net.Listen("tcp", cfg.Server.HTTPAddr)
	}
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}

	return a, nil
}

// printerConfig builds the printer client settings. Printer traffic goes
// through the tailnet only when tailscale.dial_printers is set.
func printerConfig(cfg *config.Config, tailnetDial printer.DialContextFunc, logger *slog.Logger) printer.Config {
	pc := printer.Config{
		ProbeTimeout:   cfg.Orchestrator.ProbeTimeout,
		RequestTimeout: cfg.Orchestrator.RequestTimeout,
		Logger:         logger,
	}
	if cfg.Tailscale.DialPrinters {
		pc.Dial = tailnetDial
	}
	return pc
}

func orchestratorConfig(cfg *config.Config) orchestrator.Config {
	return orchestrator.Config{
		Application: cfg.Application,
		User:        cfg.AppUser,
		Hosts:       cfg.Printers.Hosts,
		Interval:    cfg.Orchestrator.Interval,
	}
}

// orchestratorOptions shares one printer client, and so one connection pool,
// between probing and pairing.
func orchestratorOptions(st store.CredentialStore, printers *printer.Client, pub orchestrator.Publisher, m *metrics.Metrics, logger *slog.Logger) orchestrator.Options {
	return orchestrator.Options{
		Store:     st,
		Prober:    printers,
		Pairer:    printers,
		Publisher: pub,
		Metrics:   m,
		Logger:    logger,
	}
}

// run blocks until ctx is cancelled or one component fails. A setup failure
// stops the server too.
func (a *app) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.orch.Run(gctx)
	})
	g.Go(func() error {
		return a.server.Serve(gctx, a.listener)
	})
	if a.forwarder != nil {
		events, subID := a.events.Subscribe(gctx)
		g.Go(func() error {
			defer a.events.Unsubscribe(subID)
			return a.forwarder.Run(gctx, events)
		})
	}

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.logger.Info("printauth stopped")
	return nil
}

func (a *app) close() {
	if a.events != nil {
		a.events.Close()
	}
	if a.forwarder != nil {
		if err := a.forwarder.Close(); err != nil {
			a.logger.Warn("closing NATS connection", "error", err)
		}
	}
	if a.node != nil {
		if err := a.node.Close(); err != nil {
			a.logger.Warn("closing tailscale node", "error", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("closing store", "error", err)
		}
	}
}
