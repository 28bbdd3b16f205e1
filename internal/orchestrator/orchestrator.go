// ABOUTME: Orchestrator owns the credential registry and drives the auth lifecycle
// ABOUTME: Setup reconciles once, then Run repeats probe/reconcile/check cycles on a ticker

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/2389/printauth/internal/authkey"
	"github.com/2389/printauth/internal/broadcast"
	"github.com/2389/printauth/internal/dedupe"
	"github.com/2389/printauth/internal/metrics"
	"github.com/2389/printauth/internal/printer"
	"github.com/2389/printauth/internal/store"
)

// DefaultInterval is the pause between steady-state cycles.
const DefaultInterval = 5 * time.Second

// LogRepeatWindow is how long a recurring per-host failure stays at info
// level after its first warning.
const LogRepeatWindow = 5 * time.Minute

// ErrUnknownHost is returned for hosts that are not in the configured list.
var ErrUnknownHost = errors.New("host is not configured")

// Prober checks whether a device is reachable.
type Prober interface {
	Probe(ctx context.Context, host string) error
}

// Pairer requests and checks credentials on a device.
type Pairer interface {
	RequestCredential(ctx context.Context, host, application, user string) (*printer.Credential, error)
	CheckStatus(ctx context.Context, host, id string) (authkey.Status, error)
}

// Publisher receives lifecycle events.
type Publisher interface {
	Publish(event *broadcast.Event)
}

// Config holds the identity the orchestrator pairs as and the hosts it manages.
type Config struct {
	Application string
	User        string
	Hosts       []string
	Interval    time.Duration
}

// Options carries the orchestrator's collaborators. Publisher, Metrics and
// Logger are optional.
type Options struct {
	Store     store.CredentialStore
	Prober    Prober
	Pairer    Pairer
	Publisher Publisher
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Orchestrator runs the auth lifecycle for a fixed set of hosts.
type Orchestrator struct {
	cfg      Config
	store    store.CredentialStore
	prober   Prober
	pairer   Pairer
	pub      Publisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
	registry *authkey.Registry

	// turn serializes cycles and regenerations. It is a channel so waiting
	// callers can give up when their context ends.
	turn chan struct{}

	ready     atomic.Bool
	available atomic.Pointer[AvailableHosts]

	// repeats downgrades recurring per-host warnings to debug.
	repeats *dedupe.Cache
}

type noopPublisher struct{}

func (noopPublisher) Publish(*broadcast.Event) {}

// New creates an Orchestrator with an empty registry.
func New(cfg Config, opts Options) (*Orchestrator, error) {
	if cfg.Application == "" {
		return nil, errors.New("application is required")
	}
	if opts.Store == nil {
		return nil, errors.New("store is required")
	}
	if opts.Prober == nil || opts.Pairer == nil {
		return nil, errors.New("prober and pairer are required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	cfg.Hosts = slices.Clone(cfg.Hosts)

	pub := opts.Publisher
	if pub == nil {
		pub = noopPublisher{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	o := &Orchestrator{
		cfg:      cfg,
		store:    opts.Store,
		prober:   opts.Prober,
		pairer:   opts.Pairer,
		pub:      pub,
		metrics:  opts.Metrics,
		logger:   logger.With("component", "orchestrator"),
		registry: authkey.NewRegistry(),
		turn:     make(chan struct{}, 1),
		repeats:  dedupe.New(LogRepeatWindow, max(4*len(cfg.Hosts), 64)),
	}
	o.available.Store(newAvailableHosts())
	return o, nil
}

// Run performs Setup and then a cycle every Interval until ctx is cancelled.
// A Setup failure is returned; otherwise Run returns nil after sealing the
// registry.
func (o *Orchestrator) Run(ctx context.Context) error {
	defer o.registry.Close()

	if err := o.Setup(ctx); err != nil {
		return fmt.Errorf("setup: %w", err)
	}

	ticker := time.NewTicker(o.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("orchestrator stopping")
			return nil
		case <-ticker.C:
			if err := o.RunCycle(ctx); err != nil && ctx.Err() == nil {
				o.logger.Error("cycle failed", "error", err)
			}
		}
	}
}

// acquire takes the turn, or gives up when ctx ends.
func (o *Orchestrator) acquire(ctx context.Context) error {
	select {
	case o.turn <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) release() {
	<-o.turn
}

// Ready reports whether Setup has completed.
func (o *Orchestrator) Ready() bool {
	return o.ready.Load()
}

// Application returns the application name credentials are issued to.
func (o *Orchestrator) Application() string {
	return o.cfg.Application
}

// Hosts returns the configured host list.
func (o *Orchestrator) Hosts() []string {
	return slices.Clone(o.cfg.Hosts)
}

// Available returns the hosts that answered the most recent probe pass.
func (o *Orchestrator) Available() []string {
	return o.available.Load().Hosts()
}

// Credentials returns a snapshot of every registered credential.
func (o *Orchestrator) Credentials() []authkey.Key {
	return o.registry.All()
}

// Credential returns the credential registered for host.
func (o *Orchestrator) Credential(host string) (authkey.Key, bool) {
	return o.registry.Get(host)
}

// Registry exposes the registry for read access.
func (o *Orchestrator) Registry() *authkey.Registry {
	return o.registry
}

func (o *Orchestrator) configured(host string) bool {
	return slices.Contains(o.cfg.Hosts, host)
}

// logHostError logs a per-host failure, separating timeouts from other errors.
func (o *Orchestrator) logHostError(op, host string, err error) {
	if printer.IsTimeout(err) {
		o.hostWarn(op, host, op+": host timed out", "host", host, "error", err)
		return
	}
	o.hostWarn(op, host, op+": an error occurred", "host", host, "error", err)
}

// hostWarn logs at warn the first time op fails for host within
// LogRepeatWindow and at info after that.
func (o *Orchestrator) hostWarn(op, host, msg string, args ...any) {
	if o.repeats.CheckAndMark(op + " " + host) {
		o.logger.Info(msg, args...)
		return
	}
	o.logger.Warn(msg, args...)
}

// hostRecovered re-arms the warning for op on host.
func (o *Orchestrator) hostRecovered(op, host string) {
	o.repeats.Forget(op + " " + host)
}
