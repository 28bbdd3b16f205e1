// ABOUTME: Setup and steady-state cycles: probe, reconcile against the store, check
// ABOUTME: Reconcile loads stored credentials or pairs hosts that have none

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/2389/printauth/internal/authkey"
	"github.com/2389/printauth/internal/broadcast"
	"github.com/2389/printauth/internal/metrics"
	"github.com/2389/printauth/internal/store"
)

// Setup runs the initial pass: it verifies the store, probes every host,
// loads or pairs a credential for each reachable host and checks them all.
// A store failure is fatal. A host whose pairing fails is left unregistered
// and retried by the next cycle.
func (o *Orchestrator) Setup(ctx context.Context) error {
	if err := o.acquire(ctx); err != nil {
		return err
	}
	defer o.release()

	start := time.Now()
	o.logger.Info("starting auth setup",
		"application", o.cfg.Application,
		"hosts", len(o.cfg.Hosts))

	if err := o.store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: connecting to store: %w", authkey.ErrStore, err)
	}

	avail := o.DiscoverHosts(ctx)
	o.logger.Info("available hosts", "hosts", avail.Hosts())

	if err := o.reconcile(ctx, avail, true); err != nil {
		return err
	}

	summary := o.CheckAll(ctx)
	o.metrics.ObserveCycle(metrics.PhaseSetup, time.Since(start))

	o.ready.Store(true)
	o.pub.Publish(broadcast.NewSetupComplete())
	o.logger.Info("auth setup completed",
		"registered", o.registry.Len(),
		"checked", summary.Checked,
		"failed", summary.Failed,
		"duration", time.Since(start))
	return nil
}

// RunCycle runs one steady-state pass. Every failure is confined to its
// host; the returned error is only the caller's context ending.
func (o *Orchestrator) RunCycle(ctx context.Context) error {
	if err := o.acquire(ctx); err != nil {
		return err
	}
	defer o.release()

	start := time.Now()
	avail := o.DiscoverHosts(ctx)
	_ = o.reconcile(ctx, avail, false)
	summary := o.CheckAll(ctx)
	o.metrics.ObserveCycle(metrics.PhaseCycle, time.Since(start))

	o.logger.Debug("cycle complete",
		"available", avail.Len(),
		"checked", summary.Checked,
		"changed", summary.Changed,
		"failed", summary.Failed,
		"duration", time.Since(start))
	return ctx.Err()
}

// reconcile registers a credential for every available host that lacks one.
// In strict mode a store lookup failure aborts with an ErrStore error once
// all workers have finished.
func (o *Orchestrator) reconcile(ctx context.Context, avail *AvailableHosts, strict bool) error {
	var g errgroup.Group
	for _, host := range avail.Hosts() {
		if _, ok := o.registry.Get(host); ok {
			continue
		}
		g.Go(func() error {
			rec, err := o.store.Lookup(ctx, o.cfg.Application, host)
			switch {
			case err == nil:
				o.register(rec.AuthKey())
				o.logger.Info("loaded credential from store", "credential", rec.AuthKey())
				return nil
			case errors.Is(err, store.ErrNotFound):
				o.pair(ctx, host)
				return nil
			default:
				err = fmt.Errorf("%w: looking up %s: %w", authkey.ErrStore, host, err)
				if strict {
					return err
				}
				o.logger.Error("credential lookup failed", "host", host, "error", err)
				return nil
			}
		})
	}
	return g.Wait()
}

// pair requests a new credential from host, persists it and registers it.
// A persistence failure is logged and the credential is still registered so
// the device can be checked this run.
func (o *Orchestrator) pair(ctx context.Context, host string) {
	o.logger.Info("generating key", "host", host)

	cred, err := o.pairer.RequestCredential(ctx, host, o.cfg.Application, o.cfg.User)
	if err != nil {
		o.logHostError("credential request", host, err)
		o.metrics.ObservePairing(pairingResult(err))
		return
	}

	key := authkey.New(host, cred.ID, cred.Key)
	o.logger.Info("generated key", "credential", key)

	if err := o.store.Upsert(ctx, o.record(key)); err != nil {
		o.logger.Error("storing credential failed",
			"credential", key,
			"error", fmt.Errorf("%w: %w", authkey.ErrStore, err))
		o.metrics.ObservePairing(metrics.ResultStore)
	} else {
		o.metrics.ObservePairing(metrics.ResultSuccess)
	}

	o.register(key)
}

func (o *Orchestrator) register(key authkey.Key) {
	if err := o.registry.Upsert(key); err != nil {
		o.logger.Warn("registering credential failed", "credential", key, "error", err)
	}
}

func (o *Orchestrator) record(key authkey.Key) *store.Record {
	return &store.Record{
		Application: o.cfg.Application,
		User:        o.cfg.User,
		Host:        key.Host,
		ID:          key.ID,
		Key:         key.Secret,
		Status:      key.Status,
		UpdatedAt:   key.UpdatedAt,
	}
}

func pairingResult(err error) string {
	if errors.Is(err, authkey.ErrProtocol) {
		return metrics.ResultProtocol
	}
	return metrics.ResultTransport
}
