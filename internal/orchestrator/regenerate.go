// ABOUTME: Regenerate replaces a host's credential with a freshly requested one
// ABOUTME: Operators use it after a device rejects a credential

package orchestrator

import (
	"context"
	"fmt"

	"github.com/2389/printauth/internal/authkey"
	"github.com/2389/printauth/internal/broadcast"
	"github.com/2389/printauth/internal/metrics"
)

// Regenerate requests a new credential from host, stores it and swaps it
// into the registry as Pending. It waits for any running cycle to finish.
// The old credential stays in place if any step fails.
func (o *Orchestrator) Regenerate(ctx context.Context, host string) (authkey.Key, error) {
	if !o.configured(host) {
		return authkey.Key{}, fmt.Errorf("%w: %s", ErrUnknownHost, host)
	}
	if err := o.acquire(ctx); err != nil {
		return authkey.Key{}, err
	}
	defer o.release()

	var prevStatus authkey.Status
	if prev, ok := o.registry.Get(host); ok {
		prevStatus = prev.Status
	}

	cred, err := o.pairer.RequestCredential(ctx, host, o.cfg.Application, o.cfg.User)
	if err != nil {
		o.logHostError("credential regeneration", host, err)
		o.metrics.ObservePairing(pairingResult(err))
		return authkey.Key{}, fmt.Errorf("requesting credential from %s: %w", host, err)
	}

	key := authkey.New(host, cred.ID, cred.Key)
	if err := o.store.Upsert(ctx, o.record(key)); err != nil {
		o.metrics.ObservePairing(metrics.ResultStore)
		return authkey.Key{}, fmt.Errorf("%w: storing credential for %s: %w", authkey.ErrStore, host, err)
	}
	if err := o.registry.Upsert(key); err != nil {
		return authkey.Key{}, err
	}
	o.metrics.ObservePairing(metrics.ResultSuccess)
	o.metrics.SetCredentials(o.registry.CountByStatus())

	o.logger.Info("credential regenerated", "credential", key, "previous_status", prevStatus)
	o.pub.Publish(broadcast.NewCredentialRegenerated(key, prevStatus))
	return key, nil
}
