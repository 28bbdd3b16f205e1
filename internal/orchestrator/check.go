// ABOUTME: CheckAll polls every registered credential's status concurrently
// ABOUTME: Changes are written to the registry, persisted, and published

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/2389/printauth/internal/authkey"
	"github.com/2389/printauth/internal/broadcast"
	"github.com/2389/printauth/internal/metrics"
)

// CheckSummary counts the outcomes of one CheckAll pass.
type CheckSummary struct {
	Checked int
	Changed int
	Failed  int
}

// CheckAll checks every registered credential in parallel. A failed check
// leaves that credential's status unchanged.
func (o *Orchestrator) CheckAll(ctx context.Context) CheckSummary {
	var checked, changed, failed atomic.Int64

	var g errgroup.Group
	for _, key := range o.registry.All() {
		g.Go(func() error {
			ok, didChange := o.check(ctx, key)
			switch {
			case !ok:
				failed.Add(1)
			case didChange:
				checked.Add(1)
				changed.Add(1)
			default:
				checked.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	o.metrics.SetCredentials(o.registry.CountByStatus())
	return CheckSummary{
		Checked: int(checked.Load()),
		Changed: int(changed.Load()),
		Failed:  int(failed.Load()),
	}
}

// check polls one credential. It reports whether the check succeeded and
// whether the status changed.
func (o *Orchestrator) check(ctx context.Context, key authkey.Key) (ok, changed bool) {
	status, err := o.pairer.CheckStatus(ctx, key.Host, key.ID)
	if err != nil {
		o.logHostError("status check", key.Host, err)
		o.metrics.ObserveCheck(metrics.ResultError)
		return false, false
	}
	o.hostRecovered("status check", key.Host)

	prev, changed, err := o.registry.SetStatus(key.Host, key.ID, status)
	if err != nil {
		if errors.Is(err, authkey.ErrStaleCredential) {
			o.logger.Debug("discarding check for replaced credential", "host", key.Host, "id", key.ID)
		} else {
			o.logger.Warn("recording status failed", "host", key.Host, "error", err)
		}
		o.metrics.ObserveCheck(metrics.ResultError)
		return false, false
	}
	if !changed {
		o.metrics.ObserveCheck(metrics.ResultUnchanged)
		return true, false
	}
	o.metrics.ObserveCheck(metrics.ResultChanged)

	key.Status = status
	o.logger.Info("credential status changed", "host", key.Host, "id", key.ID, "from", prev, "to", status)

	if err := o.store.UpdateStatus(ctx, o.cfg.Application, key.Host, status); err != nil {
		o.logger.Error("persisting status failed",
			"host", key.Host,
			"error", fmt.Errorf("%w: %w", authkey.ErrStore, err))
	}

	o.pub.Publish(broadcast.NewStatusChanged(key, prev))
	return true, true
}
