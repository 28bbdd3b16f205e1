// ABOUTME: AvailableHosts collects reachable hosts from concurrent probe workers
// ABOUTME: DiscoverHosts fans out one probe per configured host and joins them

package orchestrator

import (
	"context"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/2389/printauth/internal/metrics"
	"github.com/2389/printauth/internal/printer"
)

// AvailableHosts is the set of hosts that answered a probe pass.
type AvailableHosts struct {
	mu    sync.Mutex
	hosts []string
	set   map[string]struct{}
}

func newAvailableHosts() *AvailableHosts {
	return &AvailableHosts{set: make(map[string]struct{})}
}

// Add records host as reachable. Duplicates are ignored.
func (a *AvailableHosts) Add(host string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.set[host]; ok {
		return
	}
	a.set[host] = struct{}{}
	a.hosts = append(a.hosts, host)
}

// Contains reports whether host was reachable.
func (a *AvailableHosts) Contains(host string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.set[host]
	return ok
}

// Hosts returns the reachable hosts in the order they answered.
func (a *AvailableHosts) Hosts() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.hosts)
}

// Len returns the number of reachable hosts.
func (a *AvailableHosts) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.hosts)
}

// DiscoverHosts probes every configured host concurrently and returns the
// ones that answered. Unreachable hosts are logged and skipped; the pass
// takes as long as the slowest probe.
func (o *Orchestrator) DiscoverHosts(ctx context.Context) *AvailableHosts {
	avail := newAvailableHosts()

	var g errgroup.Group
	for _, host := range o.cfg.Hosts {
		g.Go(func() error {
			if err := o.prober.Probe(ctx, host); err != nil {
				if printer.IsTimeout(err) {
					o.hostWarn("probe", host, "host timed out, unavailable", "host", host)
					o.metrics.ObserveProbe(metrics.ResultTimeout)
				} else {
					o.hostWarn("probe", host, "error occurred connecting to host", "host", host, "error", err)
					o.metrics.ObserveProbe(metrics.ResultError)
				}
				return nil
			}
			o.hostRecovered("probe", host)
			avail.Add(host)
			o.metrics.ObserveProbe(metrics.ResultReachable)
			return nil
		})
	}
	_ = g.Wait()

	o.available.Store(avail)
	o.metrics.SetAvailableHosts(avail.Len())
	o.logger.Debug("probe pass complete", "configured", len(o.cfg.Hosts), "available", avail.Len())
	return avail
}
