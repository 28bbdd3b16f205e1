// ABOUTME: Test doubles for the orchestrator: scripted devices and a recording publisher
// ABOUTME: Devices are configured per host and count the calls they receive

package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/2389/printauth/internal/authkey"
	"github.com/2389/printauth/internal/broadcast"
	"github.com/2389/printauth/internal/printer"
	"github.com/2389/printauth/internal/store"
)

var errRefused = errors.New("connection refused")

// device scripts one fake printer.
type device struct {
	unreachable  bool
	probeTimeout bool
	probeDelay   time.Duration
	cred         *printer.Credential
	requestErr   error
	status       authkey.Status
	checkErr     error
	// checkGate, when set, blocks CheckStatus until it is closed.
	checkGate chan struct{}
}

type fakeFleet struct {
	mu       sync.Mutex
	devices  map[string]*device
	requests map[string]int
	checks   map[string]int
}

func newFakeFleet() *fakeFleet {
	return &fakeFleet{
		devices:  make(map[string]*device),
		requests: make(map[string]int),
		checks:   make(map[string]int),
	}
}

func (f *fakeFleet) set(host string, d *device) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.devices[host] = d
}

func (f *fakeFleet) get(host string) *device {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.devices[host]
	if !ok {
		return &device{unreachable: true}
	}
	cp := *d
	return &cp
}

func (f *fakeFleet) requestCount(host string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[host]
}

func (f *fakeFleet) Probe(ctx context.Context, host string) error {
	d := f.get(host)
	if d.probeDelay > 0 {
		select {
		case <-time.After(d.probeDelay):
		case <-ctx.Done():
			return &printer.TransportError{Host: host, Op: "probe", Timeout: true, Err: ctx.Err()}
		}
	}
	switch {
	case d.probeTimeout:
		return &printer.TransportError{Host: host, Op: "probe", Timeout: true, Err: context.DeadlineExceeded}
	case d.unreachable:
		return &printer.TransportError{Host: host, Op: "probe", Err: errRefused}
	}
	return nil
}

func (f *fakeFleet) RequestCredential(ctx context.Context, host, application, user string) (*printer.Credential, error) {
	f.mu.Lock()
	f.requests[host]++
	f.mu.Unlock()

	d := f.get(host)
	if d.requestErr != nil {
		return nil, d.requestErr
	}
	if d.cred == nil {
		return nil, &printer.ProtocolError{Host: host, Op: "auth request", StatusCode: 200, Err: errors.New("missing id")}
	}
	cp := *d.cred
	return &cp, nil
}

func (f *fakeFleet) CheckStatus(ctx context.Context, host, id string) (authkey.Status, error) {
	f.mu.Lock()
	f.checks[host]++
	gate := f.devices[host]
	f.mu.Unlock()
	if gate != nil && gate.checkGate != nil {
		<-gate.checkGate
	}

	d := f.get(host)
	if d.checkErr != nil {
		return "", d.checkErr
	}
	if d.status == "" {
		return authkey.FallbackStatus, nil
	}
	return d.status, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*broadcast.Event
}

func (p *recordingPublisher) Publish(e *broadcast.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) ofType(t broadcast.EventType) []*broadcast.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*broadcast.Event
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type harness struct {
	orch  *Orchestrator
	fleet *fakeFleet
	store *store.MockStore
	pub   *recordingPublisher
}

func newHarness(t *testing.T, hosts ...string) *harness {
	t.Helper()
	h := &harness{
		fleet: newFakeFleet(),
		store: store.NewMockStore(),
		pub:   &recordingPublisher{},
	}
	orch, err := New(Config{
		Application: "app",
		User:        "ops",
		Hosts:       hosts,
		Interval:    10 * time.Millisecond,
	}, Options{
		Store:     h.store,
		Prober:    h.fleet,
		Pairer:    h.fleet,
		Publisher: h.pub,
	})
	require.NoError(t, err)
	h.orch = orch
	return h
}

func (h *harness) seed(t *testing.T, host, id, key string, status authkey.Status) {
	t.Helper()
	require.NoError(t, h.store.Upsert(context.Background(), &store.Record{
		Application: "app",
		User:        "ops",
		Host:        host,
		ID:          id,
		Key:         key,
		Status:      status,
	}))
}
