// ABOUTME: Tests for the dedupe repeat window
// ABOUTME: Validates TTL expiry, forgetting, the size bound, and concurrency safety

package dedupe

import (
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock lets tests move time without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestCache(ttl time.Duration, size int) (*Cache, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New(ttl, size)
	c.now = clock.Now
	return c, clock
}

func TestCheckAndMark_FirstOccurrence(t *testing.T) {
	c, _ := newTestCache(time.Minute, 10)

	assert.False(t, c.CheckAndMark("probe 10.0.0.5"), "first report is not a repeat")
	assert.True(t, c.CheckAndMark("probe 10.0.0.5"), "second report within the window is a repeat")
	assert.False(t, c.CheckAndMark("probe 10.0.0.6"), "keys are independent")
}

func TestCheckAndMark_Expires(t *testing.T) {
	c, clock := newTestCache(time.Minute, 10)

	assert.False(t, c.CheckAndMark("k"))
	clock.Advance(59 * time.Second)
	assert.True(t, c.CheckAndMark("k"))

	clock.Advance(2 * time.Second)
	assert.False(t, c.CheckAndMark("k"), "report resurfaces once the window has passed")
	assert.True(t, c.CheckAndMark("k"))
}

func TestCheckAndMark_RepeatsDoNotExtendWindow(t *testing.T) {
	c, clock := newTestCache(time.Minute, 10)

	assert.False(t, c.CheckAndMark("k"))
	for range 3 {
		clock.Advance(15 * time.Second)
		assert.True(t, c.CheckAndMark("k"))
	}

	// 60s after the first mark: the window started there, not at the last repeat
	clock.Advance(15 * time.Second)
	assert.False(t, c.CheckAndMark("k"))

	clock.Advance(15 * time.Second)
	assert.True(t, c.CheckAndMark("k"), "a new window starts at the resurfaced report")
}

func TestForget(t *testing.T) {
	c, _ := newTestCache(time.Minute, 10)

	c.CheckAndMark("k")
	c.Forget("k")
	assert.False(t, c.CheckAndMark("k"), "forgotten key is reported again")

	c.Forget("never-marked")
}

func TestSizeBound(t *testing.T) {
	c, _ := newTestCache(time.Hour, 3)

	for i := range 5 {
		c.CheckAndMark("host-" + strconv.Itoa(i))
	}
	assert.Equal(t, 3, c.Len())
	assert.False(t, c.CheckAndMark("host-0"), "oldest key was evicted")
	assert.True(t, c.CheckAndMark("host-4"))
}

func TestNew_ClampsSize(t *testing.T) {
	c := New(time.Minute, 0)
	assert.False(t, c.CheckAndMark("k"))
	assert.Equal(t, 1, c.Len())
}

func TestCheckAndMark_Concurrent(t *testing.T) {
	c := New(time.Hour, 100)

	var first atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			if !c.CheckAndMark("same-key") {
				first.Add(1)
			}
		})
	}
	wg.Wait()

	assert.Equal(t, int32(1), first.Load(), "exactly one caller sees the first occurrence")
}
