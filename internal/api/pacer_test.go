package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances only when slept on.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(d time.Duration) {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
}

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestPacerFirstCallDoesNotWait(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	pacer := NewPacer(2*time.Second, clock)

	pacer.Wait()
	assert.Empty(t, clock.sleeps)
}

func TestPacerEnforcesMinimumSpacing(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	pacer := NewPacer(2*time.Second, clock)

	var callTimes []time.Time
	for i := 0; i < 5; i++ {
		pacer.Wait()
		callTimes = append(callTimes, clock.Now())
	}

	require.Len(t, callTimes, 5)
	for i := 1; i < len(callTimes); i++ {
		gap := callTimes[i].Sub(callTimes[i-1])
		assert.GreaterOrEqual(t, gap, 2*time.Second, "gap between call %d and %d", i-1, i)
	}
}

func TestPacerSkipsWaitAfterIdlePeriod(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	pacer := NewPacer(2*time.Second, clock)

	pacer.Wait()
	clock.Advance(3 * time.Second)
	pacer.Wait()

	assert.Empty(t, clock.sleeps, "no sleep expected once the interval has already elapsed")
}

func TestPacerSleepsOnlyTheRemainder(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	pacer := NewPacer(2*time.Second, clock)

	pacer.Wait()
	clock.Advance(1500 * time.Millisecond)
	pacer.Wait()

	require.Len(t, clock.sleeps, 1)
	assert.Equal(t, 500*time.Millisecond, clock.sleeps[0])
}
