package alarm

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockTimerFires(t *testing.T) {
	timer := NewClockTimer(testLogger())

	fired := make(chan FirePayload, 1)
	timer.Bind(func(payload FirePayload) {
		fired <- payload
	})

	require.NoError(t, timer.ArmOnce(7, time.Now().Add(10*time.Millisecond), testPayload()))
	assert.Equal(t, 1, timer.Pending())

	select {
	case payload := <-fired:
		assert.Equal(t, int64(7), payload.ScheduleID)
		assert.Equal(t, "Aspirin", payload.MedicineName)
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")
	}

	assert.Equal(t, 0, timer.Pending())
}

func TestClockTimerArmReplacesPending(t *testing.T) {
	timer := NewClockTimer(testLogger())

	var mu sync.Mutex
	var fires []int
	timer.Bind(func(payload FirePayload) {
		mu.Lock()
		fires = append(fires, payload.IntervalDays)
		mu.Unlock()
	})

	// Arm far in the future, then immediately replace with a short fuse
	// carrying a distinguishable payload.
	first := testPayload()
	first.IntervalDays = 1
	second := testPayload()
	second.IntervalDays = 2

	require.NoError(t, timer.ArmOnce(7, time.Now().Add(time.Hour), first))
	require.NoError(t, timer.ArmOnce(7, time.Now().Add(10*time.Millisecond), second))
	assert.Equal(t, 1, timer.Pending(), "re-arming the same id must not add a second timer")

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(fires) == 1 && fires[0] == 2
	}, 2*time.Second, 10*time.Millisecond)

	// Only the replacement fired.
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, []int{2}, fires)
	mu.Unlock()
}

func TestClockTimerCancel(t *testing.T) {
	timer := NewClockTimer(testLogger())

	fired := make(chan struct{}, 1)
	timer.Bind(func(FirePayload) { fired <- struct{}{} })

	require.NoError(t, timer.ArmOnce(7, time.Now().Add(50*time.Millisecond), testPayload()))
	timer.Cancel(7)
	assert.Equal(t, 0, timer.Pending())

	select {
	case <-fired:
		t.Fatal("cancelled timer fired")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestClockTimerStaleExpireKeepsReplacementTracked(t *testing.T) {
	timer := NewClockTimer(testLogger())

	fired := make(chan struct{}, 1)
	timer.Bind(func(FirePayload) { fired <- struct{}{} })

	require.NoError(t, timer.ArmOnce(7, time.Now().Add(time.Hour), testPayload()))
	timer.mu.Lock()
	staleGen := timer.pending[7].gen
	timer.mu.Unlock()

	// Replace the pending timer, then deliver the first arm's expiration as
	// if its goroutine had started just before Stop could catch it.
	require.NoError(t, timer.ArmOnce(7, time.Now().Add(time.Hour), testPayload()))
	timer.expire(7, staleGen, testPayload())

	assert.Equal(t, 1, timer.Pending(), "a stale expiration must not untrack the replacement")
	select {
	case <-fired:
		t.Fatal("stale expiration fired")
	case <-time.After(100 * time.Millisecond):
	}

	// The replacement still honors Cancel.
	timer.Cancel(7)
	assert.Equal(t, 0, timer.Pending())
	select {
	case <-fired:
		t.Fatal("cancelled replacement fired")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestClockTimerExpireAfterCancelIsNoOp(t *testing.T) {
	timer := NewClockTimer(testLogger())

	fired := make(chan struct{}, 1)
	timer.Bind(func(FirePayload) { fired <- struct{}{} })

	require.NoError(t, timer.ArmOnce(7, time.Now().Add(time.Hour), testPayload()))
	timer.mu.Lock()
	gen := timer.pending[7].gen
	timer.mu.Unlock()

	timer.Cancel(7)
	timer.expire(7, gen, testPayload())

	select {
	case <-fired:
		t.Fatal("expiration fired after cancel")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestClockTimerCancelUnknownID(t *testing.T) {
	timer := NewClockTimer(testLogger())
	timer.Cancel(42)
	assert.Equal(t, 0, timer.Pending())
}

func TestClockTimerPastDeadlineFiresImmediately(t *testing.T) {
	timer := NewClockTimer(testLogger())

	fired := make(chan struct{}, 1)
	timer.Bind(func(FirePayload) { fired <- struct{}{} })

	// A deadline in the past still delivers exactly one fire.
	require.NoError(t, timer.ArmOnce(7, time.Now().Add(-time.Minute), testPayload()))

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("overdue timer did not fire")
	}
}
