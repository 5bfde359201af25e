package barcode

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fakeTask struct {
	delay    time.Duration
	fn       func()
	canceled bool
}

type fakeScheduler struct {
	tasks []*fakeTask
}

func (s *fakeScheduler) Schedule(d time.Duration, fn func()) CancelFunc {
	t := &fakeTask{delay: d, fn: fn}
	s.tasks = append(s.tasks, t)
	return func() { t.canceled = true }
}

// last returns the most recently scheduled task.
func (s *fakeScheduler) last() *fakeTask {
	if len(s.tasks) == 0 {
		return nil
	}
	return s.tasks[len(s.tasks)-1]
}

// fireLast runs the most recent task if it was not canceled.
func (s *fakeScheduler) fireLast() {
	t := s.last()
	if t != nil && !t.canceled {
		t.fn()
	}
}

type harness struct {
	clock     *fakeClock
	sched     *fakeScheduler
	committed []string
	c         *Classifier
}

func newHarness() *harness {
	h := &harness{
		clock: &fakeClock{now: time.Unix(1700000000, 0)},
		sched: &fakeScheduler{},
	}
	h.c = New(
		func(code string) { h.committed = append(h.committed, code) },
		WithClock(h.clock),
		WithScheduler(h.sched),
	)
	return h
}

// typeCode feeds characters with a fixed inter-character gap.
func (h *harness) typeCode(code string, gap time.Duration) {
	for _, r := range code {
		h.clock.Advance(gap)
		h.c.AppendChar(r)
	}
}

func TestClassifier_ScannerBurstCommitsAfterShortQuiescence(t *testing.T) {
	h := newHarness()

	// 10ms gaps: scanner territory.
	h.typeCode("78912345", 10*time.Millisecond)

	require.Equal(t, StateBuffering, h.c.State())
	require.Equal(t, ScannedQuiescence, h.sched.last().delay)

	h.sched.fireLast()

	require.Equal(t, []string{"78912345"}, h.committed)
	assert.Equal(t, StateCommitting, h.c.State())

	h.c.Resolve(true)
	assert.Equal(t, StateIdle, h.c.State())
}

func TestClassifier_LongBufferIsScannedRegardlessOfTiming(t *testing.T) {
	h := newHarness()

	// Slow typing, but 12 characters flips the classification.
	h.typeCode("789123456789", 100*time.Millisecond)

	assert.Equal(t, ScannedQuiescence, h.sched.last().delay)
}

func TestClassifier_TypedInputWaitsLonger(t *testing.T) {
	h := newHarness()

	h.typeCode("78912345", 100*time.Millisecond)

	require.Equal(t, TypedQuiescence, h.sched.last().delay)

	h.sched.fireLast()
	h.c.Resolve(true)

	assert.Equal(t, []string{"78912345"}, h.committed)
}

func TestClassifier_EachCharacterRestartsTheTimer(t *testing.T) {
	h := newHarness()

	h.typeCode("78912345", 100*time.Millisecond)
	first := h.sched.last()

	h.clock.Advance(100 * time.Millisecond)
	h.c.AppendChar('6')

	assert.True(t, first.canceled)
	assert.False(t, h.sched.last().canceled)
}

func TestClassifier_PasteUsesItsOwnWindow(t *testing.T) {
	h := newHarness()

	h.c.Paste("7891234560017")

	require.Equal(t, PasteQuiescence, h.sched.last().delay)

	h.sched.fireLast()
	h.c.Resolve(true)

	assert.Equal(t, []string{"7891234560017"}, h.committed)
}

func TestClassifier_ShortPasteFallsBackToTypedWindow(t *testing.T) {
	h := newHarness()

	h.c.Paste("789")

	assert.Equal(t, TypedQuiescence, h.sched.last().delay)
}

func TestClassifier_TimerBelowMinimumLengthDoesNotCommit(t *testing.T) {
	h := newHarness()

	h.typeCode("789", 100*time.Millisecond)
	h.sched.fireLast()

	assert.Empty(t, h.committed)
	// Buffer survives: completing it later still commits the full code.
	h.typeCode("12345", 100*time.Millisecond)
	h.sched.fireLast()
	assert.Equal(t, []string{"78912345"}, h.committed)
}

func TestClassifier_EnterCommitsImmediately(t *testing.T) {
	h := newHarness()

	h.typeCode("78912345", 100*time.Millisecond)
	pending := h.sched.last()

	h.c.Enter()

	assert.Equal(t, []string{"78912345"}, h.committed)
	assert.True(t, pending.canceled)
}

func TestClassifier_EnterBelowMinimumDiscards(t *testing.T) {
	h := newHarness()

	h.typeCode("789", 100*time.Millisecond)
	h.c.Enter()

	assert.Empty(t, h.committed)
	assert.Equal(t, StateIdle, h.c.State())
}

func TestClassifier_BlurCommitsLikeEnter(t *testing.T) {
	h := newHarness()

	h.typeCode("78912345", 100*time.Millisecond)
	h.c.Blur()

	assert.Equal(t, []string{"78912345"}, h.committed)
}

func TestClassifier_InputIgnoredWhileCommitting(t *testing.T) {
	h := newHarness()

	h.typeCode("78912345", 100*time.Millisecond)
	h.c.Enter()
	require.Equal(t, StateCommitting, h.c.State())

	h.c.AppendChar('9')
	h.c.Paste("11112222")
	require.Len(t, h.committed, 1)

	h.c.Resolve(true)

	// The ignored input left no residue.
	assert.Equal(t, StateIdle, h.c.State())
	h.c.Enter()
	assert.Len(t, h.committed, 1)
}

func TestClassifier_CooldownSuppressesDuplicateCode(t *testing.T) {
	h := newHarness()

	h.typeCode("78912345", 10*time.Millisecond)
	h.c.Enter()
	h.c.Resolve(true)

	// Same code scanned again 300ms later: dropped without a commit.
	h.clock.Advance(300 * time.Millisecond)
	h.typeCode("78912345", 10*time.Millisecond)
	h.c.Enter()

	assert.Equal(t, []string{"78912345"}, h.committed)
	assert.Equal(t, StateIdle, h.c.State())
}

func TestClassifier_DifferentCodeCommitsDuringCooldown(t *testing.T) {
	h := newHarness()

	h.typeCode("78912345", 10*time.Millisecond)
	h.c.Enter()
	h.c.Resolve(true)

	h.clock.Advance(100 * time.Millisecond)
	h.typeCode("11112222", 10*time.Millisecond)
	h.c.Enter()
	h.c.Resolve(true)

	assert.Equal(t, []string{"78912345", "11112222"}, h.committed)
}

func TestClassifier_SameCodeCommitsAfterCooldownExpires(t *testing.T) {
	h := newHarness()

	h.typeCode("78912345", 10*time.Millisecond)
	h.c.Enter()
	h.c.Resolve(true)

	h.clock.Advance(Cooldown)
	h.typeCode("78912345", 10*time.Millisecond)
	h.c.Enter()

	assert.Equal(t, []string{"78912345", "78912345"}, h.committed)
}

func TestClassifier_RejectedCommitDoesNotStartCooldown(t *testing.T) {
	h := newHarness()

	h.typeCode("78912345", 10*time.Millisecond)
	h.c.Enter()
	h.c.Resolve(false)

	// Immediately resubmitting the same code goes through.
	h.typeCode("78912345", 10*time.Millisecond)
	h.c.Enter()

	assert.Equal(t, []string{"78912345", "78912345"}, h.committed)
}

func TestClassifier_ResetDiscardsBufferButKeepsCooldown(t *testing.T) {
	h := newHarness()

	h.typeCode("78912345", 10*time.Millisecond)
	h.c.Enter()
	h.c.Resolve(true)

	h.clock.Advance(100 * time.Millisecond)
	h.typeCode("7891", 10*time.Millisecond)
	h.c.Reset()
	require.Equal(t, StateIdle, h.c.State())

	// Cooldown still applies to the previously accepted code.
	h.typeCode("78912345", 10*time.Millisecond)
	h.c.Enter()
	assert.Len(t, h.committed, 1)
}
