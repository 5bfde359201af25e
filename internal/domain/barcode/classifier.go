// Package barcode implements the input classifier that turns a stream of
// character, paste, enter and blur events into single committed barcode
// submissions. It is a pure debouncing/deduplication state machine: it never
// touches storage, and emits exactly one commit per accepted code.
package barcode

import (
	"strings"
	"sync"
	"time"
)

// Timing and length thresholds for classifying input bursts.
const (
	// MinCodeLength is the minimum buffer length before any commit is
	// considered.
	MinCodeLength = 8

	// ScannedLength classifies a buffer as scanner input regardless of
	// inter-character timing.
	ScannedLength = 12

	// ScannerGap is the inter-character gap below which input is treated as
	// coming from a hardware scanner.
	ScannerGap = 50 * time.Millisecond

	// Quiescence windows before a buffered code is committed. Each new
	// character restarts the window.
	ScannedQuiescence = 150 * time.Millisecond
	TypedQuiescence   = 500 * time.Millisecond
	PasteQuiescence   = 200 * time.Millisecond

	// Cooldown is the window after a successful commit during which the
	// identical code is silently dropped (duplicate-scan suppression).
	Cooldown = 1000 * time.Millisecond
)

// State is the classifier lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateBuffering  State = "buffering"
	StateCommitting State = "committing"
)

// CommitFunc receives a committed code. The classifier stays in Committing
// until the caller reports the outcome via Resolve.
type CommitFunc func(code string)

// Option configures a Classifier.
type Option func(*Classifier)

// WithClock substitutes the wall clock. For tests.
func WithClock(c Clock) Option {
	return func(cl *Classifier) { cl.clock = c }
}

// WithScheduler substitutes the debounce timer implementation. For tests.
func WithScheduler(s Scheduler) Option {
	return func(cl *Classifier) { cl.sched = s }
}

// Classifier is a per-terminal-session state machine. All methods are safe
// for concurrent use; debounce timers fire on scheduler goroutines.
type Classifier struct {
	clock  Clock
	sched  Scheduler
	commit CommitFunc

	mu           sync.Mutex
	state        State
	buffer       strings.Builder
	lastCharAt   time.Time
	cancel       CancelFunc
	gen          uint64
	pendingCode  string
	lastCode     string
	cooldownFrom time.Time
}

// New creates a classifier that calls commit for every code it accepts.
func New(commit CommitFunc, opts ...Option) *Classifier {
	c := &Classifier{
		clock:  realClock{},
		sched:  timerScheduler{},
		commit: commit,
		state:  StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current lifecycle state.
func (c *Classifier) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// AppendChar feeds one character. The buffer is classified as scanned when it
// reaches ScannedLength or when the gap since the previous character is below
// ScannerGap; otherwise typed. Each character restarts the quiescence timer.
// Input is ignored while a commit is in flight.
func (c *Classifier) AppendChar(r rune) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateCommitting {
		return
	}

	now := c.clock.Now()
	gap := now.Sub(c.lastCharAt)
	first := c.buffer.Len() == 0

	c.buffer.WriteRune(r)
	c.lastCharAt = now
	c.state = StateBuffering

	quiescence := TypedQuiescence
	if c.buffer.Len() >= ScannedLength || (!first && gap < ScannerGap) {
		quiescence = ScannedQuiescence
	}
	c.rescheduleLocked(quiescence)
}

// Paste feeds a bulk insert. Pastes of MinCodeLength or more characters
// bypass the scanned/typed split and use the paste quiescence window.
func (c *Classifier) Paste(s string) {
	if s == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateCommitting {
		return
	}

	c.buffer.WriteString(s)
	c.lastCharAt = c.clock.Now()
	c.state = StateBuffering

	quiescence := PasteQuiescence
	if len(s) < MinCodeLength {
		quiescence = TypedQuiescence
	}
	c.rescheduleLocked(quiescence)
}

// Enter forces an immediate commit when the buffer holds at least
// MinCodeLength characters; shorter buffers are discarded.
func (c *Classifier) Enter() {
	c.flush()
}

// Blur handles loss of input focus; same semantics as Enter.
func (c *Classifier) Blur() {
	c.flush()
}

// Reset discards any buffered input and pending timer. Cooldown state is
// preserved.
func (c *Classifier) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateCommitting {
		return
	}
	c.clearLocked()
}

// Resolve reports the outcome of an in-flight commit. On acceptance the
// cooldown window starts for the committed code. Either way the buffer is
// cleared and the classifier returns to Idle.
func (c *Classifier) Resolve(accepted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateCommitting {
		return
	}
	if accepted {
		c.lastCode = c.pendingCode
		c.cooldownFrom = c.clock.Now()
	}
	c.pendingCode = ""
	c.clearLocked()
}

// flush commits the buffer immediately, canceling any pending timer.
func (c *Classifier) flush() {
	c.mu.Lock()

	if c.state == StateCommitting {
		c.mu.Unlock()
		return
	}
	if c.buffer.Len() < MinCodeLength {
		c.clearLocked()
		c.mu.Unlock()
		return
	}
	commit, code := c.beginCommitLocked()
	c.mu.Unlock()

	if commit != nil {
		commit(code)
	}
}

// rescheduleLocked cancels the previous timer and starts a new quiescence
// window. The generation counter invalidates timers that fire after a
// cancellation races with scheduling.
func (c *Classifier) rescheduleLocked(d time.Duration) {
	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	gen := c.gen
	c.cancel = c.sched.Schedule(d, func() { c.fire(gen) })
}

// fire is the quiescence timer callback.
func (c *Classifier) fire(gen uint64) {
	c.mu.Lock()

	if gen != c.gen || c.state != StateBuffering {
		c.mu.Unlock()
		return
	}
	if c.buffer.Len() < MinCodeLength {
		// Too short to commit; keep buffering until more input arrives
		// or the buffer is flushed/reset.
		c.mu.Unlock()
		return
	}
	commit, code := c.beginCommitLocked()
	c.mu.Unlock()

	if commit != nil {
		commit(code)
	}
}

// beginCommitLocked transitions to Committing and returns the callback to
// invoke outside the lock. A code identical to the last accepted one within
// the cooldown window is dropped silently.
func (c *Classifier) beginCommitLocked() (CommitFunc, string) {
	code := c.buffer.String()

	if code == c.lastCode && c.clock.Now().Sub(c.cooldownFrom) < Cooldown {
		c.clearLocked()
		return nil, ""
	}

	c.state = StateCommitting
	c.pendingCode = code
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	return c.commit, code
}

func (c *Classifier) clearLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gen++
	c.buffer.Reset()
	c.state = StateIdle
}
