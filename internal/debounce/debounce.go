// Package debounce coalesces bursts of log writes to the same period so that
// rapid taps produce a single repository write.
package debounce

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/period"
)

// ErrClosed is returned by Set after Close.
var ErrClosed = stderrors.New("log writer is closed")

// LogUpdater is the repository operation a LogWriter drives.
type LogUpdater interface {
	UpdateLog(ctx context.Context, habitID string, ref period.Ref, value, targetCount int, cadence models.Cadence) error
}

type slot struct {
	habitID string
	key     string
}

type pending struct {
	value       int
	targetCount int
	cadence     models.Cadence
	timer       *time.Timer
	seq         uint64
}

// LogWriter delays each write until window has passed without another write
// to the same habit and period; the last value wins.
type LogWriter struct {
	repo   LogUpdater
	keyer  period.Keyer
	window time.Duration

	mu      sync.Mutex
	pending map[slot]*pending
	closed  bool
	writing sync.WaitGroup
}

// NewLogWriter returns a LogWriter. A non-positive window selects the default.
func NewLogWriter(repo LogUpdater, keyer period.Keyer, window time.Duration) *LogWriter {
	if window <= 0 {
		window = constants.DefaultDebounce
	}
	return &LogWriter{
		repo:    repo,
		keyer:   keyer,
		window:  window,
		pending: make(map[slot]*pending),
	}
}

// Set schedules value for the period of h addressed by ref. Negative values
// are stored as zero.
func (w *LogWriter) Set(h models.Habit, ref period.Ref, value int) error {
	s := slot{habitID: h.ID, key: w.keyer.Resolve(ref, h.Cadence)}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}

	p, ok := w.pending[s]
	if !ok {
		p = &pending{}
		w.pending[s] = p
	}
	p.value = max(value, 0)
	p.targetCount = h.TargetCount
	p.cadence = h.Cadence

	if p.timer != nil {
		p.timer.Stop()
	}
	p.seq++
	seq := p.seq
	p.timer = time.AfterFunc(w.window, func() { w.fire(s, seq) })
	return nil
}

// Pending returns the value waiting to be written for a habit and period.
func (w *LogWriter) Pending(habitID, key string) (int, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.pending[slot{habitID: habitID, key: key}]
	if !ok {
		return 0, false
	}
	return p.value, true
}

func (w *LogWriter) fire(s slot, seq uint64) {
	w.mu.Lock()
	p, ok := w.pending[s]
	if !ok || p.seq != seq {
		w.mu.Unlock()
		return
	}
	delete(w.pending, s)
	w.writing.Add(1)
	w.mu.Unlock()
	defer w.writing.Done()

	if err := w.write(context.Background(), s, p); err != nil {
		logger.Warn("debounced log write failed", "habit", s.habitID, "period", s.key, "error", err)
	}
}

func (w *LogWriter) write(ctx context.Context, s slot, p *pending) error {
	return w.repo.UpdateLog(ctx, s.habitID, period.Key(s.key), p.value, p.targetCount, p.cadence)
}

// Flush writes everything pending now and waits for writes already in
// flight. Every failure is logged and the joined failures are returned.
func (w *LogWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	batch := w.pending
	w.pending = make(map[slot]*pending)
	for _, p := range batch {
		p.timer.Stop()
	}
	w.mu.Unlock()

	var errs []error
	for s, p := range batch {
		if err := w.write(ctx, s, p); err != nil {
			logger.Warn("log write failed", "habit", s.habitID, "period", s.key, "error", err)
			errs = append(errs, err)
		}
	}
	w.writing.Wait()
	return stderrors.Join(errs...)
}

// Close flushes and rejects further writes.
func (w *LogWriter) Close(ctx context.Context) error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	return w.Flush(ctx)
}
