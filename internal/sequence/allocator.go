// Package sequence allocates per-day ticket numbers of the form
// T{YYYYMMDD}.{seq:04d}.
package sequence

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

const dayLayout = "20060102"

var numberPattern = regexp.MustCompile(`^T(\d{8})\.(\d{4,})$`)

// Store persists the day -> count mapping. Increment atomically sets the
// count for day to max(count+1, atLeast) and returns the new value, so a
// store that missed counts during an outage catches up with the caller.
type Store interface {
	Increment(ctx context.Context, day string, atLeast int) (int, error)
}

// Allocator hands out ticket numbers. Calls are serialized; if the store
// fails the allocator continues from its in-process counter for the day.
type Allocator struct {
	mu     sync.Mutex
	store  Store
	logger *zap.Logger
	now    func() time.Time
	local  map[string]int
}

// Option customizes an Allocator.
type Option func(*Allocator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Allocator) {
		a.now = now
	}
}

// NewAllocator creates an allocator backed by store. A nil store keeps
// counts in memory only.
func NewAllocator(store Store, logger *zap.Logger, opts ...Option) *Allocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Allocator{
		store:  store,
		logger: logger,
		now:    time.Now,
		local:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Next returns the next ticket number for today.
func (a *Allocator) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	day := a.now().Format(dayLayout)
	seq := a.local[day] + 1

	if a.store != nil {
		stored, err := a.store.Increment(ctx, day, seq)
		switch {
		case err != nil:
			a.logger.Warn("ticket sequence store unavailable; using in-process counter",
				zap.String("day", day), zap.Int("sequence", seq), zap.Error(err))
		case stored < seq:
			a.logger.Warn("ticket sequence store ignored the in-process floor",
				zap.String("day", day), zap.Int("stored", stored), zap.Int("sequence", seq))
		default:
			seq = stored
		}
	}

	a.local[day] = seq
	return Format(day, seq), nil
}

// Format renders a ticket number.
func Format(day string, seq int) string {
	return fmt.Sprintf("T%s.%04d", day, seq)
}

// Parse splits a ticket number into its day and sequence.
func Parse(number string) (time.Time, int, error) {
	m := numberPattern.FindStringSubmatch(number)
	if m == nil {
		return time.Time{}, 0, fmt.Errorf("malformed ticket number %q", number)
	}
	day, err := time.Parse(dayLayout, m[1])
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("malformed ticket number %q: %w", number, err)
	}
	seq, err := strconv.Atoi(m[2])
	if err != nil || seq < 1 {
		return time.Time{}, 0, fmt.Errorf("malformed ticket number %q", number)
	}
	return day, seq, nil
}
