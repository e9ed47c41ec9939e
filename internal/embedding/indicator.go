package embedding

import (
	"sync"
	"time"
)

// IndicatorState is the aggregate status shown to the user.
type IndicatorState string

const (
	IndicatorIdle     IndicatorState = "idle"
	IndicatorIndexing IndicatorState = "indexing"
	IndicatorComplete IndicatorState = "complete"
	IndicatorFailed   IndicatorState = "failed"
)

// DefaultFade is how long "complete" is shown before returning to idle.
const DefaultFade = 3 * time.Second

// Indicator folds task lifecycles into a single status. It shows indexing
// while any task is active, failed once any task in the current batch has
// failed, and complete for a short while after a clean batch.
type Indicator struct {
	mu      sync.Mutex
	active  int
	failed  bool
	state   IndicatorState
	changed time.Time
	fade    time.Duration
	now     func() time.Time
}

// NewIndicator creates an idle Indicator. A fade of zero uses DefaultFade.
func NewIndicator(fade time.Duration) *Indicator {
	if fade <= 0 {
		fade = DefaultFade
	}
	return &Indicator{state: IndicatorIdle, fade: fade, now: time.Now}
}

// Started records a task entering polling.
func (i *Indicator) Started() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.active == 0 {
		i.failed = false
	}
	i.active++
	i.set(IndicatorIndexing)
}

// Finished records the terminal snapshot of a task.
func (i *Indicator) Finished(s Snapshot) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.active > 0 {
		i.active--
	}
	if s.State == StateFailed {
		i.failed = true
	}
	if i.active > 0 {
		return
	}

	switch {
	case i.failed:
		i.set(IndicatorFailed)
	case s.State == StatePersisted:
		i.set(IndicatorComplete)
	default:
		i.set(IndicatorIdle)
	}
}

// State returns the current state. Complete turns into idle once the
// fade has elapsed.
func (i *Indicator) State() IndicatorState {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state == IndicatorComplete && i.now().Sub(i.changed) >= i.fade {
		i.state = IndicatorIdle
	}
	return i.state
}

// Active returns the number of tasks being polled.
func (i *Indicator) Active() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.active
}

func (i *Indicator) set(s IndicatorState) {
	i.state = s
	i.changed = i.now()
}
