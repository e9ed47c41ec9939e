package viewport

import (
	"sync"
	"testing"
	"time"
)

type collector struct {
	mu   sync.Mutex
	got  []Range
	done chan struct{}
}

func newCollector() *collector {
	return &collector{done: make(chan struct{}, 16)}
}

func (c *collector) add(r Range) {
	c.mu.Lock()
	c.got = append(c.got, r)
	c.mu.Unlock()
	c.done <- struct{}{}
}

func (c *collector) values() []Range {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Range(nil), c.got...)
}

func TestDebouncer_CoalescesBurst(t *testing.T) {
	c := newCollector()
	d := NewDebouncer(20*time.Millisecond, c.add)
	defer d.Stop()

	for i := range 10 {
		d.Update(Range{Start: i, End: i + 20})
	}

	select {
	case <-c.done:
	case <-time.After(time.Second):
		t.Fatal("debounced call never fired")
	}
	time.Sleep(50 * time.Millisecond)

	got := c.values()
	if len(got) != 1 {
		t.Fatalf("calls = %d, want 1", len(got))
	}
	if got[0] != (Range{Start: 9, End: 29}) {
		t.Errorf("delivered %+v, want the last update", got[0])
	}
}

func TestDebouncer_Flush(t *testing.T) {
	c := newCollector()
	d := NewDebouncer(time.Hour, c.add)
	defer d.Stop()

	d.Flush()
	if len(c.values()) != 0 {
		t.Fatal("Flush() without update delivered a value")
	}

	d.Update(Range{Start: 1, End: 2})
	d.Flush()
	if got := c.values(); len(got) != 1 || got[0] != (Range{Start: 1, End: 2}) {
		t.Errorf("values = %+v, want [{1 2}]", got)
	}
}

func TestDebouncer_Stop(t *testing.T) {
	c := newCollector()
	d := NewDebouncer(10*time.Millisecond, c.add)

	d.Update(Range{Start: 1, End: 2})
	d.Stop()
	d.Update(Range{Start: 3, End: 4})
	time.Sleep(50 * time.Millisecond)

	if got := c.values(); len(got) != 0 {
		t.Errorf("values after Stop = %+v, want none", got)
	}
}

func TestNewDebouncer_DefaultDelay(t *testing.T) {
	d := NewDebouncer(0, func(Range) {})
	if d.delay != DefaultDebounce {
		t.Errorf("delay = %v, want %v", d.delay, DefaultDebounce)
	}
}
