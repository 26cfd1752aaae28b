package loop

import (
	"sort"
	"time"
)

// Manual is an Executor driven by the caller. Posted work runs immediately
// and timers fire only when Advance moves the clock past them. Tests use it
// to step countdowns deterministically.
type Manual struct {
	now    time.Duration
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	at        time.Duration
	seq       int
	fn        func()
	cancelled bool
}

// NewManual creates a manual executor at time zero.
func NewManual() *Manual { return &Manual{} }

// Post runs fn right away.
func (m *Manual) Post(fn func()) { fn() }

// AfterFunc registers fn to fire once the clock passes d from now.
func (m *Manual) AfterFunc(d time.Duration, fn func()) func() {
	m.seq++
	t := &manualTimer{at: m.now + d, seq: m.seq, fn: fn}
	m.timers = append(m.timers, t)
	return func() { t.cancelled = true }
}

// Advance moves the clock forward by d, firing due timers in order.
// Timers scheduled while firing are honored if they fall within d.
func (m *Manual) Advance(d time.Duration) {
	end := m.now + d
	for {
		t := m.next(end)
		if t == nil {
			break
		}
		m.now = t.at
		t.fn()
	}
	m.now = end
}

// Pending returns the number of timers not yet fired or cancelled.
func (m *Manual) Pending() int {
	n := 0
	for _, t := range m.timers {
		if !t.cancelled {
			n++
		}
	}
	return n
}

func (m *Manual) next(end time.Duration) *manualTimer {
	live := m.timers[:0]
	for _, t := range m.timers {
		if !t.cancelled {
			live = append(live, t)
		}
	}
	m.timers = live
	sort.Slice(m.timers, func(i, j int) bool {
		if m.timers[i].at == m.timers[j].at {
			return m.timers[i].seq < m.timers[j].seq
		}
		return m.timers[i].at < m.timers[j].at
	})
	if len(m.timers) == 0 || m.timers[0].at > end {
		return nil
	}
	t := m.timers[0]
	m.timers = m.timers[1:]
	return t
}
