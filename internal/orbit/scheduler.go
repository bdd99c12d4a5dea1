package orbit

import (
	"sync"
	"time"
)

// Scheduler drives the animation tick loop. Start and Stop are paired one
// to one with the view expanding and collapsing.
type Scheduler interface {
	Start(tick func())
	Stop()
	Running() bool
}

// TickerScheduler calls tick at a fixed interval from its own goroutine.
// tick must not block; the engine's tick hands off to its loop without
// waiting.
type TickerScheduler struct {
	interval time.Duration

	mu     sync.Mutex
	stopCh chan struct{}
	done   chan struct{}
}

// NewTickerScheduler returns a scheduler ticking every interval (≈60 Hz when
// interval is 16ms).
func NewTickerScheduler(interval time.Duration) *TickerScheduler {
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	return &TickerScheduler{interval: interval}
}

// Start launches the tick goroutine. Calling Start while running is a no-op.
func (s *TickerScheduler) Start(tick func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		return
	}
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})

	go func(stop <-chan struct{}, done chan<- struct{}) {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				tick()
			case <-stop:
				return
			}
		}
	}(s.stopCh, s.done)
}

// Stop cancels the tick goroutine and waits for it to exit, so no tick is
// delivered after Stop returns.
func (s *TickerScheduler) Stop() {
	s.mu.Lock()
	stop, done := s.stopCh, s.done
	s.stopCh, s.done = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Running reports whether the tick goroutine is active.
func (s *TickerScheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopCh != nil
}

// ManualScheduler only ticks when Fire is called. Tests use it to step the
// orbit loop deterministically.
type ManualScheduler struct {
	mu     sync.Mutex
	tick   func()
	starts int
	stops  int
}

func (m *ManualScheduler) Start(tick func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tick != nil {
		return
	}
	m.tick = tick
	m.starts++
}

func (m *ManualScheduler) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tick == nil {
		return
	}
	m.tick = nil
	m.stops++
}

func (m *ManualScheduler) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tick != nil
}

// Fire delivers one tick if running. Returns whether a tick was delivered.
func (m *ManualScheduler) Fire() bool {
	m.mu.Lock()
	tick := m.tick
	m.mu.Unlock()
	if tick == nil {
		return false
	}
	tick()
	return true
}

// Counts returns how many times Start and Stop took effect.
func (m *ManualScheduler) Counts() (starts, stops int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts, m.stops
}
