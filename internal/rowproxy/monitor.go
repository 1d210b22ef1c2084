package rowproxy

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Pinger reports whether a store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Status is the last observed store health.
type Status struct {
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// DefaultPingTimeout bounds a single health ping.
const DefaultPingTimeout = 5 * time.Second

// Monitor tracks store connectivity. A result is reused for interval and
// re-evaluated after, so a store that comes back is picked up without a
// restart. Only one ping runs at a time; callers arriving meanwhile get the
// previous result.
type Monitor struct {
	pinger   Pinger
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time

	mu       sync.Mutex
	checked  time.Time
	lastErr  error
	inflight chan struct{}
}

// NewMonitor creates a monitor. A zero interval pings on every Check.
func NewMonitor(pinger Pinger, interval time.Duration) *Monitor {
	return &Monitor{pinger: pinger, interval: interval, timeout: DefaultPingTimeout, now: time.Now}
}

// Check returns nil when the store is reachable and an error wrapping
// ErrUnavailable otherwise. The ping ignores ctx cancellation and runs under
// its own timeout, so a caller that goes away never poisons the cached result.
func (m *Monitor) Check(ctx context.Context) error {
	m.mu.Lock()
	fresh := !m.checked.IsZero() && m.now().Sub(m.checked) < m.interval
	if fresh || (m.inflight != nil && !m.checked.IsZero()) {
		err := m.lastErr
		m.mu.Unlock()
		return err
	}
	if done := m.inflight; done != nil {
		m.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.lastErr
	}
	done := make(chan struct{})
	m.inflight = done
	m.mu.Unlock()

	pingCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
	err := m.pinger.Ping(pingCtx)
	cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.checked = m.now()
	if err != nil {
		m.lastErr = fmt.Errorf("%w: %w", ErrUnavailable, err)
	} else {
		m.lastErr = nil
	}
	m.inflight = nil
	close(done)
	return m.lastErr
}

// Status returns the last result without pinging.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Status{Healthy: m.lastErr == nil && !m.checked.IsZero(), CheckedAt: m.checked}
	if m.lastErr != nil {
		s.Error = m.lastErr.Error()
	}
	return s
}
