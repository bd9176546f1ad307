package activity

import (
	"sync"
	"time"
)

// Beat is the latest heartbeat recorded for an invocation.
type Beat struct {
	At      time.Time
	Message string
}

// HeartbeatMonitor tracks the most recent heartbeat per invocation id. Only
// the timestamp drives liveness; the message is for progress reporting.
type HeartbeatMonitor struct {
	mu    sync.Mutex
	beats map[string]Beat
	now   func() time.Time
}

// NewHeartbeatMonitor constructs a monitor backed by the wall clock.
func NewHeartbeatMonitor() *HeartbeatMonitor {
	return &HeartbeatMonitor{beats: make(map[string]Beat), now: time.Now}
}

// NewHeartbeatMonitorWithClock constructs a monitor using the supplied clock.
func NewHeartbeatMonitorWithClock(now func() time.Time) *HeartbeatMonitor {
	if now == nil {
		now = time.Now
	}
	return &HeartbeatMonitor{beats: make(map[string]Beat), now: now}
}

// Record stores a heartbeat for invocationID at the current time.
func (m *HeartbeatMonitor) Record(invocationID, message string) {
	if invocationID == "" {
		return
	}
	m.mu.Lock()
	m.beats[invocationID] = Beat{At: m.now(), Message: message}
	m.mu.Unlock()
}

// IsAlive reports whether invocationID heartbeated within timeout. Unknown
// invocations are not alive.
func (m *HeartbeatMonitor) IsAlive(invocationID string, timeout time.Duration) bool {
	m.mu.Lock()
	beat, ok := m.beats[invocationID]
	now := m.now()
	m.mu.Unlock()
	if !ok {
		return false
	}
	return now.Sub(beat.At) <= timeout
}

// Last returns the most recent heartbeat for invocationID.
func (m *HeartbeatMonitor) Last(invocationID string) (Beat, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	beat, ok := m.beats[invocationID]
	return beat, ok
}

// Forget drops invocationID once its attempt has finished.
func (m *HeartbeatMonitor) Forget(invocationID string) {
	m.mu.Lock()
	delete(m.beats, invocationID)
	m.mu.Unlock()
}

// Len reports how many invocations are currently tracked.
func (m *HeartbeatMonitor) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.beats)
}
