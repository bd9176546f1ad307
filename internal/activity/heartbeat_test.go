package activity

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestHeartbeatMonitorLiveness(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	monitor := NewHeartbeatMonitorWithClock(clock.Now)

	if monitor.IsAlive("missing", time.Hour) {
		t.Fatal("unknown invocation must not be alive")
	}

	monitor.Record("inv-1", "starting 1/50")
	clock.Advance(30 * time.Second)
	if !monitor.IsAlive("inv-1", 30*time.Second) {
		t.Fatal("heartbeat exactly at the timeout should still be alive")
	}
	clock.Advance(time.Second)
	if monitor.IsAlive("inv-1", 30*time.Second) {
		t.Fatal("heartbeat older than timeout must be stale")
	}

	monitor.Record("inv-1", "completed 1/50")
	if !monitor.IsAlive("inv-1", 30*time.Second) {
		t.Fatal("fresh heartbeat should revive the invocation")
	}
	beat, ok := monitor.Last("inv-1")
	if !ok || beat.Message != "completed 1/50" || !beat.At.Equal(clock.Now()) {
		t.Fatalf("unexpected last beat: %+v %v", beat, ok)
	}

	monitor.Forget("inv-1")
	if _, ok := monitor.Last("inv-1"); ok {
		t.Fatal("expected heartbeat to be forgotten")
	}
	if monitor.Len() != 0 {
		t.Fatalf("expected empty monitor, got %d", monitor.Len())
	}
}

func TestHeartbeatMonitorIgnoresBlankID(t *testing.T) {
	monitor := NewHeartbeatMonitor()
	monitor.Record("", "noise")
	if monitor.Len() != 0 {
		t.Fatal("blank invocation ids must not be tracked")
	}
}

func TestAttemptHeartbeatAfterCloseIsIgnored(t *testing.T) {
	monitor := NewHeartbeatMonitor()
	attempt := &Attempt{InvocationID: "inv-2", Activity: "process", Number: 1, monitor: monitor}
	attempt.Heartbeat("working")
	if !monitor.IsAlive("inv-2", time.Minute) {
		t.Fatal("expected heartbeat to be recorded")
	}
	attempt.close()
	attempt.Heartbeat("late")
	if _, ok := monitor.Last("inv-2"); ok {
		t.Fatal("late heartbeat from a finished attempt must be ignored")
	}
}

func TestAttemptCloseRacingHeartbeatsLeavesNoEntry(t *testing.T) {
	for round := 0; round < 50; round++ {
		monitor := NewHeartbeatMonitor()
		attempt := &Attempt{InvocationID: "inv-race", Activity: "process", Number: 1, monitor: monitor}

		var wg sync.WaitGroup
		start := make(chan struct{})
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				for j := 0; j < 200; j++ {
					attempt.Heartbeat("abandoned goroutine")
				}
			}()
		}
		close(start)
		attempt.close()
		wg.Wait()

		if monitor.Len() != 0 {
			t.Fatalf("round %d: closed attempt left %d monitor entries", round, monitor.Len())
		}
	}
}

func TestWatchdogPollBounds(t *testing.T) {
	if got := watchdogPoll(time.Millisecond); got != minWatchdogPoll {
		t.Fatalf("watchdogPoll(1ms) = %s", got)
	}
	if got := watchdogPoll(2 * time.Minute); got != maxWatchdogPoll {
		t.Fatalf("watchdogPoll(2m) = %s", got)
	}
	if got := watchdogPoll(100 * time.Millisecond); got != 25*time.Millisecond {
		t.Fatalf("watchdogPoll(100ms) = %s", got)
	}
}
