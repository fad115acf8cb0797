package ticker

import (
	"testing"
	"time"

	"github.com/RIOT-OS/RIOT-sub019/internal/config"
	"github.com/RIOT-OS/RIOT-sub019/kernel/sched"
)

// fakeVtimer records Set/Cancel calls instead of arming a real timer.
type fakeVtimer struct {
	setCount    int
	cancelCount int
	lastPeriod  time.Duration
	callback    func()
}

func (v *fakeVtimer) Set(d time.Duration, callback func()) {
	v.setCount++
	v.lastPeriod = d
	v.callback = callback
}

func (v *fakeVtimer) Cancel() { v.cancelCount++ }

// reset drives the package back to "nothing armed, idle running" before
// each test, since vt/tickerActive/isNotIdle/isSet are package-level state
// shared across every test in this binary.
func reset(t *testing.T, notHwtimer func(uint8) bool) *fakeVtimer {
	t.Helper()
	v := &fakeVtimer{}
	SetActive(false)
	schedRan(config.PriorityIdle)
	Init(v, notHwtimer)
	return v
}

func TestRecomputeDoesNotArmWhileInactive(t *testing.T) {
	v := reset(t, nil)
	schedRan(3) // a non-idle thread ran, but SetActive(true) was never called
	if v.setCount != 0 {
		t.Fatalf("Set called %d times, want 0 (ticker inactive)", v.setCount)
	}
}

func TestRecomputeDoesNotArmWhileOnlyIdleRan(t *testing.T) {
	v := reset(t, nil)
	SetActive(true)
	if v.setCount != 0 {
		t.Fatalf("Set called %d times, want 0 (idle is the only ready thread)", v.setCount)
	}
}

func TestSchedRanArmsForNonIdleThread(t *testing.T) {
	v := reset(t, nil)
	SetActive(true)
	schedRan(config.PriorityIdle - 1)
	if v.setCount != 1 {
		t.Fatalf("Set called %d times, want 1", v.setCount)
	}
	hz := config.MultitaskingHz
	wantPeriod := time.Duration(1e6/hz) * time.Microsecond
	if v.lastPeriod != wantPeriod {
		t.Fatalf("armed period = %v, want %v", v.lastPeriod, wantPeriod)
	}
}

func TestSchedRanToIdleCancels(t *testing.T) {
	v := reset(t, nil)
	SetActive(true)
	schedRan(config.PriorityIdle - 1)
	if v.setCount != 1 {
		t.Fatalf("Set called %d times, want 1", v.setCount)
	}
	schedRan(config.PriorityIdle)
	if v.cancelCount != 1 {
		t.Fatalf("Cancel called %d times, want 1 once idle resumes", v.cancelCount)
	}
}

func TestHwtimerThreadIsTreatedAsIdle(t *testing.T) {
	v := reset(t, func(priority uint8) bool { return priority == 7 })
	SetActive(true)
	schedRan(7)
	if v.setCount != 0 {
		t.Fatalf("Set called %d times, want 0 (priority 7 is the hwtimer thread)", v.setCount)
	}
}

func TestFireRequestsContextSwitchAndRearms(t *testing.T) {
	v := reset(t, nil)
	SetActive(true)
	schedRan(config.PriorityIdle - 1)
	if v.setCount != 1 {
		t.Fatalf("Set called %d times, want 1", v.setCount)
	}

	fire()
	if !sched.ContextSwitchRequested() {
		t.Fatal("fire() should request a context switch")
	}
	if v.setCount != 2 {
		t.Fatalf("Set called %d times after fire(), want 2 (re-armed)", v.setCount)
	}
}

func TestSetActiveFalseCancelsArmedTimer(t *testing.T) {
	v := reset(t, nil)
	SetActive(true)
	schedRan(config.PriorityIdle - 1)
	if v.setCount != 1 {
		t.Fatalf("Set called %d times, want 1", v.setCount)
	}
	SetActive(false)
	if v.cancelCount != 1 {
		t.Fatalf("Cancel called %d times, want 1", v.cancelCount)
	}
}
