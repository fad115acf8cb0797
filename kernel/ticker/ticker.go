// Package ticker is the preemption ticker: a periodic tick that forces a
// reschedule of non-idle threads at a fixed rate, using a timer subsystem
// outside the kernel proper (Vtimer below).
//
// At most one vtimer registration is outstanding at any time; the
// registration toggles only when "a non-idle thread is running" changes
// truth value, so an idle board never takes tick interrupts at all.
package ticker

import (
	"time"

	"github.com/RIOT-OS/RIOT-sub019/internal/config"
	"github.com/RIOT-OS/RIOT-sub019/kernel/sched"
)

// Vtimer is the external timer subsystem's contract: schedule a one-shot
// callback after d, and cancel a pending one. A real board implements this
// over its hardware timer/RTC; arch/native implements it over time.Timer
// (see native.go).
type Vtimer interface {
	Set(d time.Duration, callback func())
	Cancel()
}

var (
	vt            Vtimer
	hz            = config.MultitaskingHz
	tickerActive  bool // whether SetActive(true) has been called
	isNotIdle     bool
	isSet         bool
	idlePriority  uint8 = config.PriorityIdle
	hwtimerThread func(priority uint8) bool // true if priority belongs to the hwtimer thread (x86-only special case)
)

// Init wires the ticker into the scheduler's SchedRanHook. notHwtimer may
// be nil on boards without a distinguished hwtimer thread.
func Init(v Vtimer, notHwtimer func(priority uint8) bool) {
	vt = v
	hwtimerThread = notHwtimer
	sched.SchedRanHook = schedRan
	recompute()
}

// SetActive is the ticker's active(bool) entry point.
func SetActive(on bool) {
	tickerActive = on
	recompute()
}

// schedRan is sched_ran: called by sched.Run after installing a new active
// thread. Sets is_not_idle iff the new thread's priority differs from
// PRIORITY_IDLE and is also not the hwtimer thread.
func schedRan(priority uint8) {
	notIdle := priority != idlePriority
	if notIdle && hwtimerThread != nil && hwtimerThread(priority) {
		notIdle = false
	}
	isNotIdle = notIdle
	recompute()
}

// recompute toggles the vtimer registration whenever active && is_not_idle
// differs from the current is_set.
func recompute() {
	want := tickerActive && isNotIdle
	if want == isSet {
		return
	}
	isSet = want
	if want {
		arm()
	} else {
		vt.Cancel()
	}
}

func arm() {
	period := time.Duration(1e6/hz) * time.Microsecond
	vt.Set(period, fire)
}

// fire is the vtimer callback: request a reschedule and re-arm. It runs
// in interrupt/callback context, so it only flips a flag and never
// blocks.
func fire() {
	sched.RequestContextSwitch()
	if isSet { // still wanted; a racing SetActive(false) may have cleared it
		arm()
	}
}
