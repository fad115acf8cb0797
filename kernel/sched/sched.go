// Package sched is the scheduler: priority-based ready selection with
// FIFO tie-breaking, the active-thread/active-pid bookkeeping, and the
// context-switch-request flag shared with ISR-return paths. The ready
// structure is a bitmap of non-empty priorities plus one FIFO per
// priority, linked through kernel/thread's arena-indexed Next/Prev.
package sched

import (
	"sync/atomic"

	"github.com/RIOT-OS/RIOT-sub019/internal/config"
	"github.com/RIOT-OS/RIOT-sub019/kernel/thread"
)

// SchedRanHook is called after sched_run picks a new active thread, with
// its priority; kernel/ticker installs itself here at boot to arm or
// disarm the preemption timer.
var SchedRanHook func(priority uint8)

var (
	readyBitmap   uint32 // bit i set iff priority i has a runnable thread
	readyHead     [config.NumPriorities]thread.PID
	readyTail     [config.NumPriorities]thread.PID
	active        *thread.TCB
	activePID     thread.PID = thread.InvalidPID
	switchReqFlag int32  // sched_context_switch_request
)

func init() {
	for i := range readyHead {
		readyHead[i] = thread.InvalidPID
		readyTail[i] = thread.InvalidPID
	}
}

// Init registers this package's Enqueue/CurrentPriority/Yield into
// kernel/thread's Hooks, completing the staged handoff described in
// thread.go's package comment.
func Init(yield func()) {
	thread.RegisterHooks(thread.Hooks{
		Enqueue:         Enqueue,
		CurrentPriority: CurrentPriority,
		ActivePID:       ActivePID,
		Yield:           yield,
	})
}

// Enqueue inserts t at the tail of its priority's FIFO and marks that
// priority non-empty.
func Enqueue(t *thread.TCB) {
	p := t.Priority
	t.Next = thread.InvalidPID
	t.Prev = readyTail[p]

	if readyTail[p] != thread.InvalidPID {
		if prev := thread.Get(readyTail[p]); prev != nil {
			prev.Next = t.PID
		}
	} else {
		readyHead[p] = t.PID
	}
	readyTail[p] = t.PID
	readyBitmap |= 1 << p
}

// dequeue removes t from its priority's FIFO, clearing the bitmap bit if
// that priority is now empty.
func dequeue(t *thread.TCB) {
	p := t.Priority
	if t.Prev != thread.InvalidPID {
		if prev := thread.Get(t.Prev); prev != nil {
			prev.Next = t.Next
		}
	} else {
		readyHead[p] = t.Next
	}
	if t.Next != thread.InvalidPID {
		if next := thread.Get(t.Next); next != nil {
			next.Prev = t.Prev
		}
	} else {
		readyTail[p] = t.Prev
	}
	t.Next, t.Prev = thread.InvalidPID, thread.InvalidPID
	if readyHead[p] == thread.InvalidPID {
		readyBitmap &^= 1 << p
	}
}

// highestReadyPriority returns the lowest-numbered (highest-priority) set
// bit in the bitmap, or config.NumPriorities if nothing is ready.
func highestReadyPriority() uint8 {
	if readyBitmap == 0 {
		return config.NumPriorities
	}
	for p := uint8(0); p < config.NumPriorities; p++ {
		if readyBitmap&(1<<p) != 0 {
			return p
		}
	}
	return config.NumPriorities
}

// Run is sched_run: select the highest-priority ready TCB with
// FIFO tie-breaking, install it as active, clear the switch-request flag,
// and notify the preemption ticker. Must be called with interrupts
// disabled; returns with Active() set to the thread the caller should
// resume.
//
//go:nosplit
func Run() *thread.TCB {
	if active != nil && active.Status == thread.StatusRunning {
		// The outgoing thread is still runnable: rotate it to the tail
		// of its priority's FIFO so equal-priority peers each get a
		// turn before it runs again.
		active.Status = thread.StatusPending
		Enqueue(active)
	}

	p := highestReadyPriority()
	if p == config.NumPriorities {
		// Nothing ready; keep running whatever was active (the idle
		// thread is always ready in a correctly-booted kernel, so
		// this path is only reachable before boot finishes).
		return active
	}

	pid := readyHead[p]
	next := thread.Get(pid)
	if next == nil {
		return active
	}

	dequeue(next)
	next.Status = thread.StatusRunning

	active = next
	activePID = pid
	atomic.StoreInt32(&switchReqFlag, 0)

	if SchedRanHook != nil {
		SchedRanHook(next.Priority)
	}
	return active
}

// ActiveThread is sched_active_thread.
func ActiveThread() *thread.TCB { return active }

// ActivePID is sched_active_pid.
func ActivePID() thread.PID { return activePID }

// CurrentPriority returns the active thread's priority, or
// config.PriorityMin if called before any thread has run.
func CurrentPriority() uint8 {
	if active == nil {
		return config.PriorityMin
	}
	return active.Priority
}

// RequestContextSwitch sets the context-switch-request flag;
// called by ISR callbacks (including the preemption ticker) that want a
// reschedule on return from interrupt.
//
//go:nosplit
func RequestContextSwitch() { atomic.StoreInt32(&switchReqFlag, 1) }

// ContextSwitchRequested reads the flag without clearing it; Run() clears
// it once a new active thread is installed.
func ContextSwitchRequested() bool { return atomic.LoadInt32(&switchReqFlag) != 0 }

// TaskExit is sched_task_exit: mark t STOPPED, remove it from
// the ready structure (it will already have been dequeued if it was
// active), and hand its stack to onExit (the reaper, if the stack is
// heap-owned) before the caller performs the non-returning
// cpu_switch_context_exit.
func TaskExit(t *thread.TCB, onExit func(*thread.TCB)) {
	if t.Status == thread.StatusPending {
		dequeue(t)
	}
	t.Status = thread.StatusStopped
	if active == t {
		active = nil
		activePID = thread.InvalidPID
	}
	if onExit != nil {
		onExit(t)
	}
	thread.Exit(t)
}

// ReadyCount counts every ready-or-active thread, used by boot's
// installTaskExit to decide when the host port should exit: "if fewer
// than two meaningful threads remain ... the host port exits with
// success."
func ReadyCount() int {
	n := 0
	for p := uint8(0); p < config.NumPriorities; p++ {
		for pid := readyHead[p]; pid != thread.InvalidPID; {
			n++
			t := thread.Get(pid)
			if t == nil {
				break
			}
			pid = t.Next
		}
	}
	if active != nil {
		n++
	}
	return n
}
