// Package native is the host-hosted coroutine backend, used to develop
// and test the scheduler core without real hardware. Threads are parked
// goroutines handing a single-owner resume token around on unbuffered
// channels.
//
// Every yield routes through the one ISR coroutine, isrCoro: it alone
// calls sched.Run, then resumes whichever thread coroutine was selected.
package native

import (
	"unsafe"

	"github.com/RIOT-OS/RIOT-sub019/arch"
	"github.com/RIOT-OS/RIOT-sub019/internal/config"
	"github.com/RIOT-OS/RIOT-sub019/kernel/thread"
)

// coro is one thread's coroutine: a parked goroutine plus the single
// channel used to hand it the resume token.
type coro struct {
	resume chan struct{}
	pid    thread.PID
}

var (
	coros   = map[thread.PID]*coro{}
	isrCoro = &coro{resume: make(chan struct{})}
)

// Port implements arch.Port for the host.
type Port struct{}

var (
	_ arch.Port      = (*Port)(nil)
	_ arch.PIDBinder = (*Port)(nil)
)

var taskExitAddr uint32

// SetTaskExit installs the function every thread transfers to on return
// from its entry point.
func SetTaskExit(fn func()) { taskExitAddr = arch.RegisterTrampoline(fn) }

// SetTaskExit (method form) lets boot wire thread_task_exit through the
// arch.Port value it already holds, via an optional interface, rather than
// importing every arch package by name.
func (p *Port) SetTaskExit(fn func()) { SetTaskExit(fn) }

var runScheduler func() *thread.TCB

// SetScheduler installs the callback isrCoro invokes to pick the next
// thread (wired at boot to kernel/sched.Run).
func SetScheduler(fn func() *thread.TCB) { runScheduler = fn }

// StackInit spawns the goroutine that will run entry(arg) once resumed
// for the first time. No register frame is built (the goroutine has its
// own stack), but the marker at stackBase+stackSize-4 is still written,
// same as every other port.
func (p *Port) StackInit(entry arch.EntryFunc, arg unsafe.Pointer, stackBase unsafe.Pointer, stackSize uintptr) arch.StackPointer {
	if stackBase != nil && stackSize >= unsafe.Sizeof(config.StackMarker) {
		markerAddr := uintptr(stackBase) + stackSize - unsafe.Sizeof(config.StackMarker)
		*(*uint32)(unsafe.Pointer(markerAddr)) = config.StackMarker
	}
	c := &coro{resume: make(chan struct{})}
	go func() {
		<-c.resume // wait for first resume before running at all
		entry(arg)
		if fn := arch.ResolveTrampoline(taskExitAddr); fn != nil {
			fn() // transfers to sched_task_exit; never returns
		}
	}()
	// The PID is not known yet; BindPID keys the coros map once
	// kernel/thread.Create has assigned one.
	return arch.StackPointer(unsafe.Pointer(c))
}

// BindPID associates a coroutine (identified by the StackPointer
// StackInit returned) with its now-assigned PID, so isrCoro can look it up
// by PID when sched.Run selects it. kernel/thread.Create calls this right
// after StackInit, through the arch.PIDBinder optional interface.
func (p *Port) BindPID(sp arch.StackPointer, pid thread.PID) {
	c := (*coro)(unsafe.Pointer(sp))
	c.pid = pid
	coros[pid] = c
}

// StartThreading hands control to isrCoro for the very first time, which
// calls sched.Run and resumes the highest-priority ready thread, the host
// equivalent of setcontext into the selected coroutine.
func (p *Port) StartThreading() {
	go isrLoop()
	isrCoro.resume <- struct{}{}
	<-blockForever // StartThreading itself never returns
}

var blockForever = make(chan struct{})

// isrLoop is the body of the dedicated ISR coroutine. It never runs
// concurrently with a thread coroutine: every handoff is a synchronous,
// unbuffered channel send/receive pair, so exactly one goroutine is ever
// doing meaningful work at a time.
func isrLoop() {
	for range isrCoro.resume {
		arch.SetInISR(true)
		next := runScheduler()
		arch.SetInISR(false)
		if next == nil {
			continue
		}
		c, ok := coros[next.PID]
		if !ok {
			continue
		}
		c.resume <- struct{}{}
	}
}

// Yield hands control to isrCoro and blocks until this coroutine is
// resumed again (route yield through the ISR coroutine on the
// host).
func (p *Port) Yield() {
	pid := currentPID()
	isrCoro.resume <- struct{}{}
	<-coros[pid].resume
}

// SwitchContextExit is cpu_switch_context_exit: hand off to isrCoro the
// same way Yield does, but never wait for a resume. The caller has just
// exited, so returning lets its goroutine fall off the end and die.
func (p *Port) SwitchContextExit() {
	isrCoro.resume <- struct{}{}
}

// currentPID is set by boot's scheduler wiring; native has no hardware
// "current CPU" register, so it asks kernel/sched directly.
var currentPID func() thread.PID

// SetCurrentPID installs the accessor Yield uses to find its own
// coroutine.
func SetCurrentPID(fn func() thread.PID) { currentPID = fn }

// DisableIRQ/EnableIRQ/RestoreIRQ model the interrupt mask as one bool:
// correctness is carried by the isrCoro handoff (only one coroutine ever
// runs), the flag just keeps disable/restore nesting semantics sane.
var irqEnabled = true

func (p *Port) DisableIRQ() bool {
	prev := irqEnabled
	irqEnabled = false
	return prev
}

func (p *Port) EnableIRQ() { irqEnabled = true }

func (p *Port) RestoreIRQ(prev bool) { irqEnabled = prev }

// Halt exits the host process, nonzero: it is reserved for the
// unrecoverable-fault path (normal exit(0) happens via ExitIfDepleted).
func (p *Port) Halt() { haltFn(1) }

// ExitIfDepleted implements boot's depletionExiter: boot calls this after
// every sched_task_exit with the number of ready-or-active threads other
// than the reaper. Once only idle is left (readyCount < 2), there is
// nothing left worth running and the host process exits with success.
func (p *Port) ExitIfDepleted(readyCount int) {
	if readyCount < 2 {
		haltFn(0)
	}
}

// Reboot re-execs is not meaningful for a hosted test binary; it halts
// instead, matching how arch/native stands in for hardware it cannot
// actually reset.
func (p *Port) Reboot() { haltFn(0) }

// haltFn is a package variable instead of a direct os.Exit call so tests
// can intercept it without actually terminating the test binary.
var haltFn = func(code int) {}

// SetHaltFn installs the function Halt/Reboot invoke, defaulting to a
// no-op so package tests never terminate the test binary. cmd/host wires
// this to os.Exit for a real standalone run.
func SetHaltFn(fn func(code int)) { haltFn = fn }
