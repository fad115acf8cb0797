// Package cortexm is the Cortex-M0/M3/M4 arch port.
//
// Context save/restore is sandwiched around sched.Run inside the PendSV and
// SVC handlers: PendSV services voluntary/ticker-driven switches, SVC #1
// services the very first entry into threading where there is no caller
// context to save. The hardware automatically stacks {R0-R3, R12, LR, PC,
// xPSR} on exception entry; the software path here only ever touches the
// remaining {R4-R11, EXC_RETURN} it pushed itself, then exits with `bx` on
// the stored EXC_RETURN so the hardware pops the automatic frame.
//
// Register access (PRIMASK, the PendSV pend bit in ICSR) goes through
// go:linkname'd assembly leaves: these are single-instruction MSR/MRS
// operations Go cannot express, so cortexm_arm.s supplies them.
package cortexm

import (
	"unsafe"

	"github.com/RIOT-OS/RIOT-sub019/arch"
)

// Variant distinguishes M0 (whose save/restore assembly open-codes single
// MOVs for R8-R11, since LDMIA/STMDB cannot address them) from M3/M4.
type Variant int

const (
	M0 Variant = iota
	M3M4
)

// Port implements arch.Port for a given Cortex-M variant.
type Port struct {
	Variant Variant
}

var _ arch.Port = (*Port)(nil)

// taskExitAddr is registered once by kernel/sched's wiring in boot, via
// arch.RegisterTrampoline(sched.TaskExit-invoking closure); every initial
// frame's LR field resolves to it.
var taskExitAddr uint32

// SetTaskExit installs the synthetic address every new thread's LR is
// initialized to. Called once during boot, after kernel/sched is wired up.
func SetTaskExit(fn func()) {
	taskExitAddr = arch.RegisterTrampoline(fn)
}

// SetTaskExit (method form) lets boot wire thread_task_exit through the
// arch.Port value it already holds, via an optional interface, rather than
// importing every arch package by name.
func (p *Port) SetTaskExit(fn func()) { SetTaskExit(fn) }

// StackInit constructs the frame described in frame.go and returns the SP.
func (p *Port) StackInit(entry arch.EntryFunc, arg unsafe.Pointer, stackBase unsafe.Pointer, stackSize uintptr) arch.StackPointer {
	entryAddr := arch.RegisterEntry(entry)
	return BuildFrame(entryAddr, uint32(uintptr(arg)), taskExitAddr, stackBase, stackSize)
}

//go:linkname pend_svc pend_svc
//go:nosplit
func pend_svc()

//go:linkname disable_irq_primask disable_irq_primask
//go:nosplit
func disable_irq_primask() uint32

//go:linkname restore_irq_primask restore_irq_primask
//go:nosplit
func restore_irq_primask(state uint32)

//go:linkname enable_irq_primask enable_irq_primask
//go:nosplit
func enable_irq_primask()

//go:linkname cpu_halt cpu_halt
//go:nosplit
func cpu_halt()

//go:linkname cpu_reboot cpu_reboot
//go:nosplit
func cpu_reboot()

//go:linkname svc1_start_threading svc1_start_threading
//go:nosplit
func svc1_start_threading()

// StartThreading enables interrupts then issues SVC #1, which the SVC
// handler recognizes as "no context to save" and restores the
// highest-priority ready thread directly.
func (p *Port) StartThreading() { svc1_start_threading() }

// Yield pends the PendSV exception.
//
//go:nosplit
func (p *Port) Yield() { pend_svc() }

//go:linkname cpu_switch_context_exit cpu_switch_context_exit
//go:nosplit
func cpu_switch_context_exit()

// SwitchContextExit is cpu_switch_context_exit: reuses the SVC #1 entry
// path (no outgoing context to save, same as first-time StartThreading)
// since an exiting thread's own registers are meaningless to preserve.
//
//go:nosplit
func (p *Port) SwitchContextExit() { cpu_switch_context_exit() }

//go:nosplit
func (p *Port) DisableIRQ() bool { return disable_irq_primask() != 0 }

//go:nosplit
func (p *Port) EnableIRQ() { enable_irq_primask() }

//go:nosplit
func (p *Port) RestoreIRQ(prev bool) {
	var s uint32
	if prev {
		s = 1
	}
	restore_irq_primask(s)
}

func (p *Port) Halt()   { cpu_halt() }
func (p *Port) Reboot() { cpu_reboot() }

// dispatchPendSV and dispatchSVC are reached from the PendSV_Handler /
// SVC_Handler exception entries in boot/cortexm_arm.s; PendSV_Handler
// first pushes the software-saved half of the outgoing frame and records
// its SP. They run with interrupts already disabled per the exception
// model. runScheduler is wired at boot to sched.Run, returning the new
// active thread's saved SP.
var runScheduler func() arch.StackPointer

// SetScheduler installs the callback the PendSV/SVC trampolines invoke
// between save and restore.
func SetScheduler(fn func() arch.StackPointer) { runScheduler = fn }

//go:nosplit
func dispatchPendSV() uintptr {
	return uintptr(unsafe.Pointer(runScheduler()))
}

//go:nosplit
func dispatchSVC() uintptr {
	return uintptr(unsafe.Pointer(runScheduler()))
}
