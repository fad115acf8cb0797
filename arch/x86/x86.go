// Package x86 is the 32-bit protected-mode arch port: IDT/PIC bring-up
// lives in the idt and pic subpackages, PAE paging and the demand heap in
// mm; this package only supplies the Port contract (frame construction,
// thread start/yield, and the IRQ/halt/reboot primitives).
//
// Unlike Cortex-M's dedicated PendSV exception, a voluntary yield here
// goes through the same common interrupt trampoline every hardware IRQ
// and CPU exception uses: int_handler (idt.Dispatch) already knows how to
// turn "the interrupted thread isn't the one that should keep running"
// into a context switch, so Yield just needs to get there. It does that
// with `int $0x01` (the debug exception vector, otherwise unused once
// single-step debugging is off), dispatched through the exact same path
// as every other trap.
package x86

import (
	"unsafe"

	"github.com/RIOT-OS/RIOT-sub019/arch"
	"github.com/RIOT-OS/RIOT-sub019/arch/x86/idt"
)

const vectorYield = 0x01

// Port implements arch.Port for 32-bit x86.
type Port struct{}

var _ arch.Port = (*Port)(nil)

var taskExitAddr uint32

// SetTaskExit installs the synthetic return address every new thread's
// frame resolves to (see arch.RegisterTrampoline).
func SetTaskExit(fn func()) { taskExitAddr = arch.RegisterTrampoline(fn) }

// SetTaskExit (method form) lets boot wire thread_task_exit through the
// arch.Port value it already holds, via an optional interface, rather than
// importing every arch package by name.
func (p *Port) SetTaskExit(fn func()) { SetTaskExit(fn) }

func (p *Port) StackInit(entry arch.EntryFunc, arg unsafe.Pointer, stackBase unsafe.Pointer, stackSize uintptr) arch.StackPointer {
	entryAddr := arch.RegisterEntry(entry)
	return BuildFrame(entryAddr, uint32(uintptr(arg)), taskExitAddr, stackBase, stackSize)
}

var runScheduler func() arch.StackPointer

// SetScheduler installs the callback the yield/start trampolines invoke
// after the dispatcher decides a switch is needed.
func SetScheduler(fn func() arch.StackPointer) { runScheduler = fn }

func init() {
	idt.SetHandler(vectorYield, yieldHandler)
}

// yieldHandler is the vector 0x01 handler: it always requests a switch, so
// idt.Dispatch's ResumeAction for this vector is always Yield unless
// interrupts were off when the yield was issued (in which case dispatch
// correctly falls back to Direct, the same rule every other vector gets).
func yieldHandler(vec int, ctx *idt.InterruptedCtx, errorCode uint32) {
	requestSwitch()
}

var requestSwitch = func() {}

// SetSwitchRequester installs the callback yieldHandler uses to mark a
// reschedule pending (wired at boot to sched.RequestContextSwitch).
func SetSwitchRequester(fn func()) { requestSwitch = fn }

//go:linkname x86_int1 x86_int1
//go:nosplit
func x86_int1()

// Yield issues `int $0x01`, routing through the common dispatcher the
// same way any hardware interrupt would.
//
//go:nosplit
func (p *Port) Yield() { x86_int1() }

//go:linkname x86_switch_context_exit x86_switch_context_exit
//go:nosplit
func x86_switch_context_exit()

// SwitchContextExit is cpu_switch_context_exit: the exiting thread is
// never resumed, so this reuses the same "ask the scheduler, restore its
// answer" path StartThreading uses for first entry rather than routing
// through `int $0x01` and a real interrupt return.
//
//go:nosplit
func (p *Port) SwitchContextExit() { x86_switch_context_exit() }

//go:linkname x86_start_threading x86_start_threading
//go:nosplit
func x86_start_threading()

// StartThreading asks the scheduler for the first thread to run and
// jumps into its frame via `iret`, the same restore path every interrupt
// return uses.
func (p *Port) StartThreading() { x86_start_threading() }

//go:linkname x86_cli x86_cli
//go:nosplit
func x86_cli() uint32

//go:linkname x86_sti x86_sti
//go:nosplit
func x86_sti()

//go:linkname x86_restore_flags x86_restore_flags
//go:nosplit
func x86_restore_flags(flags uint32)

//go:linkname x86_hlt_loop x86_hlt_loop
//go:nosplit
func x86_hlt_loop()

//go:linkname x86_reboot x86_reboot
//go:nosplit
func x86_reboot()

//go:nosplit
func (p *Port) DisableIRQ() bool { return x86_cli()&eflagsIF != 0 }

//go:nosplit
func (p *Port) EnableIRQ() { x86_sti() }

//go:nosplit
func (p *Port) RestoreIRQ(prev bool) {
	var f uint32
	if prev {
		f = eflagsIF
	}
	x86_restore_flags(f)
}

func (p *Port) Halt()   { x86_hlt_loop() }
func (p *Port) Reboot() { x86_reboot() }

// dispatchX86 is called by x86_start_threading and x86_switch_context_exit
// in x86.s. It asks the scheduler for the next thread and hands back its
// stack pointer for board_restore_and_enter to `iret` into. Interrupt
// returns with a Yield result do not come through here: the board's
// common trampoline calls sched.Run itself (boot/x86_interrupts.go).
//
//go:nosplit
func dispatchX86() uintptr {
	return uintptr(unsafe.Pointer(runScheduler()))
}
