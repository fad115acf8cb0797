package arm7

import (
	"unsafe"

	"github.com/RIOT-OS/RIOT-sub019/arch"
)

// Board distinguishes the two supported ARM7/9 targets. Both share this
// port; only interrupt-controller wiring in their respective board/
// packages differs.
type Board int

const (
	Zynq Board = iota
	AM3359
)

// Port implements arch.Port for ARM7/9.
type Port struct {
	Board Board
}

var _ arch.Port = (*Port)(nil)

var taskExitAddr uint32

// SetTaskExit installs the synthetic LR value every new thread's frame
// resolves to (see arch.RegisterTrampoline).
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

// SetScheduler installs the callback arm7's inline "save/run/restore"
// yield sequence invokes between save and restore.
func SetScheduler(fn func() arch.StackPointer) { runScheduler = fn }

//go:linkname arm7_enter_thread_mode arm7_enter_thread_mode
//go:nosplit
func arm7_enter_thread_mode()

// StartThreading jumps to an explicit "enter thread mode" sequence that
// loads the highest-priority ready thread's frame and branches
// into it with interrupts enabled.
func (p *Port) StartThreading() { arm7_enter_thread_mode() }

//go:linkname arm7_inline_yield arm7_inline_yield
//go:nosplit
func arm7_inline_yield()

// Yield performs an inline save/run/restore ("on ARM7/9,
// perform an inline save/run/restore"), rather than routing through a
// dedicated exception the way Cortex-M's PendSV does.
//
//go:nosplit
func (p *Port) Yield() { arm7_inline_yield() }

//go:linkname arm7_switch_context_exit arm7_switch_context_exit
//go:nosplit
func arm7_switch_context_exit()

// SwitchContextExit is cpu_switch_context_exit: run the scheduler and
// restore the resulting frame without saving anything for the exiting
// caller, the same inline run/restore half arm7_inline_yield uses minus
// its leading save.
//
//go:nosplit
func (p *Port) SwitchContextExit() { arm7_switch_context_exit() }

//go:linkname arm7_disable_irq arm7_disable_irq
//go:nosplit
func arm7_disable_irq() uint32

//go:linkname arm7_restore_irq arm7_restore_irq
//go:nosplit
func arm7_restore_irq(state uint32)

//go:linkname arm7_enable_irq arm7_enable_irq
//go:nosplit
func arm7_enable_irq()

//go:linkname arm7_halt arm7_halt
//go:nosplit
func arm7_halt()

//go:linkname arm7_reboot arm7_reboot
//go:nosplit
func arm7_reboot()

// cpsrIRQDisable is the CPSR I bit; arm7_disable_irq returns the whole
// CPSR as it was before masking.
const cpsrIRQDisable uint32 = 1 << 7

//go:nosplit
func (p *Port) DisableIRQ() bool { return arm7_disable_irq()&cpsrIRQDisable == 0 }

//go:nosplit
func (p *Port) EnableIRQ() { arm7_enable_irq() }

//go:nosplit
func (p *Port) RestoreIRQ(prev bool) {
	if prev {
		arm7_enable_irq()
	} else {
		arm7_disable_irq()
	}
}

func (p *Port) Halt()   { arm7_halt() }
func (p *Port) Reboot() { arm7_reboot() }

//go:nosplit
func dispatchARM7() uintptr {
	return uintptr(unsafe.Pointer(runScheduler()))
}
