// Package arch defines the architecture-port contract: the seam between
// the arch-neutral scheduler/thread layers and per-CPU register
// save/restore. Every supported target (arch/cortexm, arch/arm7,
// arch/x86, arch/msp430, arch/native) implements Port behind its own
// build tag while sharing one Go-level call surface.
package arch

import "unsafe"

// StackPointer is an opaque pointer into a thread's stack, always pointing
// at the topmost saved register frame while the thread is suspended.
type StackPointer unsafe.Pointer

// PID is a stable thread identifier assigned at creation. It
// lives in this package, rather than kernel/thread where it conceptually
// belongs, purely to break an import cycle: kernel/thread needs arch.Port,
// and arch/native's optional PIDBinder (below) needs to talk about PIDs
// without arch importing kernel/thread back. kernel/thread.PID is a type
// alias for this type, so callers never see the indirection.
type PID int32

// InvalidPID is the zero value of a not-yet-assigned or already-freed PID.
const InvalidPID PID = -1

// PIDBinder is implemented by ports that need to learn a thread's PID
// after StackInit has run (arch/native indexes its coroutines by PID).
// Hardware ports need only the stack pointer, so this is an optional
// interface kernel/thread.Create type-asserts for.
type PIDBinder interface {
	BindPID(sp StackPointer, pid PID)
}

// EntryFunc is a thread's entry point: it runs with interrupts enabled and,
// on return, must transfer control to sched_task_exit.
type EntryFunc func(arg unsafe.Pointer)

// Port is the per-architecture contract every board wires into the
// scheduler and thread packages at boot.
type Port interface {
	// StackInit constructs the canonical initial frame at the top of
	// [stackBase, stackBase+stackSize) and returns the resulting stack
	// pointer.
	StackInit(entry EntryFunc, arg unsafe.Pointer, stackBase unsafe.Pointer, stackSize uintptr) StackPointer

	// StartThreading enables interrupts and synthesizes entry into the
	// highest-priority ready thread. Never returns.
	StartThreading()

	// Yield requests a context switch from thread context.
	Yield()

	// SwitchContextExit is cpu_switch_context_exit: called with
	// interrupts disabled from a thread that is exiting and can never
	// resume. It performs sched_run() and jumps into the resulting
	// TCB's context without saving the caller's.
	SwitchContextExit()

	// DisableIRQ flatly disables interrupts and returns the previous
	// enabled/disabled state so it can be handed to RestoreIRQ.
	DisableIRQ() (prevState bool)

	// EnableIRQ flatly enables interrupts.
	EnableIRQ()

	// RestoreIRQ restores a previously saved IRQ state (// irq_restore).
	RestoreIRQ(prevState bool)

	// Halt stops the CPU, used on the unrecoverable-fault path.
	Halt()

	// Reboot resets the board.
	Reboot()
}

// IRQIsIn reports whether the caller is currently executing in interrupt
// context (irq_is_in). It is not part of the Port interface: x86's
// idt.Dispatch sets it around every dispatched interrupt, and
// arch/native's ISR coroutine sets it around its scheduler call. The
// Cortex-M, ARM7 and MSP430 ports never set it, so IRQIsIn reports false
// on them.
var inISR bool

// SetInISR is called by idt.Dispatch and by arch/native's isrLoop.
func SetInISR(v bool) { inISR = v }

// IRQIsIn reports the current value set by SetInISR.
func IRQIsIn() bool { return inISR }

// entryTable backs RegisterEntry/ResolveEntry: a hosted Go build has no
// portable way to turn a func value into a raw code address, so arch
// ports resolve PC/LR-sized frame fields through this small synthetic
// dispatch table instead.
var (
	entryTable []EntryFunc
	trampTable []func()
)

// RegisterEntry records fn and returns a synthetic "address" a stack-frame
// builder can store in a PC-sized field; ResolveEntry recovers fn from
// that value later, when the arch port's restore path "jumps" to it.
func RegisterEntry(fn EntryFunc) uint32 {
	entryTable = append(entryTable, fn)
	return uint32(len(entryTable)) // 0 is reserved as "unset"
}

func ResolveEntry(addr uint32) EntryFunc {
	if addr == 0 || int(addr) > len(entryTable) {
		return nil
	}
	return entryTable[addr-1]
}

// RegisterTrampoline is RegisterEntry's counterpart for zero-argument
// trampolines such as sched_task_exit, which every initial frame's LR
// field must resolve to on return.
func RegisterTrampoline(fn func()) uint32 {
	trampTable = append(trampTable, fn)
	return uint32(len(trampTable))
}

func ResolveTrampoline(addr uint32) func() {
	if addr == 0 || int(addr) > len(trampTable) {
		return nil
	}
	return trampTable[addr-1]
}
