//go:build x86

package boot

import (
	"unsafe"

	"github.com/RIOT-OS/RIOT-sub019/arch"
	"github.com/RIOT-OS/RIOT-sub019/arch/x86/idt"
	"github.com/RIOT-OS/RIOT-sub019/kernel/sched"
)

// interruptedCtx, currentVec, currentErrorCode and origSP are the
// Go-side counterparts of int_handler's fixed global images:
// x86_trampolines.s writes them from the common trampoline before
// calling x86CommonDispatch, the only thing allowed to touch them after.
var (
	interruptedCtx   idt.InterruptedCtx
	currentVec       int32
	currentErrorCode uint32
	// origSP is the interrupted thread's real ESP (the address of the
	// hardware-pushed EIP word), captured before the trampoline switches
	// onto the dedicated ISR stack.
	origSP uintptr
	// resolvedSP is what the trampoline `iret`s into once
	// x86CommonDispatch returns: either origSP itself (Direct) or the new
	// active thread's own frame (Yield).
	resolvedSP uintptr
)

// x86CommonDispatch is called by the common trampoline on every
// exception/IRQ/debug-yield vector, on the dedicated ISR stack. It mirrors
// int_handler(): run idt.Dispatch, and on Yield persist the outgoing
// thread's context onto its own stack before asking the scheduler for the
// next one to run.
//
// Returns 0 for Direct, 1 for Yield, read back by the trampoline from
// the return slot it reserves on the ISR stack before the call.
func x86CommonDispatch() int32 {
	action := idt.Dispatch(int(currentVec), &interruptedCtx, currentErrorCode)
	if action.Kind == idt.Direct {
		resolvedSP = origSP
		return 0
	}

	persistOutgoingContext()
	resolvedSP = uintptr(unsafe.Pointer(sched.Run().SP))
	return 1
}

// persistOutgoingContext copies interruptedCtx onto the outgoing thread's
// own stack, 32 bytes below its interrupted EIP (room for the 7 saved
// GPRs plus the SP bookkeeping word; EIP/CS/EFLAGS are left exactly where
// the hardware already put them, at origSP itself), and points its TCB at
// the result. Afterward the outgoing thread's saved frame has the
// identical shape BuildFrame gives a brand-new thread, so
// board_restore_and_enter's single restore path handles both.
func persistOutgoingContext() {
	out := sched.ActiveThread()
	if out == nil {
		return
	}
	dest := (*idt.InterruptedCtx)(unsafe.Pointer(origSP - 32))
	*dest = interruptedCtx
	dest.SP = uint32(origSP - 32)
	out.SP = arch.StackPointer(unsafe.Pointer(dest))
}
