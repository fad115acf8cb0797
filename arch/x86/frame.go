package x86

import (
	"unsafe"

	"github.com/RIOT-OS/RIOT-sub019/arch"
	"github.com/RIOT-OS/RIOT-sub019/arch/x86/idt"
	"github.com/RIOT-OS/RIOT-sub019/internal/config"
)

// Frame is exactly idt.InterruptedCtx's layout: the common dispatcher
// preamble saves a real thread's registers in this shape on every
// interrupt, so a brand-new thread's initial stack image only needs to
// look like one already-saved frame for the same restore path to work
// whether the thread is starting for the first time or resuming after a
// trap.
type Frame = idt.InterruptedCtx

const (
	eflagsReserved = 1 << 1 // bit 1 always reads as 1
	eflagsIF       = 1 << 9
	codeSelector   = 0x0008
)

// BuildFrame writes the stack marker at the top word of
// [stackBase, stackBase+stackSize), then the frame above directly below
// it, and returns the resulting stack pointer. entryAddr/argWord/
// taskExitAddr are synthetic addresses from arch.RegisterEntry/
// RegisterTrampoline, not real code pointers.
func BuildFrame(entryAddr, argWord, taskExitAddr uint32, stackBase unsafe.Pointer, stackSize uintptr) arch.StackPointer {
	top := uintptr(stackBase) + stackSize
	markerAddr := top - unsafe.Sizeof(config.StackMarker)
	*(*uint32)(unsafe.Pointer(markerAddr)) = config.StackMarker

	fp := markerAddr - unsafe.Sizeof(Frame{})
	f := (*Frame)(unsafe.Pointer(fp))

	*f = Frame{
		EAX:    argWord,
		EBX:    taskExitAddr, // recovered by the entry trampoline as the return target
		EIP:    entryAddr,
		CS:     codeSelector,
		EFLAGS: eflagsReserved | eflagsIF,
	}
	f.SP = uint32(fp)
	return arch.StackPointer(unsafe.Pointer(fp))
}
