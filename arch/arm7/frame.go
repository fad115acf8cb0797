// Package arm7 is the ARM7/9 arch port, covering the ZYNQ and AM3359
// boards. Unlike Cortex-M there is no hardware-automatic stacking on
// exception entry: the full register file is saved and restored by
// software around every mode switch.
package arm7

import (
	"unsafe"

	"github.com/RIOT-OS/RIOT-sub019/arch"
	"github.com/RIOT-OS/RIOT-sub019/internal/config"
)

// CPSR mode bits for System mode with IRQ and FIQ enabled, the initial
// CPSR a newly created thread runs with.
const cpsrSystemIRQFIQEnabled uint32 = 0x1F // System mode, I=0, F=0

// Frame is the ARM7/9 initial stack layout: CPSR_init, R0..R12,
// LR=task_exit, PC=entry. The MARKER sentinel lives one word above
// Frame, at stackBase+stackSize-4, written by BuildFrame itself.
type Frame struct {
	CPSR               uint32
	R0, R1, R2, R3     uint32
	R4, R5, R6, R7     uint32
	R8, R9, R10, R11   uint32
	R12                uint32
	LR, PC             uint32
}

// BuildFrame writes the stack marker at the top word of
// [stackBase, stackBase+stackSize), then the frame above directly below
// it, and returns the resulting SP.
func BuildFrame(entryAddr, argWord, taskExitAddr uint32, stackBase unsafe.Pointer, stackSize uintptr) arch.StackPointer {
	top := uintptr(stackBase) + stackSize
	markerAddr := top - unsafe.Sizeof(config.StackMarker)
	*(*uint32)(unsafe.Pointer(markerAddr)) = config.StackMarker

	fp := markerAddr - unsafe.Sizeof(Frame{})
	f := (*Frame)(unsafe.Pointer(fp))

	*f = Frame{
		CPSR: cpsrSystemIRQFIQEnabled,
		R0:   argWord,
		LR:   taskExitAddr,
		PC:   entryAddr,
	}
	return arch.StackPointer(unsafe.Pointer(fp))
}
