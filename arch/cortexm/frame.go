package cortexm

import (
	"unsafe"

	"github.com/RIOT-OS/RIOT-sub019/arch"
	"github.com/RIOT-OS/RIOT-sub019/internal/config"
)

// Frame is the 17-word Cortex-M initial stack layout, low address to high:
// EXC_RETURN, R4..R11, R0..R3, R12, LR,
// PC, xPSR. The MARKER sentinel lives one word above Frame, at
// stackBase+stackSize-4, written by BuildFrame itself.
//
// M0 and M3/M4 share this logical layout, re-derived from the
// architecture reference for both (EXC_RETURN lowest, matching the
// hardware's own stacking order reversed); the two variants only diverge
// in the asm move sequences that build and tear the frame down, since M0
// cannot address R8-R11 with LDMIA/STMDB and open-codes single MOVs
// instead.
type Frame struct {
	ExcReturn        uint32
	R4, R5, R6, R7   uint32
	R8, R9, R10, R11 uint32
	R0, R1, R2, R3   uint32
	R12              uint32
	LR, PC, XPSR     uint32
}

const excReturnThreadPSP = 0xFFFFFFFD

// BuildFrame writes the stack marker at the top word of
// [stackBase, stackBase+stackSize), then the canonical frame directly
// below it, and returns the resulting stack pointer. entryAddr/argWord/
// taskExitAddr are raw values as they would appear in the corresponding
// hardware registers, so this function can be exercised directly against
// literal addresses without needing a linker to resolve real function
// pointers.
func BuildFrame(entryAddr, argWord, taskExitAddr uint32, stackBase unsafe.Pointer, stackSize uintptr) arch.StackPointer {
	top := uintptr(stackBase) + stackSize
	markerAddr := top - unsafe.Sizeof(config.StackMarker)
	*(*uint32)(unsafe.Pointer(markerAddr)) = config.StackMarker

	fp := markerAddr - unsafe.Sizeof(Frame{})
	f := (*Frame)(unsafe.Pointer(fp))

	*f = Frame{
		ExcReturn: excReturnThreadPSP,
		R4:        4, R5: 5, R6: 6, R7: 7,
		R8: 8, R9: 9, R10: 10, R11: 11,
		R0:  argWord,
		R1:  1, R2: 2, R3: 3,
		R12: 0,
		LR:  taskExitAddr,
		PC:  entryAddr,
		// bit 9 of xPSR is 0: initial SP stays 8-byte aligned per AAPCS.
		XPSR: 0x01000000,
	}
	return arch.StackPointer(unsafe.Pointer(fp))
}
