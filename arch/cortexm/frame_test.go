package cortexm

import (
	"testing"
	"unsafe"

	"github.com/RIOT-OS/RIOT-sub019/internal/config"
)

// TestBuildFrameLayout pins down the exact word-by-word layout
// stack_init(entry=0xDEADBEEF, arg=0xCAFEBABE, stack_base=P,
// stack_size=1024) must produce.
func TestBuildFrameLayout(t *testing.T) {
	const stackSize = 1024
	buf := make([]byte, stackSize)
	base := unsafe.Pointer(&buf[0])

	const taskExitAddr = 0x1000 // stands in for &sched_task_exit

	sp := BuildFrame(0xDEADBEEF, 0xCAFEBABE, taskExitAddr, base, stackSize)
	f := (*Frame)(unsafe.Pointer(sp))

	want := Frame{
		ExcReturn: 0xFFFFFFFD,
		R4:        4, R5: 5, R6: 6, R7: 7,
		R8: 8, R9: 9, R10: 10, R11: 11,
		R0: 0xCAFEBABE, R1: 1, R2: 2, R3: 3,
		R12:  0,
		LR:   taskExitAddr,
		PC:   0xDEADBEEF,
		XPSR: 0x01000000,
	}
	if *f != want {
		t.Fatalf("frame mismatch:\n got  %+v\n want %+v", *f, want)
	}

	top := uintptr(base) + stackSize
	markerAddr := top - unsafe.Sizeof(config.StackMarker)
	if uintptr(unsafe.Pointer(f))+unsafe.Sizeof(Frame{}) != markerAddr {
		t.Fatalf("frame does not end exactly one marker-word below stack top")
	}
	if got := *(*uint32)(unsafe.Pointer(markerAddr)); got != config.StackMarker {
		t.Fatalf("stack marker = %#x, want %#x", got, config.StackMarker)
	}
}
