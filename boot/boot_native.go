//go:build native

// The host board: used to develop and test the scheduler core without
// real hardware. Its "UART" is stdout, its memory region a Go byte
// slice, its timer time.AfterFunc; everything else goes through the same
// boot, sched, thread, mem and ticker code every other board uses.
package boot

import (
	"time"
	"unsafe"

	"github.com/RIOT-OS/RIOT-sub019/arch/native"
	"github.com/RIOT-OS/RIOT-sub019/internal/klog"
	"github.com/RIOT-OS/RIOT-sub019/kernel/sched"
	"github.com/RIOT-OS/RIOT-sub019/mem/bestfit"
)

const (
	nativeHeapSize        = 4 << 20
	nativeMainStackSize   = 64 << 10
	nativeIdleStackSize   = 16 << 10
	nativeReaperStackSize = 16 << 10
)

// timerVtimer adapts time.AfterFunc to the ticker.Vtimer contract: "at
// most one registration outstanding" is enforced by always stopping the
// previous timer before arming a new one.
type timerVtimer struct {
	t *time.Timer
}

func (v *timerVtimer) Set(d time.Duration, callback func()) {
	if v.t != nil {
		v.t.Stop()
	}
	v.t = time.AfterFunc(d, callback)
}

func (v *timerVtimer) Cancel() {
	if v.t != nil {
		v.t.Stop()
		v.t = nil
	}
}

// NativeBoot is board_init + kernel_init for the host board: allocate the
// heap region and thread stacks from the Go heap (the one place in this
// tree it is acceptable to call Go's own allocator, since nothing below
// this point is supposed to), wire native's scheduler/PID callbacks, and
// hand off to KernelInit.
//
// mainEntry runs as the main thread; it is the caller-supplied program
// (an end-to-end test, a seed-test scenario, an example) that this board
// exists to run.
func NativeBoot(mainEntry func(arg unsafe.Pointer), mainArg unsafe.Pointer, mainName string) {
	klog.SetLevel(klog.Info)

	port := &native.Port{}
	klog.SetHaltFn(port.Halt)

	native.SetScheduler(sched.Run)
	native.SetCurrentPID(sched.ActivePID)

	heap := make([]byte, nativeHeapSize)
	mainStack := make([]byte, nativeMainStackSize)
	idleStack := make([]byte, nativeIdleStackSize)
	reaperStack := make([]byte, nativeReaperStackSize)

	KernelInit(Config{
		Port:            port,
		Pool:            bestfit.New(),
		Vtimer:          &timerVtimer{},
		HeapBase:        unsafe.Pointer(&heap[0]),
		HeapLen:         uintptr(len(heap)),
		MainEntry:       mainEntry,
		MainArg:         mainArg,
		MainName:        mainName,
		MainStack:       unsafe.Pointer(&mainStack[0]),
		MainStackSize:   uintptr(len(mainStack)),
		IdleStack:       unsafe.Pointer(&idleStack[0]),
		IdleStackSize:   uintptr(len(idleStack)),
		ReaperStack:     unsafe.Pointer(&reaperStack[0]),
		ReaperStackSize: uintptr(len(reaperStack)),
	})
}
