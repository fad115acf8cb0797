//go:build arm7

// The ARM7/9 board (Zynq or AM3359): no hardware-automatic exception
// stacking the way Cortex-M has, so a yield saves the full register file
// in software (arm7_inline_yield) and arm7.s calls out to
// board_restore_and_enter as "board-specific glue tied to each vendor's
// interrupt controller" for the restore half. This file supplies that
// glue plus the arch-neutral KernelInit wiring.
package boot

import (
	"time"
	"unsafe"

	"github.com/RIOT-OS/RIOT-sub019/arch"
	"github.com/RIOT-OS/RIOT-sub019/arch/arm7"
	"github.com/RIOT-OS/RIOT-sub019/internal/klog"
	"github.com/RIOT-OS/RIOT-sub019/kernel/sched"
	"github.com/RIOT-OS/RIOT-sub019/mem/bestfit"
)

const (
	arm7HeapSize        = 256 << 10
	arm7MainStackSize   = 16 << 10
	arm7IdleStackSize   = 4 << 10
	arm7ReaperStackSize = 4 << 10

	// priorityHwtimerARM7 is the priority ticker.schedRan treats as the
	// hwtimer thread's, the same carve-out the x86 board's priorityHwtimer
	// makes. No thread runs at it here: IRQ_Handler calls the vtimer
	// callback directly.
	priorityHwtimerARM7 = 0
)

// privTimerVtimer adapts a Cortex-A9-style private/global timer (present
// on both Zynq and AM3359's companion timer blocks) to ticker.Vtimer: a
// free-running down-counter reloaded from scratch on every Set, the same
// discipline the x86 board's PIT and the Cortex-M board's SysTick use.
type privTimerVtimer struct {
	board      arm7.Board
	clockHz    uint64
	callback   func()
}

func (v *privTimerVtimer) Set(d time.Duration, callback func()) {
	v.callback = callback
	ticks := uint64(d) * v.clockHz / uint64(time.Second)
	if ticks == 0 {
		ticks = 1
	}
	if ticks > 0xFFFFFFFF {
		ticks = 0xFFFFFFFF
	}
	arm7TimerReload(uint32(ticks))
}

func (v *privTimerVtimer) Cancel() {
	v.callback = nil
	arm7TimerDisable()
}

var activeARM7Vtimer *privTimerVtimer

// arm7TimerFire is called by the timer IRQ handler (installed on the
// board's interrupt controller by arm7TimerInit).
func arm7TimerFire() {
	v := activeARM7Vtimer
	if v == nil {
		return
	}
	cb := v.callback
	v.callback = nil
	if cb != nil {
		cb()
	}
}

//go:linkname arm7_timer_init arm7_timer_init
//go:nosplit
func arm7_timer_init(board int32)

//go:linkname arm7_timer_reload arm7_timer_reload
//go:nosplit
func arm7_timer_reload(ticks uint32)

//go:linkname arm7_timer_disable arm7_timer_disable
//go:nosplit
func arm7_timer_disable()

func arm7TimerReload(ticks uint32) { arm7_timer_reload(ticks) }
func arm7TimerDisable()            { arm7_timer_disable() }

// arm7SaveOutgoingSP is called from arm7_inline_yield once the full
// software frame has been pushed onto the outgoing thread's own stack,
// mirroring cortexmRecordSP and the x86 board's persistOutgoingContext:
// the active TCB's SP must be updated before dispatchARM7 asks the
// scheduler for the next thread to run.
func arm7SaveOutgoingSP(sp uintptr) {
	if t := sched.ActiveThread(); t != nil {
		t.SP = arch.StackPointer(unsafe.Pointer(sp))
	}
}

// ARM7Boot is board_init+kernel_init for a Zynq or AM3359 target.
func ARM7Boot(board arm7.Board, timerClockHz uint64, mainEntry func(arg unsafe.Pointer), mainArg unsafe.Pointer, mainName string) {
	klog.SetLevel(klog.Info)

	port := &arm7.Port{Board: board}
	klog.SetHaltFn(port.Halt)
	arm7.SetScheduler(func() arch.StackPointer { return sched.Run().SP })

	arm7_timer_init(int32(board))
	vt := &privTimerVtimer{board: board, clockHz: timerClockHz}
	activeARM7Vtimer = vt

	KernelInit(Config{
		Port:       port,
		Pool:       bestfit.New(),
		Vtimer:     vt,
		NotHwtimer: func(priority uint8) bool { return priority == priorityHwtimerARM7 },

		HeapBase: unsafe.Pointer(&arm7Heap[0]),
		HeapLen:  uintptr(len(arm7Heap)),

		MainEntry: mainEntry,
		MainArg:   mainArg,
		MainName:  mainName,

		MainStack:       allocARM7Stack(arm7MainStackSize),
		MainStackSize:   arm7MainStackSize,
		IdleStack:       allocARM7Stack(arm7IdleStackSize),
		IdleStackSize:   arm7IdleStackSize,
		ReaperStack:     allocARM7Stack(arm7ReaperStackSize),
		ReaperStackSize: arm7ReaperStackSize,
	})
}

var arm7Heap [arm7HeapSize]byte
var arm7StackRegion [arm7MainStackSize + arm7IdleStackSize + arm7ReaperStackSize + 64]byte
var arm7StackOffset uintptr

func allocARM7Stack(size uintptr) unsafe.Pointer {
	arm7StackOffset = (arm7StackOffset + 15) &^ 15
	p := unsafe.Pointer(&arm7StackRegion[arm7StackOffset])
	arm7StackOffset += size
	return p
}
