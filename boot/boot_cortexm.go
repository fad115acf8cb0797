//go:build cortexm

// The Cortex-M board: PendSV/SVC context switching on a Cortex-M0 part
// running every thread off PSP, handler mode on MSP. This file owns the
// vector-table entries and the save/restore halves of the PendSV and SVC
// handlers; the leaf register primitives stay in arch/cortexm itself.
package boot

import (
	"time"
	"unsafe"

	"github.com/RIOT-OS/RIOT-sub019/arch"
	"github.com/RIOT-OS/RIOT-sub019/arch/cortexm"
	"github.com/RIOT-OS/RIOT-sub019/internal/klog"
	"github.com/RIOT-OS/RIOT-sub019/kernel/sched"
	"github.com/RIOT-OS/RIOT-sub019/mem/bestfit"
)

const (
	cortexmHeapSize        = 48 << 10
	cortexmMainStackSize   = 8 << 10
	cortexmIdleStackSize   = 1 << 10
	cortexmReaperStackSize = 1 << 10

	// SysTick: a 24-bit down-counter clocked at the board's core clock.
	// This board reports a fixed 16MHz clock (typical of an
	// un-overclocked Cortex-M0 Nucleo-class part running off its internal
	// oscillator) rather than probing one, the same single-speed
	// simplification the PIT-backed x86 vtimer makes.
	sysTickCoreClockHz = 16_000_000
	sysTickCtrlEnable  = 1 << 0
	sysTickCtrlTickInt = 1 << 1
	sysTickCtrlClkSrc  = 1 << 2
)

// sysTickVtimer is the SysTick-backed ticker.Vtimer: a 24-bit one-shot
// down-counter, reloaded on every Set the same way the x86 board's PIT
// channel 0 is reprogrammed from scratch rather than "stopped and
// restarted".
type sysTickVtimer struct {
	callback func()
}

func (v *sysTickVtimer) Set(d time.Duration, callback func()) {
	v.callback = callback
	ticks := uint64(d) * sysTickCoreClockHz / uint64(time.Second)
	if ticks == 0 {
		ticks = 1
	}
	if ticks > 0xFFFFFF {
		ticks = 0xFFFFFF
	}
	systickReload(uint32(ticks))
}

func (v *sysTickVtimer) Cancel() {
	v.callback = nil
	systickDisable()
}

func systickFire() {
	v := activeSysTickVtimer
	if v == nil {
		return
	}
	cb := v.callback
	v.callback = nil
	if cb != nil {
		cb()
	}
}

var activeSysTickVtimer *sysTickVtimer

//go:linkname systick_reload systick_reload
//go:nosplit
func systick_reload(ticks uint32)

//go:linkname systick_disable systick_disable
//go:nosplit
func systick_disable()

func systickReload(ticks uint32)  { systick_reload(ticks) }
func systickDisable()             { systick_disable() }

// cortexmRecordSP is called by the PendSV save trampoline with the
// fully-advanced PSP value: the outgoing TCB's SP must be written before
// sched.Run() picks a new active thread.
func cortexmRecordSP(sp uintptr) {
	if t := sched.ActiveThread(); t != nil {
		t.SP = arch.StackPointer(unsafe.Pointer(sp))
	}
}

// cortexmDispatchPendSV/cortexmDispatchSVC pull in arch/cortexm's
// unexported dispatch functions by their full symbol path: the vector
// glue lives in this package, the dispatch logic stays with the port.
//
//go:linkname cortexmDispatchPendSV github.com/RIOT-OS/RIOT-sub019/arch/cortexm.dispatchPendSV
func cortexmDispatchPendSV() uintptr

//go:linkname cortexmDispatchSVC github.com/RIOT-OS/RIOT-sub019/arch/cortexm.dispatchSVC
func cortexmDispatchSVC() uintptr

// cortexmRunPendSV/cortexmRunSVC give the vector glue a same-package
// symbol with a body to BL through; the linknamed declarations above are
// aliases of cortexm's functions, not symbols of their own.
func cortexmRunPendSV() uintptr { return cortexmDispatchPendSV() }
func cortexmRunSVC() uintptr    { return cortexmDispatchSVC() }

const priorityHwtimerCortexM = 0 // the SysTick ISR never runs as a scheduled thread

// CortexMBoot is board_init+kernel_init for the Cortex-M0 board: install
// the SysTick vtimer, wire the scheduler adapter and hand off to
// KernelInit. mainEntry runs as the main thread.
func CortexMBoot(mainEntry func(arg unsafe.Pointer), mainArg unsafe.Pointer, mainName string) {
	klog.SetLevel(klog.Info)

	port := &cortexm.Port{Variant: cortexm.M0}
	klog.SetHaltFn(port.Halt)
	cortexm.SetScheduler(func() arch.StackPointer { return sched.Run().SP })

	vt := &sysTickVtimer{}
	activeSysTickVtimer = vt
	systickCtrl(sysTickCtrlEnable | sysTickCtrlTickInt | sysTickCtrlClkSrc)

	KernelInit(Config{
		Port:       port,
		Pool:       bestfit.New(),
		Vtimer:     vt,
		NotHwtimer: func(priority uint8) bool { return priority == priorityHwtimerCortexM },

		HeapBase: unsafe.Pointer(&cortexmHeap[0]),
		HeapLen:  uintptr(len(cortexmHeap)),

		MainEntry: mainEntry,
		MainArg:   mainArg,
		MainName:  mainName,

		MainStack:       allocCortexMStack(cortexmMainStackSize),
		MainStackSize:   cortexmMainStackSize,
		IdleStack:       allocCortexMStack(cortexmIdleStackSize),
		IdleStackSize:   cortexmIdleStackSize,
		ReaperStack:     allocCortexMStack(cortexmReaperStackSize),
		ReaperStackSize: cortexmReaperStackSize,
	})
}

//go:linkname systick_ctrl systick_ctrl
//go:nosplit
func systick_ctrl(val uint32)

func systickCtrl(val uint32) { systick_ctrl(val) }

var cortexmHeap [cortexmHeapSize]byte
var cortexmStackRegion [cortexmMainStackSize + cortexmIdleStackSize + cortexmReaperStackSize + 64]byte
var cortexmStackOffset uintptr

func allocCortexMStack(size uintptr) unsafe.Pointer {
	cortexmStackOffset = (cortexmStackOffset + 15) &^ 15
	p := unsafe.Pointer(&cortexmStackRegion[cortexmStackOffset])
	cortexmStackOffset += size
	return p
}
