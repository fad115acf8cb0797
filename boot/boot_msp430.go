//go:build msp430

// The MSP430 board: a 16-bit target with no hardware call-stacking at
// all beyond what CALL itself does (push the return PC). msp430_yield
// saves the full register file in software on top of that pushed PC and
// defers only the restore half to this board's glue, the same split
// arm7's board file uses for its fully-software port.
package boot

import (
	"time"
	"unsafe"

	"github.com/RIOT-OS/RIOT-sub019/arch"
	"github.com/RIOT-OS/RIOT-sub019/arch/msp430"
	"github.com/RIOT-OS/RIOT-sub019/internal/klog"
	"github.com/RIOT-OS/RIOT-sub019/kernel/sched"
	"github.com/RIOT-OS/RIOT-sub019/mem/bestfit"
)

const (
	msp430HeapSize        = 4 << 10
	msp430MainStackSize   = 512
	msp430IdleStackSize   = 128
	msp430ReaperStackSize = 128

	// Timer_A's SMCLK source on a typical MSP430x2xx Launchpad part.
	msp430TimerClockHz = 1_000_000

	priorityHwtimerMSP430 = 0
)

// timerAVtimer adapts Timer_A (CCR0 in up mode, clocked from SMCLK) to
// ticker.Vtimer: reprogrammed from scratch on every Set, the same
// discipline every other board's vtimer follows.
type timerAVtimer struct {
	callback func()
}

func (v *timerAVtimer) Set(d time.Duration, callback func()) {
	v.callback = callback
	ticks := uint64(d) * msp430TimerClockHz / uint64(time.Second)
	if ticks == 0 {
		ticks = 1
	}
	if ticks > 0xFFFF {
		ticks = 0xFFFF
	}
	timerAReload(uint16(ticks))
}

func (v *timerAVtimer) Cancel() {
	v.callback = nil
	timerADisable()
}

var activeTimerAVtimer *timerAVtimer

// timerAFire is called by Timer_A's CCR0 ISR.
func timerAFire() {
	v := activeTimerAVtimer
	if v == nil {
		return
	}
	cb := v.callback
	v.callback = nil
	if cb != nil {
		cb()
	}
}

//go:linkname timerA_init timerA_init
//go:nosplit
func timerA_init()

//go:linkname timerA_reload timerA_reload
//go:nosplit
func timerA_reload(ticks uint16)

//go:linkname timerA_disable timerA_disable
//go:nosplit
func timerA_disable()

func timerAReload(ticks uint16) { timerA_reload(ticks) }
func timerADisable()            { timerA_disable() }

// msp430SaveOutgoingSP is called from msp430_yield once the full
// software frame has been pushed onto the outgoing thread's own stack,
// the same "persist before asking the scheduler" step every board's save
// path performs.
func msp430SaveOutgoingSP(sp uintptr) {
	if t := sched.ActiveThread(); t != nil {
		t.SP = arch.StackPointer(unsafe.Pointer(sp))
	}
}

// MSP430Boot is board_init+kernel_init for the MSP430 board.
func MSP430Boot(mainEntry func(arg unsafe.Pointer), mainArg unsafe.Pointer, mainName string) {
	klog.SetLevel(klog.Info)

	port := &msp430.Port{}
	klog.SetHaltFn(port.Halt)
	msp430.SetScheduler(func() arch.StackPointer { return sched.Run().SP })

	timerA_init()
	vt := &timerAVtimer{}
	activeTimerAVtimer = vt

	KernelInit(Config{
		Port:       port,
		Pool:       bestfit.New(),
		Vtimer:     vt,
		NotHwtimer: func(priority uint8) bool { return priority == priorityHwtimerMSP430 },

		HeapBase: unsafe.Pointer(&msp430Heap[0]),
		HeapLen:  uintptr(len(msp430Heap)),

		MainEntry: mainEntry,
		MainArg:   mainArg,
		MainName:  mainName,

		MainStack:       allocMSP430Stack(msp430MainStackSize),
		MainStackSize:   msp430MainStackSize,
		IdleStack:       allocMSP430Stack(msp430IdleStackSize),
		IdleStackSize:   msp430IdleStackSize,
		ReaperStack:     allocMSP430Stack(msp430ReaperStackSize),
		ReaperStackSize: msp430ReaperStackSize,
	})
}

var msp430Heap [msp430HeapSize]byte
var msp430StackRegion [msp430MainStackSize + msp430IdleStackSize + msp430ReaperStackSize + 16]byte
var msp430StackOffset uintptr

func allocMSP430Stack(size uintptr) unsafe.Pointer {
	msp430StackOffset = (msp430StackOffset + 1) &^ 1
	p := unsafe.Pointer(&msp430StackRegion[msp430StackOffset])
	msp430StackOffset += size
	return p
}
