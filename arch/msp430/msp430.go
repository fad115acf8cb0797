// Package msp430 is the MSP430 arch port: only the common Port contract
// applies, with no further per-architecture detail beyond it. MSP430 is a
// 16-bit TI MCU; register width here is 16 bits rather than 32, which only
// affects the frame's word size, not its shape: general-purpose registers,
// SR (status register, MSP430's equivalent of CPSR/xPSR), PC, and the
// entry argument.
package msp430

import (
	"unsafe"

	"github.com/RIOT-OS/RIOT-sub019/arch"
	"github.com/RIOT-OS/RIOT-sub019/internal/config"
)

// Frame mirrors the generic RIOT MSP430 port: R4-R15 general purpose
// (R4 carries the entry argument by convention, matching how R0/arg is
// threaded through on the other ports), SR, and PC.
type Frame struct {
	SR                                uint16
	R4, R5, R6, R7, R8, R9, R10, R11  uint16
	R12, R13, R14, R15                uint16
	PC                                uint16
}

const srGeneralInterruptEnable uint16 = 0x0008 // GIE bit

// BuildFrame writes the stack marker at the top word of
// [stackBase, stackBase+stackSize), then the frame above directly below
// it, and returns the resulting SP. arg is truncated to 16 bits, matching
// the MSP430's native word size; so is the marker, which keeps only the
// low 16 bits of the shared 32-bit sentinel.
func BuildFrame(entryAddr, argWord, taskExitAddr uint16, stackBase unsafe.Pointer, stackSize uintptr) arch.StackPointer {
	top := uintptr(stackBase) + stackSize
	markerAddr := top - unsafe.Sizeof(uint16(0))
	*(*uint16)(unsafe.Pointer(markerAddr)) = uint16(config.StackMarker & 0xffff)

	fp := markerAddr - unsafe.Sizeof(Frame{})
	f := (*Frame)(unsafe.Pointer(fp))

	*f = Frame{
		SR:  srGeneralInterruptEnable,
		R4:  argWord,
		R11: taskExitAddr, // return-address convention: caller-saved slot
		PC:  entryAddr,
	}
	return arch.StackPointer(unsafe.Pointer(fp))
}

// Port implements arch.Port for MSP430.
type Port struct{}

var _ arch.Port = (*Port)(nil)

var taskExitAddr uint32

func SetTaskExit(fn func()) { taskExitAddr = arch.RegisterTrampoline(fn) }

// SetTaskExit (method form) lets boot wire thread_task_exit through the
// arch.Port value it already holds, via an optional interface, rather than
// importing every arch package by name.
func (p *Port) SetTaskExit(fn func()) { SetTaskExit(fn) }

func (p *Port) StackInit(entry arch.EntryFunc, arg unsafe.Pointer, stackBase unsafe.Pointer, stackSize uintptr) arch.StackPointer {
	entryAddr := arch.RegisterEntry(entry)
	return BuildFrame(uint16(entryAddr), uint16(uintptr(arg)), uint16(taskExitAddr), stackBase, stackSize)
}

var runScheduler func() arch.StackPointer

func SetScheduler(fn func() arch.StackPointer) { runScheduler = fn }

//go:linkname msp430_start_threading msp430_start_threading
//go:nosplit
func msp430_start_threading()

func (p *Port) StartThreading() { msp430_start_threading() }

//go:linkname msp430_yield msp430_yield
//go:nosplit
func msp430_yield()

//go:nosplit
func (p *Port) Yield() { msp430_yield() }

//go:linkname msp430_switch_context_exit msp430_switch_context_exit
//go:nosplit
func msp430_switch_context_exit()

// SwitchContextExit is cpu_switch_context_exit, sharing
// msp430_start_threading's "nothing to save, just restore" path.
//
//go:nosplit
func (p *Port) SwitchContextExit() { msp430_switch_context_exit() }

//go:linkname msp430_disable_irq msp430_disable_irq
//go:nosplit
func msp430_disable_irq() uint16

//go:linkname msp430_restore_irq msp430_restore_irq
//go:nosplit
func msp430_restore_irq(state uint16)

//go:linkname msp430_enable_irq msp430_enable_irq
//go:nosplit
func msp430_enable_irq()

//go:linkname msp430_halt msp430_halt
//go:nosplit
func msp430_halt()

//go:linkname msp430_reboot msp430_reboot
//go:nosplit
func msp430_reboot()

//go:nosplit
func (p *Port) DisableIRQ() bool { return msp430_disable_irq()&srGeneralInterruptEnable != 0 }

//go:nosplit
func (p *Port) EnableIRQ() { msp430_enable_irq() }

//go:nosplit
func (p *Port) RestoreIRQ(prev bool) {
	if prev {
		msp430_enable_irq()
	} else {
		msp430_disable_irq()
	}
}

func (p *Port) Halt()   { msp430_halt() }
func (p *Port) Reboot() { msp430_reboot() }

//go:nosplit
func dispatchMSP430() uintptr {
	return uintptr(unsafe.Pointer(runScheduler()))
}
