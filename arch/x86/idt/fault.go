package idt

import (
	"unsafe"

	"github.com/RIOT-OS/RIOT-sub019/internal/config"
	"github.com/RIOT-OS/RIOT-sub019/internal/klog"
)

// exceptionNames decodes vectors 0x00-0x12 for the fault dump.
var exceptionNames = [...]string{
	0x00: "#DE divide error",
	0x01: "#DB debug",
	0x02: "NMI",
	0x03: "#BP breakpoint",
	0x04: "#OF overflow",
	0x05: "#BR bound range exceeded",
	0x06: "#UD invalid opcode",
	0x07: "#NM device not available",
	0x08: "#DF double fault",
	0x09: "coprocessor segment overrun",
	0x0A: "#TS invalid TSS",
	0x0B: "#NP segment not present",
	0x0C: "#SS stack-segment fault",
	0x0D: "#GP general protection fault",
	0x0E: "#PF page fault",
	0x0F: "reserved",
	0x10: "#MF x87 FP exception",
	0x11: "#AC alignment check",
	0x12: "#MC machine check",
}

// ExceptionName decodes a vector number for diagnostics.
func ExceptionName(vec int) string {
	if vec >= 0 && vec < len(exceptionNames) && exceptionNames[vec] != "" {
		return exceptionNames[vec]
	}
	if vec >= 0x20 && vec < 0x30 {
		return "hardware IRQ"
	}
	return "unknown vector"
}

// ControlRegs is the CR0/CR2/CR3/CR4 snapshot printed in the fault dump.
type ControlRegs struct {
	CR0, CR2, CR3, CR4 uint32
}

// ReadControlRegs is installed by the board's bring-up code; nil before
// paging is up, in which case the dump omits the control registers.
var ReadControlRegs func() ControlRegs

// FrameReadable reports whether a word at addr can be loaded without
// faulting, used to stop the saved-EBP walk at the first unmapped frame.
// Installed by the board alongside ReadControlRegs; nil disables the
// stack trace entirely rather than risking a recursive fault.
var FrameReadable func(addr uintptr) bool

// DumpFault prints the decoded exception name, the saved registers,
// CR0/CR2/CR3/CR4, CS:EIP, EFLAGS, the error code and a best-effort
// stack trace following the saved EBP chain, then halts.
func DumpFault(vec int, ctx *InterruptedCtx, errorCode uint32) {
	klog.Warnf("fault: %s (vec=%#x err=%#x)", ExceptionName(vec), vec, errorCode)
	klog.Warnf("  eax=%08x ecx=%08x edx=%08x ebx=%08x", ctx.EAX, ctx.ECX, ctx.EDX, ctx.EBX)
	klog.Warnf("  ebp=%08x esi=%08x edi=%08x esp=%08x", ctx.EBP, ctx.ESI, ctx.EDI, ctx.SP)
	klog.Warnf("  cs:eip=%04x:%08x eflags=%08x", ctx.CS, ctx.EIP, ctx.EFLAGS)
	if ReadControlRegs != nil {
		cr := ReadControlRegs()
		klog.Warnf("  cr0=%08x cr2=%08x cr3=%08x cr4=%08x", cr.CR0, cr.CR2, cr.CR3, cr.CR4)
	}
	dumpStackTrace(uintptr(ctx.EBP))
	klog.Faultf("fault: halting")
}

// loadWordFn is a var so tests can walk a synthetic frame chain instead
// of real 32-bit addresses, the same spy seam mm's zeroPageFn uses.
var loadWordFn = func(addr uintptr) uint32 { return *(*uint32)(unsafe.Pointer(addr)) }

// dumpStackTrace follows the saved-EBP chain: each frame is
// [saved EBP][return address], so the walk loads two words per step and
// stops at a nil or non-increasing link, an unmapped frame, or the
// 30-frame bound.
func dumpStackTrace(ebp uintptr) {
	if FrameReadable == nil {
		return
	}
	const wordSize = unsafe.Sizeof(uint32(0))
	for i := 0; i < config.MaxStackTraceFrames; i++ {
		if ebp == 0 || !FrameReadable(ebp) || !FrameReadable(ebp+wordSize) {
			return
		}
		next := uintptr(loadWordFn(ebp))
		ret := loadWordFn(ebp + wordSize)
		klog.Warnf("  #%02d ebp=%08x ret=%08x", i, ebp, ret)
		if next <= ebp {
			return
		}
		ebp = next
	}
}
