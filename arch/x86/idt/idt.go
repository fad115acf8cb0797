// Package idt is the x86-32 interrupt dispatcher: IDT construction, the
// common trampoline preamble's Go-side counterpart, and the C-dispatcher
// contract (int_handler).
//
// The dispatcher's "tail call into the scheduler, continue the
// interrupted thread" maneuver is modeled as a tagged variant returned
// from the dispatcher and consumed by the exit trampoline, rather than
// hidden inside an assembly jump. ResumeAction below is exactly that:
// Direct carries the saved frame straight back to `iret`, Yield asks the
// exit trampoline to copy the saved frame onto the interrupted (outgoing)
// thread's own stack and invoke the scheduler instead.
package idt

import (
	"unsafe"

	"github.com/RIOT-OS/RIOT-sub019/arch"
	"github.com/RIOT-OS/RIOT-sub019/internal/bitfield"
	"github.com/RIOT-OS/RIOT-sub019/internal/klog"
)

const numGates = 48

// Gate encoding: 8 bytes per gate, little-endian:
// {offset_lo16, selector, zero, type_attr, offset_hi16}.
type Gate struct {
	OffsetLo uint16
	Selector uint16
	Zero     uint8
	TypeAttr uint8
	OffsetHi uint16
}

// typeAttrFlags decodes/encodes the type_attr byte via internal/bitfield:
// a small packed flag struct instead of hand-rolled shifts scattered
// across call sites.
type typeAttrFlags struct {
	GateType uint32 `bitfield:",4"` // 0xE = 32-bit interrupt gate
	_        uint32 `bitfield:",1"` // reserved
	DPL      uint32 `bitfield:",2"`
	Present  uint32 `bitfield:",1"`
}

const (
	gateType32BitInterrupt = 0xE
	codeSelector           = 0x0008
)

func makeTypeAttr(dpl uint32, present bool) uint8 {
	p := uint32(0)
	if present {
		p = 1
	}
	packed, err := bitfield.Pack(&typeAttrFlags{GateType: gateType32BitInterrupt, DPL: dpl, Present: p}, &bitfield.Config{NumBits: 8})
	if err != nil {
		klog.Faultf("idt: bad type_attr encoding: %v", err)
	}
	return uint8(packed)
}

// Default gate attributes: present, DPL=0, 32-bit interrupt gate (0x8E),
// except the breakpoint gate (vector 0x03) which is DPL=3 (0xEE),
// intentionally reachable from ring-3 debug code even though this kernel
// otherwise runs everything in ring 0.
const (
	typeAttrKernel     = 0x8E
	typeAttrBreakpoint = 0xEE
	vectorBreakpoint   = 0x03
)

var table [numGates]Gate

// IDTR is the descriptor register image loaded with `lidt`:
// limit = sizeof(table)-1, base = &table.
type IDTR struct {
	Limit uint16
	Base  uint32
}

func (r IDTR) encode() [6]byte {
	var b [6]byte
	b[0] = byte(r.Limit)
	b[1] = byte(r.Limit >> 8)
	b[2] = byte(r.Base)
	b[3] = byte(r.Base >> 8)
	b[4] = byte(r.Base >> 16)
	b[5] = byte(r.Base >> 24)
	return b
}

// setGate installs a gate pointing at a trampoline's address.
func setGate(vec int, offset uint32, typeAttr uint8) {
	table[vec] = Gate{
		OffsetLo: uint16(offset),
		Selector: codeSelector,
		Zero:     0,
		TypeAttr: typeAttr,
		OffsetHi: uint16(offset >> 16),
	}
}

// Build populates every supported gate: CPU exceptions
// 0x00-0x12, the breakpoint gate at 0x03 with DPL=3, and the two PIC
// ranges (master at 0x20, slave at 0x28). trampolineAddr resolves a vector
// number to the address of its DECLARE_INT-generated trampoline (installed
// by boot/boot_x86.go, which owns the actual assembly).
func Build(trampolineAddr func(vec int) uint32) {
	for vec := 0; vec <= 0x12; vec++ {
		attr := uint8(typeAttrKernel)
		if vec == vectorBreakpoint {
			attr = typeAttrBreakpoint
		}
		setGate(vec, trampolineAddr(vec), attr)
	}
	for vec := 0x20; vec < 0x30; vec++ {
		setGate(vec, trampolineAddr(vec), typeAttrKernel)
	}
}

// Load returns the IDTR image; boot's assembly glue executes `lidt` on it.
func Load() [6]byte {
	return IDTR{Limit: uint16(unsafe.Sizeof(table) - 1), Base: uint32(uintptr(unsafe.Pointer(&table[0])))}.encode()
}

// InterruptedCtx is the register image the common preamble saves before
// calling into Go. EIP/CS/EFLAGS come last and in that order: they are
// exactly the words `iret` expects, so a restore trampoline can point
// ESP at &ctx.EIP and iret straight off this struct's memory.
type InterruptedCtx struct {
	EAX, ECX, EDX, EBX uint32
	EBP, ESI, EDI      uint32
	SP                 uint32
	EIP, CS, EFLAGS    uint32
}

const eflagsIF = 1 << 9

// IFSet reports whether the interrupted frame had interrupts enabled.
func (c *InterruptedCtx) IFSet() bool { return c.EFLAGS&eflagsIF != 0 }

// Handler is a per-vector callback, matching interrupt_handler_set's
// signature: (vec, ctx, errorCode).
type Handler func(vec int, ctx *InterruptedCtx, errorCode uint32)

var handlers [numGates]Handler

// SetHandler installs fn for vec, replacing any previous handler
// (interrupt_handler_set: "afterwards, per-vector handlers are
// installed and replaced at will").
func SetHandler(vec int, fn Handler) { handlers[vec] = fn }

// ResumeActionKind tags the dispatcher's decision.
type ResumeActionKind int

const (
	// Direct: restore InterruptedCtx and iret, no reschedule needed.
	Direct ResumeActionKind = iota
	// Yield: hand the saved context to the scheduler; thread_yield_higher
	// is the mechanism by which control actually transfers.
	Yield
)

// ResumeAction is what the exit trampoline consumes: a tagged variant of
// either Direct(iframe) or Yield(iframe).
type ResumeAction struct {
	Kind ResumeActionKind
	Ctx  *InterruptedCtx
}

// SwitchRequested reports whether a reschedule has been requested; wired
// to kernel/sched.ContextSwitchRequested by boot. A function variable
// keeps idt free of a kernel/sched import.
var SwitchRequested func() bool

// Dispatch is int_handler: read the current vector/ctx/error
// code, set in_isr, look up the per-vector callback (defaulting to the
// unhandled-vector printer), invoke it, then decide Direct vs Yield.
//
// A reentrant call (irq_is_in already true when Dispatch is entered) is
// fatal: dump registers and halt. in_isr itself is the process-wide flag
// behind arch.IRQIsIn, so handlers and anything they call see themselves
// in interrupt context for the duration.
func Dispatch(vec int, ctx *InterruptedCtx, errorCode uint32) ResumeAction {
	if arch.IRQIsIn() {
		klog.Warnf("idt: reentrant interrupt vec=%#x while already in dispatcher", vec)
		DumpFault(vec, ctx, errorCode)
		return ResumeAction{Kind: Direct, Ctx: ctx}
	}
	arch.SetInISR(true)
	defer arch.SetInISR(false)

	h := handlers[vec]
	if h == nil {
		h = unhandled
	}
	h(vec, ctx, errorCode)

	if SwitchRequested == nil || !SwitchRequested() || !ctx.IFSet() {
		return ResumeAction{Kind: Direct, Ctx: ctx}
	}
	return ResumeAction{Kind: Yield, Ctx: ctx}
}

func unhandled(vec int, ctx *InterruptedCtx, errorCode uint32) {
	DumpFault(vec, ctx, errorCode)
}
