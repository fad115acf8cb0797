// Package gdt is the x86-32 global descriptor table: the flat kernel
// code/data segments every ring-0-only build in this kernel needs before
// protected mode can run Go code at all, plus the null descriptor Intel
// requires at selector 0.
//
// Laid out exactly the way arch/x86/idt lays out the IDT: a fixed-size
// array of bit-packed 8-byte descriptors built once at boot, loaded with
// a single far pointer (lgdt here, lidt there).
package gdt

import (
	"unsafe"

	"github.com/RIOT-OS/RIOT-sub019/internal/bitfield"
)

const numDescriptors = 3

// Selector values every other x86 package references by name rather than
// by raw offset: idt.codeSelector (0x0008) is this table's CodeSelector.
const (
	NullSelector = 0x00
	CodeSelector = 0x08
	DataSelector = 0x10
)

// Descriptor is the standard 8-byte segment descriptor.
type Descriptor struct {
	LimitLo      uint16
	BaseLo       uint16
	BaseMid      uint8
	Access       uint8
	LimitHiFlags uint8
	BaseHi       uint8
}

// accessFlags decodes/encodes the access byte via internal/bitfield, the
// same small-packed-struct pattern idt.typeAttrFlags uses for the IDT's
// type_attr byte.
type accessFlags struct {
	Accessed   uint32 `bitfield:",1"`
	ReadWrite  uint32 `bitfield:",1"` // writable for data, readable for code
	DC         uint32 `bitfield:",1"` // direction/conforming
	Executable uint32 `bitfield:",1"`
	descType   uint32 `bitfield:",1"` // 1 = code/data (vs. system)
	DPL        uint32 `bitfield:",2"`
	Present    uint32 `bitfield:",1"`
}

// flagsNibble decodes/encodes the granularity/size nibble packed into the
// top 4 bits of LimitHiFlags alongside the limit's high 4 bits.
type flagsNibble struct {
	_        uint32 `bitfield:",1"` // reserved
	_        uint32 `bitfield:",1"` // L (64-bit, unused on IA-32)
	Size32   uint32 `bitfield:",1"` // D/B: 1 = 32-bit operands
	Granular uint32 `bitfield:",1"` // G: 1 = limit counted in 4KiB pages
}

func makeAccess(executable, writable bool, dpl uint32) uint8 {
	a := &accessFlags{
		Accessed:   0,
		ReadWrite:  boolToBit(writable),
		DC:         0,
		Executable: boolToBit(executable),
		descType:   1,
		DPL:        dpl,
		Present:    1,
	}
	packed, err := bitfield.Pack(a, &bitfield.Config{NumBits: 8})
	if err != nil {
		panic(err) // programmer error: a flags literal that doesn't fit is a bug, not a runtime fault
	}
	return uint8(packed)
}

func boolToBit(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func makeFlagsNibble() uint8 {
	n := &flagsNibble{Size32: 1, Granular: 1}
	packed, err := bitfield.Pack(n, &bitfield.Config{NumBits: 4})
	if err != nil {
		panic(err)
	}
	return uint8(packed)
}

var table [numDescriptors]Descriptor

func makeDescriptor(base uint32, limit uint32, executable, writable bool, dpl uint32) Descriptor {
	flags := makeFlagsNibble()
	return Descriptor{
		LimitLo:      uint16(limit),
		BaseLo:       uint16(base),
		BaseMid:      uint8(base >> 16),
		Access:       makeAccess(executable, writable, dpl),
		LimitHiFlags: uint8(limit>>16) | flags<<4,
		BaseHi:       uint8(base >> 24),
	}
}

// flatLimit is 0xFFFFF 4KiB-granular pages, the full 4GiB address
// space: every segment in this kernel is flat, base 0, limit 4GiB,
// ring 0 only.
const flatLimit = 0xFFFFF

// Build populates the null, flat code and flat data descriptors. Called
// once at boot, before lgdt.
func Build() {
	table[0] = Descriptor{} // null descriptor, selector 0x00
	table[1] = makeDescriptor(0, flatLimit, true, true, 0)  // code, DPL=0
	table[2] = makeDescriptor(0, flatLimit, false, true, 0) // data, DPL=0
}

// GDTR is the descriptor-register image loaded with `lgdt`: limit =
// sizeof(table)-1, base = &table.
type GDTR struct {
	Limit uint16
	Base  uint32
}

func (r GDTR) encode() [6]byte {
	var b [6]byte
	b[0] = byte(r.Limit)
	b[1] = byte(r.Limit >> 8)
	b[2] = byte(r.Base)
	b[3] = byte(r.Base >> 8)
	b[4] = byte(r.Base >> 16)
	b[5] = byte(r.Base >> 24)
	return b
}

// Load returns the GDTR image; boot's assembly glue executes `lgdt` on it
// followed by a far jump/segment reload into CodeSelector/DataSelector.
func Load() [6]byte {
	return GDTR{Limit: uint16(unsafe.Sizeof(table) - 1), Base: uint32(uintptr(unsafe.Pointer(&table[0])))}.encode()
}
