// Package mm is the x86-32 memory core: PAE
// page-table construction, the #PF handler, the demand-heap page
// allocator, and the MMIO mapping API.
package mm

import (
	"unsafe"

	"github.com/RIOT-OS/RIOT-sub019/internal/bitfield"
	"github.com/RIOT-OS/RIOT-sub019/internal/config"
)

// PTEFlags is the standard Intel PAE PTE bit layout, plus the
// driver-reserved "heap-owned" bit the page-fault handler and the demand
// heap use to distinguish a lazily-unmapped heap page from every other
// kind of fault. Packed/unpacked via internal/bitfield's tag convention
// rather than a second set of hand-rolled shifts.
type PTEFlags struct {
	Present  bool `bitfield:",1"` // P
	Write    bool `bitfield:",1"` // RW
	User     bool `bitfield:",1"` // US
	PWT      bool `bitfield:",1"`
	PCD      bool `bitfield:",1"`
	Accessed bool `bitfield:",1"` // A
	Dirty    bool `bitfield:",1"` // D
	PAT      bool `bitfield:",1"` // PS at PD level, PAT at PT level
	Global   bool `bitfield:",1"` // G
	// HeapOwned is bit 9, one of the three bits Intel reserves for
	// software use; this driver spends one of them marking a page as
	// belonging to the demand-heap pool.
	HeapOwned bool   `bitfield:",1"`
	_         uint32 `bitfield:",2"` // remaining software-available bits, unused
	Addr      uint64 `bitfield:",40"`
	_         uint32 `bitfield:",11"`
	XD        bool   `bitfield:",1"` // execute-disable, top bit
}

const pteNumBits = 64

// Pack encodes f into a raw 8-byte PAE PTE.
func (f PTEFlags) Pack() uint64 {
	packed, err := bitfield.Pack(&f, &bitfield.Config{NumBits: pteNumBits})
	if err != nil {
		panic(err) // programmer error: a flags literal that doesn't fit is a bug, not a runtime fault
	}
	return packed
}

// UnpackPTE decodes a raw PTE back into its flags, used by the #PF
// handler and by GetPTE.
func UnpackPTE(raw uint64) PTEFlags {
	var f PTEFlags
	if err := bitfield.Unpack(raw, &f); err != nil {
		panic(err)
	}
	return f
}

// Common named flag combinations for the regions this kernel maps.
var (
	flagsText      = PTEFlags{Present: true, User: true, Global: true}
	flagsRodata    = PTEFlags{Present: true, User: true, Global: true, XD: true}
	flagsDataBSS   = PTEFlags{Present: true, Write: true, User: true, Global: true, XD: true}
	flagsLegacy    = PTEFlags{Present: true, Write: true, XD: true, Global: true}
	flagsHeapOwned = PTEFlags{Write: true, User: true, XD: true, HeapOwned: true, Global: true} // Present set lazily
	flagsMMIO      = PTEFlags{Present: true, Write: true, PWT: true, PCD: true, XD: true, Global: true}
)

// PDPTE / PDE / PTE are raw 64-bit table entries.
type Entry uint64

func (e Entry) Flags() PTEFlags { return UnpackPTE(uint64(e)) }

func makeEntry(physAddr uintptr, f PTEFlags) Entry {
	f.Addr = uint64(physAddr) >> 12
	return Entry(f.Pack())
}

// Static tables: a 4-entry PDPT, NumStaticPD page directories,
// NumStaticPT page tables. PD/PT are arrays of arrays rather than
// pointers, matching the "statically allocated" contract.
const (
	numPDPT = 4
)

var (
	pdpt [numPDPT]Entry
	pds  [config.NumStaticPD][config.PDEntries]Entry
	pts  [config.NumStaticPT][config.PTEntries]Entry
)

// PDPTPhysBase/PDsPhysBase/PTsPhysBase hand the board's boot glue the
// physical addresses of the statically allocated tables above, for
// mm.Build's CR3 load and PD->PT wiring. This kernel never relocates its
// own page-table pages, so "physical" here is just each array's normal
// address: identity-mapped like every other static kernel page.
func PDPTPhysBase() uintptr { return uintptr(unsafe.Pointer(&pdpt[0])) }
func PDsPhysBase() uintptr  { return uintptr(unsafe.Pointer(&pds[0])) }
func PTsPhysBase() uintptr  { return uintptr(unsafe.Pointer(&pts[0])) }
