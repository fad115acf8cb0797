package mm

import (
	"unsafe"

	"github.com/RIOT-OS/RIOT-sub019/internal/config"
	"github.com/RIOT-OS/RIOT-sub019/internal/klog"
)

// CPU feature probing and control-register access are single-instruction
// primitives (CPUID, RDMSR/WRMSR, MOV to/from CR0/CR3/CR4) that Go cannot
// express without assembly, reached through go:linkname into cpu_x86.s.

//go:linkname cpuid_has_pae cpuid_has_pae
func cpuid_has_pae() bool

//go:linkname cpuid_has_pge cpuid_has_pge
func cpuid_has_pge() bool

//go:linkname cpuid_has_msr cpuid_has_msr
func cpuid_has_msr() bool

//go:linkname enable_nx_via_efer enable_nx_via_efer
func enable_nx_via_efer()

//go:linkname load_cr3 load_cr3
func load_cr3(physAddr uint32)

//go:linkname read_cr0 read_cr0
func read_cr0() uint32

//go:linkname read_cr3 read_cr3
func read_cr3() uint32

//go:linkname read_cr4 read_cr4
func read_cr4() uint32

//go:linkname set_cr4 set_cr4
func set_cr4(bits uint32)

//go:linkname enable_paging_cr0 enable_paging_cr0
func enable_paging_cr0()

const (
	cr4PAE        = 1 << 5
	cr4MCE        = 1 << 6
	cr4PGE        = 1 << 7
	cr4PCE        = 1 << 8
	cr4OSXMMEXCPT = 1 << 10
)

// xdAvailable tracks whether NX/XD is usable on this CPU; without MSR
// support the XD bit is treated as 0.
var xdAvailable bool

// KernelSection is one ELF section's page range and PTE flags, populated
// by boot/boot_x86.go from the linker-provided section boundaries.
type KernelSection struct {
	Start, End uintptr // page-aligned
	Flags      PTEFlags
}

// Build brings up PAE paging:
//  1. probe CPUID for PAE/PGE/MSR, enable NX if available
//  2. build the PDPT and the PDs covering the static PT range
//  3. map each kernel ELF section's pages with the right flags, plus the
//     low-1MiB legacy region
//  4. load CR3, set CR4, enable paging in CR0
func Build(sections []KernelSection, pdptPhysBase, pdsPhysBase, ptsPhysBase uintptr) {
	if !cpuid_has_pae() {
		klog.Faultf("mm: CPU lacks PAE support, required by this kernel")
	}
	if cpuid_has_msr() {
		xdAvailable = true
		enable_nx_via_efer()
	} else {
		xdAvailable = false
	}

	// Step 2: PDPT -> PDs -> PTs. Each PD gets NumStaticPT/NumStaticPD
	// page tables, one per slot, each slot covering 2MiB.
	for i := 0; i < config.NumStaticPD; i++ {
		pdPhys := pdsPhysBase + uintptr(i)*unsafe.Sizeof(pds[0])
		pdpt[i] = makeEntry(pdPhys, PTEFlags{Present: true})
	}
	ptsPerPD := config.NumStaticPT / config.NumStaticPD
	for pd := 0; pd < config.NumStaticPD; pd++ {
		for slot := 0; slot < ptsPerPD; slot++ {
			ptIdx := pd*ptsPerPD + slot
			ptPhys := ptsPhysBase + uintptr(ptIdx)*unsafe.Sizeof(pts[0])
			pds[pd][slot] = makeEntry(ptPhys, PTEFlags{Present: true, Write: true})
		}
	}

	// Step 3: map the low 1MiB as "legacy" RW+XD (executable only under
	// .text, handled per-section below when a section overlaps it), then
	// every kernel ELF section.
	mapRange(0, 1<<20, withoutXDIfUnavailable(flagsLegacy))
	for _, s := range sections {
		mapRange(s.Start, s.End, withoutXDIfUnavailable(s.Flags))
	}

	// Step 4: CR3, CR4, CR0.
	load_cr3(uint32(pdptPhysBase))
	set_cr4(cr4PAE | cr4MCE | cr4PGE | cr4PCE | cr4OSXMMEXCPT)
	enable_paging_cr0()
}

func withoutXDIfUnavailable(f PTEFlags) PTEFlags {
	if !xdAvailable {
		f.XD = false
	}
	return f
}

// pteFor returns a pointer to the PTE covering virtual address va,
// given the identity-mapped static layout.
func pteFor(va uintptr) *Entry {
	page := va / config.PageSize
	ptIdx := page / config.PTEntries
	ptOff := page % config.PTEntries
	if int(ptIdx) >= config.NumStaticPT {
		return nil
	}
	return &pts[ptIdx][ptOff]
}

// mapRange installs flags on every page in [start, end), rounding start
// down and end up to page boundaries.
func mapRange(start, end uintptr, flags PTEFlags) {
	start = start &^ (config.PageSize - 1)
	end = (end + config.PageSize - 1) &^ (config.PageSize - 1)
	for addr := start; addr < end; addr += config.PageSize {
		if pte := pteFor(addr); pte != nil {
			*pte = makeEntry(addr, flags)
		}
	}
}

// ControlRegisters snapshots CR0/CR2/CR3/CR4 for the fault dump.
func ControlRegisters() (cr0, cr2, cr3, cr4 uint32) {
	return read_cr0(), read_cr2(), read_cr3(), read_cr4()
}

// PageReadable reports whether a load through va can complete without
// faulting, used by the fault dump's saved-EBP walk to stop at the first
// unmapped frame.
func PageReadable(va uintptr) bool {
	return GetPTE(va).Flags().Present
}

// GetPTE is get_pte: returns the raw PTE value covering va, for
// introspection by tests and by callers verifying the heap-owned
// invariant on a freshly demand-paged address.
func GetPTE(va uintptr) Entry {
	if pte := pteFor(va); pte != nil {
		return *pte
	}
	return 0
}

// tempPageVA is the single fixed virtual address reserved to transiently
// map an arbitrary physical frame, so the allocator can write into
// page-table pages without every PT needing to be identity-mapped.
const tempPageVA = 0xFFC00000 // last 4KiB below the recursive-mapping region

// MapTempPage maps frame physAddr at tempPageVA and returns a pointer
// usable to read/write it.
func MapTempPage(physAddr uintptr) unsafe.Pointer {
	if pte := pteFor(tempPageVA); pte != nil {
		*pte = makeEntry(physAddr, PTEFlags{Present: true, Write: true})
	}
	return unsafe.Pointer(uintptr(tempPageVA))
}

// UnmapTempPage clears the temp-page mapping.
func UnmapTempPage() {
	if pte := pteFor(tempPageVA); pte != nil {
		*pte = 0
	}
}
