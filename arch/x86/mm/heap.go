package mm

import (
	"unsafe"

	"github.com/RIOT-OS/RIOT-sub019/internal/config"
	"github.com/RIOT-OS/RIOT-sub019/mem"
)

// MemoryRegion is one board-reported usable physical range, the Go-side
// equivalent of repeatedly calling a board's get_memory_region(&cursor)
// enumerator.
type MemoryRegion struct {
	Start, End uintptr
}

// BuildDemandHeap installs every page of every region (rounded to page
// boundaries and clamped below kernelMemoryEnd) as a heap-owned,
// not-present PTE, then hands the whole virtual range to pool as one
// backing extent. No physical frame is allocated yet: the first touch of
// each page, including the very first segment header pool.AddPool itself
// writes, takes a #PF that handlePageFault fixes up transparently.
func BuildDemandHeap(regions []MemoryRegion, kernelMemoryEnd uintptr, pool mem.Pool) {
	for _, r := range regions {
		start := (r.Start + config.PageSize - 1) &^ (config.PageSize - 1)
		end := r.End &^ (config.PageSize - 1)
		if start < kernelMemoryEnd {
			start = (kernelMemoryEnd + config.PageSize - 1) &^ (config.PageSize - 1)
		}
		if start >= end {
			continue
		}

		for addr := start; addr < end; addr += config.PageSize {
			if pte := pteFor(addr); pte != nil {
				*pte = makeEntry(0, flagsHeapOwned)
			}
		}
		pool.AddPool(unsafe.Pointer(start), end-start)
	}
}
