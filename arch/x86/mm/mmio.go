package mm

import (
	"unsafe"

	"github.com/RIOT-OS/RIOT-sub019/internal/config"
	"github.com/RIOT-OS/RIOT-sub019/mem"
)

// MapPhysicalPages is map_physical_pages: reserve n contiguous virtual
// pages out of the demand heap, then repoint each one at
// [physAddr, physAddr+n*PageSize) with the caller's flags instead of the
// heap's own backing. The first page's original physical frame (if the
// demand heap had already faulted it in) is handed back to the physical
// allocator, since that page no longer needs RAM of its own once it
// points at device memory.
func MapPhysicalPages(physAddr uintptr, n int, flags PTEFlags) unsafe.Pointer {
	if n <= 0 {
		return nil
	}
	v := mem.Memalign(config.PageSize, uintptr(n)*config.PageSize)
	if v == nil {
		return nil
	}
	base := uintptr(v)

	if first := pteFor(base); first != nil {
		if first.Flags().Present {
			freePhysFrame(uintptr(first.Flags().Addr) << 12)
		}
	}

	for i := 0; i < n; i++ {
		page := base + uintptr(i)*config.PageSize
		if pte := pteFor(page); pte != nil {
			f := flags
			f.Present = true
			*pte = makeEntry(physAddr+uintptr(i)*config.PageSize, withoutXDIfUnavailable(f))
		}
	}
	return v
}

// GetVirtualPages is get_virtual_pages: reserve n demand-heap pages and
// mark them with the caller's flags without backing a specific physical
// address. The pages stay heap-owned and fault in lazily like any other
// heap memory, just with non-default protection bits.
func GetVirtualPages(n int, flags PTEFlags) unsafe.Pointer {
	if n <= 0 {
		return nil
	}
	v := mem.Memalign(config.PageSize, uintptr(n)*config.PageSize)
	if v == nil {
		return nil
	}
	base := uintptr(v)
	f := flags
	f.HeapOwned = true
	f.Present = false
	for i := 0; i < n; i++ {
		page := base + uintptr(i)*config.PageSize
		if pte := pteFor(page); pte != nil {
			*pte = makeEntry(0, f)
		}
	}
	return v
}

// ReleaseVirtualPages is release_virtual_pages: hand n pages starting at
// ptr back to the heap-owned, not-present state (freeing any physical
// frame that had been faulted in) and return the virtual range to the
// allocator facade.
func ReleaseVirtualPages(ptr unsafe.Pointer, n int) {
	base := uintptr(ptr)
	for i := 0; i < n; i++ {
		page := base + uintptr(i)*config.PageSize
		pte := pteFor(page)
		if pte == nil {
			continue
		}
		if pte.Flags().Present {
			freePhysFrame(uintptr(pte.Flags().Addr) << 12)
		}
		*pte = makeEntry(0, flagsHeapOwned)
	}
	mem.Free(ptr)
}
