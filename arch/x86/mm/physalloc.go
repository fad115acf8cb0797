package mm

import (
	"unsafe"

	"github.com/RIOT-OS/RIOT-sub019/internal/config"
)

// Physical frames are tracked with an intrusive free list threaded
// through the frames themselves while they are free: an unmapped free
// frame has no other use for its first machine word, so there is no
// separate metadata array to size or protect.
var physFreeHead uintptr

// AddPhysicalRegion donates [start, end), already page-aligned by the
// caller, to the physical frame allocator used to back demand-heap
// pages and MMIO releases.
func AddPhysicalRegion(start, end uintptr) {
	for addr := start; addr+config.PageSize <= end; addr += config.PageSize {
		freePhysFrame(addr)
	}
}

func allocPhysFrame() (uintptr, bool) {
	if physFreeHead == 0 {
		return 0, false
	}
	addr := physFreeHead
	physFreeHead = *(*uintptr)(unsafe.Pointer(addr))
	return addr, true
}

func freePhysFrame(addr uintptr) {
	*(*uintptr)(unsafe.Pointer(addr)) = physFreeHead
	physFreeHead = addr
}
