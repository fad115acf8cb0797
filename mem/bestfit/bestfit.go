// Package bestfit is the concrete pool mem.Init wires behind the
// allocator facade: a doubly-linked segment list walked for the
// smallest free block that still fits the request, split when a match is
// much bigger than needed and coalesced with neighbors on free. It
// supports any number of backing memory regions threaded onto one list.
package bestfit

import (
	"unsafe"

	"github.com/RIOT-OS/RIOT-sub019/internal/config"
)

// segment is placed at the start of every block, allocated or free.
type segment struct {
	next, prev  *segment
	isAllocated bool
	size        uintptr // total size including this header
}

const segHeaderSize = unsafe.Sizeof(segment{})

// Pool is a best-fit allocator over zero or more backing regions, each
// added via AddPool and threaded onto the same segment list.
type Pool struct {
	head *segment
}

// New returns an empty pool; AddPool must be called at least once before
// Malloc can succeed.
func New() *Pool { return &Pool{} }

func segAt(addr uintptr) *segment { return (*segment)(unsafe.Pointer(addr)) }

func addrOf(s *segment) uintptr { return uintptr(unsafe.Pointer(s)) }

// AddPool registers len bytes at base as one large free segment and
// threads it onto the end of the segment list (first call sets head).
func (p *Pool) AddPool(base unsafe.Pointer, length uintptr) {
	s := segAt(uintptr(base))
	*s = segment{size: length}

	if p.head == nil {
		p.head = s
		return
	}
	last := p.head
	for last.next != nil {
		last = last.next
	}
	last.next = s
	s.prev = last
}

func align(v, a uintptr) uintptr {
	return (v + a - 1) &^ (a - 1)
}

// dataLayout computes, for a segment starting at segAddr, the address of
// the data area (16-byte aligned, matching config.HeapAlignment) and the
// header-pointer slot stored in the 8 bytes immediately before it, the
// same layout kmalloc uses so kfree can recover the segment header from a
// bare data pointer.
func dataLayout(segAddr uintptr) (dataAddr, hdrPtrAddr uintptr) {
	afterHeader := segAddr + segHeaderSize
	dataAddr = align(afterHeader, config.HeapAlignment)
	hdrPtrAddr = dataAddr - unsafe.Sizeof(uintptr(0))
	if hdrPtrAddr < afterHeader {
		dataAddr += config.HeapAlignment
		hdrPtrAddr = dataAddr - unsafe.Sizeof(uintptr(0))
	}
	return
}

func totalSizeFor(segAddr uintptr, size uintptr) uintptr {
	dataAddr, _ := dataLayout(segAddr)
	total := (dataAddr - segAddr) + size
	return align(total, config.HeapAlignment)
}

const minSplitSize = 2 * uintptr(segHeaderSize)

// Malloc returns size bytes from the best-fitting free segment, splitting
// it if the remainder is large enough to host its own header, or nil if
// no free segment is big enough.
func (p *Pool) Malloc(size uintptr) unsafe.Pointer {
	var best *segment
	var bestSlack uintptr = ^uintptr(0)

	for s := p.head; s != nil; s = s.next {
		if s.isAllocated {
			continue
		}
		need := totalSizeFor(addrOf(s), size)
		if s.size < need {
			continue
		}
		slack := s.size - need
		if slack < bestSlack {
			best, bestSlack = s, slack
			if slack == 0 {
				break
			}
		}
	}
	if best == nil {
		return nil
	}

	segAddr := addrOf(best)
	need := totalSizeFor(segAddr, size)
	if bestSlack > minSplitSize {
		newAddr := segAddr + need
		newSeg := segAt(newAddr)
		*newSeg = segment{next: best.next, prev: best, size: best.size - need}
		if newSeg.next != nil {
			newSeg.next.prev = newSeg
		}
		best.next = newSeg
		best.size = need
	}
	best.isAllocated = true

	dataAddr, hdrPtrAddr := dataLayout(segAddr)
	*(*uintptr)(unsafe.Pointer(hdrPtrAddr)) = segAddr
	return unsafe.Pointer(dataAddr)
}

// Memalign allocates size bytes with a caller-specified alignment. The
// segment list only guarantees config.HeapAlignment by construction, so
// for a stricter request this grabs extra room and shifts the data
// pointer forward, recording the real segment header the same way Malloc
// does so Free still finds it.
func (p *Pool) Memalign(align_ uintptr, size uintptr) unsafe.Pointer {
	if align_ <= config.HeapAlignment {
		return p.Malloc(size)
	}
	raw := p.Malloc(size + align_)
	if raw == nil {
		return nil
	}
	rawAddr := uintptr(raw)
	aligned := align(rawAddr, align_)
	if aligned == rawAddr {
		return raw
	}
	hdrPtrAddr := rawAddr - unsafe.Sizeof(uintptr(0))
	segAddr := *(*uintptr)(unsafe.Pointer(hdrPtrAddr))
	*(*uintptr)(unsafe.Pointer(aligned - unsafe.Sizeof(uintptr(0)))) = segAddr
	return unsafe.Pointer(aligned)
}

func segmentFor(ptr unsafe.Pointer) *segment {
	hdrPtrAddr := uintptr(ptr) - unsafe.Sizeof(uintptr(0))
	segAddr := *(*uintptr)(unsafe.Pointer(hdrPtrAddr))
	return segAt(segAddr)
}

// Free marks ptr's segment free and coalesces with free neighbors on
// either side, exactly as kfree does.
func (p *Pool) Free(ptr unsafe.Pointer) {
	seg := segmentFor(ptr)
	seg.isAllocated = false

	for seg.prev != nil && !seg.prev.isAllocated && addrOf(seg.prev)+seg.prev.size == addrOf(seg) {
		prev := seg.prev
		prev.next = seg.next
		prev.size += seg.size
		if seg.next != nil {
			seg.next.prev = prev
		}
		seg = prev
	}
	for seg.next != nil && !seg.next.isAllocated && addrOf(seg)+seg.size == addrOf(seg.next) {
		next := seg.next
		seg.size += next.size
		seg.next = next.next
		if next.next != nil {
			next.next.prev = seg
		}
	}
}

// Realloc grows or shrinks ptr's allocation, copying data to a new block
// when the current segment cannot satisfy the new size in place.
func (p *Pool) Realloc(ptr unsafe.Pointer, size uintptr) unsafe.Pointer {
	if ptr == nil {
		return p.Malloc(size)
	}
	seg := segmentFor(ptr)
	segAddr := addrOf(seg)
	dataAddr, _ := dataLayout(segAddr)
	oldUsable := seg.size - (dataAddr - segAddr)
	if oldUsable >= size {
		return ptr
	}

	newPtr := p.Malloc(size)
	if newPtr == nil {
		return nil
	}
	src := unsafe.Slice((*byte)(ptr), oldUsable)
	dst := unsafe.Slice((*byte)(newPtr), oldUsable)
	copy(dst, src)
	p.Free(ptr)
	return newPtr
}
