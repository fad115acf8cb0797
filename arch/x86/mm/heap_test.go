package mm

import (
	"testing"
	"unsafe"

	"github.com/RIOT-OS/RIOT-sub019/internal/config"
)

type recordingPool struct {
	base   unsafe.Pointer
	length uintptr
	calls  int
}

func (p *recordingPool) AddPool(base unsafe.Pointer, length uintptr) {
	p.base, p.length, p.calls = base, length, p.calls+1
}
func (p *recordingPool) Malloc(size uintptr) unsafe.Pointer { return nil }
func (p *recordingPool) Free(ptr unsafe.Pointer)             {}
func (p *recordingPool) Memalign(align, size uintptr) unsafe.Pointer { return nil }
func (p *recordingPool) Realloc(ptr unsafe.Pointer, size uintptr) unsafe.Pointer {
	return nil
}

func TestBuildDemandHeapMarksHeapOwnedNotPresent(t *testing.T) {
	region := MemoryRegion{Start: 0x00300000, End: 0x00300000 + 3*config.PageSize}
	pool := &recordingPool{}

	BuildDemandHeap([]MemoryRegion{region}, 0, pool)

	for addr := region.Start; addr < region.End; addr += config.PageSize {
		pte := pteFor(addr)
		if pte == nil {
			t.Fatalf("pteFor(%#x) returned nil", addr)
		}
		f := pte.Flags()
		if f.Present {
			t.Fatalf("page %#x should not be Present before any touch", addr)
		}
		if !f.HeapOwned {
			t.Fatalf("page %#x should be marked HeapOwned", addr)
		}
	}
	if pool.calls != 1 {
		t.Fatalf("expected AddPool to be called once, got %d", pool.calls)
	}
	if pool.base != unsafe.Pointer(region.Start) || pool.length != region.End-region.Start {
		t.Fatalf("AddPool got base=%p length=%#x, want base=%#x length=%#x",
			pool.base, pool.length, region.Start, region.End-region.Start)
	}
}

func TestBuildDemandHeapClampsBelowKernelMemoryEnd(t *testing.T) {
	region := MemoryRegion{Start: 0x00200000, End: 0x00200000 + 4*config.PageSize}
	kernelEnd := region.Start + 2*config.PageSize
	pool := &recordingPool{}

	BuildDemandHeap([]MemoryRegion{region}, kernelEnd, pool)

	if pool.base != unsafe.Pointer(kernelEnd) {
		t.Fatalf("expected the donated range to start at kernelMemoryEnd %#x, got %p", kernelEnd, pool.base)
	}
}

func TestBuildDemandHeapSkipsRegionFullyBelowKernelMemoryEnd(t *testing.T) {
	region := MemoryRegion{Start: 0x00100000, End: 0x00100000 + config.PageSize}
	pool := &recordingPool{}

	BuildDemandHeap([]MemoryRegion{region}, region.End+config.PageSize, pool)

	if pool.calls != 0 {
		t.Fatal("expected a region entirely consumed by the kernel to be skipped")
	}
}
