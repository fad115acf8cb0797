package bestfit

import (
	"testing"
	"unsafe"
)

func newPoolWithRegion(t *testing.T, size uintptr) *Pool {
	t.Helper()
	buf := make([]byte, size)
	p := New()
	p.AddPool(unsafe.Pointer(&buf[0]), size)
	t.Cleanup(func() { _ = buf }) // keep buf alive for the life of the test
	return p
}

func TestMallocReturnsAlignedNonNilPointer(t *testing.T) {
	p := newPoolWithRegion(t, 4096)
	ptr := p.Malloc(64)
	if ptr == nil {
		t.Fatal("Malloc returned nil for a request that fits")
	}
	if uintptr(ptr)%16 != 0 {
		t.Fatalf("data pointer %#x not 16-byte aligned", uintptr(ptr))
	}
}

func TestMallocFailsWhenTooBig(t *testing.T) {
	p := newPoolWithRegion(t, 256)
	if ptr := p.Malloc(4096); ptr != nil {
		t.Fatal("Malloc should fail for a request larger than the pool")
	}
}

func TestFreeThenReallocSameSizeReusesSpace(t *testing.T) {
	p := newPoolWithRegion(t, 4096)
	a := p.Malloc(128)
	b := p.Malloc(128)
	if a == nil || b == nil {
		t.Fatal("setup allocations failed")
	}
	p.Free(a)
	c := p.Malloc(128)
	if c == nil {
		t.Fatal("Malloc after Free should succeed")
	}
	if uintptr(c) != uintptr(a) {
		t.Fatalf("expected coalesced/reused segment at %#x, got %#x", uintptr(a), uintptr(c))
	}
}

func TestFreeCoalescesAdjacentSegments(t *testing.T) {
	p := newPoolWithRegion(t, 8192)
	a := p.Malloc(64)
	b := p.Malloc(64)
	c := p.Malloc(64)
	p.Free(a)
	p.Free(b)
	p.Free(c)

	big := p.Malloc(4096)
	if big == nil {
		t.Fatal("expected freeing all three neighbors to coalesce into one large segment")
	}
}

func TestReallocGrowMovesData(t *testing.T) {
	p := newPoolWithRegion(t, 4096)
	ptr := p.Malloc(16)
	b := unsafe.Slice((*byte)(ptr), 16)
	for i := range b {
		b[i] = byte(i)
	}

	grown := p.Realloc(ptr, 512)
	if grown == nil {
		t.Fatal("Realloc should succeed when the pool has room")
	}
	gb := unsafe.Slice((*byte)(grown), 16)
	for i := range gb {
		if gb[i] != byte(i) {
			t.Fatalf("Realloc lost data at byte %d: got %d want %d", i, gb[i], i)
		}
	}
}

func TestReallocShrinkKeepsSamePointer(t *testing.T) {
	p := newPoolWithRegion(t, 4096)
	ptr := p.Malloc(512)
	shrunk := p.Realloc(ptr, 16)
	if shrunk != ptr {
		t.Fatalf("shrinking in place should keep the same pointer, got %#x want %#x", uintptr(shrunk), uintptr(ptr))
	}
}

func TestMemalignRespectsStrictAlignment(t *testing.T) {
	p := newPoolWithRegion(t, 4096)
	ptr := p.Memalign(256, 64)
	if ptr == nil {
		t.Fatal("Memalign failed")
	}
	if uintptr(ptr)%256 != 0 {
		t.Fatalf("pointer %#x not aligned to 256", uintptr(ptr))
	}
}

func TestMemalignedPointerIsFreeable(t *testing.T) {
	p := newPoolWithRegion(t, 4096)
	ptr := p.Memalign(256, 64)
	if ptr == nil {
		t.Fatal("Memalign failed")
	}
	p.Free(ptr)
	again := p.Malloc(64)
	if again == nil {
		t.Fatal("pool should still be usable after freeing an aligned allocation")
	}
}
