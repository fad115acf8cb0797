package mm

import (
	"testing"
	"unsafe"

	"github.com/RIOT-OS/RIOT-sub019/internal/config"
)

func withPhysFrames(t *testing.T, n int) uintptr {
	t.Helper()
	buf := make([]byte, (n+1)*config.PageSize)
	t.Cleanup(func() { _ = buf })

	base := uintptr(unsafe.Pointer(&buf[0]))
	base = (base + config.PageSize - 1) &^ (config.PageSize - 1)

	old := physFreeHead
	physFreeHead = 0
	t.Cleanup(func() { physFreeHead = old })

	AddPhysicalRegion(base, base+uintptr(n)*config.PageSize)
	return base
}

func TestAllocPhysFrameReturnsDonatedFrames(t *testing.T) {
	withPhysFrames(t, 2)

	a, ok := allocPhysFrame()
	if !ok {
		t.Fatal("expected a frame to be available")
	}
	b, ok := allocPhysFrame()
	if !ok {
		t.Fatal("expected a second frame to be available")
	}
	if a == b {
		t.Fatalf("allocPhysFrame returned the same frame twice: %#x", a)
	}

	if _, ok := allocPhysFrame(); ok {
		t.Fatal("expected the pool to be exhausted after 2 allocations")
	}
}

func TestFreePhysFrameMakesItAllocatableAgain(t *testing.T) {
	withPhysFrames(t, 1)

	a, ok := allocPhysFrame()
	if !ok {
		t.Fatal("expected the single donated frame to be available")
	}
	freePhysFrame(a)

	b, ok := allocPhysFrame()
	if !ok {
		t.Fatal("expected the freed frame to be allocatable again")
	}
	if a != b {
		t.Fatalf("expected to get the same frame back, got %#x want %#x", b, a)
	}
}
