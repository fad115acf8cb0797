package mm

import (
	"testing"

	"github.com/RIOT-OS/RIOT-sub019/internal/config"
)

func TestPackUnpackRoundTrip(t *testing.T) {
	f := PTEFlags{Present: true, Write: true, User: true, Global: true, Addr: 0xABCDEF, XD: true}
	got := UnpackPTE(f.Pack())
	if got != f {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, f)
	}
}

func TestMakeEntrySetsAddrFromPhysAddr(t *testing.T) {
	e := makeEntry(0x00401000, PTEFlags{Present: true, Write: true})
	f := e.Flags()
	if f.Addr != 0x00401000>>12 {
		t.Fatalf("Addr = %#x, want %#x", f.Addr, uint64(0x00401000>>12))
	}
	if !f.Present || !f.Write {
		t.Fatalf("expected Present and Write to survive packing, got %+v", f)
	}
}

func TestPteForRejectsAddressBeyondStaticRange(t *testing.T) {
	tooFar := uintptr(config.NumStaticPT) * uintptr(config.PTEntries) * config.PageSize
	if pteFor(tooFar) != nil {
		t.Fatal("expected pteFor to return nil outside the statically mapped range")
	}
}

func TestWithoutXDIfUnavailableClearsBit(t *testing.T) {
	old := xdAvailable
	defer func() { xdAvailable = old }()

	xdAvailable = false
	f := withoutXDIfUnavailable(PTEFlags{XD: true})
	if f.XD {
		t.Fatal("expected XD cleared when xdAvailable is false")
	}

	xdAvailable = true
	f = withoutXDIfUnavailable(PTEFlags{XD: true})
	if !f.XD {
		t.Fatal("expected XD preserved when xdAvailable is true")
	}
}
