package idt

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/RIOT-OS/RIOT-sub019/internal/config"
	"github.com/RIOT-OS/RIOT-sub019/internal/klog"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	klog.SetSink(&buf)
	t.Cleanup(func() { klog.SetSink(os.Stderr) })
	return &buf
}

// fakeFrames installs a synthetic 32-bit address space for the EBP walk:
// mem maps word addresses to values, and anything present in mem is
// considered readable.
func fakeFrames(t *testing.T, mem map[uintptr]uint32) {
	t.Helper()
	oldLoad, oldRead := loadWordFn, FrameReadable
	t.Cleanup(func() { loadWordFn, FrameReadable = oldLoad, oldRead })
	loadWordFn = func(addr uintptr) uint32 { return mem[addr] }
	FrameReadable = func(addr uintptr) bool {
		_, ok := mem[addr]
		return ok
	}
}

func TestExceptionNameDecodesKnownVectors(t *testing.T) {
	cases := map[int]string{
		0x00: "#DE divide error",
		0x0D: "#GP general protection fault",
		0x0E: "#PF page fault",
		0x21: "hardware IRQ",
		0x7F: "unknown vector",
	}
	for vec, want := range cases {
		if got := ExceptionName(vec); got != want {
			t.Fatalf("ExceptionName(%#x) = %q, want %q", vec, got, want)
		}
	}
}

func TestDumpFaultWalksEBPChain(t *testing.T) {
	buf := captureLog(t)

	// Three chained frames, each [saved EBP][return address], ending in a
	// nil link.
	const f0, f1, f2 = 0x9000, 0x9020, 0x9040
	fakeFrames(t, map[uintptr]uint32{
		f0: f1, f0 + 4: 0x1000,
		f1: f2, f1 + 4: 0x1001,
		f2: 0, f2 + 4: 0x1002,
	})

	oldCR := ReadControlRegs
	t.Cleanup(func() { ReadControlRegs = oldCR })
	ReadControlRegs = func() ControlRegs {
		return ControlRegs{CR0: 0x80000011, CR2: 0xDEAD0000, CR3: 0x1000, CR4: 0xA0}
	}

	ctx := &InterruptedCtx{EBP: f0, EIP: 0x2000, CS: 0x08, EFLAGS: eflagsIF}
	DumpFault(0x0D, ctx, 0x1234)

	out := buf.String()
	for _, want := range []string{
		"#GP general protection fault",
		"err=0x1234",
		"cr2=dead0000",
		"ret=00001000",
		"ret=00001001",
		"ret=00001002",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("fault dump missing %q:\n%s", want, out)
		}
	}
}

func TestDumpFaultBoundsTheWalk(t *testing.T) {
	buf := captureLog(t)

	// A chain with far more frames than the walk is allowed to print.
	mem := map[uintptr]uint32{}
	base := uintptr(0x8000)
	for i := 0; i < 3*config.MaxStackTraceFrames; i++ {
		addr := base + uintptr(i)*8
		mem[addr] = uint32(addr + 8)
		mem[addr+4] = 0xBEEF
	}
	fakeFrames(t, mem)

	ctx := &InterruptedCtx{EBP: uint32(base)}
	DumpFault(0x06, ctx, 0)

	if got := strings.Count(buf.String(), "ret="); got > config.MaxStackTraceFrames {
		t.Fatalf("stack walk printed %d frames, bound is %d", got, config.MaxStackTraceFrames)
	}
}
