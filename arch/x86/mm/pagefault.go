package mm

import (
	"unsafe"

	"github.com/RIOT-OS/RIOT-sub019/arch/x86/idt"
	"github.com/RIOT-OS/RIOT-sub019/internal/config"
	"github.com/RIOT-OS/RIOT-sub019/internal/klog"
)

const vectorPageFault = 0x0E

// pageFaultDebugMarker is the byte value a freshly demand-paged frame is
// filled with. It is zero, so the whole page reads as zeros; no separate
// debug marker word is written into it.
const pageFaultDebugMarker = 0x00

// InstallPageFaultHandler registers the #PF vector with idt, translating
// a not-present fault on a heap-owned page into a lazy-page fixup and
// anything else into a fatal dump.
func InstallPageFaultHandler() {
	idt.SetHandler(vectorPageFault, handlePageFault)
}

// handlePageFault is the #PF handler registered with idt. The faulting
// linear address lives in CR2, not in errorCode or ctx, so it's read here
// and handed to resolvePageFault, which carries the fixup-vs-fatal logic
// on its own so it can be exercised directly against a chosen address.
func handlePageFault(vec int, ctx *idt.InterruptedCtx, errorCode uint32) {
	resolvePageFault(readCR2(), errorCode, ctx.EIP)
}

// resolvePageFault decides between a recoverable lazy-page fixup (a
// not-present fault on a heap-owned page) and a fatal dump.
func resolvePageFault(faultAddr uintptr, errorCode uint32, eip uint32) {
	pte := pteFor(faultAddr)
	if pte == nil {
		klog.Faultf("mm: #PF at %#x outside the static page-table range (err=%#x)", faultAddr, errorCode)
		return
	}

	flags := pte.Flags()
	present := errorCode&1 != 0
	if present || !flags.HeapOwned {
		klog.Faultf("mm: fatal #PF at %#x eip=%#x err=%#x (present=%v heapOwned=%v)",
			faultAddr, eip, errorCode, present, flags.HeapOwned)
		return
	}

	frame, ok := allocPhysFrame()
	if !ok {
		klog.Faultf("mm: #PF at %#x could not be fixed up: out of physical frames", faultAddr)
		return
	}

	flags.Present = true
	page := faultAddr &^ (config.PageSize - 1)
	*pte = makeEntry(frame, withoutXDIfUnavailable(flags))

	zeroPageFn(page)
}

// zeroPageFn is a var so tests can substitute a spy instead of writing
// through the raw identity-mapped address zeroPage expects.
var zeroPageFn = zeroPage

//go:linkname read_cr2 read_cr2
func read_cr2() uint32

func readCR2() uintptr { return uintptr(read_cr2()) }

func zeroPage(va uintptr) {
	b := unsafe.Slice((*byte)(unsafe.Pointer(va)), config.PageSize)
	for i := range b {
		b[i] = pageFaultDebugMarker
	}
}
