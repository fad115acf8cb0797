//go:build x86

// The x86-32 board: PC-compatible hardware running in 32-bit protected
// mode under PAE paging, one CPU, ring 0 only. This file owns the
// board_init/cpu_init work for this board (GDT, IDT, PIC remap, PAE
// paging, the #PF handler, the PIT timer, the demand heap) before handing
// off to the arch-neutral KernelInit.
//
// Bring-up order in X86Boot: GDT -> IDT -> PIC remap -> #PF handler ->
// PIT on IRQ0 -> page tables -> demand heap -> kernel_init. No UART is
// initialized here and no shutdown/reboot hook is installed; klog writes
// to its default sink.
package boot

import (
	"unsafe"

	"github.com/RIOT-OS/RIOT-sub019/arch"
	"github.com/RIOT-OS/RIOT-sub019/arch/x86"
	"github.com/RIOT-OS/RIOT-sub019/arch/x86/gdt"
	"github.com/RIOT-OS/RIOT-sub019/arch/x86/idt"
	"github.com/RIOT-OS/RIOT-sub019/arch/x86/mm"
	"github.com/RIOT-OS/RIOT-sub019/arch/x86/pic"
	"github.com/RIOT-OS/RIOT-sub019/internal/config"
	"github.com/RIOT-OS/RIOT-sub019/internal/klog"
	"github.com/RIOT-OS/RIOT-sub019/kernel/sched"
	"github.com/RIOT-OS/RIOT-sub019/mem/bestfit"
)

const (
	x86MainStackSize   = 32 << 10
	x86IdleStackSize   = 4 << 10
	x86ReaperStackSize = 4 << 10

	// priorityHwtimer is one above the reaper: the priority
	// ticker.schedRan's "is also not the hwtimer thread" carve-out tests
	// against. This board creates no thread at it; PIT callbacks run
	// directly in pitIRQHandler.
	priorityHwtimer = config.PriorityReaper - 1

	// x86PhysMemEnd is the top of usable RAM this board reports. A real
	// bring-up walks a multiboot/e820 map; this board reports one static
	// region, the same single-region simplification boot_native.go uses
	// for its own heap.
	x86PhysMemEnd = 64 << 20
)

// portIO implements pic.IO over the real inb/outb primitives; x86 port
// I/O is not memory-mapped, so it can't reuse the plain load/store
// go:linkname pair every other MMIO access in this tree goes through.
type portIO struct{}

func (portIO) Out(port uint16, val uint8) { x86_outb(port, val) }
func (portIO) In(port uint16) uint8       { return x86_inb(port) }

//go:linkname x86_outb x86_outb
//go:nosplit
func x86_outb(port uint16, val uint8)

//go:linkname x86_inb x86_inb
//go:nosplit
func x86_inb(port uint16) uint8

// x86_trampoline_addr resolves a vector number to the address of its
// DECLARE_INT-generated entry stub (x86_trampolines.s), in the fixed order
// idt.Build iterates: 0x00-0x12, then 0x20-0x2F.
//
//go:linkname x86_trampoline_addr x86_trampoline_addr
//go:nosplit
func x86_trampoline_addr(vec int) uint32

// x86LoadGDT/x86LoadIDT execute lgdt/lidt off the descriptor-table images
// gdt.Load/idt.Load already built.
//
//go:linkname x86_load_gdt x86_load_gdt
//go:nosplit
func x86_load_gdt(gdtr *[6]byte)

//go:linkname x86_load_idt x86_load_idt
//go:nosplit
func x86_load_idt(idtr *[6]byte)

func x86LoadGDT() { g := gdt.Load(); x86_load_gdt(&g) }
func x86LoadIDT() { i := idt.Load(); x86_load_idt(&i) }

// X86Boot is startup()+board_init()+kernel_init() for the PC board.
// mainEntry is the caller-supplied program that runs as the main thread.
func X86Boot(mainEntry func(arg unsafe.Pointer), mainArg unsafe.Pointer, mainName string) {
	klog.SetLevel(klog.Info)

	gdt.Build()
	x86LoadGDT()

	idt.Build(func(vec int) uint32 { return x86_trampoline_addr(vec) })
	idt.SwitchRequested = sched.ContextSwitchRequested
	x86LoadIDT()

	pic.Init(portIO{})
	mm.InstallPageFaultHandler()
	idt.ReadControlRegs = func() idt.ControlRegs {
		cr0, cr2, cr3, cr4 := mm.ControlRegisters()
		return idt.ControlRegs{CR0: cr0, CR2: cr2, CR3: cr3, CR4: cr4}
	}
	idt.FrameReadable = mm.PageReadable

	vt := &pitVtimer{}
	pic.SetHandler(0, pitIRQHandler(vt))
	pic.EnableIRQ(0)

	port := &x86.Port{}
	klog.SetHaltFn(port.Halt)
	x86.SetScheduler(func() arch.StackPointer { return sched.Run().SP })
	x86.SetSwitchRequester(sched.RequestContextSwitch)

	buildPageTables()

	// mm.BuildDemandHeap wants a mem.Pool to add its backing range to
	// directly; construct the pool here and hand the same instance to
	// KernelInit's Config.Pool, so mem.Init only installs it into the
	// facade rather than re-adding the range (boot.go's doc comment on
	// Config.HeapBase calls this split out by name).
	pool := bestfit.New()
	kernelEnd := linkerKernelEnd()
	mm.AddPhysicalRegion(kernelEnd&^(config.PageSize-1), uintptr(x86PhysMemEnd)&^(config.PageSize-1))
	mm.BuildDemandHeap([]mm.MemoryRegion{{Start: kernelEnd, End: x86PhysMemEnd}}, kernelEnd, pool)

	KernelInit(Config{
		Port:       port,
		Pool:       pool,
		Vtimer:     vt,
		NotHwtimer: func(priority uint8) bool { return priority == priorityHwtimer },

		MainEntry: mainEntry,
		MainArg:   mainArg,
		MainName:  mainName,

		MainStack:       allocBootStack(x86MainStackSize),
		MainStackSize:   x86MainStackSize,
		IdleStack:       allocBootStack(x86IdleStackSize),
		IdleStackSize:   x86IdleStackSize,
		ReaperStack:     allocBootStack(x86ReaperStackSize),
		ReaperStackSize: x86ReaperStackSize,
	})
}

// bootHeapRegion is a pre-reserved carve-out thread stacks come from: they
// are needed before BuildDemandHeap's own pages have taken their first #PF
// and become writable.
var (
	bootHeapRegion [1 << 16]byte // 64 KiB
	bootHeapOffset uintptr
)

func allocBootStack(size uintptr) unsafe.Pointer {
	bootHeapOffset = (bootHeapOffset + 15) &^ 15
	p := unsafe.Pointer(&bootHeapRegion[bootHeapOffset])
	bootHeapOffset += size
	return p
}

// buildPageTables assembles the KernelSection list from the linker's
// section boundaries and calls mm.Build. The PDPT/PD/PT physical bases
// are statically allocated inside the mm package itself (see
// arch/x86/mm/pte.go's pdpt/pds/pts arrays); this board only needs to hand
// mm.Build their link-time addresses.
func buildPageTables() {
	sections := []mm.KernelSection{
		{Start: linkerTextStart(), End: linkerTextEnd(), Flags: mm.PTEFlags{Present: true, User: true, Global: true}},
		{Start: linkerRodataStart(), End: linkerRodataEnd(), Flags: mm.PTEFlags{Present: true, User: true, Global: true, XD: true}},
		{Start: linkerDataStart(), End: linkerDataEnd(), Flags: mm.PTEFlags{Present: true, Write: true, User: true, Global: true, XD: true}},
		{Start: linkerBssStart(), End: linkerKernelEnd(), Flags: mm.PTEFlags{Present: true, Write: true, User: true, Global: true, XD: true}},
	}
	mm.Build(sections, mm.PDPTPhysBase(), mm.PDsPhysBase(), mm.PTsPhysBase())
}
