// Package config collects the board/kernel tunables that RIOT expresses
// as Kconfig symbols and preprocessor defines, as plain typed constants.
package config

// Thread priorities. 0 is highest, "priority in
// [0, N_PRIORITIES) where 0 is highest".
const (
	NumPriorities = 16

	PriorityMin  = NumPriorities - 1
	PriorityIdle = NumPriorities - 1
	PriorityMain = NumPriorities / 2

	// PriorityReaper sits one above idle: low enough to never compete
	// with real work, but high enough to reclaim an exited thread's
	// stack before the idle thread's next turn rather than queuing
	// behind it.
	PriorityReaper = PriorityIdle - 1
)

// StackMarker is the sentinel word every arch port writes into the top
// word of a thread's stack buffer (stackBase+stackSize-4). A stack whose
// marker has been overwritten has overflowed.
const StackMarker uint32 = 0x77777777

// StackTestPattern is the fill byte written across unused stack when
// CREATE_STACKTEST is requested, so thread_measure_stack_usage can later
// find the high-water mark by scanning for the first byte that differs.
const StackTestPattern byte = 0x77

// MultitaskingHz is the default preemption-ticker rate.
const MultitaskingHz = 33

// MaxPids bounds the arena-indexed TCB table that every intrusive list in
// this kernel links through by index rather than raw back-reference.
const MaxPids = 64

// ISRStackSize is the size, in bytes, of the dedicated ISR stack the x86
// dispatcher switches onto.
const ISRStackSize = 8192

// HeapAlignment is the byte alignment every allocator-facade entry point
// rounds requests up to.
const HeapAlignment = 16

// MaxStackTraceFrames bounds the EBP-chain walk in the fault dump,
// stopping at 30 frames.
const MaxStackTraceFrames = 30

// x86 PAE paging layout: a 4-entry PDPT, NumStaticPD page
// directories and NumStaticPT page tables statically allocated. Each PD
// slot points at one page table covering 2MiB, and each PD gets
// NumStaticPT/NumStaticPD of them.
const (
	PageSize    = 4096
	NumStaticPD = 4
	NumStaticPT = 512
	PDEntries   = 512
	PTEntries   = 512
)
