// Package boot is the board-independent half of boot glue: wiring
// kernel/thread, kernel/sched, kernel/ticker and mem together, spawning
// the idle/main/reaper threads, and handing off to the arch port's
// StartThreading. Bring-up is two-phase: stage every bookkeeping struct
// first, then hand control to the scheduler in one non-returning call.
//
// Per-board files (boot_native.go, boot_x86.go, and the Cortex-M/ARM7/
// MSP430 equivalents) each do whatever arch-specific bring-up precedes
// this point, then call KernelInit with a populated Config. Exactly one
// of them is compiled into any given binary, selected by its build tag.
package boot

import (
	"unsafe"

	"github.com/RIOT-OS/RIOT-sub019/arch"
	"github.com/RIOT-OS/RIOT-sub019/internal/config"
	"github.com/RIOT-OS/RIOT-sub019/internal/klog"
	"github.com/RIOT-OS/RIOT-sub019/kernel/reaper"
	"github.com/RIOT-OS/RIOT-sub019/kernel/sched"
	"github.com/RIOT-OS/RIOT-sub019/kernel/thread"
	"github.com/RIOT-OS/RIOT-sub019/kernel/ticker"
	"github.com/RIOT-OS/RIOT-sub019/mem"
)

// Config collects everything a board's bring-up code has to hand
// KernelInit once its own arch-specific setup is done.
type Config struct {
	Port   arch.Port
	Pool   mem.Pool
	Vtimer ticker.Vtimer

	// NotHwtimer reports whether a given priority belongs to the
	// dedicated hwtimer thread (x86 only; nil on every other board).
	NotHwtimer func(priority uint8) bool

	// HeapBase/HeapLen seed the allocator facade's first pool. Boards
	// whose memory core lazily builds the demand heap via their own mm
	// package (x86) leave HeapBase nil and call mem.AddGlobalPool or
	// mm.BuildDemandHeap themselves before KernelInit.
	HeapBase unsafe.Pointer
	HeapLen  uintptr

	MainEntry arch.EntryFunc
	MainArg   unsafe.Pointer
	MainName  string

	MainStack, IdleStack, ReaperStack             unsafe.Pointer
	MainStackSize, IdleStackSize, ReaperStackSize uintptr
}

// taskExitSetter is the optional interface every arch.Port implementation
// satisfies via a SetTaskExit method that forwards to its package-level
// SetTaskExit (see e.g. cortexm.SetTaskExit); it lets boot wire
// thread_task_exit without importing every arch package by name.
type taskExitSetter interface {
	SetTaskExit(fn func())
}

// depletionExiter is the optional interface arch/native's Port satisfies:
// "if fewer than two meaningful threads remain (only idle left, on the
// host), the host port exits with success." Hardware ports have no
// process to exit, so they don't implement it and installTaskExit's
// depletion check below is a silent no-op for them.
type depletionExiter interface {
	ExitIfDepleted(readyCount int)
}

// KernelInit is kernel_init: wire the scheduler and allocator, spawn the
// reaper, idle and main threads, arm the preemption ticker, and hand off
// to the arch port. Never returns.
func KernelInit(cfg Config) {
	mem.Init(cfg.Pool, cfg.Port)
	if cfg.HeapBase != nil {
		mem.AddGlobalPool(cfg.HeapBase, cfg.HeapLen)
	}

	sched.Init(cfg.Port.Yield)
	ticker.Init(cfg.Vtimer, cfg.NotHwtimer)
	installTaskExit(cfg.Port)

	thread.Create(cfg.Port, cfg.ReaperStack, cfg.ReaperStackSize, config.PriorityReaper,
		thread.CreateWoutYield, reaperEntry(cfg.Port), nil, "reaper")
	thread.Create(cfg.Port, cfg.IdleStack, cfg.IdleStackSize, config.PriorityIdle,
		thread.CreateWoutYield, idleEntry(cfg.Port), nil, "idle")
	thread.Create(cfg.Port, cfg.MainStack, cfg.MainStackSize, config.PriorityMain,
		thread.CreateWoutYield, cfg.MainEntry, cfg.MainArg, cfg.MainName)

	ticker.SetActive(true)
	cfg.Port.StartThreading()
	klog.Faultf("boot: StartThreading returned")
}

func reaperEntry(port arch.Port) arch.EntryFunc {
	return func(arg unsafe.Pointer) {
		reaper.Run(port.Yield)
	}
}

func idleEntry(port arch.Port) arch.EntryFunc {
	return func(arg unsafe.Pointer) {
		for {
			port.Yield()
		}
	}
}

// installTaskExit registers the per-arch taskExitAddr trampoline every
// initial stack frame's LR/return slot resolves to: thread_task_exit.
// It looks up the active thread, hands its heap-owned stack to the
// reaper, unlinks the TCB via sched.TaskExit, then performs the
// non-returning cpu_switch_context_exit.
func installTaskExit(port arch.Port) {
	setter, ok := port.(taskExitSetter)
	if !ok {
		klog.Faultf("boot: arch.Port %T does not implement SetTaskExit", port)
		return
	}
	setter.SetTaskExit(func() {
		t := sched.ActiveThread()
		if t == nil {
			klog.Faultf("boot: thread_task_exit with no active thread")
			return
		}
		sched.TaskExit(t, func(exited *thread.TCB) {
			if exited.StackHeapOwned && exited.StackBase != nil {
				reaper.Send(exited.StackBase, mem.Free)
			}
		})
		if de, ok := port.(depletionExiter); ok {
			// The reaper never blocks, so it is always ready or active;
			// leave it out of the count handed to the port.
			de.ExitIfDepleted(sched.ReadyCount() - 1)
		}
		port.SwitchContextExit()
	})
}
