package boot

import (
	"runtime"
	"sync"
	"testing"
	"time"
	"unsafe"

	"github.com/RIOT-OS/RIOT-sub019/arch"
	"github.com/RIOT-OS/RIOT-sub019/arch/native"
	"github.com/RIOT-OS/RIOT-sub019/internal/config"
	"github.com/RIOT-OS/RIOT-sub019/kernel/reaper"
	"github.com/RIOT-OS/RIOT-sub019/kernel/sched"
	"github.com/RIOT-OS/RIOT-sub019/kernel/thread"
	"github.com/RIOT-OS/RIOT-sub019/mem"
	"github.com/RIOT-OS/RIOT-sub019/mem/bestfit"
)

// exitPort is a minimal arch.Port that captures the thread_task_exit
// closure installTaskExit wires up, so tests can invoke it directly
// instead of needing a real context switch to reach it.
type exitPort struct {
	taskExit func()
}

var _ arch.Port = (*exitPort)(nil)

func (p *exitPort) StackInit(entry arch.EntryFunc, arg unsafe.Pointer, stackBase unsafe.Pointer, stackSize uintptr) arch.StackPointer {
	return arch.StackPointer(stackBase)
}
func (p *exitPort) StartThreading()      {}
func (p *exitPort) Yield()               {}
func (p *exitPort) SwitchContextExit()   {}
func (p *exitPort) DisableIRQ() bool     { return true }
func (p *exitPort) EnableIRQ()           {}
func (p *exitPort) RestoreIRQ(bool)      {}
func (p *exitPort) Halt()                {}
func (p *exitPort) Reboot()              {}
func (p *exitPort) SetTaskExit(fn func()) { p.taskExit = fn }

// recordingFreePool satisfies mem.Pool and reports every Free through a
// channel, so a test can watch the reaper hand an exited stack back.
type recordingFreePool struct {
	freed chan unsafe.Pointer
}

func (p *recordingFreePool) AddPool(base unsafe.Pointer, length uintptr)          {}
func (p *recordingFreePool) Malloc(size uintptr) unsafe.Pointer                   { return nil }
func (p *recordingFreePool) Memalign(align, size uintptr) unsafe.Pointer          { return nil }
func (p *recordingFreePool) Realloc(ptr unsafe.Pointer, size uintptr) unsafe.Pointer { return nil }
func (p *recordingFreePool) Free(ptr unsafe.Pointer)                              { p.freed <- ptr }

func TestTaskExitHandsHeapOwnedStackToReaper(t *testing.T) {
	port := &exitPort{}
	pool := &recordingFreePool{freed: make(chan unsafe.Pointer, 1)}
	mem.Init(pool, port)
	sched.Init(port.Yield)
	installTaskExit(port)
	if port.taskExit == nil {
		t.Fatal("installTaskExit did not wire the task-exit closure")
	}

	stack := make([]byte, 256)
	base := unsafe.Pointer(&stack[0])
	pid := thread.Create(port, base, 256, 5, thread.CreateWoutYield|thread.CreateHeapStack,
		func(unsafe.Pointer) {}, nil, "heap-stacked")
	if pid == thread.InvalidPID {
		t.Fatal("thread.Create failed")
	}
	sched.Run()

	before := reaper.Pending()
	port.taskExit()
	if got := reaper.Pending(); got != before+1 {
		t.Fatalf("reaper.Pending() = %d after exit, want %d", got, before+1)
	}

	go reaper.Run(func() { runtime.Goexit() })
	select {
	case freed := <-pool.freed:
		if freed != base {
			t.Fatalf("reaper freed %p, want the exited thread's stack %p", freed, base)
		}
	case <-time.After(time.Second):
		t.Fatal("reaper never freed the exited thread's stack")
	}
}

func TestTaskExitLeavesCallerOwnedStackAlone(t *testing.T) {
	port := &exitPort{}
	pool := &recordingFreePool{freed: make(chan unsafe.Pointer, 1)}
	mem.Init(pool, port)
	sched.Init(port.Yield)
	installTaskExit(port)

	stack := make([]byte, 256)
	pid := thread.Create(port, unsafe.Pointer(&stack[0]), 256, 5, thread.CreateWoutYield,
		func(unsafe.Pointer) {}, nil, "caller-stacked")
	if pid == thread.InvalidPID {
		t.Fatal("thread.Create failed")
	}
	sched.Run()

	before := reaper.Pending()
	port.taskExit()
	if got := reaper.Pending(); got != before {
		t.Fatalf("reaper.Pending() = %d after exit, want %d (stack is the caller's)", got, before)
	}
}

// noopVtimer stands in for a real timer subsystem in tests that drive
// every context switch explicitly through yields.
type noopVtimer struct{}

func (noopVtimer) Set(d time.Duration, callback func()) {}
func (noopVtimer) Cancel()                              {}

// TestKernelRunsSeedScenarios boots the full kernel on the host port and
// replays two of the end-to-end scenarios a board's default application
// demonstrates: two equal-priority threads alternating, and a
// higher-priority thread running to completion before thread_create
// returns to its creator.
func TestKernelRunsSeedScenarios(t *testing.T) {
	port := &native.Port{}
	native.SetScheduler(sched.Run)
	native.SetCurrentPID(sched.ActivePID)

	var (
		mu  sync.Mutex
		log []string
	)
	appendLog := func(s string) {
		mu.Lock()
		log = append(log, s)
		mu.Unlock()
	}

	const rounds = 4
	var preempted bool
	done := make(chan struct{})

	mainEntry := func(arg unsafe.Pointer) {
		peerStack := make([]byte, 32<<10)
		thread.Create(port, unsafe.Pointer(&peerStack[0]), uintptr(len(peerStack)),
			config.PriorityMain, thread.CreateWoutYield, func(unsafe.Pointer) {
				for i := 0; i < rounds; i++ {
					appendLog("thread #2")
					thread.Yield()
				}
			}, nil, "peer")

		for i := 0; i < rounds; i++ {
			appendLog("thread #1")
			thread.Yield()
		}

		hiStack := make([]byte, 32<<10)
		thread.Create(port, unsafe.Pointer(&hiStack[0]), uintptr(len(hiStack)),
			config.PriorityMain-1, 0, func(unsafe.Pointer) { preempted = true }, nil, "hi")

		close(done)
	}

	heap := make([]byte, 1<<20)
	mainStack := make([]byte, 64<<10)
	idleStack := make([]byte, 16<<10)
	reaperStack := make([]byte, 16<<10)

	go KernelInit(Config{
		Port:            port,
		Pool:            bestfit.New(),
		Vtimer:          noopVtimer{},
		HeapBase:        unsafe.Pointer(&heap[0]),
		HeapLen:         uintptr(len(heap)),
		MainEntry:       mainEntry,
		MainName:        "main",
		MainStack:       unsafe.Pointer(&mainStack[0]),
		MainStackSize:   uintptr(len(mainStack)),
		IdleStack:       unsafe.Pointer(&idleStack[0]),
		IdleStackSize:   uintptr(len(idleStack)),
		ReaperStack:     unsafe.Pointer(&reaperStack[0]),
		ReaperStackSize: uintptr(len(reaperStack)),
	})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("kernel never reached the end of the main thread")
	}

	if !preempted {
		t.Fatal("a higher-priority thread must run before thread_create returns to its creator")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(log) != 2*rounds {
		t.Fatalf("expected %d log entries, got %d: %v", 2*rounds, len(log), log)
	}
	for i, entry := range log {
		want := "thread #1"
		if i%2 == 1 {
			want = "thread #2"
		}
		if entry != want {
			t.Fatalf("equal-priority threads did not alternate: log[%d] = %q, full log %v", i, entry, log)
		}
	}
}
