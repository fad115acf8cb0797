// Package thread is the thread model: the TCB type, its lifecycle, and
// thread_create/thread_yield/thread_getpid.
//
// thread never imports kernel/sched directly (that would cycle, since
// sched needs the TCB type); sched.Init registers itself into the Hooks
// variable below at boot.
package thread

import (
	"unsafe"

	"github.com/RIOT-OS/RIOT-sub019/arch"
	"github.com/RIOT-OS/RIOT-sub019/internal/config"
	"github.com/RIOT-OS/RIOT-sub019/internal/klog"
)

// Status is one of a thread's lifecycle states.
type Status int

const (
	StatusStopped Status = iota
	StatusSleeping
	StatusBlockedMutex
	StatusBlockedFlag
	StatusBlockedMsgRecv
	StatusBlockedMsgSend
	StatusPending
	StatusRunning
)

func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "STOPPED"
	case StatusSleeping:
		return "SLEEPING"
	case StatusBlockedMutex:
		return "BLOCKED_MUTEX"
	case StatusBlockedFlag:
		return "BLOCKED_FLAG"
	case StatusBlockedMsgRecv:
		return "BLOCKED_MSG_RECV"
	case StatusBlockedMsgSend:
		return "BLOCKED_MSG_SEND"
	case StatusPending:
		return "PENDING"
	case StatusRunning:
		return "RUNNING"
	default:
		return "UNKNOWN"
	}
}

// CreateFlags mirrors thread_create flags.
type CreateFlags uint32

const (
	CreateStacktest CreateFlags = 1 << iota // fill unused stack with the test pattern
	CreateWoutYield                         // suppress the "yield if higher priority" check
	CreateSleeping                          // start in SLEEPING rather than PENDING
	CreateHeapStack                         // stack came from the kernel heap; the reaper frees it on exit
)

// PID is a stable thread identifier assigned at creation and never reused
// while the thread is alive. It is a type alias for arch.PID to avoid an
// import cycle between this package and arch/native's optional PIDBinder
// (see arch.PID's doc comment).
type PID = arch.PID

// InvalidPID is returned by Create on failure.
const InvalidPID = arch.InvalidPID

// TCB is the thread control block. Stack, StackBase and
// StackSize describe the caller-provided stack buffer; SP points at the
// topmost saved register frame while the thread is suspended.
//
// Next/Prev are arena-relative PIDs, not pointers: intrusive lists are
// expressed as arena+index rather than raw back-references,
// so the ready queue (kernel/sched) links TCBs by PID through these fields
// instead of Go pointers.
type TCB struct {
	SP        arch.StackPointer
	StackBase unsafe.Pointer
	StackSize uintptr

	Priority uint8
	Status   Status
	PID      PID
	Name     string

	Next, Prev PID // ready-queue links; InvalidPID terminates the list

	// StackHeapOwned records that the stack buffer was allocated from the
	// kernel heap (CreateHeapStack): only then does sched_task_exit hand
	// it to the reaper; a caller-provided buffer stays the caller's.
	StackHeapOwned bool

	stacktest bool // CREATE_STACKTEST was requested
}

// StackMarker returns the sentinel word at the top of the thread's stack
// buffer (StackBase+StackSize-4), immediately above the topmost frame a
// downward-growing stack can ever legally reach. A live TCB's marker must
// always read config.StackMarker; anything else indicates stack overflow.
func (t *TCB) StackMarker() uint32 {
	markerAddr := uintptr(t.StackBase) + t.StackSize - unsafe.Sizeof(config.StackMarker)
	return *(*uint32)(unsafe.Pointer(markerAddr))
}

// table is the fixed-size TCB arena every PID indexes into.
var table [config.MaxPids]TCB
var used [config.MaxPids]bool

// Hooks lets kernel/sched plug itself into thread_create/thread_yield
// without thread importing sched (which would cycle: sched needs *TCB).
type Hooks struct {
	// Enqueue inserts t into the ready structure.
	Enqueue func(t *TCB)
	// CurrentPriority returns the calling thread's priority, or
	// config.PriorityMin if called before any thread is active.
	CurrentPriority func() uint8
	// ActivePID returns the calling thread's pid.
	ActivePID func() PID
	// Yield requests rescheduling from thread context.
	Yield func()
}

var hooks Hooks

// RegisterHooks is called once by sched.Init during boot.
func RegisterHooks(h Hooks) { hooks = h }

// Create is thread_create: allocate a PID, lay out the initial
// stack frame via the arch port, populate a TCB, insert it into the ready
// structure, and (unless CreateWoutYield was set) yield if the new
// thread outranks the caller.
func Create(port arch.Port, stack unsafe.Pointer, stackSize uintptr, priority uint8, flags CreateFlags, entry arch.EntryFunc, arg unsafe.Pointer, name string) PID {
	pid := allocPID()
	if pid == InvalidPID {
		return InvalidPID
	}

	// The stack marker lands at stack+stackSize-4, immediately above the
	// frame the arch port builds: each port's StackInit/BuildFrame writes
	// it as part of laying out the initial frame, operating on the whole
	// buffer handed to it here. Stacktest fills the whole buffer first, so
	// the portion BuildFrame then overwrites with marker+frame never
	// confuses MeasureStackUsage's high-water-mark scan.
	if flags&CreateStacktest != 0 {
		fillStackTestPattern(stack, stackSize)
	}

	sp := port.StackInit(entry, arg, stack, stackSize)
	if b, ok := port.(arch.PIDBinder); ok {
		b.BindPID(sp, pid)
	}

	t := &table[pid]
	*t = TCB{
		SP:             sp,
		StackBase:      stack,
		StackSize:      stackSize,
		Priority:       priority,
		PID:            pid,
		Name:           name,
		Next:           InvalidPID,
		Prev:           InvalidPID,
		StackHeapOwned: flags&CreateHeapStack != 0,
		stacktest:      flags&CreateStacktest != 0,
	}
	if flags&CreateSleeping != 0 {
		t.Status = StatusSleeping
	} else {
		t.Status = StatusPending
	}

	if t.Status == StatusPending && hooks.Enqueue != nil {
		hooks.Enqueue(t)
	}

	if flags&CreateWoutYield == 0 && hooks.CurrentPriority != nil {
		if priority < hooks.CurrentPriority() { // lower number = higher priority
			hooks.Yield()
		}
	}

	return pid
}

func allocPID() PID {
	for i := range used {
		if !used[i] {
			used[i] = true
			return PID(i)
		}
	}
	return InvalidPID
}

func freePID(p PID) {
	if p >= 0 && int(p) < len(used) {
		used[p] = false
	}
}

func fillStackTestPattern(base unsafe.Pointer, size uintptr) {
	b := unsafe.Slice((*byte)(base), size)
	for i := range b {
		b[i] = config.StackTestPattern
	}
}

// Yield is thread_yield: let the scheduler pick a higher-or-equal
// priority ready thread; if none exists, the caller continues.
func Yield() {
	if hooks.Yield != nil {
		hooks.Yield()
	}
}

// GetPID is thread_getpid: the calling thread's own pid, or InvalidPID
// before threading has started.
func GetPID() PID {
	if hooks.ActivePID == nil {
		return InvalidPID
	}
	return hooks.ActivePID()
}

// Get returns the TCB for pid, or nil if pid is not a live thread.
func Get(pid PID) *TCB {
	if pid < 0 || int(pid) >= len(used) || !used[pid] {
		return nil
	}
	return &table[pid]
}

// Exit removes t from the TCB arena and frees its PID. It is called by
// kernel/sched's sched_task_exit implementation after the TCB has been
// unlinked from the ready structure and, if heap-owned, its stack handed
// to the reaper.
func Exit(t *TCB) {
	t.Status = StatusStopped
	freePID(t.PID)
}

// PrintStack is thread_print_stack: dump t's stack bookkeeping and, when
// the saved stack pointer is a raw in-stack pointer (it is an opaque
// coroutine handle on the hosted port), the saved frame words between it
// and the marker.
func PrintStack(t *TCB) {
	klog.Infof("thread %q pid=%d status=%s stack=%p size=%d sp=%p marker=%#x",
		t.Name, t.PID, t.Status, t.StackBase, t.StackSize, unsafe.Pointer(t.SP), t.StackMarker())

	sp := uintptr(unsafe.Pointer(t.SP))
	base := uintptr(t.StackBase)
	top := base + t.StackSize
	if sp <= base || sp > top {
		return
	}
	wordSize := unsafe.Sizeof(uint32(0))
	for addr := sp; addr+wordSize <= top; addr += wordSize {
		klog.Infof("  %#08x: %#08x", addr, *(*uint32)(unsafe.Pointer(addr)))
	}
}

// MeasureStackUsage is thread_measure_stack_usage: scans from the
// lowest usable address upward for the first byte that no longer matches
// the stacktest fill pattern, returning the high-water mark in bytes.
// Requires the thread to have been created with CreateStacktest.
func MeasureStackUsage(t *TCB) (used uintptr, ok bool) {
	if !t.stacktest {
		return 0, false
	}
	b := unsafe.Slice((*byte)(t.StackBase), t.StackSize)

	i := 0
	for i < len(b) && b[i] == config.StackTestPattern {
		i++
	}
	return t.StackSize - uintptr(i), true
}
