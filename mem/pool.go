// Package mem is the allocator facade: a single process-wide heap
// reached through malloc/calloc/realloc/memalign/free, each entry point
// bracketed by an IRQ mask (arch.Port.DisableIRQ/RestoreIRQ).
//
// The pool algorithm sits behind the Pool interface; mem/bestfit is the
// concrete pool every board wires up, and a real TLSF binding would
// satisfy the same interface without the facade changing.
package mem

import (
	"errors"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/RIOT-OS/RIOT-sub019/arch"
)

// ErrOOM is returned by the few call sites that want a typed error
// instead of a null pointer; the allocator entry points themselves return
// nil on failure and leave Errno behind.
var ErrOOM = errors.New("mem: out of memory")

// Errno is the errno-equivalent malloc(3) leaves behind on failure: set
// to unix.ENOMEM by Malloc/Calloc/Memalign whenever they return nil, and
// left untouched otherwise, the same convention as libc's errno.
var Errno error

// Pool is the trait the allocator facade drives. add_pool/malloc/free/
// memalign/realloc map 1:1 onto named TLSF operations; Realloc returns
// the (possibly moved) pointer rather than taking an in/out parameter.
type Pool interface {
	// AddPool registers len bytes starting at base as allocatable. The
	// first call initializes the pool; later calls extend it (facade
	// contract).
	AddPool(base unsafe.Pointer, len uintptr)
	Malloc(size uintptr) unsafe.Pointer
	Free(ptr unsafe.Pointer)
	Memalign(align, size uintptr) unsafe.Pointer
	Realloc(ptr unsafe.Pointer, size uintptr) unsafe.Pointer
}

var (
	mu       sync.Mutex // guards pool against non-IRQ concurrent callers
	pool     Pool
	irqMask  func() bool
	irqClear func(bool)
)

// Init installs the backing pool and the arch-specific IRQ mask/restore
// pair every facade entry point brackets itself with.
func Init(p Pool, port arch.Port) {
	mu.Lock()
	defer mu.Unlock()
	pool = p
	irqMask = port.DisableIRQ
	irqClear = port.RestoreIRQ
}

// AddGlobalPool is add_global_pool: the first call initializes the control
// block in place, subsequent calls extend it. The underlying Pool
// implementation owns that distinction; the facade only forwards under the
// IRQ mask.
func AddGlobalPool(base unsafe.Pointer, length uintptr) {
	st := irqMask()
	defer irqClear(st)
	pool.AddPool(base, length)
}

// Malloc mirrors malloc(3): returns nil on OOM.
//
//go:nosplit
func Malloc(size uintptr) unsafe.Pointer {
	st := irqMask()
	defer irqClear(st)
	p := pool.Malloc(size)
	if p == nil {
		Errno = unix.ENOMEM
	}
	return p
}

// Calloc is malloc(n*size) zeroed, with an overflow-checked multiply so a
// crafted n*size product can never wrap and under-allocate.
//
//go:nosplit
func Calloc(n, size uintptr) unsafe.Pointer {
	if n != 0 && size > (^uintptr(0))/n {
		Errno = unix.ENOMEM // overflow: no allocation this large could ever succeed
		return nil
	}
	total := n * size
	st := irqMask()
	defer irqClear(st)
	p := pool.Malloc(total)
	if p == nil {
		Errno = unix.ENOMEM
		return nil
	}
	b := unsafe.Slice((*byte)(p), total)
	for i := range b {
		b[i] = 0
	}
	return p
}

// Memalign allocates size bytes aligned to align, which must be a power of
// two.
//
//go:nosplit
func Memalign(align, size uintptr) unsafe.Pointer {
	st := irqMask()
	defer irqClear(st)
	p := pool.Memalign(align, size)
	if p == nil {
		Errno = unix.ENOMEM
	}
	return p
}

// Realloc resizes an existing allocation, possibly relocating it.
//
//go:nosplit
func Realloc(ptr unsafe.Pointer, size uintptr) unsafe.Pointer {
	st := irqMask()
	defer irqClear(st)
	return pool.Realloc(ptr, size)
}

// Free releases a pointer previously returned by Malloc/Calloc/Memalign/
// Realloc. Freeing an unknown pointer is caller misuse: debug builds
// assert, release builds silently ignore it, the underlying Pool decides
// which.
//
//go:nosplit
func Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}
	st := irqMask()
	defer irqClear(st)
	pool.Free(ptr)
}
