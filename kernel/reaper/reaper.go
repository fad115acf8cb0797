// Package reaper implements the dedicated low-priority thread that frees
// exited threads' stacks: a thread cannot free the stack it is still
// executing on, so it queues the stack here before jumping into the
// scheduler's exit path. The queue is a buffered Go channel; Send runs
// in thread context (sched_task_exit, never an ISR), so a blocking send
// is safe.
package reaper

import "unsafe"

// stackJob is one exited thread's stack, queued for reclamation.
type stackJob struct {
	base unsafe.Pointer
	free func(unsafe.Pointer)
}

const queueDepth = 16

var jobs = make(chan stackJob, queueDepth)

// Send hands an exited thread's heap-owned stack to the reaper. free is
// the deallocator to invoke (mem.Free in every board that wires this
// up), passed in so this package has no dependency on mem.
func Send(stackBase unsafe.Pointer, free func(unsafe.Pointer)) {
	jobs <- stackJob{base: stackBase, free: free}
}

// Pending reports how many exited stacks are queued and not yet freed.
func Pending() int { return len(jobs) }

// Run is the reaper thread's entry point; it never returns. yield is the
// thread-context yield primitive, invoked whenever the queue is empty.
// The reaper never blocks: it stays ready, and when no higher-priority
// thread is ready the yield comes straight back to it and it polls the
// queue again.
func Run(yield func()) {
	for {
		select {
		case job := <-jobs:
			job.free(job.base)
		default:
			yield()
		}
	}
}
