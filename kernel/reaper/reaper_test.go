package reaper

import (
	"runtime"
	"testing"
	"time"
	"unsafe"
)

func TestSendQueuesJobForManualDrain(t *testing.T) {
	x := 42
	var got unsafe.Pointer
	Send(unsafe.Pointer(&x), func(p unsafe.Pointer) { got = p })

	job := <-jobs
	job.free(job.base)

	if got != unsafe.Pointer(&x) {
		t.Fatalf("free callback received %p, want %p", got, unsafe.Pointer(&x))
	}
}

func TestRunProcessesQueuedJobThenYields(t *testing.T) {
	x := 7
	freed := make(chan unsafe.Pointer, 1)
	Send(unsafe.Pointer(&x), func(p unsafe.Pointer) { freed <- p })

	yielded := make(chan struct{}, 1)
	go Run(func() {
		// Signal once, then end this goroutine instead of spinning
		// forever on an empty queue for the rest of the test binary.
		select {
		case yielded <- struct{}{}:
		default:
		}
		runtime.Goexit()
	})

	select {
	case p := <-freed:
		if p != unsafe.Pointer(&x) {
			t.Fatalf("free callback received %p, want %p", p, unsafe.Pointer(&x))
		}
	case <-time.After(time.Second):
		t.Fatal("reaper did not process the queued job")
	}

	select {
	case <-yielded:
	case <-time.After(time.Second):
		t.Fatal("reaper should yield once its queue is drained")
	}
}
