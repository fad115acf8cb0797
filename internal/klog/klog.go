// Package klog is the kernel's own breadcrumb logger.
//
// There is no syslog and no structured-logging library down here: every
// message is a line of text pushed at a sink, the same way scattered boot
// code prints breadcrumbs straight to UART with print("...\r\n"). klog only
// adds one thing ad-hoc print calls don't have: a single call site, so the
// fault path (see arch/x86/idt) and the scheduler can share one formatter
// instead of each hand-rolling register dumps.
package klog

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Level orders log severity. Fault is reserved for the unrecoverable-fault
// path and is never filtered.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Fault
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "DBG"
	case Info:
		return "INF"
	case Warn:
		return "WRN"
	case Fault:
		return "FLT"
	default:
		return "???"
	}
}

// Sink is the destination breadcrumbs are written to: os.Stderr unless
// SetSink installs another writer. No board in this tree installs one.
var (
	mu     sync.Mutex
	sink   io.Writer = os.Stderr
	minLvl Level     = Info
)

// SetSink redirects all future log output.
func SetSink(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	sink = w
}

// SetLevel filters messages below lvl. Fault is never filtered.
func SetLevel(lvl Level) {
	mu.Lock()
	defer mu.Unlock()
	minLvl = lvl
}

func write(lvl Level, format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if lvl < minLvl {
		return
	}
	fmt.Fprintf(sink, "[%s] "+format+"\r\n", append([]interface{}{lvl}, args...)...)
}

func Debugf(format string, args ...interface{}) { write(Debug, format, args...) }
func Infof(format string, args ...interface{})  { write(Info, format, args...) }
func Warnf(format string, args ...interface{})  { write(Warn, format, args...) }

// haltFn is the board's halt primitive, installed by SetHaltFn during
// boot. Left as a no-op until then so early-boot faults (before a Port
// exists to halt with) still print instead of panicking on a nil call.
var haltFn = func() {}

// SetHaltFn wires Faultf to the active arch.Port's Halt, so a fatal fault
// never falls through to resume the faulting code.
func SetHaltFn(fn func()) { haltFn = fn }

// Faultf logs an unrecoverable-fault line and halts. It never returns
// control to a caller expecting further execution.
func Faultf(format string, args ...interface{}) {
	write(Fault, format, args...)
	haltFn()
}
