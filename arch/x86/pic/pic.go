// Package pic is the 8259 PIC driver: master/slave remap, per-IRQ
// enable/disable via the IMR, spurious-IRQ detection, and EOI.
package pic

// IO is the port-access contract this package is driven through. x86
// port I/O (in/out) is not memory-mapped, so it cannot be a plain
// load/store; boot/boot_x86.go supplies real inb/outb assembly.
type IO interface {
	Out(port uint16, val uint8)
	In(port uint16) uint8
}

const (
	masterCmd  = 0x20
	masterData = 0x21
	slaveCmd   = 0xA0
	slaveData  = 0xA1

	icw1Init  = 0x11 // ICW1: edge triggered, cascade, ICW4 needed
	icw4_8086 = 0x01

	masterVectorBase = 0x20
	slaveVectorBase  = 0x28

	ocwReadISR = 0x0B // OCW3: read in-service register on next read

	eoi = 0x20
)

var io IO

// Init remaps master to vector base 0x20, slave to 0x28, cascades IRQ2 to
// the slave, and selects 8086 mode.
func Init(ioPort IO) {
	io = ioPort

	io.Out(masterCmd, icw1Init)
	io.Out(slaveCmd, icw1Init)
	io.Out(masterData, masterVectorBase) // ICW2: vector base
	io.Out(slaveData, slaveVectorBase)
	io.Out(masterData, 1<<2) // ICW3: slave attached on IRQ2
	io.Out(slaveData, 2)     // ICW3: slave's cascade identity
	io.Out(masterData, icw4_8086)
	io.Out(slaveData, icw4_8086)

	// Mask everything until boards opt IRQs in one at a time.
	io.Out(masterData, 0xFF)
	io.Out(slaveData, 0xFF)
}

func maskPort(irq int) (port uint16, bit uint8) {
	if irq < 8 {
		return masterData, 1 << uint(irq)
	}
	return slaveData, 1 << uint(irq-8)
}

// EnableIRQ clears irq's bit in the relevant IMR.
func EnableIRQ(irq int) {
	port, bit := maskPort(irq)
	io.Out(port, io.In(port)&^bit)
}

// DisableIRQ sets irq's bit in the relevant IMR.
func DisableIRQ(irq int) {
	port, bit := maskPort(irq)
	io.Out(port, io.In(port)|bit)
}

// SetEnabledIRQs replaces the full 16-bit mask in one call
// (pic_set_enabled_irqs): bit i set means IRQ i is enabled.
func SetEnabledIRQs(mask uint16) {
	io.Out(masterData, ^uint8(mask))
	io.Out(slaveData, ^uint8(mask>>8))
}

// isInService reads the in-service register to distinguish a real IRQ from
// a spurious one: "checks for spurious IRQ7/15 by reading
// the ISR register and returns silently if the bit is not set."
func isInService(cmdPort uint16, irq int) bool {
	io.Out(cmdPort, ocwReadISR)
	isr := io.In(cmdPort)
	bit := irq % 8
	return isr&(1<<uint(bit)) != 0
}

// Handler is the per-IRQ callback table entry (pic_set_handler).
type Handler func(irq int)

var handlers [16]Handler

func SetHandler(irq int, fn Handler) { handlers[irq] = fn }

// Dispatch is the ISR-side entry for IRQ n: check for a
// spurious IRQ7/15, invoke the installed handler (or drop it if none is
// installed and the IRQ wasn't expected), then EOI.
func Dispatch(irq int) {
	cmdPort := uint16(masterCmd)
	if irq >= 8 {
		cmdPort = slaveCmd
	}

	if (irq == 7 || irq == 15) && !isInService(cmdPort, irq) {
		// Spurious: drop silently, no EOI.
		return
	}

	if h := handlers[irq]; h != nil {
		h(irq)
	}

	io.Out(masterCmd, eoi)
	if irq >= 8 {
		io.Out(slaveCmd, eoi)
	}
}
