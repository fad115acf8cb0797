//go:build native

package native

import "golang.org/x/sys/unix"

// termiosEcho is ECHO from termios.h (0x8 on every POSIX platform this
// board runs on); x/sys/unix does not export it under a common name across
// GOOS, unlike ICANON/ISIG/VMIN/VTIME below.
const termiosEcho = 0x8

// EnableRawTerminal puts fd (stdin, in every caller) into raw/cbreak
// mode and returns a restore func. It gives this board's UART
// passthrough the same bytes-arrive-one-at-a-time contract a real UART
// RX interrupt gives every other port.
func EnableRawTerminal(fd int) (restore func() error, err error) {
	saved, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return nil, err
	}

	raw := *saved
	raw.Lflag &^= uint32(unix.ICANON | unix.ISIG | termiosEcho)
	raw.Cc[unix.VMIN] = 1
	raw.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, &raw); err != nil {
		return nil, err
	}

	return func() error {
		return unix.IoctlSetTermios(fd, unix.TCSETS, saved)
	}, nil
}
