//go:build linux

package fidokey

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// SerialTransport implements Transport over a real POSIX tty device,
// opened raw (no line discipline, no echo) so every byte the host
// sends reaches ReadByte unmodified (grounded in the termios handling
// a hand-rolled serial port driver would use, adapted here onto
// golang.org/x/sys/unix's ioctl wrappers instead of a bespoke ioctl
// binding).
type SerialTransport struct {
	fd int
}

// OpenSerialTransport opens path as a raw serial device at baud and
// configures it for 8-N-1, no flow control.
func OpenSerialTransport(path string, baud uint32) (*SerialTransport, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("get termios: %w", err)
	}

	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB | unix.CRTSCTS
	t.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL
	// Block until exactly one byte is available; no inter-byte timeout.
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, t); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("set termios: %w", err)
	}
	if err := setBaud(fd, t, baud); err != nil {
		unix.Close(fd)
		return nil, err
	}

	return &SerialTransport{fd: fd}, nil
}

func setBaud(fd int, t *unix.Termios, baud uint32) error {
	rate, ok := baudRates[baud]
	if !ok {
		return fmt.Errorf("unsupported baud rate %d", baud)
	}
	t.Cflag &^= unix.CBAUD
	t.Cflag |= rate
	t.Ispeed = baud
	t.Ospeed = baud
	return unix.IoctlSetTermios(fd, unix.TCSETS, t)
}

var baudRates = map[uint32]uint32{
	9600:    unix.B9600,
	19200:   unix.B19200,
	38400:   unix.B38400,
	57600:   unix.B57600,
	115200:  unix.B115200,
	230400:  unix.B230400,
	460800:  unix.B460800,
	921600:  unix.B921600,
	1000000: unix.B1000000,
}

// ReadByte implements Transport, blocking until one byte arrives.
func (s *SerialTransport) ReadByte() (byte, error) {
	var buf [1]byte
	for {
		n, err := unix.Read(s.fd, buf[:])
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return 0, fmt.Errorf("read: %w", err)
		}
		if n == 1 {
			return buf[0], nil
		}
	}
}

// WriteByte implements Transport, blocking until the byte is handed
// to the link.
func (s *SerialTransport) WriteByte(b byte) error {
	buf := [1]byte{b}
	for {
		n, err := unix.Write(s.fd, buf[:])
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("write: %w", err)
		}
		if n == 1 {
			return nil
		}
	}
}

// Close releases the underlying file descriptor.
func (s *SerialTransport) Close() error {
	return unix.Close(s.fd)
}
