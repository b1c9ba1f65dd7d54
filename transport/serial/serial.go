// Package serial implements debugagent.Transport over a real UART using
// raw termios control, for board bring-up outside the in-memory test
// transport.
package serial

import (
	"errors"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// Port is a debugagent.Transport backed by a POSIX tty device, configured
// into raw 8N1 mode at construction time so the GDB packet framer sees an
// unbuffered byte stream with no line-discipline interference.
type Port struct {
	f    *os.File
	fd   int
	orig unix.Termios
}

// Open configures path (e.g. "/dev/ttyUSB0") at baud for raw I/O.
func Open(path string, baud uint32) (*Port, error) {
	f, err := os.OpenFile(path, os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, err
	}
	fd := int(f.Fd())

	orig, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		f.Close()
		return nil, err
	}

	raw := *orig
	raw.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	raw.Oflag &^= unix.OPOST
	raw.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	raw.Cflag &^= unix.CSIZE | unix.PARENB
	raw.Cflag |= unix.CS8 | unix.CLOCAL | unix.CREAD
	raw.Cc[unix.VMIN] = 0
	raw.Cc[unix.VTIME] = 0

	rate, err := baudConst(baud)
	if err != nil {
		f.Close()
		return nil, err
	}
	raw.Ispeed = rate
	raw.Ospeed = rate
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, &raw); err != nil {
		f.Close()
		return nil, err
	}

	return &Port{f: f, fd: fd, orig: *orig}, nil
}

// Init satisfies debugagent.Transport; the port is already configured by
// Open.
func (p *Port) Init() error { return nil }

// Read blocks for up to timeoutMS milliseconds waiting for at least one
// byte, via a poll(2) on the underlying fd.
func (p *Port) Read(buf []byte, timeoutMS int) (int, error) {
	fds := []unix.PollFd{{Fd: int32(p.fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, timeoutMS)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, nil
		}
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	return p.f.Read(buf)
}

func (p *Port) Write(buf []byte) (int, error) {
	return p.f.Write(buf)
}

// Poll reports whether a byte is immediately available, without blocking.
func (p *Port) Poll() bool {
	fds := []unix.PollFd{{Fd: int32(p.fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, 0)
	return err == nil && n > 0
}

// Close restores the original termios settings and closes the device.
func (p *Port) Close() error {
	_ = unix.IoctlSetTermios(p.fd, unix.TCSETS, &p.orig)
	return p.f.Close()
}

var errUnsupportedBaud = errors.New("serial: unsupported baud rate")

func baudConst(baud uint32) (uint32, error) {
	switch baud {
	case 9600:
		return unix.B9600, nil
	case 19200:
		return unix.B19200, nil
	case 38400:
		return unix.B38400, nil
	case 57600:
		return unix.B57600, nil
	case 115200:
		return unix.B115200, nil
	case 230400:
		return unix.B230400, nil
	default:
		return 0, errUnsupportedBaud
	}
}

// sleepBetweenRetries is a pause length for reopening a port after a
// transient error (USB-serial adapter re-enumeration); nothing in this
// package reopens a port or refers to it.
const sleepBetweenRetries = 50 * time.Millisecond
