// collaborators.go - external interfaces the agent consumes (§6)
//
// These are the firmware-side services the core treats as named interfaces
// only: the byte transport, the millisecond clock, the watchdog, transport
// log suspension, cold reset, the optional memory-attribute service, and the
// module-loader announcement hook. None of these are implemented by this
// package for production use (they are out of scope per the design doc);
// transport/serial provides a real one for board bring-up and
// inmemtransport.go provides one for tests.

package debugagent

// Transport is the byte-level I/O abstraction the GDB packet framer reads
// and writes through.
type Transport interface {
	Init() error
	Read(buf []byte, timeoutMS int) (int, error)
	Write(buf []byte) (int, error)
	Poll() bool
}

// TimeSource is a monotonic millisecond clock used for timeouts.
type TimeSource interface {
	NowMS() uint64
}

// Watchdog is suspended for the duration of a debug stop and resumed on
// exit.
type Watchdog interface {
	Suspend() (wasRunning bool)
	Resume(wasRunning bool)
}

// LogControl suspends and resumes the firmware's own transport-layer log
// chatter so it cannot corrupt the GDB channel while a session is active.
type LogControl interface {
	Suspend()
	Resume()
}

// Resetter performs a cold reset. A conforming implementation does not
// return.
type Resetter interface {
	ColdReset()
}

// MemoryAttributes is the optional DXE-phase collaborator C5 uses to
// temporarily relax read-only/read-protect attributes around a debugger
// memory access.
type MemoryAttributes interface {
	GetAttributes(pageBase uint64, pageSize uint64) (PageAttributes, error)
	ClearAttributes(pageBase uint64, pageSize uint64, mask PageAttributes)
	SetAttributes(pageBase uint64, pageSize uint64, attrs PageAttributes)
}

// PageAttributes is a bitmask of attribute bits C5 cares about.
type PageAttributes uint32

const (
	AttrReadOnly      PageAttributes = 1 << 0 // RO
	AttrReadProtected PageAttributes = 1 << 1 // RP (not-present)
)

func (a PageAttributes) Has(bit PageAttributes) bool { return a&bit != 0 }

// Loader is the module-load announcement hook C11 listens on to implement
// "break when a named module loads".
type Loader interface {
	// Name reports the image's symbol-file name, which may still carry
	// directories and an extension; Controller strips both itself per §4.9.
	Name() string
}
