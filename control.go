// control.go - init-time control record, session state and agent config (§3)

package debugagent

// ArchControlBlock is produced by the firmware's early-init phase and
// consumed once, at Controller.Init.
type ArchControlBlock struct {
	Flags struct {
		InitialBreakpoint bool
		DXEDebugEnabled   bool
		MMDebugEnabled    bool
	}
	InitialBreakpointTimeoutMS uint64

	// PerformanceCounterFreq is x86-64 only: TSC ticks per millisecond,
	// measured by the early-init collaborator over a ~1ms wall delay.
	// Ignored on AArch64, which uses the architected generic timer instead.
	PerformanceCounterFreq uint64
}

// AgentConfig carries the tunables the distilled spec left as bare
// constants. Built by the early-init collaborator and passed to
// NewController rather than read from package globals, per Design Note 1
// (see DESIGN.md, "Open Question decisions").
type AgentConfig struct {
	MaxBreakpoints      int // default 64
	MaxRequestSize       int // default 2048, C9 receive-buffer cap
	MaxResponseSize      int // default 4096, C9 send-size cap
	PollTimeoutMS        int // default 10, first-byte poll timeout
	ByteTimeoutMS        int // default 1000, in-flight-packet per-byte timeout

	// EnableWindbgWorkarounds gates the C5 short-circuit window (§4.3).
	EnableWindbgWorkarounds bool

	// x86-64 VM-validator reserved window (Design Note: "expose it as
	// configuration, not a hard-coded constant"). Zero values disable the
	// guard rail.
	ReservedWindowLow  uint64
	ReservedWindowHigh uint64
}

// DefaultAgentConfig returns the spec's documented defaults.
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		MaxBreakpoints:          64,
		MaxRequestSize:          2048,
		MaxResponseSize:         4096,
		PollTimeoutMS:           10,
		ByteTimeoutMS:           1000,
		EnableWindbgWorkarounds: false,
		ReservedWindowLow:       0x83000000,
		ReservedWindowHigh:      0x87c00000,
	}
}

// SessionState is the process-wide state described in §3. Owned by a single
// Controller instance; there is no package-level global: the exception
// handler reaches it through the Controller method installed in the
// Controller's own VectorTable.
type SessionState struct {
	Initialized bool

	RebootOnContinue bool
	BreakOnModule    string
	BreakReason      BreakReason

	NextBreakpointTimeoutMS uint64
	ConnectionOccurred      bool
	Running                 bool
}
