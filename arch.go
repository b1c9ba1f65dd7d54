// arch.go - C8: architecture exception front-end, capability interface
//
// Design Note 3 asks for architecture dispatch to be modelled as a
// trait/interface with the capability set {classify-exception,
// set-single-step, read/write-debug-registers, walk-page-table,
// breakpoint-opcode}, chosen at build time per target. This mirrors the
// teacher's DebuggableCPU interface (debug_interface.go): one interface, one
// adapter per concrete machine, selected by whichever machine is
// instantiated - generalised here from "debuggable CPU" to "debuggable
// exception front-end".

package debugagent

import "unsafe"

// VectorTable stands in for the real interrupt/exception vector table. A
// production BSP points its IDT/VBAR entries at the architecture's trap
// entry stub instead; this simulation lets the front-end be driven and
// tested without real hardware, the way the teacher drives its CPU cores
// against a software memory bus instead of real silicon.
type VectorTable struct {
	handler func(ExceptionRecord, unsafe.Pointer)
}

func (v *VectorTable) Install(handler func(ExceptionRecord, unsafe.Pointer)) {
	v.handler = handler
}

func (v *VectorTable) Deliver(rec ExceptionRecord, ctx unsafe.Pointer) {
	if v.handler != nil {
		v.handler(rec, ctx)
	}
}

// Architecture is the capability set C8 needs from whichever concrete
// architecture is built in.
type Architecture interface {
	Name() string

	// RegisterMap returns the GDB register table for this architecture.
	RegisterMap() RegisterMap
	TargetDescription() TargetDescription

	// Classify turns a raw architecture-specific exception code into the
	// architecture-agnostic taxonomy, given the context for any fix-ups
	// classification needs (e.g. clearing TF/SS).
	Classify(rawCode uint64, ctx unsafe.Pointer) ExceptionRecord

	// PC returns and sets the program counter field in ctx.
	PC(ctx unsafe.Pointer) uint64
	SetPC(ctx unsafe.Pointer, pc uint64)

	// AddSingleStep arms single-instruction execution for the next resume.
	AddSingleStep(ctx unsafe.Pointer)
	// ClearSingleStep disarms it, for use after a DebugStep exception fires.
	ClearSingleStep(ctx unsafe.Pointer)

	// FixupBreakpointPC advances PC past a software-breakpoint trap
	// instruction if (and only if) the bytes at PC still match the trap
	// opcode, per §4.4/§4.8. mem provides the byte-level view of the
	// instruction stream.
	FixupBreakpointPC(ctx unsafe.Pointer, mem PhysicalMemory)

	// BreakpointOpcode is the architecture's trap instruction bytes
	// (0xCC on x86-64, the 4-byte BRK encoding on AArch64).
	BreakpointOpcode() []byte

	// FlushInstructionCache makes a freshly-patched instruction stream
	// visible to the fetch path after C6 plants or lifts a trap opcode,
	// the way the original firmware calls InvalidateInstructionCacheRange
	// after every breakpoint write. A no-op on architectures with a
	// coherent instruction cache.
	FlushInstructionCache(addr uint64, length int)

	// VMValidator returns the page-table walker bound to the current
	// translation regime: CR3/CR4 taken from ctx on x86-64, TTBR0/TCR
	// captured from the debug register file by InitDebugFeatures on AArch64.
	VMValidator(mem PhysicalMemory, ctx unsafe.Pointer) VMValidator

	// Watchpoints returns the hardware watchpoint manager.
	Watchpoints(mem DebugRegisterFile) WatchpointManager

	// InitDebugFeatures performs the architecture-specific debug-feature
	// enablement sequence from the control block (§4.5's "Initialisation").
	InitDebugFeatures(ctrl ArchControlBlock, regs DebugRegisterFile) error

	// NowMS returns the agent's own millisecond clock (TSC-derived on
	// x86-64, generic-timer-derived on AArch64), used by C9's timeouts.
	NowMS() uint64
}

// DebugRegisterFile abstracts architectural debug-register access (DR0-7 /
// MDSCR_EL1+DBGWVRn_EL1+DBGWCRn_EL1 etc.) so C7 and InitDebugFeatures can be
// exercised against a fake register bank in tests instead of real hardware.
type DebugRegisterFile interface {
	ReadDebugReg(name string) uint64
	WriteDebugReg(name string, value uint64)
}
