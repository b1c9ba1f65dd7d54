// arch_amd64.go - x86-64 Architecture implementation (§4.8, Design Note 3)
//
// Grounded on debug_cpu_x86.go's exception-to-stop-reason switch and the
// teacher's general pattern of a small per-CPU adapter sitting in front of
// shared debugger logic; the TSC timer derivation follows the same
// "measure once at init, divide forever after" shape the teacher uses for
// its cycle-accurate audio/video clocks.

package debugagent

import (
	"fmt"
	"unsafe"

	"golang.org/x/arch/x86/x86asm"
)

const (
	rflagsTF = 1 << 8

	x86BreakpointTrap = 0xCC
)

// AMD64Arch is the Architecture implementation for x86-64 long mode.
type AMD64Arch struct {
	cfg        AgentConfig
	tscPerMS   uint64
	readTSC    func() uint64
}

// NewAMD64Arch builds an x86-64 Architecture. readTSC abstracts the RDTSC
// instruction so the front-end can be exercised off real hardware.
func NewAMD64Arch(cfg AgentConfig, readTSC func() uint64) *AMD64Arch {
	return &AMD64Arch{cfg: cfg, readTSC: readTSC}
}

func (a *AMD64Arch) Name() string { return "x86-64" }

func (a *AMD64Arch) RegisterMap() RegisterMap { return AMD64RegisterMap }

func (a *AMD64Arch) TargetDescription() TargetDescription {
	return TargetDescription{Arch: amd64ArchName}
}

func (a *AMD64Arch) ctx(ctx unsafe.Pointer) *AMD64Context { return (*AMD64Context)(ctx) }

// Classify maps a raw x86-64 exception vector to the architecture-agnostic
// taxonomy per §4.8: #DB -> DebugStep (clearing RFLAGS.TF), #BP ->
// Breakpoint (decrementing RIP by one to point back at the trap byte),
// #PF -> AccessViolation, everything else recognised -> GenericFault.
func (a *AMD64Arch) Classify(rawCode uint64, c unsafe.Pointer) ExceptionRecord {
	cc := a.ctx(c)
	switch rawCode {
	case 1: // #DB
		cc.RFLAGS &^= rflagsTF
		return ExceptionRecord{Kind: KindDebugStep, PC: cc.RIP, Code: rawCode}
	case 3: // #BP
		cc.RIP--
		return ExceptionRecord{Kind: KindBreakpoint, PC: cc.RIP, Code: rawCode}
	case 14: // #PF
		return ExceptionRecord{Kind: KindAccessViolation, PC: cc.RIP, Code: rawCode}
	case 0, 6, 8, 11, 13: // #DE, #UD, #DF, #NP, #GP
		return ExceptionRecord{Kind: KindGenericFault, PC: cc.RIP, Code: rawCode}
	case 2: // NMI
		return ExceptionRecord{Kind: KindGenericFault, PC: cc.RIP, Code: rawCode}
	default:
		return ExceptionRecord{Kind: KindGenericFault, PC: cc.RIP, Code: rawCode}
	}
}

func (a *AMD64Arch) PC(c unsafe.Pointer) uint64      { return a.ctx(c).RIP }
func (a *AMD64Arch) SetPC(c unsafe.Pointer, pc uint64) { a.ctx(c).RIP = pc }

func (a *AMD64Arch) AddSingleStep(c unsafe.Pointer)   { a.ctx(c).RFLAGS |= rflagsTF }
func (a *AMD64Arch) ClearSingleStep(c unsafe.Pointer) { a.ctx(c).RFLAGS &^= rflagsTF }

// FixupBreakpointPC steps past a software-breakpoint trap byte still
// sitting at RIP, per §4.4's C8/C6 decoupling: C8 pattern-matches bytes,
// it never consults the breakpoint table.
func (a *AMD64Arch) FixupBreakpointPC(c unsafe.Pointer, mem PhysicalMemory) {
	cc := a.ctx(c)
	var b [1]byte
	if err := mem.ReadPhys(cc.RIP, b[:]); err != nil {
		return
	}
	if b[0] == x86BreakpointTrap {
		cc.RIP++
	}
}

func (a *AMD64Arch) BreakpointOpcode() []byte { return []byte{x86BreakpointTrap} }

// FlushInstructionCache is a no-op: x86-64's unified, hardware-coherent
// instruction cache observes a store to code the next time it is fetched,
// with no explicit maintenance instruction needed.
func (a *AMD64Arch) FlushInstructionCache(addr uint64, length int) {}

func (a *AMD64Arch) VMValidator(mem PhysicalMemory, c unsafe.Pointer) VMValidator {
	cc := a.ctx(c)
	return &amd64VMValidator{
		mem:    mem,
		window: reservedWindow{a.cfg.ReservedWindowLow, a.cfg.ReservedWindowHigh},
		cr3:    cc.CR3,
		cr4:    cc.CR4,
	}
}

func (a *AMD64Arch) Watchpoints(regs DebugRegisterFile) WatchpointManager {
	return newAMD64Watchpoints(regs)
}

// InitDebugFeatures masks DR7's low 8 bits (disabling any stale hardware
// breakpoints left from a prior session) and captures the TSC tick rate
// supplied by the early-init collaborator.
func (a *AMD64Arch) InitDebugFeatures(ctrl ArchControlBlock, regs DebugRegisterFile) error {
	dr7 := DR7(regs.ReadDebugReg("dr7"))
	dr7 = dr7.clearLocalEnables()
	regs.WriteDebugReg("dr7", uint64(dr7))
	a.tscPerMS = ctrl.PerformanceCounterFreq
	return nil
}

// NowMS derives the coarse millisecond clock from TSC / tscPerMS, good
// enough for C9's timeouts and not intended for benchmarking (§4.8).
func (a *AMD64Arch) NowMS() uint64 {
	if a.tscPerMS == 0 || a.readTSC == nil {
		return 0
	}
	return a.readTSC() / a.tscPerMS
}

// disassembleAt decodes and formats the single instruction at pc, for
// monitor 'i's register dump. Used instead of a hand-rolled length table
// so multi-byte prefixes/ModRM/SIB/displacement forms are decoded
// correctly.
func disassembleAt(mem PhysicalMemory, pc uint64) string {
	var buf [16]byte
	if err := mem.ReadPhys(pc, buf[:]); err != nil {
		return ""
	}
	inst, err := x86asm.Decode(buf[:], 64)
	if err != nil {
		return fmt.Sprintf("pc=0x%x <undecodable>\n", pc)
	}
	return fmt.Sprintf("pc=0x%x %s\n", pc, x86asm.GNUSyntax(inst, pc, nil))
}
