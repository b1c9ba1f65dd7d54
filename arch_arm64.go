// arch_arm64.go - AArch64 Architecture implementation (§4.8, Design Note 3)

package debugagent

import "unsafe"

const (
	spsrSS    = 1 << 21
	spsrDEBUG = 1 << 9

	arm64BreakpointTrap = 0xD43E0000 // BRK #0xf000, little-endian encoding
)

// AArch64Arch is the Architecture implementation for AArch64.
type AArch64Arch struct {
	readTimer func() (count, freq uint64)

	// barrier issues a speculation barrier (ISB/CSDB), threaded down to
	// the watchpoint manager's debug-feature init sequence. Nil is a
	// no-op, same convention as readTimer.
	barrier func()

	// ttbr0/tcr are captured by InitDebugFeatures from the register file
	// and consumed by VMValidator.
	ttbr0, tcr uint64
}

// NewAArch64Arch builds an AArch64 Architecture. readTimer abstracts the
// architected generic timer (CNTVCT_EL0/CNTFRQ_EL0) and barrier abstracts
// the speculation-barrier instruction sequence DebugArchInit brackets its
// register writes with, so the front-end can be exercised off real
// hardware.
func NewAArch64Arch(readTimer func() (count, freq uint64), barrier func()) *AArch64Arch {
	return &AArch64Arch{readTimer: readTimer, barrier: barrier}
}

func (a *AArch64Arch) Name() string { return "aarch64" }

func (a *AArch64Arch) RegisterMap() RegisterMap { return AArch64RegisterMap }

func (a *AArch64Arch) TargetDescription() TargetDescription {
	return TargetDescription{Arch: arm64ArchName}
}

func (a *AArch64Arch) ctx(c unsafe.Pointer) *AArch64Context { return (*AArch64Context)(c) }

// Classify maps the high 6 bits of ESR_EL1 (passed in rawCode already
// shifted down by the trap stub) to the architecture-agnostic taxonomy
// per §4.8.
func (a *AArch64Arch) Classify(rawCode uint64, c unsafe.Pointer) ExceptionRecord {
	cc := a.ctx(c)
	ec := rawCode & 0x3F
	switch ec {
	case 0x00:
		return ExceptionRecord{Kind: KindInvalidOp, PC: cc.PC, Code: rawCode}
	case 0x20, 0x21, 0x24, 0x25:
		return ExceptionRecord{Kind: KindAccessViolation, PC: cc.PC, Code: rawCode}
	case 0x22, 0x26:
		return ExceptionRecord{Kind: KindAlignment, PC: cc.PC, Code: rawCode}
	case 0x30, 0x31, 0x34, 0x35, 0x3C:
		return ExceptionRecord{Kind: KindBreakpoint, PC: cc.PC, Code: rawCode}
	case 0x32, 0x33:
		cc.SPSR &^= spsrSS
		return ExceptionRecord{Kind: KindDebugStep, PC: cc.PC, Code: rawCode}
	default:
		return ExceptionRecord{Kind: KindGenericFault, PC: cc.PC, Code: rawCode}
	}
}

func (a *AArch64Arch) PC(c unsafe.Pointer) uint64      { return a.ctx(c).PC }
func (a *AArch64Arch) SetPC(c unsafe.Pointer, pc uint64) { a.ctx(c).PC = pc }

// AddSingleStep sets SPSR.SS (bit 21) and clears SPSR.DEBUG (bit 9) so a
// single instruction retires after return-from-exception before the next
// step exception is delivered (§4.8). It does not touch MDSCR_EL1:
// InitDebugFeatures enables MDSCR.MDE and MDSCR.KDE once, and MDSCR.SS is
// not set anywhere in this package.
func (a *AArch64Arch) AddSingleStep(c unsafe.Pointer) {
	cc := a.ctx(c)
	cc.SPSR |= spsrSS
	cc.SPSR &^= spsrDEBUG
}

func (a *AArch64Arch) ClearSingleStep(c unsafe.Pointer) {
	a.ctx(c).SPSR &^= spsrSS
}

// FixupBreakpointPC advances ELR past a 4-byte BRK instruction still
// sitting at PC.
func (a *AArch64Arch) FixupBreakpointPC(c unsafe.Pointer, mem PhysicalMemory) {
	cc := a.ctx(c)
	var b [4]byte
	if err := mem.ReadPhys(cc.PC, b[:]); err != nil {
		return
	}
	var word uint32
	for i := 3; i >= 0; i-- {
		word = word<<8 | uint32(b[i])
	}
	if word == arm64BreakpointTrap {
		cc.PC += 4
	}
}

func (a *AArch64Arch) BreakpointOpcode() []byte {
	return []byte{0x00, 0x00, 0x3E, 0xD4}
}

// FlushInstructionCache stands in for the DC CVAU / IC IVAU maintenance
// loop over [addr, addr+length) a real BSP runs after patching a BRK
// opcode into the instruction stream, split I/D caches meaning the old
// instruction can otherwise still be fetched. The injected barrier plays
// the same synchronising role here as it does in Init's DAIF bracket.
func (a *AArch64Arch) FlushInstructionCache(addr uint64, length int) {
	a.doBarrier()
}

func (a *AArch64Arch) doBarrier() {
	if a.barrier != nil {
		a.barrier()
	}
}

func (a *AArch64Arch) VMValidator(mem PhysicalMemory, c unsafe.Pointer) VMValidator {
	// TTBR0/TCR are not part of the captured exception context on
	// AArch64 (they are system registers read directly); the front-end
	// threads them through DebugRegisterFile the same way it threads
	// MDSCR/OSLAR, keeping AArch64Context limited to GPR/PSTATE state
	// that genuinely lives in the trap frame.
	_ = c
	return newARM64Validator(mem, a.ttbr0, a.tcr)
}

func (a *AArch64Arch) Watchpoints(regs DebugRegisterFile) WatchpointManager {
	return newARM64Watchpoints(regs, a.barrier)
}

// InitDebugFeatures clears the OS lock, enables MDE+KDE in MDSCR_EL1, and
// captures the translation-table base/control for the VM validator.
func (a *AArch64Arch) InitDebugFeatures(ctrl ArchControlBlock, regs DebugRegisterFile) error {
	wp := newARM64Watchpoints(regs, a.barrier)
	if err := wp.Init(); err != nil {
		return err
	}
	a.ttbr0 = regs.ReadDebugReg("ttbr0")
	a.tcr = regs.ReadDebugReg("tcr")
	return nil
}

// NowMS derives the millisecond clock from the architected generic timer:
// count / (freq/1000), asserting freq is at least 1000 Hz per §4.8.
func (a *AArch64Arch) NowMS() uint64 {
	if a.readTimer == nil {
		return 0
	}
	count, freq := a.readTimer()
	if freq < 1000 {
		panic("debugagent: generic timer frequency below 1000 Hz")
	}
	return count / (freq / 1000)
}
