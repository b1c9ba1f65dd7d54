// regmap_arm64.go - AArch64 trap-frame layout and GDB register table (§4.1)

package debugagent

import "unsafe"

// AArch64Context is the trap-frame layout for the AArch64 exception
// front-end: X0-X28, the frame pointer and link register broken out by
// name (FP/LR alias X29/X30 in GDB's model), SP, the exception link
// register (published as PC), and the saved FPSR/SPSR.
type AArch64Context struct {
	X    [29]uint64 // X0-X28
	FP   uint64     // X29
	LR   uint64     // X30
	SP   uint64
	PC   uint64 // ELR_EL1
	FPSR uint64
	SPSR uint64
}

func arm64Entry(name, typ string, offset uintptr, size int) RegisterMapEntry {
	return RegisterMapEntry{Offset: int(offset), Size: size, Name: name, Type: typ}
}

// AArch64RegisterMap is the ordered GDB register table for AArch64: X0-X28,
// FP, LR, SP, PC, a 4-byte CPSR taken from the low word of the saved SPSR,
// and FPCR taken from the saved FPSR slot.
var AArch64RegisterMap = buildAArch64RegisterMap()

func buildAArch64RegisterMap() RegisterMap {
	var m RegisterMap
	base := unsafe.Offsetof(AArch64Context{}.X)
	for i := 0; i < 29; i++ {
		m = append(m, arm64Entry(xRegName(i), "int64", base+uintptr(i)*8, 8))
	}
	m = append(m,
		arm64Entry("fp", "data_ptr", unsafe.Offsetof(AArch64Context{}.FP), 8),
		arm64Entry("lr", "code_ptr", unsafe.Offsetof(AArch64Context{}.LR), 8),
		arm64Entry("sp", "data_ptr", unsafe.Offsetof(AArch64Context{}.SP), 8),
		arm64Entry("pc", "code_ptr", unsafe.Offsetof(AArch64Context{}.PC), 8),
		arm64Entry("fpcr", "int32", unsafe.Offsetof(AArch64Context{}.FPSR), 4),
		arm64Entry("cpsr", "int32", unsafe.Offsetof(AArch64Context{}.SPSR), 4),
	)
	return m
}

func xRegName(i int) string {
	names := [...]string{
		"x0", "x1", "x2", "x3", "x4", "x5", "x6", "x7",
		"x8", "x9", "x10", "x11", "x12", "x13", "x14", "x15",
		"x16", "x17", "x18", "x19", "x20", "x21", "x22", "x23",
		"x24", "x25", "x26", "x27", "x28",
	}
	return names[i]
}

const arm64ArchName = "aarch64"
