// regmap_amd64.go - x86-64 trap-frame layout and GDB register table (§4.1)
//
// AMD64Context mirrors the shape of a firmware trap frame: the fields GDB's
// "org.gnu.gdb.i386.64bit" target description expects, laid out the way a
// real exception stub would have pushed them, addressed by unsafe.Offsetof
// rather than named struct access so the register map can stay data rather
// than a hand-written switch (generalised from the teacher's DebugX86
// register-name switch in debug_cpu_x86.go).

package debugagent

import "unsafe"

// AMD64Context is the trap-frame layout the x86-64 exception front-end
// hands to C3/C8. Segment selectors and EFLAGS are stored as their full
// 8-byte slots; the register map publishes only the low 4 bytes of each to
// match GDB's expectations.
type AMD64Context struct {
	RAX, RBX, RCX, RDX uint64
	RSI, RDI, RBP, RSP uint64
	R8, R9, R10, R11   uint64
	R12, R13, R14, R15 uint64
	RIP                uint64
	RFLAGS             uint64
	CS, SS, DS, ES, FS, GS uint64
	CR0, CR2, CR3, CR4, CR8 uint64
}

func amd64Entry(name, typ string, offset uintptr, size int) RegisterMapEntry {
	return RegisterMapEntry{Offset: int(offset), Size: size, Name: name, Type: typ}
}

func amd64AbsentEntry(name, typ string, size int) RegisterMapEntry {
	return RegisterMapEntry{Offset: AbsentOffset, Size: size, Name: name, Type: typ}
}

// AMD64RegisterMap is the ordered GDB register table for x86-64: GPRs,
// RIP, a 4-byte EFLAGS, 4-byte segment selectors, control registers, and
// x87 placeholders the firmware context never preserves.
var AMD64RegisterMap = RegisterMap{
	amd64Entry("rax", "int64", unsafe.Offsetof(AMD64Context{}.RAX), 8),
	amd64Entry("rbx", "int64", unsafe.Offsetof(AMD64Context{}.RBX), 8),
	amd64Entry("rcx", "int64", unsafe.Offsetof(AMD64Context{}.RCX), 8),
	amd64Entry("rdx", "int64", unsafe.Offsetof(AMD64Context{}.RDX), 8),
	amd64Entry("rsi", "int64", unsafe.Offsetof(AMD64Context{}.RSI), 8),
	amd64Entry("rdi", "int64", unsafe.Offsetof(AMD64Context{}.RDI), 8),
	amd64Entry("rbp", "data_ptr", unsafe.Offsetof(AMD64Context{}.RBP), 8),
	amd64Entry("rsp", "data_ptr", unsafe.Offsetof(AMD64Context{}.RSP), 8),
	amd64Entry("r8", "int64", unsafe.Offsetof(AMD64Context{}.R8), 8),
	amd64Entry("r9", "int64", unsafe.Offsetof(AMD64Context{}.R9), 8),
	amd64Entry("r10", "int64", unsafe.Offsetof(AMD64Context{}.R10), 8),
	amd64Entry("r11", "int64", unsafe.Offsetof(AMD64Context{}.R11), 8),
	amd64Entry("r12", "int64", unsafe.Offsetof(AMD64Context{}.R12), 8),
	amd64Entry("r13", "int64", unsafe.Offsetof(AMD64Context{}.R13), 8),
	amd64Entry("r14", "int64", unsafe.Offsetof(AMD64Context{}.R14), 8),
	amd64Entry("r15", "int64", unsafe.Offsetof(AMD64Context{}.R15), 8),
	amd64Entry("rip", "code_ptr", unsafe.Offsetof(AMD64Context{}.RIP), 8),
	amd64Entry("eflags", "i386_eflags", unsafe.Offsetof(AMD64Context{}.RFLAGS), 4),
	amd64Entry("cs", "int32", unsafe.Offsetof(AMD64Context{}.CS), 4),
	amd64Entry("ss", "int32", unsafe.Offsetof(AMD64Context{}.SS), 4),
	amd64Entry("ds", "int32", unsafe.Offsetof(AMD64Context{}.DS), 4),
	amd64Entry("es", "int32", unsafe.Offsetof(AMD64Context{}.ES), 4),
	amd64Entry("fs", "int32", unsafe.Offsetof(AMD64Context{}.FS), 4),
	amd64Entry("gs", "int32", unsafe.Offsetof(AMD64Context{}.GS), 4),

	amd64AbsentEntry("st0", "i387_ext", 10),
	amd64AbsentEntry("st1", "i387_ext", 10),
	amd64AbsentEntry("st2", "i387_ext", 10),
	amd64AbsentEntry("st3", "i387_ext", 10),
	amd64AbsentEntry("st4", "i387_ext", 10),
	amd64AbsentEntry("st5", "i387_ext", 10),
	amd64AbsentEntry("st6", "i387_ext", 10),
	amd64AbsentEntry("st7", "i387_ext", 10),
	amd64AbsentEntry("fctrl", "int32", 4),
	amd64AbsentEntry("fstat", "int32", 4),
	amd64AbsentEntry("ftag", "int32", 4),
	amd64AbsentEntry("fiseg", "int32", 4),
	amd64AbsentEntry("fioff", "int32", 4),
	amd64AbsentEntry("foseg", "int32", 4),
	amd64AbsentEntry("fooff", "int32", 4),
	amd64AbsentEntry("fop", "int32", 4),

	amd64Entry("cr0", "int64", unsafe.Offsetof(AMD64Context{}.CR0), 8),
	amd64Entry("cr2", "int64", unsafe.Offsetof(AMD64Context{}.CR2), 8),
	amd64Entry("cr3", "int64", unsafe.Offsetof(AMD64Context{}.CR3), 8),
	amd64Entry("cr4", "int64", unsafe.Offsetof(AMD64Context{}.CR4), 8),
	amd64Entry("cr8", "int64", unsafe.Offsetof(AMD64Context{}.CR8), 8),
}

const amd64ArchName = "i386:x86-64"
