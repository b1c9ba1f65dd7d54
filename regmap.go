// regmap.go - C3: generic register-map read/write engine
//
// Generalises the teacher's named-lookup register adapters
// (DebugX86.GetRegister/SetRegister, DebugIE64.GetRegisters) from a CPU
// emulator's in-process struct fields to GDB's index-addressed,
// offset-into-context model: a register map is an ordered table whose index
// is the GDB register number, and each entry points at a byte offset in
// whatever context type the architecture captured.

package debugagent

import (
	"encoding/hex"
	"unsafe"
)

// RegisterMap is the ordered, per-architecture table; its slice index is
// the GDB register number.
type RegisterMap []RegisterMapEntry

// contextBytes returns entry.Size raw bytes from ctx+entry.Offset, in the
// order they appear in memory (target-native). Absent entries return
// all-zero bytes without touching ctx.
func contextBytes(ctx unsafe.Pointer, entry RegisterMapEntry) []byte {
	buf := make([]byte, entry.Size)
	if !entry.Present() {
		return buf
	}
	src := unsafe.Slice((*byte)(unsafe.Add(ctx, entry.Offset)), entry.Size)
	copy(buf, src)
	return buf
}

// setContextBytes writes raw bytes back into ctx+entry.Offset. A no-op for
// absent entries.
func setContextBytes(ctx unsafe.Pointer, entry RegisterMapEntry, data []byte) {
	if !entry.Present() {
		return
	}
	dst := unsafe.Slice((*byte)(unsafe.Add(ctx, entry.Offset)), entry.Size)
	n := copy(dst, data)
	_ = n
}

// ReadRegister returns the hex-encoded value of register index in the
// context ctx. Two hex digits per byte, in memory order.
func (m RegisterMap) ReadRegister(ctx unsafe.Pointer, index int) (string, bool) {
	if index < 0 || index >= len(m) {
		return "", false
	}
	return hex.EncodeToString(contextBytes(ctx, m[index])), true
}

// WriteRegister decodes hexVal and stores it at register index's offset.
// Absent registers accept any well-formed input without effect, per §4.1.
func (m RegisterMap) WriteRegister(ctx unsafe.Pointer, index int, hexVal string) bool {
	if index < 0 || index >= len(m) {
		return false
	}
	entry := m[index]
	data, err := hex.DecodeString(hexVal)
	if err != nil || len(data) != entry.Size {
		return false
	}
	setContextBytes(ctx, entry, data)
	return true
}

// ReadAll concatenates every register's hex encoding in index order (GDB's
// bulk 'g' packet).
func (m RegisterMap) ReadAll(ctx unsafe.Pointer) string {
	var out []byte
	for _, entry := range m {
		out = append(out, hex.EncodeToString(contextBytes(ctx, entry))...)
	}
	return string(out)
}

// WriteAll decodes a bulk 'G' payload and distributes it across every
// register in index order. Returns false if the payload is the wrong total
// length.
func (m RegisterMap) WriteAll(ctx unsafe.Pointer, hexVal string) bool {
	data, err := hex.DecodeString(hexVal)
	if err != nil {
		return false
	}
	total := 0
	for _, entry := range m {
		total += entry.Size
	}
	if len(data) != total {
		return false
	}
	off := 0
	for _, entry := range m {
		setContextBytes(ctx, entry, data[off:off+entry.Size])
		off += entry.Size
	}
	return true
}
