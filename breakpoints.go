// breakpoints.go - C6: fixed-capacity software breakpoint table (§4.4)

package debugagent

type breakpointSlot struct {
	active bool
	addr   uint64
	saved  []byte
}

// BreakpointTable is the fixed-capacity software breakpoint set: trap-byte
// patching over PhysicalMemory with idempotent add/remove, per §8's
// "breakpoint idempotence" invariant.
type BreakpointTable struct {
	mem    PhysicalMemory
	opcode []byte
	slots  []breakpointSlot

	// flushICache is invoked after every opcode write so a freshly
	// planted or lifted trap is visible to the fetch path; nil is a
	// no-op, the architecture's own FlushInstructionCache in practice.
	flushICache func(addr uint64, length int)
}

// NewBreakpointTable allocates capacity slots, each sized to hold the
// architecture's trap instruction (one byte on x86-64, four on AArch64).
// flushICache is called after each patch/restore with the patched range;
// pass nil if the architecture needs no cache maintenance.
func NewBreakpointTable(mem PhysicalMemory, opcode []byte, capacity int, flushICache func(addr uint64, length int)) *BreakpointTable {
	return &BreakpointTable{mem: mem, opcode: opcode, slots: make([]breakpointSlot, capacity), flushICache: flushICache}
}

func (t *BreakpointTable) flush(addr uint64) {
	if t.flushICache != nil {
		t.flushICache(addr, len(t.opcode))
	}
}

// Add patches the trap opcode in at addr, saving the original bytes for
// Remove. Re-adding an address that already has an active entry is a
// no-op that returns true (idempotent). Returns false if no slot is free.
func (t *BreakpointTable) Add(addr uint64) bool {
	for i := range t.slots {
		if t.slots[i].active && t.slots[i].addr == addr {
			return true
		}
	}
	for i := range t.slots {
		if t.slots[i].active {
			continue
		}
		saved := make([]byte, len(t.opcode))
		if err := t.mem.ReadPhys(addr, saved); err != nil {
			return false
		}
		if err := t.mem.WritePhys(addr, t.opcode); err != nil {
			return false
		}
		t.flush(addr)
		t.slots[i] = breakpointSlot{active: true, addr: addr, saved: saved}
		return true
	}
	return false
}

// Remove restores the original bytes at addr and frees the slot. Returns
// false if no active entry matches addr.
func (t *BreakpointTable) Remove(addr uint64) bool {
	for i := range t.slots {
		if t.slots[i].active && t.slots[i].addr == addr {
			_ = t.mem.WritePhys(addr, t.slots[i].saved)
			t.flush(addr)
			t.slots[i] = breakpointSlot{}
			return true
		}
	}
	return false
}

// Active reports whether addr currently carries a planted trap.
func (t *BreakpointTable) Active(addr uint64) bool {
	for i := range t.slots {
		if t.slots[i].active && t.slots[i].addr == addr {
			return true
		}
	}
	return false
}

// Clear removes every planted breakpoint, restoring original bytes.
func (t *BreakpointTable) Clear() {
	for i := range t.slots {
		if t.slots[i].active {
			_ = t.mem.WritePhys(t.slots[i].addr, t.slots[i].saved)
			t.flush(t.slots[i].addr)
			t.slots[i] = breakpointSlot{}
		}
	}
}
