// watchpoints_amd64.go - DR0-DR3/DR7 hardware watchpoint slots (§4.6)

package debugagent

type amd64Watchpoints struct {
	regs  DebugRegisterFile
	slots [4]WatchpointSlot
}

func newAMD64Watchpoints(regs DebugRegisterFile) *amd64Watchpoints {
	return &amd64Watchpoints{regs: regs}
}

var amd64DRNames = [4]string{"dr0", "dr1", "dr2", "dr3"}

func amd64LenEncoding(length int) uint8 {
	switch length {
	case 1:
		return 0b00
	case 2:
		return 0b01
	case 8:
		return 0b10
	default:
		return 0b11
	}
}

// Add programs the first free DR slot with addr/length/access, after
// deduplicating against already-enabled slots. Read-only requests are not
// representable on x86-64 and silently become read-write, per §4.6.
func (w *amd64Watchpoints) Add(addr uint64, length int, read, write bool) bool {
	if read && !write {
		write = true
	}
	for _, s := range w.slots {
		if s.matches(addr, length, read, write) {
			return true
		}
	}
	for i := range w.slots {
		if w.slots[i].Enabled {
			continue
		}
		w.slots[i] = WatchpointSlot{Enabled: true, Addr: addr, Len: length, Read: read, Write: write}
		w.regs.WriteDebugReg(amd64DRNames[i], addr)

		dr7 := DR7(w.regs.ReadDebugReg("dr7"))
		rw := uint8(0b01) // write-only
		if read && write {
			rw = 0b11
		}
		dr7 = dr7.setLocalEnable(i, true)
		dr7 = dr7.setControl(i, rw, amd64LenEncoding(length))
		w.regs.WriteDebugReg("dr7", uint64(dr7))
		return true
	}
	return false
}

func (w *amd64Watchpoints) Remove(addr uint64, length int, read, write bool) bool {
	if read && !write {
		write = true
	}
	for i := range w.slots {
		if w.slots[i].matches(addr, length, read, write) {
			w.slots[i] = WatchpointSlot{}
			dr7 := DR7(w.regs.ReadDebugReg("dr7"))
			dr7 = dr7.setLocalEnable(i, false)
			w.regs.WriteDebugReg("dr7", uint64(dr7))
			return true
		}
	}
	return false
}

// Init masks DR7's low 8 bits, disabling any stale hardware breakpoints
// from a prior debug session.
func (w *amd64Watchpoints) Init() error {
	dr7 := DR7(w.regs.ReadDebugReg("dr7"))
	w.regs.WriteDebugReg("dr7", uint64(dr7.clearLocalEnables()))
	for i := range w.slots {
		w.slots[i] = WatchpointSlot{}
	}
	return nil
}
