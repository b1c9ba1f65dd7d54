// watchpoints_arm64.go - DBGWVRn_EL1/DBGWCRn_EL1 watchpoint slots (§4.6)

package debugagent

import "errors"

const (
	oslsrOSLK = 1 << 1

	mdscrSS  = 1 << 0
	mdscrKDE = 1 << 13
	mdscrMDE = 1 << 15

	// daifDebugMask is DAIF.D: set to mask (disable) debug exceptions
	// while the watchpoint/OS-lock/MDSCR sequence below is in flux.
	daifDebugMask = 1 << 9
)

var errOSLockStuck = errors.New("debugagent: OS lock could not be cleared (EL2/EL3 already locked debug)")

type arm64Watchpoints struct {
	regs  DebugRegisterFile
	slots [4]WatchpointSlot

	// barrier issues a speculation barrier (ISB/CSDB on real hardware)
	// after each step of Init's register sequence. Nil is treated as a
	// no-op, the way readTSC/readTimer are treated elsewhere in this
	// package when the caller has nothing real to wire in.
	barrier func()
}

func newARM64Watchpoints(regs DebugRegisterFile, barrier func()) *arm64Watchpoints {
	return &arm64Watchpoints{regs: regs, barrier: barrier}
}

func (w *arm64Watchpoints) doBarrier() {
	if w.barrier != nil {
		w.barrier()
	}
}

var arm64WVRNames = [4]string{"dbgwvr0", "dbgwvr1", "dbgwvr2", "dbgwvr3"}
var arm64WCRNames = [4]string{"dbgwcr0", "dbgwcr1", "dbgwcr2", "dbgwcr3"}

func (w *arm64Watchpoints) Add(addr uint64, length int, read, write bool) bool {
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
		w.regs.WriteDebugReg(arm64WVRNames[i], addr)

		var ctrl DBGWCR
		ctrl = ctrl.withEnable(true)
		ctrl = ctrl.withAccess(read, write)
		ctrl = ctrl.withByteMask(length)
		ctrl = ctrl.withTrapAllELs()
		w.regs.WriteDebugReg(arm64WCRNames[i], uint64(ctrl))
		return true
	}
	return false
}

func (w *arm64Watchpoints) Remove(addr uint64, length int, read, write bool) bool {
	for i := range w.slots {
		if w.slots[i].matches(addr, length, read, write) {
			w.slots[i] = WatchpointSlot{}
			w.regs.WriteDebugReg(arm64WCRNames[i], 0)
			return true
		}
	}
	return false
}

// Init masks debug exceptions in DAIF for the duration of the sequence,
// clears every watchpoint control register, clears the OS lock if held,
// and enables MDE+KDE in MDSCR_EL1, unmasking debug exceptions in DAIF on
// the way out (the D bit is cleared whatever its value on entry). Each
// step is followed by a speculation barrier, matching the original
// firmware's DebugArchInit: mask DAIF, clear the OS lock, enable
// MDE/KDE, clear the watchpoint pool, unmask DAIF, with a barrier after
// every register write in between so a speculatively-executed debug
// exception can't observe half-configured state. Per Design Note (see
// DESIGN.md), a stuck OS lock is reported rather than silently ignored:
// on platforms where EL2/EL3 firmware has already locked debug,
// continuing would leave the agent believing hardware watchpoints work
// when they silently don't.
func (w *arm64Watchpoints) Init() error {
	daif := w.regs.ReadDebugReg("daif")
	w.regs.WriteDebugReg("daif", daif|daifDebugMask)
	w.doBarrier()

	if w.regs.ReadDebugReg("oslsr")&oslsrOSLK != 0 {
		w.regs.WriteDebugReg("oslar", 0)
		if w.regs.ReadDebugReg("oslsr")&oslsrOSLK != 0 {
			w.restoreDAIF(daif)
			return errOSLockStuck
		}
	}
	w.doBarrier()

	mdscr := w.regs.ReadDebugReg("mdscr")
	mdscr |= mdscrMDE | mdscrKDE
	w.regs.WriteDebugReg("mdscr", mdscr)

	for i := range w.slots {
		w.slots[i] = WatchpointSlot{}
		w.regs.WriteDebugReg(arm64WCRNames[i], 0)
	}
	w.doBarrier()

	w.restoreDAIF(daif)
	return nil
}

// restoreDAIF unmasks debug exceptions and issues the closing barrier.
func (w *arm64Watchpoints) restoreDAIF(daif uint64) {
	w.regs.WriteDebugReg("daif", daif&^daifDebugMask)
	w.doBarrier()
}
