// watchpoints_test.go - C7 hardware watchpoint manager (§8 invariant 4)

package debugagent

import "testing"

// fakeDebugRegs is a DebugRegisterFile backed by a plain map, standing in
// for DR0-7 / MDSCR_EL1+DBGWVRn_EL1+DBGWCRn_EL1 in tests.
type fakeDebugRegs struct {
	regs map[string]uint64
}

func newFakeDebugRegs() *fakeDebugRegs {
	return &fakeDebugRegs{regs: make(map[string]uint64)}
}

func (f *fakeDebugRegs) ReadDebugReg(name string) uint64     { return f.regs[name] }
func (f *fakeDebugRegs) WriteDebugReg(name string, v uint64) { f.regs[name] = v }

// TestAMD64WatchpointDedup is §8 invariant 4 on x86-64: identical
// (addr,len,access) tuples share one slot, and remove succeeds exactly once.
func TestAMD64WatchpointDedup(t *testing.T) {
	regs := newFakeDebugRegs()
	wp := newAMD64Watchpoints(regs)

	if !wp.Add(0x4000, 4, false, true) {
		t.Fatal("first Add failed")
	}
	if !wp.Add(0x4000, 4, false, true) {
		t.Fatal("duplicate Add did not report success")
	}
	used := 0
	for _, s := range wp.slots {
		if s.Enabled {
			used++
		}
	}
	if used != 1 {
		t.Fatalf("enabled slot count = %d, want 1 after duplicate Add", used)
	}

	if !wp.Remove(0x4000, 4, false, true) {
		t.Fatal("Remove failed")
	}
	if wp.Remove(0x4000, 4, false, true) {
		t.Fatal("second Remove of the same watchpoint reported success")
	}
}

// TestAMD64WatchpointReadOnlyMapsToReadWrite covers §4.6: a read-only
// request silently becomes read-write on x86-64.
func TestAMD64WatchpointReadOnlyMapsToReadWrite(t *testing.T) {
	regs := newFakeDebugRegs()
	wp := newAMD64Watchpoints(regs)

	if !wp.Add(0x5000, 1, true, false) {
		t.Fatal("Add(read-only) failed")
	}
	if !wp.slots[0].Read || !wp.slots[0].Write {
		t.Fatalf("slot after read-only Add = %+v, want both Read and Write set", wp.slots[0])
	}
}

// TestAMD64WatchpointSlotExhaustion exercises the fixed 4-slot pool.
func TestAMD64WatchpointSlotExhaustion(t *testing.T) {
	regs := newFakeDebugRegs()
	wp := newAMD64Watchpoints(regs)

	for i := 0; i < 4; i++ {
		if !wp.Add(uint64(0x1000*(i+1)), 1, false, true) {
			t.Fatalf("Add #%d failed within pool capacity", i)
		}
	}
	if wp.Add(0x9000, 1, false, true) {
		t.Fatal("Add succeeded past the 4-slot pool")
	}
}

// TestAMD64WatchpointInitClearsStaleState confirms DebugArchInit's
// "mask DR7 low 8 bits" step disables any slot left over from a prior
// session.
func TestAMD64WatchpointInitClearsStaleState(t *testing.T) {
	regs := newFakeDebugRegs()
	regs.WriteDebugReg("dr7", 0xFF)
	wp := newAMD64Watchpoints(regs)
	if err := wp.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if regs.ReadDebugReg("dr7")&0xFF != 0 {
		t.Fatalf("dr7 low byte not cleared by Init: 0x%x", regs.ReadDebugReg("dr7"))
	}
}

// TestARM64WatchpointDedup mirrors TestAMD64WatchpointDedup for the
// DBGWVRn_EL1/DBGWCRn_EL1 pool.
func TestARM64WatchpointDedup(t *testing.T) {
	regs := newFakeDebugRegs()
	wp := newARM64Watchpoints(regs, nil)

	if !wp.Add(0x8000, 4, true, true) {
		t.Fatal("first Add failed")
	}
	if !wp.Add(0x8000, 4, true, true) {
		t.Fatal("duplicate Add did not report success")
	}
	used := 0
	for _, s := range wp.slots {
		if s.Enabled {
			used++
		}
	}
	if used != 1 {
		t.Fatalf("enabled slot count = %d, want 1", used)
	}
	if !wp.Remove(0x8000, 4, true, true) {
		t.Fatal("Remove failed")
	}
}

// TestARM64WatchpointInitReportsStuckOSLock covers the Design Note: if
// OSLAR_EL1 cannot clear the OS lock, Init must report an error rather
// than silently continuing.
func TestARM64WatchpointInitReportsStuckOSLock(t *testing.T) {
	regs := newFakeDebugRegs()
	regs.regs["oslsr"] = oslsrOSLK // lock held and, in this fake, unclearable

	wp := newARM64Watchpoints(regs, nil)
	err := wp.Init()
	if err == nil {
		t.Fatal("Init did not report the stuck OS lock")
	}
	if regs.ReadDebugReg("daif")&daifDebugMask != 0 {
		t.Fatal("DAIF debug mask left set after the stuck-OS-lock error path")
	}
}

// TestARM64WatchpointInitMasksDAIFAndBarriers covers the DAIF mask/restore
// bracket and the speculation-barrier calls around Init's register
// sequence: debug exceptions must be masked for the whole sequence and
// unmasked on exit, with a barrier after each step.
func TestARM64WatchpointInitMasksDAIFAndBarriers(t *testing.T) {
	regs := newFakeDebugRegs()
	var sawMaskedDuringInit bool
	var barriers int
	barrier := func() {
		barriers++
		if regs.ReadDebugReg("daif")&daifDebugMask != 0 {
			sawMaskedDuringInit = true
		}
	}

	wp := newARM64Watchpoints(regs, barrier)
	if err := wp.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	if !sawMaskedDuringInit {
		t.Fatal("no barrier observed DAIF debug exceptions masked during Init")
	}
	if barriers < 4 {
		t.Fatalf("barrier called %d times, want at least 4 (mask, OS-lock, mdscr/watchpoints, restore)", barriers)
	}
	if regs.ReadDebugReg("daif")&daifDebugMask != 0 {
		t.Fatal("DAIF debug mask left set after Init returned")
	}
}

// TestARM64WatchpointInitEnablesMDEKDE covers the ordinary path with the
// OS lock not held: Init succeeds and enables MDE/KDE.
func TestARM64WatchpointInitEnablesMDEKDE(t *testing.T) {
	regs := newFakeDebugRegs()
	regs.regs["oslsr"] = oslsrOSLK

	// A real OSLAR_EL1 write would itself clear OSLSR_EL1.OSLK; the fake
	// register file has no side effects, so simulate that by wiring a
	// write-through via WriteDebugReg override is not available - instead
	// verify the error path above and the MDE/KDE enablement here against
	// a lock that isn't held at all.
	delete(regs.regs, "oslsr")

	wp := newARM64Watchpoints(regs, nil)
	if err := wp.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	mdscr := regs.ReadDebugReg("mdscr")
	if mdscr&mdscrMDE == 0 || mdscr&mdscrKDE == 0 {
		t.Fatalf("mdscr = 0x%x, want MDE and KDE set", mdscr)
	}
}
