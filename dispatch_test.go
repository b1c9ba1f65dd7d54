// dispatch_test.go - C10 GDB command dispatcher (§4.7, §4.7.1; S1-S4)

package debugagent

import (
	"encoding/hex"
	"strings"
	"testing"
	"unsafe"
)

// identityMapLow2MiB builds a 4-level page table, present+writable, that
// identity-maps virtual addresses 0..0x1FFFFF onto the same physical
// addresses, so dispatcher tests can exercise real m/M/Z0 commands without
// every address routing through a not-present page.
func identityMapLow2MiB(t *testing.T, mem *FlatMemory) (cr3 uint64) {
	t.Helper()
	const (
		pml4 = 0xF0000
		pdpt = 0xF1000
		pd   = 0xF2000
		pt   = 0xF3000
	)
	writePTE(t, mem, pml4, pdpt|peEntryPresent|peEntryRW)
	writePTE(t, mem, pdpt, pd|peEntryPresent|peEntryRW)
	writePTE(t, mem, pd, pt|peEntryPresent|peEntryRW)
	for i := uint64(0); i < 512; i++ {
		writePTE(t, mem, pt+i*8, i*0x1000|peEntryPresent|peEntryRW)
	}
	return pml4
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *AMD64Context, *FlatMemory) {
	t.Helper()
	mem := NewFlatMemory(0, 1<<20)
	cr3 := identityMapLow2MiB(t, mem)
	ctx := &AMD64Context{RAX: 0x1122334455667788, RIP: 0x1000, CR3: cr3}
	if err := mem.WritePhys(0x1000, []byte{0x90, 0x90, 0x90, 0x90}); err != nil {
		t.Fatal(err)
	}
	arch := NewAMD64Arch(DefaultAgentConfig(), nil)
	bps := NewBreakpointTable(mem, []byte{0xCC}, 4, arch.FlushInstructionCache)
	regs := newFakeDebugRegs()
	wps := arch.Watchpoints(regs)
	mon := newMonitorDispatcher("x86-64", &SessionState{}, &ExceptionRecord{}, nil, nil)
	d := NewDispatcher(arch, unsafe.Pointer(ctx), mem, nil, bps, wps, DefaultAgentConfig(), mon)
	return d, ctx, mem
}

// TestDispatchQSupported is scenario S1.
func TestDispatchQSupported(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	got := string(d.Dispatch([]byte("qSupported:multiprocess+")))
	want := "PacketSize=1000;qXfer:features:read+;vContSupported+"
	if got != want {
		t.Fatalf("qSupported reply = %q, want %q", got, want)
	}
}

// TestDispatchBulkRegisterRead is scenario S2: the first 16 hex chars of a
// 'g' reply are RAX in memory order.
func TestDispatchBulkRegisterRead(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	got := string(d.Dispatch([]byte("g")))
	if !strings.HasPrefix(got, "8877665544332211") {
		t.Fatalf("g reply = %q, want prefix 8877665544332211", got)
	}
}

// TestDispatchBreakpointInsertRemove is scenario S4.
func TestDispatchBreakpointInsertRemove(t *testing.T) {
	d, _, mem := newTestDispatcher(t)

	if got := string(d.Dispatch([]byte("Z0,1000,1"))); got != "OK" {
		t.Fatalf("Z0 reply = %q, want OK", got)
	}
	var b [4]byte
	if err := mem.ReadPhys(0x1000, b[:]); err != nil {
		t.Fatal(err)
	}
	if b != [4]byte{0xCC, 0x90, 0x90, 0x90} {
		t.Fatalf("bytes after Z0 = % x, want CC 90 90 90", b)
	}

	if got := string(d.Dispatch([]byte("z0,1000,1"))); got != "OK" {
		t.Fatalf("z0 reply = %q, want OK", got)
	}
	if err := mem.ReadPhys(0x1000, b[:]); err != nil {
		t.Fatal(err)
	}
	if b != [4]byte{0x90, 0x90, 0x90, 0x90} {
		t.Fatalf("bytes after z0 = % x, want original", b)
	}
}

// TestDispatchOtherBreakTypesUnsupported covers "other Z-types respond E01".
func TestDispatchOtherBreakTypesUnsupported(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	if got := string(d.Dispatch([]byte("Z1,1000,4"))); got != ErrUnsupported {
		t.Fatalf("Z1 reply = %q, want %s", got, ErrUnsupported)
	}
}

func TestDispatchMemoryReadWrite(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	if got := string(d.Dispatch([]byte("M2000,4:deadbeef"))); got != "OK" {
		t.Fatalf("M reply = %q, want OK", got)
	}
	got := string(d.Dispatch([]byte("m2000,4")))
	if got != "deadbeef" {
		t.Fatalf("m reply = %q, want deadbeef", got)
	}
}

func TestDispatchMemoryWriteBadLength(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	if got := string(d.Dispatch([]byte("M2000,4:dead"))); got != ErrBadRequest {
		t.Fatalf("M with short data = %q, want %s", got, ErrBadRequest)
	}
}

func TestDispatchRegisterReadWrite(t *testing.T) {
	d, ctx, _ := newTestDispatcher(t)

	got := string(d.Dispatch([]byte("p0")))
	if got != "8877665544332211" {
		t.Fatalf("p0 reply = %q, want 8877665544332211", got)
	}

	if got := string(d.Dispatch([]byte("P1=0100000000000000"))); got != "OK" {
		t.Fatalf("P1 reply = %q, want OK", got)
	}
	if ctx.RBX != 1 {
		t.Fatalf("RBX after P1 write = %#x, want 1", ctx.RBX)
	}
}

func TestDispatchVContSupportedAndResume(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	if got := string(d.Dispatch([]byte("vCont?"))); got != "vCont;c;C;s;S" {
		t.Fatalf("vCont? reply = %q", got)
	}
	if got := d.Dispatch([]byte("vCont;c")); got != nil {
		t.Fatalf("vCont;c reply = %q, want no reply", got)
	}
	if !d.Resume {
		t.Fatal("vCont;c did not set Resume")
	}
}

func TestDispatchVContSingleStepArmsSingleStep(t *testing.T) {
	d, ctx, _ := newTestDispatcher(t)
	ctx.RFLAGS = 0

	d.Dispatch([]byte("vCont;s"))
	if !d.Resume {
		t.Fatal("vCont;s did not set Resume")
	}
	if ctx.RFLAGS&rflagsTF == 0 {
		t.Fatal("vCont;s did not arm single-step (RFLAGS.TF)")
	}
}

func TestDispatchUnknownCommand(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	if got := string(d.Dispatch([]byte("~bogus"))); got != ErrUnknownCommand {
		t.Fatalf("unknown command reply = %q, want %s", got, ErrUnknownCommand)
	}
}

func TestDispatchTargetAndRegistersXML(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	xml := string(d.Dispatch([]byte("qXfer:features:read:target.xml:0,fff")))
	if !strings.Contains(xml, "<architecture>i386:x86-64</architecture>") {
		t.Fatalf("target.xml = %q", xml)
	}
	regs := string(d.Dispatch([]byte("qXfer:features:read:registers.xml:0,fff")))
	if !strings.Contains(regs, `name="rax"`) {
		t.Fatalf("registers.xml missing rax entry: %q", regs)
	}
}

// TestDispatchQRcmdMonitor exercises the qRcmd hex encode/decode wrapper
// against the 'R' (reboot-on-continue) monitor command.
func TestDispatchQRcmdMonitor(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	cmd := hex.EncodeToString([]byte("R"))
	got := d.Dispatch([]byte("qRcmd," + cmd))
	decoded, err := hex.DecodeString(string(got))
	if err != nil {
		t.Fatalf("qRcmd reply not hex: %v", err)
	}
	if string(decoded) != "OK\n" {
		t.Fatalf("qRcmd,R decoded reply = %q, want OK\\n", decoded)
	}
}

func TestDispatchStopReply(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	if got := string(d.Dispatch([]byte("?"))); got != StopReply {
		t.Fatalf("? reply = %q, want %q", got, StopReply)
	}
}
