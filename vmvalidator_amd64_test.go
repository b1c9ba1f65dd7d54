// vmvalidator_amd64_test.go - C4 x86-64 page-table walker (§4.2)

package debugagent

import "testing"

func writePTE(t *testing.T, mem *FlatMemory, addr uint64, entry uint64) {
	t.Helper()
	var b [8]byte
	for i := 0; i < 8; i++ {
		b[i] = byte(entry >> (8 * uint(i)))
	}
	if err := mem.WritePhys(addr, b[:]); err != nil {
		t.Fatalf("writePTE(%#x): %v", addr, err)
	}
}

// buildAMD64PageTables wires a 4-level PML4->PDPT->PD->PT chain mapping
// virtual address 0x1000 to a data page, with the terminal entry's
// Present/RW bits controlled by the caller.
func buildAMD64PageTables(t *testing.T, mem *FlatMemory, terminalBits uint64) uint64 {
	t.Helper()
	const (
		pml4 = 0x1000
		pdpt = 0x2000
		pd   = 0x3000
		pt   = 0x4000
	)
	writePTE(t, mem, pml4+0*8, pdpt|peEntryPresent|peEntryRW)
	writePTE(t, mem, pdpt+0*8, pd|peEntryPresent|peEntryRW)
	writePTE(t, mem, pd+0*8, pt|peEntryPresent|peEntryRW)
	writePTE(t, mem, pt+1*8, 0x5000|terminalBits) // va 0x1000 -> PT index 1
	return pml4
}

func TestAMD64VMValidatorReadableWritable(t *testing.T) {
	mem := NewFlatMemory(0, 1<<20)
	cr3 := buildAMD64PageTables(t, mem, peEntryPresent|peEntryRW)

	v := &amd64VMValidator{mem: mem, cr3: cr3, cr4: 0}
	if !v.IsPageReadable(0x1000) {
		t.Fatal("expected VA 0x1000 readable")
	}
	if !v.IsPageWritable(0x1000) {
		t.Fatal("expected VA 0x1000 writable")
	}
}

func TestAMD64VMValidatorReadOnly(t *testing.T) {
	mem := NewFlatMemory(0, 1<<20)
	cr3 := buildAMD64PageTables(t, mem, peEntryPresent) // RW=0

	v := &amd64VMValidator{mem: mem, cr3: cr3, cr4: 0}
	if !v.IsPageReadable(0x1000) {
		t.Fatal("expected VA 0x1000 readable")
	}
	if v.IsPageWritable(0x1000) {
		t.Fatal("expected VA 0x1000 not writable (RW=0)")
	}
}

func TestAMD64VMValidatorNotPresent(t *testing.T) {
	mem := NewFlatMemory(0, 1<<20)
	cr3 := buildAMD64PageTables(t, mem, 0) // Present=0

	v := &amd64VMValidator{mem: mem, cr3: cr3, cr4: 0}
	if v.IsPageReadable(0x1000) || v.IsPageWritable(0x1000) {
		t.Fatal("not-present page reported valid")
	}
}

// TestAMD64VMValidatorGuardRails covers the two always-not-valid cases:
// VA 0, and an address inside the configured reserved window.
func TestAMD64VMValidatorGuardRails(t *testing.T) {
	mem := NewFlatMemory(0, 1<<20)
	cr3 := buildAMD64PageTables(t, mem, peEntryPresent|peEntryRW)
	v := &amd64VMValidator{mem: mem, cr3: cr3, cr4: 0, window: reservedWindow{0x83000000, 0x87c00000}}

	if v.IsPageReadable(0) {
		t.Fatal("VA 0 must never be reported valid")
	}
	if v.IsPageReadable(0x84000000) {
		t.Fatal("address inside the reserved window must never be reported valid")
	}
}

// TestAMD64VMValidatorHugePage covers the PS=1 short-circuit at the PD
// level (2MiB page), which must stop the walk early and use that entry's
// own permissions.
func TestAMD64VMValidatorHugePage(t *testing.T) {
	mem := NewFlatMemory(0, 1<<20)
	const (
		pml4 = 0x1000
		pdpt = 0x2000
		pd   = 0x3000
	)
	writePTE(t, mem, pml4, pdpt|peEntryPresent|peEntryRW)
	writePTE(t, mem, pdpt, pd|peEntryPresent|peEntryRW)
	writePTE(t, mem, pd, 0x600000|peEntryPresent|peEntryRW|peEntryPS)

	v := &amd64VMValidator{mem: mem, cr3: pml4, cr4: 0}
	if !v.IsPageReadable(0x1000) || !v.IsPageWritable(0x1000) {
		t.Fatal("2MiB huge page should be readable and writable")
	}
}
