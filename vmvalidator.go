// vmvalidator.go - C4: shared page-table-walker plumbing
//
// Generalises memory_bus.go's SystemBus (mask the address, index a table,
// stop on the first miss) from one flat IO-region table to a multi-level
// page-table walk over a PhysicalMemory. The two concrete walkers
// (vmvalidator_amd64.go, vmvalidator_arm64.go) never fault and never
// return anything but a plain bool: any anomaly is "not valid", so C5's
// caller simply refuses the access.

package debugagent

const vmPageSize = 4096

// VMValidator answers whether a virtual address is currently readable or
// writable, without ever faulting.
type VMValidator interface {
	IsPageReadable(va uint64) bool
	IsPageWritable(va uint64) bool
}

// reservedWindow models the Design Note 1 guard rail: a configurable
// address and address range that the validator always reports not-valid,
// regardless of what the page tables say.
type reservedWindow struct {
	low, high uint64 // low==high==0 disables the window
}

func (w reservedWindow) contains(va uint64) bool {
	if w.low == 0 && w.high == 0 {
		return false
	}
	return va >= w.low && va < w.high
}
