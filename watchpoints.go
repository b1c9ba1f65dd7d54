// watchpoints.go - C7: hardware watchpoint manager, shared contract (§4.6)
//
// Generalises the fixed-slot-pool shape from the teacher's voice-channel
// allocators (a small number of hardware resources, dedup before
// allocating, explicit free-list) to debug-register slots.

package debugagent

// WatchpointSlot is one architectural debug-register pair, independent of
// whichever concrete registers back it.
type WatchpointSlot struct {
	Enabled bool
	Addr    uint64
	Len     int
	Read    bool
	Write   bool
}

func (s WatchpointSlot) matches(addr uint64, length int, read, write bool) bool {
	return s.Enabled && s.Addr == addr && s.Len == length && s.Read == read && s.Write == write
}

// WatchpointManager is the C7 contract: add/remove data watchpoints
// against a small fixed pool, deduplicating identical requests.
type WatchpointManager interface {
	Add(addr uint64, length int, read, write bool) bool
	Remove(addr uint64, length int, read, write bool) bool
	Init() error
}
