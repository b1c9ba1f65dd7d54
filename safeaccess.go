// safeaccess.go - C5: safe memory accessor (§4.3)
//
// Walks the requested range one page at a time, consulting C4 before
// every page and, when a memory-attribute collaborator is wired in,
// temporarily relaxing RO/RP so writes can land and restoring attributes
// exactly once the page is done. Mirrors the teacher's page-at-a-time
// bus access style in memory_bus.go, generalised to add the attribute
// relax/restore bracket C4 alone does not need.

package debugagent

// AccessMemory copies buf to/from virtual address va, page by page,
// validating each page against validator first and relaxing RO/RP via
// attrs (if non-nil) when the page would otherwise refuse the access.
// Returns false on the first page that fails validation or attribute
// relaxation; per §8 invariant 5, buf (on read) or target memory (on
// write) is left unmodified for every page at or after the failing one.
func AccessMemory(mem PhysicalMemory, validator VMValidator, attrs MemoryAttributes, va uint64, buf []byte, write bool, cfg AgentConfig) bool {
	if len(buf) == 0 {
		return true
	}

	if cfg.EnableWindbgWorkarounds && !write && windbgShortCircuit(va, len(buf)) {
		for i := range buf {
			buf[i] = 0
		}
		return true
	}

	off := 0
	for off < len(buf) {
		pageVA := (va + uint64(off)) &^ (vmPageSize - 1)
		pageOff := int((va + uint64(off)) & (vmPageSize - 1))
		n := vmPageSize - pageOff
		if n > len(buf)-off {
			n = len(buf) - off
		}

		if !accessPage(mem, validator, attrs, pageVA, pageOff, buf[off:off+n], write) {
			return false
		}
		off += n
	}
	return true
}

// windbgShortCircuit implements the workaround window from §4.3: a read
// entirely inside VA < 4 KiB, or entirely inside the 4 KiB window based at
// 0xFFFFF78000000000, is satisfied with zeros without ever reaching C4.
func windbgShortCircuit(va uint64, length int) bool {
	const sharedDataBase = 0xFFFFF78000000000
	end := va + uint64(length)
	if va < vmPageSize && end <= vmPageSize {
		return true
	}
	if va >= sharedDataBase && end <= sharedDataBase+vmPageSize {
		return true
	}
	return false
}

func accessPage(mem PhysicalMemory, validator VMValidator, attrs MemoryAttributes, pageVA uint64, pageOff int, chunk []byte, write bool) bool {
	valid := validator.IsPageReadable(pageVA)
	if write {
		valid = validator.IsPageWritable(pageVA)
	}

	relaxed := false
	var original PageAttributes
	if !valid && attrs != nil {
		cur, err := attrs.GetAttributes(pageVA, vmPageSize)
		if err != nil {
			return false
		}
		original = cur
		clear := PageAttributes(0)
		if cur.Has(AttrReadOnly) && write {
			clear |= AttrReadOnly | AttrReadProtected
		} else if cur.Has(AttrReadProtected) {
			clear |= AttrReadProtected
		}
		if clear == 0 {
			return false
		}
		attrs.ClearAttributes(pageVA, vmPageSize, clear)
		relaxed = true
		valid = true
	}
	if !valid {
		return false
	}

	var err error
	addr := pageVA + uint64(pageOff)
	if write {
		err = mem.WritePhys(addr, chunk)
	} else {
		err = mem.ReadPhys(addr, chunk)
	}

	if relaxed {
		attrs.SetAttributes(pageVA, vmPageSize, original)
	}
	return err == nil
}
