// xml.go - C10: target-description and register-feature XML serialization (§6)

package debugagent

import (
	"fmt"
	"strings"
)

// TargetXML renders the top-level target-description document GDB fetches
// via qXfer:features:read:target.xml.
func TargetXML(td TargetDescription) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?>` + "\n")
	b.WriteString(`<!DOCTYPE target SYSTEM "gdb-target.dtd">` + "\n")
	b.WriteString("<target>\n")
	fmt.Fprintf(&b, "  <architecture>%s</architecture>\n", td.Arch)
	b.WriteString(`  <xi:include href="registers.xml"/>` + "\n")
	b.WriteString("</target>\n")
	return b.String()
}

// RegistersXML renders the register feature document GDB fetches via
// qXfer:features:read:registers.xml: one <reg> element per table entry, in
// index order, named/typed/sized per the register map.
func RegistersXML(m RegisterMap) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?>` + "\n")
	b.WriteString("<feature>\n")
	for i, entry := range m {
		fmt.Fprintf(&b, "  <reg name=\"%s\" bitsize=\"%d\" type=\"%s\" regnum=\"%d\"/>\n",
			entry.Name, entry.Size*8, entry.Type, i)
	}
	b.WriteString("</feature>\n")
	return b.String()
}
