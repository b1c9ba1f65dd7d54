// Package debugagent implements the on-target half of a GDB Remote Serial
// Protocol debug stub: an architecture exception front-end, a virtual-memory
// validator, a safe memory accessor, software/hardware breakpoint managers,
// and the packet framer/dispatcher/session controller that tie them
// together. It is meant to be linked into firmware; the external world
// (transport, timer, watchdog, reset, memory-attribute and loader services)
// is represented as the small interfaces in collaborators.go so the agent
// can be driven and tested without real hardware.
package debugagent
