// Command agentsim runs the debug agent against simulated physical memory
// and an x86-64 or AArch64 front-end, driven over a real serial port or
// over stdin/stdout in raw mode, for board-bring-up-style manual testing
// without real firmware.
package main

import (
	"flag"
	"fmt"
	"os"
	"unsafe"

	"github.com/intuitionamiga/debugagent"
)

func main() {
	arch := flag.String("arch", "amd64", "target architecture: amd64 or arm64")
	memSize := flag.Int("mem", 16<<20, "simulated physical memory size in bytes")
	port := flag.String("serial", "", "serial device to use as the transport (e.g. /dev/ttyUSB0); empty uses stdin/stdout raw mode")
	baud := flag.Uint("baud", 115200, "baud rate when -serial is set")
	initialBreak := flag.Bool("initial-break", true, "stop once at start of day before running, like the real firmware flag")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: agentsim [options]\n\nRuns the GDB debug agent against a simulated target.\n\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  agentsim -arch arm64\n")
		fmt.Fprintf(os.Stderr, "  agentsim -serial /dev/ttyUSB0 -baud 57600\n")
	}
	flag.Parse()

	transport, cleanup, err := openTransport(*port, uint32(*baud))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	mem := debugagent.NewFlatMemory(0, *memSize)
	cfg := debugagent.DefaultAgentConfig()

	var a debugagent.Architecture
	switch *arch {
	case "amd64":
		a = debugagent.NewAMD64Arch(cfg, func() uint64 { return 0 })
	case "arm64":
		a = debugagent.NewAArch64Arch(func() (uint64, uint64) { return 0, 24_000_000 }, func() {})
	default:
		fmt.Fprintf(os.Stderr, "error: unknown -arch %q\n", *arch)
		os.Exit(1)
	}

	regs := newFakeRegisterFile()
	watchdog := noopWatchdog{}
	logs := noopLogControl{}
	reset := printResetter{}

	ctrl := debugagent.NewController(a, regs, mem, nil, transport, watchdog, logs, reset, cfg)
	ctrl.SetLog(debugagent.NewStatusLog(os.Stdout))

	switch *arch {
	case "amd64":
		ctrl.SetContext(unsafe.Pointer(new(debugagent.AMD64Context)))
	case "arm64":
		ctrl.SetContext(unsafe.Pointer(new(debugagent.AArch64Context)))
	}

	block := debugagent.ArchControlBlock{}
	block.Flags.InitialBreakpoint = *initialBreak
	block.InitialBreakpointTimeoutMS = 0
	block.PerformanceCounterFreq = 1_000_000

	if err := ctrl.Init(block); err != nil {
		fmt.Fprintf(os.Stderr, "error: agent init failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("agentsim: session ended")
}
