package main

import (
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/intuitionamiga/debugagent"
	"github.com/intuitionamiga/debugagent/transport/serial"
)

// openTransport returns either a real serial.Port, or a stdin/stdout
// transport with the terminal switched to raw mode so GDB's '$'-framed
// packets aren't mangled by line discipline.
func openTransport(devicePath string, baud uint32) (debugagent.Transport, func(), error) {
	if devicePath != "" {
		p, err := serial.Open(devicePath, baud)
		if err != nil {
			return nil, nil, err
		}
		return p, func() { p.Close() }, nil
	}

	fd := int(os.Stdin.Fd())
	prev, err := term.MakeRaw(fd)
	if err != nil {
		return nil, nil, fmt.Errorf("agentsim: putting stdin into raw mode: %w", err)
	}
	t := &stdioTransport{}
	return t, func() { _ = term.Restore(fd, prev) }, nil
}

// stdioTransport is a debugagent.Transport over stdin/stdout, used when no
// -serial device is given; stdin must already be in raw mode.
type stdioTransport struct{}

func (stdioTransport) Init() error { return nil }

func (stdioTransport) Read(buf []byte, timeoutMS int) (int, error) {
	return os.Stdin.Read(buf)
}

func (stdioTransport) Write(buf []byte) (int, error) {
	return os.Stdout.Write(buf)
}

func (stdioTransport) Poll() bool { return false }

// fakeRegisterFile backs debugagent.DebugRegisterFile with a simple named
// map, standing in for real DR0-7/MDSCR/OSLAR/TTBR0/TCR hardware access.
type fakeRegisterFile struct {
	regs map[string]uint64
}

func newFakeRegisterFile() *fakeRegisterFile {
	return &fakeRegisterFile{regs: make(map[string]uint64)}
}

func (f *fakeRegisterFile) ReadDebugReg(name string) uint64  { return f.regs[name] }
func (f *fakeRegisterFile) WriteDebugReg(name string, v uint64) { f.regs[name] = v }

type noopWatchdog struct{}

func (noopWatchdog) Suspend() bool    { return false }
func (noopWatchdog) Resume(bool) {}

type noopLogControl struct{}

func (noopLogControl) Suspend() {}
func (noopLogControl) Resume()  {}

type printResetter struct{}

func (printResetter) ColdReset() {
	fmt.Println("agentsim: cold reset requested; exiting")
	os.Exit(0)
}
