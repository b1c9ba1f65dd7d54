// session.go - C11: session controller (§4.9)

package debugagent

import (
	"fmt"
	"strings"
	"unsafe"
)

// Controller orchestrates one debug session: vector installation, the
// stop/resume loop, and the collaborators it must suspend/resume around a
// stop. One Controller owns one architecture front-end and one physical
// memory; it is not safe for concurrent stops, matching §5's
// single-threaded cooperative model.
type Controller struct {
	arch  Architecture
	regs  DebugRegisterFile
	mem   PhysicalMemory
	attrs MemoryAttributes

	transport Transport
	watchdog  Watchdog
	logs      LogControl
	reset     Resetter

	bps *BreakpointTable
	wps WatchpointManager
	vt  VectorTable
	cfg AgentConfig
	log *StatusLog

	state   SessionState
	lastExc ExceptionRecord

	// ctx is the most recently captured register context. A genuine CPU
	// exception refreshes it; a synthetic stop (initial breakpoint,
	// module-load, break-in) reuses whatever was captured last, since
	// the simulated front-end has no exception frame of its own at that
	// point. Set once via SetContext before Init when there has been no
	// exception yet.
	ctx unsafe.Pointer

	// OnStop is an optional hook invoked whenever a debug stop begins,
	// purely observational: it does not participate in the wire
	// protocol and exists so an embedding firmware phase (or a test) can
	// react to stops without threading a callback through every layer.
	OnStop func(BreakReason, ExceptionRecord)
}

// NewController wires the collaborators together. mem backs both the
// breakpoint table and every memory operation C5 performs.
func NewController(arch Architecture, regs DebugRegisterFile, mem PhysicalMemory, attrs MemoryAttributes, transport Transport, watchdog Watchdog, logs LogControl, reset Resetter, cfg AgentConfig) *Controller {
	return &Controller{
		arch:      arch,
		regs:      regs,
		mem:       mem,
		attrs:     attrs,
		transport: transport,
		watchdog:  watchdog,
		logs:      logs,
		reset:     reset,
		bps:       NewBreakpointTable(mem, arch.BreakpointOpcode(), cfg.MaxBreakpoints, arch.FlushInstructionCache),
		wps:       arch.Watchpoints(regs),
		cfg:       cfg,
		log:       NewStatusLog(nopWriter{}),
	}
}

// SetLog redirects status output; cmd/agentsim points this at stdout.
func (c *Controller) SetLog(log *StatusLog) { c.log = log }

// SetContext primes the register context used by synthetic stops
// (initial breakpoint, module-load, break-in) before any real exception
// has been delivered.
func (c *Controller) SetContext(ctx unsafe.Pointer) { c.ctx = ctx }

// Init performs the once-only startup sequence: transport init, arch debug
// feature enablement, exception-vector installation, and the optional
// synthetic initial breakpoint (§4.9 "Initialization").
func (c *Controller) Init(ctrl ArchControlBlock) error {
	if err := c.transport.Init(); err != nil {
		return err
	}
	if err := c.arch.InitDebugFeatures(ctrl, c.regs); err != nil {
		return err
	}
	c.vt.Install(c.onException)
	c.state.Initialized = true

	if ctrl.Flags.InitialBreakpoint {
		c.state.NextBreakpointTimeoutMS = ctrl.InitialBreakpointTimeoutMS
		c.enterStop(BreakInitial, ExceptionRecord{Kind: KindBreakpoint})
	}
	return nil
}

// Deliver feeds an exception into the installed vector table; production
// firmware instead points its IDT/VBAR entries directly at onException.
func (c *Controller) Deliver(rec ExceptionRecord, ctx unsafe.Pointer) {
	c.vt.Deliver(rec, ctx)
}

// onException is C8's entry callback for a genuine CPU exception: the
// stop reason is "none" (a plain trap, not one of the synthetic reasons
// reported by monitor '?').
func (c *Controller) onException(rec ExceptionRecord, ctx unsafe.Pointer) {
	c.ctx = ctx
	wasRunning := c.watchdog.Suspend()
	c.runStopLoop(BreakNone, rec)
	c.watchdog.Resume(wasRunning)
}

// enterStop synthesizes a stop without a real CPU exception, used for the
// initial breakpoint, the module-load hook, and a debugger break-in. It
// reuses whatever context SetContext/onException last captured.
func (c *Controller) enterStop(reason BreakReason, rec ExceptionRecord) {
	wasRunning := c.watchdog.Suspend()
	c.runStopLoop(reason, rec)
	c.watchdog.Resume(wasRunning)
}

// PollBreakIn is called by the firmware's idle/periodic callback while the
// target is running (not stopped). If the host has sent the break-in byte
// (Ctrl-C, 0x03), it synthesizes a Breakpoint stop with reason
// DebuggerBreak, entering the stub via the normal stop loop (§4.6).
func (c *Controller) PollBreakIn() {
	if !c.transport.Poll() {
		return
	}
	var b [1]byte
	n, err := c.transport.Read(b[:], 0)
	if err != nil || n == 0 || b[0] != breakByte {
		return
	}
	c.enterStop(BreakDebuggerBreak, ExceptionRecord{Kind: KindBreakpoint})
}

// runStopLoop implements §4.9 steps 1-8.
func (c *Controller) runStopLoop(reason BreakReason, rec ExceptionRecord) {
	c.lastExc = rec
	c.state.BreakReason = reason
	c.state.Running = false
	c.logs.Suspend()
	defer c.logs.Resume()

	ctx := c.ctx
	if ctx != nil && rec.Kind == KindBreakpoint {
		c.arch.FixupBreakpointPC(ctx, c.mem)
	}

	var deadline uint64
	hasDeadline := false
	if reason == BreakInitial || (rec.Kind == KindBreakpoint && c.state.NextBreakpointTimeoutMS != 0) {
		if c.state.NextBreakpointTimeoutMS != 0 {
			deadline = c.arch.NowMS() + c.state.NextBreakpointTimeoutMS
			hasDeadline = true
			c.state.NextBreakpointTimeoutMS = 0
		}
	}

	if c.OnStop != nil {
		c.OnStop(reason, rec)
	}
	c.log.Stop(reason, rec)

	dumpRegs, readMSR := c.monitorHooks()
	mon := newMonitorDispatcher(c.arch.Name(), &c.state, &c.lastExc, dumpRegs, readMSR)
	framer := NewFramer(c.transport, c.cfg)
	var disp *Dispatcher
	if ctx != nil {
		disp = NewDispatcher(c.arch, ctx, c.mem, c.attrs, c.bps, c.wps, c.cfg, mon)
	}

	if disp != nil {
		_ = framer.Send([]byte(StopReply))
	}

	for !c.state.Running {
		if disp == nil {
			c.state.Running = true
			break
		}
		res, ok := framer.Receive()
		if ok && !res.breakIn {
			disp.Reboot = false
			disp.Resume = false
			respPayload := disp.Dispatch(res.payload)
			c.state.ConnectionOccurred = true
			if respPayload != nil {
				_ = framer.Send(respPayload)
			}
			if disp.Reboot {
				c.state.RebootOnContinue = true
			}
			if disp.Resume {
				c.state.Running = true
			}
		}
		if hasDeadline && !c.state.ConnectionOccurred && c.arch.NowMS() >= deadline {
			c.state.Running = true
		}
	}

	if c.state.RebootOnContinue {
		c.reset.ColdReset()
	}
	c.log.Resume()
}

// msrReader is an optional capability of the debug register file: only
// x86-64 has MSRs, so monitor 'm' answers E01 wherever regs doesn't
// implement it.
type msrReader interface {
	ReadMSR(number uint32) (uint64, bool)
}

// monitorHooks builds the architecture-specific monitor 'i'/'m' callbacks
// from whatever concrete Architecture/DebugRegisterFile are wired in.
func (c *Controller) monitorHooks() (dumpRegs func() string, readMSR func(uint32) (uint64, bool)) {
	switch a := c.arch.(type) {
	case *AMD64Arch:
		dumpRegs = func() string {
			s := fmt.Sprintf("dr0=0x%x dr1=0x%x dr2=0x%x dr3=0x%x dr6=0x%x dr7=0x%x\n",
				c.regs.ReadDebugReg("dr0"), c.regs.ReadDebugReg("dr1"),
				c.regs.ReadDebugReg("dr2"), c.regs.ReadDebugReg("dr3"),
				c.regs.ReadDebugReg("dr6"), c.regs.ReadDebugReg("dr7"))
			if c.ctx != nil {
				s += disassembleAt(c.mem, a.PC(c.ctx))
			}
			return s
		}
		if m, ok := c.regs.(msrReader); ok {
			readMSR = m.ReadMSR
		}
	case *AArch64Arch:
		dumpRegs = func() string { return "register dump unavailable on this architecture\n" }
	}
	return dumpRegs, readMSR
}

// ModuleLoaded implements the module-load hook: strip directory
// separators and extension from loader's name, compare case-insensitively
// to BreakOnModule, and synthesize a Breakpoint stop on match.
func (c *Controller) ModuleLoaded(loader Loader) {
	if c.state.BreakOnModule == "" {
		return
	}
	name := baseNameNoExt(loader.Name())
	if !strings.EqualFold(name, c.state.BreakOnModule) {
		return
	}
	c.enterStop(BreakModuleLoad, ExceptionRecord{Kind: KindBreakpoint})
}

func baseNameNoExt(path string) string {
	name := path
	if i := strings.LastIndexAny(name, "/\\"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[:i]
	}
	return name
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
