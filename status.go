// status.go - ambient status logging, in the teacher's fmt-only style (main.go)

package debugagent

import (
	"fmt"
	"io"
)

// StatusLog is a minimal fmt-based logger, matching the teacher's direct
// fmt.Printf calls rather than pulling in a structured-logging library.
// The agent is headless firmware code; a Writer lets tests and
// cmd/agentsim both capture the same output cmd/ie32to64 would have
// printed straight to stdout.
type StatusLog struct {
	w io.Writer
}

func NewStatusLog(w io.Writer) *StatusLog { return &StatusLog{w: w} }

func (s *StatusLog) Infof(format string, args ...any) {
	fmt.Fprintf(s.w, format+"\n", args...)
}

func (s *StatusLog) Stop(reason BreakReason, exc ExceptionRecord) {
	fmt.Fprintf(s.w, "stop: reason=%s kind=%s pc=0x%x\n", reason, exc.Kind, exc.PC)
}

func (s *StatusLog) Resume() {
	fmt.Fprintf(s.w, "resume\n")
}
