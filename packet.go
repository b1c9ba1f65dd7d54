// packet.go - C9: GDB packet framer (§4.6)
//
// Grounded on GdbStub.c's receive loop (poll with a timeout, accumulate
// into a static request buffer until the #CC tail appears, ack/nack on
// checksum) and on the pack's aykevl-emculator GDB RSP server for the
// idiomatic Go framing of the same protocol (other_examples,
// 963a481d_aykevl-emculator__gdb-rsp.go.go): a byte-oriented read loop
// feeding an accumulator, rather than a buffered line reader, since the
// transport has no concept of packet boundaries.

package debugagent

import "fmt"

const (
	ackByte   = '+'
	nackByte  = '-'
	startByte = '$'
	breakByte = 0x03
)

// Framer owns the wire-level packet protocol over a Transport: checksum
// framing, ack/nack, and break-in detection. Dispatch (C10) is injected as
// a plain function so the framer has no knowledge of the command table.
type Framer struct {
	t   Transport
	cfg AgentConfig

	lastSent       []byte
	sentAcked      bool
}

func NewFramer(t Transport, cfg AgentConfig) *Framer {
	return &Framer{t: t, cfg: cfg, sentAcked: true}
}

// checksum is the 8-bit modular sum of payload bytes.
func checksum(payload []byte) byte {
	var sum byte
	for _, b := range payload {
		sum += b
	}
	return sum
}

// Send frames payload as $payload#CC and writes it, clearing the
// acknowledged flag until the next '+' arrives.
func (f *Framer) Send(payload []byte) error {
	if len(payload) > f.cfg.MaxResponseSize {
		payload = []byte(ErrResponseTooLong)
	}
	out := make([]byte, 0, len(payload)+4)
	out = append(out, startByte)
	out = append(out, payload...)
	out = append(out, '#')
	out = append(out, fmt.Sprintf("%02x", checksum(payload))...)

	f.lastSent = out
	f.sentAcked = false
	_, err := f.t.Write(out)
	return err
}

// resend rewrites the last framed packet, used when the host NACKs.
func (f *Framer) resend() error {
	if f.lastSent == nil {
		return nil
	}
	_, err := f.t.Write(f.lastSent)
	return err
}

// receiveResult is what one call to Receive produced.
type receiveResult struct {
	payload []byte
	breakIn bool
}

// Receive runs one iteration of the receive loop from §4.6: poll for a
// byte with a 10 ms timeout; handle '+'/'-' bookkeeping or a break-in byte
// outside a packet; once '$' starts a packet, accumulate with a 1 s
// per-byte timeout until the #CC tail is seen, then validate the checksum
// and ack/nack. Returns ok=false with no payload if nothing dispatchable
// happened this iteration (idle poll, ack/nack housekeeping, or overflow).
func (f *Framer) Receive() (receiveResult, bool) {
	var b [1]byte
	n, err := f.t.Read(b[:], f.cfg.PollTimeoutMS)
	if err != nil || n == 0 {
		return receiveResult{}, false
	}

	switch b[0] {
	case ackByte:
		f.sentAcked = true
		return receiveResult{}, false
	case nackByte:
		if !f.sentAcked {
			_ = f.resend()
		}
		return receiveResult{}, false
	case breakByte:
		return receiveResult{breakIn: true}, true
	case startByte:
		return f.receivePacketBody()
	default:
		return receiveResult{}, false
	}
}

func (f *Framer) receivePacketBody() (receiveResult, bool) {
	buf := make([]byte, 0, 64)
	for {
		var b [1]byte
		n, err := f.t.Read(b[:], f.cfg.ByteTimeoutMS)
		if err != nil || n == 0 {
			return receiveResult{}, false
		}
		buf = append(buf, b[0])
		if len(buf) >= 3 && buf[len(buf)-3] == '#' {
			break
		}
		if len(buf) >= f.cfg.MaxRequestSize {
			_, _ = f.t.Write([]byte{nackByte})
			return receiveResult{}, false
		}
	}

	payload := buf[:len(buf)-3]
	wantSum := string(buf[len(buf)-2:])
	gotSum := fmt.Sprintf("%02x", checksum(payload))
	if gotSum != wantSum {
		_, _ = f.t.Write([]byte{nackByte})
		return receiveResult{}, false
	}

	_, _ = f.t.Write([]byte{ackByte})
	return receiveResult{payload: payload}, true
}
