// inmemtransport.go - Transport test double over two byte queues

package debugagent

import "sync"

// InMemTransport is a Transport backed by in-process byte queues, one per
// direction, for driving the packet framer and session controller from
// tests without a real serial link.
type InMemTransport struct {
	mu        sync.Mutex
	toAgent   []byte
	fromAgent []byte
}

func NewInMemTransport() *InMemTransport { return &InMemTransport{} }

func (t *InMemTransport) Init() error { return nil }

// FeedHost queues bytes as if the host had sent them.
func (t *InMemTransport) FeedHost(b []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.toAgent = append(t.toAgent, b...)
}

// Sent drains and returns everything the agent has written so far.
func (t *InMemTransport) Sent() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.fromAgent
	t.fromAgent = nil
	return out
}

func (t *InMemTransport) Read(buf []byte, timeoutMS int) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.toAgent) == 0 {
		return 0, nil
	}
	n := copy(buf, t.toAgent)
	t.toAgent = t.toAgent[n:]
	return n, nil
}

func (t *InMemTransport) Write(buf []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fromAgent = append(t.fromAgent, buf...)
	return len(buf), nil
}

func (t *InMemTransport) Poll() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.toAgent) > 0
}
