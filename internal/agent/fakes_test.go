package agent

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeConn is an in-memory Conn. Reads block until a frame is pushed or the
// connection is closed; writes land on a buffered channel the test drains.
type fakeConn struct {
	inbound chan []byte
	writes  chan []byte
	done    chan struct{}
	once    sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 16),
		writes:  make(chan []byte, 16),
		done:    make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.inbound:
		return data, nil
	case <-c.done:
		return nil, errors.New("connection closed")
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	select {
	case c.writes <- data:
	default:
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *fakeConn) push(t *testing.T, data []byte) {
	t.Helper()
	select {
	case c.inbound <- data:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out pushing frame; nothing is reading")
	}
}

func (c *fakeConn) expectWrite(t *testing.T, within time.Duration) []byte {
	t.Helper()
	select {
	case data := <-c.writes:
		return data
	case <-time.After(within):
		t.Fatalf("expected a write within %v, got none", within)
		return nil
	}
}

func (c *fakeConn) expectNoWrite(t *testing.T, within time.Duration) {
	t.Helper()
	select {
	case data := <-c.writes:
		t.Fatalf("unexpected write %q", data)
	case <-time.After(within):
	}
}

func (c *fakeConn) drain() {
	for {
		select {
		case <-c.writes:
		default:
			return
		}
	}
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// fakeDialer hands out fakeConns and counts dial attempts. Setting fail makes
// every dial return an error; setting gate makes Dial block until the gate is
// closed.
type fakeDialer struct {
	mu    sync.Mutex
	fail  bool
	dials int
	gate  chan struct{}
	conns chan *fakeConn
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{conns: make(chan *fakeConn, 16)}
}

func (d *fakeDialer) Dial(url string) (Conn, error) {
	d.mu.Lock()
	d.dials++
	fail := d.fail
	gate := d.gate
	d.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if fail {
		return nil, errors.New("dial refused")
	}
	conn := newFakeConn()
	d.conns <- conn
	return conn, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) setFail(fail bool) {
	d.mu.Lock()
	d.fail = fail
	d.mu.Unlock()
}

func (d *fakeDialer) waitConn(t *testing.T) *fakeConn {
	t.Helper()
	select {
	case conn := <-d.conns:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a dial")
		return nil
	}
}

func (d *fakeDialer) expectNoDial(t *testing.T, within time.Duration) {
	t.Helper()
	select {
	case <-d.conns:
		t.Fatal("unexpected dial")
	case <-time.After(within):
	}
}

// shortTimings keeps the channel tests fast without racing the scheduler.
func shortTimings() Timings {
	return Timings{
		InitialProbeDelay: 10 * time.Millisecond,
		ProbeInterval:     25 * time.Millisecond,
		NudgeDelay:        10 * time.Millisecond,
		ReconnectDelay:    50 * time.Millisecond,
	}
}

// quietTimings pushes the periodic machinery far into the future so a test
// can observe a single behavior in isolation.
func quietTimings() Timings {
	return Timings{
		InitialProbeDelay: time.Hour,
		ProbeInterval:     time.Hour,
		NudgeDelay:        10 * time.Millisecond,
		ReconnectDelay:    time.Hour,
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}
