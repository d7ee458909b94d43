package gateway

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeConn struct {
	in   chan []byte
	sent chan []byte
	once sync.Once

	mu  sync.Mutex
	err error
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:   make(chan []byte, 16),
		sent: make(chan []byte, 64),
	}
}

func (c *fakeConn) deliver(frame string) { c.in <- []byte(frame) }

// drop simulates the server closing the connection.
func (c *fakeConn) drop(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
	c.once.Do(func() { close(c.in) })
}

func (c *fakeConn) Send(data []byte) error {
	c.sent <- data
	return nil
}

func (c *fakeConn) Messages() <-chan []byte { return c.in }

func (c *fakeConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.in) })
	return nil
}

type fakeTransport struct {
	mu      sync.Mutex
	dials   []string
	openErr error
	conns   chan *fakeConn
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{conns: make(chan *fakeConn, 8)}
}

func (tr *fakeTransport) Open(_ context.Context, url string) (Conn, error) {
	tr.mu.Lock()
	tr.dials = append(tr.dials, url)
	err := tr.openErr
	tr.mu.Unlock()
	if err != nil {
		return nil, err
	}
	c := newFakeConn()
	tr.conns <- c
	return c, nil
}

func (tr *fakeTransport) dialURLs() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.dials...)
}

func waitConn(t *testing.T, tr *fakeTransport) *fakeConn {
	t.Helper()
	select {
	case c := <-tr.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a dial")
		return nil
	}
}

func waitSent(t *testing.T, c *fakeConn) []byte {
	t.Helper()
	select {
	case data := <-c.sent:
		return data
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an outbound frame")
		return nil
	}
}

func waitState(t *testing.T, s *Session, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("session never reached %v, stuck in %v", want, s.State())
}

func testSession(tr *fakeTransport, handler EventHandler) *Session {
	return NewSession(SessionConfig{
		URL: func(ctx context.Context, compress bool) (string, error) {
			return "ws://gateway.test/ws", nil
		},
		Transport:         tr,
		Handler:           handler,
		HelloTimeout:      200 * time.Millisecond,
		HeartbeatInterval: time.Hour,
		HeartbeatJitter:   time.Nanosecond,
		HeartbeatTimeout:  time.Hour,
		ReconnectBase:     time.Millisecond,
		MaxReconnects:     50,
	})
}

const helloOK = `{"s":1,"d":{"code":0,"session_id":"sess-1"}}`

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
	}
	for _, tc := range tests {
		if got := backoffDelay(time.Second, tc.attempt); got != tc.want {
			t.Errorf("backoffDelay(1s, %d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestResumeURL(t *testing.T) {
	tests := []struct {
		name      string
		sequence  int64
		haveSeq   bool
		sessionID string
		want      string
	}{
		{"no prior session", 0, false, "", "ws://g.test/ws?x=1"},
		{"sequence without session id", 9, true, "", "ws://g.test/ws?x=1"},
		{"session id without sequence", 0, false, "abc", "ws://g.test/ws?x=1"},
		{"both present", 42, true, "abc", "ws://g.test/ws?resume=1&session_id=abc&sn=42&x=1"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := resumeURL("ws://g.test/ws?x=1", tc.sequence, tc.haveSeq, tc.sessionID)
			if err != nil {
				t.Fatalf("resumeURL() error = %v", err)
			}
			if got != tc.want {
				t.Errorf("resumeURL() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestSessionOpenDispatchesEvents(t *testing.T) {
	tr := newFakeTransport()
	events := make(chan json.RawMessage, 4)
	s := testSession(tr, func(_ context.Context, payload json.RawMessage) {
		events <- payload
	})

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	conn := waitConn(t, tr)
	conn.deliver(helloOK)

	// The opening ping carries the current sequence.
	ping := waitSent(t, conn)
	var env struct {
		Op int    `json:"s"`
		SN *int64 `json:"sn"`
	}
	if err := json.Unmarshal(ping, &env); err != nil {
		t.Fatalf("opening ping is not JSON: %v", err)
	}
	if env.Op != 2 {
		t.Errorf("opening frame opcode = %d, want 2 (ping)", env.Op)
	}
	waitState(t, s, StateOpen)

	// A garbage frame is dropped without tearing the session down.
	conn.deliver("not json at all")

	conn.deliver(`{"s":0,"sn":7,"d":{"channel_type":"GROUP","msg_id":"m1"}}`)
	payload := <-events
	if !strings.Contains(string(payload), `"m1"`) {
		t.Errorf("handler payload = %s, want the event body", payload)
	}

	s.Disconnect()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v, want nil after Disconnect", err)
	}
	if s.State() != StateClosed {
		t.Errorf("State() = %v, want Closed", s.State())
	}
}

func TestSessionResumeParamsAcrossReconnect(t *testing.T) {
	tr := newFakeTransport()
	s := testSession(tr, nil)

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	// First connection: open, observe sequence 5, then a plain server
	// reconnect keeps the resume identity.
	conn := waitConn(t, tr)
	conn.deliver(helloOK)
	waitState(t, s, StateOpen)
	conn.deliver(`{"s":0,"sn":5,"d":{"msg_id":"m5"}}`)
	conn.deliver(`{"s":5,"d":{}}`)

	// Second connection resumes with sn and session_id.
	conn = waitConn(t, tr)
	conn.deliver(helloOK)
	waitState(t, s, StateOpen)

	dials := tr.dialURLs()
	if len(dials) != 2 {
		t.Fatalf("dials = %d, want 2", len(dials))
	}
	if strings.Contains(dials[0], "resume") {
		t.Errorf("first dial %q carries resume params", dials[0])
	}
	for _, want := range []string{"sn=5", "session_id=sess-1", "resume=1"} {
		if !strings.Contains(dials[1], want) {
			t.Errorf("resume dial %q missing %q", dials[1], want)
		}
	}

	// A session-expired rejection drops the identity for the next dial.
	conn.deliver(`{"s":5,"d":{"code":40107}}`)
	conn = waitConn(t, tr)
	conn.deliver(helloOK)
	waitState(t, s, StateOpen)

	dials = tr.dialURLs()
	if len(dials) != 3 {
		t.Fatalf("dials = %d, want 3", len(dials))
	}
	if strings.Contains(dials[2], "resume") || strings.Contains(dials[2], "sn=") {
		t.Errorf("dial after session expiry %q still carries resume params", dials[2])
	}

	s.Disconnect()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestSessionReconnectCapIsTerminal(t *testing.T) {
	tr := newFakeTransport()
	tr.openErr = context.DeadlineExceeded
	s := testSession(tr, nil)
	s.cfg.MaxReconnects = 2

	err := s.Run(context.Background())
	if err == nil {
		t.Fatal("Run() = nil, want terminal error after exhausting attempts")
	}
	if !strings.Contains(err.Error(), "2 reconnect attempts") {
		t.Errorf("Run() error = %q, want it to name the attempt cap", err)
	}
	if s.State() != StateClosed {
		t.Errorf("State() = %v, want Closed", s.State())
	}
	// Initial try plus two counted reconnects.
	if got := len(tr.dialURLs()); got != 3 {
		t.Errorf("dials = %d, want 3", got)
	}
}

func TestSessionBadHelloRetriesFresh(t *testing.T) {
	tr := newFakeTransport()
	s := testSession(tr, nil)
	// With a cap of one, counted reconnects would terminate the run
	// after the second failure. Refused hellos must not.
	s.cfg.MaxReconnects = 1

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	for i := 0; i < 3; i++ {
		conn := waitConn(t, tr)
		conn.deliver(`{"s":1,"d":{"code":40101}}`)
	}

	s.Disconnect()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v, want nil: refused hellos must not count against the cap", err)
	}
}

func TestSessionHeartbeatTimeoutReconnects(t *testing.T) {
	tr := newFakeTransport()
	s := testSession(tr, nil)
	s.cfg.HeartbeatTimeout = 30 * time.Millisecond

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	// Never answer the opening ping; the session must give up on the
	// connection and dial again.
	conn := waitConn(t, tr)
	conn.deliver(helloOK)
	waitSent(t, conn)

	conn = waitConn(t, tr)
	conn.deliver(helloOK)
	waitState(t, s, StateOpen)

	// This time a pong keeps the connection alive.
	waitSent(t, conn)
	conn.deliver(`{"s":3}`)
	time.Sleep(60 * time.Millisecond)
	if got := s.State(); got != StateOpen {
		t.Errorf("State() after pong = %v, want Open", got)
	}

	s.Disconnect()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestSessionTransportDropReconnects(t *testing.T) {
	tr := newFakeTransport()
	s := testSession(tr, nil)

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	conn := waitConn(t, tr)
	conn.deliver(helloOK)
	waitState(t, s, StateOpen)
	conn.drop(context.DeadlineExceeded)

	conn = waitConn(t, tr)
	conn.deliver(helloOK)
	waitState(t, s, StateOpen)

	s.Disconnect()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestSessionCleanServerCloseIsTerminal(t *testing.T) {
	tr := newFakeTransport()
	s := testSession(tr, nil)

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	conn := waitConn(t, tr)
	conn.deliver(helloOK)
	waitState(t, s, StateOpen)

	// A close without a transport error models the peer ending the
	// connection with a normal close code.
	conn.drop(nil)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v, want nil after a clean server close", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after a clean server close")
	}
	if s.State() != StateClosed {
		t.Errorf("State() = %v, want Closed", s.State())
	}
	if got := len(tr.dialURLs()); got != 1 {
		t.Errorf("dials = %d, want 1: a clean close must not trigger a reconnect", got)
	}
}

func TestDisconnectDuringBackoff(t *testing.T) {
	tr := newFakeTransport()
	tr.openErr = context.DeadlineExceeded
	s := testSession(tr, nil)
	s.cfg.ReconnectBase = time.Hour

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	waitState(t, s, StateReconnecting)
	s.Disconnect()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after Disconnect during backoff")
	}
	if s.State() != StateClosed {
		t.Errorf("State() = %v, want Closed", s.State())
	}
}
