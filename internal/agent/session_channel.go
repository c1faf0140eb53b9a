package agent

import (
	"sync"
	"time"

	"reqgather-bff/internal/pkg/logger"
)

// Timings groups the channel layer's fixed delays. Production uses
// DefaultTimings; tests inject short ones.
type Timings struct {
	InitialProbeDelay time.Duration
	ProbeInterval     time.Duration
	NudgeDelay        time.Duration
	ReconnectDelay    time.Duration
}

func DefaultTimings() Timings {
	return Timings{
		InitialProbeDelay: 100 * time.Millisecond,
		ProbeInterval:     3 * time.Second,
		NudgeDelay:        500 * time.Millisecond,
		ReconnectDelay:    5 * time.Second,
	}
}

type SessionChannelConfig struct {
	SessionID int64
	URL       string
	Dialer    Dialer
	Logger    logger.ILogger
	Timings   Timings
	Observers SessionObservers

	// OnFrame receives a session snapshot after every applied frame.
	OnFrame func(Session)

	// OnState receives connection state transitions.
	OnState func(ChannelState)
}

// SessionChannel owns exactly one live connection to a session's channel
// endpoint, plus the keepalive and reconnect timers around it. All failure is
// expressed through the observable ChannelState; no method panics or returns
// an error to the consumer.
//
// A generation counter guards the asynchronous edges: Close and Reconnect
// bump it, and every timer or dial callback captured under an older
// generation becomes a no-op. That is what makes teardown synchronous even
// though a dial may still be in flight.
type SessionChannel struct {
	sessionID int64
	url       string
	dialer    Dialer
	log       logger.ILogger
	timings   Timings
	onFrame   func(Session)
	onState   func(ChannelState)

	mu         sync.Mutex
	proj       *SessionProjector
	conn       Conn
	connecting bool
	closed     bool
	gen        int
	state      ChannelState

	reconnectTimer *time.Timer
	probeTimer     *time.Timer
	nudgeTimer     *time.Timer
}

func NewSessionChannel(cfg SessionChannelConfig) *SessionChannel {
	if cfg.Timings == (Timings{}) {
		cfg.Timings = DefaultTimings()
	}
	return &SessionChannel{
		sessionID: cfg.SessionID,
		url:       cfg.URL,
		dialer:    cfg.Dialer,
		log:       cfg.Logger,
		timings:   cfg.Timings,
		onFrame:   cfg.OnFrame,
		onState:   cfg.OnState,
		proj:      NewSessionProjector(cfg.SessionID, cfg.Observers),
		state:     ChannelState{Status: ConnClosed},
	}
}

// Connect starts a connection attempt unless one is already in flight or a
// connection is open. The in-flight flag, not the observable state, gates
// duplicates: the observable state may lag the async dial.
func (c *SessionChannel) Connect() {
	c.mu.Lock()
	if c.closed || c.connecting || c.conn != nil {
		c.mu.Unlock()
		return
	}
	c.connecting = true
	gen := c.gen
	c.state = ChannelState{Status: ConnConnecting, LastError: c.state.LastError}
	c.mu.Unlock()
	c.notifyState()

	go c.dial(gen)
}

func (c *SessionChannel) dial(gen int) {
	conn, err := c.dialer.Dial(c.url)

	c.mu.Lock()
	if gen != c.gen || c.closed {
		// Superseded while dialing. The result belongs to a torn-down
		// incarnation of this channel.
		c.mu.Unlock()
		if err == nil {
			conn.Close()
		}
		return
	}
	c.connecting = false

	if err != nil {
		// A failed dial behaves exactly like a connection drop, including the
		// terminal-status gate: a session that is over does not retry.
		c.log.Warn("SessionChannel", "Dial failed", map[string]interface{}{
			"session_id": c.sessionID, "error": err.Error(),
		})
		c.state = ChannelState{Status: ConnClosed, LastError: err.Error()}
		if !c.proj.Status().IsTerminal() {
			c.scheduleReconnectLocked()
		}
		c.mu.Unlock()
		c.notifyState()
		return
	}

	c.conn = conn
	c.state = ChannelState{Status: ConnOpen}
	c.armProbeLocked(c.timings.InitialProbeDelay)
	c.mu.Unlock()
	c.notifyState()

	c.log.Info("SessionChannel", "Connected", map[string]interface{}{"session_id": c.sessionID})
	go c.readLoop(conn, gen)
}

func (c *SessionChannel) readLoop(conn Conn, gen int) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			c.handleClosed(gen, err)
			return
		}
		c.handleFrame(gen, data)
	}
}

func (c *SessionChannel) handleFrame(gen int, data []byte) {
	frame, err := ParseSessionFrame(data)
	if err != nil {
		// Drop, keep the channel and its accumulated state intact.
		c.log.Warn("SessionChannel", "Dropping bad frame", map[string]interface{}{
			"session_id": c.sessionID, "error": err.Error(),
		})
		return
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.proj.Apply(frame)
	snapshot := c.proj.Snapshot()
	c.mu.Unlock()

	if c.onFrame != nil {
		c.onFrame(snapshot)
	}
}

func (c *SessionChannel) handleClosed(gen int, err error) {
	c.mu.Lock()
	if gen != c.gen || c.closed {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.stopProbeLocked()
	c.state = ChannelState{Status: ConnClosed, LastError: err.Error()}

	if c.proj.Status().IsTerminal() {
		// The session is over; a dead connection is expected. Stop for good
		// unless the consumer forces a manual reconnect.
		c.log.Info("SessionChannel", "Closed on terminal status", map[string]interface{}{
			"session_id": c.sessionID, "status": string(c.proj.Status()),
		})
		c.mu.Unlock()
		c.notifyState()
		return
	}

	c.scheduleReconnectLocked()
	c.mu.Unlock()
	c.notifyState()
}

func (c *SessionChannel) scheduleReconnectLocked() {
	if c.reconnectTimer != nil {
		return
	}
	gen := c.gen
	c.reconnectTimer = time.AfterFunc(c.timings.ReconnectDelay, func() {
		c.mu.Lock()
		if gen != c.gen || c.closed {
			c.mu.Unlock()
			return
		}
		c.reconnectTimer = nil
		c.mu.Unlock()
		c.Connect()
	})
}

// armProbeLocked chains the keepalive: one probe after delay, then re-armed
// on the regular interval for as long as the connection stays open.
func (c *SessionChannel) armProbeLocked(delay time.Duration) {
	gen := c.gen
	c.probeTimer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		if gen != c.gen || c.conn == nil {
			c.mu.Unlock()
			return
		}
		conn := c.conn
		c.armProbeLocked(c.timings.ProbeInterval)
		c.mu.Unlock()
		c.sendProbe(conn)
	})
}

// Nudge schedules exactly one extra probe shortly after an out-of-band state
// change (e.g. an answer was just submitted through the API), so the next
// snapshot arrives without waiting for the periodic tick. The periodic
// schedule is untouched.
func (c *SessionChannel) Nudge() {
	c.mu.Lock()
	gen := c.gen
	if c.nudgeTimer != nil {
		c.nudgeTimer.Stop()
	}
	c.nudgeTimer = time.AfterFunc(c.timings.NudgeDelay, func() {
		c.mu.Lock()
		if gen != c.gen || c.conn == nil {
			c.mu.Unlock()
			return
		}
		conn := c.conn
		c.mu.Unlock()
		c.sendProbe(conn)
	})
	c.mu.Unlock()
}

func (c *SessionChannel) sendProbe(conn Conn) {
	if err := conn.WriteMessage([]byte(KeepaliveToken)); err != nil {
		// The read loop will observe the broken connection and drive the
		// close transition; nothing to do here.
		c.log.Warn("SessionChannel", "Probe write failed", map[string]interface{}{
			"session_id": c.sessionID, "error": err.Error(),
		})
	}
}

// Reconnect forces a fresh connection regardless of current state. Used by
// the manual-retry affordance after the channel has given up on a terminal
// status.
func (c *SessionChannel) Reconnect() {
	c.mu.Lock()
	c.gen++
	c.stopTimersLocked()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connecting = false
	c.closed = false
	c.mu.Unlock()

	c.Connect()
}

// Close tears the channel down: timers cancelled, connection force-closed,
// any in-flight dial orphaned. Idempotent and synchronous.
func (c *SessionChannel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.gen++
	c.stopTimersLocked()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connecting = false
	c.state = ChannelState{Status: ConnClosed}
	c.mu.Unlock()
	c.notifyState()
}

func (c *SessionChannel) stopTimersLocked() {
	c.stopProbeLocked()
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}

func (c *SessionChannel) stopProbeLocked() {
	if c.probeTimer != nil {
		c.probeTimer.Stop()
		c.probeTimer = nil
	}
	if c.nudgeTimer != nil {
		c.nudgeTimer.Stop()
		c.nudgeTimer = nil
	}
}

func (c *SessionChannel) notifyState() {
	if c.onState == nil {
		return
	}
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()
	c.onState(state)
}

// Snapshot returns the current projected session.
func (c *SessionChannel) Snapshot() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.proj.Snapshot()
}

// State returns the current connection state.
func (c *SessionChannel) State() ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID this channel is bound to.
func (c *SessionChannel) SessionID() int64 {
	return c.sessionID
}
