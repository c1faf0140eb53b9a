package agent

import (
	"sync"
	"time"

	"reqgather-bff/internal/pkg/logger"
)

type StatusChannelConfig struct {
	InterviewID int64
	URL         string
	Dialer      Dialer
	Logger      logger.ILogger
	Timings     Timings
	Observers   StatusObservers

	OnState func(ChannelState)
}

// StatusChannel tracks one interview-processing job over its channel
// endpoint. Unlike SessionChannel it is purely receive-driven: the backend
// pushes discrete typed events and the client never probes. Reconnect policy
// is the same fixed-delay, terminal-status-gated loop.
type StatusChannel struct {
	interviewID int64
	url         string
	dialer      Dialer
	log         logger.ILogger
	timings     Timings
	onState     func(ChannelState)

	mu         sync.Mutex
	proj       *StatusProjector
	conn       Conn
	connecting bool
	closed     bool
	gen        int
	state      ChannelState

	reconnectTimer *time.Timer
}

func NewStatusChannel(cfg StatusChannelConfig) *StatusChannel {
	if cfg.Timings == (Timings{}) {
		cfg.Timings = DefaultTimings()
	}
	return &StatusChannel{
		interviewID: cfg.InterviewID,
		url:         cfg.URL,
		dialer:      cfg.Dialer,
		log:         cfg.Logger,
		timings:     cfg.Timings,
		onState:     cfg.OnState,
		proj:        NewStatusProjector(cfg.InterviewID, cfg.Observers),
		state:       ChannelState{Status: ConnClosed},
	}
}

func (c *StatusChannel) Connect() {
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

func (c *StatusChannel) dial(gen int) {
	conn, err := c.dialer.Dial(c.url)

	c.mu.Lock()
	if gen != c.gen || c.closed {
		c.mu.Unlock()
		if err == nil {
			conn.Close()
		}
		return
	}
	c.connecting = false

	if err != nil {
		c.log.Warn("StatusChannel", "Dial failed", map[string]interface{}{
			"interview_id": c.interviewID, "error": err.Error(),
		})
		c.state = ChannelState{Status: ConnClosed, LastError: err.Error()}
		// Same terminal-status gate as a connection drop.
		if !c.proj.State().IsTerminal() {
			c.scheduleReconnectLocked()
		}
		c.mu.Unlock()
		c.notifyState()
		return
	}

	c.conn = conn
	c.state = ChannelState{Status: ConnOpen}
	c.mu.Unlock()
	c.notifyState()

	go c.readLoop(conn, gen)
}

func (c *StatusChannel) readLoop(conn Conn, gen int) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			c.handleClosed(gen, err)
			return
		}
		c.handleFrame(gen, data)
	}
}

func (c *StatusChannel) handleFrame(gen int, data []byte) {
	frame, err := ParseStatusFrame(data)
	if err != nil {
		c.log.Warn("StatusChannel", "Dropping bad frame", map[string]interface{}{
			"interview_id": c.interviewID, "error": err.Error(),
		})
		return
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.proj.Apply(frame)
	c.mu.Unlock()
}

func (c *StatusChannel) handleClosed(gen int, err error) {
	c.mu.Lock()
	if gen != c.gen || c.closed {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.state = ChannelState{Status: ConnClosed, LastError: err.Error()}

	if c.proj.State().IsTerminal() {
		c.mu.Unlock()
		c.notifyState()
		return
	}

	c.scheduleReconnectLocked()
	c.mu.Unlock()
	c.notifyState()
}

func (c *StatusChannel) scheduleReconnectLocked() {
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

// Close tears the channel down; idempotent.
func (c *StatusChannel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.gen++
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connecting = false
	c.state = ChannelState{Status: ConnClosed}
	c.mu.Unlock()
	c.notifyState()
}

func (c *StatusChannel) notifyState() {
	if c.onState == nil {
		return
	}
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()
	c.onState(state)
}

func (c *StatusChannel) Snapshot() InterviewStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.proj.Snapshot()
}

func (c *StatusChannel) State() ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *StatusChannel) InterviewID() int64 {
	return c.interviewID
}
