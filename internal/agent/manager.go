package agent

import "sync"

// ChannelManager is the explicit registry of live channels, keyed by the
// backend-assigned id. There is no ambient singleton: whoever constructs the
// manager owns every channel in it and is responsible for eviction. Acquiring
// a channel for an id that already has one returns the existing instance, so
// "one connection per logical entity" holds across consumers.
type ChannelManager struct {
	mu         sync.Mutex
	sessions   map[int64]*SessionChannel
	interviews map[int64]*StatusChannel
}

func NewChannelManager() *ChannelManager {
	return &ChannelManager{
		sessions:   make(map[int64]*SessionChannel),
		interviews: make(map[int64]*StatusChannel),
	}
}

// AcquireSession returns the live channel for the session id, constructing
// and connecting one via build on first use.
func (m *ChannelManager) AcquireSession(id int64, build func() *SessionChannel) *SessionChannel {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.sessions[id]; ok {
		return ch
	}
	ch := build()
	m.sessions[id] = ch
	ch.Connect()
	return ch
}

// Session returns the live channel for the id, if any.
func (m *ChannelManager) Session(id int64) (*SessionChannel, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.sessions[id]
	return ch, ok
}

// EvictSession closes and removes the channel for the id.
func (m *ChannelManager) EvictSession(id int64) {
	m.mu.Lock()
	ch, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		ch.Close()
	}
}

func (m *ChannelManager) AcquireInterview(id int64, build func() *StatusChannel) *StatusChannel {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.interviews[id]; ok {
		return ch
	}
	ch := build()
	m.interviews[id] = ch
	ch.Connect()
	return ch
}

func (m *ChannelManager) Interview(id int64) (*StatusChannel, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.interviews[id]
	return ch, ok
}

func (m *ChannelManager) EvictInterview(id int64) {
	m.mu.Lock()
	ch, ok := m.interviews[id]
	delete(m.interviews, id)
	m.mu.Unlock()
	if ok {
		ch.Close()
	}
}

// CloseAll tears down every channel. Used on shutdown.
func (m *ChannelManager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*SessionChannel, 0, len(m.sessions))
	for _, ch := range m.sessions {
		sessions = append(sessions, ch)
	}
	interviews := make([]*StatusChannel, 0, len(m.interviews))
	for _, ch := range m.interviews {
		interviews = append(interviews, ch)
	}
	m.sessions = make(map[int64]*SessionChannel)
	m.interviews = make(map[int64]*StatusChannel)
	m.mu.Unlock()

	for _, ch := range sessions {
		ch.Close()
	}
	for _, ch := range interviews {
		ch.Close()
	}
}
