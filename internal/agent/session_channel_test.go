package agent

import (
	"testing"
	"time"

	"reqgather-bff/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
)

func newSessionChannelForTest(t *testing.T, dialer *fakeDialer, timings Timings) *SessionChannel {
	t.Helper()
	ch := NewSessionChannel(SessionChannelConfig{
		SessionID: 42,
		URL:       "ws://agent.test/sessions/42",
		Dialer:    dialer,
		Logger:    logger.NewNopLogger(),
		Timings:   timings,
	})
	t.Cleanup(ch.Close)
	return ch
}

func TestSessionChannelProbesAfterOpen(t *testing.T) {
	dialer := newFakeDialer()
	ch := newSessionChannelForTest(t, dialer, shortTimings())

	ch.Connect()
	conn := dialer.waitConn(t)

	// First probe arrives shortly after open, then the periodic cadence takes
	// over.
	assert.Equal(t, KeepaliveToken, string(conn.expectWrite(t, time.Second)))
	assert.Equal(t, KeepaliveToken, string(conn.expectWrite(t, time.Second)))
	assert.Equal(t, KeepaliveToken, string(conn.expectWrite(t, time.Second)))
}

func TestSessionChannelConnectGuardsDuplicates(t *testing.T) {
	dialer := newFakeDialer()
	dialer.gate = make(chan struct{})
	ch := newSessionChannelForTest(t, dialer, quietTimings())

	ch.Connect()
	ch.Connect() // dial still in flight
	ch.Connect()
	close(dialer.gate)

	conn := dialer.waitConn(t)
	assert.Equal(t, 1, dialer.dialCount())

	waitFor(t, func() bool { return ch.State().Status == ConnOpen }, "channel never opened")

	// Connect on an open channel is also a no-op.
	ch.Connect()
	dialer.expectNoDial(t, 50*time.Millisecond)
	assert.False(t, conn.isClosed())
}

func TestSessionChannelReconnectsAfterDrop(t *testing.T) {
	dialer := newFakeDialer()
	ch := newSessionChannelForTest(t, dialer, shortTimings())

	ch.Connect()
	conn := dialer.waitConn(t)
	waitFor(t, func() bool { return ch.State().Status == ConnOpen }, "channel never opened")

	conn.Close()

	// A fresh dial happens after the fixed delay, not immediately.
	dialer.waitConn(t)
	assert.Equal(t, 2, dialer.dialCount())
	waitFor(t, func() bool { return ch.State().Status == ConnOpen }, "channel never reopened")
}

func TestSessionChannelRetriesFailedDials(t *testing.T) {
	dialer := newFakeDialer()
	dialer.setFail(true)
	ch := newSessionChannelForTest(t, dialer, shortTimings())

	ch.Connect()
	waitFor(t, func() bool { return dialer.dialCount() >= 3 }, "expected repeated dial attempts")

	state := ch.State()
	assert.Equal(t, ConnClosed, state.Status)
	assert.NotEmpty(t, state.LastError)

	// Recovery: once dialing succeeds the channel opens again.
	dialer.setFail(false)
	dialer.waitConn(t)
	waitFor(t, func() bool { return ch.State().Status == ConnOpen }, "channel never recovered")
}

func TestSessionChannelStopsOnTerminalStatus(t *testing.T) {
	for _, status := range []SessionStatus{SessionDone, SessionCancelled, SessionError} {
		t.Run(string(status), func(t *testing.T) {
			dialer := newFakeDialer()
			ch := newSessionChannelForTest(t, dialer, shortTimings())

			ch.Connect()
			conn := dialer.waitConn(t)

			conn.push(t, []byte(`{"session_status":"`+string(status)+`"}`))
			waitFor(t, func() bool { return ch.Snapshot().Status == status }, "status never applied")

			conn.Close()
			waitFor(t, func() bool { return ch.State().Status == ConnClosed }, "close never observed")

			// No automatic redial past a terminal status.
			dialer.expectNoDial(t, 4*shortTimings().ReconnectDelay)
			assert.Equal(t, 1, dialer.dialCount())
		})
	}
}

func TestSessionChannelManualReconnectOverridesTerminal(t *testing.T) {
	dialer := newFakeDialer()
	ch := newSessionChannelForTest(t, dialer, shortTimings())

	ch.Connect()
	conn := dialer.waitConn(t)
	conn.push(t, []byte(`{"session_status":"done"}`))
	waitFor(t, func() bool { return ch.Snapshot().Status == SessionDone }, "status never applied")
	conn.Close()
	waitFor(t, func() bool { return ch.State().Status == ConnClosed }, "close never observed")

	ch.Reconnect()
	dialer.waitConn(t)
	assert.Equal(t, 2, dialer.dialCount())
}

func TestSessionChannelFailedDialRespectsTerminalStatus(t *testing.T) {
	dialer := newFakeDialer()
	ch := newSessionChannelForTest(t, dialer, shortTimings())

	ch.Connect()
	conn := dialer.waitConn(t)
	conn.push(t, []byte(`{"session_status":"done"}`))
	waitFor(t, func() bool { return ch.Snapshot().Status == SessionDone }, "status never applied")
	conn.Close()
	waitFor(t, func() bool { return ch.State().Status == ConnClosed }, "close never observed")

	// A manual reconnect whose dial is refused settles in Closed; it does not
	// arm the retry loop past a terminal status.
	dialer.setFail(true)
	ch.Reconnect()
	waitFor(t, func() bool { return dialer.dialCount() == 2 }, "manual dial never attempted")

	time.Sleep(6 * shortTimings().ReconnectDelay)
	assert.Equal(t, 2, dialer.dialCount())
	assert.Equal(t, ConnClosed, ch.State().Status)
}

func TestSessionChannelCloseOrphansInFlightDial(t *testing.T) {
	dialer := newFakeDialer()
	dialer.gate = make(chan struct{})
	ch := newSessionChannelForTest(t, dialer, quietTimings())

	ch.Connect()
	ch.Close()
	close(dialer.gate)

	// The late dial result is discarded and its connection closed.
	conn := dialer.waitConn(t)
	waitFor(t, conn.isClosed, "orphaned connection never closed")
	assert.Equal(t, ConnClosed, ch.State().Status)

	// Idempotent.
	ch.Close()
	ch.Close()
}

func TestSessionChannelCloseCancelsReconnect(t *testing.T) {
	dialer := newFakeDialer()
	dialer.setFail(true)
	ch := newSessionChannelForTest(t, dialer, shortTimings())

	ch.Connect()
	waitFor(t, func() bool { return dialer.dialCount() == 1 }, "first dial never happened")

	ch.Close()
	time.Sleep(4 * shortTimings().ReconnectDelay)
	assert.Equal(t, 1, dialer.dialCount())
}

func TestSessionChannelCloseSilencesProbes(t *testing.T) {
	dialer := newFakeDialer()
	ch := newSessionChannelForTest(t, dialer, shortTimings())

	ch.Connect()
	conn := dialer.waitConn(t)
	conn.expectWrite(t, time.Second) // keepalive is armed

	ch.Close()
	// A probe that slipped past the gen check before Close may still land;
	// give it a beat, then require silence.
	time.Sleep(20 * time.Millisecond)
	conn.drain()
	conn.expectNoWrite(t, 4*shortTimings().ProbeInterval)
	dialer.expectNoDial(t, 2*shortTimings().ReconnectDelay)
}

func TestSessionChannelDropsBadFrames(t *testing.T) {
	dialer := newFakeDialer()
	ch := newSessionChannelForTest(t, dialer, quietTimings())

	ch.Connect()
	conn := dialer.waitConn(t)

	conn.push(t, []byte(`{"session_status":"waiting_for_answers","current_iteration":2}`))
	waitFor(t, func() bool { return ch.Snapshot().CurrentIteration == 2 }, "frame never applied")

	conn.push(t, []byte(`this is not json`))
	conn.push(t, []byte(`{"current_iteration":-5}`))
	conn.push(t, []byte(`{"dialogue":[{"question":{"question_number":1}}]}`))

	// A parse failure is logged and dropped; the connection and the
	// accumulated projection survive.
	time.Sleep(30 * time.Millisecond)
	snap := ch.Snapshot()
	assert.Equal(t, SessionWaitingForAnswers, snap.Status)
	assert.Equal(t, 2, snap.CurrentIteration)
	assert.False(t, conn.isClosed())
	assert.Equal(t, ConnOpen, ch.State().Status)
}

func TestSessionChannelNudgeSchedulesOneExtraProbe(t *testing.T) {
	dialer := newFakeDialer()
	ch := newSessionChannelForTest(t, dialer, quietTimings())

	ch.Connect()
	conn := dialer.waitConn(t)
	waitFor(t, func() bool { return ch.State().Status == ConnOpen }, "channel never opened")

	ch.Nudge()
	assert.Equal(t, KeepaliveToken, string(conn.expectWrite(t, time.Second)))
	conn.expectNoWrite(t, 100*time.Millisecond)
}

func TestSessionChannelDialogueRoundTrip(t *testing.T) {
	dialer := newFakeDialer()
	frames := make(chan Session, 16)

	ch := NewSessionChannel(SessionChannelConfig{
		SessionID: 42,
		URL:       "ws://agent.test/sessions/42",
		Dialer:    dialer,
		Logger:    logger.NewNopLogger(),
		Timings:   shortTimings(),
		OnFrame:   func(s Session) { frames <- s },
	})
	t.Cleanup(ch.Close)

	ch.Connect()
	conn := dialer.waitConn(t)

	// The probe goes out shortly after open.
	assert.Equal(t, KeepaliveToken, string(conn.expectWrite(t, time.Second)))

	// The question arrives unanswered.
	conn.push(t, []byte(`{"dialogue":[{"question":{"id":1,"question_number":1,"content":"Q1","status":"unanswered"}}],"session_status":"waiting_for_answers","current_iteration":1}`))
	snap := <-frames
	assert.Equal(t, SessionWaitingForAnswers, snap.Status)
	assert.Len(t, snap.Dialogue, 1)
	assert.Nil(t, snap.Dialogue[0].Answer)

	// The next push carries the answered dialogue.
	conn.push(t, []byte(`{"dialogue":[{"question":{"id":1,"question_number":1,"content":"Q1","status":"answered"},"answer":{"content":"hello","is_skipped":false}}],"session_status":"processing","current_iteration":1}`))
	snap = <-frames
	assert.Equal(t, SessionProcessing, snap.Status)
	assert.Len(t, snap.Dialogue, 1)
	if assert.NotNil(t, snap.Dialogue[0].Answer) {
		assert.Equal(t, "hello", snap.Dialogue[0].Answer.Content)
		assert.False(t, snap.Dialogue[0].Answer.IsSkipped)
	}
	assert.Equal(t, 1, snap.CurrentIteration)
}

func TestSessionChannelNotifiesFramesAndState(t *testing.T) {
	dialer := newFakeDialer()
	frames := make(chan Session, 16)
	states := make(chan ChannelState, 16)

	ch := NewSessionChannel(SessionChannelConfig{
		SessionID: 7,
		URL:       "ws://agent.test/sessions/7",
		Dialer:    dialer,
		Logger:    logger.NewNopLogger(),
		Timings:   quietTimings(),
		OnFrame:   func(s Session) { frames <- s },
		OnState:   func(s ChannelState) { states <- s },
	})
	t.Cleanup(ch.Close)

	ch.Connect()
	conn := dialer.waitConn(t)

	// The connecting notification may coalesce with open if the dial wins the
	// race; only the final open state is guaranteed.
	for state := range states {
		if state.Status == ConnOpen {
			break
		}
		assert.Equal(t, ConnConnecting, state.Status)
	}

	conn.push(t, []byte(`{"session_status":"processing","dialogue":[{"question":{"id":1,"question_number":1,"content":"Why?","status":"unanswered"}}]}`))
	snap := <-frames
	assert.Equal(t, int64(7), snap.ID)
	assert.Equal(t, SessionProcessing, snap.Status)
	assert.Len(t, snap.Dialogue, 1)
}
