package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParseSessionFrame(t *testing.T, raw string) *SessionFrame {
	t.Helper()
	frame, err := ParseSessionFrame([]byte(raw))
	require.NoError(t, err)
	return frame
}

func TestSessionProjectorLeavesAbsentFieldsAlone(t *testing.T) {
	p := NewSessionProjector(1, SessionObservers{})

	p.Apply(mustParseSessionFrame(t, `{
		"session_status": "waiting_for_answers",
		"current_iteration": 3,
		"dialogue": [{"question":{"id":10,"question_number":1,"content":"What is the goal?","status":"unanswered"}}]
	}`))

	// A status-only frame must not reset dialogue or iteration.
	p.Apply(mustParseSessionFrame(t, `{"session_status":"processing"}`))

	snap := p.Snapshot()
	assert.Equal(t, SessionProcessing, snap.Status)
	assert.Equal(t, 3, snap.CurrentIteration)
	assert.Len(t, snap.Dialogue, 1)

	// An iteration-only frame must not reset dialogue or status.
	p.Apply(mustParseSessionFrame(t, `{"current_iteration":4}`))

	snap = p.Snapshot()
	assert.Equal(t, SessionProcessing, snap.Status)
	assert.Equal(t, 4, snap.CurrentIteration)
	assert.Len(t, snap.Dialogue, 1)
}

func TestSessionProjectorAppliesZeroIteration(t *testing.T) {
	p := NewSessionProjector(1, SessionObservers{})

	p.Apply(mustParseSessionFrame(t, `{"current_iteration":3}`))
	p.Apply(mustParseSessionFrame(t, `{"current_iteration":0}`))
	assert.Equal(t, 0, p.Snapshot().CurrentIteration)

	// Absent is different from zero.
	p.Apply(mustParseSessionFrame(t, `{"current_iteration":2}`))
	p.Apply(mustParseSessionFrame(t, `{"session_status":"processing"}`))
	assert.Equal(t, 2, p.Snapshot().CurrentIteration)
}

func TestSessionProjectorReplacesDialogueWholesale(t *testing.T) {
	p := NewSessionProjector(1, SessionObservers{})

	p.Apply(mustParseSessionFrame(t, `{"dialogue":[
		{"question":{"id":1,"question_number":1,"content":"a","status":"answered"},"answer":{"content":"x"}},
		{"question":{"id":2,"question_number":2,"content":"b","status":"unanswered"}}
	]}`))
	require.Len(t, p.Snapshot().Dialogue, 2)

	// The next dialogue is the whole truth, not a diff.
	p.Apply(mustParseSessionFrame(t, `{"dialogue":[
		{"question":{"id":3,"question_number":3,"content":"c","status":"unanswered"}}
	]}`))

	snap := p.Snapshot()
	require.Len(t, snap.Dialogue, 1)
	assert.Equal(t, int64(3), snap.Dialogue[0].Question.ID)
}

func TestSessionProjectorSnapshotIsIsolated(t *testing.T) {
	p := NewSessionProjector(1, SessionObservers{})
	p.Apply(mustParseSessionFrame(t, `{"dialogue":[
		{"question":{"id":1,"question_number":1,"content":"a","status":"unanswered"}}
	]}`))

	snap := p.Snapshot()
	p.Apply(mustParseSessionFrame(t, `{"dialogue":[
		{"question":{"id":2,"question_number":2,"content":"b","status":"unanswered"}}
	]}`))

	require.Len(t, snap.Dialogue, 1)
	assert.Equal(t, int64(1), snap.Dialogue[0].Question.ID)
}

func TestSessionProjectorFiresObservers(t *testing.T) {
	var statuses []SessionStatus
	var iterations []int
	var results []SessionResult

	p := NewSessionProjector(1, SessionObservers{
		OnStatus:    func(s SessionStatus) { statuses = append(statuses, s) },
		OnIteration: func(i int) { iterations = append(iterations, i) },
		OnResult:    func(r SessionResult) { results = append(results, r) },
	})

	p.Apply(mustParseSessionFrame(t, `{"session_status":"done","result":{"document_id":55,"preview":"# Requirements"}}`))
	p.Apply(mustParseSessionFrame(t, `{"current_iteration":4}`))

	assert.Equal(t, []SessionStatus{SessionDone}, statuses)
	assert.Equal(t, []int{4}, iterations)
	require.Len(t, results, 1)
	assert.Equal(t, int64(55), results[0].DocumentID)
}

func TestStatusProjectorRetainsProgressAcrossPartialEvents(t *testing.T) {
	p := NewStatusProjector(9, StatusObservers{})
	assert.Equal(t, ProgressUnknown, p.Snapshot().Progress)

	// Progress-only event.
	frame, err := ParseStatusFrame([]byte(`{"type":"interview:status","data":{"id":9,"progress":40}}`))
	require.NoError(t, err)
	p.Apply(frame)
	assert.Equal(t, 40, p.Snapshot().Progress)

	// Status-only event: progress stays at the last reported value.
	frame, err = ParseStatusFrame([]byte(`{"type":"interview:status","data":{"id":9,"status":"processing"}}`))
	require.NoError(t, err)
	p.Apply(frame)

	snap := p.Snapshot()
	assert.Equal(t, InterviewProcessing, snap.Status)
	assert.Equal(t, 40, snap.Progress)
}

func TestStatusProjectorErrorEvent(t *testing.T) {
	var gotErr string
	p := NewStatusProjector(9, StatusObservers{
		OnError: func(msg string) { gotErr = msg },
	})

	frame, err := ParseStatusFrame([]byte(`{"type":"interview:error","data":{"id":9,"error":"model timeout"}}`))
	require.NoError(t, err)
	p.Apply(frame)

	assert.Equal(t, InterviewErrored, p.State())
	assert.Equal(t, "model timeout", p.Snapshot().Error)
	assert.Equal(t, "model timeout", gotErr)
	assert.True(t, p.State().IsTerminal())
}

func TestStatusProjectorStaleFiresBeforeStatus(t *testing.T) {
	var order []string
	p := NewStatusProjector(9, StatusObservers{
		OnStale:  func(int64) { order = append(order, "stale") },
		OnStatus: func(InterviewStatus) { order = append(order, "status") },
	})

	frame, err := ParseStatusFrame([]byte(`{"type":"interview:status","data":{"id":9,"status":"uploaded"}}`))
	require.NoError(t, err)
	p.Apply(frame)

	assert.Equal(t, []string{"stale", "status"}, order)
}
