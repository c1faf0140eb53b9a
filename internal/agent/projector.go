package agent

// SessionObservers are optional notification hooks fired by the projector
// after the corresponding field has been applied. All hooks run on the
// channel's event goroutine; they must not block.
type SessionObservers struct {
	OnDialogue  func(dialogue []DialogueItem)
	OnStatus    func(status SessionStatus)
	OnIteration func(iteration int)
	OnResult    func(result SessionResult)
}

// SessionProjector merges inbound session frames into a locally held Session.
// The merge is field-by-field: a field absent from a frame leaves the local
// value untouched. The backend nominally pushes full snapshots, but in
// practice frames arrive partial, so the projector must never reset state it
// was not explicitly given.
type SessionProjector struct {
	session   Session
	observers SessionObservers
}

func NewSessionProjector(sessionID int64, observers SessionObservers) *SessionProjector {
	return &SessionProjector{
		session: Session{
			ID:       sessionID,
			Dialogue: []DialogueItem{},
		},
		observers: observers,
	}
}

// Apply merges one parsed frame. The dialogue, when present, replaces the
// local sequence wholesale (the server always sends the full current
// dialogue, never a diff).
func (p *SessionProjector) Apply(frame *SessionFrame) {
	if frame.Dialogue != nil {
		p.session.Dialogue = *frame.Dialogue
		if p.observers.OnDialogue != nil {
			p.observers.OnDialogue(p.session.Dialogue)
		}
	}
	if frame.SessionStatus != nil {
		p.session.Status = *frame.SessionStatus
		if p.observers.OnStatus != nil {
			p.observers.OnStatus(p.session.Status)
		}
	}
	if frame.CurrentIteration != nil {
		p.session.CurrentIteration = *frame.CurrentIteration
		if p.observers.OnIteration != nil {
			p.observers.OnIteration(p.session.CurrentIteration)
		}
	}
	if frame.Result != nil {
		result := *frame.Result
		p.session.Result = &result
		if p.observers.OnResult != nil {
			p.observers.OnResult(result)
		}
	}
}

// Snapshot returns a copy of the projected session safe for consumers to
// hold. The dialogue slice is copied so later frames cannot mutate it out
// from under a reader.
func (p *SessionProjector) Snapshot() Session {
	s := p.session
	s.Dialogue = make([]DialogueItem, len(p.session.Dialogue))
	copy(s.Dialogue, p.session.Dialogue)
	if p.session.Result != nil {
		result := *p.session.Result
		s.Result = &result
	}
	return s
}

// Status returns the last known session status without copying the dialogue.
func (p *SessionProjector) Status() SessionStatus {
	return p.session.Status
}

// StatusObservers are the hooks for the interview status channel.
type StatusObservers struct {
	OnStatus   func(status InterviewStatus)
	OnError    func(message string)
	OnComplete func(result []byte)

	// OnStale fires whenever the backend reports a change that makes any
	// cached copy of this interview's data suspect.
	OnStale func(interviewID int64)
}

// StatusProjector folds typed interview events into an InterviewStatus.
// Events set fields they carry and leave the rest alone; a status event
// without progress must not clear previously reported progress.
type StatusProjector struct {
	status    InterviewStatus
	observers StatusObservers
}

func NewStatusProjector(interviewID int64, observers StatusObservers) *StatusProjector {
	return &StatusProjector{
		status: InterviewStatus{
			ID:       interviewID,
			Progress: ProgressUnknown,
		},
		observers: observers,
	}
}

func (p *StatusProjector) Apply(frame *StatusFrame) {
	switch frame.Type {
	case EventInterviewStatus:
		if frame.Data.Status != nil {
			p.status.Status = *frame.Data.Status
		}
		if frame.Data.Progress != nil {
			p.status.Progress = *frame.Data.Progress
		}
		// Stale first: consumers drop cached copies, then receive the fresh
		// projection.
		if p.observers.OnStale != nil {
			p.observers.OnStale(p.status.ID)
		}
		if p.observers.OnStatus != nil {
			p.observers.OnStatus(p.status)
		}
	case EventInterviewError:
		if frame.Data.Error != nil {
			p.status.Error = *frame.Data.Error
		}
		p.status.Status = InterviewErrored
		if p.observers.OnError != nil {
			p.observers.OnError(p.status.Error)
		}
	case EventInterviewComplete:
		p.status.Status = InterviewCompleted
		if p.observers.OnStale != nil {
			p.observers.OnStale(p.status.ID)
		}
		if p.observers.OnComplete != nil {
			p.observers.OnComplete(frame.Data.Result)
		}
	}
}

func (p *StatusProjector) Snapshot() InterviewStatus {
	return p.status
}

func (p *StatusProjector) State() InterviewState {
	return p.status.Status
}
