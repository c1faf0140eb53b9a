package agent

// SessionStatus is the lifecycle state of an agent session as reported by the
// agent backend. Anything outside this set is kept verbatim and treated as
// "unknown" by consumers, not as a protocol error.
type SessionStatus string

const (
	SessionWaitingForAnswers SessionStatus = "waiting_for_answers"
	SessionProcessing        SessionStatus = "processing"
	SessionDone              SessionStatus = "done"
	SessionCancelled         SessionStatus = "cancelled"
	SessionError             SessionStatus = "error"
)

// IsTerminal reports whether no further server-side activity is expected.
// Once a channel observes a terminal status it stops reconnecting.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionDone || s == SessionCancelled || s == SessionError
}

// MaxIterations is the agent's advertised question-round ceiling. It is a
// display hint for progress bars only; the channel layer never enforces it.
const MaxIterations = 5

// QuestionStatus is the server-pushed display tag for a question. It is
// authoritative: the client renders it as-is and never re-derives it from
// whether an Answer is attached (the backend may tag a question "skipped"
// before the answer object shows up in a frame).
type QuestionStatus string

const (
	QuestionUnanswered QuestionStatus = "unanswered"
	QuestionAnswered   QuestionStatus = "answered"
	QuestionSkipped    QuestionStatus = "skipped"
)

type Question struct {
	ID             int64          `json:"id"`
	QuestionNumber int            `json:"question_number"`
	Content        string         `json:"content"`
	Explanation    string         `json:"explanation,omitempty"`
	Status         QuestionStatus `json:"status"`
}

type Answer struct {
	Content   string `json:"content"`
	IsSkipped bool   `json:"is_skipped"`
}

// DialogueItem pairs exactly one question with at most one answer. The
// protocol is strictly turn-based: at most one item without an answer exists
// at a time, and it is always the most recently asked question.
type DialogueItem struct {
	Question Question `json:"question"`
	Answer   *Answer  `json:"answer,omitempty"`
}

// SessionResult references the generated requirements document once the
// session reaches "done".
type SessionResult struct {
	DocumentID int64  `json:"document_id"`
	Preview    string `json:"preview,omitempty"`
}

// Session is the locally projected view of one agent session. It is owned and
// mutated exclusively by a SessionChannel's projector; consumers read it via
// Snapshot copies.
type Session struct {
	ID               int64          `json:"id"`
	Status           SessionStatus  `json:"status"`
	CurrentIteration int            `json:"current_iteration"`
	Dialogue         []DialogueItem `json:"dialogue"`
	Result           *SessionResult `json:"result,omitempty"`
}

// InterviewStatus values pushed on the status channel.
type InterviewState string

const (
	InterviewUploaded     InterviewState = "uploaded"
	InterviewTranscribing InterviewState = "transcribing"
	InterviewProcessing   InterviewState = "processing"
	InterviewCompleted    InterviewState = "completed"
	InterviewCancelled    InterviewState = "cancelled"
	InterviewErrored      InterviewState = "error"
)

func (s InterviewState) IsTerminal() bool {
	return s == InterviewCompleted || s == InterviewCancelled || s == InterviewErrored
}

// ProgressUnknown marks an interview whose progress has never been reported.
const ProgressUnknown = -1

// InterviewStatus is the projected state of one interview-processing job.
// Partial events set individual fields and never clear previously known ones.
type InterviewStatus struct {
	ID       int64          `json:"id"`
	Status   InterviewState `json:"status"`
	Progress int            `json:"progress"`
	Error    string         `json:"error,omitempty"`
}

// ConnectionStatus of a channel's underlying websocket.
type ConnectionStatus string

const (
	ConnConnecting ConnectionStatus = "connecting"
	ConnOpen       ConnectionStatus = "open"
	ConnClosed     ConnectionStatus = "closed"
)

// ChannelState is the externally observable connection state of a channel
// instance. LastError is transient and informational; it never halts retry.
type ChannelState struct {
	Status    ConnectionStatus `json:"status"`
	LastError string           `json:"last_error,omitempty"`
}
