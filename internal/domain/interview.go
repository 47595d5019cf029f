package domain

import (
	"time"

	"github.com/google/uuid"
)

// Phase is the lifecycle state of one interview session
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseProvisioning Phase = "provisioning"
	PhaseJoining      Phase = "joining"
	PhaseLive         Phase = "live"
	PhaseTerminating  Phase = "terminating"
	PhaseTerminated   Phase = "terminated"
	PhaseError        Phase = "error"
)

// IsTerminal reports whether the phase is absorbing until a new Start.
func (p Phase) IsTerminal() bool {
	return p == PhaseTerminated || p == PhaseError
}

// SessionInput is the candidate profile used to personalize the interview
type SessionInput struct {
	Name           string `json:"name" binding:"required"`
	ProjectTitle   string `json:"project_title" binding:"required"`
	ProjectSummary string `json:"project_summary" binding:"required"`
	Skills         string `json:"skills" binding:"required"`
	Certificates   string `json:"certificates"`
	Education      string `json:"education" binding:"required"`
	Experience     string `json:"experience" binding:"required"`
}

// ConversationResource is the remote room allocated for one interview
type ConversationResource struct {
	ID        string    `json:"conversation_id"`
	URL       string    `json:"conversation_url"`
	CreatedAt time.Time `json:"created_at"`
}

// Speaker attributes a transcript line
type Speaker string

const (
	SpeakerUser        Speaker = "user"
	SpeakerInterviewer Speaker = "interviewer"
)

// Origin tells which transport channel produced a transcript line
type Origin string

const (
	OriginLiveTranscript   Origin = "live-transcript"
	OriginApplicationEvent Origin = "application-event"
)

// TranscriptMessage is one immutable entry of the session log
type TranscriptMessage struct {
	ID        string    `json:"id"`
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"message"`
	Origin    Origin    `json:"type"`
}

// EvaluationSummary is the post-session scoring result. Scores are in [0,100].
type EvaluationSummary struct {
	TechnicalKnowledge  float64  `json:"technicalKnowledge"`
	CommunicationSkills float64  `json:"communicationSkills"`
	Confidence          float64  `json:"confidence"`
	ProblemSolving      float64  `json:"problemSolving"`
	OverallScore        float64  `json:"overallScore"`
	Feedback            []string `json:"feedback"`
}

// EndReason records what triggered teardown
type EndReason string

const (
	EndReasonHangUp         EndReason = "hang_up"
	EndReasonBudgetExceeded EndReason = "budget_exceeded"
	EndReasonRemoteLeft     EndReason = "remote_left"
	EndReasonRemoteError    EndReason = "remote_error"
	EndReasonShutdown       EndReason = "shutdown"
)

// Completion is the terminal "session complete" payload
type Completion struct {
	SessionID      uuid.UUID           `json:"session_id"`
	ConversationID string              `json:"conversation_id,omitempty"`
	Reason         EndReason           `json:"reason"`
	Transcript     []TranscriptMessage `json:"transcript"`
	Summary        EvaluationSummary   `json:"summary"`
	LiveDuration   time.Duration       `json:"live_duration"`
	StartedAt      time.Time           `json:"started_at"`
	EndedAt        time.Time           `json:"ended_at"`
}

// UserMessageCount counts the candidate's transcript lines
func (c *Completion) UserMessageCount() int {
	n := 0
	for _, m := range c.Transcript {
		if m.Speaker == SpeakerUser {
			n++
		}
	}
	return n
}
