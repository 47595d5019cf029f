package session

import (
	"time"

	"github.com/google/uuid"

	"interviewroom-backend/internal/domain"
	"interviewroom-backend/pkg/errors"
)

// State is the read-only view of a session published to subscribers
type State struct {
	SessionID       uuid.UUID          `json:"session_id"`
	Phase           domain.Phase       `json:"phase"`
	Attempt         int                `json:"attempt"`
	Error           *errors.AppError   `json:"error,omitempty"`
	ConversationID  string             `json:"conversation_id,omitempty"`
	ConversationURL string             `json:"conversation_url,omitempty"`
	RemoteJoined    bool               `json:"remote_joined"`
	TranscriptCount int                `json:"transcript_count"`
	Elapsed         time.Duration      `json:"elapsed"`
	Remaining       time.Duration      `json:"remaining"`
	Completion      *domain.Completion `json:"completion,omitempty"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// validTransitions lists every phase change the controller may make
var validTransitions = map[domain.Phase][]domain.Phase{
	domain.PhaseIdle:         {domain.PhaseProvisioning, domain.PhaseTerminating},
	domain.PhaseProvisioning: {domain.PhaseJoining, domain.PhaseError, domain.PhaseTerminating},
	domain.PhaseJoining:      {domain.PhaseLive, domain.PhaseError, domain.PhaseTerminating},
	domain.PhaseLive:         {domain.PhaseTerminating},
	domain.PhaseTerminating:  {domain.PhaseTerminated},
	domain.PhaseTerminated:   {domain.PhaseProvisioning},
	domain.PhaseError:        {domain.PhaseProvisioning},
}

func canTransition(from, to domain.Phase) bool {
	for _, p := range validTransitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

// inbox messages. Results of async work carry the attempt they belong to so
// that results of a superseded attempt can be recognized.
type (
	startCmd struct {
		input domain.SessionInput
		reply chan error
	}
	retryCmd struct {
		reply chan error
	}
	endCmd struct {
		reason domain.EndReason
		reply  chan State
	}
	mediaCmd struct {
		reply chan mediaReply
	}
	mediaReply struct {
		tr  mediaTarget
		err error
	}
	remoteJoined struct {
		attempt int
	}
	budgetExceeded struct {
		attempt int
	}
	provisionResult struct {
		attempt  int
		resource *domain.ConversationResource
		err      error
	}
	joinResult struct {
		attempt int
		localID string
		err     error
	}
	transportEvent struct {
		attempt int
		evt     domain.TransportEvent
	}
	transportClosed struct {
		attempt int
	}
	graceElapsed struct {
		attempt int
	}
	teardownDone struct {
		attempt int
	}
)

// mediaTarget is the part of a transport handle media toggles need
type mediaTarget interface {
	SetLocalAudio(on bool) error
	SetLocalVideo(on bool) error
}
