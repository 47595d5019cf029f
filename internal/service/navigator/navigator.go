// Package navigator maps session state to the screen the client should show.
package navigator

import (
	"time"

	"interviewroom-backend/internal/domain"
	"interviewroom-backend/internal/service/session"
	"interviewroom-backend/pkg/errors"
)

// Screen is a top-level presentation state
type Screen string

const (
	ScreenIntro         Screen = "intro"
	ScreenInterviewChat Screen = "interviewChat"
	ScreenOutOfMinutes  Screen = "outOfMinutes"
	ScreenOutage        Screen = "outage"
	ScreenFinal         Screen = "finalScreen"
)

// Action is a user action the current screen offers
type Action string

const (
	ActionStart         Action = "start"
	ActionEnd           Action = "end"
	ActionRetry         Action = "retry"
	ActionManageAccount Action = "manage_account"
	ActionRestart       Action = "restart"
	ActionExport        Action = "export"
)

// View is what the client renders for one session
type View struct {
	SessionID  string             `json:"session_id"`
	Screen     Screen             `json:"screen"`
	Phase      domain.Phase       `json:"phase"`
	Actions    []Action           `json:"actions"`
	Error      *errors.AppError   `json:"error,omitempty"`
	Remaining  time.Duration      `json:"remaining,omitempty"`
	Completion *domain.Completion `json:"completion,omitempty"`
}

// Resolve selects the screen for s. healthy reports whether the conversation
// service is reachable; an outage only replaces pre-session screens, a call
// in progress is never interrupted by it.
func Resolve(s session.State, healthy bool) View {
	v := View{
		SessionID: s.SessionID.String(),
		Phase:     s.Phase,
	}

	switch s.Phase {
	case domain.PhaseIdle:
		v.Screen = ScreenIntro
		v.Actions = []Action{ActionStart}
		if !healthy {
			v.Screen = ScreenOutage
			v.Actions = []Action{ActionRetry}
		}

	case domain.PhaseProvisioning, domain.PhaseJoining, domain.PhaseTerminating:
		v.Screen = ScreenInterviewChat
		v.Actions = []Action{ActionEnd}

	case domain.PhaseLive:
		v.Screen = ScreenInterviewChat
		v.Actions = []Action{ActionEnd}
		v.Remaining = s.Remaining

	case domain.PhaseTerminated:
		v.Screen = ScreenFinal
		v.Actions = []Action{ActionExport, ActionRestart}
		v.Completion = s.Completion

	case domain.PhaseError:
		v.Error = s.Error
		switch {
		case s.Error != nil && s.Error.Code == errors.ErrCodeQuotaExhausted:
			v.Screen = ScreenOutOfMinutes
			v.Actions = []Action{ActionManageAccount, ActionRetry}
		case !healthy:
			v.Screen = ScreenOutage
			v.Actions = []Action{ActionRetry}
		default:
			v.Screen = ScreenIntro
			v.Actions = []Action{ActionRetry}
		}
	}
	return v
}
