package navigator

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interviewroom-backend/internal/domain"
	"interviewroom-backend/internal/service/session"
	"interviewroom-backend/pkg/errors"
)

func TestResolve(t *testing.T) {
	completion := &domain.Completion{Reason: domain.EndReasonHangUp}

	tests := []struct {
		name    string
		state   session.State
		healthy bool
		screen  Screen
		actions []Action
	}{
		{
			name:    "idle shows intro",
			state:   session.State{Phase: domain.PhaseIdle},
			healthy: true,
			screen:  ScreenIntro,
			actions: []Action{ActionStart},
		},
		{
			name:    "idle during outage",
			state:   session.State{Phase: domain.PhaseIdle},
			healthy: false,
			screen:  ScreenOutage,
			actions: []Action{ActionRetry},
		},
		{
			name:    "provisioning shows chat",
			state:   session.State{Phase: domain.PhaseProvisioning},
			healthy: true,
			screen:  ScreenInterviewChat,
			actions: []Action{ActionEnd},
		},
		{
			name:    "live call ignores outage",
			state:   session.State{Phase: domain.PhaseLive},
			healthy: false,
			screen:  ScreenInterviewChat,
			actions: []Action{ActionEnd},
		},
		{
			name:    "terminated shows final screen",
			state:   session.State{Phase: domain.PhaseTerminated, Completion: completion},
			healthy: true,
			screen:  ScreenFinal,
			actions: []Action{ActionExport, ActionRestart},
		},
		{
			name: "quota routes to account management",
			state: session.State{
				Phase: domain.PhaseError,
				Error: errors.QuotaExhaustedError(stderrors.New("402")),
			},
			healthy: true,
			screen:  ScreenOutOfMinutes,
			actions: []Action{ActionManageAccount, ActionRetry},
		},
		{
			name: "credential error offers retry",
			state: session.State{
				Phase: domain.PhaseError,
				Error: errors.CredentialInvalidError(stderrors.New("401")),
			},
			healthy: true,
			screen:  ScreenIntro,
			actions: []Action{ActionRetry},
		},
		{
			name: "provisioning failure during outage",
			state: session.State{
				Phase: domain.PhaseError,
				Error: errors.ProvisioningError(stderrors.New("503")),
			},
			healthy: false,
			screen:  ScreenOutage,
			actions: []Action{ActionRetry},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Resolve(tt.state, tt.healthy)
			assert.Equal(t, tt.screen, v.Screen)
			assert.Equal(t, tt.actions, v.Actions)
			assert.Equal(t, tt.state.Phase, v.Phase)
		})
	}
}

func TestResolve_CarriesPayload(t *testing.T) {
	id := uuid.New()
	completion := &domain.Completion{SessionID: id, Reason: domain.EndReasonBudgetExceeded}

	v := Resolve(session.State{SessionID: id, Phase: domain.PhaseTerminated, Completion: completion}, true)
	assert.Equal(t, id.String(), v.SessionID)
	assert.Same(t, completion, v.Completion)

	live := Resolve(session.State{Phase: domain.PhaseLive, Remaining: 90 * time.Second}, true)
	assert.Equal(t, 90*time.Second, live.Remaining)
	assert.Nil(t, live.Completion)

	cause := errors.TransportJoinError(stderrors.New("room gone"))
	failed := Resolve(session.State{Phase: domain.PhaseError, Error: cause}, true)
	assert.Same(t, cause, failed.Error)
}

type scriptedChecker struct {
	mu      sync.Mutex
	results []error
	calls   int
}

func (s *scriptedChecker) HealthCheck(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if s.calls < len(s.results) {
		err = s.results[s.calls]
	}
	s.calls++
	return err
}

func TestHealthMonitor_Probe(t *testing.T) {
	checker := &scriptedChecker{results: []error{
		errors.ServiceUnavailableError("down"),
		nil,
	}}
	h := NewHealthMonitor(checker, time.Second, nil)
	assert.True(t, h.Healthy())

	assert.False(t, h.Probe(context.Background()))
	assert.False(t, h.Healthy())

	assert.True(t, h.Probe(context.Background()))
	assert.True(t, h.Healthy())
}

func TestHealthMonitor_StartProbesImmediately(t *testing.T) {
	checker := &scriptedChecker{results: []error{errors.ServiceUnavailableError("down")}}
	h := NewHealthMonitor(checker, time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx, time.Hour)

	require.Eventually(t, func() bool { return !h.Healthy() }, 2*time.Second, 5*time.Millisecond)
}
