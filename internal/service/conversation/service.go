// Package conversation manages the remote conversation resource that hosts
// one interview.
package conversation

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"interviewroom-backend/internal/domain"
	"interviewroom-backend/internal/provider/tavus"
	"interviewroom-backend/pkg/errors"
	"interviewroom-backend/pkg/logger"
	"interviewroom-backend/pkg/metrics"
	"interviewroom-backend/pkg/resilience"
)

// Provider is the remote conversation service
type Provider interface {
	GetPersona(ctx context.Context, personaID string) (*tavus.Persona, error)
	CreateConversation(ctx context.Context, in tavus.CreateConversationRequest) (*tavus.Conversation, error)
	EndConversation(ctx context.Context, conversationID string) error
}

// Config selects the interviewer and the room limits
type Config struct {
	PersonaID              string
	ReplicaID              string
	MaxCallDuration        time.Duration
	ParticipantLeftTimeout time.Duration
	EnableRecording        bool
}

// Service creates and destroys conversation resources
type Service struct {
	provider Provider
	cfg      Config
	breaker  *resilience.Breaker
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewService creates a new conversation service
func NewService(provider Provider, cfg Config, breaker *resilience.Breaker, m *metrics.Metrics) *Service {
	if breaker == nil {
		breaker = resilience.NewBreaker("conversation_service", resilience.DefaultConfig(), m)
	}
	return &Service{
		provider: provider,
		cfg:      cfg,
		breaker:  breaker,
		metrics:  m,
		now:      time.Now,
	}
}

// interviewContext is serialized into the conversational context string
type interviewContext struct {
	CandidateName  string   `json:"candidate_name"`
	ProjectTitle   string   `json:"project_title"`
	ProjectSummary string   `json:"project_summary"`
	Skills         string   `json:"skills"`
	Certificates   string   `json:"certificates"`
	Education      string   `json:"education"`
	Experience     string   `json:"experience"`
	CurrentStage   string   `json:"current_stage"`
	InterviewScore *float64 `json:"interview_score"`
	Greeting       string   `json:"greeting"`
}

// ValidateInput checks the candidate profile and the configured interviewer
func (s *Service) ValidateInput(input domain.SessionInput) error {
	required := []struct {
		field string
		value string
	}{
		{"name", input.Name},
		{"project_title", input.ProjectTitle},
		{"project_summary", input.ProjectSummary},
		{"skills", input.Skills},
		{"education", input.Education},
		{"experience", input.Experience},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return errors.InvalidParametersError(fmt.Sprintf("Missing required field: %s", r.field), nil)
		}
	}

	if !strings.HasPrefix(s.cfg.PersonaID, "p") {
		return errors.InvalidParametersError("Invalid persona_id format", nil)
	}
	if !strings.HasPrefix(s.cfg.ReplicaID, "r") {
		return errors.InvalidParametersError("Invalid replica_id format", nil)
	}
	return nil
}

// Create provisions a conversation for input. The persona is validated first;
// creation itself is never retried so a slow success cannot allocate twice.
// Errors are *errors.AppError carrying one of the provisioning codes.
func (s *Service) Create(ctx context.Context, input domain.SessionInput) (*domain.ConversationResource, error) {
	if err := s.ValidateInput(input); err != nil {
		return nil, err
	}

	err := s.breaker.Execute(ctx, "get_persona", func(ctx context.Context) error {
		start := s.now()
		_, err := s.provider.GetPersona(ctx, s.cfg.PersonaID)
		s.metrics.RecordProviderRequest("get_persona", time.Since(start), err)
		if err != nil && !retryable(err) {
			return resilience.Permanent(err)
		}
		return err
	})
	if err != nil {
		appErr := Classify(err)
		if appErr.Code == errors.ErrCodeInvalidParameters {
			appErr = errors.InvalidParametersError(
				fmt.Sprintf("Invalid persona_id: %s", s.cfg.PersonaID), err)
		}
		logger.Warn("Persona validation failed",
			zap.String("persona_id", s.cfg.PersonaID),
			zap.String("code", string(appErr.Code)),
			zap.Error(err))
		return nil, appErr
	}

	req, err := s.buildRequest(input)
	if err != nil {
		return nil, errors.ProvisioningError(err)
	}

	start := s.now()
	conv, err := s.provider.CreateConversation(ctx, req)
	s.metrics.RecordProviderRequest("create_conversation", time.Since(start), err)
	if err != nil {
		appErr := Classify(err)
		logger.Warn("Conversation creation failed",
			zap.String("code", string(appErr.Code)),
			zap.Error(err))
		return nil, appErr
	}

	createdAt := s.now()
	if t, perr := time.Parse(time.RFC3339, conv.CreatedAt); perr == nil {
		createdAt = t
	}

	logger.Info("Conversation created",
		zap.String("conversation_id", conv.ConversationID))

	return &domain.ConversationResource{
		ID:        conv.ConversationID,
		URL:       conv.ConversationURL,
		CreatedAt: createdAt,
	}, nil
}

// Destroy ends the conversation. It is best-effort: failures are logged and
// never returned. An empty id is a no-op.
func (s *Service) Destroy(ctx context.Context, resourceID string) {
	if resourceID == "" {
		return
	}

	err := s.breaker.Execute(ctx, "end_conversation", func(ctx context.Context) error {
		start := s.now()
		err := s.provider.EndConversation(ctx, resourceID)
		s.metrics.RecordProviderRequest("end_conversation", time.Since(start), err)
		if err != nil && !retryable(err) {
			return resilience.Permanent(err)
		}
		return err
	})

	switch {
	case err == nil:
		logger.Info("Conversation destroyed", zap.String("conversation_id", resourceID))
	case statusOf(err) == http.StatusNotFound || statusOf(err) == http.StatusGone:
		logger.Info("Conversation already gone", zap.String("conversation_id", resourceID))
	default:
		logger.Warn("Failed to destroy conversation",
			zap.String("conversation_id", resourceID),
			zap.Error(err))
	}
}

// HealthCheck probes the conversation service. Only an unreachable service
// or a server-side failure counts as unhealthy.
func (s *Service) HealthCheck(ctx context.Context) error {
	start := s.now()
	_, err := s.provider.GetPersona(ctx, s.cfg.PersonaID)
	s.metrics.RecordProviderRequest("health_check", time.Since(start), err)

	if err == nil || stderrors.Is(err, tavus.ErrMissingAPIKey) {
		return nil
	}
	if code := statusOf(err); code != 0 && code < http.StatusInternalServerError {
		return nil
	}
	return errors.ServiceUnavailableError("Conversation service is unavailable")
}

func (s *Service) buildRequest(input domain.SessionInput) (tavus.CreateConversationRequest, error) {
	ctxJSON, err := json.Marshal(interviewContext{
		CandidateName:  input.Name,
		ProjectTitle:   input.ProjectTitle,
		ProjectSummary: input.ProjectSummary,
		Skills:         input.Skills,
		Certificates:   input.Certificates,
		Education:      input.Education,
		Experience:     input.Experience,
		CurrentStage:   "1",
		Greeting:       "Good Morning",
	})
	if err != nil {
		return tavus.CreateConversationRequest{}, fmt.Errorf("failed to marshal conversational context: %w", err)
	}

	return tavus.CreateConversationRequest{
		PersonaID:             s.cfg.PersonaID,
		ReplicaID:             s.cfg.ReplicaID,
		ConversationName:      fmt.Sprintf("Interview with %s", input.Name),
		CustomGreeting:        greeting(input),
		ConversationalContext: string(ctxJSON),
		Properties: tavus.ConversationProperties{
			MaxCallDuration:        int(s.cfg.MaxCallDuration / time.Second),
			ParticipantLeftTimeout: int(s.cfg.ParticipantLeftTimeout / time.Second),
			EnableRecording:        s.cfg.EnableRecording,
		},
	}, nil
}

func greeting(input domain.SessionInput) string {
	return fmt.Sprintf("Hello %s! I'm your AI interviewer. I'll be conducting this technical interview today. "+
		"I'm excited to learn about your background and experience with %s. Let's start with a brief introduction - "+
		"could you tell me about your professional journey and what motivates you in your career?",
		input.Name, input.Skills)
}

// Classify maps a provider failure onto the provisioning error taxonomy
func Classify(err error) *errors.AppError {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	if stderrors.Is(err, tavus.ErrMissingAPIKey) {
		return errors.CredentialInvalidError(err)
	}

	var statusErr *tavus.HTTPStatusError
	if !stderrors.As(err, &statusErr) {
		return errors.ProvisioningError(err)
	}

	msg := strings.ToLower(statusErr.Message + " " + statusErr.Body)
	switch {
	case statusErr.StatusCode == http.StatusPaymentRequired:
		return errors.QuotaExhaustedError(err)
	case statusErr.StatusCode == http.StatusUnauthorized, statusErr.StatusCode == http.StatusForbidden:
		return errors.CredentialInvalidError(err)
	case strings.Contains(msg, "credits"), strings.Contains(msg, "quota"):
		return errors.QuotaExhaustedError(err)
	case statusErr.StatusCode == http.StatusBadRequest,
		statusErr.StatusCode == http.StatusNotFound,
		statusErr.StatusCode == http.StatusUnprocessableEntity:
		message := "Invalid conversation parameters"
		if statusErr.Message != "" {
			message = statusErr.Message
		}
		return errors.InvalidParametersError(message, err)
	default:
		return errors.ProvisioningError(err)
	}
}

// retryable reports whether a failure may succeed on another attempt
func retryable(err error) bool {
	if stderrors.Is(err, tavus.ErrMissingAPIKey) {
		return false
	}
	code := statusOf(err)
	return code == 0 || code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func statusOf(err error) int {
	var statusErr *tavus.HTTPStatusError
	if stderrors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}
