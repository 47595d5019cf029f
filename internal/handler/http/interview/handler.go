package interview

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"interviewroom-backend/internal/domain"
	"interviewroom-backend/internal/service/export"
	"interviewroom-backend/internal/service/navigator"
	"interviewroom-backend/internal/service/session"
	"interviewroom-backend/pkg/errors"
	"interviewroom-backend/pkg/logger"
	"interviewroom-backend/pkg/pagination"
	"interviewroom-backend/pkg/response"
	"interviewroom-backend/pkg/sanitize"
)

const maxFieldRunes = 2000

// InputValidator rejects profiles the conversation service would refuse
type InputValidator interface {
	ValidateInput(input domain.SessionInput) error
}

// HealthReporter exposes the latest conversation service probe
type HealthReporter interface {
	Healthy() bool
}

// Archive looks up sessions persisted after they ended
type Archive interface {
	GetByID(ctx context.Context, sessionID uuid.UUID) (*domain.Completion, error)
	ListRecent(ctx context.Context, limit, offset int) ([]*domain.Completion, error)
}

// Handler handles interview session HTTP requests
type Handler struct {
	sessions  *session.Manager
	validator InputValidator
	health    HealthReporter
	exporter  *export.Service
	archive   Archive
	timeout   time.Duration
}

// NewHandler creates a new interview handler. archive may be nil.
func NewHandler(sessions *session.Manager, validator InputValidator, health HealthReporter,
	exporter *export.Service, archive Archive, timeout time.Duration) *Handler {
	return &Handler{
		sessions:  sessions,
		validator: validator,
		health:    health,
		exporter:  exporter,
		archive:   archive,
		timeout:   timeout,
	}
}

// RegisterRoutes mounts the interview API on rg
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, startLimit gin.HandlerFunc) {
	interviews := rg.Group("/interviews")
	{
		interviews.POST("", h.CreateSession)
		interviews.GET("/archive", h.ListArchive)
		interviews.GET("/:id", h.GetSession)
		interviews.DELETE("/:id", h.DeleteSession)
		interviews.POST("/:id/start", startLimit, h.StartSession)
		interviews.POST("/:id/retry", startLimit, h.RetrySession)
		interviews.POST("/:id/end", h.EndSession)
		interviews.POST("/:id/remote-joined", h.RemoteJoined)
		interviews.POST("/:id/media", h.SetMedia)
		interviews.GET("/:id/transcript", h.GetTranscript)
		interviews.GET("/:id/export", h.ExportSession)
	}
}

// CreateSessionResponse is returned for a new session
type CreateSessionResponse struct {
	SessionID uuid.UUID      `json:"session_id"`
	View      navigator.View `json:"view"`
}

// CreateSession registers an idle session
// POST /v1/interviews
func (h *Handler) CreateSession(c *gin.Context) {
	ctrl := h.sessions.Create()
	response.Success(c, http.StatusCreated, CreateSessionResponse{
		SessionID: ctrl.ID(),
		View:      h.view(ctrl),
	})
}

// GetSession returns the current screen of a session
// GET /v1/interviews/:id
func (h *Handler) GetSession(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, h.view(ctrl))
}

// StartSession provisions the conversation and joins the call
// POST /v1/interviews/:id/start
func (h *Handler) StartSession(c *gin.Context) {
	var input domain.SessionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.FromError(c, errors.InvalidParametersError("Interview profile is incomplete", err))
		return
	}
	input = sanitizeInput(input)

	if err := h.validator.ValidateInput(input); err != nil {
		response.FromError(c, err)
		return
	}

	ctrl, ok := h.controller(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()
	if err := ctrl.Start(ctx, input); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusAccepted, h.view(ctrl))
}

// RetrySession re-runs provisioning after an error
// POST /v1/interviews/:id/retry
func (h *Handler) RetrySession(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()
	if err := ctrl.Retry(ctx); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusAccepted, h.view(ctrl))
}

// EndSession hangs up and waits for the evaluation
// POST /v1/interviews/:id/end
func (h *Handler) EndSession(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()
	state, err := ctrl.End(ctx, domain.EndReasonHangUp)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, navigator.Resolve(state, h.health.Healthy()))
}

// DeleteSession ends a session and forgets it
// DELETE /v1/interviews/:id
func (h *Handler) DeleteSession(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()
	if err := h.sessions.Remove(ctx, id); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"message":    "Session removed",
		"session_id": id,
	})
}

// RemoteJoined reports that the interviewer is in the call. Transports that
// do not emit participant events rely on the client calling this.
// POST /v1/interviews/:id/remote-joined
func (h *Handler) RemoteJoined(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	ctrl.OnRemoteJoined()
	response.Success(c, http.StatusAccepted, h.view(ctrl))
}

// MediaRequest toggles local media. Omitted fields are left unchanged.
type MediaRequest struct {
	Audio *bool `json:"audio"`
	Video *bool `json:"video"`
}

// SetMedia toggles the candidate microphone or camera
// POST /v1/interviews/:id/media
func (h *Handler) SetMedia(c *gin.Context) {
	var req MediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}
	if req.Audio == nil && req.Video == nil {
		response.ValidationError(c, "audio or video is required")
		return
	}

	ctrl, ok := h.controller(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()
	if req.Audio != nil {
		if err := ctrl.SetLocalAudio(ctx, *req.Audio); err != nil {
			response.FromError(c, err)
			return
		}
	}
	if req.Video != nil {
		if err := ctrl.SetLocalVideo(ctx, *req.Video); err != nil {
			response.FromError(c, err)
			return
		}
	}
	response.Success(c, http.StatusOK, req)
}

// GetTranscript returns the messages collected so far
// GET /v1/interviews/:id/transcript
func (h *Handler) GetTranscript(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	transcript := ctrl.Transcript()
	if transcript == nil {
		transcript = []domain.TranscriptMessage{}
	}
	response.Success(c, http.StatusOK, gin.H{
		"session_id": ctrl.ID(),
		"messages":   transcript,
	})
}

// ExportSession downloads the interview document of a finished session
// GET /v1/interviews/:id/export
func (h *Handler) ExportSession(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	completion, err := h.completion(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}

	now := time.Now()
	data, err := h.exporter.Render(completion, now)
	if err != nil {
		response.FromError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="interview-data-%s.json"`, now.UTC().Format("2006-01-02")))
	c.Data(http.StatusOK, "application/json", data)
}

// ListArchive pages through persisted sessions, newest first
// GET /v1/interviews/archive?page=1&limit=20
func (h *Handler) ListArchive(c *gin.Context) {
	if h.archive == nil {
		response.FromError(c, errors.ServiceUnavailableError("Session archive is not configured"))
		return
	}

	params, err := pagination.ParsePaginationParams(c.Query("page"), c.Query("limit"))
	if err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	rows, err := h.archive.ListRecent(c.Request.Context(), params.Limit+1, params.Offset)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, pagination.BuildPaginationResponse(params, rows))
}

// completion finds the terminal payload in memory first, then in the archive
func (h *Handler) completion(ctx context.Context, id uuid.UUID) (*domain.Completion, error) {
	if ctrl, err := h.sessions.Get(id); err == nil {
		state := ctrl.State()
		if state.Phase == domain.PhaseTerminated && state.Completion != nil {
			return state.Completion, nil
		}
		if h.archive == nil {
			return nil, errors.NotReadyError("Session has not finished yet")
		}
	}
	if h.archive == nil {
		return nil, errors.SessionNotFoundError()
	}
	return h.archive.GetByID(ctx, id)
}

func (h *Handler) controller(c *gin.Context) (*session.Controller, bool) {
	id, ok := parseID(c)
	if !ok {
		return nil, false
	}
	ctrl, err := h.sessions.Lookup(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return nil, false
	}
	return ctrl, true
}

func (h *Handler) view(ctrl *session.Controller) navigator.View {
	return navigator.Resolve(ctrl.State(), h.health.Healthy())
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "Invalid session ID")
		return uuid.Nil, false
	}
	c.Request = c.Request.WithContext(logger.WithSessionID(c.Request.Context(), id.String()))
	return id, true
}

func sanitizeInput(in domain.SessionInput) domain.SessionInput {
	return domain.SessionInput{
		Name:           sanitize.SanitizeText(in.Name, 200),
		ProjectTitle:   sanitize.SanitizeText(in.ProjectTitle, 200),
		ProjectSummary: sanitize.SanitizeText(in.ProjectSummary, maxFieldRunes),
		Skills:         sanitize.SanitizeText(in.Skills, maxFieldRunes),
		Certificates:   sanitize.SanitizeText(in.Certificates, maxFieldRunes),
		Education:      sanitize.SanitizeText(in.Education, maxFieldRunes),
		Experience:     sanitize.SanitizeText(in.Experience, maxFieldRunes),
	}
}
