// Package export builds the post-session interview document and archives it.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"interviewroom-backend/internal/domain"
	"interviewroom-backend/pkg/errors"
	"interviewroom-backend/pkg/logger"
	"interviewroom-backend/pkg/metrics"
)

const contentType = "application/json"

// Document is the downloadable record of a finished interview
type Document struct {
	SessionID     uuid.UUID                  `json:"sessionId"`
	Conversation  []domain.TranscriptMessage `json:"conversation"`
	Evaluation    domain.EvaluationSummary   `json:"evaluation"`
	Timestamp     time.Time                  `json:"timestamp"`
	TotalMessages int                        `json:"totalMessages"`
	UserMessages  int                        `json:"userMessages"`
}

// Build assembles the document for a completed session. at is the export
// instant; a zero value falls back to the session end time.
func Build(c *domain.Completion, at time.Time) Document {
	if at.IsZero() {
		at = c.EndedAt
	}
	conversation := c.Transcript
	if conversation == nil {
		conversation = []domain.TranscriptMessage{}
	}
	return Document{
		SessionID:     c.SessionID,
		Conversation:  conversation,
		Evaluation:    c.Summary,
		Timestamp:     at.UTC(),
		TotalMessages: len(c.Transcript),
		UserMessages:  c.UserMessageCount(),
	}
}

// ObjectName is the storage key of a session export
func ObjectName(sessionID uuid.UUID, at time.Time) string {
	return fmt.Sprintf("interviews/%s/interview-data-%s.json", sessionID, at.UTC().Format("2006-01-02"))
}

// Uploader stores export documents
type Uploader interface {
	Upload(ctx context.Context, objectName string, data []byte, contentType string) error
}

// Service archives every completed session
type Service struct {
	uploader Uploader
	metrics  *metrics.Metrics
}

// NewService creates an export service. A nil uploader disables archiving;
// documents can still be rendered for download.
func NewService(uploader Uploader, m *metrics.Metrics) *Service {
	return &Service{
		uploader: uploader,
		metrics:  m,
	}
}

// Render returns the indented JSON document for c
func (s *Service) Render(c *domain.Completion, at time.Time) ([]byte, error) {
	data, err := json.MarshalIndent(Build(c, at), "", "  ")
	if err != nil {
		return nil, errors.InternalError("Failed to encode export")
	}
	return data, nil
}

// HandleCompletion uploads the export for a terminated session
func (s *Service) HandleCompletion(ctx context.Context, c *domain.Completion) error {
	if s.uploader == nil {
		return nil
	}

	data, err := s.Render(c, c.EndedAt)
	if err != nil {
		return err
	}

	name := ObjectName(c.SessionID, c.EndedAt)
	err = s.uploader.Upload(ctx, name, data, contentType)
	s.metrics.RecordExport(err)
	if err != nil {
		logger.Error("Failed to archive interview export",
			zap.String("session_id", c.SessionID.String()),
			zap.String("object", name),
			zap.Error(err))
		return errors.StorageError(err)
	}

	logger.Info("Archived interview export",
		zap.String("session_id", c.SessionID.String()),
		zap.String("object", name),
		zap.Int("messages", len(c.Transcript)))
	return nil
}
