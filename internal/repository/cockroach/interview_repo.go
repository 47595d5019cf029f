package cockroach

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"interviewroom-backend/internal/domain"
	"interviewroom-backend/pkg/errors"
)

// DBTX is the subset of *pgxpool.Pool used by repositories
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const interviewSchema = `
	CREATE TABLE IF NOT EXISTS interview_sessions (
		session_id UUID PRIMARY KEY,
		conversation_id STRING,
		end_reason STRING NOT NULL,
		overall_score DECIMAL(5,1) NOT NULL,
		summary JSONB NOT NULL,
		transcript JSONB NOT NULL,
		message_count INT NOT NULL,
		user_message_count INT NOT NULL,
		live_seconds INT NOT NULL,
		started_at TIMESTAMPTZ,
		ended_at TIMESTAMPTZ NOT NULL,
		INDEX interview_sessions_ended_at_idx (ended_at DESC)
	)
`

// InterviewRepository stores completed interview sessions
type InterviewRepository struct {
	db DBTX
}

// NewInterviewRepository creates a new interview repository
func NewInterviewRepository(db DBTX) *InterviewRepository {
	return &InterviewRepository{db: db}
}

// EnsureSchema creates the interview table when missing
func (r *InterviewRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, interviewSchema); err != nil {
		return fmt.Errorf("failed to create interview_sessions table: %w", err)
	}
	return nil
}

// Save upserts a completed session
func (r *InterviewRepository) Save(ctx context.Context, c *domain.Completion) error {
	summary, err := json.Marshal(c.Summary)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	transcript, err := json.Marshal(c.Transcript)
	if err != nil {
		return fmt.Errorf("failed to encode transcript: %w", err)
	}

	query := `
		UPSERT INTO interview_sessions (
			session_id, conversation_id, end_reason, overall_score, summary, transcript,
			message_count, user_message_count, live_seconds, started_at, ended_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = r.db.Exec(ctx, query,
		c.SessionID,
		nullString(c.ConversationID),
		string(c.Reason),
		c.Summary.OverallScore,
		summary,
		transcript,
		len(c.Transcript),
		c.UserMessageCount(),
		int64(c.LiveDuration/time.Second),
		nullTime(c.StartedAt),
		c.EndedAt,
	)
	if err != nil {
		return errors.DatabaseError(fmt.Errorf("failed to save interview: %w", err))
	}
	return nil
}

// HandleCompletion persists every terminated session
func (r *InterviewRepository) HandleCompletion(ctx context.Context, c *domain.Completion) error {
	return r.Save(ctx, c)
}

// GetByID loads a completed session
func (r *InterviewRepository) GetByID(ctx context.Context, sessionID uuid.UUID) (*domain.Completion, error) {
	query := `
		SELECT session_id, conversation_id, end_reason, summary, transcript,
		       live_seconds, started_at, ended_at
		FROM interview_sessions
		WHERE session_id = $1
	`

	c, err := scanCompletion(r.db.QueryRow(ctx, query, sessionID))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.SessionNotFoundError()
	}
	if err != nil {
		return nil, errors.DatabaseError(fmt.Errorf("failed to get interview: %w", err))
	}
	return c, nil
}

// ListRecent returns ended sessions, newest first
func (r *InterviewRepository) ListRecent(ctx context.Context, limit, offset int) ([]*domain.Completion, error) {
	query := `
		SELECT session_id, conversation_id, end_reason, summary, transcript,
		       live_seconds, started_at, ended_at
		FROM interview_sessions
		ORDER BY ended_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, errors.DatabaseError(fmt.Errorf("failed to list interviews: %w", err))
	}
	defer rows.Close()

	var out []*domain.Completion
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, errors.DatabaseError(fmt.Errorf("failed to scan interview: %w", err))
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DatabaseError(err)
	}
	return out, nil
}

func scanCompletion(row pgx.Row) (*domain.Completion, error) {
	var (
		c              domain.Completion
		conversationID *string
		reason         string
		summary        []byte
		transcript     []byte
		liveSeconds    int64
		startedAt      *time.Time
	)

	if err := row.Scan(&c.SessionID, &conversationID, &reason, &summary, &transcript,
		&liveSeconds, &startedAt, &c.EndedAt); err != nil {
		return nil, err
	}

	if conversationID != nil {
		c.ConversationID = *conversationID
	}
	if startedAt != nil {
		c.StartedAt = *startedAt
	}
	c.Reason = domain.EndReason(reason)
	c.LiveDuration = time.Duration(liveSeconds) * time.Second

	if err := json.Unmarshal(summary, &c.Summary); err != nil {
		return nil, fmt.Errorf("failed to decode summary: %w", err)
	}
	if err := json.Unmarshal(transcript, &c.Transcript); err != nil {
		return nil, fmt.Errorf("failed to decode transcript: %w", err)
	}
	return &c, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
