package cockroach

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interviewroom-backend/internal/domain"
	"interviewroom-backend/pkg/errors"
)

type execCall struct {
	sql  string
	args []any
}

// fakeDB records statements and answers QueryRow with row
type fakeDB struct {
	execs   []execCall
	execErr error
	row     pgx.Row
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("INSERT 0 1"), f.execErr
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return f.row
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, stderrors.New("not implemented")
}

type rowFunc func(dest ...any) error

func (f rowFunc) Scan(dest ...any) error { return f(dest...) }

func sampleCompletion() *domain.Completion {
	return &domain.Completion{
		SessionID:      uuid.New(),
		ConversationID: "c123",
		Reason:         domain.EndReasonBudgetExceeded,
		Transcript: []domain.TranscriptMessage{
			{ID: "a", Seq: 1, Speaker: domain.SpeakerInterviewer, Text: "Hi"},
			{ID: "b", Seq: 2, Speaker: domain.SpeakerUser, Text: "Hello"},
		},
		Summary:      domain.EvaluationSummary{OverallScore: 61.2, Feedback: []string{"ok"}},
		LiveDuration: 90*time.Second + 400*time.Millisecond,
		EndedAt:      time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
	}
}

func TestSave(t *testing.T) {
	db := &fakeDB{}
	repo := NewInterviewRepository(db)
	c := sampleCompletion()

	require.NoError(t, repo.HandleCompletion(context.Background(), c))
	require.Len(t, db.execs, 1)

	call := db.execs[0]
	assert.True(t, strings.Contains(call.sql, "UPSERT INTO interview_sessions"))
	assert.Equal(t, c.SessionID, call.args[0])
	assert.Equal(t, "c123", *call.args[1].(*string))
	assert.Equal(t, "budget_exceeded", call.args[2])
	assert.Equal(t, 61.2, call.args[3])
	assert.Equal(t, 2, call.args[6])
	assert.Equal(t, 1, call.args[7])
	assert.Equal(t, int64(90), call.args[8])
	assert.Nil(t, call.args[9].(*time.Time))

	var transcript []domain.TranscriptMessage
	require.NoError(t, json.Unmarshal(call.args[5].([]byte), &transcript))
	assert.Equal(t, c.Transcript, transcript)
}

func TestSave_DatabaseError(t *testing.T) {
	db := &fakeDB{execErr: stderrors.New("connection reset")}
	err := NewInterviewRepository(db).Save(context.Background(), sampleCompletion())
	assert.True(t, errors.Is(err, errors.ErrCodeDatabase))
}

func TestGetByID_NotFound(t *testing.T) {
	db := &fakeDB{row: rowFunc(func(dest ...any) error { return pgx.ErrNoRows })}
	_, err := NewInterviewRepository(db).GetByID(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, errors.ErrCodeSessionNotFound))
}

func TestGetByID_DecodesRow(t *testing.T) {
	want := sampleCompletion()
	summary, _ := json.Marshal(want.Summary)
	transcript, _ := json.Marshal(want.Transcript)
	conversationID := want.ConversationID

	db := &fakeDB{row: rowFunc(func(dest ...any) error {
		*dest[0].(*uuid.UUID) = want.SessionID
		*dest[1].(**string) = &conversationID
		*dest[2].(*string) = string(want.Reason)
		*dest[3].(*[]byte) = summary
		*dest[4].(*[]byte) = transcript
		*dest[5].(*int64) = 90
		*dest[6].(**time.Time) = nil
		*dest[7].(*time.Time) = want.EndedAt
		return nil
	})}

	got, err := NewInterviewRepository(db).GetByID(context.Background(), want.SessionID)
	require.NoError(t, err)
	assert.Equal(t, want.SessionID, got.SessionID)
	assert.Equal(t, "c123", got.ConversationID)
	assert.Equal(t, domain.EndReasonBudgetExceeded, got.Reason)
	assert.Equal(t, 90*time.Second, got.LiveDuration)
	assert.Equal(t, want.Summary, got.Summary)
	assert.Equal(t, want.Transcript, got.Transcript)
	assert.True(t, got.StartedAt.IsZero())
}

func TestEnsureSchema(t *testing.T) {
	db := &fakeDB{}
	require.NoError(t, NewInterviewRepository(db).EnsureSchema(context.Background()))
	require.Len(t, db.execs, 1)
	assert.Contains(t, db.execs[0].sql, "CREATE TABLE IF NOT EXISTS interview_sessions")
}
