package evaluation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"interviewroom-backend/internal/domain"
)

func userLine(text string) domain.TranscriptMessage {
	return domain.TranscriptMessage{Speaker: domain.SpeakerUser, Text: text, Timestamp: time.Unix(0, 0)}
}

func interviewerLine(text string) domain.TranscriptMessage {
	return domain.TranscriptMessage{Speaker: domain.SpeakerInterviewer, Text: text, Timestamp: time.Unix(0, 0)}
}

func TestEvaluate_EmptyTranscript(t *testing.T) {
	summary := NewEngine().Evaluate(nil)

	assert.Zero(t, summary.TechnicalKnowledge)
	assert.Zero(t, summary.CommunicationSkills)
	assert.Zero(t, summary.Confidence)
	assert.Zero(t, summary.ProblemSolving)
	assert.Zero(t, summary.OverallScore)
	assert.NotEmpty(t, summary.Feedback)
}

func TestEvaluate_InterviewerOnlyScoresZero(t *testing.T) {
	summary := NewEngine().Evaluate([]domain.TranscriptMessage{
		interviewerLine("Tell me about your database schema design."),
		interviewerLine("Are you still there?"),
	})

	assert.Zero(t, summary.OverallScore)
}

func TestEvaluate_ScoresBoundedAndOverallIsMean(t *testing.T) {
	transcript := []domain.TranscriptMessage{
		interviewerLine("Describe a system you built."),
		userLine("First I designed the database schema, then I added a cache because query latency was the bottleneck."),
		interviewerLine("How did you measure it?"),
		userLine("We measured throughput with a load test, so the result showed the api server scaled. The tradeoff was memory."),
		userLine("Instead of a single queue we used a pipeline of microservice workers deployed with docker and kubernetes."),
	}

	summary := NewEngine().Evaluate(transcript)

	for _, score := range []float64{
		summary.TechnicalKnowledge, summary.CommunicationSkills,
		summary.Confidence, summary.ProblemSolving, summary.OverallScore,
	} {
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 100.0)
	}

	mean := (summary.TechnicalKnowledge + summary.CommunicationSkills + summary.Confidence + summary.ProblemSolving) / 4
	assert.InDelta(t, mean, summary.OverallScore, 0.051)
	assert.Greater(t, summary.TechnicalKnowledge, 0.0)
	assert.NotEmpty(t, summary.Feedback)
}

func TestEvaluate_Deterministic(t *testing.T) {
	transcript := []domain.TranscriptMessage{
		userLine("Um, I think maybe the api was slow, not sure."),
		userLine("Probably the database index."),
	}

	engine := NewEngine()
	first := engine.Evaluate(transcript)
	second := engine.Evaluate(transcript)

	assert.Equal(t, first, second)
}

func TestEvaluate_HedgingLowersConfidence(t *testing.T) {
	engine := NewEngine()

	direct := engine.Evaluate([]domain.TranscriptMessage{
		userLine("The database index fixed the latency."),
		userLine("I rewrote the cache layer."),
	})
	hedged := engine.Evaluate([]domain.TranscriptMessage{
		userLine("Um, I think maybe the database index fixed the latency."),
		userLine("I guess I probably rewrote the cache layer, not sure."),
	})

	assert.Less(t, hedged.Confidence, direct.Confidence)
}
