package evaluation

import (
	"math"
	"strings"
	"unicode"

	"interviewroom-backend/internal/domain"
)

// Engine scores a finalized transcript. It keeps no state, so one Engine can
// serve every session.
type Engine struct{}

// NewEngine creates a new evaluation engine
func NewEngine() *Engine {
	return &Engine{}
}

var technicalTerms = []string{
	"api", "algorithm", "architecture", "backend", "cache", "cloud", "complexity",
	"concurrency", "container", "database", "debug", "deploy", "docker", "frontend",
	"framework", "index", "kubernetes", "latency", "microservice", "performance",
	"pipeline", "query", "react", "refactor", "scalability", "schema", "security",
	"server", "sql", "test", "throughput", "typescript", "golang", "python", "java",
	"node", "queue", "protocol", "network", "memory",
}

var reasoningMarkers = []string{
	"because", "therefore", "first", "then", "finally", "approach", "tradeoff",
	"trade-off", "instead", "solution", "step", "so", "which", "measure", "result",
}

var hedgePhrases = []string{
	"i think", "maybe", "not sure", "i guess", "probably", "kind of", "sort of",
	"um", "uh", "i don't know",
}

// transcriptStats holds the counts every sub-score is derived from
type transcriptStats struct {
	responses     int
	words         int
	distinctWords int
	techHits      int
	distinctTech  int
	markers       int
	hedges        int
}

// Evaluate derives the summary from a transcript snapshot. Identical input
// yields identical output and an empty transcript yields all zeros.
func (e *Engine) Evaluate(transcript []domain.TranscriptMessage) domain.EvaluationSummary {
	stats := collectStats(transcript)
	if stats.responses == 0 || stats.words == 0 {
		return domain.EvaluationSummary{
			Feedback: []string{"No candidate responses were captured, so no scores could be computed."},
		}
	}

	avgWords := float64(stats.words) / float64(stats.responses)
	participation := ratio(float64(stats.responses), 8)
	diversity := float64(stats.distinctWords) / float64(stats.words)

	technical := clamp(70*ratio(float64(stats.techHits)/float64(stats.responses), 3) +
		30*ratio(float64(stats.distinctTech), 10))
	communication := clamp(40*ratio(avgWords, 25) + 30*participation + 30*diversity)
	confidence := clamp(70*(1-ratio(float64(stats.hedges)/float64(stats.responses), 2)) + 30*participation)
	problemSolving := clamp(60*ratio(float64(stats.markers), 10) + 40*ratio(avgWords, 40))

	summary := domain.EvaluationSummary{
		TechnicalKnowledge:  round1(technical),
		CommunicationSkills: round1(communication),
		Confidence:          round1(confidence),
		ProblemSolving:      round1(problemSolving),
	}
	summary.OverallScore = round1((summary.TechnicalKnowledge + summary.CommunicationSkills +
		summary.Confidence + summary.ProblemSolving) / 4)
	summary.Feedback = feedbackFor(summary, stats, avgWords)
	return summary
}

func collectStats(transcript []domain.TranscriptMessage) transcriptStats {
	var stats transcriptStats
	seen := make(map[string]struct{})
	techSeen := make(map[string]struct{})

	for _, msg := range transcript {
		if msg.Speaker != domain.SpeakerUser {
			continue
		}
		text := strings.ToLower(msg.Text)
		words := tokenize(text)
		if len(words) == 0 {
			continue
		}
		stats.responses++
		stats.words += len(words)
		for _, w := range words {
			seen[w] = struct{}{}
		}
		for _, term := range technicalTerms {
			if n := countWord(words, term); n > 0 {
				stats.techHits += n
				techSeen[term] = struct{}{}
			}
		}
		for _, marker := range reasoningMarkers {
			stats.markers += countWord(words, marker)
		}
		padded := " " + strings.Join(words, " ") + " "
		for _, phrase := range hedgePhrases {
			stats.hedges += strings.Count(padded, " "+phrase+" ")
		}
	}

	stats.distinctWords = len(seen)
	stats.distinctTech = len(techSeen)
	return stats
}

func feedbackFor(s domain.EvaluationSummary, stats transcriptStats, avgWords float64) []string {
	var out []string
	if s.TechnicalKnowledge >= 70 {
		out = append(out, "Strong use of technical vocabulary across answers.")
	} else if s.TechnicalKnowledge < 40 {
		out = append(out, "Ground answers in concrete technologies and implementation details.")
	}
	if avgWords < 10 {
		out = append(out, "Answers were brief; expand with examples from your projects.")
	} else if s.CommunicationSkills >= 70 {
		out = append(out, "Clear, well-developed responses.")
	}
	if stats.hedges > stats.responses {
		out = append(out, "Frequent hedging detected; state conclusions more directly.")
	}
	if s.ProblemSolving < 40 {
		out = append(out, "Walk through your reasoning step by step when describing solutions.")
	}
	if len(out) == 0 {
		out = append(out, "Solid overall performance.")
	}
	return out
}

func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '\''
	})
}

func countWord(words []string, term string) int {
	n := 0
	for _, w := range words {
		if w == term {
			n++
		}
	}
	return n
}

func ratio(v, target float64) float64 {
	if target <= 0 {
		return 0
	}
	return math.Min(v/target, 1)
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
