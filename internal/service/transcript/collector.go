package transcript

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"interviewroom-backend/internal/domain"
	"interviewroom-backend/pkg/logger"
)

// appMessage covers the structured speech events the conversation service
// broadcasts over the transport's app-message channel.
type appMessage struct {
	MessageType string `json:"message_type"`
	EventType   string `json:"event_type"`
	Speech      string `json:"speech"`
	Properties  struct {
		Speech string `json:"speech"`
		Text   string `json:"text"`
		Role   string `json:"role"`
	} `json:"properties"`
}

// Collector turns transport events into the append-only session transcript.
// A single goroutine writes; any goroutine may read a snapshot.
type Collector struct {
	mu               sync.RWMutex
	localParticipant string
	messages         []domain.TranscriptMessage
	seq              uint64
	now              func() time.Time
}

// NewCollector creates an empty collector
func NewCollector() *Collector {
	return &Collector{
		messages: make([]domain.TranscriptMessage, 0, 64),
		now:      time.Now,
	}
}

// SetLocalParticipant records which participant identity is the candidate
func (c *Collector) SetLocalParticipant(id string) {
	c.mu.Lock()
	c.localParticipant = id
	c.mu.Unlock()
}

// OnTransportEvent normalizes evt and appends it. Events of other types and
// events without text are ignored; ok reports whether a message was appended.
func (c *Collector) OnTransportEvent(evt domain.TransportEvent) (domain.TranscriptMessage, bool) {
	var (
		text   string
		origin domain.Origin
	)

	switch evt.Type {
	case domain.EventAppMessage:
		text = speechFromAppMessage(evt.Data)
		origin = domain.OriginApplicationEvent
	case domain.EventTranscription:
		text = strings.TrimSpace(evt.Text)
		origin = domain.OriginLiveTranscript
	default:
		return domain.TranscriptMessage{}, false
	}
	if text == "" {
		return domain.TranscriptMessage{}, false
	}

	ts := evt.ReceivedAt
	if ts.IsZero() {
		ts = c.now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	speaker := domain.SpeakerInterviewer
	if evt.Local || (c.localParticipant != "" && evt.ParticipantID == c.localParticipant) {
		speaker = domain.SpeakerUser
	}

	c.seq++
	msg := domain.TranscriptMessage{
		ID:        uuid.NewString(),
		Seq:       c.seq,
		Timestamp: ts,
		Speaker:   speaker,
		Text:      text,
		Origin:    origin,
	}
	c.messages = append(c.messages, msg)
	return msg, true
}

// Snapshot returns a copy of the log in arrival order
func (c *Collector) Snapshot() []domain.TranscriptMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.TranscriptMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages collected so far
func (c *Collector) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// Reset discards the log for a fresh attempt. Snapshots taken earlier are unaffected.
func (c *Collector) Reset() {
	c.mu.Lock()
	c.messages = make([]domain.TranscriptMessage, 0, 64)
	c.localParticipant = ""
	c.mu.Unlock()
}

func speechFromAppMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var msg appMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		logger.Debug("Ignoring malformed app message", zap.Error(err))
		return ""
	}
	for _, candidate := range []string{msg.Properties.Speech, msg.Speech, msg.Properties.Text} {
		if s := strings.TrimSpace(candidate); s != "" {
			return s
		}
	}
	return ""
}
