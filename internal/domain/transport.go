package domain

import (
	"encoding/json"
	"time"
)

// TransportEventType enumerates inbound real-time transport notifications
type TransportEventType string

const (
	EventParticipantJoined TransportEventType = "participant-joined"
	EventParticipantLeft   TransportEventType = "participant-left"
	EventAppMessage        TransportEventType = "app-message"
	EventTranscription     TransportEventType = "transcription"
	EventTransportError    TransportEventType = "error"
)

// TransportEvent is one inbound notification from the transport.
// AppMessage events carry a structured payload in Data; transcription
// events carry plain Text.
type TransportEvent struct {
	Type          TransportEventType `json:"type"`
	ParticipantID string             `json:"participant_id,omitempty"`
	Local         bool               `json:"local,omitempty"`
	Data          json.RawMessage    `json:"data,omitempty"`
	Text          string             `json:"text,omitempty"`
	Error         string             `json:"error,omitempty"`
	ReceivedAt    time.Time          `json:"received_at"`
}

// MediaFlags are the local media states requested on join
type MediaFlags struct {
	AudioOn bool `json:"audio"`
	VideoOn bool `json:"video"`
}
