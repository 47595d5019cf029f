// Package transport defines the boundary to the real-time audio/video
// transport the candidate joins.
package transport

import (
	"context"

	"interviewroom-backend/internal/domain"
)

// Transport is one call handle. A handle is used for a single join attempt
// and discarded after Destroy.
type Transport interface {
	// Join connects to the room at url with the initial media flags and
	// returns the local participant identity once the join is acknowledged.
	Join(ctx context.Context, url string, flags domain.MediaFlags) (localParticipantID string, err error)
	Leave(ctx context.Context) error
	// Destroy releases the handle. It is idempotent and closes Events.
	Destroy() error
	SetLocalAudio(on bool) error
	SetLocalVideo(on bool) error
	// Events delivers inbound notifications in arrival order.
	Events() <-chan domain.TransportEvent
}

// Factory creates a fresh transport handle per join attempt
type Factory func() Transport
