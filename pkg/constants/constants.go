// Package constants defines application-wide constants for timeouts, limits, and durations.
package constants

import "time"

// Time-related constants
const (
	// DefaultTimeout bounds a single remote call (provisioning, join, leave, destroy)
	DefaultTimeout = 30 * time.Second

	// WebSocketPingInterval is the interval for WebSocket ping/pong
	WebSocketPingInterval = 30 * time.Second

	// WebSocketWriteWait bounds a single websocket frame write
	WebSocketWriteWait = 10 * time.Second

	// GracefulShutdownTimeout is the timeout for graceful server shutdown
	GracefulShutdownTimeout = 30 * time.Second
)

// Interview session constants
const (
	// DefaultSessionBudget is the wall-clock limit of one live interview
	DefaultSessionBudget = 30 * time.Minute

	// DefaultMaxCallDuration is the hard cap requested from the conversation service
	DefaultMaxCallDuration = 30 * time.Minute

	// DefaultParticipantLeftTimeout is how long the remote room outlives a departed candidate
	DefaultParticipantLeftTimeout = 60 * time.Second

	// DefaultAudioGraceDelay delays unmuting the candidate after the interviewer joins
	DefaultAudioGraceDelay = 2 * time.Second

	// ClockTickInterval is the budget polling cadence
	ClockTickInterval = 1 * time.Second

	// ClockStateTTLFactor multiplies the budget to get the persisted start-instant TTL
	ClockStateTTLFactor = 2

	// ProviderHealthCheckInterval is how often the conversation service is probed
	ProviderHealthCheckInterval = 30 * time.Second
)

// Queue sizes
const (
	// SessionInboxSize is the capacity of a controller's inbound event queue
	SessionInboxSize = 128

	// TransportEventBuffer is the capacity of a transport's outbound event channel
	TransportEventBuffer = 256

	// SubscriberBuffer is the capacity of a state subscription channel
	SubscriberBuffer = 16

	// MaxStreamConnections caps concurrent state stream websockets
	MaxStreamConnections = 1000
)

// API limits
const (
	// StartRateLimit is how many sessions one client IP may start per StartRateWindow
	StartRateLimit = 10

	// StartRateWindow is the session start rate limit window
	StartRateWindow = time.Hour

	// DefaultArchivePageSize is the number of archived sessions listed per request
	DefaultArchivePageSize = 20

	// MaxArchivePageSize caps the archive listing
	MaxArchivePageSize = 100
)
