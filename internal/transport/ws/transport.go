// Package ws implements the call transport over a websocket event relay.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"interviewroom-backend/internal/domain"
	"interviewroom-backend/internal/transport"
	"interviewroom-backend/pkg/constants"
	"interviewroom-backend/pkg/logger"
)

// Frame types sent to the relay
const (
	FrameJoin     = "join"
	FrameLeave    = "leave"
	FrameSetAudio = "set-audio"
	FrameSetVideo = "set-video"

	// FrameJoined acknowledges a join and carries the local participant id
	FrameJoined = "joined"
)

// ErrNotJoined is returned by operations that need a live connection
var ErrNotJoined = errors.New("transport: not joined")

// ErrDestroyed is returned after Destroy
var ErrDestroyed = errors.New("transport: destroyed")

// command is an outbound frame
type command struct {
	Type    string `json:"type"`
	URL     string `json:"url,omitempty"`
	Audio   *bool  `json:"audio,omitempty"`
	Video   *bool  `json:"video,omitempty"`
	Enabled *bool  `json:"enabled,omitempty"`
}

// inbound is an inbound frame: a transport event or a join acknowledgement
type inbound struct {
	domain.TransportEvent
}

// Transport is a websocket-backed transport handle
type Transport struct {
	eventsURL string
	dialer    *websocket.Dialer
	header    http.Header

	mu        sync.Mutex
	conn      *websocket.Conn
	destroyed bool
	joinAck   chan inbound

	writeMu     sync.Mutex
	events      chan domain.TransportEvent
	closeEvents sync.Once
	done        chan struct{}
}

// New creates a handle that relays through eventsURL
func New(eventsURL string, header http.Header) *Transport {
	return &Transport{
		eventsURL: eventsURL,
		dialer: &websocket.Dialer{
			HandshakeTimeout: constants.WebSocketWriteWait,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
		header: header,
		events: make(chan domain.TransportEvent, constants.TransportEventBuffer),
		done:   make(chan struct{}),
	}
}

// NewFactory returns a factory producing handles for eventsURL
func NewFactory(eventsURL string) transport.Factory {
	return func() transport.Transport {
		return New(eventsURL, nil)
	}
}

// Events delivers inbound notifications in arrival order
func (t *Transport) Events() <-chan domain.TransportEvent {
	return t.events
}

// Join dials the relay, asks it to join url and waits for the acknowledgement
func (t *Transport) Join(ctx context.Context, url string, flags domain.MediaFlags) (string, error) {
	t.mu.Lock()
	if t.destroyed {
		t.mu.Unlock()
		return "", ErrDestroyed
	}
	if t.conn != nil {
		t.mu.Unlock()
		return "", fmt.Errorf("transport: already joined")
	}
	t.mu.Unlock()

	conn, _, err := t.dialer.DialContext(ctx, t.eventsURL, t.header)
	if err != nil {
		return "", fmt.Errorf("transport: dial relay: %w", err)
	}

	ack := make(chan inbound, 1)
	t.mu.Lock()
	if t.destroyed {
		t.mu.Unlock()
		_ = conn.Close()
		return "", ErrDestroyed
	}
	t.conn = conn
	t.joinAck = ack
	t.mu.Unlock()

	go t.readPump(conn)
	go t.pingLoop(conn)

	audio, video := flags.AudioOn, flags.VideoOn
	if err := t.write(command{Type: FrameJoin, URL: url, Audio: &audio, Video: &video}); err != nil {
		return "", fmt.Errorf("transport: send join: %w", err)
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-t.done:
		return "", fmt.Errorf("transport: connection closed before join completed")
	case msg := <-ack:
		if msg.Type == domain.EventTransportError {
			return "", fmt.Errorf("transport: join rejected: %s", msg.Error)
		}
		return msg.ParticipantID, nil
	}
}

// Leave asks the relay to leave the room
func (t *Transport) Leave(ctx context.Context) error {
	return t.write(command{Type: FrameLeave})
}

// SetLocalAudio toggles the local microphone
func (t *Transport) SetLocalAudio(on bool) error {
	return t.write(command{Type: FrameSetAudio, Enabled: &on})
}

// SetLocalVideo toggles the local camera
func (t *Transport) SetLocalVideo(on bool) error {
	return t.write(command{Type: FrameSetVideo, Enabled: &on})
}

// Destroy closes the connection and the event channel. It is idempotent.
func (t *Transport) Destroy() error {
	t.mu.Lock()
	if t.destroyed {
		t.mu.Unlock()
		return nil
	}
	t.destroyed = true
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		t.shutdown()
		return nil
	}

	t.writeMu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteWait))
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	t.writeMu.Unlock()

	// readPump observes the close and shuts the handle down.
	return conn.Close()
}

func (t *Transport) write(cmd command) error {
	t.mu.Lock()
	conn := t.conn
	destroyed := t.destroyed
	t.mu.Unlock()

	if destroyed {
		return ErrDestroyed
	}
	if conn == nil {
		return ErrNotJoined
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("transport: marshal %s: %w", cmd.Type, err)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// readPump forwards relay frames until the connection ends
func (t *Transport) readPump(conn *websocket.Conn) {
	defer t.shutdown()

	_ = conn.SetReadDeadline(time.Now().Add(2 * constants.WebSocketPingInterval))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * constants.WebSocketPingInterval))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !t.isDestroyed() {
				logger.Warn("Transport connection lost", zap.Error(err))
				t.emit(domain.TransportEvent{
					Type:       domain.EventTransportError,
					Error:      err.Error(),
					ReceivedAt: time.Now(),
				})
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(2 * constants.WebSocketPingInterval))

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Debug("Ignoring malformed transport frame", zap.Error(err))
			continue
		}

		if t.deliverAck(msg) {
			continue
		}

		if msg.ReceivedAt.IsZero() {
			msg.ReceivedAt = time.Now()
		}
		t.emit(msg.TransportEvent)
	}
}

// deliverAck hands the first joined or error frame to a pending Join
func (t *Transport) deliverAck(msg inbound) bool {
	if msg.Type != FrameJoined && msg.Type != domain.EventTransportError {
		return false
	}
	t.mu.Lock()
	ack := t.joinAck
	if ack != nil {
		t.joinAck = nil
	}
	t.mu.Unlock()

	if ack == nil {
		return msg.Type == FrameJoined
	}
	ack <- msg
	return true
}

func (t *Transport) emit(evt domain.TransportEvent) {
	select {
	case t.events <- evt:
	case <-t.done:
	}
}

func (t *Transport) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(constants.WebSocketPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			t.writeMu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			t.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (t *Transport) isDestroyed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.destroyed
}

func (t *Transport) shutdown() {
	t.closeEvents.Do(func() {
		close(t.done)
		close(t.events)
	})
}
