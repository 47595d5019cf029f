// Package tavus is a focused client for the conversational video service
// that hosts the AI interviewer.
package tavus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://tavusapi.com"

// ErrMissingAPIKey is returned before any network call when no key is configured
var ErrMissingAPIKey = errors.New("tavus: api key is not configured")

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
	Message    string
}

func (e *HTTPStatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Body
	}
	return fmt.Sprintf("tavus: unexpected status %d from %s: %s", e.StatusCode, e.URL, msg)
}

// HTTPStatusCode returns the upstream status
func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Persona is the subset of the persona resource used for validation
type Persona struct {
	PersonaID        string `json:"persona_id"`
	PersonaName      string `json:"persona_name"`
	DefaultReplicaID string `json:"default_replica_id"`
}

// ConversationProperties are the per-conversation limits
type ConversationProperties struct {
	MaxCallDuration        int  `json:"max_call_duration"`
	ParticipantLeftTimeout int  `json:"participant_left_timeout"`
	EnableRecording        bool `json:"enable_recording"`
}

// CreateConversationRequest is the request body for conversation creation
type CreateConversationRequest struct {
	PersonaID             string                 `json:"persona_id"`
	ReplicaID             string                 `json:"replica_id"`
	ConversationName      string                 `json:"conversation_name,omitempty"`
	CustomGreeting        string                 `json:"custom_greeting,omitempty"`
	ConversationalContext string                 `json:"conversational_context,omitempty"`
	Properties            ConversationProperties `json:"properties"`
}

// Conversation is the created conversation resource
type Conversation struct {
	ConversationID   string `json:"conversation_id"`
	ConversationName string `json:"conversation_name"`
	ConversationURL  string `json:"conversation_url"`
	Status           string `json:"status"`
	CreatedAt        string `json:"created_at"`
}

// errorBody covers the error shapes the service returns
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Client talks to the conversation service REST API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient overrides the HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a new Client. An empty baseURL selects the public endpoint.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c := &Client{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) endpoint(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return c.baseURL + "/v2/" + strings.Join(escaped, "/")
}

// GetPersona fetches a persona by id
func (c *Client) GetPersona(ctx context.Context, personaID string) (*Persona, error) {
	raw, err := c.do(ctx, http.MethodGet, c.endpoint("personas", personaID), nil)
	if err != nil {
		return nil, err
	}

	var persona Persona
	if err := json.Unmarshal(raw, &persona); err != nil {
		return nil, fmt.Errorf("tavus: decode persona: %w", err)
	}
	return &persona, nil
}

// CreateConversation allocates a new conversation room
func (c *Client) CreateConversation(ctx context.Context, in CreateConversationRequest) (*Conversation, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("tavus: marshal request: %w", err)
	}

	raw, err := c.do(ctx, http.MethodPost, c.endpoint("conversations"), body)
	if err != nil {
		return nil, err
	}

	var conv Conversation
	if err := json.Unmarshal(raw, &conv); err != nil {
		return nil, fmt.Errorf("tavus: decode conversation: %w", err)
	}
	if conv.ConversationID == "" || conv.ConversationURL == "" {
		return nil, errors.New("tavus: conversation response missing id or url")
	}
	return &conv, nil
}

// EndConversation ends a conversation so the room stops billing
func (c *Client) EndConversation(ctx context.Context, conversationID string) error {
	_, err := c.do(ctx, http.MethodPost, c.endpoint("conversations", conversationID, "end"), nil)
	return err
}

func (c *Client) do(ctx context.Context, method, u string, body []byte) ([]byte, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("tavus: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("x-api-key", c.apiKey)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavus: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		statusErr := &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        u,
			Body:       string(buf),
		}
		var eb errorBody
		if json.Unmarshal(buf, &eb) == nil {
			statusErr.Message = eb.Message
			if statusErr.Message == "" {
				statusErr.Message = eb.Error
			}
		}
		return nil, statusErr
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("tavus: read response body: %w", err)
	}
	return buf, nil
}
