package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"interviewroom-backend/internal/domain"
	"interviewroom-backend/pkg/errors"
	"interviewroom-backend/pkg/logger"
)

// Manager tracks the live controllers of this process
type Manager struct {
	cfg  Config
	deps Deps

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Controller
}

// NewManager creates an empty manager
func NewManager(cfg Config, deps Deps) *Manager {
	return &Manager{
		cfg:      cfg,
		deps:     deps,
		sessions: make(map[uuid.UUID]*Controller),
	}
}

// Create registers a new idle session
func (m *Manager) Create() *Controller {
	return m.Open(uuid.New())
}

// Open returns the controller for id, creating an idle one when none is
// registered
func (m *Manager) Open(id uuid.UUID) *Controller {
	return m.open(id, false)
}

// Recover reopens a session this process does not know but whose clock start
// is still persisted, as after a restart against a shared store. The reopened
// session is idle; its first call resumes the persisted clock so the budget
// keeps counting from the original join.
func (m *Manager) Recover(ctx context.Context, id uuid.UUID) (*Controller, error) {
	if m.deps.ClockStore == nil {
		return nil, errors.SessionNotFoundError()
	}

	_, ok, err := m.deps.ClockStore.LoadStart(ctx, id.String())
	if err != nil {
		logger.Warn("Failed to look up persisted session clock",
			zap.String("session_id", id.String()),
			zap.Error(err))
		return nil, errors.ServiceUnavailableError("session store unavailable")
	}
	if !ok {
		return nil, errors.SessionNotFoundError()
	}

	c := m.open(id, true)
	logger.Info("Recovered session from persisted clock", zap.String("session_id", id.String()))
	return c, nil
}

func (m *Manager) open(id uuid.UUID, recovered bool) *Controller {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.sessions[id]; ok {
		return c
	}
	c := newController(id, m.cfg, m.deps, recovered)
	m.sessions[id] = c
	m.deps.Metrics.SetActiveSessions(len(m.sessions))
	return c
}

// Lookup returns a registered session, recovering it from the clock store
// when this process has not seen it
func (m *Manager) Lookup(ctx context.Context, id uuid.UUID) (*Controller, error) {
	if c, err := m.Get(id); err == nil {
		return c, nil
	}
	return m.Recover(ctx, id)
}

// Get returns a registered session
func (m *Manager) Get(id uuid.UUID) (*Controller, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.sessions[id]
	if !ok {
		return nil, errors.SessionNotFoundError()
	}
	return c, nil
}

// Remove ends and unregisters a session
func (m *Manager) Remove(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	c, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	count := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return errors.SessionNotFoundError()
	}
	m.deps.Metrics.SetActiveSessions(count)

	_, err := c.End(ctx, domain.EndReasonHangUp)
	c.Close()
	return err
}

// Count returns the number of registered sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// EndAll ends every session concurrently and closes the controllers. Used on
// shutdown.
func (m *Manager) EndAll(ctx context.Context) {
	m.mu.Lock()
	sessions := make([]*Controller, 0, len(m.sessions))
	for id, c := range m.sessions {
		sessions = append(sessions, c)
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	m.deps.Metrics.SetActiveSessions(0)

	var wg sync.WaitGroup
	for _, c := range sessions {
		wg.Add(1)
		go func(c *Controller) {
			defer wg.Done()
			if _, err := c.End(ctx, domain.EndReasonShutdown); err != nil {
				logger.Warn("Failed to end session on shutdown",
					zap.String("session_id", c.ID().String()),
					zap.Error(err))
			}
			c.Close()
		}(c)
	}
	wg.Wait()

	logger.Info("All sessions ended", zap.Int("count", len(sessions)))
}
