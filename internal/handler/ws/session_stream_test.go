package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interviewroom-backend/internal/domain"
	"interviewroom-backend/internal/service/clock"
	"interviewroom-backend/internal/service/evaluation"
	"interviewroom-backend/internal/service/navigator"
	"interviewroom-backend/internal/service/session"
	"interviewroom-backend/internal/transport"
)

type noopConversations struct{}

func (noopConversations) Create(ctx context.Context, input domain.SessionInput) (*domain.ConversationResource, error) {
	return &domain.ConversationResource{ID: "c1", URL: "https://rooms.example/c1"}, nil
}

func (noopConversations) Destroy(ctx context.Context, resourceID string) {}

type healthy bool

func (h healthy) Healthy() bool { return bool(h) }

func newStreamServer(t *testing.T, maxConns int) (*httptest.Server, *session.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	manager := session.NewManager(session.Config{
		Budget:           time.Minute,
		OperationTimeout: time.Second,
	}, session.Deps{
		Conversations: noopConversations{},
		Transports:    func() transport.Transport { return nil },
		Evaluator:     evaluation.NewEngine(),
		ClockStore:    clock.NewMemoryStore(),
	})

	stream := NewSessionStream(manager, healthy(true), nil, maxConns, nil)
	r := gin.New()
	r.GET("/ws/interviews/:id", stream.ServeWS)

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		manager.EndAll(context.Background())
	})
	return srv, manager
}

func wsURL(srv *httptest.Server, id string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/interviews/" + id
}

func readView(t *testing.T, conn *websocket.Conn) navigator.View {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var view navigator.View
	require.NoError(t, conn.ReadJSON(&view))
	return view
}

func TestSessionStream_PushesViews(t *testing.T) {
	srv, manager := newStreamServer(t, 4)
	ctrl := manager.Create()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, ctrl.ID().String()), nil)
	require.NoError(t, err)
	defer conn.Close()

	first := readView(t, conn)
	assert.Equal(t, navigator.ScreenIntro, first.Screen)
	assert.Equal(t, ctrl.ID().String(), first.SessionID)

	_, err = ctrl.End(context.Background(), domain.EndReasonHangUp)
	require.NoError(t, err)

	for {
		view := readView(t, conn)
		if view.Screen == navigator.ScreenFinal {
			require.NotNil(t, view.Completion)
			assert.Zero(t, view.Completion.Summary.OverallScore)
			break
		}
	}
}

func TestSessionStream_ClosesWhenSessionRemoved(t *testing.T) {
	srv, manager := newStreamServer(t, 4)
	ctrl := manager.Create()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, ctrl.ID().String()), nil)
	require.NoError(t, err)
	defer conn.Close()
	readView(t, conn)

	require.NoError(t, manager.Remove(context.Background(), ctrl.ID()))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), err.Error())
			break
		}
	}
}

func TestSessionStream_UnknownSession(t *testing.T) {
	srv, _ := newStreamServer(t, 4)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, uuid.NewString()), nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(wsURL(srv, "nope"), nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSessionStream_RejectsOverCapacity(t *testing.T) {
	srv, manager := newStreamServer(t, 1)
	ctrl := manager.Create()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, ctrl.ID().String()), nil)
	require.NoError(t, err)
	readView(t, conn)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, ctrl.ID().String()), nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	conn.Close()
	require.Eventually(t, func() bool {
		c, _, err := websocket.DefaultDialer.Dial(wsURL(srv, ctrl.ID().String()), nil)
		if err != nil {
			return false
		}
		c.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)
}
