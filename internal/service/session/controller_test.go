package session

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interviewroom-backend/internal/domain"
	"interviewroom-backend/internal/service/clock"
	"interviewroom-backend/internal/service/evaluation"
	"interviewroom-backend/internal/transport"
	"interviewroom-backend/pkg/errors"
)

const waitFor = 2 * time.Second

// fakeConversations provisions numbered resources and counts destroys per id
type fakeConversations struct {
	mu        sync.Mutex
	createFn  func(ctx context.Context) (*domain.ConversationResource, error)
	creates   int
	destroyed map[string]int
}

func newFakeConversations() *fakeConversations {
	f := &fakeConversations{destroyed: make(map[string]int)}
	f.createFn = func(ctx context.Context) (*domain.ConversationResource, error) {
		f.mu.Lock()
		n := f.creates
		f.mu.Unlock()
		id := fmt.Sprintf("c%d", n)
		return &domain.ConversationResource{ID: id, URL: "https://rooms.example/" + id}, nil
	}
	return f
}

func (f *fakeConversations) Create(ctx context.Context, input domain.SessionInput) (*domain.ConversationResource, error) {
	f.mu.Lock()
	f.creates++
	fn := f.createFn
	f.mu.Unlock()
	return fn(ctx)
}

func (f *fakeConversations) Destroy(ctx context.Context, resourceID string) {
	f.mu.Lock()
	f.destroyed[resourceID]++
	f.mu.Unlock()
}

func (f *fakeConversations) destroyCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.destroyed[id]
}

func (f *fakeConversations) totalDestroys() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, v := range f.destroyed {
		n += v
	}
	return n
}

// fakeTransport acknowledges joins with a fixed local id
type fakeTransport struct {
	joinErr error

	mu        sync.Mutex
	joinedURL string
	flags     domain.MediaFlags
	audio     []bool
	left      int
	destroyed int
	events    chan domain.TransportEvent
	closeOnce sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{events: make(chan domain.TransportEvent, 64)}
}

func (f *fakeTransport) Join(ctx context.Context, url string, flags domain.MediaFlags) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joinedURL = url
	f.flags = flags
	if f.joinErr != nil {
		return "", f.joinErr
	}
	return "local", nil
}

func (f *fakeTransport) Leave(ctx context.Context) error {
	f.mu.Lock()
	f.left++
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Destroy() error {
	f.mu.Lock()
	f.destroyed++
	f.mu.Unlock()
	f.closeOnce.Do(func() { close(f.events) })
	return nil
}

func (f *fakeTransport) SetLocalAudio(on bool) error {
	f.mu.Lock()
	f.audio = append(f.audio, on)
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) SetLocalVideo(on bool) error { return nil }

func (f *fakeTransport) Events() <-chan domain.TransportEvent { return f.events }

func (f *fakeTransport) emit(evt domain.TransportEvent) {
	f.events <- evt
}

func (f *fakeTransport) destroyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.destroyed
}

func (f *fakeTransport) audioCalls() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.audio...)
}

// transports hands out fakeTransports and remembers them
type transports struct {
	mu      sync.Mutex
	joinErr error
	made    []*fakeTransport
}

func (t *transports) factory() transport.Factory {
	return func() transport.Transport {
		t.mu.Lock()
		defer t.mu.Unlock()
		tr := newFakeTransport()
		tr.joinErr = t.joinErr
		t.made = append(t.made, tr)
		return tr
	}
}

func (t *transports) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.made)
}

func (t *transports) last() *fakeTransport {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.made[len(t.made)-1]
}

// countingEvaluator wraps the real engine and counts calls
type countingEvaluator struct {
	calls  int32
	engine *evaluation.Engine
}

func (e *countingEvaluator) Evaluate(transcript []domain.TranscriptMessage) domain.EvaluationSummary {
	atomic.AddInt32(&e.calls, 1)
	return e.engine.Evaluate(transcript)
}

// countingHandler counts completions
type countingHandler struct {
	mu          sync.Mutex
	completions []*domain.Completion
}

func (h *countingHandler) HandleCompletion(ctx context.Context, c *domain.Completion) error {
	h.mu.Lock()
	h.completions = append(h.completions, c)
	h.mu.Unlock()
	return nil
}

func (h *countingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.completions)
}

type fakeTime struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeTime) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeTime) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

type harness struct {
	c          *Controller
	convs      *fakeConversations
	transports *transports
	evaluator  *countingEvaluator
	handler    *countingHandler
	time       *fakeTime
	store      clock.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithStore(t, clock.NewMemoryStore(), false)
}

// newHarnessWithStore builds a controller over store; recovered marks it as
// reopened after a restart
func newHarnessWithStore(t *testing.T, store clock.Store, recovered bool) *harness {
	t.Helper()
	h := &harness{
		convs:      newFakeConversations(),
		transports: &transports{},
		evaluator:  &countingEvaluator{engine: evaluation.NewEngine()},
		handler:    &countingHandler{},
		time:       &fakeTime{now: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)},
		store:      store,
	}
	h.c = newController(uuid.New(), Config{
		Budget:           30 * time.Minute,
		AudioGraceDelay:  time.Millisecond,
		ClockTick:        0,
		OperationTimeout: time.Second,
	}, Deps{
		Conversations: h.convs,
		Transports:    h.transports.factory(),
		Evaluator:     h.evaluator,
		ClockStore:    h.store,
		Handlers:      []CompletionHandler{h.handler},
		Now:           h.time.Now,
	}, recovered)
	t.Cleanup(h.c.Close)
	return h
}

func testInput() domain.SessionInput {
	return domain.SessionInput{
		Name:           "Ada",
		ProjectTitle:   "Ledger",
		ProjectSummary: "Accounting service",
		Skills:         "Go",
		Education:      "BSc",
		Experience:     "5 years",
	}
}

func (h *harness) waitPhase(t *testing.T, phase domain.Phase) State {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.c.State().Phase == phase
	}, waitFor, 2*time.Millisecond, "phase never became %s (now %s)", phase, h.c.State().Phase)
	return h.c.State()
}

// goLive starts a session and brings the interviewer in
func (h *harness) goLive(t *testing.T) *fakeTransport {
	t.Helper()
	require.NoError(t, h.c.Start(context.Background(), testInput()))
	h.waitPhase(t, domain.PhaseJoining)

	tr := h.transports.last()
	tr.emit(domain.TransportEvent{Type: domain.EventParticipantJoined, ParticipantID: "replica"})
	h.waitPhase(t, domain.PhaseLive)
	return tr
}

func TestBudgetEndsSessionWithoutHangUp(t *testing.T) {
	h := newHarness(t)
	tr := h.goLive(t)

	tr.emit(domain.TransportEvent{Type: domain.EventTranscription, ParticipantID: "replica", Text: "Tell me about your project."})
	tr.emit(domain.TransportEvent{Type: domain.EventTranscription, ParticipantID: "local", Local: true, Text: "I built a ledger api in Go."})
	require.Eventually(t, func() bool { return h.c.State().TranscriptCount == 2 }, waitFor, 2*time.Millisecond)

	h.time.Advance(30 * time.Minute)
	require.True(t, h.c.clock.Check())

	final := h.waitPhase(t, domain.PhaseTerminated)
	require.NotNil(t, final.Completion)
	assert.Equal(t, domain.EndReasonBudgetExceeded, final.Completion.Reason)
	assert.Equal(t, 30*time.Minute, final.Completion.LiveDuration)
	require.Len(t, final.Completion.Transcript, 2)
	assert.Equal(t, domain.SpeakerInterviewer, final.Completion.Transcript[0].Speaker)
	assert.Equal(t, domain.SpeakerUser, final.Completion.Transcript[1].Speaker)

	assert.Equal(t, int32(1), atomic.LoadInt32(&h.evaluator.calls))
	assert.Equal(t, 1, h.convs.destroyCount("c1"))
	assert.Equal(t, 1, tr.destroyCount())
	assert.False(t, h.c.clock.Armed())
	require.Eventually(t, func() bool { return h.handler.count() == 1 }, waitFor, 2*time.Millisecond)
}

// stickyStore keeps start instants because ClearStart always fails
type stickyStore struct {
	*clock.MemoryStore
}

func (stickyStore) ClearStart(ctx context.Context, sessionID string) error {
	return stderrors.New("redis: connection refused")
}

func TestRestartIgnoresUnclearedClockStart(t *testing.T) {
	h := newHarnessWithStore(t, stickyStore{clock.NewMemoryStore()}, false)
	h.goLive(t)

	h.time.Advance(29 * time.Minute)
	first, err := h.c.End(context.Background(), domain.EndReasonHangUp)
	require.NoError(t, err)
	assert.Equal(t, 29*time.Minute, first.Completion.LiveDuration)

	h.time.Advance(time.Minute)
	tr := h.goLive(t)

	assert.False(t, h.c.clock.Check())
	s := h.c.State()
	assert.Equal(t, 2, s.Attempt)
	assert.Equal(t, domain.PhaseLive, s.Phase)
	assert.Zero(t, s.Elapsed)
	assert.Equal(t, 30*time.Minute, s.Remaining)

	h.time.Advance(time.Minute)
	second, err := h.c.End(context.Background(), domain.EndReasonHangUp)
	require.NoError(t, err)
	assert.Equal(t, domain.EndReasonHangUp, second.Completion.Reason)
	assert.Equal(t, time.Minute, second.Completion.LiveDuration)
	assert.Equal(t, 1, tr.destroyCount())
}

func TestRecoveredControllerResumesPersistedClock(t *testing.T) {
	store := clock.NewMemoryStore()
	h := newHarnessWithStore(t, store, true)
	joinedAt := h.time.Now().Add(-10 * time.Minute)
	require.NoError(t, store.SaveStart(context.Background(), h.c.ID().String(), joinedAt, time.Hour))

	h.goLive(t)
	s := h.c.State()
	assert.Equal(t, 10*time.Minute, s.Elapsed)
	assert.Equal(t, 20*time.Minute, s.Remaining)

	_, err := h.c.End(context.Background(), domain.EndReasonHangUp)
	require.NoError(t, err)

	// Only the first arming after recovery resumes.
	require.NoError(t, store.SaveStart(context.Background(), h.c.ID().String(), joinedAt, time.Hour))
	h.goLive(t)
	assert.Zero(t, h.c.State().Elapsed)
}

func TestLiveUpdatesCarryClockReading(t *testing.T) {
	h := newHarness(t)
	tr := h.goLive(t)
	states, cancel := h.c.Subscribe()
	defer cancel()
	<-states

	h.time.Advance(5 * time.Minute)
	tr.emit(domain.TransportEvent{Type: domain.EventTranscription, ParticipantID: "replica", Text: "Next question."})

	timeout := time.After(waitFor)
	for {
		select {
		case s := <-states:
			if s.TranscriptCount != 1 {
				continue
			}
			assert.Equal(t, domain.PhaseLive, s.Phase)
			assert.Equal(t, 5*time.Minute, s.Elapsed)
			assert.Equal(t, 25*time.Minute, s.Remaining)
			return
		case <-timeout:
			t.Fatal("transcript update never published")
		}
	}
}

func TestJoinStartsMutedAndUnmutesAfterGrace(t *testing.T) {
	h := newHarness(t)
	tr := h.goLive(t)

	tr.mu.Lock()
	flags := tr.flags
	url := tr.joinedURL
	tr.mu.Unlock()
	assert.False(t, flags.AudioOn)
	assert.True(t, flags.VideoOn)
	assert.Equal(t, "https://rooms.example/c1", url)

	require.Eventually(t, func() bool {
		calls := tr.audioCalls()
		return len(calls) == 1 && calls[0]
	}, waitFor, 2*time.Millisecond)
}

func TestQuotaExhaustedNeverJoins(t *testing.T) {
	h := newHarness(t)
	h.convs.createFn = func(ctx context.Context) (*domain.ConversationResource, error) {
		return nil, errors.QuotaExhaustedError(stderrors.New("402"))
	}

	require.NoError(t, h.c.Start(context.Background(), testInput()))
	s := h.waitPhase(t, domain.PhaseError)

	require.NotNil(t, s.Error)
	assert.Equal(t, errors.ErrCodeQuotaExhausted, s.Error.Code)
	assert.Zero(t, h.transports.count())
	assert.Zero(t, h.convs.totalDestroys())
}

func TestHangUpAndBudgetCollapseToOneTeardown(t *testing.T) {
	h := newHarness(t)
	tr := h.goLive(t)

	var wg sync.WaitGroup
	results := make([]State, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := h.c.End(context.Background(), domain.EndReasonHangUp)
			assert.NoError(t, err)
			results[i] = s
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	h.c.OnClockBudgetExceeded()
	wg.Wait()

	for _, s := range results {
		assert.Equal(t, domain.PhaseTerminated, s.Phase)
		assert.Equal(t, domain.EndReasonHangUp, s.Completion.Reason)
	}

	// Give any stray teardown a chance to show up before counting.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, h.convs.destroyCount("c1"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&h.evaluator.calls))
	assert.Equal(t, 1, tr.destroyCount())
	require.Eventually(t, func() bool { return h.handler.count() == 1 }, waitFor, 2*time.Millisecond)
	assert.Equal(t, 1, h.handler.count())

	// A later End is a no-op.
	s, err := h.c.End(context.Background(), domain.EndReasonHangUp)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseTerminated, s.Phase)
	assert.Equal(t, 1, h.convs.destroyCount("c1"))
}

func TestBothTranscriptChannelsAreKept(t *testing.T) {
	h := newHarness(t)
	tr := h.goLive(t)

	tr.emit(domain.TransportEvent{
		Type:          domain.EventAppMessage,
		ParticipantID: "local",
		Data:          []byte(`{"event_type":"conversation.utterance","properties":{"speech":"I like Go."}}`),
	})
	tr.emit(domain.TransportEvent{Type: domain.EventTranscription, ParticipantID: "local", Text: "I like Go."})
	require.Eventually(t, func() bool { return h.c.State().TranscriptCount == 2 }, waitFor, 2*time.Millisecond)

	transcript := h.c.Transcript()
	require.Len(t, transcript, 2)
	assert.Equal(t, transcript[0].Text, transcript[1].Text)
	assert.NotEqual(t, transcript[0].Origin, transcript[1].Origin)
}

func TestEndDuringProvisioningDestroysLateResource(t *testing.T) {
	h := newHarness(t)
	release := make(chan struct{})
	h.convs.createFn = func(ctx context.Context) (*domain.ConversationResource, error) {
		<-release
		return &domain.ConversationResource{ID: "late", URL: "https://rooms.example/late"}, nil
	}

	require.NoError(t, h.c.Start(context.Background(), testInput()))
	h.waitPhase(t, domain.PhaseProvisioning)

	s, err := h.c.End(context.Background(), domain.EndReasonHangUp)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseTerminated, s.Phase)

	close(release)
	require.Eventually(t, func() bool { return h.convs.destroyCount("late") == 1 }, waitFor, 2*time.Millisecond)
	assert.Equal(t, domain.PhaseTerminated, h.c.State().Phase)
	assert.Zero(t, h.transports.count())
}

func TestJoinFailureReleasesResource(t *testing.T) {
	h := newHarness(t)
	h.transports.joinErr = stderrors.New("room expired")

	require.NoError(t, h.c.Start(context.Background(), testInput()))
	s := h.waitPhase(t, domain.PhaseError)

	assert.Equal(t, errors.ErrCodeTransportJoinFailed, s.Error.Code)
	require.Eventually(t, func() bool { return h.convs.destroyCount("c1") == 1 }, waitFor, 2*time.Millisecond)
	require.Eventually(t, func() bool { return h.transports.last().destroyCount() == 1 }, waitFor, 2*time.Millisecond)
}

func TestTransportErrorWhileJoiningEntersError(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.c.Start(context.Background(), testInput()))
	h.waitPhase(t, domain.PhaseJoining)

	h.transports.last().emit(domain.TransportEvent{Type: domain.EventTransportError, Error: "ice failed"})
	s := h.waitPhase(t, domain.PhaseError)
	assert.Equal(t, errors.ErrCodeTransportJoinFailed, s.Error.Code)
}

func TestRetryFromError(t *testing.T) {
	h := newHarness(t)
	var fail atomic.Bool
	fail.Store(true)
	h.convs.createFn = func(ctx context.Context) (*domain.ConversationResource, error) {
		if fail.Load() {
			return nil, errors.ProvisioningError(stderrors.New("503"))
		}
		return &domain.ConversationResource{ID: "c2", URL: "https://rooms.example/c2"}, nil
	}

	err := h.c.Retry(context.Background())
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidPhase))

	require.NoError(t, h.c.Start(context.Background(), testInput()))
	h.waitPhase(t, domain.PhaseError)

	fail.Store(false)
	require.NoError(t, h.c.Retry(context.Background()))
	s := h.waitPhase(t, domain.PhaseJoining)
	assert.Equal(t, 2, s.Attempt)
	assert.Nil(t, s.Error)
	assert.Equal(t, "c2", s.ConversationID)
}

func TestEndFromErrorIsNoop(t *testing.T) {
	h := newHarness(t)
	h.convs.createFn = func(ctx context.Context) (*domain.ConversationResource, error) {
		return nil, errors.CredentialInvalidError(stderrors.New("401"))
	}
	require.NoError(t, h.c.Start(context.Background(), testInput()))
	h.waitPhase(t, domain.PhaseError)

	s, err := h.c.End(context.Background(), domain.EndReasonHangUp)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseError, s.Phase)
	assert.Zero(t, atomic.LoadInt32(&h.evaluator.calls))
}

func TestEndFromIdleProducesEmptyEvaluation(t *testing.T) {
	h := newHarness(t)

	s, err := h.c.End(context.Background(), domain.EndReasonHangUp)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseTerminated, s.Phase)
	require.NotNil(t, s.Completion)
	assert.Zero(t, s.Completion.Summary.OverallScore)
	assert.Zero(t, h.convs.totalDestroys())
}

func TestRemoteJoinedIsIdempotent(t *testing.T) {
	h := newHarness(t)
	tr := h.goLive(t)

	h.time.Advance(10 * time.Second)
	tr.emit(domain.TransportEvent{Type: domain.EventParticipantJoined, ParticipantID: "replica"})
	h.c.OnRemoteJoined()

	// Local joins never count as the interviewer.
	tr.emit(domain.TransportEvent{Type: domain.EventParticipantJoined, ParticipantID: "local", Local: true})
	time.Sleep(20 * time.Millisecond)

	s := h.c.State()
	assert.Equal(t, domain.PhaseLive, s.Phase)
	assert.Equal(t, 10*time.Second, s.Elapsed)
}

func TestRemoteLeftEndsSession(t *testing.T) {
	h := newHarness(t)
	tr := h.goLive(t)

	tr.emit(domain.TransportEvent{Type: domain.EventParticipantLeft, ParticipantID: "replica"})
	s := h.waitPhase(t, domain.PhaseTerminated)
	assert.Equal(t, domain.EndReasonRemoteLeft, s.Completion.Reason)
}

func TestTransportErrorWhileLiveEndsSession(t *testing.T) {
	h := newHarness(t)
	tr := h.goLive(t)

	tr.emit(domain.TransportEvent{Type: domain.EventTransportError, Error: "connection lost"})
	s := h.waitPhase(t, domain.PhaseTerminated)
	assert.Equal(t, domain.EndReasonRemoteError, s.Completion.Reason)
	assert.Equal(t, 1, h.convs.destroyCount("c1"))
}

func TestStartRejectedWhileActive(t *testing.T) {
	h := newHarness(t)
	h.goLive(t)

	err := h.c.Start(context.Background(), testInput())
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidPhase))
}

func TestRestartAfterTerminatedUsesFreshTranscript(t *testing.T) {
	h := newHarness(t)
	tr := h.goLive(t)
	tr.emit(domain.TransportEvent{Type: domain.EventTranscription, ParticipantID: "replica", Text: "Hello"})
	require.Eventually(t, func() bool { return h.c.State().TranscriptCount == 1 }, waitFor, 2*time.Millisecond)

	_, err := h.c.End(context.Background(), domain.EndReasonHangUp)
	require.NoError(t, err)

	require.NoError(t, h.c.Start(context.Background(), testInput()))
	s := h.waitPhase(t, domain.PhaseJoining)
	assert.Equal(t, 2, s.Attempt)
	assert.Zero(t, s.TranscriptCount)
	assert.Nil(t, s.Completion)
	assert.Empty(t, h.c.Transcript())
}

func TestTranscriptIgnoredBeforeLive(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.c.Start(context.Background(), testInput()))
	h.waitPhase(t, domain.PhaseJoining)

	tr := h.transports.last()
	tr.emit(domain.TransportEvent{Type: domain.EventTranscription, ParticipantID: "replica", Text: "early"})
	tr.emit(domain.TransportEvent{Type: domain.EventParticipantJoined, ParticipantID: "replica"})
	h.waitPhase(t, domain.PhaseLive)

	assert.Empty(t, h.c.Transcript())
}

func TestMediaControlsRequireCall(t *testing.T) {
	h := newHarness(t)

	err := h.c.SetLocalAudio(context.Background(), true)
	assert.True(t, errors.Is(err, errors.ErrCodeNotReady))

	tr := h.goLive(t)
	require.NoError(t, h.c.SetLocalAudio(context.Background(), false))
	assert.Contains(t, tr.audioCalls(), false)
}

func TestSubscribeSeesPhases(t *testing.T) {
	h := newHarness(t)
	states, cancel := h.c.Subscribe()
	defer cancel()

	first := <-states
	assert.Equal(t, domain.PhaseIdle, first.Phase)

	h.goLive(t)

	seen := map[domain.Phase]bool{}
	timeout := time.After(waitFor)
	for !seen[domain.PhaseLive] {
		select {
		case s := <-states:
			seen[s.Phase] = true
		case <-timeout:
			t.Fatal("live state never published")
		}
	}
	assert.True(t, seen[domain.PhaseProvisioning])
}

func TestPublishDropsOldest(t *testing.T) {
	ch := make(chan State, 2)
	publish(ch, State{Attempt: 1})
	publish(ch, State{Attempt: 2})
	publish(ch, State{Attempt: 3})

	assert.Equal(t, 2, (<-ch).Attempt)
	assert.Equal(t, 3, (<-ch).Attempt)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, canTransition(domain.PhaseIdle, domain.PhaseProvisioning))
	assert.True(t, canTransition(domain.PhaseError, domain.PhaseProvisioning))
	assert.False(t, canTransition(domain.PhaseLive, domain.PhaseError))
	assert.False(t, canTransition(domain.PhaseTerminated, domain.PhaseLive))
}
