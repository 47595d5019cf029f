// Package session implements the interview call state machine.
package session

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"interviewroom-backend/internal/domain"
	"interviewroom-backend/internal/service/clock"
	"interviewroom-backend/internal/service/transcript"
	"interviewroom-backend/internal/transport"
	"interviewroom-backend/pkg/constants"
	"interviewroom-backend/pkg/errors"
	"interviewroom-backend/pkg/logger"
	"interviewroom-backend/pkg/metrics"
)

// Conversations provisions and releases the remote conversation resource
type Conversations interface {
	Create(ctx context.Context, input domain.SessionInput) (*domain.ConversationResource, error)
	// Destroy is best-effort and never fails the caller.
	Destroy(ctx context.Context, resourceID string)
}

// Evaluator scores a finalized transcript
type Evaluator interface {
	Evaluate(transcript []domain.TranscriptMessage) domain.EvaluationSummary
}

// CompletionHandler receives every finished session after it is terminated
type CompletionHandler interface {
	HandleCompletion(ctx context.Context, completion *domain.Completion) error
}

// Config holds the session timing knobs
type Config struct {
	Budget           time.Duration
	AudioGraceDelay  time.Duration
	ClockTick        time.Duration
	OperationTimeout time.Duration
}

// Deps are the collaborators a controller drives
type Deps struct {
	Conversations Conversations
	Transports    transport.Factory
	Evaluator     Evaluator
	ClockStore    clock.Store
	Handlers      []CompletionHandler
	Metrics       *metrics.Metrics
	Now           func() time.Time
}

// Controller owns one interview session. All state changes happen on a
// single goroutine that drains the inbox; public methods only post to it.
type Controller struct {
	id      uuid.UUID
	cfg     Config
	deps    Deps
	now     func() time.Time
	log     *zap.Logger
	clock   *clock.Clock
	collect *transcript.Collector

	inbox     chan any
	closed    chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	mu     sync.RWMutex
	state  State
	subs   map[int]chan State
	nextID int

	// owned by the loop goroutine
	input      domain.SessionInput
	attempt    int
	resource   *domain.ConversationResource
	tr         transport.Transport
	localID    string
	startedAt  time.Time
	waiters    []chan State
	graceTimer *time.Timer
	// set for a controller reopened after a restart; the first arming
	// resumes the persisted clock start
	recovered bool

	// attempt the clock was last armed for, read by the clock goroutine
	armedAttempt atomic.Int64
}

// NewController creates an idle session and starts its event loop
func NewController(id uuid.UUID, cfg Config, deps Deps) *Controller {
	return newController(id, cfg, deps, false)
}

func newController(id uuid.UUID, cfg Config, deps Deps, recovered bool) *Controller {
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = constants.DefaultTimeout
	}
	if cfg.Budget <= 0 {
		cfg.Budget = constants.DefaultSessionBudget
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	c := &Controller{
		id:      id,
		cfg:     cfg,
		deps:    deps,
		now:     now,
		log:     logger.ForSession(id.String()),
		collect: transcript.NewCollector(),
		inbox:   make(chan any, constants.SessionInboxSize),
		closed:  make(chan struct{}),
		done:    make(chan struct{}),
		subs:    make(map[int]chan State),

		recovered: recovered,
	}
	c.clock = clock.New(id.String(), deps.ClockStore, c.onBudgetExceeded,
		clock.WithTick(cfg.ClockTick), clock.WithNow(now))
	c.state = State{
		SessionID: id,
		Phase:     domain.PhaseIdle,
		UpdatedAt: now(),
	}

	go c.run()
	return c
}

// ID returns the session id
func (c *Controller) ID() uuid.UUID {
	return c.id
}

// State returns the current snapshot
func (c *Controller) State() State {
	c.mu.RLock()
	s := c.state
	c.mu.RUnlock()

	if s.Phase == domain.PhaseLive {
		s.Elapsed = c.clock.Elapsed()
		s.Remaining = c.clock.Remaining()
	}
	return s
}

// Transcript returns a snapshot of the messages collected for the current attempt
func (c *Controller) Transcript() []domain.TranscriptMessage {
	return c.collect.Snapshot()
}

// Subscribe returns a channel receiving every published state. Slow
// subscribers lose the oldest pending states, never the newest.
func (c *Controller) Subscribe() (<-chan State, func()) {
	ch := make(chan State, constants.SubscriberBuffer)

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	ch <- c.state
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			if _, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(ch)
			}
			c.mu.Unlock()
		})
	}
}

// Start provisions a conversation for input and joins it. It returns once
// provisioning has begun; progress is observed through State or Subscribe.
// Start is accepted from idle, terminated and error.
func (c *Controller) Start(ctx context.Context, input domain.SessionInput) error {
	reply := make(chan error, 1)
	if err := c.send(ctx, startCmd{input: input, reply: reply}); err != nil {
		return err
	}
	return c.await(ctx, reply)
}

// Retry re-runs provisioning with the last input. Valid only from error.
func (c *Controller) Retry(ctx context.Context) error {
	reply := make(chan error, 1)
	if err := c.send(ctx, retryCmd{reply: reply}); err != nil {
		return err
	}
	return c.await(ctx, reply)
}

// End tears the session down and waits until it is terminated. Concurrent
// calls share a single teardown. From terminated or error it returns the
// current state without side effects.
func (c *Controller) End(ctx context.Context, reason domain.EndReason) (State, error) {
	reply := make(chan State, 1)
	if err := c.send(ctx, endCmd{reason: reason, reply: reply}); err != nil {
		return c.State(), err
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return c.State(), ctx.Err()
	case <-c.closed:
		return c.State(), errors.ServiceUnavailableError("Session is shut down")
	}
}

// OnRemoteJoined reports that the interviewer joined the call
func (c *Controller) OnRemoteJoined() {
	c.post(remoteJoined{})
}

// OnClockBudgetExceeded ends a live session exactly like a hang-up
func (c *Controller) OnClockBudgetExceeded() {
	c.post(budgetExceeded{})
}

// SetLocalAudio toggles the candidate microphone while joining or live
func (c *Controller) SetLocalAudio(ctx context.Context, on bool) error {
	target, err := c.mediaTarget(ctx)
	if err != nil {
		return err
	}
	return target.SetLocalAudio(on)
}

// SetLocalVideo toggles the candidate camera while joining or live
func (c *Controller) SetLocalVideo(ctx context.Context, on bool) error {
	target, err := c.mediaTarget(ctx)
	if err != nil {
		return err
	}
	return target.SetLocalVideo(on)
}

// Close stops the event loop. It does not tear the session down; call End first.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
	<-c.done

	c.mu.Lock()
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	c.mu.Unlock()
}

func (c *Controller) mediaTarget(ctx context.Context) (mediaTarget, error) {
	reply := make(chan mediaReply, 1)
	if err := c.send(ctx, mediaCmd{reply: reply}); err != nil {
		return nil, err
	}
	select {
	case r := <-reply:
		return r.tr, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, errors.ServiceUnavailableError("Session is shut down")
	}
}

func (c *Controller) send(ctx context.Context, msg any) error {
	select {
	case c.inbox <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closed:
		return errors.ServiceUnavailableError("Session is shut down")
	}
}

func (c *Controller) await(ctx context.Context, reply chan error) error {
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closed:
		return errors.ServiceUnavailableError("Session is shut down")
	}
}

// post enqueues msg from a background goroutine. It reports false once the
// controller is closed.
func (c *Controller) post(msg any) bool {
	select {
	case c.inbox <- msg:
		return true
	case <-c.closed:
		return false
	}
}

func (c *Controller) run() {
	defer close(c.done)
	for {
		select {
		case <-c.closed:
			return
		case msg := <-c.inbox:
			c.handle(msg)
		}
	}
}

func (c *Controller) handle(msg any) {
	switch m := msg.(type) {
	case startCmd:
		m.reply <- c.handleStart(m.input)
	case retryCmd:
		m.reply <- c.handleRetry()
	case endCmd:
		c.handleEnd(m)
	case mediaCmd:
		c.handleMedia(m)
	case remoteJoined:
		if m.attempt == 0 || m.attempt == c.attempt {
			c.handleRemoteJoined()
		}
	case budgetExceeded:
		c.handleBudgetExceeded(m.attempt)
	case provisionResult:
		c.handleProvisionResult(m)
	case joinResult:
		c.handleJoinResult(m)
	case transportEvent:
		c.handleTransportEvent(m)
	case transportClosed:
		c.handleTransportClosed(m)
	case graceElapsed:
		c.handleGraceElapsed(m)
	case teardownDone:
		c.handleTeardownDone(m)
	default:
		c.log.Error("Unknown inbox message", zap.Any("message", msg))
	}
}

func (c *Controller) phase() domain.Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Phase
}

func (c *Controller) handleStart(input domain.SessionInput) error {
	phase := c.phase()
	if phase != domain.PhaseIdle && !phase.IsTerminal() {
		return errors.InvalidPhaseError("start", string(phase))
	}

	c.input = input
	c.beginAttempt()
	return nil
}

func (c *Controller) handleRetry() error {
	phase := c.phase()
	if phase != domain.PhaseError {
		return errors.InvalidPhaseError("retry", string(phase))
	}

	c.log.Info("Retrying session", zap.Int("previous_attempt", c.attempt))
	c.beginAttempt()
	return nil
}

// beginAttempt resets per-attempt state and launches provisioning
func (c *Controller) beginAttempt() {
	c.attempt++
	c.collect.Reset()
	c.localID = ""
	c.startedAt = c.now()

	c.update(domain.PhaseProvisioning, func(s *State) {
		s.Attempt = c.attempt
		s.Error = nil
		s.ConversationID = ""
		s.ConversationURL = ""
		s.RemoteJoined = false
		s.TranscriptCount = 0
		s.Completion = nil
	})

	attempt, input := c.attempt, c.input
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.OperationTimeout)
		defer cancel()

		res, err := c.deps.Conversations.Create(ctx, input)
		if !c.post(provisionResult{attempt: attempt, resource: res, err: err}) && res != nil {
			c.destroyResource(res)
		}
	}()
}

func (c *Controller) handleProvisionResult(m provisionResult) {
	if m.attempt != c.attempt || c.phase() != domain.PhaseProvisioning {
		c.deps.Metrics.RecordStaleResult("provision")
		if m.resource != nil {
			c.log.Info("Discarding conversation from superseded attempt",
				zap.String("conversation_id", m.resource.ID),
				zap.Int("attempt", m.attempt))
			go c.destroyResource(m.resource)
		}
		return
	}

	if m.err != nil {
		appErr := asAppError(m.err, errors.ProvisioningError)
		c.log.Warn("Provisioning failed", zap.String("code", string(appErr.Code)), zap.Error(m.err))
		c.enterError(appErr)
		return
	}

	c.resource = m.resource
	tr := c.deps.Transports()
	c.tr = tr

	c.update(domain.PhaseJoining, func(s *State) {
		s.ConversationID = m.resource.ID
		s.ConversationURL = m.resource.URL
	})

	attempt, url := c.attempt, m.resource.URL
	go c.forward(attempt, tr)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.OperationTimeout)
		defer cancel()

		// The candidate joins muted and is unmuted after the interviewer arrives.
		localID, err := tr.Join(ctx, url, domain.MediaFlags{AudioOn: false, VideoOn: true})
		c.post(joinResult{attempt: attempt, localID: localID, err: err})
	}()
}

func (c *Controller) handleJoinResult(m joinResult) {
	phase := c.phase()
	if m.attempt != c.attempt || (phase != domain.PhaseJoining && phase != domain.PhaseLive) {
		c.deps.Metrics.RecordStaleResult("join")
		return
	}
	if m.err != nil {
		if phase == domain.PhaseLive {
			c.onTransportFailure(phase, m.err.Error())
			return
		}
		c.log.Warn("Transport join failed", zap.Error(m.err))
		c.enterError(errors.TransportJoinError(m.err))
		return
	}

	c.localID = m.localID
	c.collect.SetLocalParticipant(m.localID)
	c.log.Info("Joined call", zap.String("local_participant", m.localID))
}

func (c *Controller) handleRemoteJoined() {
	switch c.phase() {
	case domain.PhaseLive:
		return
	case domain.PhaseJoining:
	default:
		c.log.Debug("Ignoring remote join outside joining phase", zap.String("phase", string(c.phase())))
		return
	}

	c.armedAttempt.Store(int64(c.attempt))
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.OperationTimeout)
	if c.recovered {
		c.recovered = false
		c.clock.Resume(ctx, c.cfg.Budget)
	} else {
		c.clock.Arm(ctx, c.cfg.Budget)
	}
	cancel()

	c.update(domain.PhaseLive, func(s *State) {
		s.RemoteJoined = true
	})

	attempt := c.attempt
	c.graceTimer = time.AfterFunc(c.cfg.AudioGraceDelay, func() {
		c.post(graceElapsed{attempt: attempt})
	})
}

func (c *Controller) handleGraceElapsed(m graceElapsed) {
	if m.attempt != c.attempt || c.phase() != domain.PhaseLive || c.tr == nil {
		return
	}
	tr := c.tr
	go func() {
		if err := tr.SetLocalAudio(true); err != nil {
			c.log.Warn("Failed to unmute candidate audio", zap.Error(err))
		}
	}()
}

func (c *Controller) handleBudgetExceeded(attempt int) {
	if attempt != 0 && attempt != c.attempt {
		return
	}
	if c.phase() != domain.PhaseLive {
		return
	}
	c.log.Info("Session budget exceeded, ending call")
	c.beginTeardown(domain.EndReasonBudgetExceeded)
}

func (c *Controller) handleMedia(m mediaCmd) {
	phase := c.phase()
	if (phase != domain.PhaseJoining && phase != domain.PhaseLive) || c.tr == nil {
		m.reply <- mediaReply{err: errors.NotReadyError("Media controls are available only during a call")}
		return
	}
	m.reply <- mediaReply{tr: c.tr}
}

func (c *Controller) handleTransportEvent(m transportEvent) {
	if m.attempt != c.attempt {
		return
	}
	evt := m.evt
	phase := c.phase()

	switch evt.Type {
	case domain.EventParticipantJoined:
		if c.isRemote(evt) {
			c.handleRemoteJoined()
		}

	case domain.EventParticipantLeft:
		if c.isRemote(evt) && phase == domain.PhaseLive {
			c.log.Info("Interviewer left the call", zap.String("participant_id", evt.ParticipantID))
			c.beginTeardown(domain.EndReasonRemoteLeft)
		}

	case domain.EventAppMessage, domain.EventTranscription:
		if phase != domain.PhaseLive {
			return
		}
		msg, ok := c.collect.OnTransportEvent(evt)
		if !ok {
			return
		}
		c.deps.Metrics.RecordTranscriptMessage(string(msg.Speaker), string(msg.Origin))
		c.update(phase, func(s *State) {
			s.TranscriptCount = c.collect.Len()
		})

	case domain.EventTransportError:
		c.onTransportFailure(phase, evt.Error)
	}
}

func (c *Controller) handleTransportClosed(m transportClosed) {
	if m.attempt != c.attempt {
		return
	}
	c.onTransportFailure(c.phase(), "transport closed")
}

func (c *Controller) onTransportFailure(phase domain.Phase, reason string) {
	switch phase {
	case domain.PhaseJoining:
		c.log.Warn("Transport failed while joining", zap.String("reason", reason))
		c.enterError(errors.TransportJoinError(stderrors.New(reason)))
	case domain.PhaseLive:
		c.log.Warn("Transport failed during call", zap.String("reason", reason))
		c.beginTeardown(domain.EndReasonRemoteError)
	}
}

func (c *Controller) isRemote(evt domain.TransportEvent) bool {
	if evt.Local {
		return false
	}
	return c.localID == "" || evt.ParticipantID != c.localID
}

func (c *Controller) handleEnd(m endCmd) {
	switch phase := c.phase(); phase {
	case domain.PhaseTerminated, domain.PhaseError:
		m.reply <- c.State()
	case domain.PhaseTerminating:
		c.waiters = append(c.waiters, m.reply)
	default:
		c.waiters = append(c.waiters, m.reply)
		c.beginTeardown(m.reason)
	}
}

// beginTeardown moves to terminating, evaluates the transcript once and
// releases transport, clock and resource off the loop.
func (c *Controller) beginTeardown(reason domain.EndReason) {
	c.stopGraceTimer()

	live := c.clock.Elapsed()
	snapshot := c.collect.Snapshot()
	summary := c.deps.Evaluator.Evaluate(snapshot)
	c.deps.Metrics.RecordEvaluation(summary.OverallScore)

	completion := &domain.Completion{
		SessionID:    c.id,
		Reason:       reason,
		Transcript:   snapshot,
		Summary:      summary,
		LiveDuration: live,
		StartedAt:    c.startedAt,
	}
	if c.resource != nil {
		completion.ConversationID = c.resource.ID
	}

	c.update(domain.PhaseTerminating, func(s *State) {
		s.Completion = completion
	})
	c.log.Info("Tearing down session",
		zap.String("reason", string(reason)),
		zap.Duration("live", live),
		zap.Int("messages", len(snapshot)))

	res, tr, attempt := c.resource, c.tr, c.attempt
	c.resource, c.tr = nil, nil

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.OperationTimeout)
		defer cancel()

		c.releaseTransport(ctx, tr)
		c.clock.Disarm(ctx)
		if res != nil {
			c.deps.Conversations.Destroy(ctx, res.ID)
		}
		c.post(teardownDone{attempt: attempt})
	}()
}

func (c *Controller) handleTeardownDone(m teardownDone) {
	if m.attempt != c.attempt || c.phase() != domain.PhaseTerminating {
		return
	}

	var completion *domain.Completion
	c.update(domain.PhaseTerminated, func(s *State) {
		done := *s.Completion
		done.EndedAt = c.now()
		s.Completion = &done
		completion = &done
	})
	c.deps.Metrics.RecordSessionEnded(string(completion.Reason), completion.LiveDuration)

	final := c.State()
	for _, w := range c.waiters {
		w <- final
	}
	c.waiters = nil

	if len(c.deps.Handlers) > 0 {
		go c.dispatchCompletion(completion)
	}
}

// enterError records cause and releases anything the failed attempt created
func (c *Controller) enterError(cause *errors.AppError) {
	c.stopGraceTimer()
	res, tr := c.resource, c.tr
	c.resource, c.tr = nil, nil

	c.update(domain.PhaseError, func(s *State) {
		s.Error = cause
	})
	c.deps.Metrics.RecordSessionError(string(cause.Code))

	if res == nil && tr == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.OperationTimeout)
		defer cancel()

		c.releaseTransport(ctx, tr)
		if res != nil {
			c.deps.Conversations.Destroy(ctx, res.ID)
		}
	}()
}

func (c *Controller) releaseTransport(ctx context.Context, tr transport.Transport) {
	if tr == nil {
		return
	}
	if err := tr.Leave(ctx); err != nil {
		c.log.Debug("Transport leave failed", zap.Error(err))
	}
	if err := tr.Destroy(); err != nil {
		c.log.Warn("Transport destroy failed", zap.Error(err))
	}
}

func (c *Controller) destroyResource(res *domain.ConversationResource) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.OperationTimeout)
	defer cancel()
	c.deps.Conversations.Destroy(ctx, res.ID)
}

func (c *Controller) dispatchCompletion(completion *domain.Completion) {
	for _, h := range c.deps.Handlers {
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.OperationTimeout)
		if err := h.HandleCompletion(ctx, completion); err != nil {
			c.log.Warn("Completion handler failed", zap.Error(err))
		}
		cancel()
	}
}

func (c *Controller) stopGraceTimer() {
	if c.graceTimer != nil {
		c.graceTimer.Stop()
		c.graceTimer = nil
	}
}

// onBudgetExceeded runs on the clock goroutine, or on the loop itself when a
// resumed clock is already past its budget, so it must not block.
func (c *Controller) onBudgetExceeded() {
	attempt := int(c.armedAttempt.Load())
	go c.post(budgetExceeded{attempt: attempt})
}

// forward relays transport events into the inbox in arrival order
func (c *Controller) forward(attempt int, tr transport.Transport) {
	for evt := range tr.Events() {
		if !c.post(transportEvent{attempt: attempt, evt: evt}) {
			return
		}
	}
	c.post(transportClosed{attempt: attempt})
}

// update applies fn and the phase change to the snapshot and publishes it.
// Live snapshots carry the clock reading taken at publish time.
func (c *Controller) update(to domain.Phase, fn func(s *State)) {
	var elapsed, remaining time.Duration
	if to == domain.PhaseLive {
		elapsed, remaining = c.clock.Elapsed(), c.clock.Remaining()
	}

	c.mu.Lock()
	from := c.state.Phase
	if from != to && !canTransition(from, to) {
		c.mu.Unlock()
		c.log.Error("Rejected invalid phase transition",
			zap.String("from", string(from)),
			zap.String("to", string(to)))
		return
	}
	c.state.Phase = to
	if fn != nil {
		fn(&c.state)
	}
	c.state.Elapsed, c.state.Remaining = elapsed, remaining
	c.state.UpdatedAt = c.now()
	snapshot := c.state
	for _, ch := range c.subs {
		publish(ch, snapshot)
	}
	c.mu.Unlock()

	if from != to {
		c.deps.Metrics.RecordSessionTransition(string(from), string(to))
		c.log.Info("Session phase changed",
			zap.String("from", string(from)),
			zap.String("to", string(to)),
			zap.Int("attempt", snapshot.Attempt))
	}
}

// publish delivers s, dropping the oldest queued state when ch is full
func publish(ch chan State, s State) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func asAppError(err error, wrap func(error) *errors.AppError) *errors.AppError {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return wrap(err)
}
