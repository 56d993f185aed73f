package services

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/kdashto/spinwheel/internal/catalog"
	"github.com/kdashto/spinwheel/internal/eligibility"
	"github.com/kdashto/spinwheel/internal/errors"
	"github.com/kdashto/spinwheel/internal/events"
	"github.com/kdashto/spinwheel/internal/geometry"
	"github.com/kdashto/spinwheel/internal/logger"
	"github.com/kdashto/spinwheel/internal/models"
	"github.com/kdashto/spinwheel/internal/repository"
	"github.com/kdashto/spinwheel/internal/selection"
	"github.com/kdashto/spinwheel/internal/wheel"
)

// Button labels and announcements shown by the presentation layer
const (
	LabelLogin       = "Login to Spin"
	LabelSpinning    = "Spinning…"
	LabelSpin        = "Spin"
	labelWaitPrefix  = "Wait "
	AnnounceSpinning = "Spinning"
	announceResult   = "Result: "
)

const (
	persistTimeout  = 10 * time.Second
	maxHistoryLimit = 500
	sweepInterval   = time.Minute
)

// DefaultIdleTimeout is how long a session with no requests and no
// connected clients is kept before it is evicted
const DefaultIdleTimeout = time.Hour

var errServiceClosed = errors.Internalf("spin service is closed")

// SpinServiceRepository is the storage SpinService needs
type SpinServiceRepository interface {
	repository.SpinMetaRepository
	repository.HistoryRepository
}

// SpinOptions carries the collaborators of a SpinService. Zero values
// select production defaults.
type SpinOptions struct {
	Policy      *selection.Policy
	Driver      wheel.Driver
	Clock       eligibility.Clock
	Cooldown    time.Duration
	Publisher   events.Publisher
	IdleTimeout time.Duration
}

// WheelView is everything the presentation layer renders for one user
type WheelView struct {
	Segments       []catalog.Segment `json:"segments"`
	SignedIn       bool              `json:"signed_in"`
	Angle          float64           `json:"angle"`
	Spinning       bool              `json:"spinning"`
	PointerIndex   int               `json:"pointer_index"`
	PointerName    string            `json:"pointer_name"`
	Winner         *catalog.Segment  `json:"winner,omitempty"`
	CanSpin        bool              `json:"can_spin"`
	Countdown      string            `json:"countdown,omitempty"`
	ButtonLabel    string            `json:"button_label"`
	Announcement   string            `json:"announcement,omitempty"`
	SpinsCount     int               `json:"spins_count"`
	LastWinnerName string            `json:"last_winner_name,omitempty"`
	ConfigError    string            `json:"config_error,omitempty"`
}

// SpinStarted summarizes the plan of a spin that has begun
type SpinStarted struct {
	SpinNumber  int            `json:"spin_number"`
	Tier        selection.Tier `json:"tier"`
	TargetIndex int            `json:"target_index"`
	DurationMS  int64          `json:"duration_ms,omitempty"`
}

// SpinOutcome is the result of a completed spin
type SpinOutcome struct {
	Index      int             `json:"index"`
	Segment    catalog.Segment `json:"segment"`
	Tier       selection.Tier  `json:"tier"`
	SpinNumber int             `json:"spin_number"`
	Angle      float64         `json:"angle"`
	HistoryID  string          `json:"history_id,omitempty"`
	SpunAt     time.Time       `json:"spun_at"`
}

// spinRun tracks one started spin until it completes or is cancelled
type spinRun struct {
	plan       selection.Plan
	spinNumber int
	done       chan struct{}
	outcome    *SpinOutcome
	err        error
}

func (r *spinRun) finish(outcome *SpinOutcome, err error) {
	r.outcome = outcome
	r.err = err
	close(r.done)
}

func (r *spinRun) pending() bool {
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}

// session is the runtime state of one signed-in user
type session struct {
	mu            sync.Mutex
	userID        string
	wheel         *wheel.Wheel
	meta          models.SpinMeta
	run           *spinRun
	last          *SpinOutcome
	announcement  string
	stopSpin      context.CancelFunc
	stopCountdown context.CancelFunc
	lastSeen      time.Time
	closed        bool
}

// busy reports whether a spin is animating or still being persisted.
// sess.mu must be held.
func (sess *session) busy() bool {
	return sess.wheel.Spinning() || (sess.run != nil && sess.run.pending())
}

func (sess *session) touch(now time.Time) {
	sess.mu.Lock()
	sess.lastSeen = now
	sess.mu.Unlock()
}

// teardown stops the frame loop and the countdown. An unfinished spin is
// dropped without persistence. A closed session never restarts its
// countdown.
func (sess *session) teardown() {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.closed = true
	if sess.stopSpin != nil {
		sess.stopSpin()
		sess.stopSpin = nil
	}
	if sess.stopCountdown != nil {
		sess.stopCountdown()
		sess.stopCountdown = nil
	}
}

// SpinService coordinates eligibility, selection, the wheel engine and
// persistence for every signed-in user
type SpinService struct {
	log       logger.Logger
	repo      SpinServiceRepository
	catalog   *catalog.Catalog
	policy    *selection.Policy
	driver    wheel.Driver
	clock     eligibility.Clock
	countdown *eligibility.Countdown
	window    time.Duration
	idleAfter time.Duration
	publisher events.Publisher
	stopSweep context.CancelFunc

	bmu         sync.RWMutex
	broadcaster Broadcaster

	mu       sync.Mutex
	sessions map[string]*session
	closed   bool
	wg       sync.WaitGroup
}

// NewSpinService creates a new SpinService
func NewSpinService(log logger.Logger, repo SpinServiceRepository, cat *catalog.Catalog, opts SpinOptions) *SpinService {
	if opts.Policy == nil {
		opts.Policy = selection.NewPolicy(selection.DefaultOptions(), nil)
	}
	if opts.Driver == nil {
		opts.Driver = wheel.NewAnimator(nil, wheel.DefaultFrameRate)
	}
	if opts.Clock == nil {
		opts.Clock = eligibility.SystemClock{}
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = eligibility.DefaultCooldown
	}
	if opts.Publisher == nil {
		opts.Publisher = events.Noop{}
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}

	s := &SpinService{
		log:       log.With("component", "spin"),
		repo:      repo,
		catalog:   cat,
		policy:    opts.Policy,
		driver:    opts.Driver,
		clock:     opts.Clock,
		countdown: eligibility.NewCountdown(opts.Clock, opts.Cooldown),
		window:    opts.Cooldown,
		idleAfter: opts.IdleTimeout,
		publisher: opts.Publisher,
		sessions:  make(map[string]*session),
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.stopSweep = cancel
	s.goTracked(func() { s.sweepIdle(ctx) })
	return s
}

// SetBroadcaster sets the broadcaster for sending updates to clients
func (s *SpinService) SetBroadcaster(b Broadcaster) {
	s.bmu.Lock()
	defer s.bmu.Unlock()
	s.broadcaster = b
}

func (s *SpinService) notify(userID, msgType string, payload interface{}) {
	s.bmu.RLock()
	b := s.broadcaster
	s.bmu.RUnlock()
	if b != nil {
		b.SendToUser(userID, msgType, payload)
	}
}

// goTracked runs fn in a goroutine that Close waits for. It refuses once
// the service is closed.
func (s *SpinService) goTracked(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
	return true
}

// SignIn loads the user's spin record and starts their countdown. It is
// called on the signed-in transition and is a no-op for an existing session.
func (s *SpinService) SignIn(ctx context.Context, userID string) error {
	if _, err := s.ensureSession(ctx, userID); err != nil {
		return err
	}
	s.notify(userID, models.MsgWheelState, s.View(ctx, userID))
	return nil
}

// SignOut tears the user's session down
func (s *SpinService) SignOut(userID string) {
	s.mu.Lock()
	sess, ok := s.sessions[userID]
	delete(s.sessions, userID)
	s.mu.Unlock()

	if ok {
		sess.teardown()
		s.log.Debug("Session closed", "user_id", userID)
	}
}

func (s *SpinService) ensureSession(ctx context.Context, userID string) (*session, error) {
	if userID == "" {
		return nil, ErrLoginRequired
	}

	s.mu.Lock()
	if sess, ok := s.sessions[userID]; ok {
		s.mu.Unlock()
		sess.touch(s.clock.Now())
		return sess, nil
	}
	s.mu.Unlock()

	meta := s.loadMeta(ctx, userID)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errServiceClosed
	}
	if sess, ok := s.sessions[userID]; ok {
		// another request signed the same user in meanwhile
		s.mu.Unlock()
		sess.touch(s.clock.Now())
		return sess, nil
	}
	sess := &session{
		userID:   userID,
		wheel:    wheel.New(s.catalog.Len()),
		meta:     meta,
		lastSeen: s.clock.Now(),
	}
	s.sessions[userID] = sess
	s.mu.Unlock()

	sess.mu.Lock()
	s.startCountdownLocked(sess)
	sess.mu.Unlock()

	s.log.Debug("Session opened", "user_id", userID, "spins_count", meta.SpinsCount)
	return sess, nil
}

// lockSession returns the user's live session with sess.mu held. A session
// torn down between lookup and lock is replaced by a fresh one.
func (s *SpinService) lockSession(ctx context.Context, userID string) (*session, error) {
	for {
		sess, err := s.ensureSession(ctx, userID)
		if err != nil {
			return nil, err
		}
		sess.mu.Lock()
		if !sess.closed {
			return sess, nil
		}
		sess.mu.Unlock()
	}
}

// loadMeta reads the stored record, creating a zero one if absent. Load
// failures fall back to zero state.
func (s *SpinService) loadMeta(ctx context.Context, userID string) models.SpinMeta {
	stored, err := s.repo.GetSpinMeta(ctx, userID)
	switch {
	case err == nil:
		s.checkHistory(ctx, *stored)
		return *stored
	case stderrors.Is(err, repository.ErrNotFound):
		if err := s.repo.CreateSpinMeta(ctx, userID); err != nil {
			s.log.Error("Failed to create spin meta", "user_id", userID, "error", err)
		}
	default:
		s.log.Error("Failed to load spin meta, using zero state", "user_id", userID, "error", err)
	}
	return models.SpinMeta{UserID: userID}
}

// checkHistory logs when the stored spin count and the history disagree,
// which happens when two devices complete spins at the same time
func (s *SpinService) checkHistory(ctx context.Context, meta models.SpinMeta) {
	n, err := s.repo.CountHistory(ctx, meta.UserID)
	if err != nil {
		s.log.Warn("Failed to count spin history", "user_id", meta.UserID, "error", err)
		return
	}
	if n != meta.SpinsCount {
		s.log.Warn("Spin count and history disagree", "user_id", meta.UserID, "spins_count", meta.SpinsCount, "history", n)
	}
}

// startCountdownLocked restarts the user's countdown tick. sess.mu must be held.
func (s *SpinService) startCountdownLocked(sess *session) {
	if sess.stopCountdown != nil {
		sess.stopCountdown()
		sess.stopCountdown = nil
	}
	if sess.closed {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	userID, meta := sess.userID, sess.meta
	started := s.goTracked(func() {
		s.countdown.Run(ctx, userID, meta, func(st eligibility.Status) {
			s.notify(userID, models.MsgCountdown, models.CountdownPayload{
				Allowed:  st.Allowed,
				WaitTime: st.WaitTime,
			})
		})
	})
	if !started {
		cancel()
		return
	}
	sess.stopCountdown = cancel
}

// View returns the presentation state for userID. An empty userID gets the
// signed-out view.
func (s *SpinService) View(ctx context.Context, userID string) WheelView {
	view := WheelView{
		Segments:     s.catalog.Segments(),
		PointerIndex: geometry.SegmentIndexForAngle(0, s.catalog.Len()),
		ButtonLabel:  LabelLogin,
	}
	if err := s.catalog.Err(); err != nil {
		view.ConfigError = err.Error()
	}

	sess, err := s.lockSession(ctx, userID)
	if err != nil {
		view.PointerName = s.segmentName(view.PointerIndex)
		return view
	}
	defer sess.mu.Unlock()

	snap := sess.wheel.Snapshot()
	status := eligibility.Check(userID, sess.meta, s.clock.Now(), s.window)

	view.SignedIn = true
	view.Angle = snap.Angle
	view.Spinning = snap.State != wheel.StateIdle
	view.PointerIndex = snap.Pointer
	view.PointerName = s.segmentName(snap.Pointer)
	view.Countdown = status.WaitTime
	view.Announcement = sess.announcement
	view.SpinsCount = sess.meta.SpinsCount
	view.LastWinnerName = sess.meta.LastWinnerName
	if sess.last != nil {
		winner := sess.last.Segment
		view.Winner = &winner
	}

	switch {
	case view.Spinning:
		view.ButtonLabel = LabelSpinning
	case !status.Allowed:
		view.ButtonLabel = labelWaitPrefix + status.WaitTime
	default:
		view.ButtonLabel = LabelSpin
	}
	view.CanSpin = !view.Spinning && status.Allowed && view.ConfigError == ""
	return view
}

func (s *SpinService) segmentName(idx int) string {
	seg, ok := s.catalog.At(idx)
	if !ok {
		return ""
	}
	return seg.Name
}

// StartSpin checks the gates, picks a plan and launches the animation.
// Gates apply in order: catalog, login, in-progress, cooldown.
func (s *SpinService) StartSpin(ctx context.Context, userID, targetID string) (*SpinStarted, error) {
	if err := s.catalog.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfiguration, ErrCatalogInvalid.Message)
	}
	if userID == "" {
		s.log.Debug("Spin rejected", "reason", eligibility.ReasonLoginRequired)
		return nil, ErrLoginRequired
	}

	sess, err := s.lockSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	if sess.busy() {
		s.log.Debug("Spin rejected", "user_id", userID, "reason", "in_progress")
		return nil, ErrSpinInProgress
	}
	status := eligibility.Check(userID, sess.meta, s.clock.Now(), s.window)
	if !status.Allowed {
		s.log.Debug("Spin rejected", "user_id", userID, "reason", status.Reason, "wait", status.WaitTime)
		return nil, &CooldownError{Status: status}
	}

	upcoming := sess.meta.SpinsCount + 1
	plan, err := s.policy.Choose(upcoming, s.catalog, targetID)
	if err != nil {
		return nil, err
	}
	if err := sess.wheel.Start(plan); err != nil {
		return nil, err
	}

	run := &spinRun{plan: plan, spinNumber: upcoming, done: make(chan struct{})}
	animCtx, cancel := context.WithCancel(context.Background())
	if !s.goTracked(func() { s.animate(animCtx, sess, run) }) {
		cancel()
		sess.wheel.Cancel()
		return nil, errServiceClosed
	}
	sess.run = run
	sess.stopSpin = cancel
	sess.announcement = AnnounceSpinning

	s.log.Debug("Spin started", "user_id", userID, "spin_number", upcoming, "tier", plan.Tier, "target", plan.TargetIndex)
	return &SpinStarted{
		SpinNumber:  upcoming,
		Tier:        plan.Tier,
		TargetIndex: plan.TargetIndex,
		DurationMS:  plan.Duration.Milliseconds(),
	}, nil
}

// animate runs the frame loop and hands a finished spin to complete
func (s *SpinService) animate(ctx context.Context, sess *session, run *spinRun) {
	final, err := s.driver.Run(ctx, sess.wheel, func(f wheel.Frame) {
		s.notify(sess.userID, models.MsgFrame, models.FramePayload{
			Angle:    f.Angle,
			Velocity: f.Velocity,
			Pointer:  f.Pointer,
		})
	})
	if err != nil {
		s.log.Debug("Spin stopped before completion", "user_id", sess.userID, "error", err)
		sess.mu.Lock()
		if sess.run == run {
			sess.announcement = ""
			if sess.stopSpin != nil {
				sess.stopSpin()
				sess.stopSpin = nil
			}
		}
		sess.mu.Unlock()
		run.finish(nil, ErrSpinCancelled)
		return
	}
	s.complete(sess, run, final)
}

// complete applies a finished spin: optimistic state first, then
// persistence, then notifications. Persistence failures are logged and
// never roll the visible state back.
func (s *SpinService) complete(sess *session, run *spinRun, final wheel.Frame) {
	seg, ok := s.catalog.At(final.Winner)
	if !ok {
		s.log.Error("Spin stopped outside the catalog", "user_id", sess.userID, "index", final.Winner)
		run.finish(nil, errors.Internalf("spin stopped on unknown segment %d", final.Winner))
		return
	}
	now := s.clock.Now()

	sess.mu.Lock()
	sess.meta.SpinsCount++
	sess.meta.LastWinnerName = seg.Name
	sess.meta.LastSpinTime = &now
	sess.meta.UpdatedAt = now
	meta := sess.meta
	if sess.run == run && sess.stopSpin != nil {
		sess.stopSpin()
		sess.stopSpin = nil
	}
	sess.announcement = announceResult + seg.Name
	s.startCountdownLocked(sess)
	sess.mu.Unlock()

	outcome := &SpinOutcome{
		Index:      final.Winner,
		Segment:    seg,
		Tier:       run.plan.Tier,
		SpinNumber: meta.SpinsCount,
		Angle:      final.Angle,
		SpunAt:     now,
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	s.persistMeta(ctx, meta)

	rec := &models.SpinHistoryRecord{
		UserID:      meta.UserID,
		SegmentID:   seg.ID,
		Name:        seg.Name,
		Description: seg.Description,
		Color:       seg.Color,
		Value:       seg.Value,
		SpinNumber:  meta.SpinsCount,
		CreatedAt:   now,
	}
	if err := s.repo.AppendHistory(ctx, rec); err != nil {
		s.log.Error("Failed to append spin history", "user_id", meta.UserID, "spin_number", meta.SpinsCount, "error", err)
	} else {
		outcome.HistoryID = rec.ID
	}

	sess.mu.Lock()
	sess.last = outcome
	sess.mu.Unlock()
	run.finish(outcome, nil)

	s.log.Info("Spin completed", "user_id", meta.UserID, "segment", seg.Name, "tier", run.plan.Tier, "spin_number", meta.SpinsCount)
	s.notify(meta.UserID, models.MsgSpinResult, outcome)

	err := s.publisher.PublishSpinCompleted(ctx, events.SpinCompleted{
		UserID:      meta.UserID,
		HistoryID:   outcome.HistoryID,
		SegmentID:   seg.ID,
		SegmentName: seg.Name,
		Value:       seg.Value,
		Tier:        string(run.plan.Tier),
		SpinNumber:  meta.SpinsCount,
		OccurredAt:  now,
	})
	if err != nil {
		s.log.Error("Failed to publish spin event", "user_id", meta.UserID, "error", err)
	}
}

// persistMeta increments the stored record in place. A missing record is
// written whole from the optimistic state; concurrent devices race and the
// last write wins.
func (s *SpinService) persistMeta(ctx context.Context, meta models.SpinMeta) {
	err := s.repo.IncrementSpinMeta(ctx, meta.UserID, meta.LastWinnerName, *meta.LastSpinTime)
	if err == nil {
		return
	}
	if !stderrors.Is(err, repository.ErrNotFound) {
		s.log.Error("Failed to update spin meta", "user_id", meta.UserID, "error", err)
		return
	}
	if err := s.repo.SetSpinMeta(ctx, meta); err != nil {
		s.log.Error("Failed to write spin meta", "user_id", meta.UserID, "error", err)
	}
}

// AwaitResult blocks until the user's latest spin finishes and returns its
// outcome. A finished spin returns immediately.
func (s *SpinService) AwaitResult(ctx context.Context, userID string) (*SpinOutcome, error) {
	if userID == "" {
		return nil, ErrLoginRequired
	}
	s.mu.Lock()
	sess := s.sessions[userID]
	s.mu.Unlock()
	if sess == nil {
		return nil, ErrNoResult
	}

	sess.mu.Lock()
	run := sess.run
	sess.mu.Unlock()
	if run == nil {
		return nil, ErrNoResult
	}

	select {
	case <-run.done:
		return run.outcome, run.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Nudge turns the idle wheel a little, for keyboard arrows
func (s *SpinService) Nudge(ctx context.Context, userID string, direction int) error {
	if direction != -1 && direction != 1 {
		return ErrInvalidNudgeDir
	}
	if s.catalog.Err() != nil {
		return ErrCatalogInvalid
	}
	sess, err := s.ensureSession(ctx, userID)
	if err != nil {
		return err
	}
	if !sess.wheel.Nudge(direction) {
		return ErrSpinInProgress
	}

	snap := sess.wheel.Snapshot()
	s.notify(userID, models.MsgFrame, models.FramePayload{Angle: snap.Angle, Pointer: snap.Pointer})
	return nil
}

// History returns the user's spins, newest first. A limit of 0 returns all.
func (s *SpinService) History(ctx context.Context, userID string, limit int) ([]models.SpinHistoryRecord, error) {
	if userID == "" {
		return nil, ErrLoginRequired
	}
	if limit < 0 || limit > maxHistoryLimit {
		return nil, ErrInvalidLimit
	}
	return s.repo.ListHistory(ctx, userID, limit)
}

// EvictIdle tears down sessions that have seen no request for the idle
// timeout and have no connected clients. Bearer-token users never sign out,
// so this is what releases their sessions. It returns how many were evicted.
func (s *SpinService) EvictIdle() int {
	now := s.clock.Now()

	s.mu.Lock()
	candidates := lo.Values(s.sessions)
	s.mu.Unlock()

	evicted := 0
	for _, sess := range candidates {
		sess.mu.Lock()
		idle := !sess.closed && !sess.busy() && now.Sub(sess.lastSeen) >= s.idleAfter && !s.connected(sess.userID)
		if idle {
			s.mu.Lock()
			if s.sessions[sess.userID] == sess {
				delete(s.sessions, sess.userID)
			} else {
				idle = false
			}
			s.mu.Unlock()
		}
		if idle {
			// claimed under the lock so no spin can start before teardown
			sess.closed = true
		}
		sess.mu.Unlock()

		if idle {
			sess.teardown()
			evicted++
		}
	}
	if evicted > 0 {
		s.log.Debug("Evicted idle sessions", "count", evicted)
	}
	return evicted
}

func (s *SpinService) connected(userID string) bool {
	s.bmu.RLock()
	b := s.broadcaster
	s.bmu.RUnlock()
	p, ok := b.(Presence)
	return ok && p.Connected(userID)
}

func (s *SpinService) sweepIdle(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.EvictIdle()
		}
	}
}

// Close tears down every session and waits for background work to stop
func (s *SpinService) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	sessions := lo.Values(s.sessions)
	s.sessions = make(map[string]*session)
	s.mu.Unlock()

	s.stopSweep()
	for _, sess := range sessions {
		sess.teardown()
	}
	s.wg.Wait()
}
