package service

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/archprep/mockportal-backend/internal/config"
	"github.com/archprep/mockportal-backend/internal/exam"
	"github.com/archprep/mockportal-backend/internal/model"
	"github.com/archprep/mockportal-backend/internal/proctor"
	"github.com/archprep/mockportal-backend/internal/store"
)

// Attempt service errors.
var (
	ErrNoActiveAttempt = errors.New("no active attempt for user")
	ErrNoSavedState    = errors.New("no saved test state")
	ErrBlocked         = errors.New("interaction locked pending fullscreen acknowledgement")
)

// TestProvider supplies test definitions to the attempt service.
type TestProvider interface {
	GetTest(ctx context.Context, id uuid.UUID) (*model.TestDefinition, error)
}

// AttemptQueue accepts finished attempts for asynchronous persistence.
type AttemptQueue interface {
	EnqueueAttempt(ctx context.Context, a model.TestAttempt) error
}

// SavedStateInfo summarizes a resumable snapshot for the resume prompt.
type SavedStateInfo struct {
	TestID   uuid.UUID `json:"test_id"`
	TestName string    `json:"test_name"`
	TimeLeft int       `json:"time_left"`
	Answered int       `json:"answered"`
	SavedAt  time.Time `json:"saved_at"`
}

// ProctorEvent is the payload published on the live monitor channel.
type ProctorEvent struct {
	UserID    int       `json:"user_id"`
	Email     string    `json:"email"`
	TestID    uuid.UUID `json:"test_id"`
	Violation string    `json:"violation"`
	Class     string    `json:"class"`
	HardBlock bool      `json:"hard_block"`
	At        time.Time `json:"at"`
}

// liveAttempt bundles the per-attempt state machine with its violation
// detector and timer goroutine.
type liveAttempt struct {
	ctrl     *exam.Controller
	detector *proctor.Detector
	cancel   context.CancelFunc
	testName string
	total    int
}

// AttemptService owns all running attempts. Each logged-in student has at
// most one live controller; every mutation is mirrored to the snapshot store
// and completion hands the result to the persistence queue.
type AttemptService struct {
	cfg       *config.Config
	tests     TestProvider
	snapshots store.SnapshotStore
	queue     AttemptQueue
	rdb       *redis.Client
	log       zerolog.Logger

	mu   sync.Mutex
	live map[int]*liveAttempt
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(cfg *config.Config, tests TestProvider, snapshots store.SnapshotStore, queue AttemptQueue, rdb *redis.Client, log zerolog.Logger) *AttemptService {
	return &AttemptService{
		cfg:       cfg,
		tests:     tests,
		snapshots: snapshots,
		queue:     queue,
		rdb:       rdb,
		log:       log.With().Str("component", "attempt_service").Logger(),
		live:      make(map[int]*liveAttempt),
	}
}

// SavedState returns resume information for the user's snapshot, or
// ErrNoSavedState when none exists. A structurally invalid snapshot is
// discarded here so the client falls through to a fresh start.
func (s *AttemptService) SavedState(ctx context.Context, userID int) (*SavedStateInfo, error) {
	snap, err := s.snapshots.Load(ctx, userID)
	if errors.Is(err, store.ErrSnapshotNotFound) {
		return nil, ErrNoSavedState
	}
	if errors.Is(err, exam.ErrInvalidSnapshot) {
		s.discardSnapshot(ctx, userID)
		return nil, ErrNoSavedState
	}
	if err != nil {
		return nil, err
	}

	def, err := s.tests.GetTest(ctx, snap.TestID)
	if err != nil {
		// Test deleted since the save; the snapshot is unusable.
		s.discardSnapshot(ctx, userID)
		return nil, ErrNoSavedState
	}

	return &SavedStateInfo{
		TestID:   snap.TestID,
		TestName: def.Name,
		TimeLeft: snap.TimeLeft,
		Answered: len(snap.Answers),
		SavedAt:  snap.SavedAt,
	}, nil
}

// Start begins a fresh attempt of the given test, replacing any previous
// snapshot. Fails without starting when the test has a malformed question.
func (s *AttemptService) Start(ctx context.Context, userID int, email string, testID uuid.UUID) (exam.AttemptSession, error) {
	def, err := s.tests.GetTest(ctx, testID)
	if err != nil {
		return exam.AttemptSession{}, err
	}

	la, err := s.launch(userID, email, def, nil)
	if err != nil {
		return exam.AttemptSession{}, err
	}
	return la.ctrl.Session(), nil
}

// Resume restores the user's saved attempt. An invalid snapshot is discarded
// and ErrNoSavedState returned so the client starts fresh.
func (s *AttemptService) Resume(ctx context.Context, userID int, email string) (exam.AttemptSession, error) {
	snap, err := s.snapshots.Load(ctx, userID)
	if errors.Is(err, store.ErrSnapshotNotFound) {
		return exam.AttemptSession{}, ErrNoSavedState
	}
	if errors.Is(err, exam.ErrInvalidSnapshot) {
		s.discardSnapshot(ctx, userID)
		return exam.AttemptSession{}, ErrNoSavedState
	}
	if err != nil {
		return exam.AttemptSession{}, err
	}

	def, err := s.tests.GetTest(ctx, snap.TestID)
	if err != nil {
		s.discardSnapshot(ctx, userID)
		return exam.AttemptSession{}, ErrNoSavedState
	}

	la, err := s.launch(userID, email, def, snap)
	if errors.Is(err, exam.ErrInvalidSnapshot) {
		s.discardSnapshot(ctx, userID)
		return exam.AttemptSession{}, ErrNoSavedState
	}
	if err != nil {
		return exam.AttemptSession{}, err
	}
	return la.ctrl.Session(), nil
}

// Discard drops the user's saved snapshot without starting anything.
func (s *AttemptService) Discard(ctx context.Context, userID int) error {
	return s.snapshots.Delete(ctx, userID)
}

// launch builds the controller, wires its hooks, starts or resumes it, and
// registers it with a running ticker. Any previous live attempt of the user
// is terminated first.
func (s *AttemptService) launch(userID int, email string, def *model.TestDefinition, snap *exam.Snapshot) (*liveAttempt, error) {
	s.mu.Lock()
	if prev, ok := s.live[userID]; ok {
		prev.cancel()
		prev.ctrl.Terminate()
		delete(s.live, userID)
	}
	s.mu.Unlock()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	ctrl := exam.NewController(userID, email, rng,
		exam.WithMutationHook(s.persistSnapshot),
		exam.WithCompletionHook(func(final exam.AttemptSession, reason exam.CompletionReason) {
			s.finalize(final, reason, def.Name, def.DurationSeconds)
		}),
	)

	if snap != nil {
		if err := ctrl.ResumeTest(def, snap); err != nil {
			return nil, err
		}
	} else {
		if err := ctrl.SelectTest(def); err != nil {
			return nil, err
		}
		if err := ctrl.StartTest(); err != nil {
			return nil, err
		}
	}

	tickCtx, cancel := context.WithCancel(context.Background())
	la := &liveAttempt{
		ctrl:     ctrl,
		detector: proctor.NewDetector(s.proctorConfig()),
		cancel:   cancel,
		testName: def.Name,
		total:    def.DurationSeconds,
	}

	s.mu.Lock()
	s.live[userID] = la
	s.mu.Unlock()

	go s.runTicker(tickCtx, userID, ctrl)

	s.log.Info().
		Int("user_id", userID).
		Str("test_id", def.ID.String()).
		Bool("resumed", snap != nil).
		Msg("attempt running")
	return la, nil
}

// runTicker drives the one-second countdown for one attempt. It stops when
// the attempt completes or the attempt is replaced.
func (s *AttemptService) runTicker(ctx context.Context, userID int, ctrl *exam.Controller) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctrl.Tick() {
				return
			}
			if ctrl.Phase() != exam.PhaseRunning {
				return
			}
		}
	}
}

// Answer records an option selection on the user's running attempt.
func (s *AttemptService) Answer(userID, questionID, displayIndex int) error {
	la, err := s.get(userID)
	if err != nil {
		return err
	}
	if la.detector.Blocked() {
		return ErrBlocked
	}
	return la.ctrl.HandleAnswer(questionID, displayIndex)
}

// ClearResponse clears the current question's answer.
func (s *AttemptService) ClearResponse(userID int) error {
	la, err := s.get(userID)
	if err != nil {
		return err
	}
	if la.detector.Blocked() {
		return ErrBlocked
	}
	return la.ctrl.ClearResponse()
}

// SaveAndNext advances to the next question.
func (s *AttemptService) SaveAndNext(userID int) error {
	la, err := s.get(userID)
	if err != nil {
		return err
	}
	if la.detector.Blocked() {
		return ErrBlocked
	}
	return la.ctrl.SaveAndNext()
}

// MarkAndNext toggles mark-for-review and advances.
func (s *AttemptService) MarkAndNext(userID int) error {
	la, err := s.get(userID)
	if err != nil {
		return err
	}
	if la.detector.Blocked() {
		return ErrBlocked
	}
	return la.ctrl.MarkAndNext()
}

// NavigateTo jumps to a question by index.
func (s *AttemptService) NavigateTo(userID, index int) error {
	la, err := s.get(userID)
	if err != nil {
		return err
	}
	if la.detector.Blocked() {
		return ErrBlocked
	}
	return la.ctrl.NavigateTo(index)
}

// Submit completes the attempt manually. Allowed even while blocked; the
// student can always give up.
func (s *AttemptService) Submit(userID int) error {
	la, err := s.get(userID)
	if err != nil {
		return err
	}
	return la.ctrl.Submit()
}

// State returns a copy of the user's current session.
func (s *AttemptService) State(userID int) (exam.AttemptSession, error) {
	la, err := s.get(userID)
	if err != nil {
		return exam.AttemptSession{}, err
	}
	sess := la.ctrl.Session()
	sess.ScreenshotBlocked = la.detector.Blocked()
	return sess, nil
}

// HandleEvent runs one client event through the violation detector and
// applies the resulting actions to the session. The actions are returned so
// the client can suppress inputs and schedule fullscreen retries.
func (s *AttemptService) HandleEvent(ctx context.Context, userID int, ev proctor.Event) ([]proctor.Action, error) {
	la, err := s.get(userID)
	if err != nil {
		return nil, err
	}

	actions := la.detector.Process(ev)
	sess := la.ctrl.Session()

	for _, action := range actions {
		switch {
		case action.Violation == "":
			// Silent cancel, nothing to record.
		case action.TabSwitch:
			la.ctrl.RecordTabSwitch(action.Violation)
		case action.FullscreenExit:
			la.ctrl.RecordFullscreenExit(action.Violation)
		default:
			la.ctrl.AddViolation(action.Violation)
		}
		if action.HardBlock {
			la.ctrl.SetScreenshotBlocked(true)
		}
		if action.Violation != "" {
			s.publishEvent(ctx, ProctorEvent{
				UserID:    userID,
				Email:     sess.UserEmail,
				TestID:    sess.TestID,
				Violation: action.Violation,
				Class:     string(action.Class),
				HardBlock: action.HardBlock,
				At:        time.Now(),
			})
		}
	}
	return actions, nil
}

// AcknowledgeFullscreen clears the hard block after fullscreen re-entry.
func (s *AttemptService) AcknowledgeFullscreen(userID int) error {
	la, err := s.get(userID)
	if err != nil {
		return err
	}
	la.detector.AcknowledgeFullscreen()
	la.ctrl.SetScreenshotBlocked(false)
	return nil
}

// TerminateAll force-completes every live attempt. Used on shutdown so
// in-flight attempts reach the persistence queue.
func (s *AttemptService) TerminateAll() {
	s.mu.Lock()
	attempts := make([]*liveAttempt, 0, len(s.live))
	for _, la := range s.live {
		attempts = append(attempts, la)
	}
	s.live = make(map[int]*liveAttempt)
	s.mu.Unlock()

	for _, la := range attempts {
		la.cancel()
		la.ctrl.Terminate()
	}
}

func (s *AttemptService) get(userID int) (*liveAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	la, ok := s.live[userID]
	if !ok {
		return nil, ErrNoActiveAttempt
	}
	return la, nil
}

// persistSnapshot mirrors a session mutation to the snapshot store.
// Synchronous so a completed attempt can never be overwritten by a stale
// in-flight save; Redis writes are cheap enough to sit on the mutation path.
func (s *AttemptService) persistSnapshot(sess exam.AttemptSession) {
	if sess.Phase != exam.PhaseRunning {
		return
	}
	snap := exam.NewSnapshot(sess)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.snapshots.Save(ctx, sess.UserID, snap); err != nil {
		s.log.Error().Err(err).Int("user_id", sess.UserID).Msg("failed to persist snapshot")
	}
}

// finalize scores a completed attempt, queues the result, and drops the
// snapshot. Runs once per attempt via the completion hook.
func (s *AttemptService) finalize(final exam.AttemptSession, reason exam.CompletionReason, testName string, totalTime int) {
	sum := exam.ComputeScore(final.Questions, final.Answers)

	attempt := model.TestAttempt{
		UserID:         final.UserID,
		StudentEmail:   final.UserEmail,
		TestID:         final.TestID,
		TestName:       testName,
		Score:          sum.TotalMarks,
		MaxScore:       sum.MaxMarks,
		TotalQuestions: len(final.Questions),
		CorrectAnswers: sum.Correct,
		WrongAnswers:   sum.Incorrect,
		Unattempted:    sum.Unattempted,
		TimeTaken:      totalTime - final.TimeLeft,
		TotalTime:      totalTime,
		Violations:     final.Violations,
		TabSwitchCount: final.TabSwitchCount,
		SubmittedAt:    time.Now(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.queue.EnqueueAttempt(ctx, attempt); err != nil {
			s.log.Error().Err(err).Int("user_id", final.UserID).Msg("failed to enqueue finished attempt")
		}
		s.discardSnapshot(ctx, final.UserID)

		s.mu.Lock()
		if la, ok := s.live[final.UserID]; ok && la.ctrl.Phase() == exam.PhaseCompleted {
			la.cancel()
			delete(s.live, final.UserID)
		}
		s.mu.Unlock()

		s.log.Info().
			Int("user_id", final.UserID).
			Str("reason", string(reason)).
			Int("score", sum.TotalMarks).
			Msg("attempt completed")
	}()
}

func (s *AttemptService) discardSnapshot(ctx context.Context, userID int) {
	if err := s.snapshots.Delete(ctx, userID); err != nil {
		s.log.Warn().Err(err).Int("user_id", userID).Msg("failed to discard snapshot")
	}
}

func (s *AttemptService) publishEvent(ctx context.Context, ev ProctorEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := s.rdb.Publish(ctx, config.CacheKey.ProctorEventsChannel(), data).Err(); err != nil {
		s.log.Warn().Err(err).Msg("failed to publish proctor event")
	}
}

func (s *AttemptService) proctorConfig() proctor.Config {
	return proctor.Config{
		ScreenshotWindow:     s.cfg.Proctor.ScreenshotWindow,
		ScreenshotCount:      s.cfg.Proctor.ScreenshotCount,
		TouchCancelMax:       s.cfg.Proctor.TouchCancelMax,
		MobileResizeWindow:   s.cfg.Proctor.MobileResizeWindow,
		QuickFocusWindow:     s.cfg.Proctor.QuickFocusWindow,
		FullscreenRetryDelay: s.cfg.Proctor.FullscreenRetryDelay,
	}
}
