package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archprep/mockportal-backend/internal/config"
	"github.com/archprep/mockportal-backend/internal/exam"
	"github.com/archprep/mockportal-backend/internal/model"
	"github.com/archprep/mockportal-backend/internal/proctor"
	"github.com/archprep/mockportal-backend/internal/repository"
	"github.com/archprep/mockportal-backend/internal/store"
)

type fakeSnapshotStore struct {
	mu    sync.Mutex
	snaps map[int]exam.Snapshot
}

func newFakeSnapshotStore() *fakeSnapshotStore {
	return &fakeSnapshotStore{snaps: make(map[int]exam.Snapshot)}
}

func (f *fakeSnapshotStore) Save(_ context.Context, userID int, snap exam.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snaps[userID] = snap
	return nil
}

func (f *fakeSnapshotStore) Load(_ context.Context, userID int) (*exam.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap, ok := f.snaps[userID]
	if !ok {
		return nil, store.ErrSnapshotNotFound
	}
	return &snap, nil
}

func (f *fakeSnapshotStore) Delete(_ context.Context, userID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.snaps, userID)
	return nil
}

func (f *fakeSnapshotStore) has(userID int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.snaps[userID]
	return ok
}

type fakeTestProvider struct {
	def *model.TestDefinition
}

func (f *fakeTestProvider) GetTest(_ context.Context, id uuid.UUID) (*model.TestDefinition, error) {
	if f.def != nil && f.def.ID == id {
		return f.def, nil
	}
	return nil, repository.ErrNotFound
}

type fakeAttemptQueue struct {
	mu       sync.Mutex
	attempts []model.TestAttempt
}

func (f *fakeAttemptQueue) EnqueueAttempt(_ context.Context, a model.TestAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, a)
	return nil
}

func (f *fakeAttemptQueue) all() []model.TestAttempt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.TestAttempt(nil), f.attempts...)
}

func portalTestDef(n int) *model.TestDefinition {
	def := &model.TestDefinition{
		ID:              uuid.New(),
		Name:            "Mock Test 1",
		DurationSeconds: 600,
	}
	for i := 1; i <= n; i++ {
		def.Questions = append(def.Questions, model.Question{
			ID:         i,
			Prompt:     "sample",
			Type:       model.QuestionTypeNormal,
			OptionA:    "a",
			OptionB:    "b",
			OptionC:    "c",
			OptionD:    "d",
			CorrectKey: model.OptionA,
		})
	}
	return def
}

func attemptTestConfig() *config.Config {
	return &config.Config{
		Proctor: config.ProctorConfig{
			ScreenshotWindow:     3 * time.Second,
			ScreenshotCount:      2,
			TouchCancelMax:       200 * time.Millisecond,
			MobileResizeWindow:   500 * time.Millisecond,
			QuickFocusWindow:     2 * time.Second,
			FullscreenRetryDelay: time.Second,
		},
	}
}

func newAttemptFixture(n int) (*AttemptService, *fakeSnapshotStore, *fakeAttemptQueue, *model.TestDefinition) {
	def := portalTestDef(n)
	snaps := newFakeSnapshotStore()
	queue := &fakeAttemptQueue{}
	// Publish targets are best-effort; an unreachable Redis only logs.
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	svc := NewAttemptService(attemptTestConfig(), &fakeTestProvider{def: def}, snaps, queue, rdb, zerolog.Nop())
	return svc, snaps, queue, def
}

func TestStartCreatesRunningAttempt(t *testing.T) {
	svc, snaps, _, def := newAttemptFixture(3)

	sess, err := svc.Start(context.Background(), 7, "s@example.com", def.ID)
	require.NoError(t, err)
	assert.Equal(t, exam.PhaseRunning, sess.Phase)
	assert.Len(t, sess.Questions, 3)
	assert.Equal(t, 600, sess.TimeLeft)

	require.True(t, snaps.has(7), "start mutation mirrors to the snapshot store")
}

func TestStartRejectsMalformedTest(t *testing.T) {
	svc, _, _, def := newAttemptFixture(2)
	def.Questions[0].CorrectKey = "E"

	_, err := svc.Start(context.Background(), 7, "s@example.com", def.ID)
	assert.ErrorIs(t, err, exam.ErrMalformedQuestion)

	_, stateErr := svc.State(7)
	assert.ErrorIs(t, stateErr, ErrNoActiveAttempt)
}

func TestSubmitQueuesResultAndDropsSnapshot(t *testing.T) {
	svc, snaps, queue, def := newAttemptFixture(2)

	sess, err := svc.Start(context.Background(), 7, "s@example.com", def.ID)
	require.NoError(t, err)

	// Answer the first question correctly.
	q := sess.Questions[0]
	require.NoError(t, svc.Answer(7, q.QuestionID, q.CorrectIndex))
	require.NoError(t, svc.Submit(7))

	require.Eventually(t, func() bool { return len(queue.all()) == 1 }, time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return !snaps.has(7) }, time.Second, 10*time.Millisecond)

	got := queue.all()[0]
	assert.Equal(t, 7, got.UserID)
	assert.Equal(t, def.ID, got.TestID)
	assert.Equal(t, "Mock Test 1", got.TestName)
	assert.Equal(t, exam.MarksCorrect, got.Score)
	assert.Equal(t, 1, got.CorrectAnswers)
	assert.Equal(t, 1, got.Unattempted)
	assert.Equal(t, 2*exam.MarksCorrect, got.MaxScore)

	// The registry entry goes away with completion.
	require.Eventually(t, func() bool {
		_, err := svc.State(7)
		return err != nil
	}, time.Second, 10*time.Millisecond)
}

func TestResumeRestoresFromSnapshot(t *testing.T) {
	svc, snaps, _, def := newAttemptFixture(3)

	sess, err := svc.Start(context.Background(), 7, "s@example.com", def.ID)
	require.NoError(t, err)
	require.NoError(t, svc.Answer(7, sess.Questions[1].QuestionID, 2))
	require.Eventually(t, func() bool {
		snap, err := snaps.Load(context.Background(), 7)
		return err == nil && len(snap.Answers) == 1
	}, time.Second, 10*time.Millisecond)

	before, err := svc.State(7)
	require.NoError(t, err)

	// Simulate a fresh process: a new service sharing the snapshot store.
	svc2 := NewAttemptService(attemptTestConfig(), &fakeTestProvider{def: def}, snaps, &fakeAttemptQueue{}, redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}), zerolog.Nop())

	resumed, err := svc2.Resume(context.Background(), 7, "s@example.com")
	require.NoError(t, err)
	assert.Equal(t, before.Questions, resumed.Questions)
	assert.Equal(t, before.Answers, resumed.Answers)
	assert.Equal(t, exam.PhaseRunning, resumed.Phase)
}

func TestResumeWithoutSnapshot(t *testing.T) {
	svc, _, _, _ := newAttemptFixture(2)

	_, err := svc.Resume(context.Background(), 99, "s@example.com")
	assert.ErrorIs(t, err, ErrNoSavedState)
}

func TestSavedStateSummary(t *testing.T) {
	svc, _, _, def := newAttemptFixture(2)

	sess, err := svc.Start(context.Background(), 7, "s@example.com", def.ID)
	require.NoError(t, err)
	require.NoError(t, svc.Answer(7, sess.Questions[0].QuestionID, 0))

	require.Eventually(t, func() bool {
		info, err := svc.SavedState(context.Background(), 7)
		return err == nil && info.Answered == 1
	}, time.Second, 10*time.Millisecond)

	info, err := svc.SavedState(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, def.ID, info.TestID)
	assert.Equal(t, "Mock Test 1", info.TestName)
}

func TestHardBlockLocksMutations(t *testing.T) {
	svc, _, _, def := newAttemptFixture(2)

	_, err := svc.Start(context.Background(), 7, "s@example.com", def.ID)
	require.NoError(t, err)

	actions, err := svc.HandleEvent(context.Background(), 7, proctor.Event{
		Kind: proctor.EventKeyDown,
		Key:  "PrintScreen",
	})
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.True(t, actions[0].HardBlock)

	assert.ErrorIs(t, svc.Answer(7, 1, 0), ErrBlocked)
	assert.ErrorIs(t, svc.SaveAndNext(7), ErrBlocked)

	sess, err := svc.State(7)
	require.NoError(t, err)
	assert.True(t, sess.ScreenshotBlocked)
	assert.Contains(t, sess.Violations, "Screenshot attempt detected")

	// Submit stays available even while blocked.
	require.NoError(t, svc.Submit(7))
}

func TestAcknowledgeFullscreenUnlocks(t *testing.T) {
	svc, _, _, def := newAttemptFixture(2)

	_, err := svc.Start(context.Background(), 7, "s@example.com", def.ID)
	require.NoError(t, err)

	_, err = svc.HandleEvent(context.Background(), 7, proctor.Event{Kind: proctor.EventKeyDown, Key: "PrintScreen"})
	require.NoError(t, err)
	require.ErrorIs(t, svc.Answer(7, 1, 0), ErrBlocked)

	require.NoError(t, svc.AcknowledgeFullscreen(7))
	assert.NoError(t, svc.Answer(7, 1, 0))
}

func TestTabSwitchEventUpdatesCounters(t *testing.T) {
	svc, _, _, def := newAttemptFixture(2)

	_, err := svc.Start(context.Background(), 7, "s@example.com", def.ID)
	require.NoError(t, err)

	_, err = svc.HandleEvent(context.Background(), 7, proctor.Event{Kind: proctor.EventVisibilityHidden})
	require.NoError(t, err)

	sess, err := svc.State(7)
	require.NoError(t, err)
	assert.Equal(t, 1, sess.TabSwitchCount)
	assert.Contains(t, sess.Violations, "Tab switch detected")
}

func TestBlurEventUpdatesTabSwitchCount(t *testing.T) {
	svc, _, _, def := newAttemptFixture(2)

	_, err := svc.Start(context.Background(), 7, "s@example.com", def.ID)
	require.NoError(t, err)

	_, err = svc.HandleEvent(context.Background(), 7, proctor.Event{Kind: proctor.EventBlur})
	require.NoError(t, err)

	sess, err := svc.State(7)
	require.NoError(t, err)
	assert.Equal(t, 1, sess.TabSwitchCount)
	assert.Contains(t, sess.Violations, "Window focus lost")
}

func TestFullscreenDeniedUpdatesExitCount(t *testing.T) {
	svc, _, _, def := newAttemptFixture(2)

	_, err := svc.Start(context.Background(), 7, "s@example.com", def.ID)
	require.NoError(t, err)

	_, err = svc.HandleEvent(context.Background(), 7, proctor.Event{Kind: proctor.EventFullscreenDenied})
	require.NoError(t, err)

	sess, err := svc.State(7)
	require.NoError(t, err)
	assert.Equal(t, 1, sess.FullscreenExitCount)
	assert.Contains(t, sess.Violations, "Fullscreen request denied")
}
