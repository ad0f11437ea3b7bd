package exam

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/archprep/mockportal-backend/internal/model"
)

// Phase enumerates the lifecycle states of an attempt.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseSelecting Phase = "selecting"
	PhaseRunning   Phase = "running"
	PhaseCompleted Phase = "completed"
)

// CompletionReason records why an attempt transitioned to completed.
type CompletionReason string

const (
	CompletedBySubmit  CompletionReason = "submitted"
	CompletedByTimeout CompletionReason = "timeout"
	// CompletedByTermination covers forced completion, e.g. a terminal
	// violation or a forced logout while running.
	CompletedByTermination CompletionReason = "terminated"
)

// AttemptSession is the mutable state of one student's run of one test.
// It is owned exclusively by a single Controller and never shared across
// concurrent attempts.
type AttemptSession struct {
	TestID    uuid.UUID `json:"test_id"`
	UserID    int       `json:"user_id"`
	UserEmail string    `json:"user_email"`

	// Questions is fixed at session start and stable for the attempt's
	// duration, including the persisted option shuffle.
	Questions []ShuffledQuestion `json:"questions"`

	CurrentQuestion int `json:"current_question"`

	// Answers maps question id to the selected display index. Absence means
	// unattempted.
	Answers map[int]int `json:"answers"`
	// Marked maps question id to the marked-for-review flag.
	Marked map[int]bool `json:"marked"`
	// Visited is the set of visited question indices.
	Visited map[int]bool `json:"visited"`

	TimeLeft int `json:"time_left"`

	// Violations is append-only, ordered by detection time.
	Violations          []string `json:"violations"`
	TabSwitchCount      int      `json:"tab_switch_count"`
	FullscreenExitCount int      `json:"fullscreen_exit_count"`

	// ScreenshotBlocked is the hard-block overlay flag. Independent of the
	// phase machine: it blocks interaction, not the attempt lifecycle.
	ScreenshotBlocked bool `json:"screenshot_blocked"`

	Phase     Phase     `json:"phase"`
	StartedAt time.Time `json:"started_at"`
}

// QuestionCount returns the number of questions in the attempt.
func (s *AttemptSession) QuestionCount() int { return len(s.Questions) }

// clone returns a deep copy safe to hand outside the controller lock.
func (s *AttemptSession) clone() AttemptSession {
	out := *s
	out.Questions = append([]ShuffledQuestion(nil), s.Questions...)
	out.Answers = make(map[int]int, len(s.Answers))
	for k, v := range s.Answers {
		out.Answers[k] = v
	}
	out.Marked = make(map[int]bool, len(s.Marked))
	for k, v := range s.Marked {
		out.Marked[k] = v
	}
	out.Visited = make(map[int]bool, len(s.Visited))
	for k, v := range s.Visited {
		out.Visited[k] = v
	}
	out.Violations = append([]string(nil), s.Violations...)
	return out
}

// Controller owns one AttemptSession and is the only way to mutate it.
// All operations check the phase first, so a tick that reaches zero wins over
// any late-arriving mutation. Methods are safe for concurrent use; the mutex
// serializes the timer tick against event-driven mutations.
type Controller struct {
	mu      sync.Mutex
	test    *model.TestDefinition
	session AttemptSession
	rng     *rand.Rand

	// onMutate mirrors every mutation to durable storage (fire-and-forget).
	onMutate func(AttemptSession)
	// onComplete fires exactly once per attempt.
	onComplete func(AttemptSession, CompletionReason)
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithMutationHook registers the persistence mirror invoked after every
// mutation. The hook receives a deep copy and must not call back into the
// controller.
func WithMutationHook(fn func(AttemptSession)) ControllerOption {
	return func(c *Controller) { c.onMutate = fn }
}

// WithCompletionHook registers the hook fired exactly once when the attempt
// completes, with the final session state.
func WithCompletionHook(fn func(AttemptSession, CompletionReason)) ControllerOption {
	return func(c *Controller) { c.onComplete = fn }
}

// NewController creates a controller in the idle phase for one user.
// The random source is session-scoped; there is no cross-session
// reproducibility requirement.
func NewController(userID int, email string, rng *rand.Rand, opts ...ControllerOption) *Controller {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	c := &Controller{
		rng: rng,
		session: AttemptSession{
			UserID:    userID,
			UserEmail: email,
			Phase:     PhaseIdle,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SelectTest holds the chosen test without side effects.
// Valid from idle or selecting.
func (c *Controller) SelectTest(t *model.TestDefinition) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.Phase != PhaseIdle && c.session.Phase != PhaseSelecting {
		return fmt.Errorf("select test in phase %s: %w", c.session.Phase, ErrNotRunning)
	}
	c.test = t
	c.session.TestID = t.ID
	c.session.Phase = PhaseSelecting
	return nil
}

// StartTest transitions selecting → running: shuffles every question exactly
// once, initializes the timer, and clears answers, marks, visited set and the
// violation log. A malformed question blocks the start.
func (c *Controller) StartTest() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.Phase != PhaseSelecting {
		return fmt.Errorf("start test in phase %s: %w", c.session.Phase, ErrNotRunning)
	}
	if c.test == nil {
		return ErrNoTestSelected
	}

	shuffled, err := ShuffleTest(c.test, c.rng)
	if err != nil {
		return err
	}

	c.session.Questions = shuffled
	c.session.CurrentQuestion = 0
	c.session.Answers = make(map[int]int)
	c.session.Marked = make(map[int]bool)
	c.session.Visited = map[int]bool{0: true}
	c.session.TimeLeft = c.test.DurationSeconds
	c.session.Violations = nil
	c.session.TabSwitchCount = 0
	c.session.FullscreenExitCount = 0
	c.session.ScreenshotBlocked = false
	c.session.StartedAt = time.Now()
	c.session.Phase = PhaseRunning

	c.notifyLocked()
	return nil
}

// ResumeTest restores every session field from a snapshot verbatim, including
// the persisted shuffle, and transitions to running. It fails without a phase
// change when the snapshot is structurally invalid or references a test that
// no longer matches; the caller should then discard the snapshot and fall
// back to a fresh start.
func (c *Controller) ResumeTest(t *model.TestDefinition, snap *Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.Phase == PhaseRunning || c.session.Phase == PhaseCompleted {
		return fmt.Errorf("resume in phase %s: %w", c.session.Phase, ErrNotRunning)
	}
	if err := snap.Validate(t); err != nil {
		return err
	}

	c.test = t
	c.session.TestID = snap.TestID
	c.session.Questions = append([]ShuffledQuestion(nil), snap.Questions...)
	c.session.CurrentQuestion = snap.CurrentQuestion
	c.session.Answers = copyIntMap(snap.Answers)
	c.session.Marked = copyBoolMap(snap.Marked)
	c.session.Visited = copyBoolMap(snap.Visited)
	c.session.TimeLeft = snap.TimeLeft
	c.session.Violations = append([]string(nil), snap.Violations...)
	c.session.TabSwitchCount = snap.TabSwitchCount
	c.session.FullscreenExitCount = snap.FullscreenExitCount
	c.session.ScreenshotBlocked = false
	c.session.StartedAt = time.Now()
	c.session.Phase = PhaseRunning

	c.notifyLocked()
	return nil
}

// HandleAnswer sets or overwrites the answer for a question and marks it
// visited. No-op outside running.
func (c *Controller) HandleAnswer(questionID, displayIndex int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.Phase != PhaseRunning {
		return ErrNotRunning
	}

	idx, ok := c.questionIndexLocked(questionID)
	if !ok {
		return fmt.Errorf("answer question %d: %w", questionID, ErrUnknownQuestion)
	}
	if displayIndex < 0 || displayIndex >= len(c.session.Questions[idx].Options) {
		return fmt.Errorf("answer question %d option %d: %w", questionID, displayIndex, ErrIndexOutOfRange)
	}

	c.session.Answers[questionID] = displayIndex
	c.session.Visited[idx] = true
	c.notifyLocked()
	return nil
}

// ClearResponse removes the answer for the current question.
func (c *Controller) ClearResponse() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.Phase != PhaseRunning {
		return ErrNotRunning
	}

	qid := c.session.Questions[c.session.CurrentQuestion].QuestionID
	delete(c.session.Answers, qid)
	c.notifyLocked()
	return nil
}

// SaveAndNext advances to the next question, clamped at the last one.
func (c *Controller) SaveAndNext() error {
	return c.advance(false)
}

// MarkAndNext toggles mark-for-review on the current question, then advances.
func (c *Controller) MarkAndNext() error {
	return c.advance(true)
}

func (c *Controller) advance(toggleMark bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.Phase != PhaseRunning {
		return ErrNotRunning
	}

	if toggleMark {
		qid := c.session.Questions[c.session.CurrentQuestion].QuestionID
		c.session.Marked[qid] = !c.session.Marked[qid]
	}
	if c.session.CurrentQuestion < len(c.session.Questions)-1 {
		c.session.CurrentQuestion++
	}
	c.session.Visited[c.session.CurrentQuestion] = true
	c.notifyLocked()
	return nil
}

// NavigateTo jumps to a question index (bounds-checked) and marks it visited.
func (c *Controller) NavigateTo(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.Phase != PhaseRunning {
		return ErrNotRunning
	}
	if index < 0 || index >= len(c.session.Questions) {
		return fmt.Errorf("navigate to %d: %w", index, ErrIndexOutOfRange)
	}

	c.session.CurrentQuestion = index
	c.session.Visited[index] = true
	c.notifyLocked()
	return nil
}

// Tick decrements the timer by one second. At zero it forces the transition
// to completed regardless of unanswered questions — the single
// timeout-driven transition, firing exactly once; further ticks are no-ops.
// Returns true when this tick completed the attempt.
func (c *Controller) Tick() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.Phase != PhaseRunning {
		return false
	}

	c.session.TimeLeft--
	if c.session.TimeLeft > 0 {
		c.notifyLocked()
		return false
	}

	c.session.TimeLeft = 0
	c.completeLocked(CompletedByTimeout)
	return true
}

// Submit manually completes the attempt. Always allowed while running,
// regardless of answer completeness.
func (c *Controller) Submit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.Phase != PhaseRunning {
		return ErrNotRunning
	}
	c.completeLocked(CompletedBySubmit)
	return nil
}

// Terminate forces completion from running, e.g. on a terminal violation or
// a forced logout. No-op outside running.
func (c *Controller) Terminate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.Phase != PhaseRunning {
		return
	}
	c.completeLocked(CompletedByTermination)
}

// RestartTest clears all in-memory session state back to idle. The persisted
// snapshot is untouched unless the caller explicitly clears it.
func (c *Controller) RestartTest() {
	c.mu.Lock()
	defer c.mu.Unlock()

	userID, email := c.session.UserID, c.session.UserEmail
	c.test = nil
	c.session = AttemptSession{
		UserID:    userID,
		UserEmail: email,
		Phase:     PhaseIdle,
	}
}

// AddViolation appends to the violation log. No-op outside running.
func (c *Controller) AddViolation(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.Phase != PhaseRunning {
		return
	}
	c.session.Violations = append(c.session.Violations, message)
	c.notifyLocked()
}

// RecordTabSwitch logs a focus/visibility violation and bumps the counter.
func (c *Controller) RecordTabSwitch(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.Phase != PhaseRunning {
		return
	}
	c.session.TabSwitchCount++
	c.session.Violations = append(c.session.Violations, message)
	c.notifyLocked()
}

// RecordFullscreenExit logs a fullscreen violation and bumps the counter.
func (c *Controller) RecordFullscreenExit(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.Phase != PhaseRunning {
		return
	}
	c.session.FullscreenExitCount++
	c.session.Violations = append(c.session.Violations, message)
	c.notifyLocked()
}

// SetScreenshotBlocked toggles the hard-block overlay flag. Clearing it is
// the explicit re-acknowledgement after fullscreen re-entry.
func (c *Controller) SetScreenshotBlocked(blocked bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.Phase != PhaseRunning {
		return
	}
	c.session.ScreenshotBlocked = blocked
	c.notifyLocked()
}

// Phase returns the current lifecycle phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Phase
}

// Session returns a deep copy of the current session state, safe for reading,
// scoring and snapshotting outside the lock.
func (c *Controller) Session() AttemptSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.clone()
}

// completeLocked flips the phase and fires the completion hook exactly once.
// Once completed, no mutating operation can alter the session again.
func (c *Controller) completeLocked(reason CompletionReason) {
	c.session.Phase = PhaseCompleted
	c.notifyLocked()
	if c.onComplete != nil {
		c.onComplete(c.session.clone(), reason)
	}
}

func (c *Controller) notifyLocked() {
	if c.onMutate != nil {
		c.onMutate(c.session.clone())
	}
}

func (c *Controller) questionIndexLocked(questionID int) (int, bool) {
	for i := range c.session.Questions {
		if c.session.Questions[i].QuestionID == questionID {
			return i, true
		}
	}
	return 0, false
}

func copyIntMap(in map[int]int) map[int]int {
	out := make(map[int]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyBoolMap(in map[int]bool) map[int]bool {
	out := make(map[int]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
