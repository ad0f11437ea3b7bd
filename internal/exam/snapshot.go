package exam

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/archprep/mockportal-backend/internal/model"
)

// Snapshot is the durable form of an in-progress attempt, written after every
// mutation and read back on resume. Questions carry the persisted shuffle so
// a resumed attempt shows the identical display order.
type Snapshot struct {
	TestID              uuid.UUID          `json:"test_id"`
	UserID              int                `json:"user_id"`
	Questions           []ShuffledQuestion `json:"questions"`
	CurrentQuestion     int                `json:"current_question"`
	Answers             map[int]int        `json:"answers"`
	Marked              map[int]bool       `json:"marked"`
	Visited             map[int]bool       `json:"visited"`
	TimeLeft            int                `json:"time_left"`
	Violations          []string           `json:"violations"`
	TabSwitchCount      int                `json:"tab_switch_count"`
	FullscreenExitCount int                `json:"fullscreen_exit_count"`
	SavedAt             time.Time          `json:"saved_at"`
}

// NewSnapshot captures the durable fields of a session. The hard-block flag
// is deliberately not captured: a resumed attempt starts unblocked.
func NewSnapshot(s AttemptSession) Snapshot {
	return Snapshot{
		TestID:              s.TestID,
		UserID:              s.UserID,
		Questions:           s.Questions,
		CurrentQuestion:     s.CurrentQuestion,
		Answers:             s.Answers,
		Marked:              s.Marked,
		Visited:             s.Visited,
		TimeLeft:            s.TimeLeft,
		Violations:          s.Violations,
		TabSwitchCount:      s.TabSwitchCount,
		FullscreenExitCount: s.FullscreenExitCount,
		SavedAt:             time.Now(),
	}
}

// Validate checks a snapshot against the current test definition before
// resume. Any failure wraps ErrInvalidSnapshot so the caller can discard the
// snapshot and start fresh instead of resuming corrupt state.
func (s *Snapshot) Validate(t *model.TestDefinition) error {
	if s == nil {
		return fmt.Errorf("nil snapshot: %w", ErrInvalidSnapshot)
	}
	if s.TestID != t.ID {
		return fmt.Errorf("snapshot test %s does not match test %s: %w", s.TestID, t.ID, ErrInvalidSnapshot)
	}
	if len(s.Questions) != len(t.Questions) {
		return fmt.Errorf("snapshot has %d questions, test has %d: %w", len(s.Questions), len(t.Questions), ErrInvalidSnapshot)
	}
	if len(s.Questions) == 0 {
		return fmt.Errorf("snapshot has no questions: %w", ErrInvalidSnapshot)
	}
	if s.CurrentQuestion < 0 || s.CurrentQuestion >= len(s.Questions) {
		return fmt.Errorf("snapshot current question %d out of range: %w", s.CurrentQuestion, ErrInvalidSnapshot)
	}
	if s.TimeLeft < 0 || s.TimeLeft > t.DurationSeconds {
		return fmt.Errorf("snapshot time left %d out of range: %w", s.TimeLeft, ErrInvalidSnapshot)
	}

	byID := make(map[int]*model.Question, len(t.Questions))
	for i := range t.Questions {
		byID[t.Questions[i].ID] = &t.Questions[i]
	}

	for i := range s.Questions {
		sq := &s.Questions[i]
		orig, ok := byID[sq.QuestionID]
		if !ok {
			return fmt.Errorf("snapshot question %d not in test: %w", sq.QuestionID, ErrInvalidSnapshot)
		}
		if err := validateShuffle(sq, orig); err != nil {
			return err
		}
	}

	for qid, idx := range s.Answers {
		if _, ok := byID[qid]; !ok {
			return fmt.Errorf("snapshot answer for unknown question %d: %w", qid, ErrInvalidSnapshot)
		}
		if idx < 0 || idx >= len(model.OptionKeys) {
			return fmt.Errorf("snapshot answer index %d for question %d out of range: %w", idx, qid, ErrInvalidSnapshot)
		}
	}
	return nil
}

// validateShuffle checks that a persisted shuffle is a bijection over the
// question's four option keys and that the stored correct index points at the
// question's correct key.
func validateShuffle(sq *ShuffledQuestion, orig *model.Question) error {
	if len(sq.Options) != len(model.OptionKeys) {
		return fmt.Errorf("question %d has %d options: %w", sq.QuestionID, len(sq.Options), ErrInvalidSnapshot)
	}

	seen := make(map[model.OptionKey]bool, len(model.OptionKeys))
	for _, opt := range sq.Options {
		if _, ok := orig.OptionText(opt.OriginalKey); !ok {
			return fmt.Errorf("question %d references option %q: %w", sq.QuestionID, opt.OriginalKey, ErrInvalidSnapshot)
		}
		if seen[opt.OriginalKey] {
			return fmt.Errorf("question %d repeats option %q: %w", sq.QuestionID, opt.OriginalKey, ErrInvalidSnapshot)
		}
		seen[opt.OriginalKey] = true
	}

	if sq.CorrectIndex < 0 || sq.CorrectIndex >= len(sq.Options) {
		return fmt.Errorf("question %d correct index %d out of range: %w", sq.QuestionID, sq.CorrectIndex, ErrInvalidSnapshot)
	}
	if sq.Options[sq.CorrectIndex].OriginalKey != orig.CorrectKey {
		return fmt.Errorf("question %d correct index does not match correct key: %w", sq.QuestionID, ErrInvalidSnapshot)
	}
	return nil
}
