package model

import (
	"time"

	"github.com/google/uuid"
)

// OptionKey identifies one of the four answer options of a question.
type OptionKey string

const (
	OptionA OptionKey = "A"
	OptionB OptionKey = "B"
	OptionC OptionKey = "C"
	OptionD OptionKey = "D"
)

// OptionKeys lists the four option keys in canonical order.
var OptionKeys = [4]OptionKey{OptionA, OptionB, OptionC, OptionD}

// QuestionType enumerates the supported question layouts.
type QuestionType string

const (
	QuestionTypeNormal    QuestionType = "normal"
	QuestionTypeMatchPair QuestionType = "match-pair"
	QuestionTypeStatement QuestionType = "statement"
)

// Question is a single multiple-choice question. The correct option key must
// match one of the four option keys; the shuffler rejects questions where it
// does not.
type Question struct {
	ID           int          `json:"id"`
	Prompt       string       `json:"prompt"`
	Type         QuestionType `json:"type"`
	ColumnAItems []string     `json:"column_a_items,omitempty"`
	ColumnBItems []string     `json:"column_b_items,omitempty"`
	Statement1   string       `json:"statement1,omitempty"`
	Statement2   string       `json:"statement2,omitempty"`
	Image        string       `json:"image,omitempty"`
	OptionA      string       `json:"option_a"`
	OptionB      string       `json:"option_b"`
	OptionC      string       `json:"option_c"`
	OptionD      string       `json:"option_d"`
	CorrectKey   OptionKey    `json:"correct_key"`
}

// OptionText returns the option text for a given key, and whether the key is
// one of the four known keys.
func (q *Question) OptionText(key OptionKey) (string, bool) {
	switch key {
	case OptionA:
		return q.OptionA, true
	case OptionB:
		return q.OptionB, true
	case OptionC:
		return q.OptionC, true
	case OptionD:
		return q.OptionD, true
	}
	return "", false
}

// TestDefinition is an immutable test as authored by an administrator.
// Read-only to the session core.
type TestDefinition struct {
	ID              uuid.UUID  `json:"id"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	Category        string     `json:"category,omitempty"`
	DurationSeconds int        `json:"duration_seconds"`
	Questions       []Question `json:"questions"`
	CreatedAt       time.Time  `json:"created_at"`
}

// TestSummary is the catalog view of a test (no questions).
type TestSummary struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Category        string    `json:"category,omitempty"`
	DurationSeconds int       `json:"duration_seconds"`
	QuestionCount   int       `json:"question_count"`
}
