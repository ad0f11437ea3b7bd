package exam

import (
	"fmt"
	"math/rand"

	"github.com/archprep/mockportal-backend/internal/model"
)

// ShuffledOption is one display option of a shuffled question, keeping the
// mapping back to the authored option key.
type ShuffledOption struct {
	Text        string          `json:"text"`
	OriginalKey model.OptionKey `json:"original_key"`
}

// ShuffledQuestion is the per-attempt view of a question: the four options in
// randomized display order plus the display position of the correct option.
// The permutation is computed once at session start and persisted with the
// snapshot so resume restores the identical display order.
type ShuffledQuestion struct {
	QuestionID   int                `json:"question_id"`
	Prompt       string             `json:"prompt"`
	Type         model.QuestionType `json:"type"`
	ColumnAItems []string           `json:"column_a_items,omitempty"`
	ColumnBItems []string           `json:"column_b_items,omitempty"`
	Statement1   string             `json:"statement1,omitempty"`
	Statement2   string             `json:"statement2,omitempty"`
	Image        string             `json:"image,omitempty"`
	Options      []ShuffledOption   `json:"options"`
	CorrectIndex int                `json:"correct_index"`
}

// ShuffleQuestion produces a randomized option order for one question.
// Returns ErrMalformedQuestion when the correct key matches none of the four
// option keys; it never silently defaults.
func ShuffleQuestion(q *model.Question, rng *rand.Rand) (ShuffledQuestion, error) {
	if _, ok := q.OptionText(q.CorrectKey); !ok {
		return ShuffledQuestion{}, fmt.Errorf("question %d: %w", q.ID, ErrMalformedQuestion)
	}

	options := make([]ShuffledOption, 0, len(model.OptionKeys))
	for _, key := range model.OptionKeys {
		text, _ := q.OptionText(key)
		options = append(options, ShuffledOption{Text: text, OriginalKey: key})
	}

	rng.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})

	correctIndex := -1
	for i, opt := range options {
		if opt.OriginalKey == q.CorrectKey {
			correctIndex = i
			break
		}
	}
	if correctIndex < 0 {
		// Unreachable given the key check above; kept as a hard guard.
		return ShuffledQuestion{}, fmt.Errorf("question %d: %w", q.ID, ErrMalformedQuestion)
	}

	return ShuffledQuestion{
		QuestionID:   q.ID,
		Prompt:       q.Prompt,
		Type:         q.Type,
		ColumnAItems: q.ColumnAItems,
		ColumnBItems: q.ColumnBItems,
		Statement1:   q.Statement1,
		Statement2:   q.Statement2,
		Image:        q.Image,
		Options:      options,
		CorrectIndex: correctIndex,
	}, nil
}

// ShuffleTest shuffles every question of a test, failing fast on the first
// malformed question.
func ShuffleTest(t *model.TestDefinition, rng *rand.Rand) ([]ShuffledQuestion, error) {
	shuffled := make([]ShuffledQuestion, 0, len(t.Questions))
	for i := range t.Questions {
		sq, err := ShuffleQuestion(&t.Questions[i], rng)
		if err != nil {
			return nil, err
		}
		shuffled = append(shuffled, sq)
	}
	return shuffled, nil
}
