package exam

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archprep/mockportal-backend/internal/model"
)

func sampleQuestion(id int) model.Question {
	return model.Question{
		ID:         id,
		Prompt:     "capital of France",
		Type:       model.QuestionTypeNormal,
		OptionA:    "Paris",
		OptionB:    "Lyon",
		OptionC:    "Nice",
		OptionD:    "Lille",
		CorrectKey: model.OptionA,
	}
}

func TestShuffleQuestionBijection(t *testing.T) {
	q := sampleQuestion(1)

	for seed := int64(0); seed < 50; seed++ {
		rng := rand.New(rand.NewSource(seed))
		sq, err := ShuffleQuestion(&q, rng)
		require.NoError(t, err)
		require.Len(t, sq.Options, 4)

		seen := map[model.OptionKey]int{}
		for _, opt := range sq.Options {
			seen[opt.OriginalKey]++
			text, ok := q.OptionText(opt.OriginalKey)
			require.True(t, ok)
			assert.Equal(t, text, opt.Text)
		}
		for _, key := range model.OptionKeys {
			assert.Equal(t, 1, seen[key], "key %s must appear exactly once", key)
		}

		require.GreaterOrEqual(t, sq.CorrectIndex, 0)
		require.Less(t, sq.CorrectIndex, 4)
		assert.Equal(t, q.CorrectKey, sq.Options[sq.CorrectIndex].OriginalKey)
	}
}

func TestShuffleQuestionMalformedCorrectKey(t *testing.T) {
	q := sampleQuestion(7)
	q.CorrectKey = "E"

	_, err := ShuffleQuestion(&q, rand.New(rand.NewSource(1)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedQuestion))
	assert.Contains(t, err.Error(), "question 7")
}

func TestShuffleTestFailsFast(t *testing.T) {
	bad := sampleQuestion(2)
	bad.CorrectKey = "X"
	def := &model.TestDefinition{
		ID:              uuid.New(),
		Name:            "sample",
		DurationSeconds: 600,
		Questions:       []model.Question{sampleQuestion(1), bad, sampleQuestion(3)},
	}

	shuffled, err := ShuffleTest(def, rand.New(rand.NewSource(1)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedQuestion))
	assert.Nil(t, shuffled)
}

func TestShuffleTestPreservesQuestionOrder(t *testing.T) {
	def := &model.TestDefinition{
		ID:              uuid.New(),
		DurationSeconds: 600,
		Questions:       []model.Question{sampleQuestion(10), sampleQuestion(20), sampleQuestion(30)},
	}

	shuffled, err := ShuffleTest(def, rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	require.Len(t, shuffled, 3)
	assert.Equal(t, 10, shuffled[0].QuestionID)
	assert.Equal(t, 20, shuffled[1].QuestionID)
	assert.Equal(t, 30, shuffled[2].QuestionID)
}
