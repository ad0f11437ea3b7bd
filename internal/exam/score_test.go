package exam

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func scoredQuestions(n int) []ShuffledQuestion {
	qs := make([]ShuffledQuestion, 0, n)
	for i := 0; i < n; i++ {
		qs = append(qs, ShuffledQuestion{
			QuestionID: i + 1,
			Options: []ShuffledOption{
				{Text: "a", OriginalKey: "A"},
				{Text: "b", OriginalKey: "B"},
				{Text: "c", OriginalKey: "C"},
				{Text: "d", OriginalKey: "D"},
			},
			CorrectIndex: 2,
		})
	}
	return qs
}

func TestComputeScoreMarkingScheme(t *testing.T) {
	qs := scoredQuestions(4)
	answers := map[int]int{
		1: 2, // correct
		2: 0, // wrong
		3: 2, // correct
		// 4 unattempted
	}

	sum := ComputeScore(qs, answers)
	assert.Equal(t, 2, sum.Correct)
	assert.Equal(t, 1, sum.Incorrect)
	assert.Equal(t, 1, sum.Unattempted)
	assert.Equal(t, 2*MarksCorrect+1*MarksIncorrect, sum.TotalMarks)
	assert.Equal(t, 16, sum.MaxMarks)
}

func TestComputeScoreAllUnattempted(t *testing.T) {
	sum := ComputeScore(scoredQuestions(3), map[int]int{})
	assert.Equal(t, 0, sum.Correct)
	assert.Equal(t, 0, sum.Incorrect)
	assert.Equal(t, 3, sum.Unattempted)
	assert.Equal(t, 0, sum.TotalMarks)
	assert.Equal(t, 12, sum.MaxMarks)
}

func TestComputeScoreCountsSumToTotal(t *testing.T) {
	qs := scoredQuestions(10)
	answers := map[int]int{1: 2, 2: 1, 5: 2, 7: 0, 9: 2}

	sum := ComputeScore(qs, answers)
	assert.Equal(t, len(qs), sum.Correct+sum.Incorrect+sum.Unattempted)
}

func TestComputeScoreIdempotent(t *testing.T) {
	qs := scoredQuestions(5)
	answers := map[int]int{1: 2, 2: 3, 3: 2}

	first := ComputeScore(qs, answers)
	second := ComputeScore(qs, answers)
	assert.Equal(t, first, second)
}

func TestComputeScoreCanGoNegative(t *testing.T) {
	qs := scoredQuestions(3)
	answers := map[int]int{1: 0, 2: 0, 3: 0}

	sum := ComputeScore(qs, answers)
	assert.Equal(t, -3, sum.TotalMarks)
}
