package exam

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotValidateAccepts(t *testing.T) {
	def := sampleTest(3, 600)
	c := startedController(t, def)
	snap := NewSnapshot(c.Session())

	assert.NoError(t, snap.Validate(def))
}

func TestSnapshotValidateRejectsTestMismatch(t *testing.T) {
	def := sampleTest(2, 600)
	c := startedController(t, def)
	snap := NewSnapshot(c.Session())
	snap.TestID = uuid.New()

	err := snap.Validate(def)
	assert.True(t, errors.Is(err, ErrInvalidSnapshot))
}

func TestSnapshotValidateRejectsQuestionCountMismatch(t *testing.T) {
	def := sampleTest(3, 600)
	c := startedController(t, def)
	snap := NewSnapshot(c.Session())
	snap.Questions = snap.Questions[:2]

	err := snap.Validate(def)
	assert.True(t, errors.Is(err, ErrInvalidSnapshot))
}

func TestSnapshotValidateRejectsDuplicateOptionKey(t *testing.T) {
	def := sampleTest(1, 600)
	c := startedController(t, def)
	snap := NewSnapshot(c.Session())
	snap.Questions[0].Options[1].OriginalKey = snap.Questions[0].Options[0].OriginalKey

	err := snap.Validate(def)
	assert.True(t, errors.Is(err, ErrInvalidSnapshot))
}

func TestSnapshotValidateRejectsCorruptCorrectIndex(t *testing.T) {
	def := sampleTest(1, 600)
	c := startedController(t, def)
	snap := NewSnapshot(c.Session())
	// Point the correct index at a wrong option.
	for i, opt := range snap.Questions[0].Options {
		if opt.OriginalKey != def.Questions[0].CorrectKey {
			snap.Questions[0].CorrectIndex = i
			break
		}
	}

	err := snap.Validate(def)
	assert.True(t, errors.Is(err, ErrInvalidSnapshot))
}

func TestSnapshotValidateRejectsOutOfRangeAnswer(t *testing.T) {
	def := sampleTest(2, 600)
	c := startedController(t, def)
	require.NoError(t, c.HandleAnswer(1, 0))
	snap := NewSnapshot(c.Session())
	snap.Answers[1] = 7

	err := snap.Validate(def)
	assert.True(t, errors.Is(err, ErrInvalidSnapshot))
}

func TestSnapshotValidateRejectsNegativeTime(t *testing.T) {
	def := sampleTest(1, 600)
	c := startedController(t, def)
	snap := NewSnapshot(c.Session())
	snap.TimeLeft = -1

	err := snap.Validate(def)
	assert.True(t, errors.Is(err, ErrInvalidSnapshot))
}

func TestSnapshotValidateRejectsNil(t *testing.T) {
	def := sampleTest(1, 600)
	var snap *Snapshot
	err := snap.Validate(def)
	assert.True(t, errors.Is(err, ErrInvalidSnapshot))
}

func TestSnapshotRoundTripThroughResume(t *testing.T) {
	def := sampleTest(2, 600)
	c := startedController(t, def)
	require.NoError(t, c.HandleAnswer(2, 1))
	snap := NewSnapshot(c.Session())

	restored := NewController(1, "student@example.com", rand.New(rand.NewSource(5)))
	require.NoError(t, restored.ResumeTest(def, &snap))
	assert.Equal(t, c.Session().Questions, restored.Session().Questions)
}
