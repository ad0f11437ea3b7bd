package model

import (
	"time"

	"github.com/google/uuid"
)

// TestAttempt is the immutable result record of one completed attempt.
// In-test violations travel embedded here, not streamed individually.
type TestAttempt struct {
	ID             int       `json:"id"`
	UserID         int       `json:"user_id"`
	StudentEmail   string    `json:"student_email"`
	TestID         uuid.UUID `json:"test_id"`
	TestName       string    `json:"test_name"`
	Score          int       `json:"score"`
	MaxScore       int       `json:"max_score"`
	TotalQuestions int       `json:"total_questions"`
	CorrectAnswers int       `json:"correct_answers"`
	WrongAnswers   int       `json:"wrong_answers"`
	Unattempted    int       `json:"unattempted"`
	TimeTaken      int       `json:"time_taken"`
	TotalTime      int       `json:"total_time"`
	Violations     []string  `json:"violations"`
	TabSwitchCount int       `json:"tab_switch_count"`
	SubmittedAt    time.Time `json:"submitted_at"`
}
