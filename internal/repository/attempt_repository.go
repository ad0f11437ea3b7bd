package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/archprep/mockportal-backend/internal/model"
)

// AttemptRepository handles completed attempt data access.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// Create inserts a single attempt record.
func (r *AttemptRepository) Create(ctx context.Context, a *model.TestAttempt) error {
	violations, err := json.Marshal(a.Violations)
	if err != nil {
		return fmt.Errorf("marshal violations: %w", err)
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO test_attempts
		   (user_id, student_email, test_id, test_name, score, max_score,
		    total_questions, correct_answers, wrong_answers, unattempted,
		    time_taken, total_time, violations, tab_switch_count, submitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 RETURNING id`,
		a.UserID, a.StudentEmail, a.TestID, a.TestName, a.Score, a.MaxScore,
		a.TotalQuestions, a.CorrectAnswers, a.WrongAnswers, a.Unattempted,
		a.TimeTaken, a.TotalTime, violations, a.TabSwitchCount, a.SubmittedAt,
	).Scan(&a.ID)
}

// CreateBatch bulk-inserts attempts with CopyFrom. On a batch failure the
// caller falls back to row-by-row inserts so one bad record cannot sink the
// rest.
func (r *AttemptRepository) CreateBatch(ctx context.Context, attempts []model.TestAttempt) (int64, error) {
	if len(attempts) == 0 {
		return 0, nil
	}

	rows := make([][]any, 0, len(attempts))
	for i := range attempts {
		a := &attempts[i]
		violations, err := json.Marshal(a.Violations)
		if err != nil {
			return 0, fmt.Errorf("marshal violations for user %d: %w", a.UserID, err)
		}
		rows = append(rows, []any{
			a.UserID, a.StudentEmail, a.TestID, a.TestName, a.Score, a.MaxScore,
			a.TotalQuestions, a.CorrectAnswers, a.WrongAnswers, a.Unattempted,
			a.TimeTaken, a.TotalTime, violations, a.TabSwitchCount, a.SubmittedAt,
		})
	}

	return r.pool.CopyFrom(ctx,
		pgx.Identifier{"test_attempts"},
		[]string{
			"user_id", "student_email", "test_id", "test_name", "score", "max_score",
			"total_questions", "correct_answers", "wrong_answers", "unattempted",
			"time_taken", "total_time", "violations", "tab_switch_count", "submitted_at",
		},
		pgx.CopyFromRows(rows))
}

// ListByUser retrieves a student's attempt history, newest first.
func (r *AttemptRepository) ListByUser(ctx context.Context, userID int) ([]model.TestAttempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, student_email, test_id, test_name, score, max_score,
		        total_questions, correct_answers, wrong_answers, unattempted,
		        time_taken, total_time, violations, tab_switch_count, submitted_at
		 FROM test_attempts
		 WHERE user_id = $1
		 ORDER BY submitted_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAttempts(rows)
}

// ListAll retrieves every attempt, newest first, paginated.
func (r *AttemptRepository) ListAll(ctx context.Context, page, perPage int) ([]model.TestAttempt, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM test_attempts`).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, student_email, test_id, test_name, score, max_score,
		        total_questions, correct_answers, wrong_answers, unattempted,
		        time_taken, total_time, violations, tab_switch_count, submitted_at
		 FROM test_attempts
		 ORDER BY submitted_at DESC
		 LIMIT $1 OFFSET $2`, perPage, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	attempts, err := scanAttempts(rows)
	return attempts, total, err
}

func scanAttempts(rows pgx.Rows) ([]model.TestAttempt, error) {
	var attempts []model.TestAttempt
	for rows.Next() {
		var a model.TestAttempt
		var violations []byte
		if err := rows.Scan(&a.ID, &a.UserID, &a.StudentEmail, &a.TestID, &a.TestName,
			&a.Score, &a.MaxScore, &a.TotalQuestions, &a.CorrectAnswers, &a.WrongAnswers,
			&a.Unattempted, &a.TimeTaken, &a.TotalTime, &violations, &a.TabSwitchCount,
			&a.SubmittedAt); err != nil {
			return nil, err
		}
		if len(violations) > 0 {
			if err := json.Unmarshal(violations, &a.Violations); err != nil {
				return nil, fmt.Errorf("decode violations for attempt %d: %w", a.ID, err)
			}
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
