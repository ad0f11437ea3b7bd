package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/archprep/mockportal-backend/internal/model"
)

// TestRepository handles test and question data access.
type TestRepository struct {
	pool *pgxpool.Pool
}

// NewTestRepository creates a new TestRepository.
func NewTestRepository(pool *pgxpool.Pool) *TestRepository {
	return &TestRepository{pool: pool}
}

// ListSummaries retrieves the catalog view of all tests.
func (r *TestRepository) ListSummaries(ctx context.Context) ([]model.TestSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT t.id, t.name, t.description, t.category, t.duration_seconds,
		        COUNT(q.id)
		 FROM tests t
		 LEFT JOIN questions q ON q.test_id = t.id
		 GROUP BY t.id
		 ORDER BY t.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []model.TestSummary
	for rows.Next() {
		var s model.TestSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.Category, &s.DurationSeconds, &s.QuestionCount); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// GetByID retrieves a full test definition with its questions in authored
// order.
func (r *TestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.TestDefinition, error) {
	t := &model.TestDefinition{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, description, category, duration_seconds, created_at
		 FROM tests
		 WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &t.Description, &t.Category, &t.DurationSeconds, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, prompt, type, column_a_items, column_b_items,
		        statement1, statement2, image,
		        option_a, option_b, option_c, option_d, correct_key
		 FROM questions
		 WHERE test_id = $1
		 ORDER BY position ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.Prompt, &q.Type, &q.ColumnAItems, &q.ColumnBItems,
			&q.Statement1, &q.Statement2, &q.Image,
			&q.OptionA, &q.OptionB, &q.OptionC, &q.OptionD, &q.CorrectKey); err != nil {
			return nil, err
		}
		t.Questions = append(t.Questions, q)
	}
	return t, rows.Err()
}

// Create inserts a test with its questions in one transaction.
func (r *TestRepository) Create(ctx context.Context, t *model.TestDefinition) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if err := tx.QueryRow(ctx,
		`INSERT INTO tests (id, name, description, category, duration_seconds)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		t.ID, t.Name, t.Description, t.Category, t.DurationSeconds,
	).Scan(&t.CreatedAt); err != nil {
		return err
	}

	for i := range t.Questions {
		q := &t.Questions[i]
		if err := tx.QueryRow(ctx,
			`INSERT INTO questions
			   (test_id, position, prompt, type, column_a_items, column_b_items,
			    statement1, statement2, image,
			    option_a, option_b, option_c, option_d, correct_key)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			 RETURNING id`,
			t.ID, i, q.Prompt, q.Type, q.ColumnAItems, q.ColumnBItems,
			q.Statement1, q.Statement2, q.Image,
			q.OptionA, q.OptionB, q.OptionC, q.OptionD, q.CorrectKey,
		).Scan(&q.ID); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// Delete removes a test and its questions.
func (r *TestRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tests WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
