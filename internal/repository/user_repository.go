package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/archprep/mockportal-backend/internal/model"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// UserRepository handles user account data access.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// GetByEmail retrieves a user by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.UserAccount, error) {
	u := &model.UserAccount{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, role, approved, created_at
		 FROM users
		 WHERE email = $1`, email,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.Approved, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetByID retrieves a user by id.
func (r *UserRepository) GetByID(ctx context.Context, id int) (*model.UserAccount, error) {
	u := &model.UserAccount{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, role, approved, created_at
		 FROM users
		 WHERE id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.Approved, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Create inserts a new user account.
func (r *UserRepository) Create(ctx context.Context, u *model.UserAccount) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO users (email, password_hash, role, approved)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		u.Email, u.PasswordHash, u.Role, u.Approved,
	).Scan(&u.ID, &u.CreatedAt)
}

// SetApproved flips the approval flag on a pending account.
func (r *UserRepository) SetApproved(ctx context.Context, id int, approved bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET approved = $1 WHERE id = $2`, approved, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPending retrieves accounts awaiting approval, oldest first.
func (r *UserRepository) ListPending(ctx context.Context) ([]model.UserAccount, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, email, password_hash, role, approved, created_at
		 FROM users
		 WHERE approved = FALSE AND role = $1
		 ORDER BY created_at ASC`, model.RoleStudent)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []model.UserAccount
	for rows.Next() {
		var u model.UserAccount
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.Approved, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ListByRole retrieves all accounts with the given role.
func (r *UserRepository) ListByRole(ctx context.Context, role model.Role) ([]model.UserAccount, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, email, password_hash, role, approved, created_at
		 FROM users
		 WHERE role = $1
		 ORDER BY email ASC`, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []model.UserAccount
	for rows.Next() {
		var u model.UserAccount
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.Approved, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Delete removes a user account.
func (r *UserRepository) Delete(ctx context.Context, id int) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
