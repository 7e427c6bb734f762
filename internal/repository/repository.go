package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Kevin69007/formation-creation-entreprise-admin/internal/model"
)

// Unique-constraint violations surface as these sentinels so handlers can
// answer 409 without inspecting driver errors.
var (
	ErrUsernameTaken = errors.New("username_taken")
	ErrEmailTaken    = errors.New("email_taken")
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const userColumns = `id, username, email, password_hash, first_name, last_name, role, active,
	enrollment_date, first_login, last_login, last_activity, session_count, created_at, updated_at`

type userRow interface {
	Scan(dest ...interface{}) error
}

func scanUser(row userRow) (model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.Role,
		&user.Active,
		&user.EnrollmentDate,
		&user.FirstLogin,
		&user.LastLogin,
		&user.LastActivity,
		&user.SessionCount,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return model.User{}, err
	}
	user.Role = model.NormalizeRole(user.Role)
	return user, nil
}

func (s *Store) CreateUser(ctx context.Context, user model.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, username, email, password_hash, first_name, last_name, role, active,
			enrollment_date, first_login, last_login, last_activity, session_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, user.ID, user.Username, user.Email, user.PasswordHash, user.FirstName, user.LastName,
		user.Role, user.Active, user.EnrollmentDate, user.FirstLogin, user.LastLogin,
		user.LastActivity, user.SessionCount, user.CreatedAt, user.UpdatedAt)
	return translateUnique(err)
}

func (s *Store) GetUserByID(ctx context.Context, userID string) (model.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	return scanUser(row)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return scanUser(row)
}

// GetUserByLogin resolves the login identifier against both username and
// email, matching what clients send on the login form.
func (s *Store) GetUserByLogin(ctx context.Context, login string) (model.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users WHERE username = $1 OR email = $1
	`, login)
	return scanUser(row)
}

func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// UserUpdate carries a partial profile update; nil fields keep their
// stored value.
type UserUpdate struct {
	Email        *string
	FirstName    *string
	LastName     *string
	PasswordHash *string
}

func (s *Store) UpdateUser(ctx context.Context, username string, update UserUpdate, now time.Time) (model.User, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE users SET
			email = COALESCE($2, email),
			first_name = COALESCE($3, first_name),
			last_name = COALESCE($4, last_name),
			password_hash = COALESCE($5, password_hash),
			last_activity = $6,
			updated_at = $6
		WHERE username = $1
		RETURNING `+userColumns+`
	`, username, update.Email, update.FirstName, update.LastName, update.PasswordHash, now)
	user, err := scanUser(row)
	if err != nil {
		return model.User{}, translateUnique(err)
	}
	return user, nil
}

func (s *Store) UpdatePassword(ctx context.Context, userID, passwordHash string, now time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1
	`, userID, passwordHash, now)
	return err
}

func (s *Store) UpdateUserRole(ctx context.Context, username, role string, now time.Time) (model.User, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE users SET role = $2, updated_at = $3 WHERE username = $1
		RETURNING `+userColumns+`
	`, username, role, now)
	return scanUser(row)
}

func (s *Store) UpdateUserActive(ctx context.Context, username string, active bool, now time.Time) (model.User, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE users SET active = $2, updated_at = $3 WHERE username = $1
		RETURNING `+userColumns+`
	`, username, active, now)
	return scanUser(row)
}

// DeleteUser removes the user; progress rows go with it via the cascade
// on lesson_progress.user_id.
func (s *Store) DeleteUser(ctx context.Context, username string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE username = $1`, username)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// RecordLogin stamps the activity fields for a successful login.
// first_login is written exactly once.
func (s *Store) RecordLogin(ctx context.Context, userID string, now time.Time) (model.User, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE users SET
			last_login = $2,
			last_activity = $2,
			first_login = COALESCE(first_login, $2),
			session_count = session_count + 1,
			updated_at = $2
		WHERE id = $1
		RETURNING `+userColumns+`
	`, userID, now)
	return scanUser(row)
}

func (s *Store) TouchActivity(ctx context.Context, userID string, now time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users SET last_activity = $2, updated_at = $2 WHERE id = $1
	`, userID, now)
	return err
}

func (s *Store) CountUsers(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM users`)
}

func (s *Store) CountUsersByRole(ctx context.Context, role string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role = $1`, role).Scan(&count)
	return count, err
}

func (s *Store) CountActiveUsers(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM users WHERE active = true`)
}

func (s *Store) count(ctx context.Context, query string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, query).Scan(&count)
	return count, err
}

func translateUnique(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case "users_username_key":
			return ErrUsernameTaken
		case "users_email_key":
			return ErrEmailTaken
		}
	}
	return err
}
