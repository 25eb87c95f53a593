package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"chat-server/internal/models"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("user already exists")
)

const userColumns = `user_id, name, email, password, department, role, status, status_message, is_active, created_at, updated_at`

// UserRepository abstracts user persistence.
type UserRepository interface {
	CreateUser(ctx context.Context, name, email, passwordHash string, department *string) (models.User, error)
	GetUser(ctx context.Context, userID int64) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateProfile(ctx context.Context, userID int64, name, department, statusMessage *string) (models.User, error)
	UpdateStatus(ctx context.Context, userID int64, status string) error
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// CreateUser inserts a new account. Duplicate name or email maps to
// ErrDuplicateUser via the unique constraints.
func (r *UserRepo) CreateUser(ctx context.Context, name, email, passwordHash string, department *string) (models.User, error) {
	var user models.User
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO users (name, email, password, department) VALUES ($1, $2, $3, $4) RETURNING `+userColumns,
		name, email, passwordHash, department).StructScan(&user)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return models.User{}, ErrDuplicateUser
		}
		return models.User{}, err
	}
	return user, nil
}

// GetUser fetches a single active user.
func (r *UserRepo) GetUser(ctx context.Context, userID int64) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE user_id=$1 AND is_active=TRUE`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// GetUserByEmail fetches an active user by email for login.
func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE email=$1 AND is_active=TRUE`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// ListUsers returns the active user directory.
func (r *UserRepo) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users WHERE is_active=TRUE ORDER BY name ASC`)
	return users, err
}

// UpdateProfile patches the provided fields and returns the updated row.
func (r *UserRepo) UpdateProfile(ctx context.Context, userID int64, name, department, statusMessage *string) (models.User, error) {
	var user models.User
	err := r.db.QueryRowxContext(ctx,
		`UPDATE users SET
            name = COALESCE($2, name),
            department = COALESCE($3, department),
            status_message = COALESCE($4, status_message),
            updated_at = NOW()
         WHERE user_id=$1 AND is_active=TRUE
         RETURNING `+userColumns,
		userID, name, department, statusMessage).StructScan(&user)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return models.User{}, ErrDuplicateUser
		}
		return models.User{}, err
	}
	return user, nil
}

// UpdateStatus persists a presence transition.
func (r *UserRepo) UpdateStatus(ctx context.Context, userID int64, status string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET status=$2, updated_at=NOW() WHERE user_id=$1`, userID, status)
	return err
}
