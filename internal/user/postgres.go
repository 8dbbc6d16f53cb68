package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Constraint names from the users migration.
const (
	constraintEmail    = "users_email_lower_unique"
	constraintUsername = "users_username_lower_unique"
	constraintProvider = "users_provider_uid_unique"

	pqUniqueViolation = "23505"
)

const selectColumns = `
	SELECT id, email, username, name, password_hash,
	       provider, provider_uid, deleted_at, created_at, updated_at
	FROM users`

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindActiveByLogin(ctx context.Context, login string) (*User, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+`
		WHERE deleted_at IS NULL
		  AND (LOWER(email) = LOWER($1) OR LOWER(username) = LOWER($1))
		ORDER BY created_at
		LIMIT 1`, login)
	return scanUser(row)
}

func (r *PostgresRepository) FindActiveByID(ctx context.Context, id string) (*User, error) {
	// A malformed id cannot match a uuid column; skip the round trip.
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	row := r.db.QueryRowContext(ctx, selectColumns+`
		WHERE id = $1 AND deleted_at IS NULL`, id)
	return scanUser(row)
}

func (r *PostgresRepository) FindActiveByProvider(ctx context.Context, provider, providerUID string) (*User, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+`
		WHERE provider = $1 AND provider_uid = $2 AND deleted_at IS NULL`,
		provider, providerUID)
	return scanUser(row)
}

func (r *PostgresRepository) EmailTaken(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE LOWER(email) = LOWER($1))`, email)
}

func (r *PostgresRepository) UsernameTaken(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE LOWER(username) = LOWER($1))`, username)
}

func (r *PostgresRepository) exists(ctx context.Context, query, arg string) (bool, error) {
	var ok bool
	if err := r.db.QueryRowContext(ctx, query, arg).Scan(&ok); err != nil {
		return false, fmt.Errorf("user: db error: %w", err)
	}
	return ok, nil
}

func (r *PostgresRepository) Create(ctx context.Context, u *User) error {
	if u == nil {
		return errors.New("user: nil user")
	}

	id := uuid.NewString()
	var createdAt, updatedAt time.Time

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, username, name, password_hash, provider, provider_uid)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		id, u.Email, u.Username, u.Name, u.PasswordHash,
		nullString(u.Provider), nullString(u.ProviderUID),
	).Scan(&createdAt, &updatedAt)
	if err != nil {
		return mapUniqueViolation(err)
	}

	u.ID = id
	u.CreatedAt = createdAt
	u.UpdatedAt = updatedAt
	return nil
}

func mapUniqueViolation(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != pqUniqueViolation {
		return fmt.Errorf("user: db error: %w", err)
	}
	switch pqErr.Constraint {
	case constraintEmail:
		return ErrEmailTaken
	case constraintUsername:
		return ErrUsernameTaken
	case constraintProvider:
		return ErrProviderTaken
	default:
		return fmt.Errorf("user: unique violation on %s: %w", pqErr.Constraint, err)
	}
}

func scanUser(row *sql.Row) (*User, error) {
	var (
		u           User
		name        sql.NullString
		hash        sql.NullString
		provider    sql.NullString
		providerUID sql.NullString
		deletedAt   sql.NullTime
	)

	err := row.Scan(
		&u.ID, &u.Email, &u.Username, &name, &hash,
		&provider, &providerUID, &deletedAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user: db error: %w", err)
	}

	u.Name = name.String
	u.PasswordHash = hash.String
	u.Provider = provider.String
	u.ProviderUID = providerUID.String
	if deletedAt.Valid {
		t := deletedAt.Time
		u.DeletedAt = &t
	}
	return &u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
