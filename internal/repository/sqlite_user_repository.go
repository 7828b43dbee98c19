package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/mahara-dz/mahara-api/internal/domain"
)

// SQLiteSchema mirrors the users table of the development database.
const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS users (
    id                  INTEGER PRIMARY KEY AUTOINCREMENT,
    email               VARCHAR(255) UNIQUE NOT NULL,
    password_hash       VARCHAR(255) NOT NULL,
    first_name          VARCHAR(100) NOT NULL,
    last_name           VARCHAR(100) NOT NULL,
    user_type           VARCHAR(20) NOT NULL DEFAULT 'customer',
    phone               VARCHAR(20),
    wilaya              VARCHAR(100),
    city                VARCHAR(100),
    preferred_language  VARCHAR(5) NOT NULL DEFAULT 'ar',
    verification_token  VARCHAR(255),
    is_verified         BOOLEAN NOT NULL DEFAULT 0,
    is_active           BOOLEAN NOT NULL DEFAULT 1,
    reset_token         VARCHAR(255),
    reset_token_expires DATETIME,
    profile_image       VARCHAR(255),
    created_at          DATETIME NOT NULL,
    updated_at          DATETIME NOT NULL
);`

const sqliteUserColumns = `id, email, password_hash, first_name, last_name, user_type, phone, wilaya, city,
        preferred_language, verification_token, is_verified, is_active, reset_token,
        reset_token_expires, profile_image, created_at, updated_at`

type sqliteUserRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSQLiteUserRepository returns a UserRepository over a sqlx handle opened
// with the modernc "sqlite" driver. The schema must already exist.
func NewSQLiteUserRepository(db *sqlx.DB) UserRepository {
	return &sqliteUserRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *sqliteUserRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (email, password_hash, first_name, last_name, user_type, phone, wilaya, city,
                           preferred_language, verification_token, is_verified, is_active, created_at, updated_at)
        VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`

	now := r.now()
	res, err := r.db.ExecContext(ctx, query,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		string(user.Role),
		user.Phone,
		user.Wilaya,
		user.City,
		user.PreferredLanguage,
		user.VerificationToken,
		user.IsVerified,
		user.IsActive,
		now,
		now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return domain.ErrUserAlreadyExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

func (r *sqliteUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+sqliteUserColumns+` FROM users WHERE id = ?`, id)
}

func (r *sqliteUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+sqliteUserColumns+` FROM users WHERE email = ?`, email)
}

func (r *sqliteUserRepository) FindActiveByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+sqliteUserColumns+` FROM users WHERE id = ? AND is_active = 1`, id)
}

func (r *sqliteUserRepository) FindActiveByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+sqliteUserColumns+` FROM users WHERE email = ? AND is_active = 1`, email)
}

func (r *sqliteUserRepository) FindByResetToken(ctx context.Context, token string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+sqliteUserColumns+` FROM users WHERE reset_token = ? AND is_active = 1`, token)
}

func (r *sqliteUserRepository) TouchLogin(ctx context.Context, id int64) error {
	return r.exec(ctx, `UPDATE users SET updated_at = ? WHERE id = ?`, r.now(), id)
}

func (r *sqliteUserRepository) MarkVerified(ctx context.Context, verificationToken string) error {
	const query = `
        UPDATE users SET is_verified = 1, verification_token = NULL, updated_at = ?
        WHERE verification_token = ? AND is_verified = 0`
	return r.exec(ctx, query, r.now(), verificationToken)
}

func (r *sqliteUserRepository) SetResetToken(ctx context.Context, id int64, token string, expiresAt time.Time) error {
	const query = `UPDATE users SET reset_token = ?, reset_token_expires = ?, updated_at = ? WHERE id = ?`
	return r.exec(ctx, query, token, expiresAt.UTC(), r.now(), id)
}

func (r *sqliteUserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	const query = `
        UPDATE users SET password_hash = ?, reset_token = NULL, reset_token_expires = NULL, updated_at = ?
        WHERE id = ?`
	return r.exec(ctx, query, passwordHash, r.now(), id)
}

func (r *sqliteUserRepository) SetActive(ctx context.Context, id int64, active bool) error {
	return r.exec(ctx, `UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?`, active, r.now(), id)
}

func (r *sqliteUserRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *sqliteUserRepository) getOne(ctx context.Context, query string, args ...any) (*domain.User, error) {
	var user domain.User
	if err := r.db.GetContext(ctx, &user, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *sqliteUserRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
