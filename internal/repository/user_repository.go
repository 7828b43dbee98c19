package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mahara-dz/mahara-api/internal/domain"
)

// UserRepository defines persistence access for accounts. Lookups return
// domain.ErrUserNotFound when no matching row exists.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	FindActiveByID(ctx context.Context, id int64) (*domain.User, error)
	FindActiveByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByResetToken(ctx context.Context, token string) (*domain.User, error)
	TouchLogin(ctx context.Context, id int64) error
	MarkVerified(ctx context.Context, verificationToken string) error
	SetResetToken(ctx context.Context, id int64, token string, expiresAt time.Time) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	SetActive(ctx context.Context, id int64, active bool) error
	Ping(ctx context.Context) error
}

const pgUserColumns = `id, email, password_hash, first_name, last_name, user_type, phone, wilaya, city,
        preferred_language, verification_token, is_verified, is_active, reset_token,
        reset_token_expires, profile_image, created_at, updated_at`

const pgUniqueViolation = "23505"

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (email, password_hash, first_name, last_name, user_type, phone, wilaya, city,
                           preferred_language, verification_token, is_verified, is_active)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Role,
		user.Phone,
		user.Wilaya,
		user.City,
		user.PreferredLanguage,
		user.VerificationToken,
		user.IsVerified,
		user.IsActive,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return domain.ErrUserAlreadyExists
	}
	return err
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.queryOne(ctx, `SELECT `+pgUserColumns+` FROM users WHERE id=$1`, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.queryOne(ctx, `SELECT `+pgUserColumns+` FROM users WHERE email=$1`, email)
}

func (r *userRepository) FindActiveByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.queryOne(ctx, `SELECT `+pgUserColumns+` FROM users WHERE id=$1 AND is_active`, id)
}

func (r *userRepository) FindActiveByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.queryOne(ctx, `SELECT `+pgUserColumns+` FROM users WHERE email=$1 AND is_active`, email)
}

func (r *userRepository) FindByResetToken(ctx context.Context, token string) (*domain.User, error) {
	return r.queryOne(ctx, `SELECT `+pgUserColumns+` FROM users WHERE reset_token=$1 AND is_active`, token)
}

func (r *userRepository) TouchLogin(ctx context.Context, id int64) error {
	return r.exec(ctx, `UPDATE users SET updated_at=NOW() WHERE id=$1`, id)
}

func (r *userRepository) MarkVerified(ctx context.Context, verificationToken string) error {
	const query = `
        UPDATE users SET is_verified=TRUE, verification_token=NULL, updated_at=NOW()
        WHERE verification_token=$1 AND NOT is_verified`
	return r.exec(ctx, query, verificationToken)
}

func (r *userRepository) SetResetToken(ctx context.Context, id int64, token string, expiresAt time.Time) error {
	const query = `
        UPDATE users SET reset_token=$1, reset_token_expires=$2, updated_at=NOW()
        WHERE id=$3`
	return r.exec(ctx, query, token, expiresAt, id)
}

func (r *userRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	const query = `
        UPDATE users SET password_hash=$1, reset_token=NULL, reset_token_expires=NULL, updated_at=NOW()
        WHERE id=$2`
	return r.exec(ctx, query, passwordHash, id)
}

func (r *userRepository) SetActive(ctx context.Context, id int64, active bool) error {
	return r.exec(ctx, `UPDATE users SET is_active=$1, updated_at=NOW() WHERE id=$2`, active, id)
}

func (r *userRepository) Ping(ctx context.Context) error {
	if r.pool == nil {
		return errors.New("postgres pool not configured")
	}
	return r.pool.Ping(ctx)
}

func (r *userRepository) queryOne(ctx context.Context, query string, args ...any) (*domain.User, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	user, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[domain.User])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	return user, err
}

func (r *userRepository) exec(ctx context.Context, query string, args ...any) error {
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
