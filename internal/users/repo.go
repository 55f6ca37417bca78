package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

const userColumns = `
id, username, phone, password_hash, recovery_code_hash, role, status,
failed_login_attempts, locked_until, last_login_at, last_login_ip,
last_active_at, created_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Username, &u.Phone, &u.PasswordHash, &u.RecoveryCodeHash,
		&u.Role, &u.Status, &u.FailedAttempts, &u.LockedUntil, &u.LastLoginAt,
		&u.LastLoginIP, &u.LastActiveAt, &u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repo) Create(ctx context.Context, username, phone, passwordHash string, recoveryCodeHash *string) (*User, error) {
	const q = `
insert into users (username, phone, password_hash, recovery_code_hash)
values ($1, $2, $3, $4)
returning ` + userColumns + `;`

	u, err := scanUser(r.db.QueryRow(ctx, q, username, phone, passwordHash, recoveryCodeHash))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if strings.Contains(pgErr.ConstraintName, "phone") {
				return nil, ErrPhoneTaken
			}
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	return u, nil
}

func (r *Repo) ByID(ctx context.Context, id string) (*User, error) {
	const q = `select ` + userColumns + ` from users where id = $1;`
	return scanUser(r.db.QueryRow(ctx, q, id))
}

func (r *Repo) ByUsername(ctx context.Context, username string) (*User, error) {
	const q = `select ` + userColumns + ` from users where username = $1;`
	return scanUser(r.db.QueryRow(ctx, q, username))
}

func (r *Repo) ByPhone(ctx context.Context, phone string) (*User, error) {
	const q = `select ` + userColumns + ` from users where phone = $1;`
	return scanUser(r.db.QueryRow(ctx, q, phone))
}

// RecordLoginSuccess stamps the login and clears any lockout state.
func (r *Repo) RecordLoginSuccess(ctx context.Context, id, ip string) error {
	const q = `
update users
set last_login_at = now(), last_login_ip = $2, last_active_at = now(),
    failed_login_attempts = 0, locked_until = null
where id = $1;`
	_, err := r.db.Exec(ctx, q, id, ip)
	return err
}

// RecordLoginFailure bumps the failed-attempt counter atomically, starting a
// lockout window once the threshold is reached. Returns whether the account
// is now locked.
func (r *Repo) RecordLoginFailure(ctx context.Context, id string, threshold int, lockFor time.Duration) (bool, error) {
	const q = `
update users
set failed_login_attempts = case when failed_login_attempts + 1 >= $2 then 0 else failed_login_attempts + 1 end,
    locked_until = case when failed_login_attempts + 1 >= $2 then now() + $3 else locked_until end
where id = $1
returning locked_until is not null and locked_until > now();`
	var locked bool
	if err := r.db.QueryRow(ctx, q, id, threshold, lockFor).Scan(&locked); err != nil {
		return false, err
	}
	return locked, nil
}

// Touch marks the user as currently active. Called from auth middleware, so
// failures are the caller's to swallow.
func (r *Repo) Touch(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `update users set last_active_at = now() where id = $1;`, id)
	return err
}

func (r *Repo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	const q = `
update users
set password_hash = $2, failed_login_attempts = 0, locked_until = null
where id = $1;`
	ct, err := r.db.Exec(ctx, q, id, passwordHash)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) UpdateRecoveryCode(ctx context.Context, id, recoveryCodeHash string) error {
	ct, err := r.db.Exec(ctx, `update users set recovery_code_hash = $2 where id = $1;`, id, recoveryCodeHash)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AddLoginLog appends a login audit row. Best effort at call sites.
func (r *Repo) AddLoginLog(ctx context.Context, userID, ip, userAgent, status string) error {
	const q = `
insert into login_logs (user_id, ip, user_agent, status)
values ($1, $2, $3, $4);`
	_, err := r.db.Exec(ctx, q, userID, ip, userAgent, status)
	return err
}
