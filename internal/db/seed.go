package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// EnsureAdmin creates the bootstrap admin account if no user holds the
// configured username. An existing account is left untouched so a changed env
// password does not silently rewrite credentials.
func EnsureAdmin(ctx context.Context, pool *pgxpool.Pool, username, password string) error {
	var exists bool
	err := pool.QueryRow(ctx, `select exists (select 1 from users where username = $1);`, username).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check admin account: %w", err)
	}
	if exists {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	const q = `
insert into users (username, password_hash, role)
values ($1, $2, 'ADMIN')
on conflict (username) do nothing;`
	if _, err := pool.Exec(ctx, q, username, string(hash)); err != nil {
		return fmt.Errorf("seed admin account: %w", err)
	}
	return nil
}
