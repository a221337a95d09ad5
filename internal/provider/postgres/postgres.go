// Package postgres reads and bans accounts directly in a GoTrue auth schema.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/terminally-online/warden/internal/directory"
	"github.com/terminally-online/warden/internal/provider"
)

const listUsersQuery = `
	SELECT id::text,
		COALESCE(email, ''),
		COALESCE(raw_user_meta_data, '{}'::jsonb),
		banned_until,
		last_sign_in_at,
		created_at
	FROM auth.users
	ORDER BY created_at, id
`

const setBanQuery = `
	UPDATE auth.users
	SET banned_until = $2,
		raw_user_meta_data = COALESCE(raw_user_meta_data, '{}'::jsonb) || jsonb_build_object('is_banned', $3::boolean),
		updated_at = NOW()
	WHERE id = $1::uuid
`

type Directory struct {
	pool *pgxpool.Pool
	now  func() time.Time
	log  zerolog.Logger
}

func Open(ctx context.Context, databaseURL string, log zerolog.Logger) (*Directory, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Directory{
		pool: pool,
		now:  time.Now,
		log:  log.With().Str("provider", "postgres").Logger(),
	}, nil
}

func (d *Directory) Close() {
	d.pool.Close()
}

func (d *Directory) ListDirectoryUsers(ctx context.Context) ([]directory.User, error) {
	rows, err := d.pool.Query(ctx, listUsersQuery)
	if err != nil {
		return nil, &provider.Error{Op: "list users", Err: fmt.Errorf("failed to query users: %w", err)}
	}
	defer rows.Close()

	accounts, err := scanAccounts(rows)
	if err != nil {
		return nil, &provider.Error{Op: "list users", Err: err}
	}
	return provider.ToUsers(accounts), nil
}

func scanAccounts(rows pgx.Rows) ([]provider.Account, error) {
	var accounts []provider.Account
	for rows.Next() {
		var a provider.Account
		if err := rows.Scan(&a.ID, &a.Email, &a.UserMetadata, &a.BannedUntil, &a.LastSignInAt, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read users: %w", err)
	}
	return accounts, nil
}

func (d *Directory) SetBanStatus(ctx context.Context, id string, banned bool) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return &provider.Error{Op: "update user", Message: fmt.Sprintf("invalid user id %q", id)}
	}

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return &provider.Error{Op: "update user", Err: fmt.Errorf("failed to begin transaction: %w", err)}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, setBanQuery, uid.String(), banExpiry(d.now(), banned), banned)
	if err != nil {
		return &provider.Error{Op: "update user", Err: fmt.Errorf("failed to update user: %w", err)}
	}
	if tag.RowsAffected() == 0 {
		return &provider.Error{Op: "update user", Message: "User not found", Err: provider.ErrNotFound}
	}

	if err := tx.Commit(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return &provider.Error{Op: "update user", Err: fmt.Errorf("failed to commit: %w", err)}
	}

	d.log.Info().Str("user_id", id).Bool("banned", banned).Msg("ban status updated")
	return nil
}

// banExpiry is the banned_until value for a ban flag; nil clears the ban.
func banExpiry(now time.Time, banned bool) *time.Time {
	if !banned {
		return nil
	}
	until := now.UTC().Add(provider.BanHorizon)
	return &until
}
