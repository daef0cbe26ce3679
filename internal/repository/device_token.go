package repository

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/jmoiron/sqlx"

	"nostrpush/internal/model"
)

type deviceTokenRepository struct {
	db    *sqlx.DB
	ready atomic.Bool
}

func NewDeviceTokenRepository(db *sqlx.DB) DeviceTokenRepository {
	return &deviceTokenRepository{db: db}
}

// Setup creates the user_info table and applies additive migrations.
// added_at arrived after the table shipped; legacy rows keep a NULL value.
func (r *deviceTokenRepository) Setup(ctx context.Context) error {
	createTable := `
		CREATE TABLE IF NOT EXISTS user_info (
			id BIGSERIAL PRIMARY KEY,
			pubkey TEXT NOT NULL,
			device_token TEXT NOT NULL UNIQUE
		)
	`
	if _, err := r.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("create user_info table: %w", err)
	}

	if err := addColumnIfMissing(ctx, r.db, "user_info", "added_at", "BIGINT"); err != nil {
		return err
	}

	index := `CREATE INDEX IF NOT EXISTS user_info_pubkey_idx ON user_info (pubkey)`
	if _, err := r.db.ExecContext(ctx, index); err != nil {
		return fmt.Errorf("create user_info index: %w", err)
	}

	r.ready.Store(true)
	return nil
}

// TokensFor returns all device tokens registered for pubkey.
func (r *deviceTokenRepository) TokensFor(ctx context.Context, pubkey string) ([]string, error) {
	if !r.ready.Load() {
		return nil, model.ErrNotSetup
	}

	query := `
		SELECT device_token FROM user_info
		WHERE pubkey = $1
		ORDER BY id
	`
	var tokens []string
	if err := r.db.SelectContext(ctx, &tokens, query, pubkey); err != nil {
		return nil, fmt.Errorf("get device tokens: %w", err)
	}
	return tokens, nil
}

// Register upserts a device token. If the token already exists for another
// pubkey it is reassigned to the new owner.
func (r *deviceTokenRepository) Register(ctx context.Context, pubkey, deviceToken string, addedAt int64) error {
	if !r.ready.Load() {
		return model.ErrNotSetup
	}

	query := `
		INSERT INTO user_info (pubkey, device_token, added_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (device_token) DO UPDATE SET
			pubkey = EXCLUDED.pubkey,
			added_at = EXCLUDED.added_at
	`
	if _, err := r.db.ExecContext(ctx, query, pubkey, deviceToken, addedAt); err != nil {
		return fmt.Errorf("register device token: %w", err)
	}
	return nil
}

// Unregister removes a device token. Removing a pair that does not exist is
// a no-op.
func (r *deviceTokenRepository) Unregister(ctx context.Context, pubkey, deviceToken string) error {
	if !r.ready.Load() {
		return model.ErrNotSetup
	}

	query := `DELETE FROM user_info WHERE pubkey = $1 AND device_token = $2`
	if _, err := r.db.ExecContext(ctx, query, pubkey, deviceToken); err != nil {
		return fmt.Errorf("unregister device token: %w", err)
	}
	return nil
}
