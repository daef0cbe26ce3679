package repository

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/jmoiron/sqlx"

	"nostrpush/internal/model"
)

type notificationLedger struct {
	db    *sqlx.DB
	ready atomic.Bool
}

func NewNotificationLedger(db *sqlx.DB) NotificationLedger {
	return &notificationLedger{db: db}
}

// Setup creates the notifications table and applies additive migrations.
// The sent_at column was introduced after the table shipped, so it is probed
// for and added separately; legacy rows keep a NULL sent_at.
func (r *notificationLedger) Setup(ctx context.Context) error {
	createTable := `
		CREATE TABLE IF NOT EXISTS notifications (
			id BIGSERIAL PRIMARY KEY,
			event_id TEXT NOT NULL,
			pubkey TEXT NOT NULL,
			received_notification BOOLEAN NOT NULL DEFAULT TRUE
		)
	`
	if _, err := r.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("create notifications table: %w", err)
	}

	if err := addColumnIfMissing(ctx, r.db, "notifications", "sent_at", "BIGINT"); err != nil {
		return err
	}

	indexes := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS notifications_event_pubkey_idx ON notifications (event_id, pubkey)`,
		`CREATE INDEX IF NOT EXISTS notifications_event_id_idx ON notifications (event_id)`,
	}
	for _, q := range indexes {
		if _, err := r.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create notifications index: %w", err)
		}
	}

	r.ready.Store(true)
	return nil
}

// AlreadyNotified returns every pubkey recorded as notified for eventID.
func (r *notificationLedger) AlreadyNotified(ctx context.Context, eventID string) ([]string, error) {
	if !r.ready.Load() {
		return nil, model.ErrNotSetup
	}

	query := `
		SELECT pubkey FROM notifications
		WHERE event_id = $1 AND received_notification = TRUE
		ORDER BY id
	`
	var pubkeys []string
	if err := r.db.SelectContext(ctx, &pubkeys, query, eventID); err != nil {
		return nil, fmt.Errorf("get notified pubkeys: %w", err)
	}
	return pubkeys, nil
}

// SubscribersOf returns the thread participants of eventID. Anyone ever
// notified for an event is considered subscribed to its thread.
func (r *notificationLedger) SubscribersOf(ctx context.Context, eventID string) ([]string, error) {
	return r.AlreadyNotified(ctx, eventID)
}

// RecordNotified marks pubkey as notified for eventID. Upsert keyed on
// (event_id, pubkey); a second write for the same pair is a no-op in effect.
func (r *notificationLedger) RecordNotified(ctx context.Context, eventID, pubkey string, sentAt int64) error {
	if !r.ready.Load() {
		return model.ErrNotSetup
	}

	query := `
		INSERT INTO notifications (event_id, pubkey, received_notification, sent_at)
		VALUES ($1, $2, TRUE, $3)
		ON CONFLICT (event_id, pubkey) DO UPDATE SET
			received_notification = TRUE,
			sent_at = EXCLUDED.sent_at
	`
	if _, err := r.db.ExecContext(ctx, query, eventID, pubkey, sentAt); err != nil {
		return fmt.Errorf("record notification: %w", err)
	}
	return nil
}

// addColumnIfMissing probes information_schema before altering, so Setup can
// run on every start against any prior schema version without being
// destructive.
func addColumnIfMissing(ctx context.Context, db *sqlx.DB, table, column, columnType string) error {
	probe := `
		SELECT COUNT(*) FROM information_schema.columns
		WHERE table_name = $1 AND column_name = $2
	`
	var count int
	if err := db.GetContext(ctx, &count, probe, table, column); err != nil {
		return fmt.Errorf("probe column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil
	}

	alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, columnType)
	if _, err := db.ExecContext(ctx, alter); err != nil {
		return fmt.Errorf("add column %s.%s: %w", table, column, err)
	}
	return nil
}
