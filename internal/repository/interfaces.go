package repository

import (
	"context"
)

// NotificationLedger is the persistent record of which (event, pubkey) pairs
// have already been notified. It is the source of truth for deduplication and
// for thread-subscriber discovery.
type NotificationLedger interface {
	// Setup creates or migrates the notifications table. Idempotent, safe to
	// call on every process start. Queries before Setup fail with
	// model.ErrNotSetup.
	Setup(ctx context.Context) error
	// AlreadyNotified returns every pubkey with an existing record for
	// eventID, in insertion order. No rows means an empty result, not an
	// error.
	AlreadyNotified(ctx context.Context, eventID string) ([]string, error)
	// SubscribersOf returns the known thread participants of eventID: any
	// pubkey ever notified for it. Same underlying query as AlreadyNotified.
	SubscribersOf(ctx context.Context, eventID string) ([]string, error)
	// RecordNotified upserts the (eventID, pubkey) record. Writing the same
	// pair twice is a no-op in effect.
	RecordNotified(ctx context.Context, eventID, pubkey string, sentAt int64) error
}

// DeviceTokenRepository maps pubkeys to their registered device tokens.
type DeviceTokenRepository interface {
	// Setup creates or migrates the user_info table. Idempotent.
	Setup(ctx context.Context) error
	// TokensFor returns the device tokens registered for pubkey, in
	// registration order. Possibly empty.
	TokensFor(ctx context.Context, pubkey string) ([]string, error)
	// Register upserts a (pubkey, deviceToken) pair. A token already owned
	// by another pubkey is reassigned (device changed hands).
	Register(ctx context.Context, pubkey, deviceToken string, addedAt int64) error
	// Unregister deletes the matching pair. Deleting a missing pair is a
	// no-op, not an error.
	Unregister(ctx context.Context, pubkey, deviceToken string) error
}
