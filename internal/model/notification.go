package model

// NotificationRecord is one row of the notification ledger: the fact that
// pubkey has been sent a notification for event_id. Absence of a row means
// "not yet notified" - the row is only written after dispatch attempts
// complete.
type NotificationRecord struct {
	ID                   int64  `db:"id" json:"id"`
	EventID              string `db:"event_id" json:"event_id"`
	Pubkey               string `db:"pubkey" json:"pubkey"`
	ReceivedNotification bool   `db:"received_notification" json:"received_notification"`
	SentAt               *int64 `db:"sent_at" json:"sent_at,omitempty"` // unix seconds, nil for legacy rows
}

// DeviceRegistration maps a pubkey to one registered device token.
// A pubkey may own several tokens; a token belongs to exactly one pubkey
// at a time (last writer wins).
type DeviceRegistration struct {
	ID          int64  `db:"id" json:"id"`
	Pubkey      string `db:"pubkey" json:"-"`
	DeviceToken string `db:"device_token" json:"-"`
	AddedAt     *int64 `db:"added_at" json:"added_at,omitempty"` // unix seconds, nil for legacy rows
}

// RegisterDeviceRequest is the body of POST /user-info and DELETE /user-info.
type RegisterDeviceRequest struct {
	Pubkey      string `json:"pubkey"`
	DeviceToken string `json:"deviceToken"`
}
