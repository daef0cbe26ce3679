package model

import "errors"

// ErrNotSetup is returned when a repository is queried before its Setup has
// completed. Answering queries against an unset-up store would silently read
// as "nobody notified yet", so this is surfaced as a hard error instead.
var ErrNotSetup = errors.New("store not set up, run Setup first")

// ErrInvalidEvent is returned when an inbound event is structurally unusable
// (missing id or author pubkey).
var ErrInvalidEvent = errors.New("invalid event")
