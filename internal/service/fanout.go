package service

import (
	"context"
	"log"
	"time"

	"nostrpush/internal/model"
	"nostrpush/internal/repository"
)

// EventMaxAge bounds backlog replay: events older than this are dropped
// without any ledger write or dispatch.
const EventMaxAge = 7 * 24 * time.Hour

// muteCheckTimeout bounds one candidate's mute lookup. A mute provider that
// hangs, like a relay that stops responding mid-subscription, must not stall
// the worker; the timeout trips the fail-open path instead.
const muteCheckTimeout = 5 * time.Second

// Fan-out terminal states.
const (
	StatusSkippedStale = "skipped_stale"
	StatusNoCandidates = "skipped_no_candidates"
	StatusCompleted    = "completed"
)

// FanoutResult describes how processing of one event terminated.
type FanoutResult struct {
	Status   string
	Notified int
}

// FanoutService drives the end-to-end "notify for this event" operation:
// candidate computation, deduplication against the ledger, mute suppression,
// dispatch to registered devices, and recording of outcomes.
type FanoutService struct {
	ledger     repository.NotificationLedger
	tokenRepo  repository.DeviceTokenRepository
	resolver   *RelevanceResolver
	muter      Muter
	dispatcher Dispatcher

	// now is injected so tests can control the freshness gate and sent_at
	// timestamps deterministically.
	now func() time.Time

	// muteTimeout is per mute check; tests shorten it.
	muteTimeout time.Duration
}

func NewFanoutService(
	ledger repository.NotificationLedger,
	tokenRepo repository.DeviceTokenRepository,
	muter Muter,
	dispatcher Dispatcher,
) *FanoutService {
	return &FanoutService{
		ledger:      ledger,
		tokenRepo:   tokenRepo,
		resolver:    NewRelevanceResolver(),
		muter:       muter,
		dispatcher:  dispatcher,
		now:         time.Now,
		muteTimeout: muteCheckTimeout,
	}
}

// Process runs the fan-out state machine for one event, in strict order:
// freshness gate, candidate computation, dedup filter, self filter,
// suppression filter, dispatch, record. A candidate's ledger record is
// written after its dispatch attempts complete, regardless of per-token
// success: a transport failure to one device is not retried and does not
// block the dedup record.
func (s *FanoutService) Process(ctx context.Context, event *model.Event) (*FanoutResult, error) {
	if event == nil || event.ID == "" || event.PubKey == "" {
		return nil, model.ErrInvalidEvent
	}

	// 1. Freshness gate
	if s.now().Sub(event.CreatedAt.Time()) > EventMaxAge {
		log.Printf("[Fanout] Skipping stale event id=%s created_at=%d", event.ID, event.CreatedAt)
		return &FanoutResult{Status: StatusSkippedStale}, nil
	}

	// 2. Candidate computation (thread expansion via the ledger)
	candidates, err := s.resolver.RelevantPubkeys(ctx, event, s.ledger.SubscribersOf)
	if err != nil {
		return nil, err
	}

	// 3. Dedup filter
	alreadyNotified, err := s.ledger.AlreadyNotified(ctx, event.ID)
	if err != nil {
		return nil, err
	}
	notified := make(map[string]bool, len(alreadyNotified))
	for _, p := range alreadyNotified {
		notified[p] = true
	}

	// 4. Self filter: an author is never notified of their own event.
	toNotify := make([]string, 0, len(candidates))
	for _, pubkey := range candidates {
		if notified[pubkey] || pubkey == event.PubKey {
			continue
		}
		toNotify = append(toNotify, pubkey)
	}

	// 5. Suppression filter. A provider error counts as "not suppressed" so
	// a flaky mute source never silently drops legitimate notifications.
	surviving := make([]string, 0, len(toNotify))
	for _, pubkey := range toNotify {
		muteCtx, cancel := context.WithTimeout(ctx, s.muteTimeout)
		muted, err := s.muter.IsMuted(muteCtx, event, pubkey)
		cancel()
		if err != nil {
			log.Printf("[Fanout] Mute check failed for pubkey=%s event=%s, assuming not muted: %v", pubkey, event.ID, err)
			muted = false
		}
		if muted {
			log.Printf("[Fanout] Suppressed notification for pubkey=%s event=%s", pubkey, event.ID)
			continue
		}
		surviving = append(surviving, pubkey)
	}

	if len(surviving) == 0 {
		return &FanoutResult{Status: StatusNoCandidates}, nil
	}

	// 6+7. Dispatch and record, per candidate.
	for _, pubkey := range surviving {
		if err := s.notifyPubkey(ctx, event, pubkey); err != nil {
			return nil, err
		}
	}

	log.Printf("[Fanout] Completed event=%s notified=%d", event.ID, len(surviving))
	return &FanoutResult{Status: StatusCompleted, Notified: len(surviving)}, nil
}

// notifyPubkey dispatches the event to every device token of pubkey, then
// records the ledger entry. Per-token dispatch failures are logged and do
// not block the remaining tokens or the record.
func (s *FanoutService) notifyPubkey(ctx context.Context, event *model.Event, pubkey string) error {
	tokens, err := s.tokenRepo.TokensFor(ctx, pubkey)
	if err != nil {
		return err
	}

	for _, token := range tokens {
		if err := s.dispatcher.Deliver(ctx, event, token); err != nil {
			log.Printf("[Fanout] Dispatch failed for pubkey=%s token=%s event=%s: %v", pubkey, token, event.ID, err)
		}
	}

	return s.ledger.RecordNotified(ctx, event.ID, pubkey, s.now().Unix())
}
