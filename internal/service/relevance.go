package service

import (
	"context"
	"fmt"

	"nostrpush/internal/model"
)

// ThreadLookup returns the pubkeys previously notified for a referenced
// event - the known participant list of that event's thread. The ledger's
// SubscribersOf satisfies this.
type ThreadLookup func(ctx context.Context, eventID string) ([]string, error)

// RelevanceResolver computes the candidate recipient set for an event.
type RelevanceResolver struct{}

func NewRelevanceResolver() *RelevanceResolver {
	return &RelevanceResolver{}
}

// RelevantPubkeys returns the author, every directly p-tagged pubkey, and
// the subscribers of every event this one references as a thread reply.
// Expansion is one level deep: referenced events' subscribers, not those
// events' own references. Order is deterministic (author, p-tags in tag
// order, then thread subscribers per e-tag), deduplicated.
func (r *RelevanceResolver) RelevantPubkeys(ctx context.Context, event *model.Event, lookup ThreadLookup) ([]string, error) {
	seen := make(map[string]bool)
	var pubkeys []string
	add := func(pubkey string) {
		if pubkey == "" || seen[pubkey] {
			return
		}
		seen[pubkey] = true
		pubkeys = append(pubkeys, pubkey)
	}

	add(event.PubKey)
	for _, p := range event.ReferencedPubkeys() {
		add(p)
	}

	for _, eventID := range event.ReferencedEventIDs() {
		subscribers, err := lookup(ctx, eventID)
		if err != nil {
			return nil, fmt.Errorf("thread lookup for %s: %w", eventID, err)
		}
		for _, p := range subscribers {
			add(p)
		}
	}

	return pubkeys, nil
}
