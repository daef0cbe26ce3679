package model

import (
	"github.com/nbd-wtf/go-nostr"
)

// Event wraps the wire-level nostr event with tag helpers used by the
// fan-out pipeline. The underlying event is immutable once received.
type Event struct {
	nostr.Event
}

// NewEvent wraps a raw nostr event.
func NewEvent(ev nostr.Event) *Event {
	return &Event{Event: ev}
}

// TagValues returns the second element of every tag whose first element
// matches tagType, in tag order.
func (e *Event) TagValues(tagType string) []string {
	var values []string
	for _, tag := range e.Tags {
		if len(tag) >= 2 && tag[0] == tagType {
			values = append(values, tag[1])
		}
	}
	return values
}

// ReferencedPubkeys returns the pubkeys this event mentions via "p" tags,
// deduplicated, preserving first-seen order.
func (e *Event) ReferencedPubkeys() []string {
	return dedupe(e.TagValues("p"))
}

// ReferencedEventIDs returns the event ids this event references via "e"
// tags (thread replies), deduplicated, preserving first-seen order.
func (e *Event) ReferencedEventIDs() []string {
	return dedupe(e.TagValues("e"))
}

// ReferencesPubkey reports whether the event mentions pubkey via a "p" tag.
func (e *Event) ReferencesPubkey(pubkey string) bool {
	for _, p := range e.TagValues("p") {
		if p == pubkey {
			return true
		}
	}
	return false
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		result = append(result, v)
	}
	return result
}
