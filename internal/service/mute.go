package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/nbd-wtf/go-nostr"

	"nostrpush/internal/model"
)

// Muter decides whether a candidate should not be notified for an event.
// The fan-out treats a Muter error as "not muted".
type Muter interface {
	IsMuted(ctx context.Context, event *model.Event, pubkey string) (bool, error)
}

// RelayMuteProvider answers mute checks from the candidate's public mute
// list (kind 10000), fetched from the configured relay on demand.
type RelayMuteProvider struct {
	relayURL string

	mu    sync.Mutex
	relay *nostr.Relay
}

func NewRelayMuteProvider(relayURL string) *RelayMuteProvider {
	return &RelayMuteProvider{relayURL: relayURL}
}

// IsMuted fetches pubkey's latest mute list and evaluates it against the
// event. No mute list means not muted.
func (m *RelayMuteProvider) IsMuted(ctx context.Context, event *model.Event, pubkey string) (bool, error) {
	muteList, err := m.fetchMuteList(ctx, pubkey)
	if err != nil {
		return false, err
	}
	if muteList == nil {
		return false, nil
	}
	return MuteListMatches(muteList, event), nil
}

// MuteListMatches evaluates one mute-list event against a candidate event.
// Supported entries: "p" mutes an author, "e" mutes an event or its thread,
// "t" mutes a hashtag (matched against the event's "h" tags), "word" mutes
// content containing the word, case-insensitively.
func MuteListMatches(muteList *nostr.Event, event *model.Event) bool {
	for _, tag := range muteList.Tags {
		if len(tag) < 2 {
			continue
		}
		switch tag[0] {
		case "p":
			if event.PubKey == tag[1] {
				return true
			}
		case "e":
			if event.ID == tag[1] {
				return true
			}
			for _, id := range event.ReferencedEventIDs() {
				if id == tag[1] {
					return true
				}
			}
		case "t":
			for _, hashtag := range event.TagValues("h") {
				if hashtag == tag[1] {
					return true
				}
			}
		case "word":
			if strings.Contains(strings.ToLower(event.Content), strings.ToLower(tag[1])) {
				return true
			}
		}
	}
	return false
}

// fetchMuteList queries the relay for pubkey's latest kind-10000 event.
// Returns nil without error when the pubkey has published none.
func (m *RelayMuteProvider) fetchMuteList(ctx context.Context, pubkey string) (*nostr.Event, error) {
	relay, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}

	sub, err := relay.Subscribe(ctx, nostr.Filters{{
		Kinds:   []int{nostr.KindMuteList},
		Authors: []string{pubkey},
		Limit:   1,
	}})
	if err != nil {
		m.dropConnection()
		return nil, fmt.Errorf("subscribe for mute list: %w", err)
	}
	defer sub.Unsub()

	for {
		select {
		case ev, ok := <-sub.Events:
			// A closed channel means the relay dropped the connection before
			// EOSE. Surface an error so the caller can fail open instead of
			// spinning on the dead subscription.
			if !ok {
				m.dropConnection()
				return nil, fmt.Errorf("relay closed subscription before eose")
			}
			if ev != nil {
				return ev, nil
			}
		case <-sub.EndOfStoredEvents:
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (m *RelayMuteProvider) connect(ctx context.Context) (*nostr.Relay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.relay != nil {
		return m.relay, nil
	}

	relay, err := nostr.RelayConnect(ctx, m.relayURL)
	if err != nil {
		return nil, fmt.Errorf("connect to relay %s: %w", m.relayURL, err)
	}
	m.relay = relay
	return relay, nil
}

func (m *RelayMuteProvider) dropConnection() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.relay != nil {
		m.relay.Close()
		m.relay = nil
	}
}
