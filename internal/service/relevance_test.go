package service

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/nbd-wtf/go-nostr"
)

func noLookup(ctx context.Context, eventID string) ([]string, error) {
	return nil, nil
}

func TestRelevance_AuthorAndMentions(t *testing.T) {
	resolver := NewRelevanceResolver()

	event := makeEvent("e1", "alice", 1700000000, nostr.Tags{
		{"p", "bob"},
		{"p", "carol"},
		{"t", "nostr"}, // non-p tags are ignored
	})

	pubkeys, err := resolver.RelevantPubkeys(context.Background(), event, noLookup)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	want := []string{"alice", "bob", "carol"}
	if !reflect.DeepEqual(pubkeys, want) {
		t.Errorf("pubkeys = %v, want %v", pubkeys, want)
	}
}

func TestRelevance_ThreadExpansionUnionsSubscribers(t *testing.T) {
	resolver := NewRelevanceResolver()

	subscribers := map[string][]string{
		"e1": {"bob", "dave"},
		"e2": {"erin"},
	}
	lookup := func(ctx context.Context, eventID string) ([]string, error) {
		return subscribers[eventID], nil
	}

	event := makeEvent("e3", "carol", 1700000000, nostr.Tags{
		{"e", "e1"},
		{"e", "e2"},
		{"p", "bob"}, // also a subscriber of e1; must not appear twice
	})

	pubkeys, err := resolver.RelevantPubkeys(context.Background(), event, lookup)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	want := []string{"carol", "bob", "dave", "erin"}
	if !reflect.DeepEqual(pubkeys, want) {
		t.Errorf("pubkeys = %v, want %v", pubkeys, want)
	}
}

func TestRelevance_DeterministicOrder(t *testing.T) {
	resolver := NewRelevanceResolver()

	event := makeEvent("e1", "alice", 1700000000, nostr.Tags{
		{"p", "carol"},
		{"p", "bob"},
		{"p", "carol"}, // duplicate tag
	})

	for i := 0; i < 10; i++ {
		pubkeys, err := resolver.RelevantPubkeys(context.Background(), event, noLookup)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		want := []string{"alice", "carol", "bob"}
		if !reflect.DeepEqual(pubkeys, want) {
			t.Fatalf("run %d: pubkeys = %v, want %v", i, pubkeys, want)
		}
	}
}

func TestRelevance_LookupErrorPropagates(t *testing.T) {
	resolver := NewRelevanceResolver()

	lookupErr := errors.New("ledger unavailable")
	lookup := func(ctx context.Context, eventID string) ([]string, error) {
		return nil, lookupErr
	}

	event := makeEvent("e1", "alice", 1700000000, nostr.Tags{{"e", "e0"}})

	if _, err := resolver.RelevantPubkeys(context.Background(), event, lookup); !errors.Is(err, lookupErr) {
		t.Errorf("err = %v, want wrapped %v", err, lookupErr)
	}
}
