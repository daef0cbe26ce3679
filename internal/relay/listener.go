package relay

import (
	"context"
	"log"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"nostrpush/internal/queue"
)

// Event kinds the engine notifies for: text notes, encrypted DMs, reposts,
// reactions, and zap receipts.
var notifiableKinds = []int{
	nostr.KindTextNote,
	nostr.KindEncryptedDirectMessage,
	nostr.KindRepost,
	nostr.KindReaction,
	nostr.KindZap,
}

const (
	reconnectBaseDelay = time.Second
	reconnectMaxDelay  = 30 * time.Second
)

// Listener subscribes to the upstream relay and publishes every matching
// event into the fan-out stream.
type Listener struct {
	relayURL  string
	publisher queue.Publisher
}

func NewListener(relayURL string, publisher queue.Publisher) *Listener {
	return &Listener{relayURL: relayURL, publisher: publisher}
}

// Run consumes the relay subscription until ctx is cancelled, reconnecting
// with backoff when the connection drops.
func (l *Listener) Run(ctx context.Context) {
	delay := reconnectBaseDelay

	for {
		if ctx.Err() != nil {
			return
		}

		err := l.consume(ctx)
		if ctx.Err() != nil {
			return
		}
		log.Printf("[Listener] Relay connection lost: %v (reconnecting in %v)", err, delay)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}

		delay *= 2
		if delay > reconnectMaxDelay {
			delay = reconnectMaxDelay
		}
	}
}

func (l *Listener) consume(ctx context.Context) error {
	relay, err := nostr.RelayConnect(ctx, l.relayURL)
	if err != nil {
		return err
	}
	defer relay.Close()

	since := nostr.Now()
	sub, err := relay.Subscribe(ctx, nostr.Filters{{
		Kinds: notifiableKinds,
		Since: &since,
	}})
	if err != nil {
		return err
	}
	defer sub.Unsub()

	log.Printf("[Listener] Subscribed to relay=%s kinds=%v", l.relayURL, notifiableKinds)

	for {
		select {
		case ev, ok := <-sub.Events:
			if !ok {
				return relay.ConnectionError
			}
			if ev == nil {
				continue
			}
			l.publish(ctx, ev)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (l *Listener) publish(ctx context.Context, ev *nostr.Event) {
	envelope, err := queue.NewEventEnvelope(ev)
	if err != nil {
		log.Printf("[Listener] Failed to wrap event %s: %v", ev.ID, err)
		return
	}

	if _, err := l.publisher.Publish(ctx, queue.StreamEvents, envelope); err != nil {
		log.Printf("[Listener] Failed to publish event %s: %v", ev.ID, err)
	}
}
