package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"nostrpush/internal/httputil"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// PubkeyKey is the context key for the authenticated pubkey
	PubkeyKey contextKey = "pubkey"
)

// maxAuthNoteAge is how far in the past an auth note's created_at may be.
// Notes from the future are rejected outright.
const maxAuthNoteAge = 60 * time.Second

// maxAuthBodyBytes caps how much request body is buffered for the payload
// hash check. Registration bodies are a few hundred bytes.
const maxAuthBodyBytes = 64 * 1024

// NostrAuthMiddleware validates the Authorization header per NIP-98:
// "Nostr <base64 note>", where the note is a kind-27235 event signed by the
// requesting pubkey, whose "u" and "method" tags must match the actual
// request, whose created_at must be within the last 60 seconds, and whose
// "payload" tag must carry the SHA-256 of the request body when one exists.
func NostrAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			httputil.WriteUnauthorized(w, "Nostr authorization header missing")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Nostr" {
			httputil.WriteUnauthorized(w, "Authorization header is not a Nostr token")
			return
		}

		noteJSON, err := base64.StdEncoding.DecodeString(parts[1])
		if err != nil {
			httputil.WriteUnauthorized(w, "Could not decode base64 auth note")
			return
		}

		var note nostr.Event
		if err := json.Unmarshal(noteJSON, &note); err != nil {
			httputil.WriteUnauthorized(w, "Could not parse auth note")
			return
		}

		if note.Kind != nostr.KindHTTPAuth {
			httputil.WriteUnauthorized(w, "Auth note kind is not 27235")
			return
		}

		if !tagMatches(&note, "u", requestURL(r)) {
			httputil.WriteUnauthorized(w, "Auth note url does not match request")
			return
		}
		if !tagMatches(&note, "method", r.Method) {
			httputil.WriteUnauthorized(w, "Auth note method does not match request")
			return
		}

		age := time.Since(note.CreatedAt.Time())
		if age > maxAuthNoteAge || age < 0 {
			httputil.WriteUnauthorized(w, "Auth note is too old or too new")
			return
		}

		// The handler still needs the body, so buffer and restore it, with a
		// cap so an oversized body cannot exhaust memory.
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxAuthBodyBytes))
		if err != nil {
			httputil.WriteBadRequest(w, "Could not read request body")
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		payloadTag := note.Tags.GetFirst([]string{"payload"})
		if len(body) > 0 {
			hash := sha256.Sum256(body)
			if payloadTag == nil || payloadTag.Value() != hex.EncodeToString(hash[:]) {
				httputil.WriteUnauthorized(w, "Auth note payload hash does not match request body hash")
				return
			}
		} else if payloadTag != nil {
			httputil.WriteUnauthorized(w, "Auth note has payload tag but request has no body")
			return
		}

		if note.GetID() != note.ID {
			httputil.WriteUnauthorized(w, "Auth note id does not match note contents")
			return
		}

		valid, err := note.CheckSignature()
		if err != nil || !valid {
			httputil.WriteUnauthorized(w, "Auth note signature is invalid")
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithPubkey(r.Context(), note.PubKey)))
	})
}

// ContextWithPubkey stores the authenticated pubkey in the context.
func ContextWithPubkey(ctx context.Context, pubkey string) context.Context {
	return context.WithValue(ctx, PubkeyKey, pubkey)
}

// GetPubkeyFromContext extracts the authenticated pubkey from the request
// context. Returns the pubkey and true if present.
func GetPubkeyFromContext(ctx context.Context) (string, bool) {
	pubkey, ok := ctx.Value(PubkeyKey).(string)
	return pubkey, ok
}

func tagMatches(note *nostr.Event, tagName, want string) bool {
	tag := note.Tags.GetFirst([]string{tagName})
	return tag != nil && tag.Value() == want
}

// requestURL reconstructs the full URL the client signed.
func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
