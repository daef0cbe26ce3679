package service

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nbd-wtf/go-nostr"

	"nostrpush/internal/config"
	"nostrpush/internal/model"
)

// Dispatcher turns an event plus a device token into a delivered push.
// Delivery is best effort: the fan-out does not retry failures.
type Dispatcher interface {
	Deliver(ctx context.Context, event *model.Event, deviceToken string) error
}

// providerTokenTTL is how long a minted APNs provider token is reused.
// Apple requires refresh at least every 60 minutes.
const providerTokenTTL = 50 * time.Minute

// APNSClient delivers notifications to the APNs gateway. Two auth modes:
//
//   - token: requests carry "authorization: bearer <jwt>". The JWT is an
//     ES256 provider token minted from the .p8 key, or a static token from
//     config when one is supplied (e.g. when pointing at a local proxy).
//   - certificate: the HTTP client holds the APNs client certificate and no
//     authorization header is sent.
type APNSClient struct {
	httpClient *http.Client
	baseURL    string
	topic      string
	authMode   string

	staticToken string
	keyID       string
	teamID      string
	signingKey  *ecdsa.PrivateKey

	mu            sync.Mutex
	providerToken string
	tokenIssuedAt time.Time
}

func NewAPNSClient(cfg *config.Config) (*APNSClient, error) {
	client := &APNSClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    cfg.APNSBaseURL,
		topic:      cfg.APNSTopic,
		authMode:   cfg.APNSAuthMode,
	}

	switch cfg.APNSAuthMode {
	case config.AuthModeCertificate:
		cert, err := tls.LoadX509KeyPair(cfg.APNSCertFile, cfg.APNSCertKeyFile)
		if err != nil {
			return nil, fmt.Errorf("load apns client certificate: %w", err)
		}
		client.httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{Certificates: []tls.Certificate{cert}},
		}

	case config.AuthModeToken:
		client.staticToken = cfg.APNSAuthToken
		if client.staticToken == "" {
			if cfg.APNSKeyFile == "" || cfg.APNSKeyID == "" || cfg.APNSTeamID == "" {
				return nil, fmt.Errorf("token auth mode requires APNS_AUTH_TOKEN or APNS_KEY_FILE/APNS_KEY_ID/APNS_TEAM_ID")
			}
			pemBytes, err := os.ReadFile(cfg.APNSKeyFile)
			if err != nil {
				return nil, fmt.Errorf("read apns signing key: %w", err)
			}
			key, err := jwt.ParseECPrivateKeyFromPEM(pemBytes)
			if err != nil {
				return nil, fmt.Errorf("parse apns signing key: %w", err)
			}
			client.signingKey = key
			client.keyID = cfg.APNSKeyID
			client.teamID = cfg.APNSTeamID
		}

	default:
		return nil, fmt.Errorf("unknown apns auth mode %q", cfg.APNSAuthMode)
	}

	return client, nil
}

// apnsPayload is the push body. The full nostr event rides along so the
// client can reconstruct and re-format the notification locally.
type apnsPayload struct {
	APS        apsBody     `json:"aps"`
	NostrEvent nostr.Event `json:"nostr_event"`
}

type apsBody struct {
	Alert          apsAlert `json:"alert"`
	MutableContent int      `json:"mutable-content"`
}

type apsAlert struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Body     string `json:"body"`
}

// Deliver posts one notification to the gateway for one device token.
func (c *APNSClient) Deliver(ctx context.Context, event *model.Event, deviceToken string) error {
	title, subtitle, body := FormatNotificationMessage(event)

	payload, err := json.Marshal(apnsPayload{
		APS: apsBody{
			Alert:          apsAlert{Title: title, Subtitle: subtitle, Body: body},
			MutableContent: 1,
		},
		NostrEvent: event.Event,
	})
	if err != nil {
		return fmt.Errorf("marshal apns payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+deviceToken, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create apns request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apns-topic", c.topic)
	// "alert" lets the client suppress the push when it already delivered a
	// local notification for the same event.
	req.Header.Set("apns-push-type", "alert")
	req.Header.Set("apns-priority", "5")
	req.Header.Set("apns-expiration", "0")

	if c.authMode == config.AuthModeToken {
		bearer, err := c.bearerToken()
		if err != nil {
			return err
		}
		req.Header.Set("authorization", "bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send apns request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("apns error: status=%d body=%s", resp.StatusCode, string(respBody))
	}
	return nil
}

// bearerToken returns the static token when configured, otherwise a cached
// or freshly minted ES256 provider token.
func (c *APNSClient) bearerToken() (string, error) {
	if c.staticToken != "" {
		return c.staticToken, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.providerToken != "" && time.Since(c.tokenIssuedAt) < providerTokenTTL {
		return c.providerToken, nil
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"iss": c.teamID,
		"iat": now.Unix(),
	})
	token.Header["kid"] = c.keyID

	signed, err := token.SignedString(c.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign apns provider token: %w", err)
	}

	c.providerToken = signed
	c.tokenIssuedAt = now
	return signed, nil
}

// FormatNotificationMessage builds the fallback alert text. The client does
// the real formatting (DM decryption, localization, profile names all live
// there); this only shows when the client cannot format in time.
func FormatNotificationMessage(event *model.Event) (title, subtitle, body string) {
	title = "New activity"
	subtitle = "From: " + event.PubKey
	body = event.Content
	return title, subtitle, body
}
