package config

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
)

// APNs auth modes
const (
	AuthModeToken       = "token"
	AuthModeCertificate = "certificate"
)

type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	ServerPort string

	RedisURL string

	// Upstream relay the engine subscribes to for inbound events and
	// mute-list lookups.
	RelayURL string

	// Push gateway settings
	APNSBaseURL  string
	APNSAuthMode string // "token" or "certificate"
	APNSTopic    string

	// Token mode: either a static bearer token, or a provider JWT minted
	// from the .p8 key below.
	APNSAuthToken string
	APNSKeyFile   string
	APNSKeyID     string
	APNSTeamID    string

	// Certificate mode
	APNSCertFile    string
	APNSCertKeyFile string
}

func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found or error loading it, relying on environment variables")
	}

	serverPort := os.Getenv("SERVER_PORT")
	if serverPort == "" {
		serverPort = "8000"
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	apnsBaseURL := os.Getenv("APNS_SERVER_BASE_URL")
	if apnsBaseURL == "" {
		apnsBaseURL = "http://localhost:8001/push-notification/"
	}

	apnsAuthMode := os.Getenv("APNS_AUTH_MODE")
	if apnsAuthMode == "" {
		apnsAuthMode = AuthModeToken
	}
	if apnsAuthMode != AuthModeToken && apnsAuthMode != AuthModeCertificate {
		return nil, fmt.Errorf("invalid APNS_AUTH_MODE %q, want %q or %q", apnsAuthMode, AuthModeToken, AuthModeCertificate)
	}

	apnsTopic := os.Getenv("APNS_TOPIC")
	if apnsTopic == "" {
		apnsTopic = "com.jb55.damus2"
	}

	return &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     os.Getenv("DB_PORT"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),

		ServerPort: serverPort,

		RedisURL: redisURL,
		RelayURL: os.Getenv("RELAY_URL"),

		APNSBaseURL:  apnsBaseURL,
		APNSAuthMode: apnsAuthMode,
		APNSTopic:    apnsTopic,

		APNSAuthToken: os.Getenv("APNS_AUTH_TOKEN"),
		APNSKeyFile:   os.Getenv("APNS_KEY_FILE"),
		APNSKeyID:     os.Getenv("APNS_KEY_ID"),
		APNSTeamID:    os.Getenv("APNS_TEAM_ID"),

		APNSCertFile:    os.Getenv("APNS_CERT_FILE"),
		APNSCertKeyFile: os.Getenv("APNS_CERT_KEY_FILE"),
	}, nil
}
