package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"nostrpush/internal/repository"
)

// DeviceService handles device-token registration for the HTTP layer.
type DeviceService struct {
	tokenRepo repository.DeviceTokenRepository
	now       func() time.Time
}

func NewDeviceService(tokenRepo repository.DeviceTokenRepository) *DeviceService {
	return &DeviceService{
		tokenRepo: tokenRepo,
		now:       time.Now,
	}
}

// RegisterDevice stores or updates a device token for a pubkey. Called when
// a user enables notifications or the app refreshes its APNs token.
func (s *DeviceService) RegisterDevice(ctx context.Context, pubkey, deviceToken string) error {
	if pubkey == "" || deviceToken == "" {
		return fmt.Errorf("pubkey and deviceToken are required")
	}

	if err := s.tokenRepo.Register(ctx, pubkey, deviceToken, s.now().Unix()); err != nil {
		return err
	}

	log.Printf("[Device] Registered token for pubkey=%s", pubkey)
	return nil
}

// UnregisterDevice removes a device token (e.g. notifications disabled).
// Removing a token that was never registered succeeds.
func (s *DeviceService) UnregisterDevice(ctx context.Context, pubkey, deviceToken string) error {
	if pubkey == "" || deviceToken == "" {
		return fmt.Errorf("pubkey and deviceToken are required")
	}

	if err := s.tokenRepo.Unregister(ctx, pubkey, deviceToken); err != nil {
		return err
	}

	log.Printf("[Device] Unregistered token for pubkey=%s", pubkey)
	return nil
}
