package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cppla/questmock/utils"
)

// RequestCodeResult is handed to the game client to open the platform login page.
type RequestCodeResult struct {
	TemporaryCode string    `json:"temporaryCode"`
	Outlink       string    `json:"outlink"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// ValidationResult reports whether a platform identity is acceptable.
type ValidationResult struct {
	Valid bool   `json:"valid"`
	UUID  string `json:"uuid,omitempty"`
}

// PlatformService issues and validates platform login codes.
type PlatformService struct {
	client *PlatformClient
	webURL string
	ttl    time.Duration
	now    func() time.Time
}

// NewPlatformService creates a PlatformService. A client without a base URL
// makes the service mint codes locally.
func NewPlatformService(client *PlatformClient, webURL string, ttl time.Duration) *PlatformService {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &PlatformService{client: client, webURL: strings.TrimRight(webURL, "/"), ttl: ttl, now: utcNow}
}

// RequestCode obtains a temporary code for userUUID and remembers who it was issued to.
func (s *PlatformService) RequestCode(ctx context.Context, userUUID string) (*RequestCodeResult, error) {
	userUUID = strings.TrimSpace(userUUID)
	if userUUID == "" {
		return nil, fmt.Errorf("%w: uuid is required", ErrValidation)
	}

	var code string
	if s.client.CanRequestCodes() {
		var err error
		if code, err = s.client.RequestCode(ctx, userUUID); err != nil {
			return nil, err
		}
	} else {
		code = uuid.NewString()
	}

	utils.SaveRequestCode(code, userUUID, s.ttl)
	return &RequestCodeResult{
		TemporaryCode: code,
		Outlink:       s.webURL + "/?requestCode=" + url.QueryEscape(code),
		ExpiresAt:     s.now().Add(s.ttl),
	}, nil
}

// Validate accepts either an issued request code or a positive numeric platform uuid.
func (s *PlatformService) Validate(requestCode, userUUID string) (ValidationResult, error) {
	requestCode = strings.TrimSpace(requestCode)
	userUUID = strings.TrimSpace(userUUID)

	if requestCode != "" {
		owner, ok := utils.LookupRequestCode(requestCode)
		if !ok || (userUUID != "" && owner != userUUID) {
			return ValidationResult{Valid: false}, nil
		}
		return ValidationResult{Valid: true, UUID: owner}, nil
	}

	if userUUID == "" {
		return ValidationResult{}, fmt.Errorf("%w: uuid or requestCode is required", ErrValidation)
	}
	n, err := strconv.ParseInt(userUUID, 10, 64)
	if err != nil || n <= 0 {
		return ValidationResult{Valid: false}, nil
	}
	return ValidationResult{Valid: true, UUID: userUUID}, nil
}
