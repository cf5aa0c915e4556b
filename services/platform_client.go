package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cppla/questmock/models"
	"github.com/cppla/questmock/utils"
)

// ErrPlatformUnavailable is returned when the platform cannot be reached or answers badly.
var ErrPlatformUnavailable = errors.New("platform unavailable")

const maxPlatformBody = 64 << 10

// PlatformClient talks to the external platform's HTTP API.
type PlatformClient struct {
	baseURL   string
	authToken string
	eventsURL string
	http      *http.Client
}

// NewPlatformClient creates a client. Empty baseURL or eventsURL disable the matching calls.
func NewPlatformClient(baseURL, authToken, eventsURL string, timeout time.Duration) *PlatformClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PlatformClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		authToken: authToken,
		eventsURL: eventsURL,
		http:      &http.Client{Timeout: timeout},
	}
}

// CanRequestCodes reports whether a platform base URL is configured.
func (c *PlatformClient) CanRequestCodes() bool {
	return c != nil && c.baseURL != ""
}

// CanSendEvents reports whether an events endpoint is configured.
func (c *PlatformClient) CanSendEvents() bool {
	return c != nil && c.eventsURL != ""
}

// RequestCode asks the platform for a temporary login code for userUUID.
func (c *PlatformClient) RequestCode(ctx context.Context, userUUID string) (string, error) {
	endpoint := c.baseURL + "/m/auth/v1/bapp/request-code?uuid=" + url.QueryEscape(userUUID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build request-code request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", c.authToken)
	}

	body, err := c.do(req)
	if err != nil {
		return "", err
	}
	code := extractRequestCode(body)
	if code == "" {
		return "", fmt.Errorf("%w: no request code in response", ErrPlatformUnavailable)
	}
	return code, nil
}

type outboundEvent struct {
	EventID   string           `json:"eventId"`
	UserID    string           `json:"userId"`
	EventType models.EventType `json:"eventType"`
	EventData json.RawMessage  `json:"eventData"`
	Timestamp time.Time        `json:"timestamp"`
}

// SendEvent posts one outbox event to the platform events endpoint.
func (c *PlatformClient) SendEvent(ctx context.Context, event *models.PlatformEvent) ([]byte, error) {
	data := json.RawMessage(event.EventData)
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	payload, err := json.Marshal(outboundEvent{
		EventID:   event.EventID,
		UserID:    event.UserID,
		EventType: event.EventType,
		EventData: data,
		Timestamp: event.Timestamp,
	})
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.eventsURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build event request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", c.authToken)
	}
	return c.do(req)
}

func (c *PlatformClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPlatformUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPlatformBody))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrPlatformUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s %s returned %d", ErrPlatformUnavailable, req.Method, req.URL.Path, resp.StatusCode)
	}
	return body, nil
}

// extractRequestCode accepts the response shapes the platform has used:
// {code}, {payload: "..."}, {payload: {code}}, {data: {code}}, {data: {data: {code}}}, {requestCode}.
func extractRequestCode(body []byte) string {
	var raw struct {
		Code        string          `json:"code"`
		RequestCode string          `json:"requestCode"`
		Payload     json.RawMessage `json:"payload"`
		Data        *struct {
			Code string `json:"code"`
			Data *struct {
				Code string `json:"code"`
			} `json:"data"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return ""
	}
	if raw.Code != "" {
		return raw.Code
	}
	if len(raw.Payload) > 0 {
		var s string
		if json.Unmarshal(raw.Payload, &s) == nil && s != "" {
			return s
		}
		var obj struct {
			Code string `json:"code"`
		}
		if json.Unmarshal(raw.Payload, &obj) == nil && obj.Code != "" {
			return obj.Code
		}
	}
	if raw.Data != nil {
		if raw.Data.Code != "" {
			return raw.Data.Code
		}
		if raw.Data.Data != nil && raw.Data.Data.Code != "" {
			return raw.Data.Data.Code
		}
	}
	return raw.RequestCode
}

// LogSender acknowledges events by logging them. Used when no platform events endpoint is configured.
type LogSender struct{}

// SendEvent logs the event and reports success.
func (LogSender) SendEvent(_ context.Context, event *models.PlatformEvent) ([]byte, error) {
	utils.Sugar.Infow("platform event",
		"eventId", event.EventID,
		"userId", event.UserID,
		"eventType", event.EventType,
		"eventData", string(event.EventData),
	)
	return nil, nil
}
