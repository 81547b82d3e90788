// Package push delivers notifications to mobile devices.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultFCMEndpoint is the legacy FCM HTTP send endpoint.
	DefaultFCMEndpoint  = "https://fcm.googleapis.com/fcm/send"
	defaultHTTPTimeout  = 10 * time.Second
	defaultRatePerSec   = 50
	maxErrorBodyPreview = 512
)

var errMissingServerKey = errors.New("push: fcm server key is required")

// Message is a single push addressed to one device token.
type Message struct {
	Token      string
	DeviceKind string
	Title      string
	Body       string
	Data       map[string]string
}

// Client delivers a push message.
type Client interface {
	Send(ctx context.Context, message Message) error
}

// NopClient drops every message. Used when push delivery is not configured.
type NopClient struct{}

// Send does nothing.
func (NopClient) Send(context.Context, Message) error {
	return nil
}

// FCMConfig configures the FCM HTTP client.
type FCMConfig struct {
	ServerKey     string
	Endpoint      string
	RatePerSecond float64
	HTTPClient    *http.Client
}

// FCMClient posts messages to Firebase Cloud Messaging.
type FCMClient struct {
	serverKey  string
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewFCMClient validates the configuration and returns a rate limited client.
func NewFCMClient(cfg FCMConfig) (*FCMClient, error) {
	if cfg.ServerKey == "" {
		return nil, errMissingServerKey
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultFCMEndpoint
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = defaultRatePerSec
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return &FCMClient{
		serverKey:  cfg.ServerKey,
		endpoint:   endpoint,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(perSecond), burst),
	}, nil
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Sound string `json:"sound,omitempty"`
}

type fcmRequest struct {
	To           string            `json:"to"`
	Priority     string            `json:"priority"`
	Notification fcmNotification   `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type fcmResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
	Results []struct {
		Error string `json:"error"`
	} `json:"results"`
}

// Send waits for a rate limiter slot and posts the message.
func (c *FCMClient) Send(ctx context.Context, message Message) error {
	if message.Token == "" {
		return errors.New("push: device token is required")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("push: rate limiter: %w", err)
	}

	payload, err := json.Marshal(fcmRequest{
		To:       message.Token,
		Priority: "high",
		Notification: fcmNotification{
			Title: message.Title,
			Body:  message.Body,
			Sound: "default",
		},
		Data: message.Data,
	})
	if err != nil {
		return fmt.Errorf("push: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("push: build request: %w", err)
	}
	req.Header.Set("Authorization", "key="+c.serverKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("push: send: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return fmt.Errorf("push: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		preview := body
		if len(preview) > maxErrorBodyPreview {
			preview = preview[:maxErrorBodyPreview]
		}
		return fmt.Errorf("push: fcm responded %d: %s", resp.StatusCode, preview)
	}

	var decoded fcmResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return fmt.Errorf("push: decode response: %w", err)
	}
	if decoded.Failure > 0 {
		reason := "unknown"
		if len(decoded.Results) > 0 && decoded.Results[0].Error != "" {
			reason = decoded.Results[0].Error
		}
		return fmt.Errorf("push: fcm rejected message: %s", reason)
	}
	return nil
}
