package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/geraldfingburke/trendwatch/internal/models"
)

// WebhookSink POSTs the alert payload as JSON, signed with a short-lived
// HMAC JWT in the Authorization header so receivers can verify the request
// actually came from this service rather than anyone who found the URL.
// This is service-to-service auth, not end-user auth — there are no user
// accounts in this system.
type WebhookSink struct {
	URL        string
	SigningKey []byte
	HTTPClient *http.Client
}

func (s *WebhookSink) Name() string { return "webhook" }

func (s *WebhookSink) Send(ctx context.Context, payload models.AlertPayload) error {
	if s.URL == "" {
		return fmt.Errorf("webhook sink: URL not configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("webhook sink: marshal payload: %w", err)
	}

	token, err := s.signToken(payload)
	if err != nil {
		return fmt.Errorf("webhook sink: sign token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook sink: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	client := s.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook sink: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook sink: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// signToken issues a short-lived HMAC JWT asserting which entity/kind this
// delivery is about, so a receiver can cheaply reject stale or replayed
// deliveries without re-parsing the body.
func (s *WebhookSink) signToken(payload models.AlertPayload) (string, error) {
	claims := jwt.MapClaims{
		"entity": payload.Entity,
		"kind":   string(payload.Kind),
		"iat":    time.Now().Unix(),
		"exp":    time.Now().Add(2 * time.Minute).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.SigningKey)
}
