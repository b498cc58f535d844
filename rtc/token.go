package rtc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// TokenClient obtains channel credentials from the external token service.
// Token acquisition is a fallible, timeout-bound step that precedes every
// join; it never blocks longer than the configured timeout.
type TokenClient struct {
	url     string
	timeout time.Duration
	client  *http.Client
}

func NewTokenClient(url string, timeout time.Duration) *TokenClient {
	return &TokenClient{
		url:     url,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

type tokenRequest struct {
	ChannelName string `json:"channelName"`
	UID         string `json:"uid"`
	Role        string `json:"role"`
	ExpireTime  int    `json:"expireTime"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Fetch requests a publisher token for the channel.
func (c *TokenClient) Fetch(ctx context.Context, channel, uid string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(tokenRequest{
		ChannelName: channel,
		UID:         uid,
		Role:        "publisher",
		ExpireTime:  3600,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token service returned status %d", resp.StatusCode)
	}

	var out tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("token response decode failed: %w", err)
	}
	if out.Token == "" {
		return "", fmt.Errorf("token service returned an empty token")
	}
	return out.Token, nil
}
