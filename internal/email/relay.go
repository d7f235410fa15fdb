package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const relayTimeout = 15 * time.Second

// RelayClient delivers mail by POSTing it to an HTTP mail relay. Actual SMTP
// delivery happens behind the relay, outside this service.
type RelayClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewRelayClient returns a client for the given relay endpoint. apiKey may be
// empty when the relay does not authenticate.
func NewRelayClient(baseURL, apiKey string) *RelayClient {
	return &RelayClient{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: relayTimeout},
	}
}

// Send posts the message to the relay. Any non-200 response is an error.
func (c *RelayClient) Send(ctx context.Context, msg Message) error {
	if c.BaseURL == "" {
		return fmt.Errorf("email: relay URL not configured")
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("email: relay request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}
