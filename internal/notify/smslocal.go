package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 15 * time.Second

// SMSLocalClient sends notifications as SMS via the SMS Local API.
// See https://www.smslocal.com/dev/bulkV2.
type SMSLocalClient struct {
	APIKey     string
	BaseURL    string
	Sender     string
	HTTPClient *http.Client
}

// NewSMSLocalClient returns a client that uses the given API key and optional base URL/sender.
func NewSMSLocalClient(apiKey, baseURL, sender string) *SMSLocalClient {
	if baseURL == "" {
		baseURL = "https://www.smslocal.com/dev/bulkV2"
	}
	return &SMSLocalClient{
		APIKey:     apiKey,
		BaseURL:    baseURL,
		Sender:     sender,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// Send delivers the notification over SMS. MFA codes use the provider's otp
// route with the code as the template variable; everything else goes out as a
// plain message built from data["message"]. Does not log code values.
func (c *SMSLocalClient) Send(ctx context.Context, kind, recipient string, data map[string]string) error {
	if c.APIKey == "" {
		return fmt.Errorf("notify: API key not configured")
	}
	body := map[string]interface{}{
		"numbers": recipient,
	}
	if kind == KindMFACode {
		body["route"] = "otp"
		body["variables"] = data["code"]
	} else {
		body["route"] = "q"
		body["message"] = data["message"]
		if c.Sender != "" {
			body["sender_id"] = c.Sender
		}
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.APIKey)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("notify: request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}
