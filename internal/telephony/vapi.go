package telephony

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultVapiBaseURL = "https://api.vapi.ai"

// VapiDialer places outbound calls through the Vapi phone-call API.
type VapiDialer struct {
	apiKey  string
	from    string
	baseURL string
	client  *http.Client
}

type VapiConfig struct {
	APIKey     string
	FromNumber string
	BaseURL    string
	Timeout    time.Duration
}

func NewVapiDialer(cfg VapiConfig) (*VapiDialer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("telephony: vapi api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultVapiBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &VapiDialer{
		apiKey:  cfg.APIKey,
		from:    cfg.FromNumber,
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (d *VapiDialer) Name() string { return "vapi" }

type vapiCallRequest struct {
	PhoneNumber  string            `json:"phoneNumber"`
	CallerID     string            `json:"callerId,omitempty"`
	FirstMessage string            `json:"firstMessage"`
	WebhookURL   string            `json:"webhookUrl"`
	Metadata     map[string]string `json:"metadata"`
}

func (d *VapiDialer) Dial(ctx context.Context, req DialRequest) (DialResult, error) {
	payload := vapiCallRequest{
		PhoneNumber:  req.To,
		CallerID:     d.from,
		FirstMessage: req.Message,
		WebhookURL:   withCallID(req.CallbackURL, req.CallID),
		Metadata:     map[string]string{"call_id": req.CallID},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return DialResult{}, fmt.Errorf("%w: %v", ErrDialFailed, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/call/phone", bytes.NewReader(body))
	if err != nil {
		return DialResult{}, fmt.Errorf("%w: %v", ErrDialFailed, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+d.apiKey)

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return DialResult{}, fmt.Errorf("%w: %v", ErrDialFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return DialResult{}, fmt.Errorf("%w: vapi status %d: %s", ErrDialFailed, resp.StatusCode, snippet)
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return DialResult{}, fmt.Errorf("%w: %v", ErrDialFailed, err)
	}
	return DialResult{Accepted: true, ProviderCallRef: out.ID}, nil
}
