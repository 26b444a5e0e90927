package telephony

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTwilioBaseURL = "https://api.twilio.com/2010-04-01"

// TwilioDialer places outbound calls through the Twilio REST API with inline
// TwiML: speak the message, then redirect the call into our webhook.
type TwilioDialer struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	client     *http.Client
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	BaseURL    string
	Timeout    time.Duration
}

func NewTwilioDialer(cfg TwilioConfig) (*TwilioDialer, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("telephony: twilio account sid and auth token are required")
	}
	if cfg.FromNumber == "" {
		return nil, fmt.Errorf("telephony: twilio from number is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultTwilioBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &TwilioDialer{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       cfg.FromNumber,
		baseURL:    cfg.BaseURL,
		client:     &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (d *TwilioDialer) Name() string { return "twilio" }

func (d *TwilioDialer) Dial(ctx context.Context, req DialRequest) (DialResult, error) {
	callbackURL := withCallID(req.CallbackURL, req.CallID)
	twiml, err := RenderSayRedirect(req.Message, callbackURL)
	if err != nil {
		return DialResult{}, fmt.Errorf("%w: %v", ErrDialFailed, err)
	}

	form := url.Values{}
	form.Set("To", req.To)
	form.Set("From", d.from)
	form.Set("Twiml", twiml)
	form.Set("StatusCallback", callbackURL+"&event=status")

	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls.json", d.baseURL, d.accountSID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return DialResult{}, fmt.Errorf("%w: %v", ErrDialFailed, err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.SetBasicAuth(d.accountSID, d.authToken)

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return DialResult{}, fmt.Errorf("%w: %v", ErrDialFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return DialResult{}, fmt.Errorf("%w: twilio status %d: %s", ErrDialFailed, resp.StatusCode, snippet)
	}

	var out struct {
		Sid string `json:"sid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return DialResult{}, fmt.Errorf("%w: %v", ErrDialFailed, err)
	}
	return DialResult{Accepted: true, ProviderCallRef: out.Sid}, nil
}

// withCallID appends our call_id as a query parameter so webhook deliveries
// carry it back regardless of the provider's own payload shape.
func withCallID(callbackURL, callID string) string {
	sep := "?"
	if strings.Contains(callbackURL, "?") {
		sep = "&"
	}
	return callbackURL + sep + "call_id=" + url.QueryEscape(callID)
}
