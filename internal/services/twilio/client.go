package twilio

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"marquee/internal/config"
	"marquee/internal/services"
)

const defaultBaseURL = "https://api.twilio.com"

// Sender is the outbound SMS surface used by the notification dispatcher and
// the webhook handler.
type Sender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// NewSender builds a Twilio-backed sender when credentials are configured.
// Without credentials a noop implementation is returned so the rest of the
// system keeps working in a dry-run fashion.
func NewSender(cfg *config.Config) Sender {
	if strings.TrimSpace(cfg.Twilio.AccountSID) == "" {
		return noopSender{}
	}

	timeout := time.Duration(cfg.Twilio.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	baseURL := strings.TrimSpace(cfg.Twilio.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &client{
		accountSID: cfg.Twilio.AccountSID,
		authToken:  cfg.Twilio.AuthToken,
		fromNumber: cfg.Twilio.FromNumber,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type client struct {
	accountSID string
	authToken  string
	fromNumber string
	baseURL    string
	httpClient *http.Client
}

// SendSMS fires one outbound message. Delivery receipts are not consumed;
// a 2xx from Twilio is treated as sent.
func (c *client) SendSMS(ctx context.Context, to, body string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return services.Wrap(services.ErrValidation, "twilio", "send", "recipient required", nil)
	}
	if strings.TrimSpace(body) == "" {
		return services.Wrap(services.ErrValidation, "twilio", "send", "message body required", nil)
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.fromNumber)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, c.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return services.Wrap(services.ErrUnavailable, "twilio", "send",
			fmt.Sprintf("execute request (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		detail := fmt.Sprintf("returned %d (latency=%v)", resp.StatusCode, latency)
		var apiErr struct {
			Message string `json:"message"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Message != "" {
			detail += ": " + apiErr.Message
		}
		if resp.StatusCode >= 500 {
			return services.Wrap(services.ErrUnavailable, "twilio", "send", detail, nil)
		}
		return services.Wrap(services.ErrValidation, "twilio", "send", detail, nil)
	}
	return nil
}

type noopSender struct{}

func (noopSender) SendSMS(ctx context.Context, to, body string) error { return nil }

// twiml is the minimal response document Twilio expects from an SMS webhook.
type twiml struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message,omitempty"`
}

// ReplyTwiML renders an inbound-webhook reply carrying one message. An empty
// message renders an empty response, which tells Twilio to send nothing.
func ReplyTwiML(message string) ([]byte, error) {
	encoded, err := xml.Marshal(twiml{Message: message})
	if err != nil {
		return nil, fmt.Errorf("encode twiml: %w", err)
	}
	return append([]byte(xml.Header), encoded...), nil
}
