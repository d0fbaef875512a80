package payments

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// ErrNotConfigured is returned when the gateway URL or key is missing
// from the environment. Callers surface it as service-unavailable.
var ErrNotConfigured = errors.New("payment gateway is not configured")

// CheckoutMetadata travels to the gateway at session creation and comes
// back verbatim inside the confirmation webhook. The engine keeps no
// local session table; this is its memory of who was buying what.
type CheckoutMetadata struct {
	UserID      uint
	CourseID    uint
	CourseTitle string
}

// CheckoutSession is the gateway's answer to a session-creation call.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Client talks to the hosted-checkout payment gateway.
type Client struct {
	http          *resty.Client
	baseURL       string
	apiKey        string
	webhookSecret string
	successURL    string
	cancelURL     string
	currency      string
}

// ClientOptions carries gateway settings from config.
type ClientOptions struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
	Currency      string
}

// NewClient builds a gateway client. A client with no URL or key is
// still usable for signature verification but refuses to create
// sessions.
func NewClient(opts ClientOptions) *Client {
	return &Client{
		http:          resty.New(),
		baseURL:       opts.BaseURL,
		apiKey:        opts.APIKey,
		webhookSecret: opts.WebhookSecret,
		successURL:    opts.SuccessURL,
		cancelURL:     opts.CancelURL,
		currency:      opts.Currency,
	}
}

// Configured reports whether session creation is possible.
func (c *Client) Configured() bool {
	return c.baseURL != "" && c.apiKey != ""
}

// CreateCheckoutSession asks the gateway for a hosted checkout session
// for the given price, embedding the metadata the webhook will echo
// back.
func (c *Client) CreateCheckoutSession(price float64, meta CheckoutMetadata) (*CheckoutSession, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	body := map[string]interface{}{
		"amount":      price,
		"currency":    c.currency,
		"success_url": c.successURL,
		"cancel_url":  c.cancelURL,
		"metadata": map[string]string{
			"user_id":      strconv.FormatUint(uint64(meta.UserID), 10),
			"course_id":    strconv.FormatUint(uint64(meta.CourseID), 10),
			"course_title": meta.CourseTitle,
		},
	}

	resp, err := c.http.R().
		SetAuthToken(c.apiKey).
		SetHeader("Idempotency-Key", uuid.NewString()).
		SetBody(body).
		Post(c.baseURL + "/v1/checkout/sessions")
	if err != nil {
		log.Printf("Failed to reach payment gateway: %v", err)
		return nil, err
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		log.Printf("Gateway rejected session creation: %d %s", resp.StatusCode(), resp.String())
		return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode())
	}

	var session CheckoutSession
	if err := json.Unmarshal(resp.Body(), &session); err != nil {
		log.Printf("Failed to parse gateway response: %v", err)
		return nil, err
	}
	if session.ID == "" || session.URL == "" {
		return nil, fmt.Errorf("gateway response missing session id or url")
	}

	return &session, nil
}

// WebhookSecret exposes the HMAC secret for webhook verification.
func (c *Client) WebhookSecret() string {
	return c.webhookSecret
}
