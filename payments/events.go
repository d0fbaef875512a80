package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "X-Gateway-Signature"

// Gateway webhook event type strings.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventCheckoutExpired   = "checkout.session.expired"
)

// Event is the tagged union of webhook notifications the gateway can
// deliver. Handlers switch on the concrete type.
type Event interface {
	EventType() string
}

// CheckoutCompleted reports a settled payment for a checkout session.
// AmountTotal is the amount actually charged and is authoritative over
// the catalog price at confirmation time.
type CheckoutCompleted struct {
	SessionID   string
	PaymentID   string
	AmountTotal float64
	Metadata    map[string]string
}

func (CheckoutCompleted) EventType() string { return EventCheckoutCompleted }

// CheckoutExpired reports an abandoned checkout session. No enrollment
// was ever created for it, so it carries no state change.
type CheckoutExpired struct {
	SessionID string
	Metadata  map[string]string
}

func (CheckoutExpired) EventType() string { return EventCheckoutExpired }

// UnknownEvent is any event type this service does not handle. It is
// acknowledged so the gateway stops redelivering it.
type UnknownEvent struct {
	Type string
}

func (e UnknownEvent) EventType() string { return e.Type }

type eventEnvelope struct {
	Type string `json:"type"`
	Data struct {
		ID          string            `json:"id"`
		PaymentID   string            `json:"payment_id"`
		AmountTotal float64           `json:"amount_total"`
		Metadata    map[string]string `json:"metadata"`
	} `json:"data"`
}

// VerifySignature checks the hex HMAC-SHA256 of payload against the
// value from the signature header, in constant time.
func VerifySignature(payload []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)

	received, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	return hmac.Equal(received, mac.Sum(nil))
}

// Sign computes the signature for a payload. The inbound path only
// ever verifies; this exists for tests and local gateway simulation.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// ParseEvent decodes a raw webhook payload into a typed event.
func ParseEvent(payload []byte) (Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("malformed webhook payload: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("webhook payload missing event type")
	}

	switch env.Type {
	case EventCheckoutCompleted:
		if env.Data.ID == "" {
			return nil, fmt.Errorf("completed event missing session id")
		}
		return CheckoutCompleted{
			SessionID:   env.Data.ID,
			PaymentID:   env.Data.PaymentID,
			AmountTotal: env.Data.AmountTotal,
			Metadata:    env.Data.Metadata,
		}, nil
	case EventCheckoutExpired:
		return CheckoutExpired{
			SessionID: env.Data.ID,
			Metadata:  env.Data.Metadata,
		}, nil
	default:
		return UnknownEvent{Type: env.Type}, nil
	}
}
