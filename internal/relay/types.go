package relay

import (
	"context"
	"encoding/json"
	"time"
)

// PlatformClient defines the outbound platform operations the relay needs.
type PlatformClient interface {
	SendGreeting(ctx context.Context, tradeHash, message string) error
	GetTradeChat(ctx context.Context, tradeHash string) (json.RawMessage, error)
	PostTradeChat(ctx context.Context, tradeHash, message string) (json.RawMessage, error)
}

// SignatureVerifier validates inbound webhook authenticity. A nil
// verifier disables signature checking (the unsigned variant).
type SignatureVerifier interface {
	Verify(body []byte, claimedSignatureB64 string) error
}

// Config holds the relay HTTP surface configuration.
type Config struct {
	// Listen is the HTTP listen address (e.g. ":3000").
	Listen string

	// Offers lists the offer hashes whose trades receive a greeting.
	Offers []string

	// GreetingMessage is posted to the trade chat after GreetingDelay.
	GreetingMessage string
	GreetingDelay   time.Duration

	// MaxBodySize caps inbound webhook bodies (default: 1MB).
	MaxBodySize int64
}

// WebhookEvent is the inbound trade-lifecycle notification. It is
// untrusted input: absent or malformed fields decode to zero values and
// simply fail the filter.
type WebhookEvent struct {
	Event string    `json:"event"`
	Data  EventData `json:"data"`
}

// EventData carries the identifiers of the trade the event concerns.
type EventData struct {
	OfferHash string `json:"offer_hash"`
	TradeHash string `json:"trade_hash"`
}

// EventTradeStarted is the only event type that triggers a greeting.
const EventTradeStarted = "trade.started"

// Platform webhook headers.
const (
	// SignatureHeader carries the base64 Ed25519 signature.
	SignatureHeader = "X-Noones-Signature"

	// ChallengeHeader carries the liveness-probe challenge value, echoed
	// back unmodified on bodyless requests.
	ChallengeHeader = "X-Noones-Request-Challenge"
)

// StatusResponse is the chat-proxy JSON envelope.
type StatusResponse struct {
	Data      json.RawMessage `json:"data,omitempty"`
	Status    string          `json:"status"`
	Timestamp int64           `json:"timestamp"`
}

// Envelope status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Default values
const (
	DefaultMaxBodySize = 1048576 // 1 MB
)
