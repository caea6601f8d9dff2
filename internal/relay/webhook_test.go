package relay

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/p2pflow/noones-relay/internal/signature"
)

// mockPlatform is a mock implementation of PlatformClient for testing.
type mockPlatform struct {
	sendGreetingFn  func(ctx context.Context, tradeHash, message string) error
	getTradeChatFn  func(ctx context.Context, tradeHash string) (json.RawMessage, error)
	postTradeChatFn func(ctx context.Context, tradeHash, message string) (json.RawMessage, error)
}

func (m *mockPlatform) SendGreeting(ctx context.Context, tradeHash, message string) error {
	if m.sendGreetingFn != nil {
		return m.sendGreetingFn(ctx, tradeHash, message)
	}
	return nil
}

func (m *mockPlatform) GetTradeChat(ctx context.Context, tradeHash string) (json.RawMessage, error) {
	if m.getTradeChatFn != nil {
		return m.getTradeChatFn(ctx, tradeHash)
	}
	return json.RawMessage(`{}`), nil
}

func (m *mockPlatform) PostTradeChat(ctx context.Context, tradeHash, message string) (json.RawMessage, error) {
	if m.postTradeChatFn != nil {
		return m.postTradeChatFn(ctx, tradeHash, message)
	}
	return json.RawMessage(`{}`), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	return Config{
		Listen:          "127.0.0.1:0",
		Offers:          []string{"OFF1", "OFF2"},
		GreetingMessage: "Welcome to the trade!",
		GreetingDelay:   0,
	}
}

func TestHandleWebhook_GreetsWatchedTrade(t *testing.T) {
	cfg := testConfig()
	cfg.GreetingDelay = 50 * time.Millisecond

	var calls int
	var gotTrade, gotMessage string
	var calledAt time.Time
	mp := &mockPlatform{
		sendGreetingFn: func(ctx context.Context, tradeHash, message string) error {
			calls++
			gotTrade = tradeHash
			gotMessage = message
			calledAt = time.Now()
			return nil
		},
	}

	server := New(cfg, mp, nil, testLogger())

	body := []byte(`{"event":"trade.started","data":{"offer_hash":"OFF1","trade_hash":"TR1"}}`)
	req := httptest.NewRequest("POST", "/webhook", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	start := time.Now()
	server.handleWebhook(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Body.String() != "OK" {
		t.Errorf("body = %q, want OK", rec.Body.String())
	}
	if calls != 1 {
		t.Fatalf("SendGreeting calls = %d, want 1", calls)
	}
	if gotTrade != "TR1" {
		t.Errorf("trade_hash = %q, want TR1", gotTrade)
	}
	if gotMessage != "Welcome to the trade!" {
		t.Errorf("message = %q", gotMessage)
	}
	if waited := calledAt.Sub(start); waited < cfg.GreetingDelay {
		t.Errorf("greeting sent after %v, want >= %v", waited, cfg.GreetingDelay)
	}
}

func TestHandleWebhook_FiltersEvents(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "other event type",
			body: `{"event":"trade.paid","data":{"offer_hash":"OFF1","trade_hash":"TR1"}}`,
		},
		{
			name: "unwatched offer",
			body: `{"event":"trade.started","data":{"offer_hash":"OTHER","trade_hash":"TR1"}}`,
		},
		{
			name: "missing data object",
			body: `{"event":"trade.started"}`,
		},
		{
			name: "missing event field",
			body: `{"data":{"offer_hash":"OFF1","trade_hash":"TR1"}}`,
		},
		{
			name: "data fields of wrong shape ignored",
			body: `{"event":"nonsense","data":{"offer_hash":"OFF1"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mp := &mockPlatform{
				sendGreetingFn: func(ctx context.Context, tradeHash, message string) error {
					t.Fatal("SendGreeting should not be called for filtered events")
					return nil
				},
			}
			server := New(testConfig(), mp, nil, testLogger())

			// Repeating an ignored event never produces a side effect.
			for i := 0; i < 3; i++ {
				req := httptest.NewRequest("POST", "/webhook", strings.NewReader(tt.body))
				rec := httptest.NewRecorder()
				server.handleWebhook(rec, req)

				if rec.Code != http.StatusOK {
					t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
				}
				if rec.Body.String() != "OK" {
					t.Errorf("body = %q, want OK", rec.Body.String())
				}
			}
		})
	}
}

func TestHandleWebhook_MalformedJSON(t *testing.T) {
	mp := &mockPlatform{
		sendGreetingFn: func(ctx context.Context, tradeHash, message string) error {
			t.Fatal("SendGreeting should not be called for malformed events")
			return nil
		},
	}
	server := New(testConfig(), mp, nil, testLogger())

	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(`{"event": truncated`))
	rec := httptest.NewRecorder()
	server.handleWebhook(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if rec.Body.String() != "Error" {
		t.Errorf("body = %q, want Error", rec.Body.String())
	}
}

func TestHandleWebhook_GreetingFailureStillOK(t *testing.T) {
	mp := &mockPlatform{
		sendGreetingFn: func(ctx context.Context, tradeHash, message string) error {
			return errors.New("platform down")
		},
	}
	server := New(testConfig(), mp, nil, testLogger())

	body := `{"event":"trade.started","data":{"offer_hash":"OFF1","trade_hash":"TR1"}}`
	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()
	server.handleWebhook(rec, req)

	// Downstream failure never changes the webhook response.
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Body.String() != "OK" {
		t.Errorf("body = %q, want OK", rec.Body.String())
	}
}

// failVerifier fails the test if the handler consults it.
type failVerifier struct{ t *testing.T }

func (v *failVerifier) Verify(body []byte, sig string) error {
	v.t.Fatal("Verify should not be called")
	return nil
}

func TestHandleWebhook_ChallengeEcho(t *testing.T) {
	server := New(testConfig(), &mockPlatform{}, &failVerifier{t}, testLogger())

	req := httptest.NewRequest("POST", "/webhook", nil)
	req.Header.Set(ChallengeHeader, "abc123")
	rec := httptest.NewRecorder()
	server.handleWebhook(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Header().Get(ChallengeHeader); got != "abc123" {
		t.Errorf("challenge header = %q, want abc123", got)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", rec.Body.String())
	}
}

// rejectVerifier always reports an invalid signature.
type rejectVerifier struct{}

func (rejectVerifier) Verify(body []byte, sig string) error {
	return signature.ErrInvalidSignature
}

func TestHandleWebhook_InvalidSignature(t *testing.T) {
	mp := &mockPlatform{
		sendGreetingFn: func(ctx context.Context, tradeHash, message string) error {
			t.Fatal("SendGreeting should not be called on signature failure")
			return nil
		},
	}
	server := New(testConfig(), mp, rejectVerifier{}, testLogger())

	body := `{"event":"trade.started","data":{"offer_hash":"OFF1","trade_hash":"TR1"}}`
	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(body))
	req.Header.Set(SignatureHeader, "bogus")
	rec := httptest.NewRecorder()
	server.handleWebhook(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if rec.Body.String() != "Invalid signature" {
		t.Errorf("body = %q, want Invalid signature", rec.Body.String())
	}
}

func TestHandleWebhook_ValidSignature(t *testing.T) {
	const webhookURL = "https://relay.example.com/webhook"

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	verifier, err := signature.New(base64.StdEncoding.EncodeToString(pub), webhookURL)
	if err != nil {
		t.Fatal(err)
	}

	var calls int
	mp := &mockPlatform{
		sendGreetingFn: func(ctx context.Context, tradeHash, message string) error {
			calls++
			return nil
		},
	}
	server := New(testConfig(), mp, verifier, testLogger())

	body := []byte(`{"event":"trade.started","data":{"offer_hash":"OFF1","trade_hash":"TR1"}}`)
	sig := ed25519.Sign(priv, append([]byte(webhookURL+":"), body...))

	req := httptest.NewRequest("POST", "/webhook", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, base64.StdEncoding.EncodeToString(sig))
	rec := httptest.NewRecorder()
	server.handleWebhook(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if calls != 1 {
		t.Errorf("SendGreeting calls = %d, want 1", calls)
	}
}

func TestHandleWebhook_BodyTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.MaxBodySize = 64

	server := New(cfg, &mockPlatform{}, nil, testLogger())

	big := bytes.Repeat([]byte("a"), 65)
	req := httptest.NewRequest("POST", "/webhook", bytes.NewReader(big))
	rec := httptest.NewRecorder()
	server.handleWebhook(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusRequestEntityTooLarge)
	}
}
