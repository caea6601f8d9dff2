// Package noones is the outbound client for the Noones platform API:
// OAuth2 client-credentials token exchange plus the trade-chat
// endpoints the relay touches.
//
// Tokens are deliberately not cached. Every outbound action performs
// its own exchange, matching the platform account's observed behavior;
// callers therefore never hold a token across requests.
package noones

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Platform trade-chat endpoints, relative to the API base URL.
const (
	TradeChatGetEndpoint  = "/trade-chat/get"
	TradeChatPostEndpoint = "/trade-chat/post"
)

// OAuth2 scopes requested with every token exchange: read trades, post
// to trade chat.
var tokenScopes = []string{"noones:trade:get", "noones:trade-chat:post"}

const defaultTimeout = 30 * time.Second

// Config holds the platform connection settings.
type Config struct {
	// TokenURL is the OAuth2 token endpoint.
	TokenURL string

	// APIBaseURL is the base URL for trade-chat calls.
	APIBaseURL string

	// ClientID and ClientSecret are the client-credentials pair.
	ClientID     string
	ClientSecret string

	// Timeout bounds every outbound call, token exchange included.
	Timeout time.Duration
}

// Client talks to the platform API. Safe for concurrent use.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a platform client.
func New(config Config, logger *slog.Logger) *Client {
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger,
	}
}

// accessToken exchanges the client credentials for a fresh bearer
// token. Credentials travel in the form body (AuthStyleInParams), which
// is the encoding the platform token endpoint expects.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	cc := &clientcredentials.Config{
		ClientID:     c.config.ClientID,
		ClientSecret: c.config.ClientSecret,
		TokenURL:     c.config.TokenURL,
		Scopes:       tokenScopes,
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	// Route the exchange through our bounded client.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	tok, err := cc.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	return tok.AccessToken, nil
}

// SendGreeting posts the autogreeting message to a trade's chat as a
// JSON payload. Only the call outcome is reported; there is no retry.
func (c *Client) SendGreeting(ctx context.Context, tradeHash, message string) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]string{
		"trade_hash": tradeHash,
		"message":    message,
	})
	if err != nil {
		return fmt.Errorf("failed to encode greeting payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.APIBaseURL+TradeChatPostEndpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build greeting request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("greeting request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &APIError{Endpoint: TradeChatPostEndpoint, StatusCode: resp.StatusCode}
	}
	return nil
}

// GetTradeChat fetches a trade's chat history and returns the platform's
// raw JSON response.
func (c *Client) GetTradeChat(ctx context.Context, tradeHash string) (json.RawMessage, error) {
	return c.postForm(ctx, TradeChatGetEndpoint, url.Values{
		"trade_hash": {tradeHash},
	})
}

// PostTradeChat posts a chat message on behalf of the caller and returns
// the platform's raw JSON response.
func (c *Client) PostTradeChat(ctx context.Context, tradeHash, message string) (json.RawMessage, error) {
	return c.postForm(ctx, TradeChatPostEndpoint, url.Values{
		"trade_hash": {tradeHash},
		"message":    {message},
	})
}

// postForm acquires a fresh token and issues a form-encoded POST to the
// given platform endpoint. Non-200 platform responses become APIError;
// the platform's error body is discarded, not relayed.
func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values) (json.RawMessage, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.APIBaseURL+endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", endpoint, err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("platform call failed",
			"endpoint", endpoint,
			"status", resp.StatusCode,
		)
		return nil, &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode}
	}

	if !json.Valid(body) {
		return nil, fmt.Errorf("platform returned non-JSON body for %s", endpoint)
	}
	return json.RawMessage(body), nil
}
