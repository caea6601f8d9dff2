package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// handleWebhook handles inbound trade-lifecycle notifications.
//
// Flow: bodyless requests are liveness probes and get the challenge
// header echoed back; otherwise the signature is verified (signed
// variant), the event is parsed and filtered, and a matching
// trade.started event triggers the delayed greeting before the 200
// response is written.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	deliveryID := uuid.NewString()

	// Enforce body size limit
	limitedReader := io.LimitReader(r.Body, s.config.MaxBodySize+1)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		s.respondText(w, http.StatusInternalServerError, "Error")
		return
	}
	if int64(len(body)) > s.config.MaxBodySize {
		s.respondText(w, http.StatusRequestEntityTooLarge, "Error")
		return
	}

	// Challenge probe: no body at all. Echo the challenge header back
	// unmodified and skip verification. This path performs no lookups,
	// so it can never leak anything beyond what the caller sent.
	if len(bytes.TrimSpace(body)) == 0 {
		challenge := r.Header.Get(ChallengeHeader)
		s.logger.Info("challenge probe answered",
			"delivery_id", deliveryID,
		)
		w.Header().Set(ChallengeHeader, challenge)
		w.WriteHeader(http.StatusOK)
		return
	}

	if s.verifier != nil {
		if err := s.verifier.Verify(body, r.Header.Get(SignatureHeader)); err != nil {
			s.logger.Warn("webhook signature verification failed",
				"delivery_id", deliveryID,
				"error", err,
			)
			s.respondText(w, http.StatusUnauthorized, "Invalid signature")
			return
		}
	}

	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		s.logger.Warn("malformed webhook event",
			"delivery_id", deliveryID,
			"error", err,
		)
		s.respondText(w, http.StatusBadRequest, "Error")
		return
	}

	s.logger.Info("webhook event received",
		"delivery_id", deliveryID,
		"event", event.Event,
		"offer_hash", event.Data.OfferHash,
		"trade_hash", event.Data.TradeHash,
	)

	if event.Event != EventTradeStarted || !s.watched(event.Data.OfferHash) {
		s.respondText(w, http.StatusOK, "OK")
		return
	}

	// The greeting outcome never changes the webhook response.
	s.greet(context.WithoutCancel(r.Context()), deliveryID, event.Data.TradeHash)
	s.respondText(w, http.StatusOK, "OK")
}

// greet waits out the configured delay on the handling goroutine, then
// posts the greeting. The wait is not cancellable: a caller disconnect
// must not abort a greeting that already passed the filter.
func (s *Server) greet(ctx context.Context, deliveryID, tradeHash string) {
	time.Sleep(s.config.GreetingDelay)

	if err := s.platform.SendGreeting(ctx, tradeHash, s.config.GreetingMessage); err != nil {
		s.logger.Error("failed to send greeting",
			"delivery_id", deliveryID,
			"trade_hash", tradeHash,
			"error", err,
		)
		return
	}

	s.logger.Info("greeting sent",
		"delivery_id", deliveryID,
		"trade_hash", tradeHash,
	)
}
