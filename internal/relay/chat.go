package relay

import (
	"net/http"
)

// handleChatGet proxies a trade-chat read to the platform.
func (s *Server) handleChatGet(w http.ResponseWriter, r *http.Request) {
	tradeHash := r.PostFormValue("trade_hash")
	if tradeHash == "" {
		s.respondEnvelope(w, http.StatusBadRequest, errorEnvelope())
		return
	}

	data, err := s.platform.GetTradeChat(r.Context(), tradeHash)
	if err != nil {
		s.logger.Warn("trade-chat get failed",
			"trade_hash", tradeHash,
			"error", err,
		)
		s.respondEnvelope(w, http.StatusBadRequest, errorEnvelope())
		return
	}

	s.respondEnvelope(w, http.StatusOK, successEnvelope(data))
}

// handleChatPost proxies a trade-chat write to the platform.
func (s *Server) handleChatPost(w http.ResponseWriter, r *http.Request) {
	tradeHash := r.PostFormValue("trade_hash")
	message := r.PostFormValue("message")
	if tradeHash == "" || message == "" {
		s.respondEnvelope(w, http.StatusBadRequest, errorEnvelope())
		return
	}

	data, err := s.platform.PostTradeChat(r.Context(), tradeHash, message)
	if err != nil {
		s.logger.Warn("trade-chat post failed",
			"trade_hash", tradeHash,
			"error", err,
		)
		s.respondEnvelope(w, http.StatusBadRequest, errorEnvelope())
		return
	}

	s.respondEnvelope(w, http.StatusOK, successEnvelope(data))
}
