// Package relay implements the HTTP surface of the trade-webhook relay:
// one webhook endpoint receiving trade-lifecycle notifications and two
// endpoints proxying trade-chat reads/writes to the platform API.
//
// # Security Model
//
// - Ed25519 signature over "{webhook_url}:{raw_body}" verified when a
//   platform public key is configured (signed variant)
// - Bodyless requests are liveness probes: the challenge header is
//   echoed back with no verification and no lookups
// - Body size limits enforced on the webhook endpoint
// - Verification failures produce a bare 401 with no detail
// - Request logging excludes payloads
//
// # Request Flow (webhook)
//
//  1. HTTP POST arrives at /webhook
//  2. Body size checked (reject with 413 if too large)
//  3. Empty body: echo X-Noones-Request-Challenge, done
//  4. Signature verified over the raw body (reject with 401 on mismatch)
//  5. Event parsed (reject with 400 if malformed)
//  6. Filter: event must be "trade.started" with a watched offer hash,
//     anything else gets 200 "OK" with no side effects
//  7. Configured delay elapses on the handling goroutine, then one
//     token exchange and one greeting post; the outcome is logged only
//  8. 200 "OK" returned to the webhook caller
//
// # Request Flow (chat proxy)
//
//  1. HTTP POST arrives at /trade-chat/get or /trade-chat/post with
//     form fields (trade_hash, and message for post)
//  2. Missing field: 400 {"status":"error","timestamp":...}, no
//     outbound call
//  3. Fresh token exchange, form-encoded POST to the matching platform
//     endpoint
//  4. Platform 200: 200 {"data":...,"status":"success","timestamp":...}
//  5. Anything else: 400 error envelope, platform detail discarded
//
// Handlers are stateless and independent; two events for the same trade
// may greet twice, in either order. There is no deduplication.
package relay
