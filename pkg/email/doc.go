// Package email turns rendered messages into deliveries.
//
// A Message is handed to a Sender, which returns the provider's message
// id. Implementations:
//   - PostmarkSender: Postmark transactional API
//   - SMTPSender: any SMTP relay, with optional DKIM signing via DKIMSigner
//   - DevSender: writes .eml and .json files for local inspection
//   - SimulateSender: accepts everything; used when no transport is configured
//
// NewSender picks one from Config. BuildMIME serializes a message with
// go-message and is also used to measure message size before delivery.
//
// Failed provider calls are reported as *SendError, which matches
// ErrTransport under errors.Is. IsRetryable tells transient failures
// (timeouts, throttling, 4xx SMTP replies) from permanent ones.
//
// Templates live in the templates subpackage.
package email
