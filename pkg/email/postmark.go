package email

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/mrz1836/postmark"
)

// PostmarkAPI is the part of *postmark.Client used by PostmarkSender.
type PostmarkAPI interface {
	SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error)
}

// Postmark API error codes that are worth retrying.
// https://postmarkapp.com/developer/api/overview#error-codes
var postmarkRetryableCodes = map[int]struct{}{
	100: {}, // maintenance
	429: {},
	500: {},
	503: {},
}

// PostmarkSender delivers messages through Postmark's transactional API.
type PostmarkSender struct {
	client     PostmarkAPI
	from       string
	replyTo    string
	trackOpens bool
	trackLinks string
}

// PostmarkOption configures a PostmarkSender.
type PostmarkOption func(*PostmarkSender)

// WithPostmarkAPI replaces the Postmark client, mostly for tests.
func WithPostmarkAPI(api PostmarkAPI) PostmarkOption {
	return func(s *PostmarkSender) {
		if api != nil {
			s.client = api
		}
	}
}

// NewPostmarkSender validates cfg and returns a Postmark-backed sender.
// SenderEmail is the default From and SupportEmail the default Reply-To.
func NewPostmarkSender(cfg Config, opts ...PostmarkOption) (*PostmarkSender, error) {
	if cfg.Postmark.ServerToken == "" {
		return nil, fmt.Errorf("%w: PostmarkServerToken is required", ErrInvalidConfig)
	}
	if strings.TrimSpace(cfg.SenderEmail) == "" {
		return nil, fmt.Errorf("%w: SenderEmail is required", ErrInvalidConfig)
	}

	s := &PostmarkSender{
		client:     postmark.NewClient(cfg.Postmark.ServerToken, cfg.Postmark.AccountToken),
		from:       cfg.SenderEmail,
		replyTo:    cfg.SupportEmail,
		trackOpens: cfg.Postmark.TrackOpens,
		trackLinks: cfg.Postmark.TrackLinks,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// MustNewPostmarkSender is NewPostmarkSender that panics on invalid config.
func MustNewPostmarkSender(cfg Config, opts ...PostmarkOption) *PostmarkSender {
	s, err := NewPostmarkSender(cfg, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// Send implements Sender.
func (s *PostmarkSender) Send(ctx context.Context, msg *Message) (string, error) {
	if msg != nil && msg.From == "" {
		clone := *msg
		clone.From = s.from
		msg = &clone
	}
	if err := msg.Validate(); err != nil {
		return "", err
	}

	resp, err := s.client.SendEmail(ctx, s.toPostmark(msg))
	if err != nil {
		var apiErr postmark.APIError
		if errors.As(err, &apiErr) {
			return "", postmarkError(apiErr.ErrorCode, apiErr.Message)
		}
		// context errors and transport failures are both worth another attempt
		return "", &SendError{Provider: ProviderPostmark, Retryable: true, Err: err}
	}
	if resp.ErrorCode > 0 {
		return "", postmarkError(resp.ErrorCode, resp.Message)
	}
	return resp.MessageID, nil
}

func postmarkError(code int64, message string) *SendError {
	_, retryable := postmarkRetryableCodes[int(code)]
	return &SendError{
		Provider:  ProviderPostmark,
		Code:      int(code),
		Retryable: retryable,
		Err:       errors.New(message),
	}
}

func (s *PostmarkSender) toPostmark(msg *Message) postmark.Email {
	replyTo := msg.ReplyTo
	if replyTo == "" {
		replyTo = s.replyTo
	}

	pm := postmark.Email{
		From:       msg.From,
		To:         strings.Join(msg.To, ","),
		Cc:         strings.Join(msg.CC, ","),
		Bcc:        strings.Join(msg.BCC, ","),
		Subject:    msg.Subject,
		Tag:        msg.Tag,
		HTMLBody:   msg.HTMLBody,
		TextBody:   msg.TextBody,
		ReplyTo:    replyTo,
		TrackOpens: s.trackOpens,
		Metadata:   msg.Metadata,
	}
	if msg.HTMLBody != "" {
		pm.TrackLinks = s.trackLinks
	}
	for _, name := range slices.Sorted(maps.Keys(msg.Headers)) {
		pm.Headers = append(pm.Headers, postmark.Header{Name: name, Value: msg.Headers[name]})
	}
	for _, a := range msg.Attachments {
		pm.Attachments = append(pm.Attachments, postmark.Attachment{
			Name:        a.Filename,
			Content:     base64.StdEncoding.EncodeToString(a.Content),
			ContentType: a.ContentType,
		})
	}
	return pm
}
