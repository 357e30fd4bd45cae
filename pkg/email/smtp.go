package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
)

// SMTPSender relays messages through an SMTP server, optionally DKIM-signed.
type SMTPSender struct {
	cfg    SMTPConfig
	from   string
	signer *DKIMSigner
	dial   func(ctx context.Context, network, addr string) (net.Conn, error)
}

// SMTPOption configures an SMTPSender.
type SMTPOption func(*SMTPSender)

// WithDKIMSigner signs every outgoing message with s.
func WithDKIMSigner(s *DKIMSigner) SMTPOption {
	return func(sender *SMTPSender) {
		sender.signer = s
	}
}

// WithDialer replaces the network dialer.
func WithDialer(dial func(ctx context.Context, network, addr string) (net.Conn, error)) SMTPOption {
	return func(sender *SMTPSender) {
		if dial != nil {
			sender.dial = dial
		}
	}
}

// NewSMTPSender validates cfg and returns a relay sender.
// from is used when a message has no From of its own.
func NewSMTPSender(cfg SMTPConfig, from string, opts ...SMTPOption) (*SMTPSender, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, fmt.Errorf("%w: SMTP host is required", ErrInvalidConfig)
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	if cfg.HelloName == "" {
		cfg.HelloName = "localhost"
	}

	s := &SMTPSender{cfg: cfg, from: from}
	dialer := &net.Dialer{Timeout: cfg.DialTimeout}
	s.dial = dialer.DialContext
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Send serializes msg and delivers it in one SMTP transaction. The
// returned id is the Message-ID header of the sent message.
func (s *SMTPSender) Send(ctx context.Context, msg *Message) (string, error) {
	if msg != nil && msg.From == "" {
		clone := *msg
		clone.From = s.from
		msg = &clone
	}

	raw, err := BuildMIME(msg)
	if err != nil {
		return "", err
	}
	messageID := headerValue(raw, "Message-Id")

	if raw, err = s.signer.Sign(raw, msg.From); err != nil {
		return "", err
	}

	if err := s.deliver(ctx, msg, raw); err != nil {
		return "", err
	}
	return messageID, nil
}

func (s *SMTPSender) deliver(ctx context.Context, msg *Message, raw []byte) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	conn, err := s.dial(ctx, "tcp", addr)
	if err != nil {
		return s.classify(err)
	}
	defer conn.Close()

	// net/smtp has no context support; the deadline bounds the whole session
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return s.classify(err)
	}
	defer client.Close()

	if err := client.Hello(s.cfg.HelloName); err != nil {
		return s.classify(err)
	}
	if ok, _ := client.Extension("STARTTLS"); ok && s.cfg.StartTLS {
		if err := client.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
			return s.classify(err)
		}
	}
	if s.cfg.Username != "" {
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return s.classify(err)
		}
	}

	if err := client.Mail(envelopeAddress(msg.From)); err != nil {
		return s.classify(err)
	}
	for _, rcpt := range msg.Recipients() {
		if err := client.Rcpt(envelopeAddress(rcpt)); err != nil {
			return s.classify(err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return s.classify(err)
	}
	if _, err := w.Write(raw); err != nil {
		_ = w.Close()
		return s.classify(err)
	}
	if err := w.Close(); err != nil {
		return s.classify(err)
	}
	// the server accepted the message; a failed QUIT does not undo that
	_ = client.Quit()
	return nil
}

// classify marks 4xx replies and network failures retryable; 5xx replies are permanent.
func (s *SMTPSender) classify(err error) error {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		return &SendError{
			Provider:  ProviderSMTP,
			Code:      tpErr.Code,
			Retryable: tpErr.Code >= 400 && tpErr.Code < 500,
			Err:       err,
		}
	}
	return &SendError{Provider: ProviderSMTP, Retryable: true, Err: err}
}

func envelopeAddress(addr string) string {
	if i := strings.LastIndexByte(addr, '<'); i >= 0 {
		if j := strings.LastIndexByte(addr, '>'); j > i {
			return addr[i+1 : j]
		}
	}
	return strings.TrimSpace(addr)
}

// headerValue returns the first value of key in the header block of raw.
func headerValue(raw []byte, key string) string {
	prefix := strings.ToLower(key) + ":"
	for line := range strings.SplitSeq(string(raw), "\r\n") {
		if line == "" {
			break
		}
		if strings.HasPrefix(strings.ToLower(line), prefix) {
			return strings.Trim(strings.TrimSpace(line[len(prefix):]), "<>")
		}
	}
	return ""
}
