package email

import (
	"fmt"
	"log/slog"
	"strings"
)

// NewSender builds the transport named by cfg.Provider. With no provider
// set it picks Postmark when a server token is configured and the
// simulate sender otherwise.
func NewSender(cfg Config, log *slog.Logger) (Sender, error) {
	if log == nil {
		log = slog.Default()
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = ProviderSimulate
		if cfg.Postmark.ServerToken != "" {
			provider = ProviderPostmark
		}
	}

	switch provider {
	case ProviderPostmark:
		s, err := NewPostmarkSender(cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	case ProviderSMTP:
		signer, err := NewDKIMSigner(cfg.DKIM)
		if err != nil {
			return nil, err
		}
		s, err := NewSMTPSender(cfg.SMTP, cfg.SenderEmail, WithDKIMSigner(signer))
		if err != nil {
			return nil, err
		}
		log.Info("email transport is smtp", slog.String("host", cfg.SMTP.Host), slog.Bool("dkim", signer != nil))
		return s, nil
	case ProviderDev:
		log.Info("email transport writes to disk", slog.String("dir", cfg.DevDir))
		return NewDevSender(cfg.DevDir), nil
	case ProviderSimulate:
		log.Warn("no email transport configured, messages are simulated")
		return NewSimulateSender(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSender, cfg.Provider)
	}
}
