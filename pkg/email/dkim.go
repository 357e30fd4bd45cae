package email

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/emersion/go-msgauth/dkim"
)

var dkimHeaderKeys = []string{
	"from", "to", "cc", "reply-to", "subject", "date",
	"message-id", "mime-version", "content-type",
}

// DKIMSigner adds a DKIM-Signature header to serialized messages.
// A nil *DKIMSigner passes messages through unchanged.
type DKIMSigner struct {
	domain   string
	selector string
	key      crypto.Signer
}

// NewDKIMSigner builds a signer from cfg. It returns nil, nil when DKIM
// is not configured.
func NewDKIMSigner(cfg DKIMConfig) (*DKIMSigner, error) {
	selector := strings.TrimSpace(cfg.Selector)
	if selector == "" && cfg.KeyPath == "" && cfg.PrivateKey == "" {
		return nil, nil
	}
	if selector == "" {
		return nil, fmt.Errorf("%w: dkim selector is required", ErrInvalidConfig)
	}

	var pemData []byte
	switch {
	case cfg.PrivateKey != "":
		pemData = []byte(cfg.PrivateKey)
	case cfg.KeyPath != "":
		data, err := os.ReadFile(cfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("%w: read dkim key: %v", ErrInvalidConfig, err)
		}
		pemData = data
	default:
		return nil, fmt.Errorf("%w: dkim key is required", ErrInvalidConfig)
	}

	key, err := parsePrivateKey(pemData)
	if err != nil {
		return nil, fmt.Errorf("%w: dkim key: %v", ErrInvalidConfig, err)
	}

	return &DKIMSigner{
		domain:   strings.ToLower(strings.TrimSpace(cfg.Domain)),
		selector: selector,
		key:      key,
	}, nil
}

// Sign returns raw with a DKIM signature prepended. The signing domain
// defaults to the domain of from.
func (s *DKIMSigner) Sign(raw []byte, from string) ([]byte, error) {
	if s == nil || s.key == nil {
		return raw, nil
	}

	domain := s.domain
	if domain == "" {
		if i := strings.LastIndexByte(from, '@'); i >= 0 {
			domain = strings.ToLower(strings.Trim(from[i+1:], "> "))
		}
	}
	if domain == "" {
		return nil, errors.New("email: dkim: cannot determine signing domain")
	}

	opts := &dkim.SignOptions{
		Domain:                 domain,
		Selector:               s.selector,
		Signer:                 s.key,
		HeaderCanonicalization: dkim.CanonicalizationRelaxed,
		BodyCanonicalization:   dkim.CanonicalizationRelaxed,
		HeaderKeys:             dkimHeaderKeys,
	}

	var signed bytes.Buffer
	if err := dkim.Sign(&signed, bytes.NewReader(crlf(raw)), opts); err != nil {
		return nil, fmt.Errorf("email: dkim sign: %w", err)
	}
	return signed.Bytes(), nil
}

func parsePrivateKey(pemData []byte) (crypto.Signer, error) {
	for {
		block, rest := pem.Decode(pemData)
		if block == nil {
			return nil, errors.New("no private key in PEM data")
		}
		switch block.Type {
		case "RSA PRIVATE KEY":
			return x509.ParsePKCS1PrivateKey(block.Bytes)
		case "PRIVATE KEY":
			key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
			if err != nil {
				return nil, err
			}
			signer, ok := key.(crypto.Signer)
			if !ok {
				return nil, errors.New("unsupported PKCS#8 key type")
			}
			return signer, nil
		}
		pemData = rest
	}
}

// crlf converts bare LF line endings to CRLF.
func crlf(data []byte) []byte {
	if bytes.Contains(data, []byte("\r\n")) || !bytes.Contains(data, []byte("\n")) {
		return data
	}
	return bytes.ReplaceAll(data, []byte("\n"), []byte("\r\n"))
}
