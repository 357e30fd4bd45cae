package email_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailqueue/pkg/email"
)

func testKeyPEM(t *testing.T) string {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}))
}

func TestNewDKIMSigner(t *testing.T) {
	t.Parallel()

	signer, err := email.NewDKIMSigner(email.DKIMConfig{})
	require.NoError(t, err)
	assert.Nil(t, signer)

	_, err = email.NewDKIMSigner(email.DKIMConfig{PrivateKey: testKeyPEM(t)})
	assert.ErrorIs(t, err, email.ErrInvalidConfig)

	_, err = email.NewDKIMSigner(email.DKIMConfig{Selector: "mail", PrivateKey: "garbage"})
	assert.ErrorIs(t, err, email.ErrInvalidConfig)
}

func TestDKIMSigner_Sign(t *testing.T) {
	t.Parallel()

	raw, err := email.BuildMIME(validMessage())
	require.NoError(t, err)

	signer, err := email.NewDKIMSigner(email.DKIMConfig{Selector: "mail", PrivateKey: testKeyPEM(t)})
	require.NoError(t, err)
	require.NotNil(t, signer)

	signed, err := signer.Sign(raw, "events@club.org")
	require.NoError(t, err)
	assert.Contains(t, string(signed), "DKIM-Signature:")
	assert.Contains(t, string(signed), "d=club.org")
	assert.Contains(t, string(signed), "s=mail")

	var nilSigner *email.DKIMSigner
	same, err := nilSigner.Sign(raw, "events@club.org")
	require.NoError(t, err)
	assert.Equal(t, raw, same)
}
