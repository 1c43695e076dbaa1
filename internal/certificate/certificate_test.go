package certificate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateProducesDistinctKeypairs(t *testing.T) {
	a, err := Generate()
	require.NoError(t, err)
	b, err := Generate()
	require.NoError(t, err)

	assert.NotEqual(t, a.PublicKey(), b.PublicKey())
}

func TestSealOpenRoundTrip(t *testing.T) {
	cert, err := Generate()
	require.NoError(t, err)

	messages := [][]byte{
		[]byte("hello"),
		[]byte(""),
		make([]byte, 10000),
	}

	for _, m := range messages {
		sealed, err := cert.Seal(m)
		require.NoError(t, err)

		opened, err := cert.Open(sealed)
		require.NoError(t, err)
		assert.Equal(t, m, opened)
	}
}

func TestOpenRejectsTamperedCiphertext(t *testing.T) {
	cert, err := Generate()
	require.NoError(t, err)

	sealed, err := cert.Seal([]byte("secret"))
	require.NoError(t, err)

	sealed[len(sealed)-1] ^= 0xff

	_, err = cert.Open(sealed)
	assert.Error(t, err)
}

func TestOpenRejectsForeignCertificate(t *testing.T) {
	a, err := Generate()
	require.NoError(t, err)
	b, err := Generate()
	require.NoError(t, err)

	sealed, err := a.Seal([]byte("for a, not b"))
	require.NoError(t, err)

	_, err = b.Open(sealed)
	assert.Error(t, err)
}

func TestSealToUsesRecipientKey(t *testing.T) {
	recipient, err := Generate()
	require.NoError(t, err)

	sealed, err := SealTo(recipient.PublicKey(), []byte("for recipient"))
	require.NoError(t, err)

	opened, err := recipient.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, []byte("for recipient"), opened)
}

func TestExportLoadRoundTrip(t *testing.T) {
	cert, err := Generate()
	require.NoError(t, err)

	data, err := cert.Export()
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "cert.cbor")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, cert.PublicKey(), loaded.PublicKey())

	sealed, err := cert.Seal([]byte("round trip"))
	require.NoError(t, err)
	opened, err := loaded.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, []byte("round trip"), opened)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.cbor")
	require.NoError(t, os.WriteFile(path, []byte("not cbor"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}
