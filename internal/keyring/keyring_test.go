package keyring

import (
	"encoding/hex"
	"testing"

	"github.com/arminfriedl/coffer/internal/certificate"
	"github.com/arminfriedl/coffer/internal/coffererr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKeyring(t *testing.T) (*Keyring, *certificate.Certificate) {
	t.Helper()
	owner, err := certificate.Generate()
	require.NoError(t, err)
	return New(owner), owner
}

func TestAddKnownKeyRejectsWrongLength(t *testing.T) {
	k, _ := newTestKeyring(t)
	err := k.AddKnownKey([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestAddKnownKeyRejectsAllZero(t *testing.T) {
	k, _ := newTestKeyring(t)
	err := k.AddKnownKey(make([]byte, 32))
	assert.Error(t, err)
}

func TestSealForUnknownClientFails(t *testing.T) {
	k, _ := newTestKeyring(t)
	client, err := certificate.Generate()
	require.NoError(t, err)

	pub := client.PublicKey()
	_, err = k.SealFor(pub[:], []byte("secret"))
	assert.True(t, coffererr.Is(err, coffererr.UnknownClient))
}

func TestSealForRegisteredClientRoundTrips(t *testing.T) {
	k, _ := newTestKeyring(t)
	client, err := certificate.Generate()
	require.NoError(t, err)

	pub := client.PublicKey()
	require.NoError(t, k.AddKnownKey(pub[:]))

	sealed, err := k.SealFor(pub[:], []byte("top secret"))
	require.NoError(t, err)

	opened, err := client.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, []byte("top secret"), opened)
}

func TestAddKnownKeysFromTOMLRegistersShardIDs(t *testing.T) {
	k, _ := newTestKeyring(t)
	client, err := certificate.Generate()
	require.NoError(t, err)
	pub := client.PublicKey()
	id := hex.EncodeToString(pub[:])

	doc := "[client]\nid = \"" + id + "\"\nunused = \"field\"\n"
	require.NoError(t, k.AddKnownKeysFromTOML(doc))

	_, err = k.SealFor(pub[:], []byte("hi"))
	assert.NoError(t, err)
}

func TestAddKnownKeysFromTOMLRejectsNonHexID(t *testing.T) {
	k, _ := newTestKeyring(t)
	doc := "[client]\nid = \"not-hex\"\n"
	err := k.AddKnownKeysFromTOML(doc)
	assert.Error(t, err)
}

func TestOpenDelegatesToCertificate(t *testing.T) {
	k, owner := newTestKeyring(t)
	sealed, err := owner.Seal([]byte("payload"))
	require.NoError(t, err)

	opened, err := k.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), opened)
}
