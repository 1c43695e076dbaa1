package protocol

import (
	"encoding/hex"
	"net"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arminfriedl/coffer/internal/certificate"
	"github.com/arminfriedl/coffer/internal/coffer"
	"github.com/arminfriedl/coffer/internal/keyring"
	"github.com/arminfriedl/coffer/internal/wire"
)

func newTestConn(t *testing.T) (client net.Conn, store *coffer.Store, keys *keyring.Keyring, owner *certificate.Certificate) {
	t.Helper()

	server, clientSide := net.Pipe()

	owner, err := certificate.Generate()
	require.NoError(t, err)
	keys = keyring.New(owner)
	store = coffer.New()

	conn := New(server, store, keys)
	go func() { _ = conn.Run() }()

	return clientSide, store, keys, owner
}

func TestHappyPathServesRegisteredShard(t *testing.T) {
	client, store, keys, _ := newTestConn(t)
	defer client.Close()

	clientCert, err := certificate.Generate()
	require.NoError(t, err)
	clientPub := clientCert.PublicKey()
	require.NoError(t, keys.AddKnownKey(clientPub[:]))

	shardID := hex.EncodeToString(clientPub[:])
	require.NoError(t, store.Put(coffer.Key{Shard: shardID, Key: "password"}, coffer.String("hunter2")))

	require.NoError(t, wire.WriteFrame(client, wire.Hello, clientPub[:]))
	require.NoError(t, wire.WriteFrame(client, wire.Get, nil))

	frame, err := wire.ReadFrame(client, wire.DefaultMaxPayloadSize)
	require.NoError(t, err)
	assert.Equal(t, wire.OkGet, frame.Type)

	plaintext, err := clientCert.Open(frame.Payload)
	require.NoError(t, err)

	var shard coffer.Shard
	require.NoError(t, cbor.Unmarshal(plaintext, &shard))
	require.Len(t, shard.Pairs(), 1)
	assert.Equal(t, "password", shard.Pairs()[0].Key)
	assert.Equal(t, coffer.String("hunter2"), shard.Pairs()[0].Value)

	require.NoError(t, wire.WriteFrame(client, wire.Bye, nil))
}

func TestUnknownClientTerminatesConnection(t *testing.T) {
	client, _, _, _ := newTestConn(t)
	defer client.Close()

	unregistered, err := certificate.Generate()
	require.NoError(t, err)
	pub := unregistered.PublicKey()

	require.NoError(t, wire.WriteFrame(client, wire.Hello, pub[:]))
	require.NoError(t, wire.WriteFrame(client, wire.Get, nil))

	_, err = wire.ReadFrame(client, wire.DefaultMaxPayloadSize)
	assert.Error(t, err, "server closes the connection instead of answering an unregistered client")
}

func TestGetBeforeHelloTerminatesConnection(t *testing.T) {
	client, _, _, _ := newTestConn(t)
	defer client.Close()

	require.NoError(t, wire.WriteFrame(client, wire.Get, nil))

	_, err := wire.ReadFrame(client, wire.DefaultMaxPayloadSize)
	assert.Error(t, err, "Get sent before Hello gets no response, just a closed connection")
}

func TestMalformedHelloTerminatesConnection(t *testing.T) {
	client, _, _, _ := newTestConn(t)
	defer client.Close()

	require.NoError(t, wire.WriteFrame(client, wire.Hello, []byte("too-short")))

	_, err := wire.ReadFrame(client, wire.DefaultMaxPayloadSize)
	assert.Error(t, err)
}

func TestMissingShardServesEmptyShard(t *testing.T) {
	client, _, keys, _ := newTestConn(t)
	defer client.Close()

	clientCert, err := certificate.Generate()
	require.NoError(t, err)
	pub := clientCert.PublicKey()
	require.NoError(t, keys.AddKnownKey(pub[:]))

	require.NoError(t, wire.WriteFrame(client, wire.Hello, pub[:]))
	require.NoError(t, wire.WriteFrame(client, wire.Get, nil))

	frame, err := wire.ReadFrame(client, wire.DefaultMaxPayloadSize)
	require.NoError(t, err)

	plaintext, err := clientCert.Open(frame.Payload)
	require.NoError(t, err)

	var shard coffer.Shard
	require.NoError(t, cbor.Unmarshal(plaintext, &shard))
	assert.Empty(t, shard.Pairs())
}

func TestStateStringNames(t *testing.T) {
	assert.Equal(t, "start", StateStart.String())
	assert.Equal(t, "linked", StateLinked.String())
	assert.Equal(t, "closing", StateClosing.String())
	assert.Equal(t, "end", StateEnd.String())
}
