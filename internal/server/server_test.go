package server

import (
	"encoding/hex"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arminfriedl/coffer/internal/certificate"
	"github.com/arminfriedl/coffer/internal/client"
	"github.com/arminfriedl/coffer/internal/coffer"
	"github.com/arminfriedl/coffer/internal/keyring"
)

func TestServerServesConcurrentClients(t *testing.T) {
	owner, err := certificate.Generate()
	require.NoError(t, err)

	keys := keyring.New(owner)
	store := coffer.New()
	srv := New(store, keys, nil)

	const addr = "127.0.0.1:19187"

	runErr := make(chan error, 1)
	go func() { runErr <- srv.Run(addr) }()
	defer srv.Stop()

	// Give the accept loop a moment to bind before dialing.
	time.Sleep(100 * time.Millisecond)

	const clientCount = 5
	var wg sync.WaitGroup
	results := make([]error, clientCount)

	for i := 0; i < clientCount; i++ {
		cert, err := certificate.Generate()
		require.NoError(t, err)
		pub := cert.PublicKey()
		require.NoError(t, keys.AddKnownKey(pub[:]))

		shardID := hex.EncodeToString(pub[:])
		require.NoError(t, store.Put(coffer.Key{Shard: shardID, Key: "n"}, coffer.Integer(int32(i))))

		wg.Add(1)
		go func(i int, cert *certificate.Certificate) {
			defer wg.Done()

			shard, err := client.FetchShard(addr, cert)
			if err != nil {
				results[i] = err
				return
			}
			if len(shard.Pairs()) != 1 || shard.Pairs()[0].Value != coffer.Integer(int32(i)) {
				results[i] = errors.New("shard did not contain the expected isolated pair")
			}
		}(i, cert)
	}

	wg.Wait()
	for _, err := range results {
		assert.NoError(t, err)
	}

	select {
	case err := <-runErr:
		t.Fatalf("server exited early: %v", err)
	default:
	}
}

func TestServerRejectsUnknownClientWithoutCrashing(t *testing.T) {
	owner, err := certificate.Generate()
	require.NoError(t, err)

	keys := keyring.New(owner)
	store := coffer.New()
	srv := New(store, keys, nil)

	const addr = "127.0.0.1:19188"

	go func() { _ = srv.Run(addr) }()
	defer srv.Stop()
	time.Sleep(100 * time.Millisecond)

	unregistered, err := certificate.Generate()
	require.NoError(t, err)

	_, err = client.FetchShard(addr, unregistered)
	assert.Error(t, err)

	// The server must still be accepting connections for other clients.
	known, err := certificate.Generate()
	require.NoError(t, err)
	pub := known.PublicKey()
	require.NoError(t, keys.AddKnownKey(pub[:]))

	_, err = client.FetchShard(addr, known)
	assert.NoError(t, err)
}
