// Package client implements the coffer client core: connect, Hello, Get,
// Bye, decrypt, and environment injection. Replacing the process image with
// the subcommand is left to the caller (see cmd/coffer-client), since that
// step does not return on success.
package client

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/sirupsen/logrus"

	"github.com/arminfriedl/coffer/internal/certificate"
	"github.com/arminfriedl/coffer/internal/coffer"
	"github.com/arminfriedl/coffer/internal/coffererr"
	"github.com/arminfriedl/coffer/internal/wire"
)

// DefaultDeadline bounds the whole Hello/Get/Bye exchange, matching the
// server's own per-message deadline.
const DefaultDeadline = 30 * time.Second

// FetchShard connects to addr, performs the Hello->Get->Bye exchange using
// cert's identity, and returns the decrypted, decoded shard. Any response
// other than OkGet (including a closed connection) is treated as fatal, per
// the spec: the client must never proceed with a partial or empty
// environment.
func FetchShard(addr string, cert *certificate.Certificate) (coffer.Shard, error) {
	conn, err := net.DialTimeout("tcp", addr, DefaultDeadline)
	if err != nil {
		return coffer.Shard{}, coffererr.Wrap(coffererr.IO, "client.FetchShard: dial", err)
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(DefaultDeadline))

	pub := cert.PublicKey()
	if err := wire.WriteFrame(conn, wire.Hello, pub[:]); err != nil {
		return coffer.Shard{}, coffererr.Wrap(coffererr.IO, "client.FetchShard: send hello", err)
	}

	if err := wire.WriteFrame(conn, wire.Get, nil); err != nil {
		return coffer.Shard{}, coffererr.Wrap(coffererr.IO, "client.FetchShard: send get", err)
	}

	frame, err := wire.ReadFrame(conn, wire.DefaultMaxPayloadSize)
	if err != nil {
		return coffer.Shard{}, coffererr.Wrap(coffererr.IO, "client.FetchShard: read response", err)
	}
	if frame.Type != wire.OkGet {
		return coffer.Shard{}, coffererr.New(coffererr.Protocol,
			fmt.Sprintf("client.FetchShard: expected OkGet (0x%02x), got 0x%02x", wire.OkGet, frame.Type))
	}

	// The server is now waiting for Bye; a failure to send it is not fatal
	// to the fetch since the shard has already been delivered, but it is
	// still attempted so the server can free the connection promptly.
	if err := wire.WriteFrame(conn, wire.Bye, nil); err != nil {
		logrus.WithError(err).Debug("client: failed to send bye, continuing")
	}

	plaintext, err := cert.Open(frame.Payload)
	if err != nil {
		return coffer.Shard{}, coffererr.Wrap(coffererr.Crypto, "client.FetchShard: open", err)
	}

	var shard coffer.Shard
	if err := cbor.Unmarshal(plaintext, &shard); err != nil {
		return coffer.Shard{}, coffererr.Wrap(coffererr.Parse, "client.FetchShard: decode", err)
	}

	return shard, nil
}

// InjectEnv sets one environment variable per string-kinded pair in shard,
// trimming surrounding whitespace from both key and value. Non-string values are
// skipped: they have no textual representation contract.
func InjectEnv(shard coffer.Shard) {
	for _, p := range shard.Pairs() {
		if p.Value.Kind != coffer.KindString {
			continue
		}
		key := strings.TrimSpace(p.Key)
		if err := os.Setenv(key, strings.TrimSpace(p.Value.Str)); err != nil {
			logrus.WithError(err).WithField("key", key).Warn("client: failed to set environment variable")
		}
	}
}
