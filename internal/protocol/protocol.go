// Package protocol drives the per-connection Hello->Get->Bye conversation
// over a framed byte stream, enforcing strict message ordering and never
// exposing a shard to a peer that has not proven its identifier.
package protocol

import (
	"encoding/hex"
	"net"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/sirupsen/logrus"

	"github.com/arminfriedl/coffer/internal/coffer"
	"github.com/arminfriedl/coffer/internal/coffererr"
	"github.com/arminfriedl/coffer/internal/keyring"
	"github.com/arminfriedl/coffer/internal/limits"
	"github.com/arminfriedl/coffer/internal/wire"
)

// State is one of the four connection states named in the spec's data
// model. "Closing" is the state the spec's transition diagram labels "Bye":
// the server has answered Get and is now only willing to accept the
// client's farewell.
type State uint8

const (
	StateStart State = iota
	StateLinked
	StateClosing
	StateEnd
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateLinked:
		return "linked"
	case StateClosing:
		return "closing"
	case StateEnd:
		return "end"
	default:
		return "unknown"
	}
}

// DefaultMessageDeadline bounds how long the state machine will wait for
// any single read or write, preventing a slow or silent client from pinning
// a connection goroutine forever.
const DefaultMessageDeadline = 30 * time.Second

// Conn drives one connection's state machine. It is not safe for concurrent
// use; the server runs exactly one goroutine per Conn.
type Conn struct {
	stream net.Conn
	store  *coffer.Store
	keys   *keyring.Keyring

	state           State
	clientPublicKey []byte

	maxPayload      uint64
	messageDeadline time.Duration
}

// New builds a Conn in the Start state around an accepted stream, sharing
// the server's store and keyring.
func New(stream net.Conn, store *coffer.Store, keys *keyring.Keyring) *Conn {
	return &Conn{
		stream:          stream,
		store:           store,
		keys:            keys,
		state:           StateStart,
		maxPayload:      wire.DefaultMaxPayloadSize,
		messageDeadline: DefaultMessageDeadline,
	}
}

// Run drives the state machine until it reaches End, then closes the
// stream. Per-connection failures are logged here and returned to the
// caller only for metrics bookkeeping; they must never propagate to other
// connections or the listener.
func (c *Conn) Run() error {
	defer c.stream.Close()

	log := logrus.WithField("remote", c.stream.RemoteAddr())

	for c.state != StateEnd {
		log.WithField("state", c.state).Debug("protocol: awaiting next message")

		if c.messageDeadline > 0 {
			_ = c.stream.SetDeadline(time.Now().Add(c.messageDeadline))
		}

		frame, err := wire.ReadFrame(c.stream, c.maxPayload)
		if err != nil {
			log.WithError(err).Debug("protocol: terminating connection on read failure")
			c.state = StateEnd
			return err
		}

		if err := c.transition(frame, log); err != nil {
			log.WithError(err).Warn("protocol: terminating connection")
			c.state = StateEnd
			return err
		}
	}
	return nil
}

func (c *Conn) transition(frame wire.Frame, log *logrus.Entry) error {
	switch {
	case c.state == StateStart && frame.Type == wire.Hello:
		return c.handleHello(frame, log)

	case c.state == StateLinked && frame.Type == wire.Get:
		return c.handleGet(log)

	case c.state == StateLinked && frame.Type == wire.Bye:
		c.state = StateEnd
		return nil

	case c.state == StateClosing && frame.Type == wire.Bye:
		c.state = StateEnd
		return nil

	default:
		// Any other message for the current state terminates the
		// connection without a response, per the protocol's strict
		// ordering rule.
		err := coffererr.New(coffererr.Protocol, "unexpected message for state "+c.state.String())
		c.state = StateEnd
		return err
	}
}

func (c *Conn) handleHello(frame wire.Frame, log *logrus.Entry) error {
	if err := limits.ValidateExactSize(len(frame.Payload), limits.HelloPayloadSize); err != nil {
		return coffererr.Wrap(coffererr.Protocol, "protocol.handleHello", err)
	}

	c.clientPublicKey = frame.Payload
	c.state = StateLinked

	log.WithField("client", hex.EncodeToString(c.clientPublicKey)).Debug("protocol: linked")
	return nil
}

func (c *Conn) handleGet(log *logrus.Entry) error {
	shardID := hex.EncodeToString(c.clientPublicKey)

	shard, ok := c.store.GetShard(shardID)
	if !ok {
		shard = coffer.Shard{}
	}

	encoded, err := cbor.Marshal(shard)
	if err != nil {
		return coffererr.Wrap(coffererr.Parse, "protocol.handleGet", err)
	}

	sealed, err := c.keys.SealFor(c.clientPublicKey, encoded)
	if err != nil {
		// Includes the UnknownClient case: the spec requires the
		// connection to be terminated rather than returning an error
		// frame.
		return err
	}

	if err := wire.WriteFrame(c.stream, wire.OkGet, sealed); err != nil {
		return err
	}

	log.WithField("shard", shardID).Debug("protocol: served shard")
	c.state = StateClosing
	return nil
}
