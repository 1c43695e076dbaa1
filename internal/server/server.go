// Package server accepts TCP connections and spawns one protocol instance
// per connection, sharing the server's Keyring and Store. The accept loop
// never stops on a per-connection error; it only stops when the listener is
// closed.
package server

import (
	"context"
	"net"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/arminfriedl/coffer/internal/coffer"
	"github.com/arminfriedl/coffer/internal/keyring"
	"github.com/arminfriedl/coffer/internal/protocol"
)

// Server holds the shared, reference-counted state every connection
// goroutine reads from.
type Server struct {
	store *coffer.Store
	keys  *keyring.Keyring

	metrics *metrics

	ctx    context.Context
	cancel context.CancelFunc
}

// New builds a Server around an already-loaded Store and Keyring. Passing a
// non-nil Prometheus registerer registers the server's collectors with it;
// with nil the collectors are still updated but never registered.
func New(store *coffer.Store, keys *keyring.Keyring, reg prometheus.Registerer) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		store:   store,
		keys:    keys,
		metrics: newMetrics(reg),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Run binds addr and accepts connections until Stop is called or the
// listener fails to bind, which is the only fatal error this method
// returns.
func (s *Server) Run(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	defer listener.Close()

	logrus.WithField("address", listener.Addr()).Info("server: listening")

	go func() {
		<-s.ctx.Done()
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return nil
			default:
				logrus.WithError(err).Warn("server: accept failed, continuing")
				continue
			}
		}

		go s.handle(conn)
	}
}

// Stop cancels the accept loop and closes the listener.
func (s *Server) Stop() {
	s.cancel()
}

func (s *Server) handle(conn net.Conn) {
	s.metrics.connectionsAccepted.Inc()
	s.metrics.connectionsActive.Inc()
	defer s.metrics.connectionsActive.Dec()

	logrus.WithField("remote", conn.RemoteAddr()).Debug("server: accepted connection")

	p := protocol.New(conn, s.store, s.keys)
	if err := p.Run(); err != nil {
		s.metrics.protocolErrors.Inc()
	}
}
