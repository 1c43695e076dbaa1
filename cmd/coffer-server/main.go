// Command coffer-server runs the coffer secret custodian: it loads a
// keypair, decrypts and parses the initial secrets bootstrap, and serves
// shards to authenticated clients over the coffer wire protocol.
package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/arminfriedl/coffer/internal/coffer"
	"github.com/arminfriedl/coffer/internal/coffererr"
	"github.com/arminfriedl/coffer/internal/config"
	"github.com/arminfriedl/coffer/internal/keyring"
	"github.com/arminfriedl/coffer/internal/limits"
	"github.com/arminfriedl/coffer/internal/server"
)

func main() {
	cfg := parseFlags()

	level, err := logrus.ParseLevel(cfg.logLevel)
	if err != nil {
		logrus.WithError(err).Fatal("invalid --log-level")
	}
	logrus.SetLevel(level)

	keys, store, err := bootstrap(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("coffer-server: startup failed")
	}

	var reg prometheus.Registerer
	if cfg.metricsAddress != "" {
		concreteReg := prometheus.NewRegistry()
		reg = concreteReg
		go serveMetrics(cfg.metricsAddress, concreteReg)
	}

	srv := server.New(store, keys, reg)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		logrus.Info("coffer-server: signal received, shutting down")
		srv.Stop()
	}()

	if err := srv.Run(cfg.address); err != nil {
		logrus.WithError(err).Fatal("coffer-server: listener failed")
	}

	os.Exit(0)
}

type flags struct {
	certificatePath string
	secretsPath     string
	address         string
	keep            bool
	logLevel        string
	metricsAddress  string
}

func parseFlags() flags {
	var f flags
	flag.StringVar(&f.certificatePath, "certificate", config.EnvOr("COFFER_SERVER_CERTIFICATE", ""),
		"Path to the server certificate (CBOR).")
	flag.StringVar(&f.secretsPath, "secrets", config.EnvOr("COFFER_SERVER_SECRETS", ""),
		"Path to the initial secrets bootstrap, sealed under the server public key.")
	flag.StringVar(&f.address, "address", config.EnvOr("COFFER_SERVER_ADDRESS", "127.0.0.1:9187"),
		"Address the coffer server binds to.")
	flag.BoolVar(&f.keep, "keep", false, "Do not delete the secrets file after loading it.")
	flag.StringVar(&f.logLevel, "log-level", "info", "Log level (debug, info, warn, error).")
	flag.StringVar(&f.metricsAddress, "metrics-address", "", "Address to serve Prometheus metrics on; empty disables metrics.")
	flag.Parse()

	if f.certificatePath == "" || f.secretsPath == "" {
		logrus.Fatal("coffer-server: --certificate and --secrets are required")
	}

	return f
}

// bootstrap loads the server's certificate and uses it to open and parse
// the sealed secrets file into a Keyring (known client keys) and a Store
// (initial shard contents). Both the keyring and store are built by
// walking the same decrypted TOML document.
func bootstrap(cfg flags) (*keyring.Keyring, *coffer.Store, error) {
	keys, err := keyring.Load(cfg.certificatePath)
	if err != nil {
		return nil, nil, coffererr.Wrap(coffererr.IO, "bootstrap: load certificate", err)
	}

	sealedSecrets, err := os.ReadFile(cfg.secretsPath)
	if err != nil {
		return nil, nil, coffererr.Wrap(coffererr.IO, "bootstrap: read secrets", err)
	}
	if err := limits.ValidateSize(len(sealedSecrets), limits.MaxBootstrapDocument); err != nil {
		return nil, nil, coffererr.Wrap(coffererr.Config, "bootstrap: secrets file", err)
	}

	plainSecrets, err := keys.Open(sealedSecrets)
	if err != nil {
		return nil, nil, coffererr.Wrap(coffererr.Crypto, "bootstrap: open secrets", err)
	}

	if err := keys.AddKnownKeysFromTOML(string(plainSecrets)); err != nil {
		return nil, nil, err
	}

	store, err := coffer.FromTOML(string(plainSecrets))
	if err != nil {
		return nil, nil, err
	}

	if !cfg.keep {
		if err := os.Remove(cfg.secretsPath); err != nil {
			logrus.WithError(err).Warn("bootstrap: failed to delete secrets file")
		}
	}

	return keys, store, nil
}

func serveMetrics(address string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	logrus.WithField("address", address).Info("coffer-server: serving metrics")
	if err := http.ListenAndServe(address, mux); err != nil {
		logrus.WithError(err).Warn("coffer-server: metrics server stopped")
	}
}
