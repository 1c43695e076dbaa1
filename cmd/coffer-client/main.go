// Command coffer-client fetches this client's secret shard from a coffer
// server, injects it into the process environment, and replaces itself
// with the requested subcommand.
package main

import (
	"flag"
	"os"
	"os/exec"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/arminfriedl/coffer/internal/certificate"
	"github.com/arminfriedl/coffer/internal/client"
	"github.com/arminfriedl/coffer/internal/config"
)

func main() {
	cfg := parseFlags()

	level, err := logrus.ParseLevel(cfg.logLevel)
	if err != nil {
		logrus.WithError(err).Fatal("invalid --log-level")
	}
	logrus.SetLevel(level)

	cert, err := certificate.Load(cfg.certificatePath)
	if err != nil {
		logrus.WithError(err).Fatal("coffer-client: failed to load certificate")
	}
	defer cert.Close()

	shard, err := client.FetchShard(cfg.serverAddress, cert)
	if err != nil {
		logrus.WithError(err).Fatal("coffer-client: failed to fetch shard")
	}

	client.InjectEnv(shard)

	path, err := exec.LookPath(cfg.cmd)
	if err != nil {
		logrus.WithError(err).Fatalf("coffer-client: subcommand %q not found", cfg.cmd)
	}

	argv := append([]string{cfg.cmd}, cfg.cmdArgs...)
	if err := syscall.Exec(path, argv, os.Environ()); err != nil {
		logrus.WithError(err).Fatal("coffer-client: exec failed")
	}
}

type flags struct {
	serverAddress   string
	certificatePath string
	logLevel        string
	cmd             string
	cmdArgs         []string
}

func parseFlags() flags {
	var f flags
	flag.StringVar(&f.serverAddress, "server-address", config.EnvOr("COFFER_SERVER_ADDRESS", "127.0.0.1:9187"),
		"Address of the coffer server.")
	flag.StringVar(&f.certificatePath, "certificate", config.EnvOr("COFFER_CLIENT_CERTIFICATE", ""),
		"Path to the client certificate (CBOR).")
	flag.StringVar(&f.logLevel, "log-level", "info", "Log level (debug, info, warn, error).")
	flag.Parse()

	if f.certificatePath == "" {
		logrus.Fatal("coffer-client: --certificate is required")
	}

	args := flag.Args()
	if len(args) < 1 {
		logrus.Fatal("coffer-client: a subcommand to exec is required")
	}
	f.cmd = args[0]
	f.cmdArgs = args[1:]

	return f
}
