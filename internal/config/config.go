// Package config provides the small environment-variable-fallback helper
// shared by the server and client CLIs: a flag's default is the
// environment variable's value when set, otherwise a hardcoded default,
// mirroring the precedence spec.md describes for COFFER_SERVER_ADDRESS and
// COFFER_CLIENT_CERTIFICATE.
package config

import "os"

// EnvOr returns the value of the environment variable name, or fallback if
// it is unset or empty.
func EnvOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
