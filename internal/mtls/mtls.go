// Package mtls builds the mutual-TLS configuration shared by the agent's
// WebSocket client and the server's WebSocket listener. The server only
// accepts agent/viewer connections presenting a certificate signed by
// the deployment's own CA. The agent trusts only a server certificate
// chaining to that same CA when a CA is supplied; without one it
// verifies the server against the system root pool.
package mtls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/screencontrol/core/internal/logging"
)

var log = logging.L("mtls")

// LoadKeyPair parses a PEM-encoded certificate and private key pair.
func LoadKeyPair(certPEM, keyPEM string) (*tls.Certificate, error) {
	cert, err := tls.X509KeyPair([]byte(certPEM), []byte(keyPEM))
	if err != nil {
		return nil, fmt.Errorf("mtls: parse key pair: %w", err)
	}
	return &cert, nil
}

// ClientConfig returns the agent-side TLS config: presents certPEM/keyPEM
// as the client certificate, and trusts only caPEM when it is non-empty;
// an empty caPEM leaves RootCAs nil, so the system root pool applies.
// Returns nil, nil if
// certPEM or keyPEM is empty (mTLS not configured for this deployment).
func ClientConfig(caPEM, certPEM, keyPEM string) (*tls.Config, error) {
	if certPEM == "" || keyPEM == "" {
		return nil, nil
	}

	cert, err := LoadKeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}

	cfg := &tls.Config{Certificates: []tls.Certificate{*cert}}
	if caPEM != "" {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM([]byte(caPEM)) {
			return nil, fmt.Errorf("mtls: no certificates parsed from CA PEM")
		}
		cfg.RootCAs = pool
	}
	return cfg, nil
}

// ServerConfig returns the server-side TLS config: presents certPEM/keyPEM
// as the server certificate, and requires every connecting client to
// present a certificate signed by caPEM.
func ServerConfig(caPEM, certPEM, keyPEM string) (*tls.Config, error) {
	cert, err := LoadKeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM([]byte(caPEM)) {
		return nil, fmt.Errorf("mtls: no certificates parsed from CA PEM")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{*cert},
		ClientCAs:    pool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
	}, nil
}

func parseExpiryTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.Parse("2006-01-02T15:04:05", s)
	}
	return t, err
}

// IsExpired reports whether a cert's expiry timestamp has passed. Fails
// closed: an unparseable timestamp is treated as expired so the caller
// renews rather than trusts a cert it cannot validate the lifetime of.
func IsExpired(expiresStr string) bool {
	if expiresStr == "" {
		return false
	}
	t, err := parseExpiryTime(expiresStr)
	if err != nil {
		log.Warn("unable to parse mTLS cert expiry, treating as expired", "expires", expiresStr, "error", err)
		return true
	}
	return time.Now().After(t)
}

// NeedsRenewal reports whether a cert has passed 2/3 of its lifetime.
func NeedsRenewal(issuedStr, expiresStr string) bool {
	if issuedStr == "" || expiresStr == "" {
		return false
	}
	issued, err := parseExpiryTime(issuedStr)
	if err != nil {
		return false
	}
	expires, err := parseExpiryTime(expiresStr)
	if err != nil {
		return false
	}

	lifetime := expires.Sub(issued)
	threshold := issued.Add(lifetime * 2 / 3)
	return time.Now().After(threshold)
}
