package mtls

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"
)

func genSelfSignedPEM(t *testing.T) (certPEM, keyPEM string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	certPEM = string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))
	keyPEM = string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}))
	return certPEM, keyPEM
}

func TestClientConfigNilWhenCertOrKeyEmpty(t *testing.T) {
	cfg, err := ClientConfig("", "", "")
	if err != nil || cfg != nil {
		t.Fatalf("ClientConfig() = %v, %v; want nil, nil", cfg, err)
	}
}

func TestClientConfigLoadsCertificate(t *testing.T) {
	certPEM, keyPEM := genSelfSignedPEM(t)
	cfg, err := ClientConfig("", certPEM, keyPEM)
	if err != nil {
		t.Fatalf("ClientConfig() error = %v", err)
	}
	if len(cfg.Certificates) != 1 {
		t.Fatalf("expected 1 certificate, got %d", len(cfg.Certificates))
	}
}

func TestServerConfigRequiresClientCert(t *testing.T) {
	certPEM, keyPEM := genSelfSignedPEM(t)
	cfg, err := ServerConfig(certPEM, certPEM, keyPEM)
	if err != nil {
		t.Fatalf("ServerConfig() error = %v", err)
	}
	if cfg.ClientAuth.String() == "" {
		t.Fatal("expected ClientAuth to be set")
	}
	if cfg.ClientCAs == nil {
		t.Fatal("expected ClientCAs pool to be populated")
	}
}

func TestServerConfigRejectsBadCAPEM(t *testing.T) {
	certPEM, keyPEM := genSelfSignedPEM(t)
	if _, err := ServerConfig("not a pem", certPEM, keyPEM); err == nil {
		t.Fatal("expected error for malformed CA PEM")
	}
}

func TestIsExpired(t *testing.T) {
	if IsExpired("") {
		t.Error("empty string should not be expired")
	}
	if !IsExpired("not-a-timestamp") {
		t.Error("unparseable timestamp should fail closed as expired")
	}
	past := time.Now().Add(-time.Hour).Format(time.RFC3339)
	if !IsExpired(past) {
		t.Error("past timestamp should be expired")
	}
	future := time.Now().Add(time.Hour).Format(time.RFC3339)
	if IsExpired(future) {
		t.Error("future timestamp should not be expired")
	}
}

func TestNeedsRenewal(t *testing.T) {
	issued := time.Now().Add(-9 * time.Hour).Format(time.RFC3339)
	expires := time.Now().Add(-3 * time.Hour).Format(time.RFC3339)
	if !NeedsRenewal(issued, expires) {
		t.Error("cert past 2/3 lifetime should need renewal")
	}

	issued2 := time.Now().Add(-1 * time.Hour).Format(time.RFC3339)
	expires2 := time.Now().Add(11 * time.Hour).Format(time.RFC3339)
	if NeedsRenewal(issued2, expires2) {
		t.Error("fresh cert should not need renewal")
	}
}
