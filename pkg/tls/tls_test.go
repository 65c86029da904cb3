package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writePKI writes a CA and a leaf certificate signed by it into dir.
func writePKI(t *testing.T, dir string) Config {
	t.Helper()

	caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	caTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "tempalign-test-ca"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTmpl, caTmpl, &caKey.PublicKey, caKey)
	if err != nil {
		t.Fatal(err)
	}

	leafKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	leafTmpl := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: "syncd"},
		DNSNames:     []string{"localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTmpl, caTmpl, &leafKey.PublicKey, caKey)
	if err != nil {
		t.Fatal(err)
	}
	keyDER, err := x509.MarshalECPrivateKey(leafKey)
	if err != nil {
		t.Fatal(err)
	}

	cfg := Config{
		Enabled:  true,
		CertFile: filepath.Join(dir, "tls.crt"),
		KeyFile:  filepath.Join(dir, "tls.key"),
		CAFile:   filepath.Join(dir, "ca.crt"),
	}
	writePEM(t, cfg.CAFile, "CERTIFICATE", caDER)
	writePEM(t, cfg.CertFile, "CERTIFICATE", leafDER)
	writePEM(t, cfg.KeyFile, "EC PRIVATE KEY", keyDER)
	return cfg
}

func writePEM(t *testing.T, path, typ string, der []byte) {
	t.Helper()
	if err := os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: typ, Bytes: der}), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := writePKI(t, t.TempDir())

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"disabled", Config{}, false},
		{"valid", valid, false},
		{"missing paths", Config{Enabled: true, CertFile: valid.CertFile}, true},
		{"missing file", Config{Enabled: true, CertFile: valid.CertFile, KeyFile: valid.KeyFile, CAFile: "/nonexistent/ca.crt"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestServerAndClientConfig(t *testing.T) {
	cfg := writePKI(t, t.TempDir())

	srv, err := cfg.ServerConfig()
	if err != nil {
		t.Fatalf("ServerConfig() error = %v", err)
	}
	if srv.MinVersion != tls.VersionTLS13 || srv.ClientAuth != tls.RequireAndVerifyClientCert {
		t.Errorf("server config = min %x auth %v", srv.MinVersion, srv.ClientAuth)
	}
	if len(srv.Certificates) != 1 || srv.ClientCAs == nil {
		t.Error("server config missing certificate or client CA pool")
	}

	cli, err := cfg.ClientConfig()
	if err != nil {
		t.Fatalf("ClientConfig() error = %v", err)
	}
	if cli.MinVersion != tls.VersionTLS13 || cli.RootCAs == nil || len(cli.Certificates) != 1 {
		t.Errorf("client config = %+v", cli)
	}
}

func TestDisabledConfigIsNil(t *testing.T) {
	srv, err := Config{}.ServerConfig()
	if srv != nil || err != nil {
		t.Errorf("ServerConfig() = %v, %v; want nil, nil", srv, err)
	}
	cli, err := Config{}.ClientConfig()
	if cli != nil || err != nil {
		t.Errorf("ClientConfig() = %v, %v; want nil, nil", cli, err)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	cfg := writePKI(t, dir)
	garbage := filepath.Join(dir, "garbage.pem")
	if err := os.WriteFile(garbage, []byte("not pem"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name              string
		cert, key, caFile string
	}{
		{"empty cert", "", cfg.KeyFile, cfg.CAFile},
		{"empty key", cfg.CertFile, "", cfg.CAFile},
		{"empty ca", cfg.CertFile, cfg.KeyFile, ""},
		{"bad key pair", cfg.CertFile, garbage, cfg.CAFile},
		{"bad ca", cfg.CertFile, cfg.KeyFile, garbage},
		{"missing ca", cfg.CertFile, cfg.KeyFile, filepath.Join(dir, "absent.crt")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewServerTLSConfig(tt.cert, tt.key, tt.caFile); err == nil {
				t.Error("NewServerTLSConfig() error = nil")
			}
			if _, err := NewClientTLSConfig(tt.cert, tt.key, tt.caFile); err == nil {
				t.Error("NewClientTLSConfig() error = nil")
			}
		})
	}
}
