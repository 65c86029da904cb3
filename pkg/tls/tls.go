// Package tls builds mutual-TLS configurations for the daemon's HTTP and
// gRPC listeners and for adapters that scrape protected telemetry sources.
//
// Every configuration requires TLS 1.3 and verifies the peer against a
// private CA.
package tls

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

// Config holds PEM file paths for one side of an mTLS connection.
type Config struct {
	Enabled  bool
	CertFile string
	KeyFile  string
	CAFile   string
}

// Validate returns an error when TLS is enabled but a file is unset or
// unreadable.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.CertFile == "" || c.KeyFile == "" || c.CAFile == "" {
		return errors.New("tls enabled but cert/key/ca files not specified")
	}
	for _, path := range []string{c.CertFile, c.KeyFile, c.CAFile} {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("tls file %q: %w", path, err)
		}
	}
	return nil
}

// ServerConfig returns the server side configuration, or nil when TLS is
// disabled. Clients must present a certificate signed by the CA.
func (c Config) ServerConfig() (*tls.Config, error) {
	if !c.Enabled {
		return nil, nil
	}
	return NewServerTLSConfig(c.CertFile, c.KeyFile, c.CAFile)
}

// ClientConfig returns the client side configuration, or nil when TLS is
// disabled.
func (c Config) ClientConfig() (*tls.Config, error) {
	if !c.Enabled {
		return nil, nil
	}
	return NewClientTLSConfig(c.CertFile, c.KeyFile, c.CAFile)
}

// NewServerTLSConfig loads the server key pair and the CA used to verify
// client certificates.
func NewServerTLSConfig(certFile, keyFile, caFile string) (*tls.Config, error) {
	cert, pool, err := load(certFile, keyFile, caFile)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientCAs:    pool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
		MinVersion:   tls.VersionTLS13,
	}, nil
}

// NewClientTLSConfig loads the client key pair and the CA used to verify
// the server certificate.
func NewClientTLSConfig(certFile, keyFile, caFile string) (*tls.Config, error) {
	cert, pool, err := load(certFile, keyFile, caFile)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS13,
	}, nil
}

func load(certFile, keyFile, caFile string) (tls.Certificate, *x509.CertPool, error) {
	switch {
	case certFile == "":
		return tls.Certificate{}, nil, errors.New("certificate file path cannot be empty")
	case keyFile == "":
		return tls.Certificate{}, nil, errors.New("key file path cannot be empty")
	case caFile == "":
		return tls.Certificate{}, nil, errors.New("CA certificate file path cannot be empty")
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return tls.Certificate{}, nil, fmt.Errorf("load key pair: %w", err)
	}

	caPEM, err := os.ReadFile(caFile)
	if err != nil {
		return tls.Certificate{}, nil, fmt.Errorf("read CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return tls.Certificate{}, nil, errors.New("failed to parse CA certificate")
	}
	return cert, pool, nil
}
