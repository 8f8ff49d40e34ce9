// Package certs generates and caches a self-signed TLS certificate so
// the local dashboard can serve HTTPS without external tooling.
package certs

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"
)

const certValidity = 365 * 24 * time.Hour

// Manager creates and reuses a localhost certificate stored on disk.
type Manager struct {
	dir      string
	certFile string
	keyFile  string
}

// NewManager returns a Manager keeping its certificate under dir.
func NewManager(dir string) *Manager {
	return &Manager{
		dir:      dir,
		certFile: filepath.Join(dir, "lens.crt"),
		keyFile:  filepath.Join(dir, "lens.key"),
	}
}

// GetOrCreate returns the stored certificate, generating a fresh one
// when none exists or the stored one is expired or unreadable.
func (m *Manager) GetOrCreate() (tls.Certificate, error) {
	exists, err := m.exists()
	if err != nil {
		return tls.Certificate{}, err
	}

	if exists {
		cert, loadErr := tls.LoadX509KeyPair(m.certFile, m.keyFile)
		if loadErr == nil && m.verify(cert) == nil {
			return cert, nil
		}
		if removeErr := m.remove(); removeErr != nil {
			return tls.Certificate{}, fmt.Errorf("failed to remove stale certificate: %w", removeErr)
		}
	}

	return m.generate()
}

func (m *Manager) exists() (bool, error) {
	for _, path := range []string{m.certFile, m.keyFile} {
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return false, nil
			}
			return false, fmt.Errorf("failed to check %s: %w", path, err)
		}
	}
	return true, nil
}

// generate creates a localhost certificate valid for one year and
// writes both halves with owner-only permissions.
func (m *Manager) generate() (tls.Certificate, error) {
	if err := os.MkdirAll(m.dir, 0700); err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to create certificate directory: %w", err)
	}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to generate private key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to generate serial number: %w", err)
	}

	template := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"LedgerLens"},
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(certValidity),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		DNSNames:              []string{"localhost", "*.localhost"},
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to create certificate: %w", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	if err := os.WriteFile(m.certFile, certPEM, 0600); err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to write certificate: %w", err)
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	if err := os.WriteFile(m.keyFile, keyPEM, 0600); err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to write private key: %w", err)
	}

	return tls.LoadX509KeyPair(m.certFile, m.keyFile)
}

// verify checks the certificate is inside its validity window and still
// covers localhost.
func (m *Manager) verify(cert tls.Certificate) error {
	if len(cert.Certificate) == 0 {
		return fmt.Errorf("certificate is empty")
	}

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return fmt.Errorf("failed to parse certificate: %w", err)
	}

	now := time.Now()
	if now.Before(leaf.NotBefore) {
		return fmt.Errorf("certificate not valid until %s", leaf.NotBefore)
	}
	if now.After(leaf.NotAfter) {
		return fmt.Errorf("certificate expired at %s", leaf.NotAfter)
	}
	if err := leaf.VerifyHostname("localhost"); err != nil {
		return fmt.Errorf("certificate does not cover localhost: %w", err)
	}
	return nil
}

func (m *Manager) remove() error {
	for _, path := range []string{m.certFile, m.keyFile} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	return nil
}
