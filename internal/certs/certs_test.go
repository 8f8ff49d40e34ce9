package certs

import (
	"crypto/x509"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateGeneratesCertificate(t *testing.T) {
	dir := t.TempDir()
	manager := NewManager(dir)

	cert, err := manager.GetOrCreate()
	require.NoError(t, err)
	require.NotEmpty(t, cert.Certificate)

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)

	assert.NoError(t, leaf.VerifyHostname("localhost"))
	assert.NoError(t, leaf.VerifyHostname("127.0.0.1"))
	assert.Equal(t, []string{"LedgerLens"}, leaf.Subject.Organization)

	for _, name := range []string{"lens.crt", "lens.key"} {
		info, statErr := os.Stat(filepath.Join(dir, name))
		require.NoError(t, statErr)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}
}

func TestGetOrCreateReusesCertificate(t *testing.T) {
	manager := NewManager(t.TempDir())

	first, err := manager.GetOrCreate()
	require.NoError(t, err)

	second, err := manager.GetOrCreate()
	require.NoError(t, err)

	assert.Equal(t, first.Certificate[0], second.Certificate[0])
}

func TestGetOrCreateReplacesCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	manager := NewManager(dir)

	_, err := manager.GetOrCreate()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "lens.crt"), []byte("not a certificate"), 0600))

	cert, err := manager.GetOrCreate()
	require.NoError(t, err)
	require.NotEmpty(t, cert.Certificate)

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)
	assert.NoError(t, leaf.VerifyHostname("localhost"))
}

func TestGetOrCreateSeparateDirectories(t *testing.T) {
	first, err := NewManager(t.TempDir()).GetOrCreate()
	require.NoError(t, err)

	second, err := NewManager(t.TempDir()).GetOrCreate()
	require.NoError(t, err)

	assert.NotEqual(t, first.Certificate[0], second.Certificate[0])
}
