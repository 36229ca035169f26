package secrets

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"filippo.io/age"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePasswordLength(t *testing.T) {
	secret, err := GeneratePassword(24)
	require.NoError(t, err)
	assert.Len(t, secret, 24)

	// Short requests are raised to the floor.
	secret, err = GeneratePassword(4)
	require.NoError(t, err)
	assert.Len(t, secret, MinPasswordLength)
}

func TestGeneratePasswordCharset(t *testing.T) {
	secret, err := GeneratePassword(64)
	require.NoError(t, err)
	for _, c := range secret {
		assert.Contains(t, passwordCharset, string(c))
	}
}

func TestGeneratePasswordUnique(t *testing.T) {
	a, err := GeneratePassword(MinPasswordLength)
	require.NoError(t, err)
	b, err := GeneratePassword(MinPasswordLength)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestNewStoreRequiresRecipient(t *testing.T) {
	_, err := NewStore(t.TempDir(), "")
	assert.Error(t, err)

	_, err = NewStore(t.TempDir(), "not-an-age-key")
	assert.Error(t, err)
}

func TestStoreGeneratedSecretRoundTrip(t *testing.T) {
	identity, err := age.GenerateX25519Identity()
	require.NoError(t, err)

	dir := t.TempDir()
	store, err := NewStore(dir, identity.Recipient().String())
	require.NoError(t, err)

	require.NoError(t, store.StoreGeneratedSecret("alice", "s3cret-s3cret-s3cret"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "alice-"))
	assert.True(t, strings.HasSuffix(entries[0].Name(), ".age"))

	info, err := entries[0].Info()
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	ciphertext, err := os.Open(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	defer ciphertext.Close()

	reader, err := age.Decrypt(ciphertext, identity)
	require.NoError(t, err)
	plaintext, err := io.ReadAll(reader)
	require.NoError(t, err)

	assert.Contains(t, string(plaintext), "username: alice")
	assert.Contains(t, string(plaintext), "password: s3cret-s3cret-s3cret")
}

func TestStoreCreatesSpoolDir(t *testing.T) {
	identity, err := age.GenerateX25519Identity()
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "nested", "spool")
	store, err := NewStore(dir, identity.Recipient().String())
	require.NoError(t, err)

	require.NoError(t, store.StoreGeneratedSecret("bob", "another-secret-here"))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
}

func TestDiscardDropsRecords(t *testing.T) {
	assert.NoError(t, Discard{}.StoreGeneratedSecret("alice", "whatever"))
}
