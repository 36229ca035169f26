// Package secrets persists generated passwords for later operator
// retrieval. Records are age-encrypted to the operator's public key and
// spooled to disk; the plaintext secret is never logged.
package secrets

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"filippo.io/age"

	"github.com/mordilloSan/go-logger/logger"
)

// MinPasswordLength is the shortest acceptable generated password.
const MinPasswordLength = 16

const passwordCharset = "abcdefghijklmnopqrstuvwxyz" +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"0123456789" +
	"!@#%^*-_=+.,"

// Store is the secret-record collaborator backed by an age recipient
// and a spool directory.
type Store struct {
	dir       string
	recipient age.Recipient
}

// NewStore builds a Store writing to dir, encrypting to the given age
// public key (age1...).
func NewStore(dir, recipientKey string) (*Store, error) {
	if recipientKey == "" {
		return nil, fmt.Errorf("no secret recipient configured")
	}
	recipient, err := age.ParseX25519Recipient(recipientKey)
	if err != nil {
		return nil, fmt.Errorf("invalid secret recipient key: %w", err)
	}
	return &Store{dir: dir, recipient: recipient}, nil
}

// StoreGeneratedSecret encrypts and spools one secret record. The file
// is named after the account and the current timestamp so repeated
// generations never overwrite each other.
func (s *Store) StoreGeneratedSecret(username, secret string) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("failed to create secret spool dir: %w", err)
	}

	var ciphertext bytes.Buffer
	writer, err := age.Encrypt(&ciphertext, s.recipient)
	if err != nil {
		return fmt.Errorf("failed to create encryptor: %w", err)
	}
	record := fmt.Sprintf("username: %s\ngenerated: %s\npassword: %s\n",
		username, time.Now().Format(time.RFC3339), secret)
	if _, err := writer.Write([]byte(record)); err != nil {
		return fmt.Errorf("failed to encrypt secret record: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize secret record: %w", err)
	}

	name := fmt.Sprintf("%s-%s.age", username, time.Now().Format("20060102T150405"))
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, ciphertext.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write secret record: %w", err)
	}

	logger.Infof("Spooled secret record for %s: %s", username, path)
	return nil
}

// Discard is a secret store that drops every record. Used by dry runs.
type Discard struct{}

func (Discard) StoreGeneratedSecret(username, secret string) error {
	logger.Infof("[dry-run] would spool secret record for %s", username)
	return nil
}

// GeneratePassword returns a uniformly-random password of length n
// drawn from a shell-safe charset. Lengths below MinPasswordLength are
// raised to it.
func GeneratePassword(n int) (string, error) {
	if n < MinPasswordLength {
		n = MinPasswordLength
	}
	result := make([]byte, n)
	charsetLen := big.NewInt(int64(len(passwordCharset)))
	for i := range result {
		idx, err := rand.Int(rand.Reader, charsetLen)
		if err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		result[i] = passwordCharset[idx.Int64()]
	}
	return string(result), nil
}
