package encryption

import (
	"context"
	"errors"
)

// ErrInvalidCiphertext is returned by Decrypt when the input was not produced by
// the provider or has been tampered with.
var ErrInvalidCiphertext = errors.New("invalid ciphertext")

// ErrKeyUnavailable is returned when the master key cannot be used because of
// its state or policy (missing, disabled, wrong usage).
var ErrKeyUnavailable = errors.New("master key unavailable")

// Provider encrypts and decrypts opaque byte strings under a master key.
type Provider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

const CONTEXT_KEY = "service"
const CONTEXT_VALUE = "callbackurls"

func encryptionContext() map[string]string {
	return map[string]string{CONTEXT_KEY: CONTEXT_VALUE}
}

func associatedData() []byte {
	return []byte(CONTEXT_KEY + "=" + CONTEXT_VALUE)
}
