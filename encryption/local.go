package encryption

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const minMasterKeyLength = 16

var _ Provider = new(localProvider)

// localProvider wraps a random per-message data key with a key-encryption key
// derived from a locally held master secret.
type localProvider struct {
	kek []byte
}

func NewLocalProvider(masterKey []byte) (*localProvider, error) {
	if len(masterKey) < minMasterKeyLength {
		return nil, fmt.Errorf("master key must be at least %d bytes, got %d", minMasterKeyLength, len(masterKey))
	}
	kek := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, masterKey, nil, []byte("callbackurls-kek")), kek); err != nil {
		return nil, fmt.Errorf("derive key encryption key: %w", err)
	}
	return &localProvider{kek: kek}, nil
}

func (p *localProvider) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	dataKey, err := newDataKey()
	if err != nil {
		return nil, err
	}
	keyNonce, wrapped, err := seal(p.kek, dataKey, associatedData())
	if err != nil {
		return nil, err
	}
	nonce, sealed, err := seal(dataKey, plaintext, associatedData())
	if err != nil {
		return nil, err
	}
	env := &envelope{
		format:     envelopeLocal,
		wrappedKey: append(keyNonce, wrapped...),
		nonce:      nonce,
		sealed:     sealed,
	}
	return env.marshal(), nil
}

func (p *localProvider) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	env, err := unmarshalEnvelope(ciphertext, envelopeLocal)
	if err != nil {
		return nil, err
	}
	if len(env.wrappedKey) < chacha20poly1305.NonceSizeX {
		return nil, fmt.Errorf("%w: wrapped key truncated", ErrInvalidCiphertext)
	}
	dataKey, err := open(p.kek, env.wrappedKey[:chacha20poly1305.NonceSizeX], env.wrappedKey[chacha20poly1305.NonceSizeX:], associatedData())
	if err != nil {
		return nil, err
	}
	return open(dataKey, env.nonce, env.sealed, associatedData())
}
