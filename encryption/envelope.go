package encryption

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	envelopeLocal byte = 1
	envelopeKms   byte = 2
)

// envelope is the serialized form of an envelope-encrypted message:
//
//	format(1) | len(wrappedKey)(2) | wrappedKey | nonce(24) | sealed
type envelope struct {
	format     byte
	wrappedKey []byte
	nonce      []byte
	sealed     []byte
}

func (e *envelope) marshal() []byte {
	out := make([]byte, 0, 3+len(e.wrappedKey)+len(e.nonce)+len(e.sealed))
	out = append(out, e.format)
	out = binary.BigEndian.AppendUint16(out, uint16(len(e.wrappedKey)))
	out = append(out, e.wrappedKey...)
	out = append(out, e.nonce...)
	out = append(out, e.sealed...)
	return out
}

func unmarshalEnvelope(data []byte, format byte) (*envelope, error) {
	if len(data) < 3 {
		return nil, fmt.Errorf("%w: envelope too short", ErrInvalidCiphertext)
	}
	if data[0] != format {
		return nil, fmt.Errorf("%w: unexpected envelope format %d", ErrInvalidCiphertext, data[0])
	}
	keyLen := int(binary.BigEndian.Uint16(data[1:3]))
	rest := data[3:]
	if len(rest) < keyLen+chacha20poly1305.NonceSizeX+chacha20poly1305.Overhead {
		return nil, fmt.Errorf("%w: envelope truncated", ErrInvalidCiphertext)
	}
	return &envelope{
		format:     format,
		wrappedKey: rest[:keyLen],
		nonce:      rest[keyLen : keyLen+chacha20poly1305.NonceSizeX],
		sealed:     rest[keyLen+chacha20poly1305.NonceSizeX:],
	}, nil
}

// seal encrypts plaintext under key with a fresh random nonce.
func seal(key []byte, plaintext []byte, aad []byte) (nonce []byte, sealed []byte, err error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, nil, err
	}
	nonce = make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("generate nonce: %w", err)
	}
	return nonce, aead.Seal(nil, nonce, plaintext, aad), nil
}

func open(key []byte, nonce []byte, sealed []byte, aad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCiphertext, err.Error())
	}
	plaintext, err := aead.Open(nil, nonce, sealed, aad)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCiphertext, err.Error())
	}
	return plaintext, nil
}

func newDataKey() ([]byte, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generate data key: %w", err)
	}
	return key, nil
}
