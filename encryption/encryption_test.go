package encryption

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/stretchr/testify/require"
)

type fakeKmsClient struct {
	keys        map[string][]byte
	generateErr error
	decryptErr  error
}

func newFakeKmsClient() *fakeKmsClient {
	return &fakeKmsClient{keys: make(map[string][]byte)}
}

func (f *fakeKmsClient) GenerateDataKey(ctx context.Context, params *kms.GenerateDataKeyInput, optFns ...func(*kms.Options)) (*kms.GenerateDataKeyOutput, error) {
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	blob := []byte(fmt.Sprintf("%s/%d", aws.ToString(params.KeyId), len(f.keys)))
	f.keys[string(blob)] = key
	return &kms.GenerateDataKeyOutput{CiphertextBlob: blob, Plaintext: key, KeyId: params.KeyId}, nil
}

func (f *fakeKmsClient) Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error) {
	if f.decryptErr != nil {
		return nil, f.decryptErr
	}
	key, ok := f.keys[string(params.CiphertextBlob)]
	if !ok {
		return nil, &types.InvalidCiphertextException{Message: aws.String("unknown blob")}
	}
	return &kms.DecryptOutput{Plaintext: key, KeyId: params.KeyId}, nil
}

func TestLocalProvider(t *testing.T) {
	ctx := context.Background()
	for scenario, fn := range map[string]func(t *testing.T, p Provider){
		"round trip": func(t *testing.T, p Provider) {
			ct, err := p.Encrypt(ctx, []byte(`{"token":"abc"}`))
			require.NoError(t, err)
			require.NotContains(t, string(ct), "abc")

			pt, err := p.Decrypt(ctx, ct)
			require.NoError(t, err)
			require.Equal(t, `{"token":"abc"}`, string(pt))
		},
		"fresh ciphertext per call": func(t *testing.T, p Provider) {
			a, err := p.Encrypt(ctx, []byte("same"))
			require.NoError(t, err)
			b, err := p.Encrypt(ctx, []byte("same"))
			require.NoError(t, err)
			require.NotEqual(t, a, b)
		},
		"tampered": func(t *testing.T, p Provider) {
			ct, err := p.Encrypt(ctx, []byte("payload"))
			require.NoError(t, err)
			ct[len(ct)-1] ^= 0xff
			_, err = p.Decrypt(ctx, ct)
			require.True(t, errors.Is(err, ErrInvalidCiphertext))
		},
		"garbage": func(t *testing.T, p Provider) {
			_, err := p.Decrypt(ctx, []byte("xy"))
			require.True(t, errors.Is(err, ErrInvalidCiphertext))
		},
		"other master key": func(t *testing.T, p Provider) {
			ct, err := p.Encrypt(ctx, []byte("payload"))
			require.NoError(t, err)
			other, err := NewLocalProvider([]byte("another-master-key-0123456789"))
			require.NoError(t, err)
			_, err = other.Decrypt(ctx, ct)
			require.True(t, errors.Is(err, ErrInvalidCiphertext))
		},
	} {
		t.Run(scenario, func(t *testing.T) {
			p, err := NewLocalProvider([]byte("test-master-key-0123456789"))
			require.NoError(t, err)
			fn(t, p)
		})
	}
}

func TestLocalProviderShortKey(t *testing.T) {
	_, err := NewLocalProvider([]byte("short"))
	require.Error(t, err)
}

func TestKmsProvider(t *testing.T) {
	ctx := context.Background()
	client := newFakeKmsClient()
	p := NewKmsProvider(client, "alias/callbacks")

	ct, err := p.Encrypt(ctx, []byte("hello"))
	require.NoError(t, err)
	pt, err := p.Decrypt(ctx, ct)
	require.NoError(t, err)
	require.Equal(t, "hello", string(pt))

	local, err := NewLocalProvider([]byte("test-master-key-0123456789"))
	require.NoError(t, err)
	localCt, err := local.Encrypt(ctx, []byte("hello"))
	require.NoError(t, err)
	_, err = p.Decrypt(ctx, localCt)
	require.True(t, errors.Is(err, ErrInvalidCiphertext))
}

func TestKmsProviderErrors(t *testing.T) {
	ctx := context.Background()

	client := newFakeKmsClient()
	client.generateErr = &types.DisabledException{Message: aws.String("key is disabled")}
	_, err := NewKmsProvider(client, "alias/callbacks").Encrypt(ctx, []byte("x"))
	require.True(t, errors.Is(err, ErrKeyUnavailable))

	client = newFakeKmsClient()
	p := NewKmsProvider(client, "alias/callbacks")
	ct, err := p.Encrypt(ctx, []byte("x"))
	require.NoError(t, err)
	client.decryptErr = &types.IncorrectKeyException{Message: aws.String("wrong key")}
	_, err = p.Decrypt(ctx, ct)
	require.True(t, errors.Is(err, ErrInvalidCiphertext))

	boom := errors.New("network down")
	client.decryptErr = boom
	_, err = p.Decrypt(ctx, ct)
	require.True(t, errors.Is(err, boom))
	require.False(t, errors.Is(err, ErrInvalidCiphertext))
}
