package encryption

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
)

// KmsClient is the subset of the AWS KMS API used for envelope encryption.
type KmsClient interface {
	GenerateDataKey(ctx context.Context, params *kms.GenerateDataKeyInput, optFns ...func(*kms.Options)) (*kms.GenerateDataKeyOutput, error)
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

var _ Provider = new(kmsProvider)

type kmsProvider struct {
	client KmsClient
	keyId  string
}

func NewKmsProvider(client KmsClient, keyId string) *kmsProvider {
	return &kmsProvider{client: client, keyId: keyId}
}

// NewKmsProviderFromConfig builds a KMS client from the default AWS credential chain.
func NewKmsProviderFromConfig(ctx context.Context, region string, keyId string) (*kmsProvider, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewKmsProvider(kms.NewFromConfig(awsCfg), keyId), nil
}

func (p *kmsProvider) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	out, err := p.client.GenerateDataKey(ctx, &kms.GenerateDataKeyInput{
		KeyId:             aws.String(p.keyId),
		KeySpec:           types.DataKeySpecAes256,
		EncryptionContext: encryptionContext(),
	})
	if err != nil {
		return nil, classifyKmsError("generate data key", err)
	}
	nonce, sealed, err := seal(out.Plaintext, plaintext, associatedData())
	if err != nil {
		return nil, err
	}
	env := &envelope{
		format:     envelopeKms,
		wrappedKey: out.CiphertextBlob,
		nonce:      nonce,
		sealed:     sealed,
	}
	return env.marshal(), nil
}

func (p *kmsProvider) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	env, err := unmarshalEnvelope(ciphertext, envelopeKms)
	if err != nil {
		return nil, err
	}
	out, err := p.client.Decrypt(ctx, &kms.DecryptInput{
		CiphertextBlob:    env.wrappedKey,
		KeyId:             aws.String(p.keyId),
		EncryptionContext: encryptionContext(),
	})
	if err != nil {
		return nil, classifyKmsError("decrypt data key", err)
	}
	return open(out.Plaintext, env.nonce, env.sealed, associatedData())
}

func classifyKmsError(op string, err error) error {
	var (
		invalidCiphertext *types.InvalidCiphertextException
		incorrectKey      *types.IncorrectKeyException
		notFound          *types.NotFoundException
		disabled          *types.DisabledException
		invalidState      *types.KMSInvalidStateException
		invalidUsage      *types.InvalidKeyUsageException
	)
	switch {
	case errors.As(err, &invalidCiphertext), errors.As(err, &incorrectKey):
		return fmt.Errorf("%w: %s: %s", ErrInvalidCiphertext, op, err.Error())
	case errors.As(err, &notFound), errors.As(err, &disabled), errors.As(err, &invalidState), errors.As(err, &invalidUsage):
		return fmt.Errorf("%w: %s: %s", ErrKeyUnavailable, op, err.Error())
	}
	return fmt.Errorf("%s: %w", op, err)
}
