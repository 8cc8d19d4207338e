package codec

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	api "github.com/mohitkumar/callbackurls/api/v1"
	"github.com/mohitkumar/callbackurls/encryption"
	"github.com/mohitkumar/callbackurls/model"
	"github.com/mohitkumar/callbackurls/schema"
	"github.com/mohitkumar/callbackurls/util"
)

const FORMAT_PLAIN = "1"
const FORMAT_ENCRYPTED = "2"

var (
	ErrMissingFormat    = errors.New("missing format id")
	ErrUnknownFormat    = errors.New("unknown format id")
	ErrInvalidEncoding  = errors.New("invalid base64")
	ErrInvalidJson      = errors.New("invalid json")
	ErrSchemaValidation = errors.New("schema validation failed")
	ErrDecryption       = errors.New("decryption failed")
)

// PayloadCodec turns a Payload into the string carried in a callback URL and
// back. With a provider it only produces and accepts encrypted payloads;
// without one it only produces and accepts plain ones.
type PayloadCodec struct {
	provider  encryption.Provider
	validator *schema.Validator
	encDec    util.EncoderDecoder[model.Payload]
}

func NewPayloadCodec(provider encryption.Provider, validator *schema.Validator) *PayloadCodec {
	return &PayloadCodec{
		provider:  provider,
		validator: validator,
		encDec:    util.NewJsonEncoderDecoder[model.Payload](),
	}
}

func (c *PayloadCodec) Encrypted() bool {
	return c.provider != nil
}

func (c *PayloadCodec) Encode(ctx context.Context, payload *model.Payload) (string, error) {
	data, err := c.encDec.Encode(*payload)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	if c.provider == nil {
		return FORMAT_PLAIN + "-" + base64.URLEncoding.EncodeToString(data), nil
	}
	ciphertext, err := c.provider.Encrypt(ctx, data)
	if err != nil {
		if errors.Is(err, encryption.ErrKeyUnavailable) {
			return "", api.WrapRequestError(api.CODE_ENCRYPTION_FAILED, err, "Failed to create data key; check your key policy (%s)", err.Error())
		}
		return "", fmt.Errorf("encrypt payload: %w", err)
	}
	return FORMAT_ENCRYPTED + "-" + base64.URLEncoding.EncodeToString(ciphertext), nil
}

// Decode reverses Encode and checks the result against the payload schema.
// Every failure caused by the input is an InvalidPayload, EncryptionRequired or
// DecryptionUnsupported request error.
func (c *PayloadCodec) Decode(ctx context.Context, encoded string) (*model.Payload, error) {
	version, body, found := strings.Cut(encoded, "-")
	if !found {
		return nil, api.WrapRequestError(api.CODE_INVALID_PAYLOAD, ErrMissingFormat, "Missing format id")
	}
	binary, err := decodeBase64(body)
	if err != nil {
		return nil, api.WrapRequestError(api.CODE_INVALID_PAYLOAD, ErrInvalidEncoding, "Base64 error (%s)", err.Error())
	}

	var data []byte
	switch version {
	case FORMAT_PLAIN:
		if c.provider != nil {
			return nil, api.NewRequestError(api.CODE_ENCRYPTION_REQUIRED, "Only encrypted payloads are supported")
		}
		data = binary
	case FORMAT_ENCRYPTED:
		if c.provider == nil {
			return nil, api.NewRequestError(api.CODE_DECRYPTION_UNSUPPORTED, "No key found")
		}
		data, err = c.provider.Decrypt(ctx, binary)
		if err != nil {
			if errors.Is(err, encryption.ErrInvalidCiphertext) {
				return nil, api.WrapRequestError(api.CODE_INVALID_PAYLOAD, fmt.Errorf("%w: %w", ErrDecryption, err), "Decryption error (%s)", err.Error())
			}
			return nil, fmt.Errorf("decrypt payload: %w", err)
		}
	default:
		return nil, api.WrapRequestError(api.CODE_INVALID_PAYLOAD, ErrUnknownFormat, "Unknown format id")
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, api.WrapRequestError(api.CODE_INVALID_PAYLOAD, fmt.Errorf("%w: %w", ErrInvalidJson, err), "JSON error (%s)", err.Error())
	}
	if c.validator != nil {
		if err := c.validator.ValidatePayload(doc); err != nil {
			return nil, api.WrapRequestError(api.CODE_INVALID_PAYLOAD, fmt.Errorf("%w: %w", ErrSchemaValidation, err), "Failed schema validation (%s)", err.Error())
		}
	}
	payload, err := c.encDec.Decode(data)
	if err != nil {
		return nil, api.WrapRequestError(api.CODE_INVALID_PAYLOAD, fmt.Errorf("%w: %w", ErrSchemaValidation, err), "Failed schema validation (%s)", err.Error())
	}
	return payload, nil
}

// decodeBase64 accepts padded and unpadded URL-safe base64.
func decodeBase64(s string) ([]byte, error) {
	if strings.HasSuffix(s, "=") || len(s)%4 == 0 {
		return base64.URLEncoding.DecodeString(s)
	}
	return base64.RawURLEncoding.DecodeString(s)
}
