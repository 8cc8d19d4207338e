package config

import (
	"fmt"
	"strings"

	"github.com/mohitkumar/callbackurls/analytics"
)

type EncryptionType string

type SinkType string

const ENCRYPTION_TYPE_NONE EncryptionType = "none"
const ENCRYPTION_TYPE_LOCAL EncryptionType = "local"
const ENCRYPTION_TYPE_KMS EncryptionType = "kms"

const SINK_TYPE_MEMORY SinkType = "memory"
const SINK_TYPE_REDIS SinkType = "redis"
const SINK_TYPE_SFN SinkType = "sfn"

type Config struct {
	HttpPort                int
	BaseURL                 string
	ApiId                   string
	Stage                   string
	Region                  string
	Issuer                  string
	DisableOutputParameters bool
	DisablePostActions      bool
	EncryptionType          EncryptionType
	KeyId                   string
	MasterKey               string
	SinkType                SinkType
	RedisConfig             RedisConfig
	RelayConfig             RelayConfig
	AnalyticsConfig         analytics.DataCollectorConfig
	LogLevel                string
	Development             bool
}

type RedisConfig struct {
	Addrs         []string
	Namespace     string
	Password      string
	PoolSize      int
	CompletionTTL int
}

// RelayConfig controls forwarding of queued signals to Step Functions.
type RelayConfig struct {
	Enabled             bool
	BatchSize           int
	PollIntervalMs      int
	MaxRetries          int
	RetryIntervalSecond int
}

// Validate checks combinations that cannot be caught by flag parsing.
func (c Config) Validate() error {
	switch c.EncryptionType {
	case ENCRYPTION_TYPE_NONE, "":
	case ENCRYPTION_TYPE_LOCAL:
		if c.MasterKey == "" {
			return fmt.Errorf("local encryption requires a master key")
		}
	case ENCRYPTION_TYPE_KMS:
		if c.KeyId == "" {
			return fmt.Errorf("kms encryption requires a key id")
		}
	default:
		return fmt.Errorf("unknown encryption type %q", c.EncryptionType)
	}
	switch c.SinkType {
	case SINK_TYPE_MEMORY, SINK_TYPE_SFN:
	case SINK_TYPE_REDIS:
		if len(c.RedisConfig.Addrs) == 0 {
			return fmt.Errorf("redis sink requires at least one address")
		}
	default:
		return fmt.Errorf("unknown sink type %q", c.SinkType)
	}
	if c.RelayConfig.Enabled && c.SinkType != SINK_TYPE_REDIS {
		return fmt.Errorf("signal relay requires the redis sink")
	}
	if c.BaseURL == "" && c.ApiId == "" {
		return fmt.Errorf("either base url or api id must be configured")
	}
	return nil
}

// DefaultBaseURL is the callback endpoint used when a create request names none.
func (c Config) DefaultBaseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return ApiGatewayURL(c.ApiId, c.Stage, c.Region)
}

func ApiGatewayURL(apiId string, stage string, region string) string {
	return fmt.Sprintf("https://%s.execute-api.%s.amazonaws.com/%s/", apiId, region, strings.Trim(stage, "/"))
}
