package callback

import (
	"time"

	api "github.com/mohitkumar/callbackurls/api/v1"
	"github.com/mohitkumar/callbackurls/model"
	"github.com/mohitkumar/callbackurls/schema"
)

// Policy holds the deployment-wide switches that restrict what callers may ask for.
type Policy struct {
	DisableOutputParameters bool
	DisablePostActions      bool
}

type BuildRequest struct {
	Token                  string
	TransactionId          string
	Timestamp              time.Time
	Actions                []model.Action
	Expiration             *time.Time
	EnableOutputParameters bool
	Issuer                 string
}

// PayloadBuilder produces one payload per declared action.
type PayloadBuilder struct {
	policy    Policy
	validator *schema.Validator
}

func NewPayloadBuilder(policy Policy, validator *schema.Validator) *PayloadBuilder {
	return &PayloadBuilder{policy: policy, validator: validator}
}

// Build validates the whole request before producing any payload, so a request
// either yields a payload for every action or fails.
func (b *PayloadBuilder) Build(req BuildRequest) (map[string]*model.Payload, error) {
	if req.Expiration != nil && !req.Expiration.After(req.Timestamp) {
		return nil, api.NewRequestError(api.CODE_INVALID_DATE, "Expiration is in the past")
	}
	seen := make(map[string]bool, len(req.Actions))
	for _, action := range req.Actions {
		name := action.GetName()
		if seen[name] {
			return nil, api.NewRequestError(api.CODE_DUPLICATE_ACTION_NAME, "Action %s provided more than once", name)
		}
		seen[name] = true
		if post, ok := action.(*model.PostAction); ok {
			if err := ValidatePostAction(post, b.policy, b.validator); err != nil {
				return nil, err
			}
		}
	}

	payloads := make(map[string]*model.Payload, len(req.Actions))
	for _, action := range req.Actions {
		payload := &model.Payload{
			Token:         req.Token,
			TransactionId: req.TransactionId,
			IssuedAt:      req.Timestamp.Unix(),
			Issuer:        req.Issuer,
			Action:        action,
		}
		if req.Expiration != nil {
			payload.Expiration = req.Expiration.Unix()
		}
		// post actions take their output from the request body, never the query string
		if req.EnableOutputParameters && action.GetType() != model.ACTION_TYPE_POST {
			if b.policy.DisableOutputParameters {
				return nil, api.NewRequestError(api.CODE_PARAMETERS_DISABLED, "Parameters are disabled")
			}
			payload.Parameterized = true
		}
		payloads[action.GetName()] = payload
	}
	return payloads, nil
}

// ParseExpiration parses an RFC 3339 expiration that must lie after now.
func ParseExpiration(value string, now time.Time) (*time.Time, error) {
	expiration, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return nil, api.WrapRequestError(api.CODE_INVALID_DATE, err, "Invalid expiration: %s", err.Error())
	}
	if !expiration.After(now) {
		return nil, api.NewRequestError(api.CODE_INVALID_DATE, "Expiration is in the past")
	}
	return &expiration, nil
}
