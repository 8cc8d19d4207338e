package util

import (
	"fmt"
	"regexp"
	"strings"
)

// placeholderRegex matches "$$", "$name", "${name}" and, as a last resort, a bare
// "$" that starts no valid placeholder.
var placeholderRegex = regexp.MustCompile(`\$(?:(\$)|([_a-zA-Z][_a-zA-Z0-9]*)|\{([_a-zA-Z][_a-zA-Z0-9]*)\}|())`)

type PlaceholderError struct {
	Placeholder string
	Offset      int
	Missing     bool
}

func (e *PlaceholderError) Error() string {
	if e.Missing {
		return fmt.Sprintf("no parameter named %q", e.Placeholder)
	}
	return fmt.Sprintf("invalid placeholder at offset %d", e.Offset)
}

// ResolveParams substitutes params into every string value of a decoded JSON
// value. Object keys are left alone. A nil params map disables substitution and
// returns value unchanged.
func ResolveParams(value any, params map[string]string) (any, error) {
	if params == nil {
		return value, nil
	}
	return resolveValue(value, params)
}

func resolveValue(value any, params map[string]string) (any, error) {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			resolved, err := resolveValue(item, params)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, 0, len(v))
		for _, item := range v {
			resolved, err := resolveValue(item, params)
			if err != nil {
				return nil, err
			}
			out = append(out, resolved)
		}
		return out, nil
	case string:
		return SubstituteString(v, params)
	default:
		return v, nil
	}
}

// ResolveString is ResolveParams for a single string.
func ResolveString(s string, params map[string]string) (string, error) {
	if params == nil {
		return s, nil
	}
	return SubstituteString(s, params)
}

func SubstituteString(s string, params map[string]string) (string, error) {
	matches := placeholderRegex.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}
	var sb strings.Builder
	last := 0
	for _, m := range matches {
		sb.WriteString(s[last:m[0]])
		last = m[1]
		switch {
		case m[2] >= 0:
			sb.WriteByte('$')
		case m[4] >= 0:
			name := s[m[4]:m[5]]
			value, ok := params[name]
			if !ok {
				return "", &PlaceholderError{Placeholder: name, Offset: m[0], Missing: true}
			}
			sb.WriteString(value)
		case m[6] >= 0:
			name := s[m[6]:m[7]]
			value, ok := params[name]
			if !ok {
				return "", &PlaceholderError{Placeholder: name, Offset: m[0], Missing: true}
			}
			sb.WriteString(value)
		default:
			return "", &PlaceholderError{Offset: m[0]}
		}
	}
	sb.WriteString(s[last:])
	return sb.String(), nil
}
