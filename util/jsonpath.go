package util

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/oliveagle/jsonpath"
)

// indefiniteStep matches bracket steps that can select more than one element:
// wildcards, slices, filters and index unions.
var indefiniteStep = regexp.MustCompile(`\[[^\]]*[*:?,][^\]]*\]`)

// quotedStep matches a bracketed member name, $['name'] or $["name"].
var quotedStep = regexp.MustCompile(`\[\s*(?:'([^'.\[\]]*)'|"([^".\[\]]*)")\s*\]`)

type JsonPath struct {
	expr     string
	compiled *jsonpath.Compiled
	definite bool
}

// CompileJsonPath parses expr. Bracketed member names are accepted as dotted
// steps. Recursive descent and member wildcards are rejected.
func CompileJsonPath(expr string) (*JsonPath, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("empty path")
	}
	dotted := quotedStep.ReplaceAllStringFunc(expr, func(step string) string {
		m := quotedStep.FindStringSubmatch(step)
		return "." + m[1] + m[2]
	})
	if strings.ContainsAny(dotted, `'"`) {
		return nil, fmt.Errorf("unsupported path %q: quoted member names may not contain '.', '[' or ']'", expr)
	}
	if strings.Contains(dotted, "..") || strings.Contains(dotted, ".*") {
		return nil, fmt.Errorf("unsupported path %q: recursive descent and member wildcards are not supported", expr)
	}
	compiled, err := jsonpath.Compile(dotted)
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", expr, err)
	}
	return &JsonPath{
		expr:     expr,
		compiled: compiled,
		definite: !indefiniteStep.MatchString(dotted),
	}, nil
}

func (p *JsonPath) String() string {
	return p.expr
}

// Find returns every match of the path in doc, in document order. A path that
// addresses nothing yields an empty sequence.
func (p *JsonPath) Find(doc any) (matches []any) {
	defer func() {
		if r := recover(); r != nil {
			matches = []any{}
		}
	}()
	res, err := p.compiled.Lookup(doc)
	if err != nil {
		return []any{}
	}
	if p.definite {
		return []any{res}
	}
	if seq, ok := res.([]any); ok {
		return seq
	}
	return []any{res}
}

// Collapse unwraps a sequence holding exactly one plain scalar or null. Any
// other sequence is returned whole.
func Collapse(matches []any) any {
	if len(matches) == 1 && isScalar(matches[0]) {
		return matches[0]
	}
	return matches
}

// CollapseString is Collapse rendered as text: a single scalar becomes its
// string form and anything else its JSON encoding.
func CollapseString(matches []any) (string, error) {
	v := Collapse(matches)
	if s, ok := v.(string); ok {
		return s, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func isScalar(v any) bool {
	switch v.(type) {
	case nil, string, bool, float64, json.Number, int, int64:
		return true
	}
	return false
}
