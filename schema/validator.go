package schema

import (
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed *.json
var files embed.FS

const baseURL = "callbackurls://schema/"

const ACTION_SCHEMA = "action.json"
const PAYLOAD_SCHEMA = "payload.json"
const CREATE_URLS_SCHEMA = "create_urls.json"

// Validator checks documents against the built-in schemas and against
// caller-supplied schemas. Compiled caller schemas are cached by their JSON text.
type Validator struct {
	builtin map[string]*jsonschema.Schema
	cache   *cache.Cache
}

type noLoader struct{}

func (noLoader) Load(url string) (any, error) {
	return nil, fmt.Errorf("loading external schema %s is not allowed", url)
}

func NewValidator() (*Validator, error) {
	c := newCompiler()
	entries, err := files.ReadDir(".")
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		data, err := files.ReadFile(entry.Name())
		if err != nil {
			return nil, err
		}
		doc, err := unmarshal(data)
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", entry.Name(), err)
		}
		if err := c.AddResource(baseURL+entry.Name(), doc); err != nil {
			return nil, fmt.Errorf("schema %s: %w", entry.Name(), err)
		}
	}
	builtin := make(map[string]*jsonschema.Schema)
	for _, name := range []string{ACTION_SCHEMA, PAYLOAD_SCHEMA, CREATE_URLS_SCHEMA} {
		sch, err := c.Compile(baseURL + name)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		builtin[name] = sch
	}
	return &Validator{
		builtin: builtin,
		cache:   cache.New(10*time.Minute, 20*time.Minute),
	}, nil
}

func MustNewValidator() *Validator {
	v, err := NewValidator()
	if err != nil {
		panic(err)
	}
	return v
}

func newCompiler() *jsonschema.Compiler {
	c := jsonschema.NewCompiler()
	c.DefaultDraft(jsonschema.Draft7)
	c.UseLoader(noLoader{})
	return c
}

func (v *Validator) ValidateAction(doc any) error {
	return v.builtin[ACTION_SCHEMA].Validate(doc)
}

func (v *Validator) ValidatePayload(doc any) error {
	return v.builtin[PAYLOAD_SCHEMA].Validate(doc)
}

func (v *Validator) ValidateCreateUrls(doc any) error {
	return v.builtin[CREATE_URLS_SCHEMA].Validate(doc)
}

// Compile checks that schema is itself a valid JSON Schema.
func (v *Validator) Compile(schema map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	key := string(raw)
	if cached, found := v.cache.Get(key); found {
		return cached.(*jsonschema.Schema), nil
	}
	doc, err := unmarshal(raw)
	if err != nil {
		return nil, err
	}
	url := baseURL + "inline.json"
	c := newCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	v.cache.SetDefault(key, compiled)
	return compiled, nil
}

// Validate checks doc against a caller-supplied schema.
func (v *Validator) Validate(schema map[string]any, doc any) error {
	compiled, err := v.Compile(schema)
	if err != nil {
		return err
	}
	return compiled.Validate(doc)
}

func unmarshal(data []byte) (any, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
