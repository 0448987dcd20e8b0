package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	DefaultModel    = "small"
	DefaultTask     = "transcribe"
	DefaultFormat   = "srt"
	DefaultMaxChars = 42
)

// Options controls how a single transcription job is executed and rendered.
type Options struct {
	Model    string `json:"model,omitempty"`
	Language string `json:"language,omitempty"`
	Task     string `json:"task,omitempty"`
	MaxChars int    `json:"max_chars,omitempty"`
	Format   string `json:"format,omitempty"`
}

// optionsSchema is the accepted submission options contract. Unknown keys are
// rejected so argument injection through pass-through flags is impossible.
const optionsSchema = `{
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"model":     {"type": "string", "enum": ["tiny", "base", "small", "medium", "large"]},
		"language":  {"type": "string", "pattern": "^[a-z]{2}(-[A-Za-z]{2})?$"},
		"task":      {"type": "string", "enum": ["transcribe", "translate"]},
		"max_chars": {"type": "integer", "minimum": 20, "maximum": 80},
		"format":    {"type": "string", "enum": ["srt", "vtt"]}
	}
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
)

func compileOptionsSchema() *jsonschema.Schema {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("options.json", strings.NewReader(optionsSchema)); err != nil {
			panic(fmt.Sprintf("add options schema: %v", err))
		}
		compiledSchema = compiler.MustCompile("options.json")
	})
	return compiledSchema
}

// ParseOptions validates raw JSON against the options schema and returns the
// decoded options with defaults applied. An empty payload yields defaults.
func ParseOptions(raw []byte) (Options, error) {
	opts := Options{}
	if len(raw) > 0 {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return opts, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
		}
		if err := compileOptionsSchema().Validate(v); err != nil {
			return opts, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
		}
		if err := json.Unmarshal(raw, &opts); err != nil {
			return opts, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
		}
	}
	opts.ApplyDefaults()
	return opts, nil
}

// ApplyDefaults fills zero-valued fields with the service defaults.
func (o *Options) ApplyDefaults() {
	if o.Model == "" {
		o.Model = DefaultModel
	}
	if o.Task == "" {
		o.Task = DefaultTask
	}
	if o.Format == "" {
		o.Format = DefaultFormat
	}
	if o.MaxChars == 0 {
		o.MaxChars = DefaultMaxChars
	}
}

// Fingerprint returns a stable key fragment covering every option that
// changes the produced artifact. Used for result cache keys.
func (o Options) Fingerprint() string {
	return fmt.Sprintf("%s|%s|%s|%d|%s", o.Model, o.Language, o.Task, o.MaxChars, o.Format)
}
