// Package descriptor loads the triage request file (persona, job and
// document list) and checks request and result documents against their
// embedded JSON schemas.
package descriptor

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/dgallion1/doctriage/internal/triage"
)

// ErrInvalid is wrapped by every error caused by a descriptor that does not
// match its schema.
var ErrInvalid = errors.New("invalid descriptor")

//go:embed schemas/descriptor.schema.json
var descriptorSchema string

//go:embed schemas/output.schema.json
var outputSchema string

var (
	descriptorLoader = gojsonschema.NewStringLoader(descriptorSchema)
	outputLoader     = gojsonschema.NewStringLoader(outputSchema)
)

// Descriptor is a triage request.
type Descriptor struct {
	Persona     Persona       `json:"persona"`
	JobToBeDone Job           `json:"job_to_be_done"`
	Documents   []DocumentRef `json:"documents"`
}

type Persona struct {
	Role string `json:"role"`
}

type Job struct {
	Task string `json:"task"`
}

type DocumentRef struct {
	Filename string `json:"filename"`
	Title    string `json:"title,omitempty"`
}

// Query returns the persona and job as a triage query.
func (d *Descriptor) Query() triage.Query {
	return triage.Query{Persona: d.Persona.Role, Job: d.JobToBeDone.Task}
}

// Filenames lists the requested documents in order.
func (d *Descriptor) Filenames() []string {
	names := make([]string, len(d.Documents))
	for i, doc := range d.Documents {
		names[i] = doc.Filename
	}
	return names
}

// Load reads and validates a descriptor file.
func Load(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read descriptor: %w", err)
	}
	d, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// Parse validates raw descriptor JSON and decodes it.
func Parse(data []byte) (*Descriptor, error) {
	if err := validate(descriptorLoader, gojsonschema.NewBytesLoader(data)); err != nil {
		return nil, err
	}
	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return &d, nil
}

// ValidateOutput checks a result against the output schema.
func ValidateOutput(out *triage.Output) error {
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	return validate(outputLoader, gojsonschema.NewBytesLoader(data))
}

// ValidationError lists every schema violation found in a document.
type ValidationError struct {
	Errors []FieldError
}

type FieldError struct {
	Field   string
	Message string
}

func (ve *ValidationError) Error() string {
	parts := make([]string, len(ve.Errors))
	for i, fe := range ve.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (ve *ValidationError) Unwrap() error {
	return ErrInvalid
}

func validate(schema, doc gojsonschema.JSONLoader) error {
	result, err := gojsonschema.Validate(schema, doc)
	if err != nil {
		// Malformed JSON lands here too.
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if result.Valid() {
		return nil
	}

	ve := &ValidationError{Errors: make([]FieldError, 0, len(result.Errors()))}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		ve.Errors = append(ve.Errors, FieldError{Field: field, Message: desc.Description()})
	}
	return ve
}
