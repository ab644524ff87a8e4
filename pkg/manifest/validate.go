package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	schemasassets "github.com/3leaps/queuectl/internal/assets/schemas"
)

// SchemaID is the schema identifier for batch-enqueue manifests.
const SchemaID = "queuectl/v1.0.0/batch-manifest"

// Validation errors
var (
	// ErrSchemaNotFound indicates the schema could not be loaded.
	ErrSchemaNotFound = errors.New("manifest schema not found")

	// ErrValidationFailed indicates the manifest failed schema validation.
	ErrValidationFailed = errors.New("manifest validation failed")
)

// Cached validator instance (compiled once from embedded schema)
var (
	validatorOnce sync.Once
	validator     *jsonschema.Schema
	validatorErr  error
)

// ValidationError represents a single validation issue.
type ValidationError struct {
	// Path is the JSON pointer to the problematic field (e.g., "/jobs/0/priority").
	Path string

	// Message describes the validation failure.
	Message string
}

// Error implements error interface.
func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("manifest validation failed with %d errors:\n", len(e)))
	for i, err := range e {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("  - ")
		b.WriteString(err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error type.
func (e ValidationErrors) Unwrap() error {
	return ErrValidationFailed
}

// Validate checks the manifest against the JSON schema.
//
// Note: This validates the struct representation, which loses unknown
// fields. For strict validation including additionalProperties checks,
// use ValidateRaw on the original input data.
func Validate(m *Manifest) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("serialize manifest for validation: %w", err)
	}
	return ValidateRaw(data)
}

// ValidateRaw checks raw JSON data against the manifest schema.
//
// The raw JSON preserves all fields from the original input, so unknown
// fields are rejected (additionalProperties: false) — a typo'd field name
// fails loudly instead of silently falling back to a zero value.
//
// Returns nil if validation succeeds, or a ValidationErrors with details
// about all validation failures.
func ValidateRaw(jsonData []byte) error {
	v, err := getValidator()
	if err != nil {
		return err
	}

	var doc any
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return fmt.Errorf("invalid JSON in manifest: %w", err)
	}

	err = v.Validate(doc)
	if err == nil {
		return nil
	}

	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return fmt.Errorf("schema validation error: %w", err)
	}

	errs := collectLeaves(ve, nil)
	if len(errs) == 0 {
		errs = ValidationErrors{{Path: ptrPath(ve.InstanceLocation), Message: ve.Message}}
	}
	return errs
}

// collectLeaves flattens the validator's cause tree into one error per
// offending field.
func collectLeaves(ve *jsonschema.ValidationError, errs ValidationErrors) ValidationErrors {
	if len(ve.Causes) == 0 {
		return append(errs, ValidationError{
			Path:    ptrPath(ve.InstanceLocation),
			Message: ve.Message,
		})
	}
	for _, cause := range ve.Causes {
		errs = collectLeaves(cause, errs)
	}
	return errs
}

func ptrPath(loc string) string {
	if loc == "" {
		return ""
	}
	if strings.HasPrefix(loc, "/") {
		return loc
	}
	return "/" + loc
}

// getValidator returns a cached validator compiled from the embedded schema.
//
// The validator is compiled once on first use and cached for subsequent
// calls. This is thread-safe via sync.Once.
func getValidator() (*jsonschema.Schema, error) {
	validatorOnce.Do(func() {
		if len(schemasassets.BatchManifestSchema) == 0 {
			validatorErr = fmt.Errorf("%w: embedded batch-manifest schema is empty", ErrSchemaNotFound)
			return
		}
		validator, validatorErr = jsonschema.CompileString(SchemaID, string(schemasassets.BatchManifestSchema))
		if validatorErr != nil {
			validatorErr = fmt.Errorf("compile manifest schema: %w", validatorErr)
		}
	})
	return validator, validatorErr
}
