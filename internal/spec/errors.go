package spec

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is.
var (
	ErrMissingModel           = errors.New("missing model")
	ErrUndeterminedStatusCode = errors.New("undetermined status code")
	ErrDuplicateStatusCode    = errors.New("duplicate status code")
	ErrInvalidReference       = errors.New("invalid reference")
	ErrFetch                  = errors.New("metadata fetch failed")
)

// MissingModelError reports a response model name absent from the registry.
type MissingModelError struct {
	Handler string
	Model   string
}

func (e *MissingModelError) Error() string {
	return fmt.Sprintf("response model %q of handler %s not found in model registry", e.Model, e.Handler)
}

func (e *MissingModelError) Is(target error) bool { return target == ErrMissingModel }

// UndeterminedStatusCodeError reports a response schema without a constant
// statusCode/status_code property.
type UndeterminedStatusCodeError struct {
	Model string
	Title string
}

func (e *UndeterminedStatusCodeError) Error() string {
	return fmt.Sprintf("could not determine the status code from response schema %q (code not const?)", e.Title)
}

func (e *UndeterminedStatusCodeError) Is(target error) bool { return target == ErrUndeterminedStatusCode }

// DuplicateStatusCodeError reports two response models mapping to one code.
type DuplicateStatusCodeError struct {
	Handler string
	Code    string
	Models  [2]string
}

func (e *DuplicateStatusCodeError) Error() string {
	return fmt.Sprintf("duplicate response code %s defined for %s (%s, %s)", e.Code, e.Handler, e.Models[0], e.Models[1])
}

func (e *DuplicateStatusCodeError) Is(target error) bool { return target == ErrDuplicateStatusCode }

// InvalidReferenceError reports a $ref whose model name cannot be extracted.
type InvalidReferenceError struct {
	Ref         string
	JSONPointer string
}

func (e *InvalidReferenceError) Error() string {
	if e.JSONPointer != "" {
		return fmt.Sprintf("invalid $ref %q at %s", e.Ref, e.JSONPointer)
	}
	return fmt.Sprintf("invalid $ref %q", e.Ref)
}

func (e *InvalidReferenceError) Is(target error) bool { return target == ErrInvalidReference }

// FetchError wraps a failure of the metadata source.
type FetchError struct {
	Handlers int
	Cause    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to get the endpoint data for %d handlers: %v", e.Handlers, e.Cause)
}

func (e *FetchError) Unwrap() error        { return e.Cause }
func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// WarningCategory identifies a kind of soft failure.
type WarningCategory string

const (
	// WarnUnsupportedParameter: an array/object parameter was dropped.
	WarnUnsupportedParameter WarningCategory = "unsupported_parameter"
	// WarnSchemaConflict: two differing definitions shared a model name.
	WarnSchemaConflict WarningCategory = "schema_conflict"
)

// Warning is a non-fatal problem found during assembly.
type Warning struct {
	Category WarningCategory
	// Pointer locates the affected node, e.g. "#/components/schemas/Pet".
	Pointer string
	Message string
}

func (w Warning) String() string { return w.Message }
