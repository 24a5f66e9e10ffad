package services

import (
	"errors"
	"strings"
)

var (
	ErrSourceUnreadable   = errors.New("source unreadable")
	ErrModelUnavailable   = errors.New("model unavailable")
	ErrFilesystem         = errors.New("filesystem error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrMalformedArtifact  = errors.New("malformed artifact")
	ErrExternalTool       = errors.New("external tool error")
	ErrValidation         = errors.New("validation error")
)

// Kind is the user-facing failure classification recorded on runs and history rows.
type Kind string

const (
	KindNone               Kind = ""
	KindSourceUnreadable   Kind = "SourceUnreadable"
	KindModelUnavailable   Kind = "ModelUnavailable"
	KindFilesystem         Kind = "FilesystemError"
	KindServiceUnavailable Kind = "ServiceUnavailable"
	KindMalformedArtifact  Kind = "MalformedArtifact"
	KindExternalTool       Kind = "ExternalTool"
	KindValidation         Kind = "Validation"
	KindUnknown            Kind = "Unknown"
)

var markerKinds = []struct {
	marker error
	kind   Kind
}{
	{ErrSourceUnreadable, KindSourceUnreadable},
	{ErrModelUnavailable, KindModelUnavailable},
	{ErrFilesystem, KindFilesystem},
	{ErrServiceUnavailable, KindServiceUnavailable},
	{ErrMalformedArtifact, KindMalformedArtifact},
	{ErrExternalTool, KindExternalTool},
	{ErrValidation, KindValidation},
}

// StageError carries a failure marker together with the stage context it
// happened in. Both the marker and the cause are reachable via errors.Is.
type StageError struct {
	Marker    error
	Stage     string
	Operation string
	Message   string
	Cause     error
}

func (e *StageError) Error() string {
	detail := buildDetail(e.Stage, e.Operation, e.Message)
	marker := "stage failure"
	if e.Marker != nil {
		marker = e.Marker.Error()
	}
	if e.Cause != nil {
		return marker + ": " + detail + ": " + e.Cause.Error()
	}
	return marker + ": " + detail
}

func (e *StageError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Marker != nil {
		out = append(out, e.Marker)
	}
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrExternalTool
	}
	return &StageError{
		Marker:    marker,
		Stage:     strings.TrimSpace(stage),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Cause:     err,
	}
}

// ErrorDetails is the flattened view of a wrapped stage error used for logging.
type ErrorDetails struct {
	Kind      Kind
	Stage     string
	Operation string
	Message   string
	Cause     error
}

// Details extracts structured fields from err. Unwrapped errors yield only Kind
// and Message.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return ErrorDetails{
			Kind:      KindOf(err),
			Stage:     stageErr.Stage,
			Operation: stageErr.Operation,
			Message:   stageErr.Message,
			Cause:     stageErr.Cause,
		}
	}
	return ErrorDetails{Kind: KindOf(err), Message: strings.TrimSpace(err.Error())}
}

// KindOf classifies err by its marker.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, mk := range markerKinds {
		if errors.Is(err, mk.marker) {
			return mk.kind
		}
	}
	return KindUnknown
}

// Degradable reports whether a failure may be absorbed into a placeholder
// artifact instead of aborting the run.
func Degradable(err error) bool {
	return err != nil && errors.Is(err, ErrServiceUnavailable)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
