package model

import (
	"errors"
	"fmt"
)

// Error kinds. Every error leaving the core matches exactly one of these with errors.Is.
var (
	// ErrConfiguration covers registry misuse and invalid run settings
	ErrConfiguration = errors.New("configuration error")

	// ErrEngineExecution marks a failed engine invocation
	ErrEngineExecution = errors.New("engine execution error")

	// ErrIngestion marks a dataset document that could not be read
	ErrIngestion = errors.New("ingestion error")

	// ErrSerialization marks a result document that could not be written
	ErrSerialization = errors.New("serialization error")

	// ErrAborted marks a run stopped by cancellation. No partial result accompanies it.
	ErrAborted = errors.New("run aborted")
)

// ConfigError reports an invalid configuration value
type ConfigError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// Is lets callers match ConfigError against ErrConfiguration
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}

// kindError attaches an error kind to a cause without changing its message
type kindError struct {
	kind  error
	cause error
}

func (e *kindError) Error() string { return e.cause.Error() }

func (e *kindError) Unwrap() []error { return []error{e.kind, e.cause} }

// WithKind tags err with kind so errors.Is(err, kind) holds.
// The cause remains reachable through errors.Is/As.
func WithKind(kind, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, kind) {
		return err
	}
	return &kindError{kind: kind, cause: err}
}

// Aborted wraps a context error as a cancelled-run outcome
func Aborted(cause error) error {
	return fmt.Errorf("%w: %w", ErrAborted, cause)
}
