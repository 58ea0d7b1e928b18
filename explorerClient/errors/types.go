package errors

import (
	"fmt"

	"github.com/tellor-io/layer-explorer/explorerClient/source"
)

// ErrorCode represents different categories of errors
type ErrorCode string

const (
	// ErrCodeNetwork indicates transport failures (dial, reset, non-2xx)
	ErrCodeNetwork ErrorCode = "NETWORK"

	// ErrCodeTimeout indicates an attempt exceeded its deadline
	ErrCodeTimeout ErrorCode = "TIMEOUT"

	// ErrCodeRPC indicates the CometBFT RPC or REST API returned an error
	ErrCodeRPC ErrorCode = "RPC"

	// ErrCodeGraphQL indicates the indexer returned GraphQL errors
	ErrCodeGraphQL ErrorCode = "GRAPHQL"

	// ErrCodeUnsupported indicates an operation has no implementation for a source
	ErrCodeUnsupported ErrorCode = "UNSUPPORTED"

	// ErrCodeNotFound indicates the source answered but the entity does not exist
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeExhausted indicates every source in priority order failed
	ErrCodeExhausted ErrorCode = "EXHAUSTED"

	// ErrCodeConfig indicates configuration errors
	ErrCodeConfig ErrorCode = "CONFIG"

	// ErrCodeValidation indicates input validation errors
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeInternal indicates internal system errors
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// Severity represents the severity level of an error
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

// SourceError is an error raised while talking to a data source.
type SourceError struct {
	Code     ErrorCode              `json:"code"`
	Message  string                 `json:"message"`
	Source   source.Type            `json:"source,omitempty"`
	Endpoint string                 `json:"endpoint,omitempty"`
	Severity Severity               `json:"severity"`
	Cause    error                  `json:"-"`
	Context  map[string]interface{} `json:"context,omitempty"`
}

// NewSourceError creates a new SourceError
func NewSourceError(code ErrorCode, src source.Type, message string, cause error) *SourceError {
	return &SourceError{
		Code:     code,
		Message:  message,
		Source:   src,
		Severity: determineSeverity(code),
		Cause:    cause,
		Context:  make(map[string]interface{}),
	}
}

// Error implements the error interface. The cause is appended so that an
// exhausted error carries the last underlying failure in its message.
func (e *SourceError) Error() string {
	prefix := fmt.Sprintf("[%s]", e.Code)
	if e.Source != "" {
		prefix = fmt.Sprintf("[%s:%s]", e.Source, e.Code)
	}
	msg := fmt.Sprintf("%s %s: %s", prefix, e.Severity, e.Message)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *SourceError) Unwrap() error {
	return e.Cause
}

// WithEndpoint records the endpoint the error was observed on
func (e *SourceError) WithEndpoint(endpoint string) *SourceError {
	e.Endpoint = endpoint
	return e
}

// WithContext adds context to the error
func (e *SourceError) WithContext(key string, value interface{}) *SourceError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// IsRetryable returns true if another attempt may succeed
func (e *SourceError) IsRetryable() bool {
	switch e.Code {
	case ErrCodeNetwork, ErrCodeRPC, ErrCodeGraphQL, ErrCodeTimeout:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if the error must end a fetch immediately without
// being charged to the endpoint or source.
func (e *SourceError) IsTerminal() bool {
	switch e.Code {
	case ErrCodeUnsupported, ErrCodeNotFound, ErrCodeValidation:
		return true
	default:
		return false
	}
}

func determineSeverity(code ErrorCode) Severity {
	switch code {
	case ErrCodeInternal:
		return SeverityCritical
	case ErrCodeExhausted:
		return SeverityHigh
	case ErrCodeNetwork, ErrCodeRPC, ErrCodeGraphQL, ErrCodeTimeout:
		return SeverityMedium
	case ErrCodeUnsupported, ErrCodeValidation, ErrCodeConfig:
		return SeverityLow
	default:
		return SeverityInfo
	}
}

// Common error constructors

// NewNetworkError creates a network error
func NewNetworkError(src source.Type, message string, cause error) *SourceError {
	return NewSourceError(ErrCodeNetwork, src, message, cause)
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(src source.Type, message string) *SourceError {
	return NewSourceError(ErrCodeTimeout, src, message, nil)
}

// NewRPCError creates an RPC error
func NewRPCError(message string, cause error) *SourceError {
	return NewSourceError(ErrCodeRPC, source.RPC, message, cause)
}

// NewGraphQLError creates a GraphQL error
func NewGraphQLError(message string, cause error) *SourceError {
	return NewSourceError(ErrCodeGraphQL, source.GraphQL, message, cause)
}

// NewUnsupportedError reports that operation has no implementation on src.
func NewUnsupportedError(src source.Type, operation string) *SourceError {
	return NewSourceError(ErrCodeUnsupported, src,
		fmt.Sprintf("%s is only available via GraphQL", operation), nil).
		WithContext("operation", operation)
}

// NewNotFoundError creates a not-found error
func NewNotFoundError(src source.Type, message string) *SourceError {
	return NewSourceError(ErrCodeNotFound, src, message, nil)
}

// NewExhaustedError wraps the last failure after every source was tried.
func NewExhaustedError(attempts int, last error) *SourceError {
	return NewSourceError(ErrCodeExhausted, "", "all data sources failed", last).
		WithContext("attempts", attempts)
}

// NewValidationError creates a validation error
func NewValidationError(message string) *SourceError {
	return NewSourceError(ErrCodeValidation, "", message, nil)
}

// NewConfigError creates a configuration error
func NewConfigError(message string) *SourceError {
	return NewSourceError(ErrCodeConfig, "", message, nil)
}

// NewInternalError creates an internal error
func NewInternalError(message string, cause error) *SourceError {
	return NewSourceError(ErrCodeInternal, "", message, cause)
}
