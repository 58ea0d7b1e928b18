package errors

import (
	"context"
	"errors"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"github.com/tellor-io/layer-explorer/explorerClient/source"
)

// Wrap annotates err with message; nil stays nil.
func Wrap(err error, message string) error {
	return pkgerrors.WithMessage(err, message)
}

// Wrapf annotates err with a formatted message; nil stays nil.
func Wrapf(err error, format string, args ...interface{}) error {
	return pkgerrors.WithMessagef(err, format, args...)
}

// WrapSourceError wraps an error as a SourceError if it isn't already one
func WrapSourceError(err error, code ErrorCode, src source.Type, message string) *SourceError {
	if err == nil {
		return nil
	}

	var srcErr *SourceError
	if errors.As(err, &srcErr) {
		if srcErr.Context == nil {
			srcErr.Context = make(map[string]interface{})
		}
		srcErr.Context["wrapped_message"] = message
		if src != "" && srcErr.Source == "" {
			srcErr.Source = src
		}
		return srcErr
	}

	return NewSourceError(code, src, message, err)
}

// Classify turns any error returned by a fetch into a SourceError. Deadline
// errors become TIMEOUT, other untyped errors get the source's own code.
func Classify(err error, src source.Type, endpoint string) *SourceError {
	if err == nil {
		return nil
	}

	var srcErr *SourceError
	if errors.As(err, &srcErr) {
		if srcErr.Endpoint != "" && srcErr.Source != "" {
			return srcErr
		}
		// srcErr may be shared between calls, annotate a copy
		annotated := *srcErr
		if annotated.Endpoint == "" {
			annotated.Endpoint = endpoint
		}
		if annotated.Source == "" {
			annotated.Source = src
		}
		return &annotated
	}

	code := ErrCodeNetwork
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		code = ErrCodeTimeout
	case src == source.GraphQL:
		code = ErrCodeGraphQL
	case src == source.RPC:
		code = ErrCodeRPC
	}
	return NewSourceError(code, src, "request failed", err).WithEndpoint(endpoint)
}

// Is checks if an error is of a specific type
func Is(err error, target error) bool {
	return errors.Is(err, target)
}

// As checks if an error can be assigned to a target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// IsCode checks if an error is a SourceError with specific code
func IsCode(err error, code ErrorCode) bool {
	var srcErr *SourceError
	if errors.As(err, &srcErr) {
		return srcErr.Code == code
	}
	return false
}

// IsUnsupported reports whether err marks an operation missing on a source.
func IsUnsupported(err error) bool {
	return IsCode(err, ErrCodeUnsupported)
}

// IsTerminal reports whether err must stop a fetch without retry.
func IsTerminal(err error) bool {
	var srcErr *SourceError
	if errors.As(err, &srcErr) {
		return srcErr.IsTerminal()
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var srcErr *SourceError
	if errors.As(err, &srcErr) {
		return srcErr.IsRetryable()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// Check for common retryable error patterns
	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporary failure",
		"too many requests",
		"rate limit",
		"eof",
	}
	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// GetCode returns the code of err, or INTERNAL for untyped errors.
func GetCode(err error) ErrorCode {
	var srcErr *SourceError
	if errors.As(err, &srcErr) {
		return srcErr.Code
	}
	return ErrCodeInternal
}
