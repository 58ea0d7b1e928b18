package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tellor-io/layer-explorer/explorerClient/source"
)

func TestSourceErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      *SourceError
		expected string
	}{
		{
			name:     "with source",
			err:      NewRPCError("status call failed", nil),
			expected: "[rpc:RPC] MEDIUM: status call failed",
		},
		{
			name:     "without source",
			err:      NewValidationError("bad height"),
			expected: "[VALIDATION] LOW: bad height",
		},
		{
			name:     "cause is appended",
			err:      NewGraphQLError("query failed", fmt.Errorf("502 bad gateway")),
			expected: "[graphql:GRAPHQL] MEDIUM: query failed: 502 bad gateway",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestExhaustedEmbedsLastError(t *testing.T) {
	last := NewNetworkError(source.RPC, "dial tcp", fmt.Errorf("connection refused"))
	err := NewExhaustedError(8, last)

	assert.Contains(t, err.Error(), "all data sources failed")
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, 8, err.Context["attempts"])
	assert.True(t, IsCode(err, ErrCodeExhausted))
	assert.True(t, errors.Is(err, last))
}

func TestUnsupportedError(t *testing.T) {
	err := NewUnsupportedError(source.RPC, "bridge deposits")

	assert.Contains(t, err.Error(), "bridge deposits is only available via GraphQL")
	assert.True(t, IsUnsupported(err))
	assert.True(t, IsTerminal(err))
	assert.False(t, IsRetryable(err))

	wrapped := Wrap(err, "fetch")
	assert.True(t, IsUnsupported(wrapped))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		src      source.Type
		expected ErrorCode
	}{
		{"deadline becomes timeout", context.DeadlineExceeded, source.GraphQL, ErrCodeTimeout},
		{"plain graphql error", fmt.Errorf("boom"), source.GraphQL, ErrCodeGraphQL},
		{"plain rpc error", fmt.Errorf("boom"), source.RPC, ErrCodeRPC},
		{"typed error kept", NewNotFoundError(source.RPC, "no tx"), source.RPC, ErrCodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err, tt.src, "https://ep")
			require.NotNil(t, got)
			assert.Equal(t, tt.expected, got.Code)
			assert.Equal(t, "https://ep", got.Endpoint)
			assert.Equal(t, tt.src, got.Source)
		})
	}

	assert.Nil(t, Classify(nil, source.RPC, ""))
}

func TestClassifyLeavesSharedErrorUntouched(t *testing.T) {
	shared := NewNotFoundError("", "no tx")

	got := Classify(shared, source.RPC, "https://ep")
	assert.Equal(t, "https://ep", got.Endpoint)
	assert.Equal(t, source.RPC, got.Source)
	assert.Empty(t, shared.Endpoint)
	assert.Empty(t, shared.Source)

	complete := NewRPCError("down", nil).WithEndpoint("https://other")
	assert.Same(t, complete, Classify(complete, source.RPC, "https://ep"))
}

func TestWrapSourceError(t *testing.T) {
	assert.Nil(t, WrapSourceError(nil, ErrCodeRPC, source.RPC, "x"))

	base := NewTimeoutError("", "deadline")
	got := WrapSourceError(base, ErrCodeRPC, source.RPC, "block fetch")
	assert.Same(t, base, got)
	assert.Equal(t, source.RPC, got.Source)
	assert.Equal(t, "block fetch", got.Context["wrapped_message"])

	plain := WrapSourceError(fmt.Errorf("eof"), ErrCodeNetwork, source.GraphQL, "query")
	assert.Equal(t, ErrCodeNetwork, plain.Code)
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.True(t, IsRetryable(NewTimeoutError(source.RPC, "slow")))
	assert.True(t, IsRetryable(fmt.Errorf("read: Connection reset by peer")))
	assert.True(t, IsRetryable(fmt.Errorf("wrap: %w", context.DeadlineExceeded)))
	assert.False(t, IsRetryable(NewConfigError("bad")))
	assert.False(t, IsRetryable(fmt.Errorf("permission denied")))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, ErrCodeInternal, GetCode(fmt.Errorf("x")))
	assert.Equal(t, ErrCodeNotFound, GetCode(Wrapf(NewNotFoundError(source.GraphQL, "gone"), "tx %s", "ABC")))
}
