package fallback

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	exerrors "github.com/tellor-io/layer-explorer/explorerClient/errors"
	"github.com/tellor-io/layer-explorer/explorerClient/source"
)

// FallbackRecorder is told about every switch to a fallback handler. The
// failed primary attempts are already counted by the data source manager.
type FallbackRecorder interface {
	RecordFallback(from, to source.Type, reason, query string, metadata map[string]interface{})
}

// Result is the value of a guarded call
type Result[T any] struct {
	Data         T
	FallbackUsed bool
	PrimaryError error
}

// Option configures a Runner
type Option func(*Runner)

// WithClock replaces the wall clock, mainly for tests
func WithClock(c clock.Clock) Option {
	return func(r *Runner) { r.clock = c }
}

// WithRecorder reports fallbacks to rec
func WithRecorder(rec FallbackRecorder) Option {
	return func(r *Runner) { r.recorder = rec }
}

// Runner guards calls with a registered fallback
type Runner struct {
	registry Registry
	timeout  time.Duration
	primary  source.Type
	target   source.Type
	recorder FallbackRecorder
	clock    clock.Clock
	logger   zerolog.Logger
}

// NewRunner creates a runner. A failed primary call falls back no earlier
// than timeout after it started. primarySrc labels failures that carry no
// source of their own and targetSrc is the source the registry's handlers
// query.
func NewRunner(registry Registry, timeout time.Duration, primarySrc, targetSrc source.Type, logger zerolog.Logger, opts ...Option) *Runner {
	r := &Runner{
		registry: registry,
		timeout:  timeout,
		primary:  primarySrc,
		target:   targetSrc,
		clock:    clock.New(),
		logger:   logger.With().Str("component", "fallback").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handles reports whether op has a fallback handler
func (r *Runner) Handles(op Operation) bool {
	_, ok := r.registry.Lookup(op)
	return ok
}

// Run calls primary and, if it fails, the fallback registered for op.
func Run[T any](ctx context.Context, r *Runner, op Operation, primary func(ctx context.Context) (T, error)) (*Result[T], error) {
	return RunRequest(ctx, r, op, Request{}, primary)
}

// RunRequest is Run with arguments forwarded to the fallback handler.
// Invalid input is returned as is, since repeating it cannot succeed.
func RunRequest[T any](ctx context.Context, r *Runner, op Operation, req Request, primary func(ctx context.Context) (T, error)) (*Result[T], error) {
	start := r.clock.Now()
	data, err := primary(ctx)
	if err == nil {
		return &Result[T]{Data: data}, nil
	}
	if ctx.Err() != nil || exerrors.IsCode(err, exerrors.ErrCodeValidation) {
		return nil, err
	}

	logger := r.logger.With().Str("operation", op.String()).Logger()
	handler, ok := r.registry.Lookup(op)
	if !ok {
		logger.Warn().Err(err).Msg("no fallback handler registered")
		return nil, err
	}
	if r.recorder != nil {
		r.recorder.RecordFallback(r.sourceOf(err), r.target, err.Error(), op.String(), map[string]interface{}{"delayed": true})
	}

	if wait := r.timeout - r.clock.Since(start); wait > 0 {
		timer := r.clock.Timer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, exerrors.Wrapf(ctx.Err(), "%s fallback cancelled", op)
		case <-timer.C:
		}
	}

	logger.Warn().Err(err).Msg("primary call failed, using fallback")
	value, fbErr := handler(ctx, req)
	if fbErr != nil {
		logger.Error().Err(fbErr).Msg("fallback failed")
		return nil, exerrors.Wrapf(fbErr, "fallback for %s failed after primary error (%v)", op, err)
	}
	typed, ok := value.(T)
	if !ok {
		return nil, exerrors.NewInternalError(fmt.Sprintf("fallback for %s returned %T", op, value), err)
	}
	return &Result[T]{Data: typed, FallbackUsed: true, PrimaryError: err}, nil
}

func (r *Runner) sourceOf(err error) source.Type {
	var se *exerrors.SourceError
	if exerrors.As(err, &se) && se.Source != "" {
		return se.Source
	}
	return r.primary
}
