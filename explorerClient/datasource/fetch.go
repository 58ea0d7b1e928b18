package datasource

import (
	"context"
	"fmt"
	"time"

	exerrors "github.com/tellor-io/layer-explorer/explorerClient/errors"
)

// Fetch runs fn against the sources in priority order. Each source gets up
// to retries+1 attempts with capped exponential backoff between them, every
// attempt bounded by the request timeout. Outcomes are reported to the
// endpoint pool, the source breaker and the recorder. When every source is
// exhausted the returned EXHAUSTED error wraps the last failure.
//
// Cancellation of ctx ends the call at once and is not counted as a failure.
// Terminal errors (unsupported operation, not found, invalid input) end the
// call without retry or fallback.
func Fetch[T any](ctx context.Context, m *Manager, operation string, fn FetchFunc[T], opts Options) (*FetchResult[T], error) {
	order, err := m.priority(opts)
	if err != nil {
		return nil, err
	}

	timeout := m.settings.RequestTimeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	retries := m.settings.Retries
	if opts.Retries != nil && *opts.Retries >= 0 {
		retries = *opts.Retries
	}

	logger := m.logger.With().Str("operation", operation).Logger()
	start := m.clock.Now()
	attempts := 0
	var lastErr error

	for i, src := range order {
		if !m.IsAvailable(src) {
			logger.Debug().Str("source", src.String()).Msg("source unavailable, skipping")
			if lastErr == nil {
				lastErr = exerrors.NewNetworkError(src, "source circuit open", nil)
			}
			continue
		}
		if i > 0 {
			from := order[i-1]
			reason := "source unavailable"
			if lastErr != nil {
				reason = lastErr.Error()
			}
			m.recorder.RecordFallback(from, src, reason, operation, nil)
			logger.Warn().
				Str("from", from.String()).
				Str("to", src.String()).
				Str("reason", reason).
				Msg("falling back to next data source")
		}

		pool := m.pools[src]
		for attempt := 0; attempt <= retries; attempt++ {
			endpoint := pool.CurrentEndpoint()
			target := Target{Source: src, Endpoint: endpoint}
			attemptStart := m.clock.Now()
			data, err := runAttempt(ctx, fn, target, timeout)
			duration := m.clock.Since(attemptStart)
			attempts++
			md := map[string]interface{}{"attempt": attempt + 1}

			if err == nil {
				pool.ReportSuccess(endpoint)
				m.reportSuccess(src, duration)
				m.recorder.RecordQuery(src, operation, duration, true, endpoint, md)

				total := m.clock.Since(start)
				fallbackUsed := src != m.settings.Primary && opts.ForceSource == ""
				m.recorder.RecordPerformance(src, operation, total, map[string]interface{}{
					"attempts":      attempts,
					"fallback_used": fallbackUsed,
				})
				return &FetchResult[T]{
					Data:         data,
					Source:       src,
					Endpoint:     endpoint,
					ResponseTime: total,
					FallbackUsed: fallbackUsed,
					Attempts:     attempts,
				}, nil
			}

			if ctx.Err() != nil {
				return nil, exerrors.Wrapf(ctx.Err(), "%s cancelled", operation)
			}

			srcErr := exerrors.Classify(err, src, endpoint)
			if srcErr.IsTerminal() {
				if srcErr.Code == exerrors.ErrCodeNotFound {
					// the endpoint answered
					pool.ReportSuccess(endpoint)
					m.reportSuccess(src, duration)
					m.recorder.RecordQuery(src, operation, duration, true, endpoint, md)
				} else {
					m.recorder.RecordError(src, srcErr, operation, endpoint, nil)
				}
				logger.Debug().Str("source", src.String()).Err(srcErr).Msg("terminal error, not retrying")
				return nil, srcErr
			}

			pool.ReportFailure(endpoint)
			m.reportFailure(src, srcErr)
			m.recorder.RecordQuery(src, operation, duration, false, endpoint, md)
			lastErr = srcErr

			logger.Warn().
				Str("source", src.String()).
				Str("endpoint", endpoint).
				Int("attempt", attempt+1).
				Int("max_attempts", retries+1).
				Err(srcErr).
				Msg("fetch attempt failed")

			if !m.IsAvailable(src) {
				break
			}
			if attempt < retries {
				if err := m.sleep(ctx, m.settings.Retry.Delay(attempt)); err != nil {
					return nil, exerrors.Wrapf(err, "%s cancelled", operation)
				}
			}
		}
	}

	if lastErr == nil {
		lastErr = exerrors.NewInternalError("no data source to try", nil)
	}
	logger.Error().Int("attempts", attempts).Err(lastErr).Msg("all data sources failed")
	return nil, exerrors.NewExhaustedError(attempts, lastErr)
}

type attemptResult[T any] struct {
	data T
	err  error
}

// runAttempt races fn against the timeout. The result channel is buffered
// so a late result is dropped without blocking the goroutine.
func runAttempt[T any](ctx context.Context, fn FetchFunc[T], target Target, timeout time.Duration) (T, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ch := make(chan attemptResult[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				ch <- attemptResult[T]{data: zero, err: exerrors.NewInternalError(fmt.Sprintf("fetch panicked: %v", r), nil)}
			}
		}()
		data, err := fn(attemptCtx, target)
		ch <- attemptResult[T]{data: data, err: err}
	}()

	select {
	case res := <-ch:
		return res.data, res.err
	case <-attemptCtx.Done():
		var zero T
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, exerrors.NewTimeoutError(target.Source, fmt.Sprintf("request timed out after %s", timeout)).
			WithEndpoint(target.Endpoint)
	}
}
