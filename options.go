package refract

import (
	"context"
	"time"

	"github.com/zoobzio/pipz"
)

// Option configures the callback pipeline of a Bridge.
// Pipeline options wrap the callback with middleware for retry, timeout,
// circuit breaking, and other reliability patterns.
//
// Instance configuration (clock, metrics, error history) is handled via
// chainable methods on the Bridge before calling Attach().
type Option func(pipz.Chainable[*Request]) pipz.Chainable[*Request]

// buildPipeline wraps a terminal with pipeline options.
func buildPipeline(terminal pipz.Chainable[*Request], opts []Option) pipz.Chainable[*Request] {
	pipeline := terminal
	for _, opt := range opts {
		pipeline = opt(pipeline)
	}
	return pipeline
}

// -----------------------------------------------------------------------------
// Pipeline Options - Wrapping (With*)
// -----------------------------------------------------------------------------
// These options wrap the entire pipeline, providing protection at the boundary.

// WithRetry wraps the pipeline with retry logic.
// Failed deliveries are retried immediately up to maxAttempts times.
// For exponential backoff between retries, use WithBackoff instead.
func WithRetry(maxAttempts int) Option {
	return func(p pipz.Chainable[*Request]) pipz.Chainable[*Request] {
		return pipz.NewRetry("retry", p, maxAttempts)
	}
}

// WithBackoff wraps the pipeline with exponential backoff retry logic.
// Failed deliveries are retried with increasing delays: baseDelay, 2*baseDelay, 4*baseDelay, etc.
func WithBackoff(maxAttempts int, baseDelay time.Duration) Option {
	return func(p pipz.Chainable[*Request]) pipz.Chainable[*Request] {
		return pipz.NewBackoff("backoff", p, maxAttempts, baseDelay)
	}
}

// WithTimeout wraps the pipeline with a timeout.
// If delivery takes longer than the specified duration, the operation
// fails with a timeout error. The bridge still releases its processing
// state, so a slow callback cannot wedge it.
func WithTimeout(d time.Duration) Option {
	return func(p pipz.Chainable[*Request]) pipz.Chainable[*Request] {
		return pipz.NewTimeout("timeout", p, d)
	}
}

// WithFallback wraps the pipeline with fallback processors.
// If the primary pipeline fails, each fallback is tried in order until one succeeds.
func WithFallback(fallbacks ...pipz.Chainable[*Request]) Option {
	return func(p pipz.Chainable[*Request]) pipz.Chainable[*Request] {
		all := append([]pipz.Chainable[*Request]{p}, fallbacks...)
		return pipz.NewFallback("fallback", all...)
	}
}

// WithCircuitBreaker wraps the pipeline with circuit breaker protection.
// After 'failures' consecutive failures, the circuit opens and rejects
// further deliveries until 'recovery' time has passed.
func WithCircuitBreaker(failures int, recovery time.Duration) Option {
	return func(p pipz.Chainable[*Request]) pipz.Chainable[*Request] {
		return pipz.NewCircuitBreaker("circuit-breaker", p, failures, recovery)
	}
}

// WithErrorHandler adds error observation to the pipeline.
// Errors are passed to the handler for logging, metrics, or alerting,
// but the error still propagates. Use this for observability, not recovery.
func WithErrorHandler(handler pipz.Chainable[*pipz.Error[*Request]]) Option {
	return func(p pipz.Chainable[*Request]) pipz.Chainable[*Request] {
		return pipz.NewHandle("error-handler", p, handler)
	}
}

// -----------------------------------------------------------------------------
// Pipeline Options - Middleware Composition
// -----------------------------------------------------------------------------

// WithMiddleware wraps the pipeline with a sequence of processors.
// Processors execute in order, with the wrapped pipeline (callback) last.
//
// Use the Use* functions to create processors for common patterns,
// or provide custom pipz.Chainable implementations directly.
//
// Example:
//
//	refract.New(source, spec, callback,
//	    refract.WithMiddleware(
//	        refract.UseEffect("log", logFn),
//	        refract.UseApply("enrich", enrichFn),
//	    ),
//	    refract.WithRetry(3),
//	)
func WithMiddleware(processors ...pipz.Chainable[*Request]) Option {
	return func(p pipz.Chainable[*Request]) pipz.Chainable[*Request] {
		all := make([]pipz.Chainable[*Request], 0, len(processors)+1)
		all = append(all, processors...)
		all = append(all, p)
		return pipz.NewSequence("middleware", all...)
	}
}

// -----------------------------------------------------------------------------
// Middleware Processors - Adapters (Use*)
// -----------------------------------------------------------------------------

// UseTransform creates a processor that transforms the request.
// Cannot fail. Use for pure transformations that always succeed.
func UseTransform(name string, fn func(context.Context, *Request) *Request) pipz.Chainable[*Request] {
	return pipz.Transform(pipz.Name(name), fn)
}

// UseApply creates a processor that can transform the request and fail.
// Use for operations like enrichment or post-validation that may produce
// errors.
func UseApply(name string, fn func(context.Context, *Request) (*Request, error)) pipz.Chainable[*Request] {
	return pipz.Apply(pipz.Name(name), fn)
}

// UseEffect creates a processor that performs a side effect.
// The request passes through unchanged. Use for logging, metrics,
// or notifications that should not affect the options.
func UseEffect(name string, fn func(context.Context, *Request) error) pipz.Chainable[*Request] {
	return pipz.Effect(pipz.Name(name), fn)
}

// UseMutate creates a processor that conditionally transforms the request.
// The transformer is only applied if the condition returns true.
func UseMutate(name string, transformer func(context.Context, *Request) *Request, condition func(context.Context, *Request) bool) pipz.Chainable[*Request] {
	return pipz.Mutate(pipz.Name(name), transformer, condition)
}

// UseEnrich creates a processor that attempts optional enhancement.
// If the enrichment fails, the error is logged but processing continues
// with the original request.
func UseEnrich(name string, fn func(context.Context, *Request) (*Request, error)) pipz.Chainable[*Request] {
	return pipz.Enrich(pipz.Name(name), fn)
}

// -----------------------------------------------------------------------------
// Middleware Processors - Wrapping (Use*)
// -----------------------------------------------------------------------------

// UseRetry wraps a processor with retry logic.
func UseRetry(maxAttempts int, processor pipz.Chainable[*Request]) pipz.Chainable[*Request] {
	return pipz.NewRetry("retry", processor, maxAttempts)
}

// UseBackoff wraps a processor with exponential backoff retry logic.
func UseBackoff(maxAttempts int, baseDelay time.Duration, processor pipz.Chainable[*Request]) pipz.Chainable[*Request] {
	return pipz.NewBackoff("backoff", processor, maxAttempts, baseDelay)
}

// UseTimeout wraps a processor with a deadline.
func UseTimeout(d time.Duration, processor pipz.Chainable[*Request]) pipz.Chainable[*Request] {
	return pipz.NewTimeout("timeout", processor, d)
}

// UseFallback wraps a processor with fallback alternatives.
// If the primary fails, each fallback is tried in order.
func UseFallback(primary pipz.Chainable[*Request], fallbacks ...pipz.Chainable[*Request]) pipz.Chainable[*Request] {
	all := append([]pipz.Chainable[*Request]{primary}, fallbacks...)
	return pipz.NewFallback("fallback", all...)
}

// UseFilter wraps a processor with a condition.
// If the condition returns false, the request passes through unchanged.
func UseFilter(name string, condition func(context.Context, *Request) bool, processor pipz.Chainable[*Request]) pipz.Chainable[*Request] {
	return pipz.NewFilter(pipz.Name(name), condition, processor)
}

// -----------------------------------------------------------------------------
// Middleware Processors - Standalone (Use*)
// -----------------------------------------------------------------------------

// UseRateLimit creates a rate limiting processor.
// Uses a token bucket algorithm with the specified rate (tokens per second)
// and burst size. When tokens are exhausted, deliveries wait for availability.
func UseRateLimit(rate float64, burst int) pipz.Chainable[*Request] {
	return pipz.NewRateLimiter[*Request]("rate-limiter", rate, burst)
}
