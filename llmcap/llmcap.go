// Package llmcap defines the LLM capability the scheduler, planner, and
// replanner call through: a single Complete method abstracting away which
// concrete provider (Anthropic, OpenAI) answers a given request, which
// model alias it maps to, and how failures are retried.
package llmcap

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
)

// Alias identifies a model by role rather than by vendor-specific name,
// letting callers say "give me the fast model" without knowing which
// provider or model version backs it.
type Alias string

const (
	AliasMain     Alias = "main"
	AliasFast     Alias = "fast"
	AliasPowerful Alias = "powerful"
)

// Effort maps a continuous temperature value onto a coarse reasoning-effort
// bucket for providers (or prompt templates) that only expose a discrete
// knob. Boundaries: t<0.3 -> low, 0.3<=t<=0.7 -> medium, t>0.7 -> high.
type Effort string

const (
	EffortLow    Effort = "low"
	EffortMedium Effort = "medium"
	EffortHigh   Effort = "high"
)

// EffortForTemperature buckets a sampling temperature into an Effort.
func EffortForTemperature(t float64) Effort {
	switch {
	case t < 0.3:
		return EffortLow
	case t <= 0.7:
		return EffortMedium
	default:
		return EffortHigh
	}
}

// Message is one turn of conversation sent to the model.
type Message struct {
	Role    string
	Content string
}

// Request captures everything a caller needs to specify for a completion.
type Request struct {
	Messages       []Message
	ModelAlias     Alias
	ResponseFormat string // "" or "json_object"
	Temperature    float64
	MaxTokens      int
	Effort         Effort // derived from Temperature if left zero
}

// Usage reports token accounting for a completion.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Result is the outcome of a completion request.
type Result struct {
	Content    string
	StopReason string
	Usage      Usage
}

// Provider is implemented by each concrete LLM backend (Anthropic, OpenAI).
// It operates on resolved vendor model identifiers, not aliases; alias
// resolution is the Capability's job.
type Provider interface {
	Complete(ctx context.Context, model string, req Request) (Result, error)
}

// AliasTable resolves a role alias to a vendor-specific model identifier.
type AliasTable map[Alias]string

// ErrUnknownAlias indicates the alias table has no entry for the requested
// alias.
var ErrUnknownAlias = errors.New("llmcap: unknown model alias")

// RetryPolicy bounds how a Capability retries a failed completion.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy is used when Capability is constructed without one.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, BaseDelay: 200 * time.Millisecond, MaxDelay: 4 * time.Second}

// Capability is the concrete LLM capability the rest of the engine depends
// on. It resolves model aliases, derives Effort from Temperature when the
// caller did not set one explicitly, rate-limits outbound calls, and retries
// transient provider failures with exponential backoff.
type Capability struct {
	provider Provider
	aliases  AliasTable
	retry    RetryPolicy
	limiter  *rate.Limiter
}

// Option configures a Capability at construction time.
type Option func(*Capability)

// WithRetryPolicy overrides DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Capability) { c.retry = p }
}

// WithRateLimit caps outbound requests per second with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Capability) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// New constructs a Capability backed by provider, resolving aliases via
// aliases.
func New(provider Provider, aliases AliasTable, opts ...Option) *Capability {
	c := &Capability{provider: provider, aliases: aliases, retry: DefaultRetryPolicy}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete resolves req.ModelAlias, fills in Effort from Temperature when
// unset, and issues the request with bounded retry on transient failures.
func (c *Capability) Complete(ctx context.Context, req Request) (Result, error) {
	modelID, ok := c.aliases[req.ModelAlias]
	if !ok {
		return Result{}, ErrUnknownAlias
	}
	if req.Effort == "" {
		req.Effort = EffortForTemperature(req.Temperature)
	}

	var lastErr error
	delay := c.retry.BaseDelay
	for attempt := 1; attempt <= max(c.retry.MaxAttempts, 1); attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return Result{}, err
			}
		}
		res, err := c.provider.Complete(ctx, modelID, req)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !isRetryable(err) || attempt == c.retry.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > c.retry.MaxDelay {
			delay = c.retry.MaxDelay
		}
	}
	return Result{}, lastErr
}

// isRetryable reports whether err represents a transient provider failure
// worth retrying. Providers that wrap rate-limit/server errors should make
// them satisfy this via errors.As against a RetryableError.
func isRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// RetryableError marks a provider error as safe to retry.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }
