package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/jriverox/tidal-top7/internal/shared"
)

// attempt is one named call convention in a strategy chain.
type attempt[T any] struct {
	name string
	run  func(ctx context.Context) (T, error)
}

// AttemptFailure records why a single attempt did not produce a result.
type AttemptFailure struct {
	Name string
	Err  error
}

// ChainError is returned when every attempt in a chain failed.
type ChainError struct {
	Op       string
	Failures []AttemptFailure
}

func (e *ChainError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %v", e.Op, shared.ErrChainExhausted)
	for _, f := range e.Failures {
		fmt.Fprintf(&b, "; %s: %v", f.Name, f.Err)
	}
	return b.String()
}

// Unwrap exposes [shared.ErrChainExhausted] and every attempt error to [errors.Is].
func (e *ChainError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures)+1)
	errs = append(errs, shared.ErrChainExhausted)
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// chain is an ordered list of attempts. The first attempt that returns no error wins.
type chain[T any] struct {
	op       string
	attempts []attempt[T]
	logger   *log.Logger
}

func newChain[T any](op string, logger *log.Logger) *chain[T] {
	return &chain[T]{op: op, logger: logger}
}

func (c *chain[T]) add(name string, run func(ctx context.Context) (T, error)) {
	c.attempts = append(c.attempts, attempt[T]{name: name, run: run})
}

func (c *chain[T]) len() int {
	return len(c.attempts)
}

func (c *chain[T]) names() []string {
	names := make([]string, len(c.attempts))
	for i, a := range c.attempts {
		names[i] = a.name
	}
	return names
}

// run tries each attempt in order. Cancellation of ctx stops the chain immediately.
func (c *chain[T]) run(ctx context.Context) (T, error) {
	var zero T
	failures := make([]AttemptFailure, 0, len(c.attempts))

	for _, a := range c.attempts {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := a.run(ctx)
		if err == nil {
			c.logger.Debug("attempt succeeded", "op", c.op, "attempt", a.name)
			return result, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		c.logger.Debug("attempt failed", "op", c.op, "attempt", a.name, "err", err)
		failures = append(failures, AttemptFailure{Name: a.name, Err: err})
	}

	return zero, &ChainError{Op: c.op, Failures: failures}
}
