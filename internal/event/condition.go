package event

import (
	"context"
)

// Condition is a declarative branch-on-predicate helper: one predicate with
// optional Then and Otherwise handlers. Missing branches are no-ops.
type Condition[T any] struct {
	predicate func(ctx context.Context, data T) (bool, error)
	onTrue    func(ctx context.Context, data T) error
	onFalse   func(ctx context.Context, data T) error
}

// When creates a condition from a predicate.
func When[T any](predicate func(ctx context.Context, data T) (bool, error)) *Condition[T] {
	return &Condition[T]{predicate: predicate}
}

// Then sets the handler to run when the predicate holds.
func (c *Condition[T]) Then(handler func(ctx context.Context, data T) error) *Condition[T] {
	c.onTrue = handler
	return c
}

// Otherwise sets the handler to run when the predicate does not hold.
func (c *Condition[T]) Otherwise(handler func(ctx context.Context, data T) error) *Condition[T] {
	c.onFalse = handler
	return c
}

// Run evaluates the predicate and invokes the matching branch.
func (c *Condition[T]) Run(ctx context.Context, data T) error {
	ok, err := c.predicate(ctx, data)
	if err != nil {
		return err
	}
	if ok {
		if c.onTrue != nil {
			return c.onTrue(ctx, data)
		}
		return nil
	}
	if c.onFalse != nil {
		return c.onFalse(ctx, data)
	}
	return nil
}
