package cache

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"
)

// Coordinator collapses concurrent work for the same key into one execution
type Coordinator[T any] struct {
	group singleflight.Group
}

func NewCoordinator[T any]() *Coordinator[T] {
	return &Coordinator[T]{}
}

// Run executes work once for all concurrent callers with the same key.
// The work runs detached from ctx, so a caller giving up does not cancel it for the others.
func (c *Coordinator[T]) Run(ctx context.Context, key string, work func(ctx context.Context) (T, error)) (T, error) {
	detached := context.WithoutCancel(ctx)

	resultChan := c.group.DoChan(key, func() (result any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic while computing %s: %v", key, r)
			}
		}()
		return work(detached)
	})

	select {
	case <-ctx.Done():
		var empty T
		return empty, ctx.Err()
	case result := <-resultChan:
		if result.Err != nil {
			var empty T
			return empty, result.Err
		}
		return result.Val.(T), nil
	}
}
