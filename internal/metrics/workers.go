package metrics

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/tensorplex-labs/brainscore/internal/split"
)

// SplitError reports the split a failure happened in.
type SplitError struct {
	Split int
	Err   error
}

func (e *SplitError) Error() string { return fmt.Sprintf("split %d: %v", e.Split, e.Err) }

func (e *SplitError) Unwrap() error { return e.Err }

// runSplits evaluates fn for every split on at most workers goroutines and
// returns the results ordered by split. The first failure cancels the rest.
func runSplits[T any](ctx context.Context, splits []split.Split, workers int, fn func(context.Context, split.Split) (T, error)) ([]T, error) {
	results := make([]T, len(splits))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))

	for i, sp := range splits {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := fn(gctx, sp)
			if err != nil {
				return &SplitError{Split: sp.Index, Err: err}
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
