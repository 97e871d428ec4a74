package core

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// joinPrimaryWithGroup runs the primary job and every group hook
// concurrently and waits for all of them. The outcome is asymmetric:
//
//   - a failing group hook rejects the invocation, even when the primary job
//     succeeded;
//   - a succeeding group hook contributes nothing, its work is discarded;
//   - success values and primary failures come only from the primary job.
//
// Group hooks are not cancelled when one of them fails.
func joinPrimaryWithGroup(
	ctx context.Context,
	primary func(context.Context) (any, error),
	group []HookFunc,
	hc *HookContext,
) (any, error) {
	var (
		jobs       errgroup.Group
		result     any
		primaryErr error
	)
	jobs.Go(func() error {
		result, primaryErr = primary(ctx)
		return nil
	})
	for _, hook := range group {
		jobs.Go(func() error {
			if err := callHook(ctx, hook, hc); err != nil {
				return Unify(LayerServiceDriver, PhaseGroup, err)
			}
			return nil
		})
	}
	if err := jobs.Wait(); err != nil {
		return nil, err
	}
	if primaryErr != nil {
		if inner, ok := serviceHandlerValue(primaryErr); ok {
			return nil, handlerPassthrough(inner)
		}
		return nil, primaryErr
	}
	return result, nil
}
