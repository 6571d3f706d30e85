package projects

import (
	"context"
	"errors"

	"prism-projects/domain"
)

// RetryOnConflict runs fn until it stops failing with domain.ErrConflict, at
// most attempts times. Each attempt reloads the project inside fn, so a
// retried mutation is applied to the latest revision.
func RetryOnConflict(ctx context.Context, attempts int, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if cerr := ctx.Err(); cerr != nil {
			if err != nil {
				return errors.Join(err, cerr)
			}
			return cerr
		}
		err = fn(ctx)
		if !errors.Is(err, domain.ErrConflict) {
			return err
		}
	}
	return err
}
