// Package batch runs groups of bucket deletions concurrently.
package batch

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Deleter removes one key. *sdk.Bucket satisfies it.
type Deleter interface {
	Delete(ctx context.Context, key string) (string, error)
}

// DeleteAll deletes every key concurrently and waits for the whole group.
// Every deletion runs to completion even when another fails; the first
// failure is returned. limit caps in-flight deletions, 0 means no cap.
func DeleteAll(ctx context.Context, d Deleter, keys []string, limit int) error {
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	for _, key := range keys {
		g.Go(func() error {
			if _, err := d.Delete(ctx, key); err != nil {
				return fmt.Errorf("delete %q: %w", key, err)
			}
			return nil
		})
	}

	return g.Wait()
}
