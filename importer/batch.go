package importer

import "context"

const (
	// DefaultBatchSize is the default number of documents handled per batch
	DefaultBatchSize = 100
)

// forEachBatch calls fn with consecutive slices of at most size items.
// Iteration stops on the first error from fn. Context cancellation is
// checked before the first batch and after each one.
func forEachBatch[T any](ctx context.Context, items []T, size int, fn func([]T) error) error {
	if size <= 0 {
		size = DefaultBatchSize
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	for i := 0; i < len(items); i += size {
		end := min(i+size, len(items))
		if err := fn(items[i:end]); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	return nil
}
