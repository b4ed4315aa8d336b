package utils

import (
	"context"
	"sync"
)

// ExecuteWithResults runs functions concurrently and returns their results and errors
// index-aligned with the input. It waits for every function to return; a failing
// function never cancels its siblings.
// Panics in goroutines are recovered and converted to PanicError.
func ExecuteWithResults[T any](ctx context.Context, maxConcurrency int, functions ...func() (T, error)) ([]T, []error) {
	if len(functions) == 0 {
		return nil, nil
	}
	if maxConcurrency <= 0 {
		maxConcurrency = GetSemaphoreLimit()
	}

	semaphore := make(chan struct{}, maxConcurrency)
	results := make([]T, len(functions))
	errors := make([]error, len(functions))
	var wg sync.WaitGroup

	for i, fn := range functions {
		wg.Add(1)
		go func(index int, function func() (T, error)) {
			defer wg.Done()
			defer RecoverWithCallback(func(err error) {
				errors[index] = err
			})

			// Acquire semaphore
			select {
			case semaphore <- struct{}{}:
				defer func() { <-semaphore }()
			case <-ctx.Done():
				errors[index] = ctx.Err()
				return
			}

			results[index], errors[index] = function()
		}(i, fn)
	}

	wg.Wait()
	return results, errors
}

// Batch splits items into consecutive batches of at most batchSize elements,
// preserving order. A non-positive batchSize falls back to 10.
func Batch[T any](items []T, batchSize int) [][]T {
	if batchSize <= 0 {
		batchSize = 10
	}

	var batches [][]T
	for i := 0; i < len(items); i += batchSize {
		end := i + batchSize
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[i:end])
	}
	return batches
}
