// Package resilience provides the retry and concurrency-limiting patterns
// the process engine applies around spawning.
//
//   - Retry: retries transient spawn failures (ETXTBSY, EAGAIN) with
//     exponential backoff
//   - Bulkhead: caps the number of child processes alive at once; a slot is
//     held from spawn until the process completes
//
// Example:
//
//	bh := resilience.NewBulkhead(resilience.BulkheadConfig{Name: "engine", MaxConcurrent: 8})
//	release, err := bh.Acquire(ctx)
//	if err != nil {
//	    return err
//	}
//	h, err := resilience.Retry(ctx, resilience.DefaultRetryConfig(), spawn)
//	if err != nil {
//	    release()
//	}
package resilience
