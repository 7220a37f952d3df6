package testutil

import (
	"sync"
	"sync/atomic"

	dErrors "zeroauth/pkg/domain-errors"
)

// ConcurrentResult tracks outcomes of concurrent test operations.
type ConcurrentResult struct {
	Successes     int32
	InvalidStates int32
	Rejections    int32
	NotFounds     int32
	Errors        int32
}

// Total returns the total number of operations executed.
func (r *ConcurrentResult) Total() int32 {
	return r.Successes + r.InvalidStates + r.Rejections + r.NotFounds + r.Errors
}

// RunConcurrent executes fn in parallel goroutines released at the same time
// and buckets the results by domain error code.
func RunConcurrent(goroutines int, fn func(idx int) error) *ConcurrentResult {
	var wg sync.WaitGroup
	var successes, invalidStates, rejections, notFounds, errs atomic.Int32
	start := make(chan struct{})

	for i := range goroutines {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			<-start
			err := fn(idx)
			switch {
			case err == nil:
				successes.Add(1)
			case dErrors.HasCode(err, dErrors.CodeInvalidState):
				invalidStates.Add(1)
			case dErrors.HasCode(err, dErrors.CodeVerificationFailed):
				rejections.Add(1)
			case dErrors.HasCode(err, dErrors.CodeNotFound):
				notFounds.Add(1)
			default:
				errs.Add(1)
			}
		}(i)
	}

	close(start)
	wg.Wait()

	return &ConcurrentResult{
		Successes:     successes.Load(),
		InvalidStates: invalidStates.Load(),
		Rejections:    rejections.Load(),
		NotFounds:     notFounds.Load(),
		Errors:        errs.Load(),
	}
}
