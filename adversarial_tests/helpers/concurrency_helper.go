package helpers

import (
	"fmt"
	"runtime"
	"sync"
	"time"
)

// GoroutineSnapshot captures the state of goroutines at a point in time
type GoroutineSnapshot struct {
	Count     int
	Timestamp time.Time
}

// TakeGoroutineSnapshot captures current goroutine count
func TakeGoroutineSnapshot() *GoroutineSnapshot {
	return &GoroutineSnapshot{
		Count:     runtime.NumGoroutine(),
		Timestamp: time.Now(),
	}
}

// WaitForGoroutineCleanup waits for the goroutine count to fall back to within
// tolerance of the snapshot.
func WaitForGoroutineCleanup(before *GoroutineSnapshot, maxWait time.Duration, tolerance int) (int, error) {
	deadline := time.Now().Add(maxWait)

	for time.Now().Before(deadline) {
		current := runtime.NumGoroutine()
		if current-before.Count <= tolerance {
			return current, nil
		}

		// Force GC and wait
		runtime.GC()
		time.Sleep(50 * time.Millisecond)
	}

	final := runtime.NumGoroutine()
	return final, fmt.Errorf("goroutines did not clean up within %v: started with %d, tolerance %d, got %d",
		maxWait, before.Count, tolerance, final)
}

// CoordinatedStart runs numOps operations that all begin at the same moment and
// returns the errors they produced.
func CoordinatedStart(numOps int, opFunc func(id int) error) []error {
	start := make(chan struct{})
	errs := make(chan error, numOps)
	var ready, done sync.WaitGroup

	ready.Add(numOps)
	done.Add(numOps)
	for i := 0; i < numOps; i++ {
		go func(id int) {
			defer done.Done()
			ready.Done()
			<-start
			if err := opFunc(id); err != nil {
				errs <- err
			}
		}(i)
	}

	ready.Wait()
	close(start)
	done.Wait()
	close(errs)

	var errList []error
	for err := range errs {
		errList = append(errList, err)
	}
	return errList
}
