package internal

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// ConnectionManager tracks the session's connection lifecycle. The initial login
// runs exactly once, even when Connect is called concurrently from multiple
// goroutines; online and closed are one-way transitions.
type ConnectionManager struct {
	once  sync.Once
	err   error
	ready chan struct{}

	mu        sync.RWMutex
	online    bool
	startedAt time.Time

	closed   atomic.Bool
	done     chan struct{}
	lifetime context.Context
	cancel   context.CancelFunc
}

// NewConnectionManager creates a new ConnectionManager instance ready for use.
func NewConnectionManager() *ConnectionManager {
	lifetime, cancel := context.WithCancel(context.Background())
	return &ConnectionManager{
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
		lifetime: lifetime,
		cancel:   cancel,
	}
}

// Initialize runs the provided initialization function exactly once.
// If called multiple times concurrently, only the first call will execute the function,
// and all calls will wait for the initialization to complete before returning.
//
// Subsequent calls return the result of the first initialization attempt.
func (cm *ConnectionManager) Initialize(ctx context.Context, fn func(context.Context) error) error {
	cm.once.Do(func() {
		cm.err = fn(ctx)
		close(cm.ready)
	})

	<-cm.ready
	return cm.err
}

// Error returns the error from the initialization attempt, if any.
func (cm *ConnectionManager) Error() error {
	select {
	case <-cm.ready:
		return cm.err
	default:
		return nil
	}
}

// IsInitialized returns true if the initialization has been attempted.
func (cm *ConnectionManager) IsInitialized() bool {
	select {
	case <-cm.ready:
		return true
	default:
		return false
	}
}

// MarkOnline records the login time. It returns false if the session was already online.
func (cm *ConnectionManager) MarkOnline(at time.Time) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.online {
		return false
	}
	cm.online = true
	cm.startedAt = at
	return true
}

// Online reports whether the login transition has completed.
func (cm *ConnectionManager) Online() bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.online
}

// StartedAt returns the login time, or the zero time before login.
func (cm *ConnectionManager) StartedAt() time.Time {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.startedAt
}

// Close marks the connection closed. It returns true only for the first call.
func (cm *ConnectionManager) Close() bool {
	if !cm.closed.CompareAndSwap(false, true) {
		return false
	}
	cm.cancel()
	close(cm.done)
	return true
}

// Closed reports whether Close was called.
func (cm *ConnectionManager) Closed() bool {
	return cm.closed.Load()
}

// Done is closed once Close is called.
func (cm *ConnectionManager) Done() <-chan struct{} {
	return cm.done
}

// Context is cancelled once Close is called.
func (cm *ConnectionManager) Context() context.Context {
	return cm.lifetime
}
