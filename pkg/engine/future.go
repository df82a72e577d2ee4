package engine

import "sync"

// future is a one-shot, multi-waiter error result: the first resolve wins,
// and any number of goroutines may wait on it before or after resolution.
type future struct {
	done chan struct{}
	once sync.Once
	mu   sync.Mutex
	err  error
}

func newFuture() *future {
	return &future{done: make(chan struct{})}
}

func (f *future) resolve(err error) {
	f.once.Do(func() {
		f.mu.Lock()
		f.err = err
		f.mu.Unlock()
		close(f.done)
	})
}

func (f *future) wait() error {
	<-f.done
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}
