package worker

import (
	"fmt"
	"sync"
)

// Pool keeps a fixed set of pre-built workers ready for checkout.
// Hosts that pay a per-request worker cost use a pool to move engine
// construction off the request path.
type Pool struct {
	workers chan *Worker

	mu     sync.Mutex
	closed bool
}

// NewPool builds size workers up front using factory, which receives
// the slot number. A factory error tears down the workers built so
// far.
func NewPool(size int, factory func(n int) (*Worker, error)) (*Pool, error) {
	p := &Pool{workers: make(chan *Worker, size)}
	for n := 0; n < size; n++ {
		w, err := factory(n)
		if err != nil {
			p.Dispose()
			return nil, fmt.Errorf("worker: pool slot %d: %w", n, err)
		}
		p.workers <- w
	}
	return p, nil
}

// Get blocks until a worker is available or the pool is disposed.
func (p *Pool) Get() (*Worker, error) {
	w, ok := <-p.workers
	if !ok {
		return nil, ErrPoolClosed
	}
	return w, nil
}

// Put returns a worker to the pool. Workers handed to a disposed or
// already-full pool are disposed instead of leaked.
func (p *Pool) Put(w *Worker) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		w.Dispose()
		return
	}
	select {
	case p.workers <- w:
	default:
		w.Dispose()
	}
}

// Dispose closes the pool and disposes every idle worker. Checked-out
// workers are disposed when they come back through Put.
func (p *Pool) Dispose() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.workers)
	p.mu.Unlock()

	for w := range p.workers {
		w.Dispose()
	}
}
