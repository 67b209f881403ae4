package worker

import (
	"fmt"
	"sync"
)

// StaticProvider serves module sources from an in-memory map. It is
// the usual provider for embedded scripts and for tests.
type StaticProvider struct {
	mu      sync.Mutex
	sources map[string]string
}

func NewStaticProvider() *StaticProvider {
	return &StaticProvider{sources: make(map[string]string)}
}

// Add registers source under url, replacing any previous entry.
func (p *StaticProvider) Add(url, source string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sources[url] = source
}

func (p *StaticProvider) GetModuleSource(workerID int, url string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	src, ok := p.sources[url]
	if !ok {
		return "", fmt.Errorf("worker: module %q: %w", url, ErrNotFound)
	}
	return src, nil
}
