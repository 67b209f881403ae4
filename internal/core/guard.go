package core

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
)

// ExecGuard serializes entry into a single-threaded execution context.
// It is reentrant within one goroutine: a host callback invoked from
// inside script code may call back into the same context on the same
// goroutine without deadlocking, while other goroutines block until
// the outermost holder exits.
type ExecGuard struct {
	mu    sync.Mutex
	owner atomic.Int64 // goroutine id holding the guard; 0 when free
	depth int          // nesting depth, touched only by the owner
}

// Enter acquires the guard, blocking while another goroutine holds it.
// Nested calls from the owning goroutine return immediately.
func (g *ExecGuard) Enter() {
	id := goroutineID()
	if g.owner.Load() == id {
		g.depth++
		return
	}
	g.mu.Lock()
	g.owner.Store(id)
	g.depth = 1
}

// Exit releases one level of the guard. The outermost Exit unlocks.
// Every Enter must be paired with exactly one Exit.
func (g *ExecGuard) Exit() {
	g.depth--
	if g.depth == 0 {
		g.owner.Store(0)
		g.mu.Unlock()
	}
}

// goroutineID parses the current goroutine's id out of its stack
// header ("goroutine 123 [running]:"). The runtime offers no direct
// accessor.
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	s := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	if i := bytes.IndexByte(s, ' '); i > 0 {
		if id, err := strconv.ParseInt(string(s[:i]), 10, 64); err == nil {
			return id
		}
	}
	return -1
}
