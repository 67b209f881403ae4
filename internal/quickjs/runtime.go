//go:build !v8

// Package quickjs implements core.JSRuntime on the QuickJS engine via
// modernc.org/quickjs.
package quickjs

import (
	"fmt"
	"strings"

	"modernc.org/quickjs"

	"github.com/isobridge/worker/internal/core"
)

// EngineName and EngineModule identify the backend for version
// reporting.
const (
	EngineName   = "quickjs"
	EngineModule = "modernc.org/quickjs"
)

// Runtime wraps one QuickJS VM. Not safe for concurrent use; callers
// hold the worker's execution guard around every method.
type Runtime struct {
	vm *quickjs.VM
}

var _ core.JSRuntime = (*Runtime)(nil)

// New creates a QuickJS VM, applying the heap limit when configured.
func New(cfg core.RuntimeConfig) (*Runtime, error) {
	vm, err := quickjs.NewVM()
	if err != nil {
		return nil, fmt.Errorf("creating QuickJS VM: %w", err)
	}
	if cfg.MemoryLimitMB > 0 {
		vm.SetMemoryLimit(uintptr(cfg.MemoryLimitMB) * 1024 * 1024)
	}
	return &Runtime{vm: vm}, nil
}

// tagOrigin names the evaluated source so engine-reported positions
// carry the origin. The binding's Eval has no filename parameter; the
// sourceURL directive is the portable spelling.
func tagOrigin(origin, js string) string {
	origin = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return '_'
		}
		return r
	}, origin)
	return js + "\n//# sourceURL=" + origin + "\n"
}

// Eval evaluates JavaScript and discards the result.
func (r *Runtime) Eval(origin, js string) error {
	v, err := r.vm.EvalValue(tagOrigin(origin, js), quickjs.EvalGlobal)
	if err != nil {
		return core.FromOpaque(origin, err)
	}
	v.Free()
	return nil
}

// EvalString evaluates JavaScript and returns the result coerced to a
// Go string.
func (r *Runtime) EvalString(origin, js string) (string, error) {
	result, err := r.vm.Eval(tagOrigin(origin, js), quickjs.EvalGlobal)
	if err != nil {
		return "", core.FromOpaque(origin, err)
	}
	if result == nil {
		return "", nil
	}
	if s, ok := result.(string); ok {
		return s, nil
	}
	return fmt.Sprint(result), nil
}

// RegisterFunc registers a Go function as a global JavaScript function.
// The binding returns multi-value Go results as JS arrays, so the raw
// function is registered under a temporary name and rewrapped in JS:
// (T, error) returns become "return T or throw TypeError".
func (r *Runtime) RegisterFunc(name string, fn any) error {
	rawName := "__raw_" + name
	if err := r.vm.RegisterFunc(rawName, fn, false); err != nil {
		return fmt.Errorf("registering %s: %w", name, err)
	}
	wrapJS := fmt.Sprintf(`(function() {
	var raw = globalThis[%q];
	globalThis[%q] = function() {
		var r = raw.apply(this, arguments);
		if (Array.isArray(r)) {
			if (r[1] !== null && r[1] !== undefined) throw new TypeError("calling %s: " + r[1]);
			return r[0];
		}
		return r;
	};
	delete globalThis[%q];
})()`, rawName, name, name, rawName)
	return r.Eval("<register:"+name+">", wrapJS)
}

// RunMicrotasks pumps the QuickJS pending-job queue.
func (r *Runtime) RunMicrotasks() {
	executePendingJobs(r.vm)
}

// Interrupt asks the VM to abort the current evaluation at its next
// interrupt check. Safe from any goroutine.
func (r *Runtime) Interrupt() {
	r.vm.Interrupt()
}

// Close frees the VM.
func (r *Runtime) Close() {
	r.vm.Close()
}
