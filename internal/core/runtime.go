package core

import "encoding/json"

// JSRuntime abstracts the JavaScript engine (QuickJS or V8) behind a
// common interface used by the worker facade and the module loader.
// Every eval carries an origin name used for diagnostics; positions in
// engine-reported errors refer to that origin.
type JSRuntime interface {
	// Eval evaluates JavaScript source and discards the result.
	// A thrown value or syntax error is returned as a *ScriptError.
	Eval(origin, js string) error

	// EvalString evaluates JavaScript and returns the result coerced to
	// a Go string. Errors are *ScriptError, as with Eval.
	EvalString(origin, js string) (string, error)

	// RegisterFunc registers a Go function as a global JavaScript
	// function. The function's Go types are automatically marshaled
	// to/from JS types.
	RegisterFunc(name string, fn any) error

	// RunMicrotasks pumps the microtask queue (Promise callbacks, etc.).
	// V8: PerformMicrotaskCheckpoint, QuickJS: ExecutePendingJob loop.
	RunMicrotasks()

	// Interrupt requests that any script currently executing in the
	// runtime abort at its next safe point. Safe to call from any
	// goroutine; a no-op when nothing is running.
	Interrupt()

	// Close tears down the runtime and frees its heap. The runtime must
	// not be used afterward.
	Close()
}

// RuntimeConfig carries the engine-level knobs a backend needs at
// construction time.
type RuntimeConfig struct {
	MemoryLimitMB int
}

// JSEscape quotes s as a JavaScript string literal. JSON string syntax
// is valid JS for every code point: astral characters come out as
// surrogate pairs and U+2028/U+2029 are escaped, where Go's %q would
// emit \U escapes JS cannot parse.
func JSEscape(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
