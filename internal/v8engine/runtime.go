//go:build v8

// Package v8engine implements core.JSRuntime on V8 via
// github.com/tommie/v8go.
package v8engine

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	v8 "github.com/tommie/v8go"

	"github.com/isobridge/worker/internal/core"
)

// EngineName and EngineModule identify the backend for version
// reporting.
const (
	EngineName   = "v8"
	EngineModule = "github.com/tommie/v8go"
)

// Runtime wraps one V8 isolate and its context. Not safe for
// concurrent use; callers hold the worker's execution guard around
// every method except Interrupt.
type Runtime struct {
	iso *v8.Isolate
	ctx *v8.Context
}

var _ core.JSRuntime = (*Runtime)(nil)

// New creates an isolate and context, applying heap constraints when a
// memory limit is configured.
func New(cfg core.RuntimeConfig) (*Runtime, error) {
	var iso *v8.Isolate
	if cfg.MemoryLimitMB > 0 {
		heapSize := uint64(cfg.MemoryLimitMB) * 1024 * 1024
		iso = v8.NewIsolate(v8.WithResourceConstraints(heapSize/2, heapSize))
	} else {
		iso = v8.NewIsolate()
	}
	return &Runtime{iso: iso, ctx: v8.NewContext(iso)}, nil
}

// Eval evaluates JavaScript under origin and discards the result.
func (r *Runtime) Eval(origin, js string) error {
	if _, err := r.ctx.RunScript(js, origin); err != nil {
		return scriptError(origin, err)
	}
	return nil
}

// EvalString evaluates JavaScript and returns the result coerced to a
// Go string.
func (r *Runtime) EvalString(origin, js string) (string, error) {
	val, err := r.ctx.RunScript(js, origin)
	if err != nil {
		return "", scriptError(origin, err)
	}
	if val == nil {
		return "", nil
	}
	return val.String(), nil
}

// scriptError converts a v8go error into a core.ScriptError, pulling
// line and column out of the JSError location ("file:line:col").
func scriptError(origin string, err error) *core.ScriptError {
	var jsErr *v8.JSError
	if !errors.As(err, &jsErr) {
		return core.FromOpaque(origin, err)
	}
	se := &core.ScriptError{
		Message:  jsErr.Message,
		Resource: origin,
		StartCol: -1,
		Stack:    jsErr.StackTrace,
	}
	if loc := jsErr.Location; loc != "" {
		parts := strings.Split(loc, ":")
		if len(parts) >= 3 {
			if n, convErr := strconv.Atoi(parts[len(parts)-2]); convErr == nil {
				se.Line = n
			}
			if c, convErr := strconv.Atoi(parts[len(parts)-1]); convErr == nil && c > 0 {
				se.StartCol = c - 1
				se.EndCol = c
			}
			se.Resource = strings.Join(parts[:len(parts)-2], ":")
		}
	}
	return se
}

// RegisterFunc registers a Go function as a global JavaScript function
// backed by a FunctionTemplate. Arguments and returns are marshaled by
// reflection; supported kinds are string, int, float64, and bool, with
// an optional trailing error return that surfaces as a thrown
// TypeError.
func (r *Runtime) RegisterFunc(name string, fn any) error {
	fnVal := reflect.ValueOf(fn)
	fnType := fnVal.Type()
	if fnType.Kind() != reflect.Func {
		return fmt.Errorf("RegisterFunc: expected function, got %T", fn)
	}

	tmpl := v8.NewFunctionTemplate(r.iso, func(info *v8.FunctionCallbackInfo) *v8.Value {
		args := info.Args()
		if len(args) < fnType.NumIn() {
			msg := fmt.Sprintf("%s requires at least %d argument(s), got %d", name, fnType.NumIn(), len(args))
			jsMsg, _ := v8.NewValue(r.iso, msg)
			r.iso.ThrowException(jsMsg)
			return nil
		}

		goArgs := make([]reflect.Value, fnType.NumIn())
		for i := 0; i < fnType.NumIn(); i++ {
			goArgs[i] = jsToGoArg(args[i], fnType.In(i))
		}

		results := fnVal.Call(goArgs)

		switch fnType.NumOut() {
		case 0:
			return nil
		case 1:
			return goToJSValue(r.iso, results[0])
		case 2:
			if errVal := results[1]; !errVal.IsNil() {
				msg := fmt.Sprintf("calling %s: %s", name, errVal.Interface().(error).Error())
				jsMsg, _ := v8.NewValue(r.iso, msg)
				r.iso.ThrowException(jsMsg)
				return nil
			}
			return goToJSValue(r.iso, results[0])
		default:
			return nil
		}
	})

	return r.ctx.Global().Set(name, tmpl.GetFunction(r.ctx))
}

func jsToGoArg(val *v8.Value, targetType reflect.Type) reflect.Value {
	switch targetType.Kind() {
	case reflect.String:
		return reflect.ValueOf(val.String())
	case reflect.Int:
		return reflect.ValueOf(int(val.Integer()))
	case reflect.Int64:
		return reflect.ValueOf(val.Integer())
	case reflect.Float64:
		return reflect.ValueOf(val.Number())
	case reflect.Bool:
		return reflect.ValueOf(val.Boolean())
	default:
		return reflect.Zero(targetType)
	}
}

func goToJSValue(iso *v8.Isolate, val reflect.Value) *v8.Value {
	if !val.IsValid() {
		return nil
	}
	switch val.Kind() {
	case reflect.String:
		v, _ := v8.NewValue(iso, val.String())
		return v
	case reflect.Int, reflect.Int32, reflect.Int64:
		v, _ := v8.NewValue(iso, int32(val.Int()))
		return v
	case reflect.Float32, reflect.Float64:
		v, _ := v8.NewValue(iso, val.Float())
		return v
	case reflect.Bool:
		v, _ := v8.NewValue(iso, val.Bool())
		return v
	default:
		return nil
	}
}

// RunMicrotasks pumps the V8 microtask queue.
func (r *Runtime) RunMicrotasks() {
	r.ctx.PerformMicrotaskCheckpoint()
}

// Interrupt requests termination of any script executing in the
// isolate. Safe from any goroutine.
func (r *Runtime) Interrupt() {
	r.iso.TerminateExecution()
}

// Close releases the context and isolate.
func (r *Runtime) Close() {
	r.ctx.Close()
	r.iso.Dispose()
}
