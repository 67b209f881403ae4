package worker

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/isobridge/worker/internal/core"
	"github.com/isobridge/worker/internal/loader"
)

// Worker is one isolated script environment. All entry points that
// touch the engine serialize through an execution guard, so a worker
// is safe to share between goroutines; calls block until the engine
// is free. Callbacks registered at construction may re-enter the same
// worker on the dispatching goroutine without deadlocking.
type Worker struct {
	id  int
	cfg Config
	rt  core.JSRuntime

	guard    core.ExecGuard
	disposed atomic.Bool

	// closeMu serializes engine interrupts against Dispose's Close;
	// closed flips under it once the runtime is gone. Interrupts come
	// from outside the execution guard, so the guard cannot order them.
	closeMu sync.Mutex
	closed  bool

	// lastExc is the formatted pending exception. It is only replaced,
	// never cleared, so a stale value survives later successes.
	lastExc string

	// sources keeps the lines of every loaded script and module unit
	// for source-line recovery when the engine reports bare positions.
	sources map[string][]string

	modules *loader.Table
}

// preludeJS installs the script-facing API. Listener slots live in the
// closure; the host reaches them through dispatch entry points hung on
// the recv/recvSync function objects themselves, so the global
// namespace carries the API functions and nothing else.
const preludeJS = `(function() {
	var onMessage = null;
	var onSyncMessage = null;

	globalThis.recv = function(cb) { onMessage = cb; };
	globalThis.recv.__dispatch = function(msg) {
		if (onMessage === null) return "n";
		onMessage(msg);
		return "0";
	};

	globalThis.recvSync = function(cb) { onSyncMessage = cb; };
	globalThis.recvSync.__dispatch = function(msg) {
		if (onSyncMessage === null) return "n";
		var reply;
		try {
			reply = onSyncMessage(msg);
		} catch (e) {
			return "x";
		}
		if (typeof reply !== "string") return "x";
		return "s" + reply;
	};

	var rawSend = globalThis.send;
	globalThis.send = function(msg) { rawSend(String(msg)); };

	var rawSendSync = globalThis.sendSync;
	globalThis.sendSync = function(msg) { return rawSendSync(String(msg)); };

	if (typeof globalThis.print === "function") {
		var rawPrint = globalThis.print;
		globalThis.print = function() {
			var parts = [];
			for (var i = 0; i < arguments.length; i++) parts.push(String(arguments[i]));
			rawPrint(parts.join(" "));
		};
	}
})();
`

// dispatchJS reaches the listener slot for the named channel. A
// missing or replaced global degrades to the no-listener result.
const dispatchJS = `(function() {
	var f = globalThis[%q];
	if (typeof f !== "function" || typeof f.__dispatch !== "function") return "n";
	return f.__dispatch(%s);
})();
`

// New creates a worker with the given host-assigned id. The id is
// echoed back on every handler callback so hosts multiplexing many
// workers over one handler can route replies.
func New(id int, cfg Config) (*Worker, error) {
	Init()
	cfg = cfg.withDefaults()

	rt, err := newRuntime(core.RuntimeConfig{MemoryLimitMB: cfg.MemoryLimitMB})
	if err != nil {
		return nil, fmt.Errorf("worker: create runtime: %w", err)
	}

	w := &Worker{
		id:      id,
		cfg:     cfg,
		rt:      rt,
		sources: make(map[string][]string),
	}
	if err := w.installGlobals(); err != nil {
		rt.Close()
		return nil, err
	}
	return w, nil
}

func (w *Worker) installGlobals() error {
	err := w.rt.RegisterFunc("send", func(msg string) {
		if w.cfg.Handler != nil {
			w.cfg.Handler.OnAsyncMessage(w.id, msg)
		}
	})
	if err != nil {
		return fmt.Errorf("worker: install send: %w", err)
	}

	err = w.rt.RegisterFunc("sendSync", func(msg string) string {
		if w.cfg.Handler == nil {
			return ""
		}
		return w.cfg.Handler.OnSyncMessage(w.id, msg)
	})
	if err != nil {
		return fmt.Errorf("worker: install sendSync: %w", err)
	}

	if w.cfg.EnablePrint {
		err = w.rt.RegisterFunc("print", func(line string) {
			fmt.Fprintln(w.cfg.Stdout, line)
		})
		if err != nil {
			return fmt.Errorf("worker: install print: %w", err)
		}
	}

	if err := w.rt.Eval("<prelude>", preludeJS); err != nil {
		return fmt.Errorf("worker: install prelude: %w", err)
	}
	return nil
}

// enter serializes engine access and arms the execution watchdog.
// The returned leave func must run on the same goroutine. ok is false
// when the worker was disposed before the guard was taken.
func (w *Worker) enter() (leave func(), timedOut *atomic.Bool, ok bool) {
	w.guard.Enter()
	if w.disposed.Load() {
		w.guard.Exit()
		return nil, nil, false
	}

	timedOut = new(atomic.Bool)
	if w.cfg.ExecutionTimeout <= 0 {
		return w.guard.Exit, timedOut, true
	}
	wd := time.AfterFunc(w.cfg.ExecutionTimeout, func() {
		timedOut.Store(true)
		w.interrupt()
	})
	return func() {
		wd.Stop()
		w.guard.Exit()
	}, timedOut, true
}

// capture records err as the pending exception and returns it with
// positions resolved. Timeouts record a synthetic message: the engine
// reports an interrupt, not what the script did wrong.
func (w *Worker) capture(origin string, err error, timedOut bool) *core.ScriptError {
	if timedOut {
		w.lastExc = fmt.Sprintf("worker: execution timed out (limit: %v)", w.cfg.ExecutionTimeout)
		log.Printf("worker: worker %d timed out after %v", w.id, w.cfg.ExecutionTimeout)
		return nil
	}
	se := core.FromOpaque(origin, err)
	w.resolvePosition(se)
	w.lastExc = se.Display()
	return se
}

// resolvePosition attaches source context to an engine-reported
// position. A known origin gets its offending line looked up; a
// position in the linked module blob (listener code defined in a
// module, throwing later during dispatch) is mapped back to the
// module's URL and local line, as the loader does for load-time
// errors.
func (w *Worker) resolvePosition(se *core.ScriptError) {
	if se.Line <= 0 {
		return
	}
	if lines, ok := w.sources[se.Resource]; ok {
		if se.SourceLine == "" && se.Line <= len(lines) {
			se.SourceLine = lines[se.Line-1]
		}
		return
	}
	if w.modules == nil {
		return
	}
	if u, local, ok := w.modules.Locate(se.Line); ok {
		se.Resource = u.URL
		se.Line = local
		if lines, ok := w.sources[u.URL]; ok && se.SourceLine == "" && local <= len(lines) {
			se.SourceLine = lines[local-1]
		}
	}
}

// LoadScript compiles and runs source as a flat classic script named
// name. The name shows up in exception output. Pending microtasks run
// after a successful evaluation.
func (w *Worker) LoadScript(name, source string) int {
	leave, timedOut, ok := w.enter()
	if !ok {
		return ScriptRunFailed
	}
	defer leave()

	w.sources[name] = strings.Split(source, "\n")
	// Parse before evaluating: the engines report parse failures and
	// thrown values through one opaque error path, so the stage has to
	// be settled up front.
	if serr := loader.Check(name, source); serr != nil {
		w.capture(name, serr, false)
		return ScriptCompileFailed
	}
	if err := w.rt.Eval(name, source); err != nil {
		w.capture(name, err, timedOut.Load())
		return ScriptRunFailed
	}
	w.rt.RunMicrotasks()
	return ScriptOK
}

// LoadModule resolves, compiles, links and evaluates the module graph
// rooted at url, pulling each unit's source from the configured
// provider. The staged result codes separate provider and compile
// failures, link failures, and evaluation throws.
func (w *Worker) LoadModule(url string) int {
	leave, timedOut, ok := w.enter()
	if !ok {
		return LoadEvaluateFailed
	}
	defer leave()

	if w.cfg.Provider == nil {
		w.lastExc = fmt.Sprintf("worker: no source provider configured for module %q", url)
		return LoadCompileFailed
	}

	table, code, serr := loader.Load(w.rt, func(u string) (string, error) {
		return w.cfg.Provider.GetModuleSource(w.id, u)
	}, url)
	if code != loader.OK {
		if timedOut.Load() {
			w.capture(url, serr, true)
			return LoadEvaluateFailed
		}
		if serr != nil {
			w.capture(url, serr, false)
		}
		return code
	}

	w.modules = table
	for _, u := range table.Units() {
		w.sources[u.URL] = strings.Split(u.Body, "\n")
	}
	return LoadOK
}

// Send delivers message to the script's recv listener. A listener
// throw is reported as SendCallbackThrew with the exception pending;
// a missing listener is reported without running any script beyond
// the dispatch call itself.
func (w *Worker) Send(message string) int {
	leave, timedOut, ok := w.enter()
	if !ok {
		return SendCallbackThrew
	}
	defer leave()

	js := fmt.Sprintf(dispatchJS, "recv", core.JSEscape(message))
	res, err := w.rt.EvalString("<send>", js)
	if err != nil {
		w.capture("<send>", err, timedOut.Load())
		return SendCallbackThrew
	}
	w.rt.RunMicrotasks()
	if res == "n" {
		w.lastExc = SentinelNoRecv
		return SendNoListener
	}
	return SendOK
}

// SendSync delivers message to the script's recvSync listener and
// returns its string reply. SendSync never reports failure through
// the pending exception: a missing listener, a throwing listener, and
// a non-string reply all come back as in-band sentinel replies.
func (w *Worker) SendSync(message string) string {
	leave, timedOut, ok := w.enter()
	if !ok {
		return SentinelDisposed
	}
	defer leave()

	js := fmt.Sprintf(dispatchJS, "recvSync", core.JSEscape(message))
	res, err := w.rt.EvalString("<sendSync>", js)
	if err != nil {
		// The dispatcher catches listener throws itself; anything
		// escaping it is an engine-level failure (interrupt, OOM).
		_ = w.capture("<sendSync>", err, timedOut.Load())
		return SentinelNonString
	}
	w.rt.RunMicrotasks()
	switch {
	case res == "n":
		return SentinelNoRecvSync
	case strings.HasPrefix(res, "s"):
		return res[1:]
	default:
		return SentinelNonString
	}
}

// LastException returns the formatted pending exception, or "" when
// nothing has failed yet. The value persists across later successful
// calls until the next failure replaces it, and stays readable after
// Dispose.
func (w *Worker) LastException() string {
	w.guard.Enter()
	defer w.guard.Exit()
	return w.lastExc
}

// TerminateExecution interrupts script running on another goroutine.
// It deliberately skips the execution guard: its whole point is to
// fire while the guard is held by the stuck call. Calling it with no
// script running is allowed and may cancel the next entry into the
// engine; on a disposed worker it is a no-op.
func (w *Worker) TerminateExecution() {
	w.interrupt()
}

// interrupt delivers an engine interrupt unless the runtime is gone.
// Racing Dispose either sees the interrupt land on the live runtime or
// skips it entirely; it never reaches a closed one.
func (w *Worker) interrupt() {
	w.closeMu.Lock()
	defer w.closeMu.Unlock()
	if w.closed {
		return
	}
	w.rt.Interrupt()
}

// ID returns the host-assigned worker id.
func (w *Worker) ID() int {
	return w.id
}

// Dispose releases the engine instance. Calls racing Dispose either
// complete first or observe the disposed state and fail cleanly;
// later calls are no-ops. LastException stays available.
func (w *Worker) Dispose() {
	if !w.disposed.CompareAndSwap(false, true) {
		return
	}
	w.guard.Enter()
	w.closeMu.Lock()
	w.closed = true
	w.rt.Close()
	w.closeMu.Unlock()
	w.guard.Exit()
}
