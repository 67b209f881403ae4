package worker

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestWorker(t *testing.T, id int, cfg Config) *Worker {
	t.Helper()
	w, err := New(id, cfg)
	if err != nil {
		t.Fatalf("creating worker: %v", err)
	}
	t.Cleanup(w.Dispose)
	return w
}

func TestWorker_Lifecycle(t *testing.T) {
	w, err := New(1, Config{})
	if err != nil {
		t.Fatalf("creating worker: %v", err)
	}
	if w.ID() != 1 {
		t.Errorf("ID() = %d, want 1", w.ID())
	}
	if exc := w.LastException(); exc != "" {
		t.Errorf("fresh worker has pending exception %q", exc)
	}
	w.Dispose()
	w.Dispose() // second dispose is a no-op
}

func TestWorker_LoadScript(t *testing.T) {
	w := newTestWorker(t, 1, Config{})
	if code := w.LoadScript("main.js", `var x = 40 + 2;`); code != ScriptOK {
		t.Fatalf("LoadScript = %d, want ScriptOK; exception: %s", code, w.LastException())
	}
}

func TestWorker_LoadScript_SyntaxError(t *testing.T) {
	w := newTestWorker(t, 1, Config{})
	code := w.LoadScript("bad.js", `var (`)
	if code != ScriptCompileFailed {
		t.Fatalf("LoadScript = %d, want ScriptCompileFailed", code)
	}
	if exc := w.LastException(); !strings.Contains(exc, "bad.js:1") {
		t.Errorf("LastException() = %q, want a bad.js:1 position header", exc)
	}
}

func TestWorker_LoadScript_Throw(t *testing.T) {
	w := newTestWorker(t, 1, Config{})
	code := w.LoadScript("main.js", `throw new Error("boom");`)
	if code != ScriptRunFailed {
		t.Fatalf("LoadScript = %d, want ScriptRunFailed", code)
	}
	if exc := w.LastException(); !strings.Contains(exc, "boom") {
		t.Errorf("LastException() = %q, want it to mention boom", exc)
	}
}

func TestWorker_LoadScript_ThrownSyntaxError(t *testing.T) {
	// The script parses; the SyntaxError is a thrown value, so the
	// failure is a run failure no matter what the exception is named.
	w := newTestWorker(t, 1, Config{})
	code := w.LoadScript("main.js", `throw new SyntaxError("zap");`)
	if code != ScriptRunFailed {
		t.Fatalf("LoadScript = %d, want ScriptRunFailed", code)
	}
	if exc := w.LastException(); !strings.Contains(exc, "zap") {
		t.Errorf("LastException() = %q, want it to mention zap", exc)
	}
}

func TestWorker_ExceptionPositionResolution(t *testing.T) {
	// Feed the capture path an engine-shaped error and check the stored
	// report carries the position header, the offending line, and the
	// message.
	w := newTestWorker(t, 1, Config{})
	w.sources["app.js"] = []string{`var a = 1;`, `throw new Error("boom");`}

	w.capture("app.js", errors.New("Error: boom\n    at <anonymous> (app.js:2)"), false)

	want := "app.js:2\n" +
		`throw new Error("boom");` + "\n" +
		"Error: boom\n    at <anonymous> (app.js:2)\n"
	if got := w.LastException(); got != want {
		t.Errorf("LastException() = %q, want %q", got, want)
	}
}

func TestWorker_LastExceptionPersists(t *testing.T) {
	w := newTestWorker(t, 1, Config{})
	w.LoadScript("main.js", `throw new Error("first");`)
	if code := w.LoadScript("ok.js", `var y = 1;`); code != ScriptOK {
		t.Fatalf("LoadScript = %d, want ScriptOK", code)
	}
	// Success does not clear the pending exception.
	if exc := w.LastException(); !strings.Contains(exc, "first") {
		t.Errorf("LastException() = %q, want the earlier failure", exc)
	}
}

func TestWorker_Send_NoListener(t *testing.T) {
	w := newTestWorker(t, 1, Config{})
	if code := w.Send("hello"); code != SendNoListener {
		t.Fatalf("Send = %d, want SendNoListener", code)
	}
	if exc := w.LastException(); exc != SentinelNoRecv {
		t.Errorf("LastException() = %q, want %q", exc, SentinelNoRecv)
	}
}

func TestWorker_SendRecv(t *testing.T) {
	var mu sync.Mutex
	var got []string
	var gotID int
	cfg := Config{Handler: HandlerFuncs{
		Async: func(id int, msg string) {
			mu.Lock()
			defer mu.Unlock()
			gotID = id
			got = append(got, msg)
		},
	}}
	w := newTestWorker(t, 7, cfg)

	code := w.LoadScript("main.js", `recv(function(msg) { send("pong:" + msg); });`)
	if code != ScriptOK {
		t.Fatalf("LoadScript = %d; exception: %s", code, w.LastException())
	}
	if code := w.Send("ping"); code != SendOK {
		t.Fatalf("Send = %d, want SendOK; exception: %s", code, w.LastException())
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "pong:ping" {
		t.Errorf("handler got %v, want [pong:ping]", got)
	}
	if gotID != 7 {
		t.Errorf("handler worker id = %d, want 7", gotID)
	}
}

func TestWorker_Send_CallbackThrew(t *testing.T) {
	w := newTestWorker(t, 1, Config{})
	code := w.LoadScript("main.js", `recv(function() { throw new Error("listener failed"); });`)
	if code != ScriptOK {
		t.Fatalf("LoadScript = %d", code)
	}
	if code := w.Send("x"); code != SendCallbackThrew {
		t.Fatalf("Send = %d, want SendCallbackThrew", code)
	}
	if exc := w.LastException(); !strings.Contains(exc, "listener failed") {
		t.Errorf("LastException() = %q, want the listener error", exc)
	}
}

func TestWorker_Send_CoercesNonString(t *testing.T) {
	var mu sync.Mutex
	var got []string
	cfg := Config{Handler: HandlerFuncs{
		Async: func(id int, msg string) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, msg)
		},
	}}
	w := newTestWorker(t, 1, cfg)

	code := w.LoadScript("main.js", `send(42); send({toString: function() { return "obj"; }});`)
	if code != ScriptOK {
		t.Fatalf("LoadScript = %d; exception: %s", code, w.LastException())
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || got[0] != "42" || got[1] != "obj" {
		t.Errorf("handler got %v, want [42 obj]", got)
	}
}

func TestWorker_SendSync_NoListener(t *testing.T) {
	w := newTestWorker(t, 1, Config{})
	if reply := w.SendSync("hello"); reply != SentinelNoRecvSync {
		t.Errorf("SendSync = %q, want %q", reply, SentinelNoRecvSync)
	}
	// The sentinel is the whole failure report; nothing is recorded.
	if exc := w.LastException(); exc != "" {
		t.Errorf("LastException() = %q, want empty", exc)
	}
}

func TestWorker_SendSync_Echo(t *testing.T) {
	w := newTestWorker(t, 1, Config{})
	code := w.LoadScript("main.js", `recvSync(function(msg) { return "echo:" + msg; });`)
	if code != ScriptOK {
		t.Fatalf("LoadScript = %d", code)
	}
	if reply := w.SendSync("hello"); reply != "echo:hello" {
		t.Errorf("SendSync = %q, want echo:hello", reply)
	}
}

func TestWorker_SendSync_EmptyReply(t *testing.T) {
	w := newTestWorker(t, 1, Config{})
	w.LoadScript("main.js", `recvSync(function(msg) { return ""; });`)
	if reply := w.SendSync("x"); reply != "" {
		t.Errorf("SendSync = %q, want empty reply", reply)
	}
}

func TestWorker_SendSync_NonString(t *testing.T) {
	w := newTestWorker(t, 1, Config{})
	w.LoadScript("main.js", `recvSync(function(msg) { return 42; });`)
	if reply := w.SendSync("x"); reply != SentinelNonString {
		t.Errorf("SendSync = %q, want %q", reply, SentinelNonString)
	}
	if exc := w.LastException(); exc != "" {
		t.Errorf("LastException() = %q, want empty for non-string reply", exc)
	}
}

func TestWorker_SendSync_ListenerThrows(t *testing.T) {
	w := newTestWorker(t, 1, Config{})
	w.LoadScript("main.js", `recvSync(function() { throw new Error("sync boom"); });`)
	if reply := w.SendSync("x"); reply != SentinelNonString {
		t.Errorf("SendSync = %q, want %q", reply, SentinelNonString)
	}
	// A throwing sync listener reports like a non-string reply and
	// leaves no pending exception.
	if exc := w.LastException(); exc != "" {
		t.Errorf("LastException() = %q, want empty", exc)
	}
}

func TestWorker_SendSync_HostRoundTrip(t *testing.T) {
	var mu sync.Mutex
	var gotMsg string
	var gotID int
	cfg := Config{Handler: HandlerFuncs{
		Sync: func(id int, msg string) string {
			mu.Lock()
			defer mu.Unlock()
			gotID = id
			gotMsg = msg
			return "answer"
		},
	}}
	w := newTestWorker(t, 3, cfg)

	code := w.LoadScript("main.js", `var r = sendSync("question");
recvSync(function() { return r; });`)
	if code != ScriptOK {
		t.Fatalf("LoadScript = %d; exception: %s", code, w.LastException())
	}
	if reply := w.SendSync("check"); reply != "answer" {
		t.Errorf("script saw sendSync reply %q, want answer", reply)
	}

	mu.Lock()
	defer mu.Unlock()
	if gotMsg != "question" || gotID != 3 {
		t.Errorf("handler got (%d, %q), want (3, question)", gotID, gotMsg)
	}
}

func TestWorker_SendSync_NilHandlerReply(t *testing.T) {
	w := newTestWorker(t, 1, Config{})
	code := w.LoadScript("main.js", `var r = sendSync("anyone?");
recvSync(function() { return typeof r + ":" + r; });`)
	if code != ScriptOK {
		t.Fatalf("LoadScript = %d; exception: %s", code, w.LastException())
	}
	if reply := w.SendSync("check"); reply != "string:" {
		t.Errorf("unhandled sendSync saw %q, want string:", reply)
	}
}

func TestWorker_Reentrancy(t *testing.T) {
	var w *Worker
	nestedCode := -1
	cfg := Config{Handler: HandlerFuncs{
		Sync: func(id int, msg string) string {
			if msg == "start" {
				nestedCode = w.Send("nested")
			}
			return "done"
		},
	}}
	w = newTestWorker(t, 1, cfg)

	code := w.LoadScript("main.js", `var got = [];
recv(function(m) { got.push(m); });
recvSync(function() { return got.join(","); });
sendSync("start");`)
	if code != ScriptOK {
		t.Fatalf("LoadScript = %d; exception: %s", code, w.LastException())
	}
	if nestedCode != SendOK {
		t.Errorf("nested Send = %d, want SendOK", nestedCode)
	}
	if reply := w.SendSync("check"); reply != "nested" {
		t.Errorf("listener saw %q, want nested", reply)
	}
}

func TestWorker_Print(t *testing.T) {
	var out bytes.Buffer
	w := newTestWorker(t, 1, Config{EnablePrint: true, Stdout: &out})

	code := w.LoadScript("main.js", `print("hello", "world", 42);`)
	if code != ScriptOK {
		t.Fatalf("LoadScript = %d; exception: %s", code, w.LastException())
	}
	if got := out.String(); got != "hello world 42\n" {
		t.Errorf("print wrote %q, want %q", got, "hello world 42\n")
	}
}

func TestWorker_PrintDisabled(t *testing.T) {
	w := newTestWorker(t, 1, Config{})
	w.LoadScript("main.js", `recvSync(function() { return typeof print; });`)
	if reply := w.SendSync("check"); reply != "undefined" {
		t.Errorf("typeof print = %q, want undefined", reply)
	}
}

func TestWorker_APIGlobals(t *testing.T) {
	w := newTestWorker(t, 1, Config{EnablePrint: true, Stdout: &bytes.Buffer{}})
	w.LoadScript("main.js", `recvSync(function() {
	return [typeof print, typeof recv, typeof send, typeof sendSync, typeof recvSync].join(",");
});`)
	want := "function,function,function,function,function"
	if reply := w.SendSync("check"); reply != want {
		t.Errorf("globals = %q, want %q", reply, want)
	}
}

func TestWorker_MessageRoundTripEscapes(t *testing.T) {
	w := newTestWorker(t, 1, Config{})
	w.LoadScript("main.js", `recvSync(function(m) { return m; });`)
	// Includes U+2028/U+2029 (illegal raw in a JS literal) and an
	// astral code point (needs a surrogate pair on the wire).
	msg := "a\"b\\c\nd☃ ${not a template} \u2028\u2029 \U000E0001end"
	if reply := w.SendSync(msg); reply != msg {
		t.Errorf("round trip = %q, want %q", reply, msg)
	}
}

func TestWorker_LoadModule(t *testing.T) {
	provider := NewStaticProvider()
	provider.Add("main.js", `import { greet } from "greet.js";
send(greet("module"));`)
	provider.Add("greet.js", `export function greet(n) { return "hello " + n; }`)

	var mu sync.Mutex
	var got []string
	cfg := Config{
		Provider: provider,
		Handler: HandlerFuncs{Async: func(id int, msg string) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, msg)
		}},
	}
	w := newTestWorker(t, 1, cfg)

	if code := w.LoadModule("main.js"); code != LoadOK {
		t.Fatalf("LoadModule = %d; exception: %s", code, w.LastException())
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "hello module" {
		t.Errorf("handler got %v, want [hello module]", got)
	}
}

func TestWorker_LoadModule_SharedDependency(t *testing.T) {
	provider := NewStaticProvider()
	provider.Add("main.js", `import { bump } from "counter.js";
import { read } from "reader.js";
bump();
recvSync(function() { return read(); });`)
	provider.Add("counter.js", `export var state = { n: 0 };
export function bump() { state.n++; }`)
	provider.Add("reader.js", `import { state } from "counter.js";
export function read() { return String(state.n); }`)

	w := newTestWorker(t, 1, Config{Provider: provider})
	if code := w.LoadModule("main.js"); code != LoadOK {
		t.Fatalf("LoadModule = %d; exception: %s", code, w.LastException())
	}
	// Both import paths observe the same module instance.
	if reply := w.SendSync("check"); reply != "1" {
		t.Errorf("shared state read %q, want 1", reply)
	}
}

func TestWorker_LoadModule_NoProvider(t *testing.T) {
	w := newTestWorker(t, 1, Config{})
	if code := w.LoadModule("main.js"); code != LoadCompileFailed {
		t.Fatalf("LoadModule = %d, want LoadCompileFailed", code)
	}
	if exc := w.LastException(); !strings.Contains(exc, "no source provider") {
		t.Errorf("LastException() = %q, want provider message", exc)
	}
}

func TestWorker_LoadModule_MissingImport(t *testing.T) {
	provider := NewStaticProvider()
	provider.Add("main.js", `import "gone.js";`)
	w := newTestWorker(t, 1, Config{Provider: provider})

	if code := w.LoadModule("main.js"); code != LoadCompileFailed {
		t.Fatalf("LoadModule = %d, want LoadCompileFailed", code)
	}
	if exc := w.LastException(); !strings.Contains(exc, `Cannot load module "gone.js"`) {
		t.Errorf("LastException() = %q, want missing-module message", exc)
	}
}

func TestWorker_LoadModule_CompileError(t *testing.T) {
	provider := NewStaticProvider()
	provider.Add("bad.js", `var (`)
	w := newTestWorker(t, 1, Config{Provider: provider})

	if code := w.LoadModule("bad.js"); code != LoadCompileFailed {
		t.Fatalf("LoadModule = %d, want LoadCompileFailed", code)
	}
	if exc := w.LastException(); !strings.Contains(exc, "bad.js:1") {
		t.Errorf("LastException() = %q, want a bad.js:1 position header", exc)
	}
}

func TestWorker_LoadModule_ThrowInModule(t *testing.T) {
	provider := NewStaticProvider()
	provider.Add("main.js", `import "dep.js";`)
	provider.Add("dep.js", `throw new Error("module boom");`)
	w := newTestWorker(t, 1, Config{Provider: provider})

	if code := w.LoadModule("main.js"); code != LoadEvaluateFailed {
		t.Fatalf("LoadModule = %d, want LoadEvaluateFailed", code)
	}
	if exc := w.LastException(); !strings.Contains(exc, "module boom") {
		t.Errorf("LastException() = %q, want the module error", exc)
	}
}

func TestWorker_LoadModule_ThrownSyntaxError(t *testing.T) {
	// Same stage rule as flat scripts: the graph linked and parsed, so
	// a thrown SyntaxError is an evaluate failure, not an instantiate
	// failure.
	provider := NewStaticProvider()
	provider.Add("main.js", `throw new SyntaxError("zap");`)
	w := newTestWorker(t, 1, Config{Provider: provider})

	if code := w.LoadModule("main.js"); code != LoadEvaluateFailed {
		t.Fatalf("LoadModule = %d, want LoadEvaluateFailed", code)
	}
	if exc := w.LastException(); !strings.Contains(exc, "zap") {
		t.Errorf("LastException() = %q, want it to mention zap", exc)
	}
}

func TestWorker_LoadModule_NoGlobalLeak(t *testing.T) {
	provider := NewStaticProvider()
	provider.Add("main.js", `recvSync(function() {
	return [typeof __wm_load, typeof __wm_defs, typeof __wm_cache, typeof module].join(",");
});`)
	w := newTestWorker(t, 1, Config{Provider: provider})

	if code := w.LoadModule("main.js"); code != LoadOK {
		t.Fatalf("LoadModule = %d; exception: %s", code, w.LastException())
	}
	want := "undefined,undefined,undefined,undefined"
	if reply := w.SendSync("check"); reply != want {
		t.Errorf("leaked names: %q, want %q", reply, want)
	}
}

func TestWorker_ConcurrentSends(t *testing.T) {
	w := newTestWorker(t, 1, Config{})
	code := w.LoadScript("main.js", `var n = 0;
recv(function() { n++; });
recvSync(function() { return String(n); });`)
	if code != ScriptOK {
		t.Fatalf("LoadScript = %d", code)
	}

	const goroutines = 8
	const rounds = 25

	var wg sync.WaitGroup
	var failures sync.Map
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(i int) {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				if code := w.Send("tick"); code != SendOK {
					failures.Store(i, code)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	failures.Range(func(k, v any) bool {
		t.Errorf("goroutine %v: Send = %v", k, v)
		return true
	})
	want := "200"
	if reply := w.SendSync("count"); reply != want {
		t.Errorf("listener ran %s times, want %s", reply, want)
	}
}

func TestWorker_ConcurrentDuplex(t *testing.T) {
	// Send and SendSync race from several goroutines while both
	// listeners call back out to the host, so traffic crosses in both
	// directions on every round.
	var asyncOut, syncOut atomic.Int64
	cfg := Config{Handler: HandlerFuncs{
		Async: func(id int, msg string) { asyncOut.Add(1) },
		Sync: func(id int, msg string) string {
			syncOut.Add(1)
			return "r:" + msg
		},
	}}
	w := newTestWorker(t, 1, cfg)

	code := w.LoadScript("main.js", `var n = 0;
recv(function(m) { n++; send("out:" + m); });
recvSync(function(m) {
	if (m === "tally") return String(n);
	return sendSync("q:" + m);
});`)
	if code != ScriptOK {
		t.Fatalf("LoadScript = %d; exception: %s", code, w.LastException())
	}

	const goroutines = 8
	const rounds = 24

	var wg sync.WaitGroup
	errs := make(chan error, goroutines)
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(i int) {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				msg := fmt.Sprintf("%d.%d", i, j)
				if j%2 == 0 {
					if code := w.Send(msg); code != SendOK {
						errs <- fmt.Errorf("goroutine %d: Send = %d; exception: %s", i, code, w.LastException())
						return
					}
					continue
				}
				if reply, want := w.SendSync(msg), "r:q:"+msg; reply != want {
					errs <- fmt.Errorf("goroutine %d: SendSync = %q, want %q", i, reply, want)
					return
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	const half = goroutines * rounds / 2
	if got := asyncOut.Load(); got != half {
		t.Errorf("async listener relayed %d messages, want %d", got, half)
	}
	if got := syncOut.Load(); got != half {
		t.Errorf("sync listener queried the host %d times, want %d", got, half)
	}
	if reply, want := w.SendSync("tally"), fmt.Sprint(half); reply != want {
		t.Errorf("async listener ran %s times, want %s", reply, want)
	}
}

func TestWorker_TerminateExecution(t *testing.T) {
	w := newTestWorker(t, 1, Config{})

	done := make(chan int, 1)
	go func() {
		done <- w.LoadScript("loop.js", `for (;;) {}`)
	}()

	time.Sleep(100 * time.Millisecond)
	w.TerminateExecution()

	select {
	case code := <-done:
		if code != ScriptRunFailed {
			t.Errorf("LoadScript = %d, want ScriptRunFailed after terminate", code)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("script did not stop after TerminateExecution")
	}
}

func TestWorker_TerminateDisposeRace(t *testing.T) {
	// Interrupts racing Dispose must either land on the live runtime or
	// turn into no-ops; none may reach the runtime after Close.
	for i := 0; i < 8; i++ {
		w, err := New(1, Config{})
		if err != nil {
			t.Fatalf("creating worker: %v", err)
		}
		w.LoadScript("main.js", `var x = 1;`)

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				w.TerminateExecution()
			}
		}()
		w.Dispose()
		wg.Wait()
		w.TerminateExecution()
	}
}

func TestWorker_ExecutionTimeout(t *testing.T) {
	w := newTestWorker(t, 1, Config{ExecutionTimeout: 200 * time.Millisecond})

	start := time.Now()
	code := w.LoadScript("loop.js", `for (;;) {}`)
	if code != ScriptRunFailed {
		t.Fatalf("LoadScript = %d, want ScriptRunFailed", code)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("watchdog took %v", elapsed)
	}
	if exc := w.LastException(); !strings.Contains(exc, "timed out") {
		t.Errorf("LastException() = %q, want timeout message", exc)
	}
}

func TestWorker_TimeoutDoesNotAffectFastScripts(t *testing.T) {
	w := newTestWorker(t, 1, Config{ExecutionTimeout: 5 * time.Second})
	for i := 0; i < 10; i++ {
		if code := w.LoadScript("ok.js", `var z = 1;`); code != ScriptOK {
			t.Fatalf("iteration %d: LoadScript = %d; exception: %s", i, code, w.LastException())
		}
	}
}

func TestWorker_DisposedOperations(t *testing.T) {
	w, err := New(1, Config{})
	if err != nil {
		t.Fatalf("creating worker: %v", err)
	}
	w.LoadScript("main.js", `throw new Error("before dispose");`)
	w.Dispose()

	if code := w.LoadScript("x.js", `1`); code != ScriptRunFailed {
		t.Errorf("LoadScript on disposed = %d, want ScriptRunFailed", code)
	}
	if code := w.LoadModule("x.js"); code != LoadEvaluateFailed {
		t.Errorf("LoadModule on disposed = %d, want LoadEvaluateFailed", code)
	}
	if code := w.Send("x"); code != SendCallbackThrew {
		t.Errorf("Send on disposed = %d, want SendCallbackThrew", code)
	}
	if reply := w.SendSync("x"); reply != SentinelDisposed {
		t.Errorf("SendSync on disposed = %q, want %q", reply, SentinelDisposed)
	}
	w.TerminateExecution()

	// The pending exception outlives the engine.
	if exc := w.LastException(); !strings.Contains(exc, "before dispose") {
		t.Errorf("LastException() = %q, want pre-dispose failure", exc)
	}
}

func TestWorker_MemoryLimit(t *testing.T) {
	w := newTestWorker(t, 1, Config{MemoryLimitMB: 8})
	code := w.LoadScript("hog.js", `var a = [];
for (;;) { a.push(new Array(65536).fill(1)); }`)
	if code == ScriptOK {
		t.Fatal("unbounded allocation succeeded under an 8 MB limit")
	}
	if w.LastException() == "" {
		t.Error("no pending exception after memory exhaustion")
	}
}

func TestWorker_ParallelWorkers(t *testing.T) {
	const workers = 8

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			w, err := New(i, Config{})
			if err != nil {
				errs <- err
				return
			}
			defer w.Dispose()
			w.LoadScript("main.js", `recvSync(function(m) { return m + "!"; });`)
			if reply := w.SendSync("w"); reply != "w!" {
				errs <- fmt.Errorf("worker %d: unexpected reply %q", i, reply)
				return
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
