// Package worker runs isolated JavaScript execution environments and
// bridges messages between them and the host process. Each Worker owns
// one engine instance (QuickJS by default, V8 with the v8 build tag)
// exposing exactly five globals to script code: print (optional),
// recv, send, sendSync, recvSync. Hosts load flat scripts or module
// graphs into a worker and exchange strings over the send/recv and
// sendSync/recvSync channels; failures surface as result codes plus a
// formatted pending exception.
package worker

import (
	"sync"

	"github.com/isobridge/worker/internal/core"
)

var engineOnce sync.Once

// Init forces the engine's process-wide lazy initialization (platform
// and threading setup) by constructing and releasing one runtime. New
// calls it automatically; hosts may call it earlier to front-load the
// cost. Repeated calls are no-ops.
func Init() {
	engineOnce.Do(func() {
		if rt, err := newRuntime(core.RuntimeConfig{}); err == nil {
			rt.Close()
		}
	})
}

// Version reports the backing script engine as "name/version".
func Version() string {
	return engineVersion()
}
