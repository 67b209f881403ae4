//go:build v8

package worker

import (
	"github.com/isobridge/worker/internal/core"
	"github.com/isobridge/worker/internal/v8engine"
)

func newRuntime(cfg core.RuntimeConfig) (core.JSRuntime, error) {
	return v8engine.New(cfg)
}

func engineVersion() string {
	return core.EngineVersion(v8engine.EngineName, v8engine.EngineModule)
}
