//go:build !v8

package worker

import (
	"github.com/isobridge/worker/internal/core"
	"github.com/isobridge/worker/internal/quickjs"
)

func newRuntime(cfg core.RuntimeConfig) (core.JSRuntime, error) {
	return quickjs.New(cfg)
}

func engineVersion() string {
	return core.EngineVersion(quickjs.EngineName, quickjs.EngineModule)
}
