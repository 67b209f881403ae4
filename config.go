package worker

import (
	"io"
	"os"
	"time"
)

// Config holds per-worker settings. The zero value is usable: no
// print global, no memory limit, no watchdog, output to stdout.
type Config struct {
	// EnablePrint installs the print global into the script
	// environment.
	EnablePrint bool

	// MemoryLimitMB caps the engine heap. 0 leaves the engine default.
	MemoryLimitMB int

	// ExecutionTimeout bounds each engine entry (load, send); when it
	// elapses the engine is interrupted and the operation reports a
	// timeout failure. 0 disables the watchdog.
	ExecutionTimeout time.Duration

	// Stdout receives print output. Defaults to os.Stdout.
	Stdout io.Writer

	// Provider supplies module sources for LoadModule.
	Provider SourceProvider

	// Handler receives the script's outbound send/sendSync messages.
	Handler MessageHandler
}

func (c Config) withDefaults() Config {
	if c.Stdout == nil {
		c.Stdout = os.Stdout
	}
	return c
}
