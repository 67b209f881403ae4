package worker

import (
	"errors"

	"github.com/isobridge/worker/internal/loader"
)

// Result codes for LoadModule.
const (
	LoadOK                = loader.OK
	LoadCompileFailed     = loader.CompileFailed
	LoadInstantiateFailed = loader.InstantiateFailed
	LoadEvaluateFailed    = loader.EvaluateFailed
)

// Result codes for LoadScript.
const (
	ScriptOK            = 0
	ScriptCompileFailed = 1
	ScriptRunFailed     = 2
)

// Result codes for Send.
const (
	SendOK            = 0
	SendNoListener    = 1
	SendCallbackThrew = 2
)

// Sentinel strings for the two listener channels. Send stores
// SentinelNoRecv as the pending exception when no listener is
// registered; SendSync never fails hard, so its error outcomes are
// ordinary reply strings.
const (
	SentinelNoRecv     = "worker: callback not registered with recv"
	SentinelNoRecvSync = "worker: callback not registered with recvSync"
	SentinelNonString  = "worker: non-string return value"
	SentinelDisposed   = "worker: worker is disposed"
)

var (
	// ErrPoolClosed is returned by Pool.Get after Dispose.
	ErrPoolClosed = errors.New("worker: pool is closed")
	// ErrDuplicateID is returned by Registry.Register for an id that is
	// already taken.
	ErrDuplicateID = errors.New("worker: id already registered")
	// ErrNotFound is returned by providers for URLs they cannot serve.
	ErrNotFound = errors.New("worker: module source not found")
)
