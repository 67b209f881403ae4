package worker

// SourceProvider supplies module source text to the Module Loader,
// keyed by worker id and resolved URL. Import specifiers are passed
// through verbatim as URLs. A provider must answer deterministically
// for a given (id, url) within one load.
type SourceProvider interface {
	GetModuleSource(workerID int, url string) (string, error)
}

// ProviderFunc adapts a function to SourceProvider.
type ProviderFunc func(workerID int, url string) (string, error)

func (f ProviderFunc) GetModuleSource(workerID int, url string) (string, error) {
	return f(workerID, url)
}

// MessageHandler receives a worker's outbound messages. OnAsyncMessage
// is invoked when script calls send. OnSyncMessage is invoked when
// script calls sendSync; the script blocks until it returns, and its
// return value becomes sendSync's result.
type MessageHandler interface {
	OnAsyncMessage(workerID int, msg string)
	OnSyncMessage(workerID int, msg string) string
}

// HandlerFuncs adapts plain functions to MessageHandler. A nil Async
// drops messages; a nil Sync replies with "".
type HandlerFuncs struct {
	Async func(workerID int, msg string)
	Sync  func(workerID int, msg string) string
}

func (h HandlerFuncs) OnAsyncMessage(workerID int, msg string) {
	if h.Async != nil {
		h.Async(workerID, msg)
	}
}

func (h HandlerFuncs) OnSyncMessage(workerID int, msg string) string {
	if h.Sync == nil {
		return ""
	}
	return h.Sync(workerID, msg)
}
