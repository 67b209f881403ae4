package worker

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"

	"github.com/coder/websocket"
	"golang.org/x/net/netutil"
)

const defaultMaxMessageBytes = 1 << 20

// bridgeRequest is one remote operation. Over TCP the worker_id picks
// the target out of the bridge's registry; over WebSocket the
// connection is already bound to a worker and the field is ignored.
type bridgeRequest struct {
	Op       string `json:"op"`
	Msg      string `json:"msg,omitempty"`
	WorkerID int    `json:"worker_id,omitempty"`
}

type bridgeResponse struct {
	Code      *int    `json:"code,omitempty"`
	Reply     *string `json:"reply,omitempty"`
	Exception *string `json:"exception,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// Bridge exposes registered workers to remote peers speaking a
// JSON-per-line protocol: {"op":"send","msg":...,"worker_id":N} and
// friends, one object per line, one response object per request.
type Bridge struct {
	Registry *Registry

	// MaxConns caps concurrent TCP connections. Zero means no cap.
	MaxConns int

	// MaxMessageBytes caps a single request line or frame.
	MaxMessageBytes int64
}

// Serve accepts connections from lis until it closes, running each
// connection on its own goroutine. The per-connection protocol errors
// are answered in-band; Serve only returns on accept failure.
func (b *Bridge) Serve(lis net.Listener) error {
	if b.MaxConns > 0 {
		lis = netutil.LimitListener(lis, b.MaxConns)
	}
	for {
		conn, err := lis.Accept()
		if err != nil {
			return err
		}
		go b.serveConn(conn)
	}
}

func (b *Bridge) serveConn(conn net.Conn) {
	defer conn.Close()

	max := b.MaxMessageBytes
	if max <= 0 {
		max = defaultMaxMessageBytes
	}
	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 0, 64*1024), int(max))

	enc := json.NewEncoder(conn)
	for sc.Scan() {
		line := sc.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var resp bridgeResponse
		var req bridgeRequest
		if err := json.Unmarshal(line, &req); err != nil {
			resp = bridgeResponse{Error: fmt.Sprintf("bad request: %v", err)}
		} else if w, ok := b.Registry.Lookup(req.WorkerID); !ok {
			resp = bridgeResponse{Error: fmt.Sprintf("unknown worker %d", req.WorkerID)}
		} else {
			resp = handleOp(w, req)
		}
		if err := enc.Encode(&resp); err != nil {
			log.Printf("worker: bridge write: %v", err)
			return
		}
	}
	if err := sc.Err(); err != nil {
		log.Printf("worker: bridge read: %v", err)
	}
}

// BridgeWebSocket pumps bridge requests from an already-upgraded
// WebSocket connection into w until the peer closes or ctx ends. The
// caller owns the upgrade; one connection drives one worker.
func BridgeWebSocket(ctx context.Context, conn *websocket.Conn, w *Worker) error {
	conn.SetReadLimit(defaultMaxMessageBytes)
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			conn.Close(websocket.StatusUnsupportedData, "text frames only")
			return fmt.Errorf("worker: bridge: non-text frame")
		}
		var req bridgeRequest
		if err := json.Unmarshal(data, &req); err != nil {
			conn.Close(websocket.StatusProtocolError, "bad request")
			return fmt.Errorf("worker: bridge: %w", err)
		}
		resp := handleOp(w, req)
		buf, err := json.Marshal(&resp)
		if err != nil {
			return err
		}
		if err := conn.Write(ctx, websocket.MessageText, buf); err != nil {
			return err
		}
	}
}

func handleOp(w *Worker, req bridgeRequest) bridgeResponse {
	switch req.Op {
	case "send":
		code := w.Send(req.Msg)
		return bridgeResponse{Code: &code}
	case "sendSync":
		reply := w.SendSync(req.Msg)
		return bridgeResponse{Reply: &reply}
	case "lastException":
		exc := w.LastException()
		return bridgeResponse{Exception: &exc}
	default:
		return bridgeResponse{Error: fmt.Sprintf("unknown op %q", req.Op)}
	}
}
