package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mcpconform/fuzzer/pkg/fuzzer/logging"
	"github.com/mcpconform/fuzzer/pkg/fuzzer/model"
	"github.com/mcpconform/fuzzer/pkg/fuzzer/process"
)

// StdioConfig mirrors the teacher's StdioTransportConfig, adding the
// process-group supervision the fuzzer needs to recover a hung server
// (spec.md §4.4, §4.5).
type StdioConfig struct {
	Command    string
	Args       []string
	Env        []string
	WorkingDir string
	Logger     logging.Logger
}

// Stdio drives a server over newline-delimited JSON on stdin/stdout,
// grounded on the teacher's pkg/mcp/stdio_transport.go but restructured
// around a background pump goroutine and id-correlated waiters instead
// of one blocking Receive per caller.
type Stdio struct {
	cfg StdioConfig
	mgr *process.Manager

	mu        sync.Mutex
	connected bool
	handle    *process.Handle
	writer    *bufio.Writer

	corr *correlator
}

func NewStdio(cfg StdioConfig) *Stdio {
	cfg.Logger = logging.Or(cfg.Logger)
	return &Stdio{cfg: cfg, mgr: process.NewManager(cfg.Logger), corr: newCorrelator()}
}

func (t *Stdio) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.connected {
		t.mu.Unlock()
		return fmt.Errorf("transport: already connected")
	}
	t.mu.Unlock()

	var stdinW *bufio.Writer
	stdoutLines := make(chan []byte, 64)
	var closeOnce sync.Once

	h, err := t.mgr.Start(ctx, process.Config{
		Name:    "mcp-server",
		Command: t.cfg.Command,
		Args:    t.cfg.Args,
		Dir:     t.cfg.WorkingDir,
		Env:     t.cfg.Env,
		OnStdout: func(line []byte) {
			select {
			case stdoutLines <- append([]byte(nil), line...):
			default:
			}
		},
		OnStdoutClosed: func() {
			closeOnce.Do(func() { close(stdoutLines) })
		},
		OnStderr: func(line []byte) {
			t.cfg.Logger.Logf("mcp stderr: %s", string(line))
		},
	})
	if err != nil {
		return model.NewTransportError(model.TransportConnect, "spawn failed", err)
	}

	stdin, err := t.mgr.Stdin(h.PID)
	if err != nil {
		return model.NewTransportError(model.TransportConnect, "no stdin pipe", err)
	}
	stdinW = bufio.NewWriter(stdin)

	t.mu.Lock()
	t.handle = h
	t.writer = stdinW
	t.connected = true
	t.mu.Unlock()

	go t.pump(stdoutLines)
	return nil
}

// pump decodes each newline-delimited message and routes it through the
// correlator; it also calls Touch so the watchdog sees activity (spec.md
// §4.5: "last_activity is updated by the transport").
func (t *Stdio) pump(lines <-chan []byte) {
	for line := range lines {
		t.handle.Touch()
		if len(line) == 0 {
			continue
		}
		msg, ok := decode(line)
		if !ok {
			continue
		}
		t.corr.dispatch(msg)
	}
}

func decode(line []byte) (decodedMessage, bool) {
	var env model.Envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return decodedMessage{}, false
	}
	if env.IsRequestEnvelope() {
		var req model.Request
		if err := json.Unmarshal(line, &req); err != nil {
			return decodedMessage{}, false
		}
		return decodedMessage{isRequest: true, request: req}, true
	}
	var resp model.Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return decodedMessage{}, false
	}
	return decodedMessage{response: resp}, true
}

func (t *Stdio) Close() error {
	t.mu.Lock()
	if !t.connected {
		t.mu.Unlock()
		return nil
	}
	t.connected = false
	h := t.handle
	t.mu.Unlock()

	t.corr.drain(model.NewTransportError(model.TransportDisconnected, "transport closed", nil))
	if h != nil {
		return t.mgr.Stop(h.PID, 0)
	}
	return nil
}

func (t *Stdio) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *Stdio) writeLine(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return model.NewTransportError(model.TransportDisconnected, "not connected", nil)
	}
	if t.cfg.Logger != nil {
		t.cfg.Logger.Logf("mcp send: %s", string(data))
	}
	if _, err := t.writer.Write(data); err != nil {
		return model.NewTransportError(model.TransportRetryable, "write failed", err)
	}
	if err := t.writer.WriteByte('\n'); err != nil {
		return model.NewTransportError(model.TransportRetryable, "write newline failed", err)
	}
	return t.writer.Flush()
}

func (t *Stdio) SendRequest(ctx context.Context, req model.Request) (model.Response, error) {
	if req.ID == nil {
		return model.Response{}, model.NewInternalError("SendRequest requires a non-nil ID", nil)
	}
	p := t.corr.register(*req.ID)
	data, err := json.Marshal(req)
	if err != nil {
		t.corr.forget(*req.ID)
		return model.Response{}, model.NewTransportError(model.TransportEncoding, "marshal failed", err)
	}
	if err := t.writeLine(data); err != nil {
		t.corr.forget(*req.ID)
		return model.Response{}, err
	}

	select {
	case resp := <-p.done:
		return resp, nil
	case <-ctx.Done():
		t.corr.forget(*req.ID)
		return model.Response{}, model.NewTransportError(model.TransportCancelled, "context done", ctx.Err())
	}
}

func (t *Stdio) SendNotification(ctx context.Context, req model.Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return model.NewTransportError(model.TransportEncoding, "marshal failed", err)
	}
	return t.writeLine(data)
}

func (t *Stdio) SendRaw(ctx context.Context, raw []byte) error {
	return t.writeLine(raw)
}

func (t *Stdio) SendBatch(ctx context.Context, batch model.BatchRequest) (model.BatchResponse, error) {
	waiters := make([]*pending, 0, len(batch))
	ids := make([]model.RequestID, 0, len(batch))
	for _, req := range batch {
		if req.ID != nil {
			waiters = append(waiters, t.corr.register(*req.ID))
			ids = append(ids, *req.ID)
		}
	}

	data, err := json.Marshal(batch)
	if err != nil {
		for _, id := range ids {
			t.corr.forget(id)
		}
		return nil, model.NewTransportError(model.TransportEncoding, "marshal batch failed", err)
	}
	if err := t.writeLine(data); err != nil {
		for _, id := range ids {
			t.corr.forget(id)
		}
		return nil, err
	}

	resp := make(model.BatchResponse, 0, len(waiters))
	for i, p := range waiters {
		select {
		case r := <-p.done:
			resp = append(resp, r)
		case <-ctx.Done():
			t.corr.forget(ids[i])
			return resp, model.NewTransportError(model.TransportCancelled, "context done", ctx.Err())
		}
	}
	return resp, nil
}

func (t *Stdio) Notifications() <-chan model.Request { return t.corr.notify }
