package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/mcpconform/fuzzer/pkg/fuzzer/logging"
	"github.com/mcpconform/fuzzer/pkg/fuzzer/model"
)

// StreamableConfig configures the SSE-demuxed HTTP transport of spec.md
// §4.4 ("Streamable-HTTP: like HTTP but the body is a demuxed stream of
// JSON fragments, heartbeats ignored, unsolicited notifications routed to
// a side channel").
type StreamableConfig struct {
	URL     string
	Headers map[string]string
	Logger  logging.Logger
	// CheckRedirect, if set, is installed on the underlying http.Client
	// (spec.md §4.6 network policy: redirects are re-evaluated against
	// the same allow/deny rules as the original destination).
	CheckRedirect func(req *http.Request, via []*http.Request) error
}

// Streamable POSTs a request and demuxes the chunked `data: ...` response
// body as a sequence of JSON-RPC messages, correlating each by id through
// the shared correlator (spec.md §4.4).
type Streamable struct {
	cfg    StreamableConfig
	client *http.Client
	corr   *correlator

	mu        sync.Mutex
	connected bool
}

func NewStreamable(cfg StreamableConfig) *Streamable {
	cfg.Logger = logging.Or(cfg.Logger)
	return &Streamable{cfg: cfg, client: &http.Client{CheckRedirect: cfg.CheckRedirect}, corr: newCorrelator()}
}

func (t *Streamable) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.connected {
		return fmt.Errorf("transport: already connected")
	}
	t.connected = true
	return nil
}

func (t *Streamable) Close() error {
	t.mu.Lock()
	t.connected = false
	t.mu.Unlock()
	t.corr.drain(model.NewTransportError(model.TransportDisconnected, "transport closed", nil))
	return nil
}

func (t *Streamable) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// postAndPump sends body and demuxes every "data: " line of the response
// as it arrives, dispatching each through the correlator. It returns once
// the body is exhausted.
func (t *Streamable) postAndPump(ctx context.Context, body []byte) error {
	t.mu.Lock()
	connected := t.connected
	t.mu.Unlock()
	if !connected {
		return model.NewTransportError(model.TransportDisconnected, "not connected", nil)
	}

	if t.cfg.Logger != nil {
		t.cfg.Logger.Logf("mcp streamable send: %s", string(body))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return model.NewTransportError(model.TransportEncoding, "build request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	for k, v := range t.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return model.NewTransportError(model.TransportRetryable, "request failed", err)
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, ":") {
			continue // blank line / comment heartbeat, ignored
		}
		payload, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		payload = strings.TrimSpace(payload)
		if payload == "" {
			continue
		}
		if t.cfg.Logger != nil {
			t.cfg.Logger.Logf("mcp streamable event: %s", payload)
		}
		msg, ok := decode([]byte(payload))
		if !ok {
			continue
		}
		t.corr.dispatch(msg)
	}
	return scanner.Err()
}

func (t *Streamable) SendRequest(ctx context.Context, req model.Request) (model.Response, error) {
	if req.ID == nil {
		return model.Response{}, model.NewInternalError("SendRequest requires a non-nil ID", nil)
	}
	p := t.corr.register(*req.ID)
	data, err := json.Marshal(req)
	if err != nil {
		t.corr.forget(*req.ID)
		return model.Response{}, model.NewTransportError(model.TransportEncoding, "marshal failed", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- t.postAndPump(ctx, data) }()

	select {
	case resp := <-p.done:
		return resp, nil
	case err := <-errCh:
		// The stream may have delivered the response just before ending.
		select {
		case resp := <-p.done:
			return resp, nil
		default:
		}
		t.corr.forget(*req.ID)
		if err != nil {
			return model.Response{}, err
		}
		return model.Response{}, model.NewTransportError(model.TransportDisconnected, "stream ended with no matching response", nil)
	case <-ctx.Done():
		t.corr.forget(*req.ID)
		return model.Response{}, model.NewTransportError(model.TransportCancelled, "context done", ctx.Err())
	}
}

func (t *Streamable) SendNotification(ctx context.Context, req model.Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return model.NewTransportError(model.TransportEncoding, "marshal failed", err)
	}
	return t.postAndPump(ctx, data)
}

func (t *Streamable) SendRaw(ctx context.Context, raw []byte) error {
	return t.postAndPump(ctx, raw)
}

func (t *Streamable) SendBatch(ctx context.Context, batch model.BatchRequest) (model.BatchResponse, error) {
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

	errCh := make(chan error, 1)
	go func() { errCh <- t.postAndPump(ctx, data) }()

	resp := make(model.BatchResponse, 0, len(waiters))
	remaining := waiters
	for len(remaining) > 0 {
		select {
		case r := <-remaining[0].done:
			resp = append(resp, r)
			remaining = remaining[1:]
		case err := <-errCh:
			// Collect responses the stream delivered before it ended.
			for _, p := range remaining {
				select {
				case r := <-p.done:
					resp = append(resp, r)
				default:
				}
			}
			if err != nil {
				return resp, err
			}
			return resp, nil
		case <-ctx.Done():
			for _, id := range ids {
				t.corr.forget(id)
			}
			return resp, model.NewTransportError(model.TransportCancelled, "context done", ctx.Err())
		}
	}
	return resp, nil
}

func (t *Streamable) Notifications() <-chan model.Request { return t.corr.notify }
