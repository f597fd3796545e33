package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/mcpconform/fuzzer/pkg/fuzzer/logging"
	"github.com/mcpconform/fuzzer/pkg/fuzzer/model"
)

// HTTPConfig mirrors the teacher's HTTPTransportConfig (spec.md §4.4 HTTP
// transport: one POST per request, response delivered synchronously in
// the reply body, no server push).
type HTTPConfig struct {
	URL       string
	TimeoutMS int
	Headers   map[string]string
	Logger    logging.Logger
	// CheckRedirect, if set, is installed on the underlying http.Client
	// (spec.md §4.6 network policy: redirects are re-evaluated against
	// the same allow/deny rules as the original destination).
	CheckRedirect func(req *http.Request, via []*http.Request) error
}

// HTTP implements Transport over plain request/response HTTP, grounded on
// the teacher's pkg/mcp/http_transport.go. Because the body round-trips
// synchronously there is no real id-correlation to do: the notify
// channel exists only to satisfy the Transport interface uniformly.
type HTTP struct {
	cfg    HTTPConfig
	client *http.Client

	mu        sync.Mutex
	connected bool
	notify    chan model.Request
}

func NewHTTP(cfg HTTPConfig) *HTTP {
	cfg.Logger = logging.Or(cfg.Logger)
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTP{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout, CheckRedirect: cfg.CheckRedirect},
		notify: make(chan model.Request),
	}
}

func (t *HTTP) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.connected {
		return fmt.Errorf("transport: already connected")
	}
	t.connected = true
	return nil
}

func (t *HTTP) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = false
	return nil
}

func (t *HTTP) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *HTTP) post(ctx context.Context, body []byte) ([]byte, error) {
	t.mu.Lock()
	connected := t.connected
	t.mu.Unlock()
	if !connected {
		return nil, model.NewTransportError(model.TransportDisconnected, "not connected", nil)
	}

	if t.cfg.Logger != nil {
		t.cfg.Logger.Logf("mcp http send: %s", string(body))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, model.NewTransportError(model.TransportEncoding, "build request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range t.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, model.NewTransportError(model.TransportRetryable, "request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, model.NewTransportError(model.TransportRetryable, "read response failed", err)
	}

	if t.cfg.Logger != nil {
		t.cfg.Logger.Logf("mcp http receive: %s", string(respBody))
	}

	if resp.StatusCode != http.StatusOK {
		return respBody, model.NewTransportError(model.TransportRetryable,
			fmt.Sprintf("http status %d", resp.StatusCode), nil)
	}
	return respBody, nil
}

func (t *HTTP) SendRequest(ctx context.Context, req model.Request) (model.Response, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return model.Response{}, model.NewTransportError(model.TransportEncoding, "marshal failed", err)
	}
	body, err := t.post(ctx, data)
	if err != nil {
		return model.Response{}, err
	}
	var resp model.Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return model.Response{}, model.NewTransportError(model.TransportEncoding, "unmarshal response failed", err)
	}
	return resp, nil
}

func (t *HTTP) SendNotification(ctx context.Context, req model.Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return model.NewTransportError(model.TransportEncoding, "marshal failed", err)
	}
	_, err = t.post(ctx, data)
	return err
}

func (t *HTTP) SendRaw(ctx context.Context, raw []byte) error {
	_, err := t.post(ctx, raw)
	return err
}

func (t *HTTP) SendBatch(ctx context.Context, batch model.BatchRequest) (model.BatchResponse, error) {
	data, err := json.Marshal(batch)
	if err != nil {
		return nil, model.NewTransportError(model.TransportEncoding, "marshal batch failed", err)
	}
	body, err := t.post(ctx, data)
	if err != nil {
		return nil, err
	}
	var resp model.BatchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, model.NewTransportError(model.TransportEncoding, "unmarshal batch response failed", err)
	}
	return resp, nil
}

func (t *HTTP) Notifications() <-chan model.Request { return t.notify }
