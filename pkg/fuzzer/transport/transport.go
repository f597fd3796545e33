// Package transport implements the Transport Layer of spec.md §4.4: one
// uniform interface over stdio, HTTP and Streamable-HTTP wire shapes (SSE
// endpoints are driven through Streamable). Stdio and Streamable correlate
// responses to outstanding requests by JSON-RPC id; HTTP returns the reply
// read from each POST's own response body and does not compare its id with
// the request's.
// Grounded on the teacher's pkg/mcp Transport interface and its http/stdio
// implementations, generalized to async id-correlated dispatch instead of
// one blocking Send/Receive pair per call.
package transport

import (
	"context"
	"sync"

	"github.com/mcpconform/fuzzer/pkg/fuzzer/model"
)

// Transport is implemented by every wire shape the fuzzer can drive a
// server over (spec.md §4.4).
type Transport interface {
	Connect(ctx context.Context) error
	Close() error
	IsConnected() bool

	// SendRequest writes req and blocks until its correlated response
	// arrives, ctx is done, or the transport disconnects.
	SendRequest(ctx context.Context, req model.Request) (model.Response, error)

	// SendNotification writes req (which must carry no ID) and returns
	// once the write completes; there is no response to wait for.
	SendNotification(ctx context.Context, req model.Request) error

	// SendBatch writes every item in one array and collects responses
	// correlated by id, tolerating server reordering (spec.md §4.4).
	SendBatch(ctx context.Context, batch model.BatchRequest) (model.BatchResponse, error)

	// SendRaw writes an already-encoded payload verbatim, for generating
	// deliberately malformed envelopes (spec.md §4.2 aggressive phase).
	SendRaw(ctx context.Context, raw []byte) error

	// Notifications returns the side channel of server-initiated
	// messages that never correlate to an outstanding request (spec.md
	// §4.4: "unsolicited notifications are queued on a side channel").
	Notifications() <-chan model.Request
}

// pending is one outstanding request awaiting its correlated response.
type pending struct {
	done chan model.Response
}

// correlator is the id -> pending map used by the Stdio and Streamable
// transports, guarded by a short critical section per spec.md's
// "mutex-guarded short critical sections" idiom.
type correlator struct {
	mu      sync.Mutex
	waiting map[any]*pending
	notify  chan model.Request
}

func newCorrelator() *correlator {
	return &correlator{waiting: map[any]*pending{}, notify: make(chan model.Request, 64)}
}

func (c *correlator) register(id model.RequestID) *pending {
	p := &pending{done: make(chan model.Response, 1)}
	c.mu.Lock()
	c.waiting[id.Key()] = p
	c.mu.Unlock()
	return p
}

func (c *correlator) forget(id model.RequestID) {
	c.mu.Lock()
	delete(c.waiting, id.Key())
	c.mu.Unlock()
}

// dispatch routes one decoded message: a response goes to its matching
// pending waiter (if any), a request/notification goes to the side
// channel.
func (c *correlator) dispatch(msg decodedMessage) {
	if msg.isRequest {
		select {
		case c.notify <- msg.request:
		default:
		}
		return
	}

	c.mu.Lock()
	p, ok := c.waiting[msg.response.ID.Key()]
	if ok {
		delete(c.waiting, msg.response.ID.Key())
	}
	c.mu.Unlock()

	if ok {
		p.done <- msg.response
	}
	// A response with no matching waiter is dropped; it may be a late
	// arrival for a request whose caller already gave up.
}

// drain fails every outstanding waiter with a disconnected response,
// called on Close so no goroutine blocks forever (spec.md §4.4).
func (c *correlator) drain(cause *model.TransportError) {
	c.mu.Lock()
	waiting := c.waiting
	c.waiting = map[any]*pending{}
	c.mu.Unlock()

	for _, p := range waiting {
		p.done <- model.Response{Error: &model.RPCError{Code: -32000, Message: cause.Error()}}
	}
}

type decodedMessage struct {
	isRequest bool
	request   model.Request
	response  model.Response
}
