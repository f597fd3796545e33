package model

import "encoding/json"

// wireRequest is the literal JSON-RPC 2.0 request envelope (spec.md §3).
type wireRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *RequestID      `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

func (r Request) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireRequest{JSONRPC: "2.0", ID: r.ID, Method: r.Method, Params: r.Params})
}

func (r *Request) UnmarshalJSON(data []byte) error {
	var w wireRequest
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	r.ID = w.ID
	r.Method = w.Method
	r.Params = w.Params
	return nil
}

// IsNotification reports whether this request carries no id (spec.md §3:
// "a Request with no ID is a notification").
func (r Request) IsNotification() bool { return r.ID == nil }

type wireResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

func (r Response) MarshalJSON() ([]byte, error) {
	idBytes, err := r.ID.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireResponse{JSONRPC: "2.0", ID: idBytes, Result: r.Result, Error: r.Error})
}

func (r *Response) UnmarshalJSON(data []byte) error {
	var w wireResponse
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	var id RequestID
	if len(w.ID) > 0 {
		if err := (&id).UnmarshalJSON(w.ID); err != nil {
			return err
		}
	} else {
		id = NullID()
	}
	r.ID = id
	r.Result = w.Result
	r.Error = w.Error
	return nil
}

// Envelope is the minimal shape needed to tell a request from a response
// (and a single message from a batch) before committing to a concrete
// type (spec.md §4.1 "message classification").
type Envelope struct {
	Method *string         `json:"method"`
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  json.RawMessage `json:"error"`
}

// IsBatch reports whether raw is a JSON array at the top level.
func IsBatch(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '[':
			return true
		default:
			return false
		}
	}
	return false
}

// IsRequestEnvelope reports whether raw looks like a request/notification
// (carries a method) rather than a response.
func (e Envelope) IsRequestEnvelope() bool { return e.Method != nil }
