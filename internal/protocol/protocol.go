// Package protocol holds the wire-level value types for konsol: the
// JSON-RPC-shaped envelope, the closed set of method names, the closed
// error-kind enumeration, and the per-method parameter/result shapes.
// Handlers and the session store operate exclusively on these
// snake_case-tagged Go types; the camelCase wire convention is applied
// only at the framing boundary (see casing.go).
package protocol

import (
	"encoding/json"
	"fmt"
)

// Version is the fixed envelope version field.
const Version = "2.0"

// ID is a request/response correlation identifier: string, integer, or
// absent. Its zero value represents "absent" (a notification). The
// numeric-vs-string distinction is preserved across the wire so a
// response echoes the exact type the client sent.
type ID struct {
	set      bool
	isString bool
	num      int64
	str      string
}

// NewIntID builds an integer correlation id.
func NewIntID(n int64) ID { return ID{set: true, num: n} }

// NewStringID builds a string correlation id.
func NewStringID(s string) ID { return ID{set: true, isString: true, str: s} }

// IsAbsent reports whether no correlation id was present (a notification).
func (id ID) IsAbsent() bool { return !id.set }

func (id ID) MarshalJSON() ([]byte, error) {
	if !id.set {
		return []byte("null"), nil
	}
	if id.isString {
		return json.Marshal(id.str)
	}
	return json.Marshal(id.num)
}

func (id *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ID{}
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*id = ID{set: true, num: n}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("protocol: id must be string, number or null: %w", err)
	}
	*id = ID{set: true, isString: true, str: s}
	return nil
}

// Method is one of the closed set of recognized method names.
type Method string

// The closed method-name enumeration from spec.md §4.3/§6. Adding a
// member is a protocol change.
const (
	MethodInitialize     Method = "initialize"
	MethodShutdown       Method = "shutdown"
	MethodExit           Method = "exit"
	MethodCancelRequest  Method = "$/cancelRequest"
	MethodSessionCreate  Method = "konsol/session.create"
	MethodEval           Method = "konsol/eval"
	MethodInterrupt      Method = "konsol/interrupt"
	MethodNotifyStdout   Method = "konsol/stdout"
	MethodNotifyStderr   Method = "konsol/stderr"
	MethodNotifyStatus   Method = "konsol/status"
)

// notificationMethods is the subset of the method enumeration the
// classifier labels as notifications even when (hypothetically) an id
// were attached: exit and the three server->client push methods. Every
// other recognized name is a request method.
var notificationMethods = map[Method]bool{
	MethodExit:         true,
	MethodNotifyStdout: true,
	MethodNotifyStderr: true,
	MethodNotifyStatus: true,
}

// IsKnownMethod reports whether m is in the closed method set.
func IsKnownMethod(m Method) bool {
	switch m {
	case MethodInitialize, MethodShutdown, MethodExit, MethodCancelRequest,
		MethodSessionCreate, MethodEval, MethodInterrupt,
		MethodNotifyStdout, MethodNotifyStderr, MethodNotifyStatus:
		return true
	default:
		return false
	}
}

// IsNotificationMethod reports whether m is classified as a notification
// method regardless of whether an id is present on the envelope.
func IsNotificationMethod(m Method) bool {
	return notificationMethods[m]
}

// Envelope is the raw, partially-decoded shape of any incoming message:
// enough to classify it (request vs. notification) and to dispatch on
// method, before the parameter payload is decoded into its typed shape.
type Envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      ID              `json:"id"`
	Method  Method          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether this envelope, as received, carried no
// correlation id. Combined with IsNotificationMethod, this is how the
// dispatcher tells requests from notifications (spec.md §3).
func (e Envelope) IsNotification() bool {
	return e.ID.IsAbsent()
}

// Response is the outgoing shape for a completed request: exactly one of
// Result or Error is populated. A successful response with nothing to
// return (shutdown, $/cancelRequest) still carries a present
// "result":null on the wire - spec.md §6/§8 name this explicitly - so
// Result cannot use the ordinary json "omitempty" tag, which would drop
// the key entirely for a nil value. MarshalJSON instead omits "result"
// only when this is an error response, matching every error example in
// spec.md (no error response ever carries a result key).
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      ID     `json:"id"`
	Result  any    `json:"-"`
	Error   *Error `json:"error,omitempty"`
}

type responseWire struct {
	JSONRPC string `json:"jsonrpc"`
	ID      ID     `json:"id"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

func (r Response) MarshalJSON() ([]byte, error) {
	w := responseWire{JSONRPC: r.JSONRPC, ID: r.ID, Error: r.Error}
	if r.Error == nil {
		w.Result = presentNull{r.Result}
	}
	return json.Marshal(w)
}

// UnmarshalJSON is MarshalJSON's counterpart, needed only because Result
// carries "json:\"-\"" to keep encoding/json's ordinary struct tags from
// governing both directions; decoding is otherwise a plain field copy.
func (r *Response) UnmarshalJSON(data []byte) error {
	var w responseWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	r.JSONRPC, r.ID, r.Result, r.Error = w.JSONRPC, w.ID, w.Result, w.Error
	return nil
}

// presentNull wraps a result value so encoding/json always emits the
// "result" key even when the wrapped value is nil, defeating the outer
// struct's "omitempty" (which only ever sees a non-nil presentNull).
type presentNull struct{ v any }

func (p presentNull) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.v)
}

// NewResultResponse builds a successful response echoing id.
func NewResultResponse(id ID, result any) Response {
	return Response{JSONRPC: Version, ID: id, Result: result}
}

// NewErrorResponse builds a failed response echoing id.
func NewErrorResponse(id ID, err *Error) Response {
	return Response{JSONRPC: Version, ID: id, Error: err}
}
