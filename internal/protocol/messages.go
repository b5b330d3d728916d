package protocol

import "encoding/json"

// ClientInfo is the optional client identification sent with initialize.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// InitializeParams is the parameter shape for the initialize request.
type InitializeParams struct {
	ProcessID  *int64      `json:"process_id,omitempty"`
	ClientInfo *ClientInfo `json:"client_info,omitempty"`
}

// InitializeParamsFromWire decodes and validates raw into an InitializeParams. initialize
// has no required fields, so this never fails validation itself, but it
// follows the same FromWire convention as every other shape for
// consistency in the dispatcher.
func InitializeParamsFromWire(raw json.RawMessage) (InitializeParams, *Error) {
	var p InitializeParams
	if len(raw) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, NewErrorf(CodeInvalidParams, "initialize: %v", err)
	}
	return p, nil
}

// ServerInfo identifies this server in the initialize response.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Capabilities is the server's capability advertisement. SupportsInterrupt
// is always false in this version (spec.md §4.6: interrupt is tracked but
// not enforced). ProtocolVersion is an additive extension (SPEC_FULL.md)
// carrying the server's own semver for best-effort client compatibility
// checks.
type Capabilities struct {
	SupportsInterrupt bool   `json:"supports_interrupt"`
	ProtocolVersion   string `json:"protocol_version"`
}

// InitializeResult is the result shape for the initialize request.
type InitializeResult struct {
	ServerInfo   ServerInfo   `json:"server_info"`
	Capabilities Capabilities `json:"capabilities"`
}

// SessionCreateResult is the result shape for konsol/session.create.
type SessionCreateResult struct {
	SessionID string `json:"session_id"`
}

// EvalParams is the parameter shape for konsol/eval.
type EvalParams struct {
	SessionID string `json:"session_id"`
	Code      string `json:"code"`
}

// EvalParamsFromWire decodes and validates raw, requiring both fields.
func EvalParamsFromWire(raw json.RawMessage) (EvalParams, *Error) {
	var p EvalParams
	if len(raw) == 0 {
		return p, NewErrorf(CodeInvalidParams, "eval: params required")
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, NewErrorf(CodeInvalidParams, "eval: %v", err)
	}
	if p.SessionID == "" {
		return p, NewErrorf(CodeInvalidParams, "eval: session_id is required")
	}
	if p.Code == "" {
		return p, NewErrorf(CodeInvalidParams, "eval: code is required")
	}
	return p, nil
}

// Exception is the captured failure of an evaluation that raised. The
// field is named "class" on the wire (spec.md §6), so the internal
// snake-case tag must already read "class" rather than "class_name" -
// the case translator is a structural camel<->snake transform, not a
// renaming one.
type Exception struct {
	ClassName string   `json:"class"`
	Message   string   `json:"message"`
	Backtrace []string `json:"backtrace"`
}

// EvalResult is the result shape for konsol/eval, matching spec.md §3's
// evaluation result value. Wire names are "value" and "valueType"
// (spec.md §6's literal table), so the tags here are "value" and
// "value_type" rather than the more self-descriptive
// "value_rendering"/"value_type_name" used internally in prose.
type EvalResult struct {
	ValueRendering string     `json:"value"`
	ValueTypeName  string     `json:"value_type,omitempty"`
	Stdout         string     `json:"stdout"`
	Stderr         string     `json:"stderr"`
	Exception      *Exception `json:"exception,omitempty"`
}

// SessionIDParams is the parameter shape shared by konsol/interrupt and
// any other request that only names a target session.
type SessionIDParams struct {
	SessionID string `json:"session_id"`
}

func SessionIDParamsFromWire(raw json.RawMessage, method string) (SessionIDParams, *Error) {
	var p SessionIDParams
	if len(raw) == 0 {
		return p, NewErrorf(CodeInvalidParams, "%s: params required", method)
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, NewErrorf(CodeInvalidParams, "%s: %v", method, err)
	}
	if p.SessionID == "" {
		return p, NewErrorf(CodeInvalidParams, "%s: session_id is required", method)
	}
	return p, nil
}

// InterruptResult is the result shape for konsol/interrupt. Success is
// always true in this version (spec.md §4.6): interrupt is recorded but
// never actually aborts a running evaluation.
type InterruptResult struct {
	Success bool `json:"success"`
}

// CancelRequestParams is the parameter shape for $/cancelRequest.
type CancelRequestParams struct {
	ID ID `json:"id"`
}

func CancelRequestParamsFromWire(raw json.RawMessage) (CancelRequestParams, *Error) {
	var p CancelRequestParams
	if len(raw) == 0 {
		return p, NewErrorf(CodeInvalidParams, "$/cancelRequest: params required")
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, NewErrorf(CodeInvalidParams, "$/cancelRequest: %v", err)
	}
	return p, nil
}

// StatusNotificationParams is the parameter shape for the reserved
// konsol/status server->client notification (SPEC_FULL.md extension 2).
type StatusNotificationParams struct {
	SessionID string `json:"session_id"`
	Busy      bool   `json:"busy"`
}

// Notification is the outgoing shape for a server->client notification:
// no id, no response expected.
type Notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  Method `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// NewNotification builds a Notification for method/params.
func NewNotification(method Method, params any) Notification {
	return Notification{JSONRPC: Version, Method: method, Params: params}
}
