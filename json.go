// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wsrpc

import (
	"encoding/json"

	"github.com/gorilla/rpc/v2/json2"
)

// Version is the JSON-RPC protocol version carried by every message.
const Version = "2.0"

// request is one incoming JSON-RPC 2.0 message: a request when ID is set,
// a notification when it is absent.
type request struct {
	Version string           `json:"jsonrpc"`
	Method  string           `json:"method"`
	Params  *json.RawMessage `json:"params,omitempty"`
	ID      *json.RawMessage `json:"id,omitempty"`
}

// response is one outgoing JSON-RPC 2.0 response. Exactly one of Result
// and Error is populated; Result stays omitted for null results, matching
// the json2 server codec.
type response struct {
	Version string           `json:"jsonrpc"`
	Result  any              `json:"result,omitempty"`
	Error   *json2.Error     `json:"error,omitempty"`
	ID      *json.RawMessage `json:"id,omitempty"`
}

// notification is one outgoing fire-and-forget message carrying a signal
// broadcast to a subscribed peer.
type notification struct {
	Version string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

func marshalNotification(method string, params []any) ([]byte, error) {
	if params == nil {
		params = []any{}
	}
	return json.Marshal(notification{Version: Version, Method: method, Params: params})
}

var nullID = json.RawMessage("null")

func marshalResponse(id *json.RawMessage, result any, rpcErr *json2.Error) []byte {
	if id == nil {
		// A parse failure leaves the request id unknowable; the protocol
		// requires responding with a null id in that case.
		id = &nullID
	}
	data, err := json.Marshal(response{Version: Version, Result: result, Error: rpcErr, ID: id})
	if err != nil {
		// Result values come from handlers; an unmarshalable one still
		// owes the peer a well-formed answer.
		data, _ = json.Marshal(response{
			Version: Version,
			Error:   &json2.Error{Code: json2.E_INTERNAL, Message: "internal error"},
			ID:      id,
		})
	}
	return data
}

// decodeParams turns the raw params member into positional args. Array
// params map element-for-element; object params arrive as a single
// map[string]any argument; absent params decode to nil.
func decodeParams(raw *json.RawMessage) ([]any, error) {
	if raw == nil || len(*raw) == 0 {
		return nil, nil
	}
	var arr []any
	if err := json.Unmarshal(*raw, &arr); err == nil {
		return arr, nil
	}
	var obj map[string]any
	if err := json.Unmarshal(*raw, &obj); err == nil {
		return []any{obj}, nil
	}
	return nil, &json2.Error{Code: json2.E_BAD_PARAMS, Message: "params must be an array or object"}
}

// ErrInvalidParams is the protocol error handlers return when the supplied
// params do not match the shape they expect.
var ErrInvalidParams = &json2.Error{Code: json2.E_BAD_PARAMS, Message: "invalid params"}

func errInterfaceNotFound(name string) *json2.Error {
	return &json2.Error{Code: json2.E_SERVER, Message: "interface not found", Data: name}
}

func errPropertyNotFound(iface, prop string) *json2.Error {
	return &json2.Error{Code: json2.E_SERVER, Message: "property not found", Data: iface + "." + prop}
}

// asProtocolError maps a handler failure to the error sent on the wire.
// Handler-supplied *json2.Error values pass through; anything else is
// reported as a generic internal error so internal state never leaks.
func asProtocolError(err error) *json2.Error {
	if rpcErr, ok := err.(*json2.Error); ok {
		return rpcErr
	}
	return &json2.Error{Code: json2.E_INTERNAL, Message: "internal error"}
}
