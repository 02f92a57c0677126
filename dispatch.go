// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wsrpc

import (
	"encoding/json"

	"github.com/gorilla/rpc/v2/json2"
	"go.uber.org/zap"
)

// HandleMessage dispatches one raw inbound frame. It returns the serialized
// response owed to the sending peer, or nil when the frame was a
// notification (notifications never produce a response, not even for
// errors). Dispatch performs no I/O and is synchronous with respect to a
// single call; frames from different peers may be handled concurrently.
func (r *Registry) HandleMessage(raw []byte) []byte {
	var req request
	if err := json.Unmarshal(raw, &req); err != nil {
		if !json.Valid(raw) {
			r.log.Debug("unparsable request", zap.Error(err))
			return marshalResponse(nil, nil, &json2.Error{
				Code:    json2.E_PARSE,
				Message: "parse error",
			})
		}
		return marshalResponse(nil, nil, &json2.Error{
			Code:    json2.E_INVALID_REQ,
			Message: "invalid request",
		})
	}

	if req.Version != Version || req.Method == "" {
		if req.ID == nil {
			return nil
		}
		return marshalResponse(req.ID, nil, &json2.Error{
			Code:    json2.E_INVALID_REQ,
			Message: "invalid request",
		})
	}

	handler, ok := r.lookupHandler(req.Method)
	if !ok {
		r.log.Debug("method not found", zap.String("method", req.Method))
		if req.ID == nil {
			return nil
		}
		return marshalResponse(req.ID, nil, &json2.Error{
			Code:    json2.E_NO_METHOD,
			Message: "method not found",
			Data:    req.Method,
		})
	}

	args, err := decodeParams(req.Params)
	if err != nil {
		if req.ID == nil {
			return nil
		}
		return marshalResponse(req.ID, nil, asProtocolError(err))
	}

	result, err := r.invoke(req.Method, handler, args)
	if req.ID == nil {
		return nil
	}
	if err != nil {
		return marshalResponse(req.ID, nil, asProtocolError(err))
	}
	return marshalResponse(req.ID, result, nil)
}

func (r *Registry) lookupHandler(method string) (HandlerFunc, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	handler, ok := r.dispatch[method]
	return handler, ok
}

// invoke runs a bound handler, containing panics so a misbehaving handler
// becomes a protocol error for its own caller instead of taking down the
// connection's read loop.
func (r *Registry) invoke(method string, handler HandlerFunc, args []any) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("handler panicked",
				zap.String("method", method),
				zap.Any("panic", rec))
			result = nil
			err = &json2.Error{Code: json2.E_INTERNAL, Message: "internal error"}
		}
	}()

	result, err = handler(args)
	if err != nil {
		if _, isProto := err.(*json2.Error); !isProto {
			r.log.Error("handler failed", zap.String("method", method), zap.Error(err))
		}
	}
	return result, err
}
