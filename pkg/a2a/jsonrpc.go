package a2a

import (
	"encoding/json"
	"fmt"
)

// Version is the only JSON-RPC version spoken.
const Version = "2.0"

// Methods.
const (
	MethodMessageSend = "message/send"
	MethodTasksCancel = "tasks/cancel"
)

// JSON-RPC and A2A error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeTaskNotFound   = -32001
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response. Exactly one of Result and Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// NewError builds an *Error.
func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewRequest encodes params into a request with the given id.
func NewRequest(id, method string, params any) (Request, error) {
	rawID, err := json.Marshal(id)
	if err != nil {
		return Request{}, err
	}
	req := Request{JSONRPC: Version, ID: rawID, Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return Request{}, fmt.Errorf("encode params: %w", err)
		}
		req.Params = raw
	}
	return req, nil
}

// Result builds a success response.
func Result(id json.RawMessage, result any) Response {
	resp := Response{JSONRPC: Version, ID: nullID(id)}
	raw, err := json.Marshal(result)
	if err != nil {
		resp.Error = NewError(CodeInternalError, "encode result: "+err.Error())
		return resp
	}
	resp.Result = raw
	return resp
}

// Failure builds an error response.
func Failure(id json.RawMessage, err *Error) Response {
	return Response{JSONRPC: Version, ID: nullID(id), Error: err}
}

func nullID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}
