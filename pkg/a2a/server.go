package a2a

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
)

// Handler serves one JSON-RPC method. Returning an *Error controls the reply
// code; any other error becomes an internal error.
type Handler func(ctx context.Context, params json.RawMessage) (any, error)

// maxRequestBody bounds a single JSON-RPC body.
const maxRequestBody = 1 << 20

// Server dispatches JSON-RPC 2.0 requests posted over HTTP to registered
// method handlers.
type Server struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   *slog.Logger
}

// NewServer creates an empty dispatcher.
func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{handlers: make(map[string]Handler), logger: logger}
}

// Handle registers h for method, replacing any earlier handler.
func (s *Server) Handle(method string, h Handler) {
	s.mu.Lock()
	s.handlers[method] = h
	s.mu.Unlock()
}

// Methods returns the number of registered methods.
func (s *Server) Methods() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.handlers)
}

// ServeHTTP implements http.Handler. Protocol errors are reported in the
// JSON-RPC body with status 200, as JSON-RPC over HTTP expects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeResponse(w, Failure(nil, NewError(CodeParseError, "read body: "+err.Error())))
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeResponse(w, Failure(nil, NewError(CodeParseError, "parse error")))
		return
	}
	writeResponse(w, s.Dispatch(r.Context(), req))
}

// Dispatch runs one decoded request.
func (s *Server) Dispatch(ctx context.Context, req Request) Response {
	if req.JSONRPC != Version || req.Method == "" {
		return Failure(req.ID, NewError(CodeInvalidRequest, "invalid request"))
	}

	s.mu.RLock()
	h, ok := s.handlers[req.Method]
	s.mu.RUnlock()
	if !ok {
		return Failure(req.ID, NewError(CodeMethodNotFound, "method not found: "+req.Method))
	}

	result, err := h(ctx, req.Params)
	if err != nil {
		var rpcErr *Error
		if errors.As(err, &rpcErr) {
			return Failure(req.ID, rpcErr)
		}
		s.logger.Warn("jsonrpc handler failed", "method", req.Method, "error", err)
		return Failure(req.ID, NewError(CodeInternalError, err.Error()))
	}
	return Result(req.ID, result)
}

// DecodeParams unmarshals params into v, reporting failures as invalid params.
func DecodeParams(params json.RawMessage, v any) error {
	if len(params) == 0 {
		return NewError(CodeInvalidParams, "missing params")
	}
	if err := json.Unmarshal(params, v); err != nil {
		return NewError(CodeInvalidParams, "invalid params: "+err.Error())
	}
	return nil
}

// CardHandler serves a static agent card.
func CardHandler(card AgentCard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(card)
	}
}

func writeResponse(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
