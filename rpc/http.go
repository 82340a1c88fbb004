package rpc

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"curvemint/native/issuance"
	"curvemint/native/token"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError          = -32700
	codeInvalidRequest      = -32600
	codeMethodNotFound      = -32601
	codeInvalidParams       = -32602
	codeUnauthorized        = -32001
	codeServerError         = -32000
	codeInsufficientBalance = -32010
	codePayoutFailed        = -32011
)

// TokenInfo describes the issued asset as reported by curve_info.
type TokenInfo struct {
	Name   string
	Symbol string
}

type Server struct {
	engine    *issuance.Engine
	ledger    *token.Ledger
	audit     *issuance.AuditLedger
	info      TokenInfo
	authToken string
	log       *slog.Logger
}

// NewServer wires the RPC surface over an initialised engine. The bearer token
// guarding admin methods is read from the named environment variable.
func NewServer(engine *issuance.Engine, ledger *token.Ledger, audit *issuance.AuditLedger, info TokenInfo, tokenEnv string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		engine:    engine,
		ledger:    ledger,
		audit:     audit,
		info:      info,
		authToken: strings.TrimSpace(os.Getenv(tokenEnv)),
		log:       log,
	}
}

// Router assembles the HTTP surface: the JSON-RPC endpoint, a liveness probe
// and the Prometheus scrape endpoint.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Method(http.MethodPost, "/rpc", otelhttp.NewHandler(http.HandlerFunc(s.handle), "rpc"))
	return r
}

func (s *Server) Start(addr string) error {
	s.log.Info("starting JSON-RPC server", "addr", addr)
	return http.ListenAndServe(addr, s.Router())
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeEngineError maps issuance errors onto JSON-RPC error codes.
func writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, issuance.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, id, codeInvalidParams, "invalid amount", err.Error())
	case errors.Is(err, issuance.ErrInvalidPercentage):
		writeError(w, http.StatusBadRequest, id, codeInvalidParams, "invalid percentage", err.Error())
	case errors.Is(err, issuance.ErrInsufficientBalance):
		writeError(w, http.StatusBadRequest, id, codeInsufficientBalance, "insufficient token balance", err.Error())
	case errors.Is(err, issuance.ErrDepositFailed):
		writeError(w, http.StatusBadRequest, id, codeInsufficientBalance, "deposit could not be collected", err.Error())
	case errors.Is(err, issuance.ErrPayoutFailed):
		writeError(w, http.StatusConflict, id, codePayoutFailed, "reserve payout failed", err.Error())
	case errors.Is(err, issuance.ErrUnauthorized):
		writeError(w, http.StatusForbidden, id, codeUnauthorized, "caller is not the engine admin", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, id, codeServerError, "engine error", err.Error())
	}
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	switch req.Method {
	case "curve_buy":
		s.handleBuy(w, r, req)
	case "curve_sell":
		s.handleSell(w, r, req)
	case "curve_estimateBuy":
		s.handleEstimateBuy(w, r, req)
	case "curve_info":
		s.handleInfo(w, r, req)
	case "curve_balance":
		s.handleBalance(w, r, req)
	case "curve_reserve":
		s.handleReserve(w, r, req)
	case "curve_listMints":
		s.handleListMints(w, r, req)
	case "curve_exportMints":
		s.handleExportMints(w, r, req)
	case "curve_setFounderPercentage":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleSetFounderPercentage(w, r, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("method %q not found", req.Method), nil)
	}
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}
