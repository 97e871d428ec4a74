package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-service-driver/core"
	"github.com/gorilla/rpc/v2/json2"
)

const KindJSONRPC = "jsonrpc"

// JSONRPCAdapter wraps the assembled body into a JSON-RPC 2.0 call named after
// the service and rewrites the reply into the driver's {result} / {error}
// payload convention.
type JSONRPCAdapter struct {
	REST *RESTAdapter
}

func NewJSONRPCAdapter(client HTTPDoer) *JSONRPCAdapter {
	return &JSONRPCAdapter{REST: NewRESTAdapter(client)}
}

func (*JSONRPCAdapter) Kind() string {
	return KindJSONRPC
}

func (a *JSONRPCAdapter) Do(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if a == nil || a.REST == nil {
		return core.TransportResponse{}, transportError(
			"transport: jsonrpc adapter requires a rest adapter",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			map[string]any{"adapter": KindJSONRPC},
		)
	}
	method := strings.TrimSpace(req.Service)
	if method == "" {
		return core.TransportResponse{}, transportError(
			"transport: jsonrpc method is required",
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			map[string]any{"adapter": KindJSONRPC, "url": req.URL},
		)
	}

	var params any
	if len(bytes.TrimSpace(req.Body)) > 0 {
		if err := json.Unmarshal(req.Body, &params); err != nil {
			return core.TransportResponse{}, transportWrapError(
				err,
				goerrors.CategoryBadInput,
				"transport: jsonrpc params must be json",
				http.StatusBadRequest,
				map[string]any{"adapter": KindJSONRPC, "method": method},
			)
		}
	}
	envelope, err := json2.EncodeClientRequest(method, params)
	if err != nil {
		return core.TransportResponse{}, transportWrapError(
			err,
			goerrors.CategoryBadInput,
			"transport: encode jsonrpc request",
			http.StatusBadRequest,
			map[string]any{"adapter": KindJSONRPC, "method": method},
		)
	}

	forwarded := req
	forwarded.Method = http.MethodPost
	forwarded.Body = envelope
	forwarded.Headers = cloneHeaders(req.Headers)
	setHeader(forwarded.Headers, "Content-Type", "application/json")

	response, err := a.REST.Do(ctx, forwarded)
	if err != nil {
		return core.TransportResponse{}, err
	}
	response.Metadata = cloneMetadata(response.Metadata)
	response.Metadata["kind"] = KindJSONRPC
	response.Metadata["rpc_method"] = method
	if response.StatusCode >= http.StatusBadRequest || len(bytes.TrimSpace(response.Body)) == 0 {
		return response, nil
	}

	body, err := unwrapJSONRPCReply(response.Body)
	if err != nil {
		return core.TransportResponse{}, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: decode jsonrpc reply",
			http.StatusBadGateway,
			map[string]any{"adapter": KindJSONRPC, "method": method},
		)
	}
	response.Body = body
	response.Headers = cloneHeaders(response.Headers)
	setHeader(response.Headers, "Content-Type", "application/json")
	return response, nil
}

// unwrapJSONRPCReply maps a JSON-RPC reply onto {"result": ...} or
// {"error": {"code", "message", "data"}}.
func unwrapJSONRPCReply(body []byte) ([]byte, error) {
	var result json.RawMessage
	err := json2.DecodeClientResponse(bytes.NewReader(body), &result)
	switch {
	case err == nil:
		return json.Marshal(map[string]json.RawMessage{"result": result})
	case errors.Is(err, json2.ErrNullResult):
		return []byte(`{"result":null}`), nil
	}
	var rpcErr *json2.Error
	if errors.As(err, &rpcErr) {
		return json.Marshal(map[string]any{
			"error": map[string]any{
				"code":    int(rpcErr.Code),
				"message": rpcErr.Message,
				"data":    rpcErr.Data,
			},
		})
	}
	return nil, err
}

func cloneHeaders(input map[string]string) map[string]string {
	if len(input) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(input))
	for key, value := range input {
		trimmed := strings.TrimSpace(key)
		if trimmed == "" {
			continue
		}
		out[trimmed] = value
	}
	return out
}

// setHeader replaces every case variant of key.
func setHeader(headers map[string]string, key string, value string) {
	for existing := range headers {
		if strings.EqualFold(existing, key) {
			delete(headers, existing)
		}
	}
	headers[key] = value
}

func cloneMetadata(input map[string]any) map[string]any {
	if len(input) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(input))
	for key, value := range input {
		out[key] = value
	}
	return out
}

var _ core.TransportAdapter = (*JSONRPCAdapter)(nil)
