package core

import (
	"context"
	"net/http"
	"sync"
	"testing"
)

type stubTransport struct {
	mu       sync.Mutex
	requests []TransportRequest
	respond  func(req TransportRequest) (TransportResponse, error)
}

func (s *stubTransport) Kind() string { return "stub" }

func (s *stubTransport) Do(_ context.Context, req TransportRequest) (TransportResponse, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	respond := s.respond
	s.mu.Unlock()
	if respond == nil {
		return jsonResponse(http.StatusOK, `{"result":null}`), nil
	}
	return respond(req)
}

func (s *stubTransport) calls() []TransportRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TransportRequest(nil), s.requests...)
}

func jsonResponse(status int, body string) TransportResponse {
	return TransportResponse{
		StatusCode: status,
		Status:     http.StatusText(status),
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       []byte(body),
	}
}

func respondWith(resp TransportResponse) func(TransportRequest) (TransportResponse, error) {
	return func(TransportRequest) (TransportResponse, error) {
		return resp, nil
	}
}

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}

func newTestDriver(t *testing.T, transport *stubTransport, opts ...Option) *Driver {
	t.Helper()
	base := []Option{
		WithTransport(transport),
		WithLogger(stubLogger{}),
		WithLoggerProvider(stubLoggerProvider{logger: stubLogger{}}),
	}
	driver, err := NewDriver(ProviderInfo{Host: "svc.local", Port: 8080}, append(base, opts...)...)
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}
	return driver
}

func jsonService(path string, params ...ParameterDef) ServiceSettings {
	return ServiceSettings{
		Path:            path,
		Method:          "POST",
		InputParameters: params,
		Response:        ResponseSettings{Type: ResponseTypeJSON},
	}
}
