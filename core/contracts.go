package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// HookFunc is a registered pipeline hook. A returned error or a panic counts
// as a hook failure.
type HookFunc func(ctx context.Context, hc *HookContext) error

type TransportRequest struct {
	Method      string
	URL         string
	Headers     map[string]string
	Body        []byte
	Mode        string
	Credentials string
	Service     string
	Metadata    map[string]any
}

type TransportResponse struct {
	StatusCode int
	Status     string
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

// ContentType returns the response Content-Type header, if any.
func (r TransportResponse) ContentType() string {
	value, _ := lookupHeader(r.Headers, headerContentType)
	return value
}

type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

type TransportResolver interface {
	Build(kind string, config map[string]any) (TransportAdapter, error)
}

type InvocationStatus string

const (
	InvocationStatusOK    InvocationStatus = "ok"
	InvocationStatusError InvocationStatus = "error"
)

type InvocationActivityEntry struct {
	ID         string
	RequestID  string
	Service    string
	Method     string
	Address    string
	Status     InvocationStatus
	ErrorType  string
	ErrorPhase string
	Error      string
	Metadata   map[string]any
	CreatedAt  time.Time
}

type InvocationActivityFilter struct {
	Service string
	Status  InvocationStatus
	From    *time.Time
	To      *time.Time
	Page    int
	PerPage int
}

type InvocationActivityPage struct {
	Items      []InvocationActivityEntry
	Page       int
	PerPage    int
	Total      int
	HasNext    bool
	NextCursor string
}

type InvocationActivitySink interface {
	Record(ctx context.Context, entry InvocationActivityEntry) error
}

type InvocationActivityReader interface {
	List(ctx context.Context, filter InvocationActivityFilter) (InvocationActivityPage, error)
}
