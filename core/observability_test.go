package core

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"
)

type capturedCounter struct {
	name  string
	value int64
	tags  map[string]string
}

type capturedHistogram struct {
	name  string
	value float64
	tags  map[string]string
}

type captureMetricsRecorder struct {
	mu         sync.Mutex
	counters   []capturedCounter
	histograms []capturedHistogram
}

func (m *captureMetricsRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = append(m.counters, capturedCounter{name: name, value: value, tags: cloneTags(tags)})
}

func (m *captureMetricsRecorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms = append(m.histograms, capturedHistogram{name: name, value: value, tags: cloneTags(tags)})
}

func (m *captureMetricsRecorder) counterSnapshot() []capturedCounter {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]capturedCounter(nil), m.counters...)
}

type capturedLog struct {
	level  string
	msg    string
	fields map[string]any
}

type captureLogger struct {
	mu       *sync.Mutex
	records  *[]capturedLog
	defaults map[string]any
}

func newCaptureLogger() *captureLogger {
	records := []capturedLog{}
	return &captureLogger{mu: &sync.Mutex{}, records: &records, defaults: map[string]any{}}
}

func (l *captureLogger) WithFields(fields map[string]any) Logger {
	merged := cloneFields(l.defaults)
	for key, value := range fields {
		merged[key] = value
	}
	return &captureLogger{mu: l.mu, records: l.records, defaults: merged}
}

func (l *captureLogger) Trace(msg string, args ...any) { l.record("trace", msg, args...) }
func (l *captureLogger) Debug(msg string, args ...any) { l.record("debug", msg, args...) }
func (l *captureLogger) Info(msg string, args ...any)  { l.record("info", msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args...) }
func (l *captureLogger) Error(msg string, args ...any) { l.record("error", msg, args...) }
func (l *captureLogger) Fatal(msg string, args ...any) { l.record("fatal", msg, args...) }

func (l *captureLogger) WithContext(context.Context) Logger {
	return &captureLogger{mu: l.mu, records: l.records, defaults: cloneFields(l.defaults)}
}

func (l *captureLogger) record(level string, msg string, args ...any) {
	fields := cloneFields(l.defaults)
	for index := 0; index+1 < len(args); index += 2 {
		key, ok := args[index].(string)
		if !ok {
			continue
		}
		fields[key] = args[index+1]
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.records = append(*l.records, capturedLog{level: level, msg: msg, fields: fields})
}

func (l *captureLogger) snapshot() []capturedLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	items := *l.records
	out := make([]capturedLog, len(items))
	copy(out, items)
	return out
}

func TestDriverObservability_InvokeSuccess(t *testing.T) {
	metrics := &captureMetricsRecorder{}
	logger := newCaptureLogger()
	transport := &stubTransport{respond: respondWith(jsonResponse(http.StatusOK, `{"result":1}`))}
	driver := newTestDriver(t, transport,
		WithMetricsRecorder(metrics),
		WithLoggerProvider(stubLoggerProvider{logger: logger}),
		WithLogger(logger),
		WithRequestIDGenerator(func() string { return "req_1" }),
	)

	if _, err := driver.Invoke(context.Background(), jsonService("/ping")); err != nil {
		t.Fatalf("invoke: %v", err)
	}

	if !hasCounter(metrics.counterSnapshot(), "driver.invoke.total", "success") {
		t.Fatalf("expected driver.invoke.total success counter")
	}
	if !hasHistogram(metrics.histograms, "driver.invoke.duration_ms", "success") {
		t.Fatalf("expected driver.invoke.duration_ms histogram")
	}
	records := logger.snapshot()
	if !hasLog(records, "debug", "invoke succeeded", "invoke") {
		t.Fatalf("expected invoke succeeded structured log, got %#v", records)
	}
	if records[len(records)-1].fields["request_id"] != "req_1" {
		t.Fatalf("expected request id on log fields")
	}
}

func TestDriverObservability_InvokeFailureCarriesPhase(t *testing.T) {
	metrics := &captureMetricsRecorder{}
	logger := newCaptureLogger()
	transport := &stubTransport{respond: respondWith(jsonResponse(http.StatusBadGateway, ``))}
	driver := newTestDriver(t, transport,
		WithMetricsRecorder(metrics),
		WithLoggerProvider(stubLoggerProvider{logger: logger}),
		WithLogger(logger),
	)

	if _, err := driver.Invoke(context.Background(), jsonService("/ping")); err == nil {
		t.Fatalf("expected invoke failure")
	}

	records := logger.snapshot()
	if !hasLog(records, "error", "invoke failed", "invoke") {
		t.Fatalf("expected invoke failed log")
	}
	last := records[len(records)-1]
	if last.fields["error_phase"] != string(PhaseHTTPStatus) {
		t.Fatalf("expected error_phase http status, got %#v", last.fields["error_phase"])
	}
	found := false
	for _, counter := range metrics.counterSnapshot() {
		if counter.name == "driver.invoke.total" && counter.tags["phase"] == string(PhaseHTTPStatus) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected failure counter tagged with phase")
	}
}

func TestDriverObservability_DroppedBodyIsLogged(t *testing.T) {
	logger := newCaptureLogger()
	transport := &stubTransport{}
	driver := newTestDriver(t, transport,
		WithLoggerProvider(stubLoggerProvider{logger: logger}),
		WithLogger(logger),
	)

	settings := jsonService("/ping", ParameterDef{Name: "stream", Position: PositionBody})
	if _, err := driver.Invoke(context.Background(), settings, make(chan int)); err != nil {
		t.Fatalf("invoke: %v", err)
	}

	found := false
	for _, record := range logger.snapshot() {
		if record.level == "warn" && record.msg == "request body dropped" && record.fields["error"] != nil {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected warn log for the dropped body")
	}
}

func TestDriverObservability_ParallelFailureIsLoggedNotSurfaced(t *testing.T) {
	metrics := &captureMetricsRecorder{}
	logger := newCaptureLogger()
	transport := &stubTransport{respond: respondWith(jsonResponse(http.StatusOK, `{"result":"ok"}`))}
	driver := newTestDriver(t, transport,
		WithMetricsRecorder(metrics),
		WithLoggerProvider(stubLoggerProvider{logger: logger}),
		WithLogger(logger),
	)
	driver.Pipeline().RegisterParallel(func(context.Context, *HookContext) error {
		return errors.New("audit offline")
	})

	result, err := driver.Invoke(context.Background(), jsonService("/ping"))
	if err != nil {
		t.Fatalf("expected parallel failure to be ignored, got %v", err)
	}
	if result != "ok" {
		t.Fatalf("expected ok, got %#v", result)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		for _, counter := range metrics.counterSnapshot() {
			if counter.name == "driver.parallel.failure" {
				if !hasLogMessage(logger.snapshot(), "error", "parallel hook failed") {
					t.Fatalf("expected parallel failure log")
				}
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected driver.parallel.failure counter")
}

func hasCounter(items []capturedCounter, name string, status string) bool {
	for _, item := range items {
		if item.name == name && item.tags["status"] == status {
			return true
		}
	}
	return false
}

func hasHistogram(items []capturedHistogram, name string, status string) bool {
	for _, item := range items {
		if item.name == name && item.tags["status"] == status {
			return true
		}
	}
	return false
}

func hasLog(items []capturedLog, level string, message string, eventType string) bool {
	for _, item := range items {
		if item.level != level {
			continue
		}
		if item.msg != message {
			continue
		}
		if item.fields["event_type"] == eventType {
			return true
		}
	}
	return false
}

func hasLogMessage(items []capturedLog, level string, message string) bool {
	for _, item := range items {
		if item.level == level && item.msg == message {
			return true
		}
	}
	return false
}
