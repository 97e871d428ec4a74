package core

import (
	"context"
	"sort"
	"strings"
	"time"
)

func (d *Driver) observeInvocation(ctx context.Context, startedAt time.Time, hc *HookContext, err error) {
	if d == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}

	fields := invocationFields(hc)
	fields["event_type"] = "invoke"
	fields["status"] = status
	fields["duration_ms"] = time.Since(startedAt).Milliseconds()

	tags := map[string]string{
		"status": status,
	}
	if service, ok := fields["service"].(string); ok && service != "" {
		tags["service"] = service
	}
	if err != nil {
		fields["error"] = err.Error()
		if unified, ok := AsUnified(err); ok {
			fields["error_type"] = string(unified.Type)
			fields["error_phase"] = string(unified.SubType)
			tags["phase"] = string(unified.SubType)
		} else {
			tags["phase"] = string(PhaseServiceHandler)
		}
	}

	d.recordCounter(ctx, "driver.invoke.total", 1, tags)
	d.recordHistogram(ctx, "driver.invoke.duration_ms", float64(time.Since(startedAt).Milliseconds()), tags)

	if err != nil {
		d.logError(ctx, "invoke failed", fields)
		return
	}
	d.logDebug(ctx, "invoke succeeded", fields)
}

func (d *Driver) reportParallelFailure(ctx context.Context, index int, hc *HookContext, err error) {
	fields := invocationFields(hc)
	fields["hook_index"] = index
	fields["error"] = err.Error()
	tags := map[string]string{}
	if service, ok := fields["service"].(string); ok && service != "" {
		tags["service"] = service
	}
	d.logError(ctx, "parallel hook failed", fields)
	d.recordCounter(ctx, "driver.parallel.failure", 1, tags)
}

func invocationFields(hc *HookContext) map[string]any {
	fields := map[string]any{}
	if hc == nil {
		return fields
	}
	hc.Locked(func() {
		fields["request_id"] = hc.RequestID
		fields["service"] = hc.Service.DisplayName()
		fields["address"] = hc.Address
		if hc.FetchOptions != nil {
			fields["method"] = hc.FetchOptions.Method
		}
	})
	return fields
}

func (d *Driver) logDebug(ctx context.Context, message string, fields map[string]any) {
	d.logWithLevel(ctx, "debug", message, fields)
}

func (d *Driver) logWarn(ctx context.Context, message string, fields map[string]any) {
	d.logWithLevel(ctx, "warn", message, fields)
}

func (d *Driver) logError(ctx context.Context, message string, fields map[string]any) {
	d.logWithLevel(ctx, "error", message, fields)
}

func (d *Driver) logWithLevel(ctx context.Context, level string, message string, fields map[string]any) {
	if d == nil || d.logger == nil {
		return
	}
	fields = RedactSensitiveMap(fields)
	logger := d.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(cloneFields(fields))
	}
	args := flattenFields(fields)
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "error":
		logger.Error(message, args...)
	case "warn":
		logger.Warn(message, args...)
	case "debug":
		logger.Debug(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func (d *Driver) recordCounter(ctx context.Context, name string, value int64, tags map[string]string) {
	if d == nil || d.metricsRecorder == nil {
		return
	}
	d.metricsRecorder.IncCounter(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

func (d *Driver) recordHistogram(ctx context.Context, name string, value float64, tags map[string]string) {
	if d == nil || d.metricsRecorder == nil {
		return
	}
	d.metricsRecorder.ObserveHistogram(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func cloneTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return map[string]string{}
	}
	copied := make(map[string]string, len(tags))
	for key, value := range tags {
		copied[key] = value
	}
	return copied
}

func cloneFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	copied := make(map[string]any, len(fields))
	for key, value := range fields {
		copied[key] = value
	}
	return copied
}

func flattenFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}
