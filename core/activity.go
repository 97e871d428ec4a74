package core

import (
	"context"
	"fmt"
	"time"
)

// ActivityPostProcess returns a post-process hook that records one activity
// entry per invocation. A sink failure fails the hook, which rejects the
// invocation like any other post-process failure.
func ActivityPostProcess(sink InvocationActivitySink) HookFunc {
	return func(ctx context.Context, hc *HookContext) error {
		if sink == nil || hc == nil {
			return nil
		}
		entry := activityEntry(hc)
		if err := sink.Record(ctx, entry); err != nil {
			return fmt.Errorf("core: record invocation activity: %w", err)
		}
		return nil
	}
}

func activityEntry(hc *HookContext) InvocationActivityEntry {
	var entry InvocationActivityEntry
	hc.Locked(func() {
		entry = InvocationActivityEntry{
			RequestID: hc.RequestID,
			Service:   hc.Service.DisplayName(),
			Address:   hc.Address,
			Status:    InvocationStatusOK,
			Metadata:  map[string]any{},
			CreatedAt: time.Now().UTC(),
		}
		if hc.FetchOptions != nil {
			entry.Method = hc.FetchOptions.Method
			if len(hc.FetchOptions.Headers) > 0 {
				entry.Metadata["request_headers"] = RedactHeaders(hc.FetchOptions.Headers)
			}
		}
		if hc.Service.Response.Type != "" {
			entry.Metadata["response_type"] = string(hc.Service.Response.Type)
		}
		if hc.Error == nil {
			return
		}
		entry.Status = InvocationStatusError
		entry.Error = hc.Error.Error()
		if unified, ok := AsUnified(hc.Error); ok {
			entry.ErrorType = string(unified.Type)
			entry.ErrorPhase = string(unified.SubType)
			if payload, ok := unified.Payload(); ok {
				if status, ok := statusCode(payload["status"]); ok {
					entry.Metadata["status"] = status
				}
			}
		}
	})
	return entry
}
