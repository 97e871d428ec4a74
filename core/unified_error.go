package core

import (
	"errors"
	"fmt"
	"strings"
)

// Layer names the logical layer that produced a unified error.
type Layer string

const (
	LayerServiceDriver   Layer = "service driver"
	LayerServiceProvider Layer = "service provider"
)

// Phase names the pipeline phase that produced a unified error.
type Phase string

const (
	PhaseMiddleware     Phase = "middleware"
	PhaseRequestAborted Phase = "request aborted"
	PhaseRequest        Phase = "request"
	PhaseHTTPStatus     Phase = "http status"
	PhaseDecode         Phase = "parse result from response"
	PhaseProviderError  Phase = "provider reported"
	PhaseGroup          Phase = "group process"
	PhasePostProcess    Phase = "post processes"
	PhaseParallel       Phase = "parallel process"
	PhaseServiceHandler Phase = "service handler"
)

// UnifiedError is the canonical error envelope surfaced by the driver. Err
// keeps the original value, which is not necessarily an error (decoded
// payloads are carried as Bucket).
type UnifiedError struct {
	Type    Layer `json:"type"`
	SubType Phase `json:"subType"`
	Err     any   `json:"error"`
}

func (e *UnifiedError) Error() string {
	if e == nil {
		return "<nil>"
	}
	prefix := fmt.Sprintf("%s: %s", e.Type, e.SubType)
	switch typed := e.Err.(type) {
	case nil:
		return prefix
	case error:
		return prefix + ": " + typed.Error()
	default:
		return prefix + ": " + stringify(typed)
	}
}

func (e *UnifiedError) Unwrap() error {
	if e == nil {
		return nil
	}
	if err, ok := e.Err.(error); ok {
		return err
	}
	return nil
}

// Is matches another UnifiedError by type and sub type.
func (e *UnifiedError) Is(target error) bool {
	other, ok := target.(*UnifiedError)
	if !ok || e == nil || other == nil {
		return false
	}
	return e.Type == other.Type && e.SubType == other.SubType
}

// Payload returns Err as a Bucket when it carries a decoded object.
func (e *UnifiedError) Payload() (Bucket, bool) {
	if e == nil {
		return nil, false
	}
	switch typed := e.Err.(type) {
	case Bucket:
		return typed, true
	case map[string]any:
		return Bucket(typed), true
	}
	return nil, false
}

// Unify wraps value into a UnifiedError unless value itself is one. An error
// that only wraps a UnifiedError gets its own envelope so its phase and
// message are kept.
func Unify(layer Layer, phase Phase, value any) *UnifiedError {
	if existing, ok := value.(*UnifiedError); ok && existing != nil {
		return existing
	}
	return &UnifiedError{Type: layer, SubType: phase, Err: value}
}

// IsUnified reports whether value already carries the unified envelope.
func IsUnified(value any) bool {
	_, ok := AsUnified(value)
	return ok
}

// AsUnified finds a UnifiedError anywhere in value's wrap chain.
func AsUnified(value any) (*UnifiedError, bool) {
	switch typed := value.(type) {
	case nil:
		return nil, false
	case *UnifiedError:
		return typed, typed != nil
	case error:
		var unified *UnifiedError
		if errors.As(typed, &unified) && unified != nil {
			return unified, true
		}
	}
	return nil, false
}

// serviceHandlerValue returns the inner value of a remote handler error.
func serviceHandlerValue(err error) (any, bool) {
	unified, ok := AsUnified(err)
	if !ok {
		return nil, false
	}
	if unified.Type == LayerServiceProvider && unified.SubType == PhaseServiceHandler {
		return unified.Err, true
	}
	return nil, false
}

// unifiedFromPayload recognizes a decoded {type, subType, error} object as a
// unified error produced by a remote driver.
func unifiedFromPayload(payload Bucket) (*UnifiedError, bool) {
	layer, ok := payload["type"].(string)
	if !ok || strings.TrimSpace(layer) == "" {
		return nil, false
	}
	phase, ok := payload["subType"].(string)
	if !ok || strings.TrimSpace(phase) == "" {
		return nil, false
	}
	inner, ok := payload["error"]
	if !ok {
		return nil, false
	}
	if nested, isObject := inner.(map[string]any); isObject {
		inner = Bucket(nested)
	}
	return &UnifiedError{Type: Layer(layer), SubType: Phase(phase), Err: inner}, true
}

// handlerPassthrough turns an unwrapped handler value into an error without
// adding another envelope.
func handlerPassthrough(value any) error {
	if err, ok := value.(error); ok && err != nil {
		return err
	}
	return &HandlerError{Value: value}
}
