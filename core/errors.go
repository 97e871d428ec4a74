package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	DriverErrorBadInput          = "DRIVER_BAD_INPUT"
	DriverErrorMiddlewareFailed  = "DRIVER_MIDDLEWARE_FAILED"
	DriverErrorRequestAborted    = "DRIVER_REQUEST_ABORTED"
	DriverErrorTransportFailed   = "DRIVER_TRANSPORT_FAILED"
	DriverErrorHTTPStatus        = "DRIVER_HTTP_STATUS"
	DriverErrorDecodeFailed      = "DRIVER_DECODE_FAILED"
	DriverErrorProviderReported  = "DRIVER_PROVIDER_REPORTED"
	DriverErrorGroupFailed       = "DRIVER_GROUP_FAILED"
	DriverErrorPostProcessFailed = "DRIVER_POST_PROCESS_FAILED"
	DriverErrorParallelFailed    = "DRIVER_PARALLEL_FAILED"
	DriverErrorServiceHandler    = "DRIVER_SERVICE_HANDLER"
	DriverErrorExternalFailure   = "DRIVER_EXTERNAL_FAILURE"
	DriverErrorInternal          = "DRIVER_INTERNAL_ERROR"
)

// Rich projects the unified error onto a go-errors envelope with a stable
// text code. HTTP status payloads keep their status as the error code.
func (e *UnifiedError) Rich() *goerrors.Error {
	if e == nil {
		return nil
	}
	category, textCode := phaseCategory(e.SubType)
	var rich *goerrors.Error
	if source, ok := e.Err.(error); ok && source != nil {
		rich = goerrors.Wrap(source, category, string(e.Type)+": "+string(e.SubType))
		rich.Category = category
	} else {
		rich = goerrors.New(e.Error(), category)
	}
	rich.TextCode = textCode
	rich.Code = phaseHTTPStatus(category)
	metadata := map[string]any{
		"type":    string(e.Type),
		"subType": string(e.SubType),
	}
	if payload, ok := e.Payload(); ok {
		metadata["payload"] = payload.Clone()
		if status, ok := statusCode(payload["status"]); ok && status >= http.StatusBadRequest {
			rich.Code = status
		}
	}
	return rich.WithMetadata(metadata)
}

// ErrorMapper maps an invocation error onto a go-errors envelope.
type ErrorMapper func(err error) *goerrors.Error

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if unified, ok := AsUnified(err); ok {
		return unified.Rich()
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return ensureDriverErrorEnvelope(rich)
	}
	var handler *HandlerError
	if goerrors.As(err, &handler) {
		return newDriverError(handler.Error(), goerrors.CategoryExternal, DriverErrorServiceHandler)
	}
	return ensureDriverErrorEnvelope(goerrors.MapToError(err, goerrors.DefaultErrorMappers()))
}

func newDriverError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureDriverErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureDriverErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = phaseHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultDriverTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func phaseCategory(phase Phase) (goerrors.Category, string) {
	switch phase {
	case PhaseMiddleware:
		return goerrors.CategoryMiddleware, DriverErrorMiddlewareFailed
	case PhaseRequestAborted:
		return goerrors.CategoryBadInput, DriverErrorRequestAborted
	case PhaseRequest:
		return goerrors.CategoryExternal, DriverErrorTransportFailed
	case PhaseHTTPStatus:
		return goerrors.CategoryExternal, DriverErrorHTTPStatus
	case PhaseDecode:
		return goerrors.CategoryExternal, DriverErrorDecodeFailed
	case PhaseProviderError:
		return goerrors.CategoryOperation, DriverErrorProviderReported
	case PhaseGroup:
		return goerrors.CategoryOperation, DriverErrorGroupFailed
	case PhasePostProcess:
		return goerrors.CategoryOperation, DriverErrorPostProcessFailed
	case PhaseParallel:
		return goerrors.CategoryOperation, DriverErrorParallelFailed
	case PhaseServiceHandler:
		return goerrors.CategoryExternal, DriverErrorServiceHandler
	default:
		return goerrors.CategoryInternal, DriverErrorInternal
	}
}

func defaultDriverTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return DriverErrorBadInput
	case goerrors.CategoryMiddleware:
		return DriverErrorMiddlewareFailed
	case goerrors.CategoryExternal:
		return DriverErrorExternalFailure
	default:
		return DriverErrorInternal
	}
}

func phaseHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func statusCode(value any) (int, bool) {
	switch typed := value.(type) {
	case int:
		return typed, true
	case int64:
		return int(typed), true
	case float64:
		return int(typed), true
	}
	return 0, false
}
