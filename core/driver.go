package core

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
)

// Driver invokes remote services on one provider. A driver holds no per-call
// state: every Invoke builds its own FetchOptions and HookContext.
type Driver struct {
	provider        ProviderInfo
	config          Config
	logger          Logger
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	pipeline        *Pipeline
	transport       TransportAdapter
	requestIDs      func() string
}

func NewDriver(provider ProviderInfo, opts ...Option) (*Driver, error) {
	builder := defaultDriverBuilder()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	loggerProvider, logger := glog.Resolve("service-driver", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if loggerProvider != nil {
		if named := loggerProvider.GetLogger("service-driver"); named != nil {
			logger = glog.Ensure(named)
		}
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.pipeline == nil {
		builder.pipeline = NewPipeline()
	}
	if builder.requestIDs == nil {
		builder.requestIDs = uuid.NewString
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, fmt.Errorf("core: load config: %w", err)
	}
	cfg, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, fmt.Errorf("core: resolve config: %w", err)
	}

	adapter := builder.transport
	if adapter == nil {
		if builder.transportResolver == nil {
			return nil, fmt.Errorf("core: transport adapter or resolver is required")
		}
		adapter, err = builder.transportResolver.Build(cfg.Transport.Kind, map[string]any{
			"max_response_body_bytes": cfg.Transport.MaxResponseBodyBytes,
		})
		if err != nil {
			return nil, fmt.Errorf("core: build transport %q: %w", cfg.Transport.Kind, err)
		}
	}

	return &Driver{
		provider:        provider,
		config:          cfg,
		logger:          logger,
		metricsRecorder: builder.metricsRecorder,
		errorMapper:     builder.errorMapper,
		pipeline:        builder.pipeline,
		transport:       adapter,
		requestIDs:      builder.requestIDs,
	}, nil
}

// Pipeline returns the hook configuration this driver runs.
func (d *Driver) Pipeline() *Pipeline {
	if d == nil {
		return nil
	}
	return d.pipeline
}

func (d *Driver) Provider() ProviderInfo {
	if d == nil {
		return ProviderInfo{}
	}
	return d.provider
}

func (d *Driver) Config() Config {
	if d == nil {
		return Config{}
	}
	return d.config
}

// MapError projects an Invoke error onto a go-errors envelope.
func (d *Driver) MapError(err error) error {
	if err == nil {
		return nil
	}
	mapper := defaultErrorMapper
	if d != nil && d.errorMapper != nil {
		mapper = d.errorMapper
	}
	if mapped := mapper(err); mapped != nil {
		return mapped
	}
	return err
}

// Invoke runs one call of settings with args and settles a single outcome:
// the decoded success value, a *UnifiedError, or the remote handler's own
// error when the provider reports one.
func (d *Driver) Invoke(ctx context.Context, settings ServiceSettings, args ...any) (result any, err error) {
	if d == nil || d.transport == nil {
		return nil, Unify(LayerServiceDriver, PhaseRequest, fmt.Errorf("core: driver is not configured"))
	}
	if ctx == nil {
		ctx = context.Background()
	}
	startedAt := time.Now()
	chains := d.pipeline.Snapshot()

	address := AssembleAddress(d.provider, settings.Path)
	assembled := AssembleParameters(settings.Method, settings.InputParameters, args, d.config.requestDefaults())
	address = AppendQuery(address, assembled.Query)
	fetchOptions := assembled.Options
	fetchOptions.Query = nil

	hc := &HookContext{
		RequestID:    d.requestIDs(),
		Service:      settings,
		Parameters:   append([]any(nil), args...),
		FetchOptions: &fetchOptions,
		Address:      address,
	}
	defer func() {
		d.observeInvocation(ctx, startedAt, hc, err)
	}()
	if assembled.BodyErr != nil {
		fields := invocationFields(hc)
		fields["error"] = assembled.BodyErr.Error()
		d.logWarn(ctx, "request body dropped", fields)
	}

	d.fireParallel(ctx, chains.Parallel, hc)

	if err := runSequential(ctx, chains.Middleware, hc); err != nil {
		return nil, Unify(LayerServiceDriver, PhaseMiddleware, err)
	}
	aborted := false
	hc.Locked(func() {
		aborted = strings.TrimSpace(hc.Address) == "" || hc.FetchOptions == nil || hc.FetchOptions.Abort
	})
	if aborted {
		return nil, &UnifiedError{Type: LayerServiceDriver, SubType: PhaseRequestAborted}
	}

	return joinPrimaryWithGroup(ctx, func(ctx context.Context) (any, error) {
		return d.settlePrimary(ctx, chains.PostProcess, hc)
	}, chains.Group, hc)
}

// fireParallel starts every parallel hook detached from the invocation.
// Failures are logged and dropped.
func (d *Driver) fireParallel(ctx context.Context, hooks []HookFunc, hc *HookContext) {
	if len(hooks) == 0 {
		return
	}
	detached := context.WithoutCancel(ctx)
	for index, hook := range hooks {
		go func() {
			if err := callHook(detached, hook, hc); err != nil {
				d.reportParallelFailure(detached, index, hc, Unify(LayerServiceDriver, PhaseParallel, err))
			}
		}()
	}
}

// settlePrimary dispatches the request, decodes it and runs the post-process
// chain. A post-process failure replaces whatever the request produced.
func (d *Driver) settlePrimary(ctx context.Context, postProcess []HookFunc, hc *HookContext) (any, error) {
	result, err := d.dispatch(ctx, hc)
	hc.Locked(func() {
		hc.Result = result
		hc.Error = err
	})
	if hookErr := runSequential(ctx, postProcess, hc); hookErr != nil {
		return nil, Unify(LayerServiceDriver, PhasePostProcess, hookErr)
	}
	return result, err
}

func (d *Driver) dispatch(ctx context.Context, hc *HookContext) (any, error) {
	req, err := d.transportRequest(hc)
	if err != nil {
		return nil, Unify(LayerServiceDriver, PhaseRequest, err)
	}
	resp, err := d.transport.Do(ctx, req)
	if err != nil {
		return nil, Unify(LayerServiceDriver, PhaseRequest, err)
	}

	var statusErr Bucket
	if resp.StatusCode >= http.StatusBadRequest {
		statusText := strings.TrimSpace(resp.Status)
		if statusText == "" {
			statusText = http.StatusText(resp.StatusCode)
		}
		statusErr = Bucket{
			"status":     resp.StatusCode,
			"statusText": statusText,
			"url":        req.URL,
		}
	}

	decoded, decodeErr := DecodeResponse(hc.Service.Response.Type, resp)
	if statusErr != nil {
		return nil, httpStatusError(statusErr, decoded, decodeErr)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return interpretPayload(decoded)
}

func (d *Driver) transportRequest(hc *HookContext) (TransportRequest, error) {
	var (
		req     TransportRequest
		bodyErr error
		opts    = hc.FetchOptions
	)
	hc.Locked(func() {
		var body []byte
		body, bodyErr = EncodeBody(opts.Body)
		if bodyErr != nil {
			return
		}
		headers := make(map[string]string, len(opts.Headers))
		for key, value := range opts.Headers {
			headers[key] = value
		}
		req = TransportRequest{
			Method:      opts.Method,
			URL:         hc.Address,
			Headers:     headers,
			Body:        body,
			Mode:        opts.Mode,
			Credentials: opts.Credentials,
			Service:     hc.Service.DisplayName(),
			Metadata: map[string]any{
				"request_id": hc.RequestID,
			},
		}
	})
	return req, bodyErr
}

// EncodeBody turns FetchOptions.Body into the bytes put on the wire. Strings
// and byte slices are sent as is; middleware that replaced the serialized
// body with any other value gets it JSON encoded.
func EncodeBody(body any) ([]byte, error) {
	switch typed := body.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(typed), nil
	case []byte:
		return typed, nil
	default:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return nil, fmt.Errorf("core: encode request body: %w", err)
		}
		return encoded, nil
	}
}

// httpStatusError merges the decoded error body into the status payload. The
// status fields stay authoritative.
func httpStatusError(statusErr Bucket, decoded any, decodeErr error) error {
	merged := Bucket{}
	switch typed := decoded.(type) {
	case nil:
	case Bucket:
		for key, value := range typed {
			merged[key] = value
		}
	default:
		merged["body"] = typed
	}
	if decodeErr != nil {
		merged["parseError"] = decodeErr.Error()
	}
	for key, value := range statusErr {
		merged[key] = value
	}
	// A remote handler failure settles as the handler's own error whatever
	// the status code.
	if unified, ok := unifiedFromPayload(merged); ok &&
		unified.Type == LayerServiceProvider && unified.SubType == PhaseServiceHandler {
		return unified
	}
	return &UnifiedError{Type: LayerServiceDriver, SubType: PhaseHTTPStatus, Err: merged}
}

// interpretPayload applies the provider response conventions: a "result"
// (or "res") field is the success value, an "error" field is a
// provider-reported failure, anything else is the success value itself.
func interpretPayload(decoded any) (any, error) {
	payload, ok := decoded.(Bucket)
	if !ok {
		return decoded, nil
	}
	if value, ok := payload["result"]; ok {
		return value, nil
	}
	if value, ok := payload["res"]; ok {
		return value, nil
	}
	if inner, ok := payload["error"]; ok {
		if unified, ok := unifiedFromPayload(payload); ok {
			return nil, unified
		}
		if nested, ok := asBucket(inner); ok {
			if unified, ok := unifiedFromPayload(nested); ok {
				return nil, unified
			}
		}
		return nil, &UnifiedError{Type: LayerServiceProvider, SubType: PhaseProviderError, Err: payload}
	}
	return payload, nil
}

func asBucket(value any) (Bucket, bool) {
	switch typed := value.(type) {
	case Bucket:
		return typed, true
	case map[string]any:
		return Bucket(typed), true
	}
	return nil, false
}
