// Package servicedriver is the entry point of the service invocation driver:
// type aliases over core, New with the default transport registry, hook packs
// and a go-command facade.
package servicedriver

import (
	"github.com/goliatone/go-service-driver/core"
	"github.com/goliatone/go-service-driver/transport"
)

type Driver = core.Driver
type Config = core.Config
type Option = core.Option

type ProviderInfo = core.ProviderInfo
type ServiceSettings = core.ServiceSettings
type ResponseSettings = core.ResponseSettings
type ResponseType = core.ResponseType
type ParameterDef = core.ParameterDef
type Position = core.Position
type Bucket = core.Bucket
type FetchOptions = core.FetchOptions

type Pipeline = core.Pipeline
type HookFunc = core.HookFunc
type HookContext = core.HookContext

type UnifiedError = core.UnifiedError
type HandlerError = core.HandlerError

const (
	PositionBody   = core.PositionBody
	PositionHeader = core.PositionHeader
	PositionQuery  = core.PositionQuery
	PositionCookie = core.PositionCookie

	ResponseTypeJSON     = core.ResponseTypeJSON
	ResponseTypeText     = core.ResponseTypeText
	ResponseTypeString   = core.ResponseTypeString
	ResponseTypeFormData = core.ResponseTypeFormData
)

var (
	WithConfig             = core.WithConfig
	WithLogger             = core.WithLogger
	WithLoggerProvider     = core.WithLoggerProvider
	WithMetricsRecorder    = core.WithMetricsRecorder
	WithErrorMapper        = core.WithErrorMapper
	WithConfigProvider     = core.WithConfigProvider
	WithOptionsResolver    = core.WithOptionsResolver
	WithPipeline           = core.WithPipeline
	WithTransport          = core.WithTransport
	WithTransportResolver  = core.WithTransportResolver
	WithRequestIDGenerator = core.WithRequestIDGenerator
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewPipeline() *Pipeline {
	return core.NewPipeline()
}

// New builds a driver for provider. Config.Transport.Kind picks the adapter
// from the default transport registry unless opts inject a transport or a
// resolver of their own.
func New(provider ProviderInfo, opts ...Option) (*Driver, error) {
	all := make([]Option, 0, len(opts)+1)
	all = append(all, core.WithTransportResolver(transport.NewDefaultRegistry()))
	all = append(all, opts...)
	return core.NewDriver(provider, all...)
}
