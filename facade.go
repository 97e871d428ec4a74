package servicedriver

import (
	"fmt"

	"github.com/goliatone/go-command/runner"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-service-driver/adapters/gocommand"
	"github.com/goliatone/go-service-driver/adapters/gologger"
	drivercommand "github.com/goliatone/go-service-driver/command"
	"github.com/goliatone/go-service-driver/core"
	driverquery "github.com/goliatone/go-service-driver/query"
)

type Commands struct {
	Invoke *drivercommand.InvokeServiceCommand
}

type Queries struct {
	ListActivity *driverquery.ListInvocationActivityQuery
}

// Facade exposes a driver as go-command handlers.
type Facade struct {
	invoker  drivercommand.Invoker
	reader   core.InvocationActivityReader
	logger   glog.Logger
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	activityReader core.InvocationActivityReader
	logger         glog.Logger
	loggerProvider glog.LoggerProvider
}

func WithActivityReader(reader core.InvocationActivityReader) FacadeOption {
	return func(options *facadeOptions) {
		options.activityReader = reader
	}
}

func WithFacadeLogger(logger glog.Logger) FacadeOption {
	return func(options *facadeOptions) {
		options.logger = logger
	}
}

func WithFacadeLoggerProvider(provider glog.LoggerProvider) FacadeOption {
	return func(options *facadeOptions) {
		options.loggerProvider = provider
	}
}

func NewFacade(invoker drivercommand.Invoker, opts ...FacadeOption) (*Facade, error) {
	if invoker == nil {
		return nil, fmt.Errorf("servicedriver: service invoker is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	reader := cfg.activityReader
	if reader == nil {
		reader, _ = invoker.(core.InvocationActivityReader)
	}

	facade := &Facade{
		invoker: invoker,
		reader:  reader,
		logger:  gologger.Named("service-driver.facade", cfg.loggerProvider, cfg.logger),
	}
	facade.commands = Commands{
		Invoke: drivercommand.NewInvokeServiceCommand(invoker),
	}
	facade.queries = Queries{
		ListActivity: driverquery.NewListInvocationActivityQuery(reader),
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Invoker() drivercommand.Invoker {
	if f == nil {
		return nil
	}
	return f.invoker
}

// Subscribe registers the facade handlers on adapter and the go-command
// dispatcher. The activity query is skipped when no reader is configured.
func (f *Facade) Subscribe(adapter *gocommand.RegistryAdapter, runnerOpts ...runner.Option) (gocommand.Subscriptions, error) {
	if f == nil {
		return nil, fmt.Errorf("servicedriver: facade is nil")
	}
	subscriptions, err := gocommand.RegisterDriverHandlers(adapter, f.invoker, f.reader, runnerOpts...)
	if err != nil {
		f.logger.Error("facade subscribe failed", "error", err)
		return nil, err
	}
	f.logger.Debug("facade subscribed", "handlers", len(subscriptions), "activity_query", f.reader != nil)
	return subscriptions, nil
}
