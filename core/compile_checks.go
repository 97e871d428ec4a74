package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ error                    = (*UnifiedError)(nil)
	_ error                    = (*HandlerError)(nil)
	_ error                    = (*HookPanicError)(nil)
	_ InvocationActivitySink   = (*ActivityQueue)(nil)
	_ InvocationActivityReader = (*ActivityQueue)(nil)
	_ ConfigProvider           = (*CfgxConfigProvider)(nil)
	_ OptionsResolver          = GoOptionsResolver{}

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
