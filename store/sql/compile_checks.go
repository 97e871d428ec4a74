package sqlstore

import "github.com/goliatone/go-service-driver/core"

var (
	_ core.InvocationActivitySink   = (*InvocationActivityStore)(nil)
	_ core.InvocationActivityReader = (*InvocationActivityStore)(nil)
	_ core.ActivityRetentionPruner  = (*InvocationActivityStore)(nil)
	_ ActivityStore                 = (*CachedActivityReader)(nil)
	_ core.ActivityRetentionPruner  = (*CachedActivityReader)(nil)
)
