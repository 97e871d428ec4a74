package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-service-driver/core"
)

var (
	_ gocmd.Querier[ListInvocationActivityMessage, core.InvocationActivityPage] = (*ListInvocationActivityQuery)(nil)
)
