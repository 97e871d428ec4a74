package command

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-service-driver/core"
)

var (
	_ gocmd.Commander[InvokeServiceMessage] = (*InvokeServiceCommand)(nil)
	_ Invoker                               = (*core.Driver)(nil)
)
