package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-service-driver/core"
)

type Invoker interface {
	Invoke(ctx context.Context, settings core.ServiceSettings, args ...any) (any, error)
}

type InvokeServiceCommand struct {
	invoker Invoker
}

func NewInvokeServiceCommand(invoker Invoker) *InvokeServiceCommand {
	return &InvokeServiceCommand{invoker: invoker}
}

// Execute runs the call and stores the decoded result in the go-command
// result collector carried by ctx, when there is one. Driver failures are
// returned as they come from Invoke.
func (c *InvokeServiceCommand) Execute(ctx context.Context, msg InvokeServiceMessage) error {
	if c == nil || c.invoker == nil {
		return commandDependencyError("command: service invoker is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.invoker.Invoke(ctx, msg.Settings, msg.Args...)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
