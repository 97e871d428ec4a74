package command

import (
	"github.com/goliatone/go-service-driver/core"
)

const (
	TypeInvokeService = "servicedriver.command.invoke"
)

// InvokeServiceMessage asks a driver to run one service call. Args are
// positional and matched against Settings.InputParameters.
type InvokeServiceMessage struct {
	Settings core.ServiceSettings
	Args     []any
}

func (InvokeServiceMessage) Type() string { return TypeInvokeService }

func (m InvokeServiceMessage) Validate() error {
	if m.Settings.DisplayName() == "" {
		return commandValidationError("settings.path", "service name or path is required")
	}
	return nil
}
