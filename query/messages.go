package query

import (
	"github.com/goliatone/go-service-driver/core"
)

const (
	TypeListInvocationActivity = "servicedriver.query.activity.list"
)

type ListInvocationActivityMessage struct {
	Filter core.InvocationActivityFilter
}

func (ListInvocationActivityMessage) Type() string { return TypeListInvocationActivity }

func (m ListInvocationActivityMessage) Validate() error {
	if m.Filter.Page < 0 {
		return queryValidationError("page", "page must be >= 0")
	}
	if m.Filter.PerPage < 0 {
		return queryValidationError("per_page", "per_page must be >= 0")
	}
	if m.Filter.From != nil && m.Filter.To != nil && m.Filter.To.Before(*m.Filter.From) {
		return queryValidationError("to", "to must not be before from")
	}
	switch m.Filter.Status {
	case "", core.InvocationStatusOK, core.InvocationStatusError:
	default:
		return queryValidationError("status", "status must be ok or error")
	}
	return nil
}
