package query

import (
	"context"

	"github.com/goliatone/go-service-driver/core"
)

type ListInvocationActivityQuery struct {
	reader core.InvocationActivityReader
}

func NewListInvocationActivityQuery(reader core.InvocationActivityReader) *ListInvocationActivityQuery {
	return &ListInvocationActivityQuery{reader: reader}
}

func (q *ListInvocationActivityQuery) Query(
	ctx context.Context,
	msg ListInvocationActivityMessage,
) (core.InvocationActivityPage, error) {
	if q == nil || q.reader == nil {
		return core.InvocationActivityPage{}, queryDependencyError("query: invocation activity reader is required")
	}
	if err := msg.Validate(); err != nil {
		return core.InvocationActivityPage{}, err
	}
	return q.reader.List(ctx, msg.Filter)
}
