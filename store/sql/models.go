package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

const invocationActivityTable = "driver_invocation_activity"

type invocationRecord struct {
	bun.BaseModel `bun:"table:driver_invocation_activity,alias:dia"`

	ID         string         `bun:"id,pk"`
	RequestID  string         `bun:"request_id,notnull"`
	Service    string         `bun:"service,notnull"`
	Method     string         `bun:"method,notnull"`
	Address    string         `bun:"address,notnull"`
	Status     string         `bun:"status,notnull"`
	ErrorType  string         `bun:"error_type,notnull"`
	ErrorPhase string         `bun:"error_phase,notnull"`
	Error      string         `bun:"error,notnull"`
	Metadata   map[string]any `bun:"metadata,type:jsonb,notnull"`
	CreatedAt  time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
