package sqlstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-service-driver/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	defaultActivityPerPage = 25
	maxActivityPerPage     = 500
)

// InvocationActivityStore persists one row per driver invocation.
type InvocationActivityStore struct {
	db   *bun.DB
	repo repository.Repository[*invocationRecord]
}

func NewInvocationActivityStore(db *bun.DB) (*InvocationActivityStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*invocationRecord](db, invocationHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid invocation activity repository wiring: %w", err)
		}
	}
	return &InvocationActivityStore{db: db, repo: repo}, nil
}

// EnsureSchema creates the activity table and its created_at index when they
// do not exist yet.
func (s *InvocationActivityStore) EnsureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: invocation activity store is not configured")
	}
	if _, err := s.db.NewCreateTable().
		Model((*invocationRecord)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("sqlstore: create %s: %w", invocationActivityTable, err)
	}
	if _, err := s.db.NewCreateIndex().
		Model((*invocationRecord)(nil)).
		Index("idx_driver_invocation_activity_created_at").
		Column("created_at").
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("sqlstore: create %s index: %w", invocationActivityTable, err)
	}
	return nil
}

func (s *InvocationActivityStore) Record(ctx context.Context, entry core.InvocationActivityEntry) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: invocation activity store is not configured")
	}
	service := strings.TrimSpace(entry.Service)
	if service == "" {
		return fmt.Errorf("sqlstore: invocation activity requires a service")
	}
	id := strings.TrimSpace(entry.ID)
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := entry.CreatedAt.UTC()
	if entry.CreatedAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	status := strings.TrimSpace(string(entry.Status))
	if status == "" {
		status = string(core.InvocationStatusOK)
	}

	record := &invocationRecord{
		ID:         id,
		RequestID:  strings.TrimSpace(entry.RequestID),
		Service:    service,
		Method:     strings.ToUpper(strings.TrimSpace(entry.Method)),
		Address:    strings.TrimSpace(entry.Address),
		Status:     status,
		ErrorType:  strings.TrimSpace(entry.ErrorType),
		ErrorPhase: strings.TrimSpace(entry.ErrorPhase),
		Error:      entry.Error,
		Metadata:   copyAnyMap(entry.Metadata),
		CreatedAt:  createdAt,
	}
	_, err := s.repo.Create(ctx, record)
	return err
}

func (s *InvocationActivityStore) List(
	ctx context.Context,
	filter core.InvocationActivityFilter,
) (core.InvocationActivityPage, error) {
	if s == nil || s.repo == nil {
		return core.InvocationActivityPage{}, fmt.Errorf("sqlstore: invocation activity store is not configured")
	}
	filter = normalizeActivityFilter(filter)
	offset := (filter.Page - 1) * filter.PerPage

	selectors := []repository.SelectCriteria{
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(filter.PerPage, offset),
	}
	if filter.Service != "" {
		selectors = append(selectors, repository.SelectBy("service", "=", filter.Service))
	}
	if filter.Status != "" {
		selectors = append(selectors, repository.SelectBy("status", "=", string(filter.Status)))
	}
	if filter.From != nil {
		selectors = append(selectors, repository.SelectByTimetz("created_at", ">=", filter.From.UTC()))
	}
	if filter.To != nil {
		selectors = append(selectors, repository.SelectByTimetz("created_at", "<=", filter.To.UTC()))
	}

	records, total, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return core.InvocationActivityPage{}, err
	}
	items := make([]core.InvocationActivityEntry, 0, len(records))
	for _, record := range records {
		items = append(items, invocationRecordToDomain(record))
	}
	hasNext := offset+len(items) < total
	nextOffset := ""
	if hasNext {
		nextOffset = strconv.Itoa(offset + len(items))
	}
	return core.InvocationActivityPage{
		Items:      items,
		Page:       filter.Page,
		PerPage:    filter.PerPage,
		Total:      total,
		HasNext:    hasNext,
		NextCursor: nextOffset,
	}, nil
}

// Prune deletes rows older than policy.TTL, then the oldest rows above
// policy.RowCap. It returns the number of deleted rows.
func (s *InvocationActivityStore) Prune(ctx context.Context, policy core.ActivityRetentionPolicy) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: invocation activity store is not configured")
	}
	deleted := 0

	if policy.TTL > 0 {
		cutoff := time.Now().UTC().Add(-policy.TTL)
		res, err := s.db.NewDelete().
			Model((*invocationRecord)(nil)).
			Where("created_at < ?", cutoff).
			Exec(ctx)
		if err != nil {
			return deleted, err
		}
		affected, _ := res.RowsAffected()
		deleted += int(affected)
	}

	if policy.RowCap > 0 {
		total, err := s.db.NewSelect().Model((*invocationRecord)(nil)).Count(ctx)
		if err != nil {
			return deleted, err
		}
		excess := total - policy.RowCap
		if excess > 0 {
			res, err := s.db.NewRaw(
				"DELETE FROM "+invocationActivityTable+" WHERE id IN (SELECT id FROM "+invocationActivityTable+" ORDER BY created_at ASC LIMIT ?)",
				excess,
			).Exec(ctx)
			if err != nil {
				return deleted, err
			}
			affected, _ := res.RowsAffected()
			deleted += int(affected)
		}
	}

	return deleted, nil
}

func normalizeActivityFilter(filter core.InvocationActivityFilter) core.InvocationActivityFilter {
	filter.Service = strings.TrimSpace(filter.Service)
	filter.Status = core.InvocationStatus(strings.TrimSpace(string(filter.Status)))
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PerPage <= 0 {
		filter.PerPage = defaultActivityPerPage
	}
	if filter.PerPage > maxActivityPerPage {
		filter.PerPage = maxActivityPerPage
	}
	return filter
}

func invocationRecordToDomain(record *invocationRecord) core.InvocationActivityEntry {
	if record == nil {
		return core.InvocationActivityEntry{}
	}
	return core.InvocationActivityEntry{
		ID:         record.ID,
		RequestID:  record.RequestID,
		Service:    record.Service,
		Method:     record.Method,
		Address:    record.Address,
		Status:     core.InvocationStatus(record.Status),
		ErrorType:  record.ErrorType,
		ErrorPhase: record.ErrorPhase,
		Error:      record.Error,
		Metadata:   copyAnyMap(record.Metadata),
		CreatedAt:  record.CreatedAt,
	}
}
