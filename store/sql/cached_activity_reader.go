package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-service-driver/core"
)

const activityListCacheKeyPrefix = "go-service-driver::activity_list::v1"

// ActivityStore is what CachedActivityReader fronts: the activity sink and
// reader of one backing store.
type ActivityStore interface {
	core.InvocationActivitySink
	core.InvocationActivityReader
}

// CachedActivityReader serves List through a read-through cache. Record
// writes to the base store and drops every cached page.
type CachedActivityReader struct {
	base  ActivityStore
	cache repositorycache.CacheService

	mu   sync.Mutex
	keys map[string]struct{}
}

func NewCachedActivityReader(
	base ActivityStore,
	cacheService repositorycache.CacheService,
) (*CachedActivityReader, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base activity store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: activity cache service is required")
	}
	return &CachedActivityReader{
		base:  base,
		cache: cacheService,
		keys:  map[string]struct{}{},
	}, nil
}

// ActivityListCacheKey returns the cache key of a normalized filter:
// go-service-driver::activity_list::v1::<service>::<status>::<from>::<to>::<page>::<per_page>
func ActivityListCacheKey(filter core.InvocationActivityFilter) string {
	filter = normalizeActivityFilter(filter)
	segments := []string{
		url.PathEscape(filter.Service),
		url.PathEscape(string(filter.Status)),
		cacheTimeSegment(filter.From),
		cacheTimeSegment(filter.To),
		strconv.Itoa(filter.Page),
		strconv.Itoa(filter.PerPage),
	}
	return strings.Join(append([]string{activityListCacheKeyPrefix}, segments...), "::")
}

func (r *CachedActivityReader) List(
	ctx context.Context,
	filter core.InvocationActivityFilter,
) (core.InvocationActivityPage, error) {
	if r == nil || r.base == nil || r.cache == nil {
		return core.InvocationActivityPage{}, fmt.Errorf("sqlstore: cached activity reader is not configured")
	}
	filter = normalizeActivityFilter(filter)
	cacheKey := ActivityListCacheKey(filter)
	r.track(cacheKey)

	page, err := repositorycache.GetOrFetch(ctx, r.cache, cacheKey, func(ctx context.Context) (core.InvocationActivityPage, error) {
		fetched, fetchErr := r.base.List(ctx, filter)
		if fetchErr != nil {
			return core.InvocationActivityPage{}, fetchErr
		}
		return cloneActivityPage(fetched), nil
	})
	if err != nil {
		return core.InvocationActivityPage{}, err
	}
	return cloneActivityPage(page), nil
}

func (r *CachedActivityReader) Record(ctx context.Context, entry core.InvocationActivityEntry) error {
	if r == nil || r.base == nil || r.cache == nil {
		return fmt.Errorf("sqlstore: cached activity reader is not configured")
	}
	if err := r.base.Record(ctx, entry); err != nil {
		return err
	}
	return r.invalidate(ctx)
}

// Prune forwards to the base store when it supports retention and drops
// every cached page afterwards.
func (r *CachedActivityReader) Prune(ctx context.Context, policy core.ActivityRetentionPolicy) (int, error) {
	if r == nil || r.base == nil || r.cache == nil {
		return 0, fmt.Errorf("sqlstore: cached activity reader is not configured")
	}
	pruner, ok := r.base.(core.ActivityRetentionPruner)
	if !ok {
		return 0, fmt.Errorf("sqlstore: base activity store does not support retention")
	}
	deleted, err := pruner.Prune(ctx, policy)
	if err != nil {
		return deleted, err
	}
	return deleted, r.invalidate(ctx)
}

func (r *CachedActivityReader) track(key string) {
	r.mu.Lock()
	r.keys[key] = struct{}{}
	r.mu.Unlock()
}

func (r *CachedActivityReader) invalidate(ctx context.Context) error {
	r.mu.Lock()
	keys := make([]string, 0, len(r.keys))
	for key := range r.keys {
		keys = append(keys, key)
	}
	r.keys = map[string]struct{}{}
	r.mu.Unlock()

	for _, key := range keys {
		if err := r.cache.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

func cacheTimeSegment(value *time.Time) string {
	if value == nil {
		return "-"
	}
	return strconv.FormatInt(value.UTC().UnixNano(), 10)
}

func cloneActivityPage(page core.InvocationActivityPage) core.InvocationActivityPage {
	cloned := page
	if page.Items == nil {
		return cloned
	}
	cloned.Items = make([]core.InvocationActivityEntry, len(page.Items))
	for i, item := range page.Items {
		item.Metadata = copyAnyMap(item.Metadata)
		cloned.Items[i] = item
	}
	return cloned
}
