package servicedriver_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	gocmd "github.com/goliatone/go-command"
	persistence "github.com/goliatone/go-persistence-bun"
	servicedriver "github.com/goliatone/go-service-driver"
	"github.com/goliatone/go-service-driver/adapters/gocommand"
	drivercommand "github.com/goliatone/go-service-driver/command"
	"github.com/goliatone/go-service-driver/core"
	driverquery "github.com/goliatone/go-service-driver/query"
	sqlstore "github.com/goliatone/go-service-driver/store/sql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

type testPersistenceConfig struct {
	dsn string
}

func (testPersistenceConfig) GetDebug() bool { return false }

func (testPersistenceConfig) GetDriver() string { return "sqlite3" }

func (c testPersistenceConfig) GetServer() string { return c.dsn }

func (testPersistenceConfig) GetPingTimeout() time.Duration { return time.Second }

func (testPersistenceConfig) GetOtelIdentifier() string { return "go-service-driver-tests" }

func TestDownstreamComposition_DispatchRecordsAndQueriesActivity(t *testing.T) {
	ctx := context.Background()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/api/users/missing" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"no such user"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{
				"name":   body["name"],
				"tenant": r.Header.Get("X-Tenant"),
				"page":   r.URL.Query().Get("page"),
			},
		})
	}))
	defer server.Close()

	store := newCompositionStore(t)

	hooks := servicedriver.NewExtensionHooks()
	if err := hooks.RegisterHookPack(servicedriver.HookPack{
		Name:        "activity",
		PostProcess: []servicedriver.HookFunc{core.ActivityPostProcess(store)},
	}); err != nil {
		t.Fatalf("register hook pack: %v", err)
	}
	pipeline := servicedriver.NewPipeline()
	if err := hooks.ApplyHookPacks(pipeline); err != nil {
		t.Fatalf("apply hook packs: %v", err)
	}

	driver, err := servicedriver.New(providerFor(t, server.URL), servicedriver.WithPipeline(pipeline))
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}

	facade, err := servicedriver.NewFacade(driver, servicedriver.WithActivityReader(store))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	subscriptions, err := facade.Subscribe(gocommand.NewRegistryAdapter(nil))
	if err != nil {
		t.Fatalf("subscribe facade: %v", err)
	}
	defer subscriptions.Unsubscribe()

	settings := core.ServiceSettings{
		Name: "users.create",
		Path: "users",
		InputParameters: []core.ParameterDef{
			{Name: "name", Position: core.PositionBody},
			{Name: "X-Tenant", Position: core.PositionHeader},
			{Name: "page", Position: core.PositionQuery},
		},
	}

	collector := gocmd.NewResult[any]()
	if err := gocommand.Dispatch(gocmd.ContextWithResult(ctx, collector), drivercommand.InvokeServiceMessage{
		Settings: settings,
		Args:     []any{"ada", "acme", 2},
	}); err != nil {
		t.Fatalf("dispatch invoke: %v", err)
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected invoke result")
	}
	payload, ok := result.(map[string]any)
	if !ok {
		t.Fatalf("expected object result, got %T", result)
	}
	if payload["name"] != "ada" || payload["tenant"] != "acme" || payload["page"] != "2" {
		t.Fatalf("unexpected payload: %#v", payload)
	}

	_, err = driver.Invoke(ctx, core.ServiceSettings{Name: "users.get", Path: "users/missing", Method: "GET"})
	unified, ok := core.AsUnified(err)
	if !ok || unified.SubType != core.PhaseHTTPStatus {
		t.Fatalf("expected http status error, got %v", err)
	}
	bucket, _ := unified.Payload()
	if bucket["status"] != http.StatusNotFound || bucket["message"] != "no such user" {
		t.Fatalf("unexpected status payload: %#v", bucket)
	}

	page, err := gocommand.Query[driverquery.ListInvocationActivityMessage, core.InvocationActivityPage](
		ctx,
		driverquery.ListInvocationActivityMessage{},
	)
	if err != nil {
		t.Fatalf("query activity: %v", err)
	}
	if page.Total != 2 {
		t.Fatalf("expected two recorded invocations, got %d", page.Total)
	}
	statuses := map[string]core.InvocationStatus{}
	for _, item := range page.Items {
		statuses[item.Service] = item.Status
	}
	if statuses["users.create"] != core.InvocationStatusOK || statuses["users.get"] != core.InvocationStatusError {
		t.Fatalf("unexpected recorded statuses: %#v", statuses)
	}
	if hits.Load() != 2 {
		t.Fatalf("expected two upstream requests, got %d", hits.Load())
	}
}

func providerFor(t *testing.T, rawURL string) core.ProviderInfo {
	t.Helper()
	host, portText, err := net.SplitHostPort(rawURL[len("http://"):])
	if err != nil {
		t.Fatalf("split host: %v", err)
	}
	port, err := strconv.Atoi(portText)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	return core.ProviderInfo{Host: host, Port: port, Root: "/api/"}
}

func newCompositionStore(t *testing.T) *sqlstore.InvocationActivityStore {
	t.Helper()
	dsn := fmt.Sprintf("file:composition-%d?mode=memory&cache=shared", time.Now().UnixNano())
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	client, err := persistence.New(testPersistenceConfig{dsn: dsn}, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	store, err := sqlstore.NewStoreFromPersistence(client)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return store
}
