package servicedriver

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-service-driver/core"
	"github.com/goliatone/go-service-driver/transport"
)

// HookPack is a named set of hooks registered onto a pipeline together.
type HookPack struct {
	Name        string
	Parallel    []HookFunc
	Middleware  []HookFunc
	Group       []HookFunc
	PostProcess []HookFunc
}

func (p HookPack) empty() bool {
	return len(p.Parallel) == 0 && len(p.Middleware) == 0 && len(p.Group) == 0 && len(p.PostProcess) == 0
}

// TransportPack contributes an adapter factory under a transport kind.
type TransportPack struct {
	Name    string
	Kind    string
	Factory transport.AdapterFactory
}

type CommandQueryBundleFactory func(facade *Facade) (any, error)

type ExtensionHooks struct {
	mu sync.RWMutex

	hookPacks      map[string]HookPack
	transportPacks map[string]TransportPack
	bundles        map[string]CommandQueryBundleFactory
}

func NewExtensionHooks() *ExtensionHooks {
	return &ExtensionHooks{
		hookPacks:      map[string]HookPack{},
		transportPacks: map[string]TransportPack{},
		bundles:        map[string]CommandQueryBundleFactory{},
	}
}

func (h *ExtensionHooks) RegisterHookPack(pack HookPack) error {
	if h == nil {
		return fmt.Errorf("servicedriver: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("servicedriver: hook pack name is required")
	}
	if pack.empty() {
		return fmt.Errorf("servicedriver: hook pack %q has no hooks", name)
	}

	normalized := HookPack{
		Name:        name,
		Parallel:    compactHooks(pack.Parallel),
		Middleware:  compactHooks(pack.Middleware),
		Group:       compactHooks(pack.Group),
		PostProcess: compactHooks(pack.PostProcess),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.hookPacks[name]; exists {
		return fmt.Errorf("servicedriver: hook pack %q already registered", name)
	}
	h.hookPacks[name] = normalized
	return nil
}

func (h *ExtensionHooks) RegisterTransportPack(pack TransportPack) error {
	if h == nil {
		return fmt.Errorf("servicedriver: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	kind := strings.TrimSpace(strings.ToLower(pack.Kind))
	if name == "" {
		return fmt.Errorf("servicedriver: transport pack name is required")
	}
	if kind == "" {
		return fmt.Errorf("servicedriver: transport pack %q kind is required", name)
	}
	if pack.Factory == nil {
		return fmt.Errorf("servicedriver: transport pack %q factory is required", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.transportPacks[name]; exists {
		return fmt.Errorf("servicedriver: transport pack %q already registered", name)
	}
	h.transportPacks[name] = TransportPack{Name: name, Kind: kind, Factory: pack.Factory}
	return nil
}

func (h *ExtensionHooks) RegisterCommandQueryBundle(
	name string,
	factory CommandQueryBundleFactory,
) error {
	if h == nil {
		return fmt.Errorf("servicedriver: extension hooks are nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("servicedriver: command/query bundle name is required")
	}
	if factory == nil {
		return fmt.Errorf("servicedriver: command/query bundle %q factory is required", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.bundles[name]; exists {
		return fmt.Errorf("servicedriver: command/query bundle %q already registered", name)
	}
	h.bundles[name] = factory
	return nil
}

// ApplyHookPacks registers every pack onto pipeline in pack name order.
// Within a pack, hooks keep their declared order.
func (h *ExtensionHooks) ApplyHookPacks(pipeline *core.Pipeline) error {
	if h == nil {
		return nil
	}
	if pipeline == nil {
		return fmt.Errorf("servicedriver: pipeline is required")
	}
	for _, pack := range h.HookPacks() {
		for _, hook := range pack.Parallel {
			pipeline.RegisterParallel(hook)
		}
		for _, hook := range pack.Middleware {
			pipeline.RegisterMiddleware(hook)
		}
		for _, hook := range pack.Group {
			pipeline.RegisterGroup(hook)
		}
		for _, hook := range pack.PostProcess {
			pipeline.RegisterPostProcess(hook)
		}
	}
	return nil
}

func (h *ExtensionHooks) ApplyTransportPacks(registry *transport.Registry) error {
	if h == nil {
		return nil
	}
	if registry == nil {
		return fmt.Errorf("servicedriver: transport registry is required")
	}
	for _, pack := range h.TransportPacks() {
		if err := registry.RegisterFactory(pack.Kind, pack.Factory); err != nil {
			return err
		}
	}
	return nil
}

func (h *ExtensionHooks) BuildCommandQueryBundles(facade *Facade) (map[string]any, error) {
	if h == nil {
		return map[string]any{}, nil
	}
	if facade == nil {
		return nil, fmt.Errorf("servicedriver: facade is required")
	}

	h.mu.RLock()
	names := sortedKeys(h.bundles)
	factories := make(map[string]CommandQueryBundleFactory, len(h.bundles))
	for name, factory := range h.bundles {
		factories[name] = factory
	}
	h.mu.RUnlock()

	result := make(map[string]any, len(names))
	for _, name := range names {
		bundle, err := factories[name](facade)
		if err != nil {
			return nil, err
		}
		result[name] = bundle
	}
	return result, nil
}

func (h *ExtensionHooks) HookPacks() []HookPack {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := sortedKeys(h.hookPacks)
	out := make([]HookPack, 0, len(names))
	for _, name := range names {
		pack := h.hookPacks[name]
		out = append(out, HookPack{
			Name:        pack.Name,
			Parallel:    append([]HookFunc(nil), pack.Parallel...),
			Middleware:  append([]HookFunc(nil), pack.Middleware...),
			Group:       append([]HookFunc(nil), pack.Group...),
			PostProcess: append([]HookFunc(nil), pack.PostProcess...),
		})
	}
	return out
}

func (h *ExtensionHooks) TransportPacks() []TransportPack {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := sortedKeys(h.transportPacks)
	out := make([]TransportPack, 0, len(names))
	for _, name := range names {
		out = append(out, h.transportPacks[name])
	}
	return out
}

func (h *ExtensionHooks) BundleNames() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return sortedKeys(h.bundles)
}

func compactHooks(hooks []HookFunc) []HookFunc {
	out := make([]HookFunc, 0, len(hooks))
	for _, hook := range hooks {
		if hook != nil {
			out = append(out, hook)
		}
	}
	return out
}

func sortedKeys[V any](values map[string]V) []string {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
