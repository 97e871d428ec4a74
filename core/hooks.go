package core

import (
	"context"
	"fmt"
	"sync"
)

// Pipeline bundles the four ordered hook chains a driver runs on every
// invocation. Chains are append-only; the same function registered twice
// runs twice.
type Pipeline struct {
	mu          sync.RWMutex
	parallel    []HookFunc
	middleware  []HookFunc
	group       []HookFunc
	postProcess []HookFunc
}

func NewPipeline() *Pipeline {
	return &Pipeline{
		parallel:    make([]HookFunc, 0),
		middleware:  make([]HookFunc, 0),
		group:       make([]HookFunc, 0),
		postProcess: make([]HookFunc, 0),
	}
}

func (p *Pipeline) RegisterParallel(fn HookFunc) {
	p.register(&p.parallel, fn)
}

func (p *Pipeline) RegisterMiddleware(fn HookFunc) {
	p.register(&p.middleware, fn)
}

func (p *Pipeline) RegisterGroup(fn HookFunc) {
	p.register(&p.group, fn)
}

func (p *Pipeline) RegisterPostProcess(fn HookFunc) {
	p.register(&p.postProcess, fn)
}

func (p *Pipeline) register(chain *[]HookFunc, fn HookFunc) {
	if p == nil || fn == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	*chain = append(*chain, fn)
}

// HookChains is a point-in-time copy of a pipeline's chains.
type HookChains struct {
	Parallel    []HookFunc
	Middleware  []HookFunc
	Group       []HookFunc
	PostProcess []HookFunc
}

// Snapshot copies the chains so registrations made during an invocation do
// not affect it.
func (p *Pipeline) Snapshot() HookChains {
	if p == nil {
		return HookChains{}
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return HookChains{
		Parallel:    append([]HookFunc(nil), p.parallel...),
		Middleware:  append([]HookFunc(nil), p.middleware...),
		Group:       append([]HookFunc(nil), p.group...),
		PostProcess: append([]HookFunc(nil), p.postProcess...),
	}
}

// runSequential runs hooks in registration order and stops at the first
// failure.
func runSequential(ctx context.Context, hooks []HookFunc, hc *HookContext) error {
	for _, hook := range hooks {
		if err := callHook(ctx, hook, hc); err != nil {
			return err
		}
	}
	return nil
}

// callHook runs one hook and converts a panic into an error value.
func callHook(ctx context.Context, hook HookFunc, hc *HookContext) (err error) {
	if hook == nil {
		return nil
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			if recoveredErr, ok := recovered.(error); ok {
				err = recoveredErr
				return
			}
			err = &HookPanicError{Value: recovered}
		}
	}()
	return hook(ctx, hc)
}

// HookPanicError carries a non-error value a hook panicked with.
type HookPanicError struct {
	Value any
}

func (e *HookPanicError) Error() string {
	return fmt.Sprintf("hook panic: %v", e.Value)
}
