// Package hooks provides prioritized, panic-safe hook registries, grouped
// into tables keyed by event name. The ircd dispatcher uses one table entry
// per protocol verb.
package hooks

import (
	"fmt"
	"reflect"
	"runtime"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Hook defines a generic hook function that returns an error if it fails
type Hook[T any] func(context T) error

// HookInfo stores information about a registered hook including its priority
type HookInfo[T any] struct {
	Name     string  // Name of the hook function
	Hook     Hook[T] // The hook function itself
	Priority int64   // Priority value (lower values run first, like Unix nice)
}

// PanicError is returned by Run when a hook panics
type PanicError struct {
	Hook  string
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in hook %s: %v", e.Hook, e.Value)
}

// Registry manages hook registration and execution for a specific context type
type Registry[T any] struct {
	mu    sync.RWMutex
	hooks []HookInfo[T]
	log   *zap.SugaredLogger
}

// NewRegistry creates a new hook registry for the given context type
func NewRegistry[T any](log *zap.SugaredLogger) *Registry[T] {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Registry[T]{log: log}
}

// Register adds a new hook to the registry with default priority (0)
func (r *Registry[T]) Register(hook Hook[T]) {
	r.RegisterWithPriority(hook, 0)
}

// RegisterWithPriority adds a new hook to the registry with the specified priority.
// Hooks with equal priority run in registration order.
func (r *Registry[T]) RegisterWithPriority(hook Hook[T], priority int64) {
	name := runtime.FuncForPC(reflect.ValueOf(hook).Pointer()).Name()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.hooks = append(r.hooks, HookInfo[T]{
		Name:     name,
		Hook:     hook,
		Priority: priority,
	})
	sort.SliceStable(r.hooks, func(i, j int) bool {
		return r.hooks[i].Priority < r.hooks[j].Priority
	})
}

// Run executes the registered hooks in priority order and stops at the
// first one that fails. A panicking hook is recovered and reported as a
// *PanicError.
func (r *Registry[T]) Run(context T) error {
	r.mu.RLock()
	hooks := make([]HookInfo[T], len(r.hooks))
	copy(hooks, r.hooks)
	r.mu.RUnlock()

	for _, info := range hooks {
		if err := r.call(info, context); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry[T]) call(info HookInfo[T], context T) (err error) {
	defer func() {
		if v := recover(); v != nil {
			r.log.Errorw("hook panicked", "hook", info.Name, "panic", v)
			err = &PanicError{Hook: info.Name, Value: v}
		}
	}()
	return info.Hook(context)
}

// Clear removes all hooks from the registry
func (r *Registry[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.hooks = nil
}

// Count returns the number of registered hooks
func (r *Registry[T]) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.hooks)
}

// Table groups registries by event name
type Table[T any] struct {
	mu     sync.RWMutex
	events map[string]*Registry[T]
	log    *zap.SugaredLogger
}

// NewTable creates an empty table
func NewTable[T any](log *zap.SugaredLogger) *Table[T] {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Table[T]{
		events: make(map[string]*Registry[T]),
		log:    log,
	}
}

// On registers a hook for an event with default priority
func (t *Table[T]) On(event string, hook Hook[T]) {
	t.OnWithPriority(event, hook, 0)
}

// OnWithPriority registers a hook for an event with the given priority
func (t *Table[T]) OnWithPriority(event string, hook Hook[T], priority int64) {
	t.mu.Lock()
	reg, ok := t.events[event]
	if !ok {
		reg = NewRegistry[T](t.log.With("event", event))
		t.events[event] = reg
	}
	t.mu.Unlock()

	reg.RegisterWithPriority(hook, priority)
}

// Has reports whether any hook is registered for the event
func (t *Table[T]) Has(event string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	reg, ok := t.events[event]
	return ok && reg.Count() > 0
}

// Run executes the hooks registered for an event. It reports false when
// the event has no hooks.
func (t *Table[T]) Run(event string, context T) (bool, error) {
	t.mu.RLock()
	reg, ok := t.events[event]
	t.mu.RUnlock()

	if !ok || reg.Count() == 0 {
		return false, nil
	}
	return true, reg.Run(context)
}

// Events returns the registered event names in sorted order
func (t *Table[T]) Events() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.events))
	for name := range t.events {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
