package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrUnknownCapability is returned when no capability with the
	// requested name is registered.
	ErrUnknownCapability = errors.New("unknown capability")
	// ErrUnauthorizedCaller is returned when the active speaker is
	// not the capability's registered caller.
	ErrUnauthorizedCaller = errors.New("caller not authorized for capability")
)

// Invocation carries a single capability call and its conversation
// context.
type Invocation struct {
	Name     string
	Argument string
	ChatID   string
	UserID   string
	Language string
}

// Handler executes a capability and returns its textual result.
type Handler func(ctx context.Context, inv Invocation) (string, error)

// Capability binds a named operation to the role allowed to request
// it and the role that runs it. Precondition, when set, can veto an
// invocation before the handler runs.
type Capability struct {
	Name         string
	Description  string
	Caller       string
	Executor     string
	Precondition func(inv Invocation) error
	Fn           Handler
}

// Registry holds the capabilities available to a conversation and
// enforces caller authorization on every invocation.
type Registry struct {
	mu   sync.RWMutex
	caps map[string]Capability
}

func NewRegistry() *Registry {
	return &Registry{caps: make(map[string]Capability)}
}

func (r *Registry) Register(cap Capability) error {
	if cap.Name == "" {
		return errors.New("capability needs a name")
	}
	if cap.Fn == nil {
		return fmt.Errorf("capability %s needs a handler", cap.Name)
	}
	if cap.Caller == "" || cap.Executor == "" {
		return fmt.Errorf("capability %s needs caller and executor roles", cap.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.caps[cap.Name]; exists {
		return fmt.Errorf("capability %s already registered", cap.Name)
	}
	r.caps[cap.Name] = cap
	return nil
}

func (r *Registry) Lookup(name string) (Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cap, ok := r.caps[name]
	return cap, ok
}

// Names lists registered capabilities in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.caps))
	for name := range r.caps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke runs the named capability on behalf of caller. The call is
// rejected when the capability is unknown, when caller is not its
// registered caller, or when its precondition fails.
func (r *Registry) Invoke(ctx context.Context, caller string, inv Invocation) (string, error) {
	cap, ok := r.Lookup(inv.Name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownCapability, inv.Name)
	}
	if cap.Caller != caller {
		return "", fmt.Errorf("%w: %s may not call %s", ErrUnauthorizedCaller, caller, inv.Name)
	}
	if cap.Precondition != nil {
		if err := cap.Precondition(inv); err != nil {
			return "", fmt.Errorf("capability %s precondition: %w", inv.Name, err)
		}
	}
	return cap.Fn(ctx, inv)
}
