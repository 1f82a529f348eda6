package processing

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"futures/internal/domain"
	"futures/internal/services"
	"futures/internal/workitem"
)

// Registry maps work item types to processors.
type Registry struct {
	mu         sync.RWMutex
	processors map[workitem.Type]Processor
}

// NewRegistry builds a registry from processors. Registering a type twice is
// an error.
func NewRegistry(processors ...Processor) (*Registry, error) {
	r := &Registry{processors: make(map[workitem.Type]Processor, len(processors))}
	for _, p := range processors {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds p under its type.
func (r *Registry) Register(p Processor) error {
	if p == nil {
		return fmt.Errorf("register processor: nil processor")
	}
	t := p.Type()
	if !t.Valid() {
		return fmt.Errorf("register processor: unknown type %q", t)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.processors[t]; exists {
		return fmt.Errorf("register processor: %s already registered", t)
	}
	r.processors[t] = p
	return nil
}

// Get returns the processor registered for t.
func (r *Registry) Get(t workitem.Type) (Processor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.processors[t]
	return p, ok
}

// Validate checks that every declared type has a processor.
func (r *Registry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var missing []string
	for _, t := range workitem.AllTypes() {
		if _, ok := r.processors[t]; !ok {
			missing = append(missing, string(t))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return services.Wrap(services.ErrConfiguration, "processing", "validate registry",
		"no processor for "+strings.Join(missing, ", "), nil)
}

// Dispatch routes meta to the processor for its type.
func (r *Registry) Dispatch(ctx context.Context, logger *slog.Logger, tx domain.Tx, meta workitem.Metadata, deps []workitem.Dependency) (Outcome, error) {
	if meta == nil {
		return Outcome{}, services.Wrap(services.ErrValidation, "processing", "dispatch", "metadata is nil", nil)
	}
	p, ok := r.Get(meta.ItemType())
	if !ok {
		return Outcome{}, services.Wrap(services.ErrConfiguration, "processing", "dispatch",
			fmt.Sprintf("no processor for %s", meta.ItemType()), nil)
	}
	outcome, err := p.Handle(ctx, logger, tx, meta, deps)
	if err != nil {
		return Outcome{}, err
	}
	if outcome.Ready() {
		if outcome.Metadata() == nil {
			return Outcome{}, services.Wrap(services.ErrContract, "processing", "dispatch",
				fmt.Sprintf("%s processor returned no metadata", meta.ItemType()), nil)
		}
		if outcome.Metadata().ItemType() != meta.ItemType() {
			return Outcome{}, services.Wrap(services.ErrContract, "processing", "dispatch",
				fmt.Sprintf("%s processor returned %s metadata", meta.ItemType(), outcome.Metadata().ItemType()), nil)
		}
	}
	return outcome, nil
}

// HealthChecks runs HealthCheck on every processor that supports it, in type
// order.
func (r *Registry) HealthChecks(ctx context.Context) []Health {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Health
	for _, t := range workitem.AllTypes() {
		checker, ok := r.processors[t].(HealthChecker)
		if !ok {
			continue
		}
		out = append(out, checker.HealthCheck(ctx))
	}
	return out
}
