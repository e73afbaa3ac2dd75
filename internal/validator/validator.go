// Package validator defines the pluggable validator contract and the
// name-keyed registry the engine resolves chains against.
package validator

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cedarwud/stagegate/pkg/types"
)

// Validator is the capability every pluggable check implements. Validate
// consumes a data payload plus the shared stage context and produces zero or
// more results. A returned error (or panic) never propagates past the
// engine: it is converted into a single ERROR/CRITICAL result naming the
// validator.
type Validator interface {
	Name() string
	Validate(ctx context.Context, data map[string]interface{}, vctx *types.ValidationContext) ([]types.ValidationResult, error)
}

// PreValidator optionally gates a validator before it runs. Returning false
// yields a single SKIPPED result instead of invoking Validate.
type PreValidator interface {
	PreValidate(data map[string]interface{}) bool
}

// PostValidator optionally post-processes a validator's results. Identity
// when not implemented.
type PostValidator interface {
	PostValidate(results []types.ValidationResult) []types.ValidationResult
}

// Registry is a name -> Validator lookup table. It is an explicit instance
// constructed by the caller; reads are safe under concurrent stage runs.
type Registry struct {
	mu         sync.RWMutex
	validators map[string]Validator
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{validators: make(map[string]Validator)}
}

// Register adds a validator under its name. Re-registering a name is an
// error; unregister first.
func (r *Registry) Register(v Validator) error {
	if v == nil || v.Name() == "" {
		return fmt.Errorf("validator must have a non-empty name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.validators[v.Name()]; exists {
		return fmt.Errorf("validator %q already registered", v.Name())
	}
	r.validators[v.Name()] = v
	return nil
}

// Unregister removes a validator by name. Removing an unknown name is a no-op.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.validators, name)
}

// Get returns the validator registered under name.
func (r *Registry) Get(name string) (Validator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.validators[name]
	return v, ok
}

// Names returns all registered validator names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.validators))
	for name := range r.validators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Func adapts a plain function into a Validator.
type Func struct {
	ValidatorName string
	Fn            func(ctx context.Context, data map[string]interface{}, vctx *types.ValidationContext) ([]types.ValidationResult, error)
}

// Name implements Validator.
func (f Func) Name() string { return f.ValidatorName }

// Validate implements Validator.
func (f Func) Validate(ctx context.Context, data map[string]interface{}, vctx *types.ValidationContext) ([]types.ValidationResult, error) {
	return f.Fn(ctx, data, vctx)
}
