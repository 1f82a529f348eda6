package processing

import (
	"fmt"
	"slices"

	"futures/internal/services"
	"futures/internal/workitem"
)

// ExpectSingle asserts that exactly one dependency was supplied.
func ExpectSingle(deps []workitem.Dependency, owner workitem.Type) (workitem.Dependency, error) {
	if len(deps) != 1 {
		return workitem.Dependency{}, services.Wrap(services.ErrContract, string(owner), "resolve dependency",
			fmt.Sprintf("expected exactly one dependency, got %d", len(deps)), nil)
	}
	return deps[0], nil
}

// ExpectDependency asserts that exactly one dependency was supplied, that it
// has one of the accepted types, and that its sub-operation is one of ops
// when ops is non-empty.
func ExpectDependency(deps []workitem.Dependency, owner workitem.Type, accepted []workitem.Type, ops ...workitem.Operation) (workitem.Dependency, error) {
	dep, err := ExpectSingle(deps, owner)
	if err != nil {
		return workitem.Dependency{}, err
	}
	if !slices.Contains(accepted, dep.Type) {
		return workitem.Dependency{}, services.Wrap(services.ErrContract, string(owner), "resolve dependency",
			fmt.Sprintf("dependency %s has type %s, want one of %v", dep.ID, dep.Type, accepted), nil)
	}
	if len(ops) == 0 {
		return dep, nil
	}
	op, ok := workitem.SubOperation(dep.Metadata)
	if !ok || !slices.Contains(ops, op) {
		return workitem.Dependency{}, services.Wrap(services.ErrContract, string(owner), "resolve dependency",
			fmt.Sprintf("dependency %s has operation %q, want one of %v", dep.ID, op, ops), nil)
	}
	return dep, nil
}

// FindDependency returns the first dependency whose metadata is an M.
func FindDependency[M workitem.Metadata](deps []workitem.Dependency) (M, bool) {
	for _, dep := range deps {
		if meta, ok := dep.Metadata.(M); ok {
			return meta, true
		}
	}
	var zero M
	return zero, false
}

// FindDependencies returns every dependency whose metadata is an M, in
// declared order.
func FindDependencies[M workitem.Metadata](deps []workitem.Dependency) []M {
	var out []M
	for _, dep := range deps {
		if meta, ok := dep.Metadata.(M); ok {
			out = append(out, meta)
		}
	}
	return out
}
