package api

import (
	"context"

	"futures/internal/workitem"
)

// ItemReader abstracts the work item queries the API serves.
type ItemReader interface {
	List(ctx context.Context, statuses ...workitem.Status) ([]*workitem.Item, error)
	Stats(ctx context.Context) (map[workitem.Status]int, error)
	Get(ctx context.Context, id string) (*workitem.Item, error)
	Dependencies(ctx context.Context, id string) ([]*workitem.Item, error)
	Dependents(ctx context.Context, id string) ([]*workitem.Item, error)
}

// ItemService exposes read-only work item operations returning API DTOs.
type ItemService struct {
	store ItemReader
}

// NewItemService constructs an ItemService around the provided reader.
func NewItemService(store ItemReader) *ItemService {
	if store == nil {
		return nil
	}
	return &ItemService{store: store}
}

// List returns work items filtered by status.
func (s *ItemService) List(ctx context.Context, statuses ...workitem.Status) ([]Item, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	items, err := s.store.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return FromItems(items), nil
}

// Stats returns status counts keyed by status string.
func (s *ItemService) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeStats(stats), nil
}

// Describe fetches one item with its declared dependencies and its dependents.
func (s *ItemService) Describe(ctx context.Context, id string) (*ItemResponse, error) {
	if s == nil || s.store == nil {
		return nil, workitem.ErrNotFound
	}
	item, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	deps, err := s.store.Dependencies(ctx, id)
	if err != nil {
		return nil, err
	}
	dependents, err := s.store.Dependents(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := &ItemResponse{Item: FromItem(item), Dependents: FromItems(dependents)}
	for _, dep := range deps {
		resp.Item.DependsOn = append(resp.Item.DependsOn, dep.ID)
	}
	return resp, nil
}
