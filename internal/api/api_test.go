package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"futures/internal/api"
	"futures/internal/processing"
	"futures/internal/testsupport"
	"futures/internal/workflow"
	"futures/internal/workitem"
)

func TestFromItemExposesOperationAndFamily(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	item := testsupport.MustCreate(t, store, workitem.MicrositeMetadata{Type: workitem.OpCreateSite, MemberID: "1"})

	dto := api.FromItem(item)
	if dto.Operation != "create_site" || dto.Family != "integration" || dto.Status != "created" {
		t.Fatalf("unexpected dto: %+v", dto)
	}
	if dto.CreatedAt == "" {
		t.Fatal("expected created timestamp")
	}
	var meta map[string]any
	if err := json.Unmarshal(dto.Metadata, &meta); err != nil {
		t.Fatalf("metadata is not raw json: %v", err)
	}
	if meta["type"] != "create_site" {
		t.Fatalf("metadata type = %v", meta["type"])
	}

	callback := api.FromItem(&workitem.Item{ID: "x", Type: workitem.TypeMicrositeSiteAdded, Status: workitem.StatusFailed})
	if callback.Operation != "" || callback.Family != "callback" {
		t.Fatalf("unexpected callback dto: %+v", callback)
	}
}

func TestMergeStatsZeroFills(t *testing.T) {
	got := api.MergeStats(map[workitem.Status]int{workitem.StatusFailed: 2})
	want := map[string]int{"created": 0, "processed": 0, "completed": 0, "failed": 2}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("%s = %d, want %d", k, got[k], v)
		}
	}
}

func TestFromStatusSummary(t *testing.T) {
	last := &workitem.Item{ID: "last", Type: workitem.TypeAccounting, Status: workitem.StatusCompleted}
	status := api.FromStatusSummary(workflow.StatusSummary{
		Running:    true,
		Workers:    3,
		LastItem:   last,
		QueueStats: map[workitem.Status]int{workitem.StatusCreated: 4},
		Health:     []processing.Health{processing.Unhealthy("accounting", "live client not configured")},
	})
	if !status.Running || status.Workers != 3 || status.QueueStats["created"] != 4 {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status.LastItem == nil || status.LastItem.ID != "last" {
		t.Fatalf("last item = %+v", status.LastItem)
	}
	if len(status.Health) != 1 || status.Health[0].Ready {
		t.Fatalf("health = %+v", status.Health)
	}
}

func TestItemServiceDescribe(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	parent := testsupport.MustCreate(t, store, workitem.AccountingMetadata{Type: workitem.OpUpsertCustomer, MemberID: "1"})
	child := testsupport.MustCreate(t, store, workitem.AccountingMetadata{Type: workitem.OpUpsertInvoice, MemberID: "1"}, parent.ID)
	svc := api.NewItemService(store)
	ctx := context.Background()

	resp, err := svc.Describe(ctx, child.ID)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if len(resp.Item.DependsOn) != 1 || resp.Item.DependsOn[0] != parent.ID {
		t.Fatalf("dependsOn = %v", resp.Item.DependsOn)
	}

	resp, err = svc.Describe(ctx, parent.ID)
	if err != nil {
		t.Fatalf("Describe parent: %v", err)
	}
	if len(resp.Dependents) != 1 || resp.Dependents[0].ID != child.ID {
		t.Fatalf("dependents = %+v", resp.Dependents)
	}

	if _, err := svc.Describe(ctx, "missing"); !errors.Is(err, workitem.ErrNotFound) {
		t.Fatalf("missing item error = %v", err)
	}

	items, err := svc.List(ctx, workitem.StatusCreated)
	if err != nil || len(items) != 2 {
		t.Fatalf("List = %d items, err %v", len(items), err)
	}
	stats, err := svc.Stats(ctx)
	if err != nil || stats["created"] != 2 {
		t.Fatalf("Stats = %v, err %v", stats, err)
	}
}
