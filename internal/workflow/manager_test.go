package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"futures/internal/domain"
	"futures/internal/events"
	"futures/internal/notifications"
	"futures/internal/processing"
	"futures/internal/services"
	"futures/internal/testsupport"
	"futures/internal/workflow"
	"futures/internal/workitem"
)

type handleFunc func(ctx context.Context, tx domain.Tx, meta workitem.Metadata, deps []workitem.Dependency) (processing.Outcome, error)

type stubProcessor struct {
	typ    workitem.Type
	handle handleFunc
}

func (s stubProcessor) Type() workitem.Type { return s.typ }

func (s stubProcessor) Handle(ctx context.Context, _ *slog.Logger, tx domain.Tx, meta workitem.Metadata, deps []workitem.Dependency) (processing.Outcome, error) {
	if s.handle == nil {
		return processing.Done(meta), nil
	}
	return s.handle(ctx, tx, meta, deps)
}

type recordingNotifier struct {
	mu       sync.Mutex
	failures []notifications.ItemFailure
	started  int
	drained  int
}

func (r *recordingNotifier) NotifyItemFailed(_ context.Context, f notifications.ItemFailure) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, f)
	return nil
}

func (r *recordingNotifier) NotifyQueueStarted(context.Context, int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
	return nil
}

func (r *recordingNotifier) NotifyQueueCompleted(context.Context, int, int, time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drained++
	return nil
}

func (r *recordingNotifier) NotifyError(context.Context, error, string) error { return nil }
func (r *recordingNotifier) TestNotification(context.Context) error           { return nil }

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingPublisher) Publish(_ context.Context, evs ...events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evs...)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

func (r *recordingPublisher) statuses(itemID string) []workitem.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []workitem.Status
	for _, ev := range r.events {
		if ev.ItemID == itemID {
			out = append(out, ev.Status)
		}
	}
	return out
}

type harness struct {
	store     *workitem.Store
	manager   *workflow.Manager
	notifier  *recordingNotifier
	publisher *recordingPublisher
}

// newHarness registers a pass-through processor for every type, replaced by
// overrides where given.
func newHarness(t *testing.T, callTimeout int, overrides ...stubProcessor) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(2))
	cfg.Workflow.CallTimeout = callTimeout
	cfg.Workflow.NotReadyDelay = 3600
	store := testsupport.MustOpenStore(t, cfg)

	byType := map[workitem.Type]stubProcessor{}
	for _, typ := range workitem.AllTypes() {
		byType[typ] = stubProcessor{typ: typ}
	}
	for _, o := range overrides {
		byType[o.typ] = o
	}
	registry, err := processing.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	for _, p := range byType {
		if err := registry.Register(p); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}

	h := &harness{store: store, notifier: &recordingNotifier{}, publisher: &recordingPublisher{}}
	h.manager = workflow.NewManager(cfg, store, registry, nil,
		workflow.WithNotifier(h.notifier),
		workflow.WithEvents(h.publisher),
	)
	return h
}

func (h *harness) get(t *testing.T, id string) *workitem.Item {
	t.Helper()
	item, err := h.store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get %s: %v", id, err)
	}
	return item
}

func (h *harness) processNext(t *testing.T) {
	t.Helper()
	worked, err := h.manager.ProcessNext(context.Background())
	if err != nil {
		t.Fatalf("ProcessNext: %v", err)
	}
	if !worked {
		t.Fatal("expected a ready item")
	}
}

func withResponse(_ context.Context, _ domain.Tx, meta workitem.Metadata, _ []workitem.Dependency) (processing.Outcome, error) {
	m := meta.(workitem.MicrositeMetadata)
	m.Response = &workitem.MicrositeResponse{ID: "user-1"}
	return processing.Done(m), nil
}

func TestIntegrationSpawnsCallbackAndCompletesAfterIt(t *testing.T) {
	h := newHarness(t, 5, stubProcessor{typ: workitem.TypeMicrosite, handle: withResponse})
	ctx := context.Background()

	root, err := h.store.Create(ctx, workitem.Spec{
		Type:    workitem.TypeMicrosite,
		Subject: "buyer:7",
		Metadata: workitem.MicrositeMetadata{
			Type:     workitem.OpEnsureUserExists,
			MemberID: "1",
			Refs:     workitem.Refs{BuyerRelID: 7},
		},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	h.processNext(t)
	if got := h.get(t, root.ID).Status; got != workitem.StatusProcessed {
		t.Fatalf("root status after integration = %s, want processed", got)
	}
	dependents, err := h.store.Dependents(ctx, root.ID)
	if err != nil {
		t.Fatalf("Dependents: %v", err)
	}
	if len(dependents) != 1 || dependents[0].Type != workitem.TypeMicrositeUserSynced {
		t.Fatalf("expected one user_synced follow-on, got %+v", dependents)
	}
	callback := dependents[0]
	if callback.Subject != "buyer:7" {
		t.Fatalf("follow-on subject = %q, want buyer:7", callback.Subject)
	}
	meta, err := callback.Metadata()
	if err != nil {
		t.Fatalf("Metadata: %v", err)
	}
	if synced := meta.(workitem.MicrositeUserSyncedMetadata); synced.BuyerRelID != 7 {
		t.Fatalf("follow-on buyer = %d, want 7", synced.BuyerRelID)
	}

	h.processNext(t)
	for _, id := range []string{root.ID, callback.ID} {
		if got := h.get(t, id).Status; got != workitem.StatusCompleted {
			t.Fatalf("%s status = %s, want completed", id, got)
		}
	}
	if got := h.publisher.statuses(root.ID); len(got) != 2 || got[0] != workitem.StatusProcessed || got[1] != workitem.StatusCompleted {
		t.Fatalf("root events = %v, want [processed completed]", got)
	}
	if got := h.publisher.statuses(callback.ID); len(got) != 2 || got[0] != workitem.StatusCreated || got[1] != workitem.StatusCompleted {
		t.Fatalf("callback events = %v, want [created completed]", got)
	}
}

func TestParentCompletesOnlyAfterEveryChild(t *testing.T) {
	cases := []struct {
		name  string
		order []int
	}{
		{name: "first child first", order: []int{0, 1}},
		{name: "second child first", order: []int{1, 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, 5)
			ctx := context.Background()
			parent := testsupport.MustCreate(t, h.store, workitem.AccountingMetadata{Type: workitem.OpUpsertCustomer, MemberID: "1"})
			h.processNext(t)
			if got := h.get(t, parent.ID).Status; got != workitem.StatusCompleted {
				t.Fatalf("childless parent status = %s, want completed", got)
			}

			parent = testsupport.MustCreate(t, h.store, workitem.AccountingMetadata{Type: workitem.OpUpsertCustomer, MemberID: "1"})
			var children [2]*workitem.Item
			for _, idx := range tc.order {
				children[idx] = testsupport.MustCreate(t, h.store,
					workitem.AccountingMetadata{Type: workitem.OpUpsertInvoice, MemberID: "1"}, parent.ID)
			}

			h.processNext(t)
			if got := h.get(t, parent.ID).Status; got != workitem.StatusProcessed {
				t.Fatalf("parent status = %s, want processed", got)
			}
			h.processNext(t)
			if got := h.get(t, parent.ID).Status; got != workitem.StatusProcessed {
				t.Fatalf("parent status with one child outstanding = %s, want processed", got)
			}
			h.processNext(t)
			for _, item := range []*workitem.Item{parent, children[0], children[1]} {
				if got := h.get(t, item.ID).Status; got != workitem.StatusCompleted {
					t.Fatalf("%s status = %s, want completed", item.ID, got)
				}
			}
			if worked, err := h.manager.ProcessNext(ctx); err != nil || worked {
				t.Fatalf("expected empty queue, worked=%v err=%v", worked, err)
			}
		})
	}
}

func TestNotReadyReleasesLeaseAndDefers(t *testing.T) {
	h := newHarness(t, 5, stubProcessor{
		typ: workitem.TypeAccounting,
		handle: func(context.Context, domain.Tx, workitem.Metadata, []workitem.Dependency) (processing.Outcome, error) {
			return processing.NotReady(), nil
		},
	})
	item := testsupport.MustCreate(t, h.store, workitem.AccountingMetadata{Type: workitem.OpUpsertCustomer, MemberID: "1"})

	before := time.Now().UTC()
	h.processNext(t)

	got := h.get(t, item.ID)
	if got.Status != workitem.StatusCreated {
		t.Fatalf("status = %s, want created", got.Status)
	}
	if got.LeaseOwner != "" {
		t.Fatalf("lease owner = %q, want released", got.LeaseOwner)
	}
	if got.NotBefore == nil || !got.NotBefore.After(before.Add(30*time.Minute)) {
		t.Fatalf("not_before = %v, want about an hour out", got.NotBefore)
	}
	if got.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", got.Attempts)
	}
	if worked, err := h.manager.ProcessNext(context.Background()); err != nil || worked {
		t.Fatalf("deferred item claimed again: worked=%v err=%v", worked, err)
	}
	if len(h.notifier.failures) != 0 {
		t.Fatalf("deferral should not notify, got %+v", h.notifier.failures)
	}
}

func TestFailureMarksOnlyTheFailingItem(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		kind      string
		retriable bool
	}{
		{
			name:      "provider server error",
			err:       &services.ProviderError{Provider: "accounting", Status: http.StatusBadGateway, Message: "upstream down"},
			kind:      "provider",
			retriable: true,
		},
		{
			name:      "validation",
			err:       services.Wrap(services.ErrValidation, "accounting", "upsert invoice", "invoice has no lines", nil),
			kind:      "validation",
			retriable: false,
		},
		{
			name:      "not implemented",
			err:       services.Wrap(services.ErrNotImplemented, "accounting", "dispatch", "unsupported", nil),
			kind:      "not_implemented",
			retriable: false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, 5, stubProcessor{
				typ: workitem.TypeAccounting,
				handle: func(_ context.Context, _ domain.Tx, meta workitem.Metadata, _ []workitem.Dependency) (processing.Outcome, error) {
					if meta.(workitem.AccountingMetadata).Type == workitem.OpUpsertInvoice {
						return processing.Outcome{}, tc.err
					}
					return processing.Done(meta), nil
				},
			})
			parent := testsupport.MustCreate(t, h.store, workitem.AccountingMetadata{Type: workitem.OpUpsertCustomer, MemberID: "1"})
			failing := testsupport.MustCreate(t, h.store, workitem.AccountingMetadata{Type: workitem.OpUpsertInvoice, MemberID: "1"}, parent.ID)
			child := testsupport.MustCreate(t, h.store, workitem.AccountingMetadata{Type: workitem.OpRecordInvoicePayment, MemberID: "1"}, failing.ID)

			count, err := h.manager.Drain(context.Background())
			if err != nil {
				t.Fatalf("Drain: %v", err)
			}
			if count != 2 {
				t.Fatalf("processed %d items, want 2", count)
			}

			failed := h.get(t, failing.ID)
			if failed.Status != workitem.StatusFailed {
				t.Fatalf("status = %s, want failed", failed.Status)
			}
			if failed.Retriable != tc.retriable {
				t.Fatalf("retriable = %v, want %v", failed.Retriable, tc.retriable)
			}
			if failed.ErrorMessage == "" {
				t.Fatal("expected an error message")
			}
			if got := h.get(t, parent.ID).Status; got != workitem.StatusProcessed {
				t.Fatalf("parent status = %s, want processed", got)
			}
			if got := h.get(t, child.ID).Status; got != workitem.StatusCreated {
				t.Fatalf("dependent status = %s, want created", got)
			}
			if len(h.notifier.failures) != 1 || h.notifier.failures[0].ItemID != failing.ID {
				t.Fatalf("failure notifications = %+v", h.notifier.failures)
			}
			if h.notifier.failures[0].Operation != string(workitem.OpUpsertInvoice) {
				t.Fatalf("notified operation = %q", h.notifier.failures[0].Operation)
			}
			if got := h.publisher.statuses(failing.ID); len(got) != 1 || got[0] != workitem.StatusFailed {
				t.Fatalf("failing item events = %v, want [failed]", got)
			}
		})
	}
}

func TestCallTimeoutFailsRetriable(t *testing.T) {
	h := newHarness(t, 1, stubProcessor{
		typ: workitem.TypeAccounting,
		handle: func(ctx context.Context, _ domain.Tx, _ workitem.Metadata, _ []workitem.Dependency) (processing.Outcome, error) {
			<-ctx.Done()
			return processing.Outcome{}, services.Wrap(services.ErrTimeout, "accounting", "upsert customer", "request timed out", ctx.Err())
		},
	})
	item := testsupport.MustCreate(t, h.store, workitem.AccountingMetadata{Type: workitem.OpUpsertCustomer, MemberID: "1"})

	h.processNext(t)

	got := h.get(t, item.ID)
	if got.Status != workitem.StatusFailed || !got.Retriable {
		t.Fatalf("status=%s retriable=%v, want failed and retriable", got.Status, got.Retriable)
	}
}

func TestCallbackFailureRollsBackDomainWrites(t *testing.T) {
	var buyerID int64
	h := newHarness(t, 5, stubProcessor{
		typ: workitem.TypeMicrositeUserSynced,
		handle: func(ctx context.Context, tx domain.Tx, meta workitem.Metadata, _ []workitem.Dependency) (processing.Outcome, error) {
			if err := tx.SetMicrositeUserID(ctx, buyerID, "user-1"); err != nil {
				return processing.Outcome{}, err
			}
			return processing.Outcome{}, services.Wrap(services.ErrContract, "callback", "user synced", "broken response", nil)
		},
	})
	ctx := context.Background()
	err := h.store.WriteTx(ctx, func(tx *workitem.Tx) error {
		var err error
		buyerID, err = domain.NewTx(tx.SQL(), true).CreateMemberRelationship(ctx, domain.MemberRelationship{MemberID: "1", BuyerEmail: "b@example.com"})
		return err
	})
	if err != nil {
		t.Fatalf("seed buyer: %v", err)
	}
	item := testsupport.MustCreate(t, h.store, workitem.MicrositeUserSyncedMetadata{BuyerRelID: buyerID})

	h.processNext(t)

	if got := h.get(t, item.ID).Status; got != workitem.StatusFailed {
		t.Fatalf("status = %s, want failed", got)
	}
	err = h.store.ReadTx(ctx, func(tx *workitem.Tx) error {
		rel, err := domain.NewTx(tx.SQL(), false).LoadMemberRelationship(ctx, buyerID)
		if err != nil {
			return err
		}
		if rel.MicrositeUserID != "" {
			t.Errorf("microsite user id = %q, want rolled back", rel.MicrositeUserID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("read buyer: %v", err)
	}
}

func TestLostLeaseDiscardsResult(t *testing.T) {
	var h *harness
	h = newHarness(t, 5, stubProcessor{
		typ: workitem.TypeAccounting,
		handle: func(ctx context.Context, _ domain.Tx, meta workitem.Metadata, _ []workitem.Dependency) (processing.Outcome, error) {
			if _, err := h.store.ReclaimStale(ctx, time.Now().UTC().Add(time.Hour)); err != nil {
				return processing.Outcome{}, err
			}
			return processing.Done(meta), nil
		},
	})
	item := testsupport.MustCreate(t, h.store, workitem.AccountingMetadata{Type: workitem.OpUpsertCustomer, MemberID: "1"})

	h.processNext(t)

	got := h.get(t, item.ID)
	if got.Status != workitem.StatusCreated || got.LeaseOwner != "" {
		t.Fatalf("status=%s owner=%q, want created and unleased", got.Status, got.LeaseOwner)
	}
	if len(h.notifier.failures) != 0 {
		t.Fatalf("lost lease should not fail the item, got %+v", h.notifier.failures)
	}
}

func TestStartProcessesQueueUntilStopped(t *testing.T) {
	h := newHarness(t, 5, stubProcessor{typ: workitem.TypeMicrosite, handle: withResponse})
	ctx := context.Background()

	var ids []string
	for i := range 3 {
		item, err := h.store.Create(ctx, workitem.Spec{
			Type:    workitem.TypeMicrosite,
			Subject: fmt.Sprintf("buyer:%d", i+1),
			Metadata: workitem.MicrositeMetadata{
				Type:     workitem.OpEnsureUserExists,
				MemberID: "1",
				Refs:     workitem.Refs{BuyerRelID: int64(i + 1)},
			},
		})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		ids = append(ids, item.ID)
	}

	if err := h.manager.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer h.manager.Stop()

	deadline := time.Now().Add(10 * time.Second)
	for {
		stats, err := h.store.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats: %v", err)
		}
		if stats[workitem.StatusCompleted] == 6 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("queue did not drain: %v", stats)
		}
		time.Sleep(50 * time.Millisecond)
	}
	for _, id := range ids {
		if got := h.get(t, id).Status; got != workitem.StatusCompleted {
			t.Fatalf("%s status = %s, want completed", id, got)
		}
	}

	status := h.manager.Status(ctx)
	if !status.Running || status.Workers != 2 {
		t.Fatalf("status = %+v", status)
	}
	h.manager.Stop()
	if h.manager.Status(ctx).Running {
		t.Fatal("expected manager to stop")
	}
	if err := h.manager.Start(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
}

func TestStartRejectsIncompleteRegistry(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	registry, err := processing.NewRegistry(stubProcessor{typ: workitem.TypeMicrosite})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	manager := workflow.NewManager(cfg, store, registry, nil)
	err = manager.Start(context.Background())
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("Start error = %v, want configuration error", err)
	}
}
