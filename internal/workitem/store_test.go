package workitem_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"futures/internal/testsupport"
	"futures/internal/workitem"
)

func micrositeMeta(op workitem.Operation) workitem.MicrositeMetadata {
	return workitem.MicrositeMetadata{Type: op, MemberID: "1", Payload: workitem.MicrositePayload{Email: "buyer@example.com"}}
}

func TestCreateValidatesTypeAndDependencies(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	item := testsupport.MustCreate(t, store, micrositeMeta(workitem.OpEnsureUserExists))
	if item.Status != workitem.StatusCreated {
		t.Fatalf("expected created status, got %s", item.Status)
	}
	if item.ID == "" {
		t.Fatal("expected id to be assigned")
	}

	if _, err := store.Create(ctx, workitem.Spec{Type: "bogus", Metadata: micrositeMeta(workitem.OpCreateSite)}); err == nil {
		t.Fatal("expected unknown type to be rejected")
	}
	if _, err := store.Create(ctx, workitem.Spec{
		Type:     workitem.TypeAccounting,
		Metadata: micrositeMeta(workitem.OpCreateSite),
	}); err == nil {
		t.Fatal("expected metadata/type mismatch to be rejected")
	}
	_, err := store.Create(ctx, workitem.Spec{
		Type:      workitem.TypeMicrositeUserSynced,
		Metadata:  workitem.MicrositeUserSyncedMetadata{BuyerRelID: 3},
		DependsOn: []string{"missing"},
	})
	if !errors.Is(err, workitem.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing dependency, got %v", err)
	}
	_, err = store.Create(ctx, workitem.Spec{
		Type:      workitem.TypeMicrositeUserSynced,
		Metadata:  workitem.MicrositeUserSyncedMetadata{BuyerRelID: 3},
		DependsOn: []string{item.ID, item.ID},
	})
	if err == nil {
		t.Fatal("expected duplicate dependency to be rejected")
	}
}

func TestTransitionsRejectIllegalMoves(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	cases := []struct {
		name  string
		steps []workitem.Status
		bad   workitem.Status
	}{
		{"created to completed", nil, workitem.StatusCompleted},
		{"processed to processed", []workitem.Status{workitem.StatusProcessed}, workitem.StatusProcessed},
		{"failed to processed", []workitem.Status{workitem.StatusFailed}, workitem.StatusProcessed},
		{"completed to failed", []workitem.Status{workitem.StatusProcessed, workitem.StatusCompleted}, workitem.StatusFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			item := testsupport.MustCreate(t, store, micrositeMeta(workitem.OpCreateSite))
			for _, step := range tc.steps {
				if err := store.Transition(ctx, item.ID, step); err != nil {
					t.Fatalf("transition to %s: %v", step, err)
				}
			}
			err := store.Transition(ctx, item.ID, tc.bad)
			if !errors.Is(err, workitem.ErrIllegalTransition) {
				t.Fatalf("expected ErrIllegalTransition, got %v", err)
			}
			var transitionErr *workitem.TransitionError
			if !errors.As(err, &transitionErr) || transitionErr.To != tc.bad {
				t.Fatalf("expected TransitionError to %s, got %#v", tc.bad, err)
			}
		})
	}
}

func TestSaveProcessedMergesResponse(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	item := testsupport.MustCreate(t, store, micrositeMeta(workitem.OpEnsureUserExists))
	updated := micrositeMeta(workitem.OpEnsureUserExists)
	updated.Payload.Email = "changed@example.com"
	updated.Response = &workitem.MicrositeResponse{ID: "11111"}
	testsupport.MustProcess(t, store, item.ID, updated)

	fetched, err := store.Get(ctx, item.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fetched.Status != workitem.StatusProcessed || fetched.ProcessedAt == nil {
		t.Fatalf("expected processed item with timestamp, got %#v", fetched)
	}
	meta, err := fetched.Metadata()
	if err != nil {
		t.Fatalf("Metadata: %v", err)
	}
	site, err := workitem.MetadataAs[workitem.MicrositeMetadata](meta)
	if err != nil {
		t.Fatalf("MetadataAs: %v", err)
	}
	if site.Payload.Email != "buyer@example.com" {
		t.Fatalf("expected original email to be kept, got %q", site.Payload.Email)
	}
	if site.Response == nil || site.Response.ID != "11111" {
		t.Fatalf("expected response to be merged, got %#v", site.Response)
	}
}

func TestSaveProcessedScrubsBankNumbers(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	stored := workitem.PaymentGatewayMetadata{
		Type:     workitem.OpAddBankAccount,
		MemberID: "1",
		Payload:  workitem.PaymentGatewayPayload{RoutingNumber: "021000021", AccountNumber: "123456789", Last4: "6789"},
	}
	item := testsupport.MustCreate(t, store, stored)

	created, err := store.Get(ctx, item.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !strings.Contains(string(created.MetadataJSON), "123456789") {
		t.Fatalf("pending item should keep the account number for processing: %s", created.MetadataJSON)
	}

	done := stored
	done.Payload.RoutingNumber, done.Payload.AccountNumber = "", ""
	done.Response = &workitem.PaymentGatewayResponse{ProfileID: "500", PaymentProfileID: "901"}
	testsupport.MustProcess(t, store, item.ID, done)

	fetched, err := store.Get(ctx, item.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	for _, secret := range []string{"021000021", "123456789", "routingNumber", "accountNumber"} {
		if strings.Contains(string(fetched.MetadataJSON), secret) {
			t.Fatalf("processed metadata still holds %q: %s", secret, fetched.MetadataJSON)
		}
	}
	meta, err := fetched.Metadata()
	if err != nil {
		t.Fatalf("Metadata: %v", err)
	}
	gw, err := workitem.MetadataAs[workitem.PaymentGatewayMetadata](meta)
	if err != nil {
		t.Fatalf("MetadataAs: %v", err)
	}
	if gw.Payload.Last4 != "6789" || gw.Response == nil || gw.Response.PaymentProfileID != "901" {
		t.Fatalf("scrub removed more than the bank numbers: %#v", gw)
	}
}

func TestResolveDependenciesRequiresProcessedPrerequisites(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := testsupport.MustCreate(t, store, micrositeMeta(workitem.OpEnsureUserExists))
	second := testsupport.MustCreate(t, store, micrositeMeta(workitem.OpCreateSite))
	child := testsupport.MustCreate(t, store, micrositeMeta(workitem.OpPublishSite), second.ID, first.ID)

	if _, err := store.ResolveDependencies(ctx, child.ID); !errors.Is(err, workitem.ErrDependenciesPending) {
		t.Fatalf("expected ErrDependenciesPending, got %v", err)
	}

	testsupport.MustProcess(t, store, first.ID, micrositeMeta(workitem.OpEnsureUserExists))
	testsupport.MustProcess(t, store, second.ID, micrositeMeta(workitem.OpCreateSite))

	deps, err := store.ResolveDependencies(ctx, child.ID)
	if err != nil {
		t.Fatalf("ResolveDependencies: %v", err)
	}
	if len(deps) != 2 || deps[0].ID != second.ID || deps[1].ID != first.ID {
		t.Fatalf("expected dependencies in declared order, got %#v", deps)
	}
	if _, ok := deps[0].Metadata.(workitem.MicrositeMetadata); !ok {
		t.Fatalf("expected typed metadata, got %T", deps[0].Metadata)
	}
}

func TestClaimHonoursDependenciesAndLeases(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	parent := testsupport.MustCreate(t, store, micrositeMeta(workitem.OpEnsureUserExists))
	child := testsupport.MustCreate(t, store, workitem.MicrositeUserSyncedMetadata{BuyerRelID: 9}, parent.ID)

	claimed, err := store.Claim(ctx, "worker-1")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if claimed == nil || claimed.ID != parent.ID {
		t.Fatalf("expected parent to be claimed first, got %#v", claimed)
	}
	if claimed.LeaseOwner != "worker-1" || claimed.Attempts != 1 {
		t.Fatalf("unexpected lease state: %#v", claimed)
	}

	none, err := store.Claim(ctx, "worker-2")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if none != nil {
		t.Fatalf("expected child to wait on its dependency, got %s", none.ID)
	}

	if err := store.Heartbeat(ctx, parent.ID, "worker-2"); !errors.Is(err, workitem.ErrLeaseLost) {
		t.Fatalf("expected ErrLeaseLost for foreign heartbeat, got %v", err)
	}
	testsupport.MustProcess(t, store, parent.ID, micrositeMeta(workitem.OpEnsureUserExists))

	next, err := store.Claim(ctx, "worker-2")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if next == nil || next.ID != child.ID {
		t.Fatalf("expected child to become ready, got %#v", next)
	}
}

func TestReleaseLeaseDefersClaim(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	item := testsupport.MustCreate(t, store, micrositeMeta(workitem.OpCreateSite))
	if _, err := store.Claim(ctx, "worker-1"); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	later := time.Now().Add(time.Hour)
	if err := store.ReleaseLease(ctx, item.ID, "worker-1", &later); err != nil {
		t.Fatalf("ReleaseLease: %v", err)
	}
	claimed, err := store.Claim(ctx, "worker-1")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if claimed != nil {
		t.Fatal("expected deferred item to stay unclaimed")
	}
	fetched, err := store.Get(ctx, item.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fetched.NotBefore == nil || fetched.LeaseOwner != "" {
		t.Fatalf("expected released lease with not_before, got %#v", fetched)
	}
}

func TestReclaimStaleReleasesExpiredLeases(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	item := testsupport.MustCreate(t, store, micrositeMeta(workitem.OpCreateSite))
	if _, err := store.Claim(ctx, "worker-1"); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	reclaimed, err := store.ReclaimStale(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("ReclaimStale: %v", err)
	}
	if reclaimed != 1 {
		t.Fatalf("expected one reclaimed lease, got %d", reclaimed)
	}
	claimed, err := store.Claim(ctx, "worker-2")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if claimed == nil || claimed.ID != item.ID || claimed.Attempts != 2 {
		t.Fatalf("expected item to be reclaimable, got %#v", claimed)
	}
}

func mustMeta(t *testing.T, item *workitem.Item) workitem.Metadata {
	t.Helper()
	meta, err := item.Metadata()
	if err != nil {
		t.Fatalf("decode metadata of %s: %v", item.ID, err)
	}
	return meta
}

func promote(t *testing.T, store *workitem.Store, id string) []string {
	t.Helper()
	var promoted []string
	err := store.WriteTx(context.Background(), func(tx *workitem.Tx) error {
		var err error
		promoted, err = tx.PromoteCompleted(context.Background(), id)
		return err
	})
	if err != nil {
		t.Fatalf("PromoteCompleted %s: %v", id, err)
	}
	return promoted
}

func statusOf(t *testing.T, store *workitem.Store, id string) workitem.Status {
	t.Helper()
	item, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get %s: %v", id, err)
	}
	return item.Status
}

func TestCompletionWaitsForEveryDependent(t *testing.T) {
	for _, order := range [][]int{{0, 1}, {1, 0}} {
		cfg := testsupport.NewConfig(t)
		store := testsupport.MustOpenStore(t, cfg)

		parent := testsupport.MustCreate(t, store, micrositeMeta(workitem.OpEnsureUserExists))
		children := []*workitem.Item{
			testsupport.MustCreate(t, store, workitem.MicrositeUserSyncedMetadata{BuyerRelID: 1}, parent.ID),
			testsupport.MustCreate(t, store, micrositeMeta(workitem.OpCreateSite), parent.ID),
		}
		testsupport.MustProcess(t, store, parent.ID, micrositeMeta(workitem.OpEnsureUserExists))
		if got := promote(t, store, parent.ID); len(got) != 0 {
			t.Fatalf("expected parent with open dependents to stay processed, got %v", got)
		}

		first, second := children[order[0]], children[order[1]]
		testsupport.MustProcess(t, store, first.ID, mustMeta(t, first))
		promoted := promote(t, store, first.ID)
		if len(promoted) != 1 || promoted[0] != first.ID {
			t.Fatalf("expected only %s promoted, got %v", first.ID, promoted)
		}
		if status := statusOf(t, store, parent.ID); status != workitem.StatusProcessed {
			t.Fatalf("expected parent processed while sibling open, got %s", status)
		}

		testsupport.MustProcess(t, store, second.ID, mustMeta(t, second))
		promoted = promote(t, store, second.ID)
		if len(promoted) != 2 || promoted[1] != parent.ID {
			t.Fatalf("expected second child then parent promoted, got %v", promoted)
		}
		if status := statusOf(t, store, parent.ID); status != workitem.StatusCompleted {
			t.Fatalf("expected parent completed, got %s", status)
		}
	}
}

func TestChildlessProcessedItemCompletesImmediately(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	item := testsupport.MustCreate(t, store, micrositeMeta(workitem.OpEnsureUserExists))
	testsupport.MustProcess(t, store, item.ID, micrositeMeta(workitem.OpEnsureUserExists))
	promoted := promote(t, store, item.ID)
	if len(promoted) != 1 || promoted[0] != item.ID {
		t.Fatalf("expected %s promoted, got %v", item.ID, promoted)
	}
}

func TestCompletionFoldsUpAChain(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	root := testsupport.MustCreate(t, store, micrositeMeta(workitem.OpEnsureUserExists))
	middle := testsupport.MustCreate(t, store, micrositeMeta(workitem.OpCreateSite), root.ID)
	leaf := testsupport.MustCreate(t, store, workitem.MicrositeSiteAddedMetadata{InternalOrderID: 4}, middle.ID)
	for _, item := range []*workitem.Item{root, middle, leaf} {
		testsupport.MustProcess(t, store, item.ID, mustMeta(t, item))
	}

	promoted := promote(t, store, leaf.ID)
	want := []string{leaf.ID, middle.ID, root.ID}
	if len(promoted) != len(want) {
		t.Fatalf("expected %v promoted, got %v", want, promoted)
	}
	for i := range want {
		if promoted[i] != want[i] {
			t.Fatalf("expected %v promoted, got %v", want, promoted)
		}
	}
}

func TestRetryReplacesFailedItem(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	parent := testsupport.MustCreate(t, store, micrositeMeta(workitem.OpEnsureUserExists))
	failed := testsupport.MustCreate(t, store, micrositeMeta(workitem.OpCreateSite), parent.ID)
	dependent := testsupport.MustCreate(t, store, workitem.MicrositeSiteAddedMetadata{InternalOrderID: 2}, failed.ID)

	if err := store.Fail(ctx, failed.ID, workitem.Failure{Message: "validation failed", Retriable: false}); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if _, err := store.Retry(ctx, failed.ID, false); !errors.Is(err, workitem.ErrNotRetriable) {
		t.Fatalf("expected ErrNotRetriable, got %v", err)
	}

	replacement, err := store.Retry(ctx, failed.ID, true)
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if replacement.Status != workitem.StatusCreated || replacement.Type != failed.Type {
		t.Fatalf("unexpected replacement: %#v", replacement)
	}

	deps, err := store.Dependencies(ctx, replacement.ID)
	if err != nil {
		t.Fatalf("Dependencies: %v", err)
	}
	if len(deps) != 1 || deps[0].ID != parent.ID {
		t.Fatalf("expected replacement to keep dependency on parent, got %#v", deps)
	}
	deps, err = store.Dependencies(ctx, dependent.ID)
	if err != nil {
		t.Fatalf("Dependencies: %v", err)
	}
	if len(deps) != 1 || deps[0].ID != replacement.ID {
		t.Fatalf("expected dependent to point at replacement, got %#v", deps)
	}

	old, err := store.Get(ctx, failed.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if old.Status != workitem.StatusFailed || old.SupersededBy != replacement.ID {
		t.Fatalf("expected failed item to be superseded, got %#v", old)
	}
	if _, err := store.Retry(ctx, failed.ID, true); err == nil {
		t.Fatal("expected second retry of superseded item to fail")
	}
}

func TestPurgeCompletedKeepsReferencedItems(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	done := testsupport.MustCreate(t, store, micrositeMeta(workitem.OpEnsureUserExists))
	testsupport.MustProcess(t, store, done.ID, mustMeta(t, done))
	promote(t, store, done.ID)

	open := testsupport.MustCreate(t, store, micrositeMeta(workitem.OpCreateSite))

	purged, err := store.PurgeCompleted(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("PurgeCompleted: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected one purged item, got %d", purged)
	}
	if _, err := store.Get(ctx, done.ID); !errors.Is(err, workitem.ErrNotFound) {
		t.Fatalf("expected purged item to be gone, got %v", err)
	}
	if _, err := store.Get(ctx, open.ID); err != nil {
		t.Fatalf("expected open item to remain: %v", err)
	}
}

func TestStatsCountsByStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	a := testsupport.MustCreate(t, store, micrositeMeta(workitem.OpEnsureUserExists))
	testsupport.MustCreate(t, store, micrositeMeta(workitem.OpCreateSite))
	if err := store.Fail(ctx, a.ID, workitem.Failure{Message: "boom", Retriable: true}); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[workitem.StatusCreated] != 1 || stats[workitem.StatusFailed] != 1 {
		t.Fatalf("unexpected stats: %#v", stats)
	}
}
