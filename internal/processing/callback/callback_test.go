package callback_test

import (
	"context"
	"errors"
	"testing"

	"futures/internal/domain"
	"futures/internal/logging"
	"futures/internal/processing"
	"futures/internal/processing/callback"
	"futures/internal/services"
	"futures/internal/testsupport"
	"futures/internal/workitem"
)

type fixture struct {
	store   *workitem.Store
	buyerID int64
	orderID int64
	delivID int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: testsupport.MustOpenStore(t, testsupport.NewConfig(t))}
	f.write(t, func(ctx context.Context, tx domain.Tx) error {
		var err error
		if f.buyerID, err = tx.CreateMemberRelationship(ctx, domain.MemberRelationship{MemberID: "1", BuyerEmail: "b@example.com"}); err != nil {
			return err
		}
		if f.orderID, err = tx.CreateOrder(ctx, domain.Order{BuyerRelID: f.buyerID, Address: "1 Main St"}); err != nil {
			return err
		}
		f.delivID, err = tx.CreateDeliverable(ctx, domain.Deliverable{OrderID: f.orderID, Name: "tour.mp4", Kind: "video"})
		return err
	})
	return f
}

func (f *fixture) write(t *testing.T, fn func(context.Context, domain.Tx) error) {
	t.Helper()
	ctx := context.Background()
	err := f.store.WriteTx(ctx, func(tx *workitem.Tx) error {
		return fn(ctx, domain.NewTx(tx.SQL(), tx.Writable()))
	})
	if err != nil {
		t.Fatalf("write tx: %v", err)
	}
}

// run dispatches p in its own write transaction and returns the outcome and
// the handler error. The transaction is committed only when the handler
// succeeds.
func (f *fixture) run(t *testing.T, p processing.Processor, meta workitem.Metadata, deps ...workitem.Dependency) (processing.Outcome, error) {
	t.Helper()
	var (
		out       processing.Outcome
		handleErr error
	)
	ctx := context.Background()
	_ = f.store.WriteTx(ctx, func(tx *workitem.Tx) error {
		out, handleErr = p.Handle(ctx, logging.NewNop(), domain.NewTx(tx.SQL(), true), meta, deps)
		return handleErr
	})
	return out, handleErr
}

func (f *fixture) order(t *testing.T) *domain.Order {
	t.Helper()
	var order *domain.Order
	f.write(t, func(ctx context.Context, tx domain.Tx) error {
		var err error
		order, err = tx.LoadOrder(ctx, f.orderID)
		return err
	})
	return order
}

func micrositeDep(id string, op workitem.Operation, responseID workitem.ExternalID) workitem.Dependency {
	return workitem.Dependency{
		ID:     id,
		Type:   workitem.TypeMicrosite,
		Status: workitem.StatusProcessed,
		Metadata: workitem.MicrositeMetadata{
			Type:     op,
			MemberID: "1",
			Response: &workitem.MicrositeResponse{ID: responseID, Status: "draft"},
		},
	}
}

func TestCallbacksRejectWrongDependencyCount(t *testing.T) {
	f := newFixture(t)
	site := micrositeDep("a", workitem.OpCreateSite, "11111")
	meta := workitem.MicrositeSiteAddedMetadata{InternalOrderID: f.orderID}

	for name, deps := range map[string][]workitem.Dependency{
		"none": nil,
		"two":  {site, site},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.run(t, callback.MicrositeSiteAdded{}, meta, deps...)
			if !errors.Is(err, services.ErrContract) {
				t.Fatalf("expected ErrContract, got %v", err)
			}
			if got := f.order(t); got.MicrositeID != "" {
				t.Fatalf("order mutated: %#v", got)
			}
		})
	}
}

func TestCallbacksRejectWrongDependencyShape(t *testing.T) {
	f := newFixture(t)
	accounting := workitem.Dependency{
		ID:   "acct",
		Type: workitem.TypeAccounting,
		Metadata: workitem.AccountingMetadata{
			Type:     workitem.OpUpsertCustomer,
			Response: &workitem.AccountingResponse{ID: "11111"},
		},
	}
	cases := []struct {
		name string
		p    processing.Processor
		meta workitem.Metadata
		dep  workitem.Dependency
	}{
		{"wrong type", callback.MicrositeSiteAdded{}, workitem.MicrositeSiteAddedMetadata{InternalOrderID: f.orderID}, accounting},
		{"wrong operation", callback.MicrositeSiteAdded{}, workitem.MicrositeSiteAddedMetadata{InternalOrderID: f.orderID}, micrositeDep("a", workitem.OpPublishSite, "11111")},
		{"wrong accounting operation", callback.AccountingInvoiceSynced{}, workitem.AccountingInvoiceSyncedMetadata{InternalInvoiceID: 1}, accounting},
		{"missing response", callback.MicrositeUserSynced{}, workitem.MicrositeUserSyncedMetadata{BuyerRelID: f.buyerID}, workitem.Dependency{
			ID: "u", Type: workitem.TypeMicrosite, Metadata: workitem.MicrositeMetadata{Type: workitem.OpEnsureUserExists},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.run(t, tc.p, tc.meta, tc.dep); !errors.Is(err, services.ErrContract) {
				t.Fatalf("expected ErrContract, got %v", err)
			}
		})
	}
}

func TestSiteAddedWritesNumericIDBack(t *testing.T) {
	f := newFixture(t)
	// The provider answers with a JSON number.
	created, err := workitem.DecodeMetadata(workitem.TypeMicrosite,
		[]byte(`{"type":"create_site","memberId":"1","payload":{},"response":{"id":11111,"status":"draft"}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	dep := workitem.Dependency{ID: "a", Type: workitem.TypeMicrosite, Status: workitem.StatusProcessed, Metadata: created}
	out, err := f.run(t, callback.MicrositeSiteAdded{},
		workitem.MicrositeSiteAddedMetadata{InternalOrderID: f.orderID}, dep)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	order := f.order(t)
	if order.MicrositeID != "11111" || order.MicrositeStatus != "draft" {
		t.Fatalf("unexpected order: %#v", order)
	}
	got := out.Metadata().(workitem.MicrositeSiteAddedMetadata)
	if got.Response == nil || got.Response.ExternalID != "11111" {
		t.Fatalf("response = %#v", got.Response)
	}
}

func TestUserSyncedAndAccountingWriteBack(t *testing.T) {
	f := newFixture(t)
	if _, err := f.run(t, callback.MicrositeUserSynced{},
		workitem.MicrositeUserSyncedMetadata{BuyerRelID: f.buyerID},
		micrositeDep("u", workitem.OpEnsureUserExists, "11111")); err != nil {
		t.Fatalf("user synced: %v", err)
	}
	if _, err := f.run(t, callback.AccountingCustomerSynced{},
		workitem.AccountingCustomerSyncedMetadata{BuyerRelID: f.buyerID},
		workitem.Dependency{ID: "c", Type: workitem.TypeAccounting, Metadata: workitem.AccountingMetadata{
			Type: workitem.OpUpsertCustomer, Response: &workitem.AccountingResponse{ID: "42"},
		}}); err != nil {
		t.Fatalf("customer synced: %v", err)
	}
	f.write(t, func(ctx context.Context, tx domain.Tx) error {
		rel, err := tx.LoadMemberRelationship(ctx, f.buyerID)
		if err != nil {
			return err
		}
		if rel.MicrositeUserID != "11111" || rel.AccountingCustomerID != "42" {
			t.Fatalf("unexpected relationship: %#v", rel)
		}
		return nil
	})
}

func TestDeliverableAddedChecksOrderOwnership(t *testing.T) {
	f := newFixture(t)
	dep := micrositeDep("m", workitem.OpAddDeliverableToSite, "77")

	_, err := f.run(t, callback.MicrositeDeliverableAdded{},
		workitem.MicrositeDeliverableAddedMetadata{InternalOrderID: f.orderID + 100, InternalDeliverableID: f.delivID}, dep)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	if _, err := f.run(t, callback.MicrositeDeliverableAdded{},
		workitem.MicrositeDeliverableAddedMetadata{InternalOrderID: f.orderID, InternalDeliverableID: f.delivID}, dep); err != nil {
		t.Fatalf("handle: %v", err)
	}
	f.write(t, func(ctx context.Context, tx domain.Tx) error {
		d, err := tx.LoadDeliverable(ctx, f.delivID)
		if err != nil {
			return err
		}
		if d.MicrositeMediaID != "77" {
			t.Fatalf("unexpected deliverable: %#v", d)
		}
		return nil
	})
}

func TestPaymentSourceAddedKeepsSingleDefault(t *testing.T) {
	f := newFixture(t)
	card := func(id workitem.ExternalID) workitem.Dependency {
		return workitem.Dependency{ID: string(id), Type: workitem.TypeCardProcessor, Metadata: workitem.CardProcessorMetadata{
			Type:     workitem.OpAddPaymentMethod,
			Test:     true,
			Response: &workitem.CardProcessorResponse{ID: id, Brand: "Visa", Last4: "4242", ExpMonth: 1, ExpYear: 2031},
		}}
	}
	bank := workitem.Dependency{ID: "bank", Type: workitem.TypePaymentGateway, Metadata: workitem.PaymentGatewayMetadata{
		Type:     workitem.OpAddBankAccount,
		Payload:  workitem.PaymentGatewayPayload{Last4: "6789"},
		Response: &workitem.PaymentGatewayResponse{ProfileID: "500", PaymentProfileID: "900"},
	}}

	steps := []struct {
		dep        workitem.Dependency
		setDefault bool
	}{
		{card("pm_1"), true},
		{card("pm_2"), false},
		{bank, true},
	}
	for _, step := range steps {
		meta := workitem.PaymentSourceAddedMetadata{BuyerRelID: f.buyerID, Payload: workitem.CallbackPayload{SetDefault: step.setDefault}}
		out, err := f.run(t, callback.PaymentSourceAdded{}, meta, step.dep)
		if err != nil {
			t.Fatalf("add %s: %v", step.dep.ID, err)
		}
		if res := out.Metadata().(workitem.PaymentSourceAddedMetadata).Response; res == nil || res.InternalID == 0 {
			t.Fatalf("missing response for %s", step.dep.ID)
		}
	}

	f.write(t, func(ctx context.Context, tx domain.Tx) error {
		sources, err := tx.PaymentSources(ctx, f.buyerID)
		if err != nil {
			return err
		}
		if len(sources) != 3 {
			t.Fatalf("expected 3 sources, got %d", len(sources))
		}
		defaults := 0
		for _, s := range sources {
			if s.IsDefault {
				defaults++
				if s.ExternalID != "500/900" || s.Kind != domain.PaymentSourceBankAccount || s.Last4 != "6789" {
					t.Fatalf("wrong default source: %#v", s)
				}
			}
		}
		if defaults != 1 {
			t.Fatalf("expected exactly one default, got %d", defaults)
		}
		return nil
	})
}

func TestPaymentSourceAddedReusesRecoveredDuplicate(t *testing.T) {
	f := newFixture(t)
	var storedID int64
	f.write(t, func(ctx context.Context, tx domain.Tx) error {
		var err error
		storedID, err = tx.InsertPaymentSource(ctx, domain.PaymentSource{
			BuyerRelID: f.buyerID, Kind: domain.PaymentSourceCard, Brand: "Visa", Last4: "4242",
			ExternalID: "500/12345", Test: true,
		})
		if err != nil {
			return err
		}
		_, err = tx.InsertPaymentSource(ctx, domain.PaymentSource{
			BuyerRelID: f.buyerID, Kind: domain.PaymentSourceCard, ExternalID: "pm_old", IsDefault: true, Test: true,
		})
		return err
	})

	dup := workitem.Dependency{ID: "dup", Type: workitem.TypePaymentGateway, Metadata: workitem.PaymentGatewayMetadata{
		Type:     workitem.OpAddCard,
		Test:     true,
		Response: &workitem.PaymentGatewayResponse{ProfileID: "500", PaymentProfileID: "12345", Status: "duplicate", Brand: "Visa", Last4: "4242"},
	}}
	tests := []struct {
		name       string
		setDefault bool
	}{
		{"plain retry", false},
		{"retry as default", true},
		{"already default", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			meta := workitem.PaymentSourceAddedMetadata{BuyerRelID: f.buyerID, Payload: workitem.CallbackPayload{SetDefault: tc.setDefault}}
			out, err := f.run(t, callback.PaymentSourceAdded{}, meta, dup)
			if err != nil {
				t.Fatalf("handle: %v", err)
			}
			res := out.Metadata().(workitem.PaymentSourceAddedMetadata).Response
			if res == nil || res.InternalID != storedID || res.ExternalID != "500/12345" {
				t.Fatalf("expected stored source %d to be reused, got %#v", storedID, res)
			}
		})
	}

	f.write(t, func(ctx context.Context, tx domain.Tx) error {
		sources, err := tx.PaymentSources(ctx, f.buyerID)
		if err != nil {
			return err
		}
		if len(sources) != 2 {
			t.Fatalf("expected no new rows, got %#v", sources)
		}
		for _, s := range sources {
			if s.IsDefault != (s.ID == storedID) {
				t.Fatalf("default should have moved to the reused source: %#v", sources)
			}
		}
		return nil
	})
}

func TestCallbackProcessorsCoverEveryCallbackType(t *testing.T) {
	seen := map[workitem.Type]bool{}
	for _, p := range callback.Processors() {
		seen[p.Type()] = true
	}
	for _, typ := range workitem.AllTypes() {
		if typ.Family() == workitem.FamilyCallback && !seen[typ] {
			t.Fatalf("no processor for %s", typ)
		}
	}
}
