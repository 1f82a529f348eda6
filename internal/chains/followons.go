package chains

import "futures/internal/workitem"

// FollowOns returns the callback items to create when the integration item
// is processed with meta. An integration that completed without a response
// spawns nothing.
func FollowOns(item *workitem.Item, meta workitem.Metadata) []workitem.Spec {
	next, ok := followOn(meta)
	if !ok {
		return nil
	}
	return []workitem.Spec{{
		Type:      next.ItemType(),
		Subject:   item.Subject,
		Metadata:  next,
		DependsOn: []string{item.ID},
	}}
}

func followOn(meta workitem.Metadata) (workitem.Metadata, bool) {
	switch m := meta.(type) {
	case workitem.MicrositeMetadata:
		if m.Response == nil {
			return nil, false
		}
		switch m.Type {
		case workitem.OpEnsureUserExists:
			return workitem.MicrositeUserSyncedMetadata{BuyerRelID: m.Refs.BuyerRelID}, true
		case workitem.OpCreateSite:
			return workitem.MicrositeSiteAddedMetadata{InternalOrderID: m.Refs.InternalOrderID}, true
		case workitem.OpAddDeliverableToSite:
			return workitem.MicrositeDeliverableAddedMetadata{
				InternalOrderID:       m.Refs.InternalOrderID,
				InternalDeliverableID: m.Refs.InternalDeliverableID,
			}, true
		case workitem.OpPublishSite:
			return workitem.MicrositeSitePublishedMetadata{InternalOrderID: m.Refs.InternalOrderID}, true
		}
	case workitem.CardProcessorMetadata:
		if m.Response != nil && m.Type == workitem.OpAddPaymentMethod {
			return paymentSourceAdded(m.Refs), true
		}
	case workitem.PaymentGatewayMetadata:
		if m.Response != nil && (m.Type == workitem.OpAddCard || m.Type == workitem.OpAddBankAccount) {
			return paymentSourceAdded(m.Refs), true
		}
	case workitem.AccountingMetadata:
		if m.Response == nil {
			return nil, false
		}
		switch m.Type {
		case workitem.OpUpsertCustomer:
			return workitem.AccountingCustomerSyncedMetadata{BuyerRelID: m.Refs.BuyerRelID}, true
		case workitem.OpUpsertInvoice:
			return workitem.AccountingInvoiceSyncedMetadata{InternalInvoiceID: m.Refs.InternalInvoiceID}, true
		case workitem.OpRecordInvoicePayment:
			return workitem.AccountingPaymentRecordedMetadata{InternalInvoicePaymentID: m.Refs.InternalInvoicePaymentID}, true
		}
	}
	return nil, false
}

func paymentSourceAdded(refs workitem.Refs) workitem.PaymentSourceAddedMetadata {
	return workitem.PaymentSourceAddedMetadata{
		BuyerRelID: refs.BuyerRelID,
		Payload:    workitem.CallbackPayload{SetDefault: refs.SetDefault},
	}
}
