package workitem

// MicrositePayload is the input of a microsite sub-operation. Fields left
// empty may be defaulted from dependency outputs.
type MicrositePayload struct {
	UserID       ExternalID   `json:"userId,omitempty"`
	Email        string       `json:"email,omitempty"`
	FirstName    string       `json:"firstName,omitempty"`
	LastName     string       `json:"lastName,omitempty"`
	Phone        string       `json:"phone,omitempty"`
	SiteID       ExternalID   `json:"siteId,omitempty"`
	Title        string       `json:"title,omitempty"`
	Address      string       `json:"address,omitempty"`
	MediaName    string       `json:"mediaName,omitempty"`
	MediaKind    string       `json:"mediaKind,omitempty"`
	MediaURL     string       `json:"mediaUrl,omitempty"`
	MediaIDs     []ExternalID `json:"mediaIds,omitempty"`
	PublishAfter bool         `json:"publishAfter,omitempty"`
	// Placements lists every deliverable a sort covers, including ones still
	// being attached whose media id comes from a dependency.
	Placements []MediaPlacement `json:"placements,omitempty"`
}

// MediaPlacement is one deliverable's slot in a site's media order.
type MediaPlacement struct {
	DeliverableID int64      `json:"deliverableId"`
	SortOrder     int        `json:"sortOrder"`
	MediaID       ExternalID `json:"mediaId,omitempty"`
}

// MicrositeResponse is the provider's answer to a microsite sub-operation.
type MicrositeResponse struct {
	ID     ExternalID `json:"id,omitempty"`
	Status string     `json:"status,omitempty"`
	URL    string     `json:"url,omitempty"`
}

// MicrositeMetadata drives the microsite integration.
type MicrositeMetadata struct {
	Type     Operation          `json:"type"`
	Test     bool               `json:"test,omitempty"`
	MemberID string             `json:"memberId"`
	Refs     Refs               `json:"refs,omitempty"`
	Payload  MicrositePayload   `json:"payload"`
	Response *MicrositeResponse `json:"response,omitempty"`
}

func (MicrositeMetadata) ItemType() Type         { return TypeMicrosite }
func (m MicrositeMetadata) Operation() Operation { return m.Type }

// CardProcessorPayload is the input of a card processor sub-operation.
// Amounts are in minor units.
type CardProcessorPayload struct {
	CustomerID      ExternalID `json:"customerId,omitempty"`
	PaymentMethodID ExternalID `json:"paymentMethodId,omitempty"`
	ChargeID        ExternalID `json:"chargeId,omitempty"`
	Token           string     `json:"token,omitempty"`
	Amount          int64      `json:"amount,omitempty"`
	Currency        string     `json:"currency,omitempty"`
	Description     string     `json:"description,omitempty"`
}

// CardProcessorResponse is the provider's answer to a card processor sub-operation.
type CardProcessorResponse struct {
	ID       ExternalID `json:"id,omitempty"`
	Status   string     `json:"status,omitempty"`
	Amount   int64      `json:"amount,omitempty"`
	Brand    string     `json:"brand,omitempty"`
	Last4    string     `json:"last4,omitempty"`
	ExpMonth int        `json:"expMonth,omitempty"`
	ExpYear  int        `json:"expYear,omitempty"`
}

// CardProcessorMetadata drives the card processor integration.
type CardProcessorMetadata struct {
	Type     Operation              `json:"type"`
	Test     bool                   `json:"test,omitempty"`
	MemberID string                 `json:"memberId"`
	Refs     Refs                   `json:"refs,omitempty"`
	Payload  CardProcessorPayload   `json:"payload"`
	Response *CardProcessorResponse `json:"response,omitempty"`
}

func (CardProcessorMetadata) ItemType() Type         { return TypeCardProcessor }
func (m CardProcessorMetadata) Operation() Operation { return m.Type }

// PaymentGatewayPayload is the input of an alternate gateway sub-operation.
type PaymentGatewayPayload struct {
	ProfileID        ExternalID `json:"profileId,omitempty"`
	PaymentProfileID ExternalID `json:"paymentProfileId,omitempty"`
	TransactionID    ExternalID `json:"transactionId,omitempty"`
	Amount           int64      `json:"amount,omitempty"`
	Description      string     `json:"description,omitempty"`
	CardNonce        string     `json:"cardNonce,omitempty"`
	Last4            string     `json:"last4,omitempty"`
	RoutingNumber    string     `json:"routingNumber,omitempty"`
	AccountNumber    string     `json:"accountNumber,omitempty"`
	AccountName      string     `json:"accountName,omitempty"`
	AccountType      string     `json:"accountType,omitempty"`
}

// PaymentGatewayResponse is the provider's answer to a gateway sub-operation.
type PaymentGatewayResponse struct {
	TransactionID    ExternalID `json:"transactionId,omitempty"`
	ProfileID        ExternalID `json:"profileId,omitempty"`
	PaymentProfileID ExternalID `json:"paymentProfileId,omitempty"`
	Status           string     `json:"status,omitempty"`
	AuthCode         string     `json:"authCode,omitempty"`
	Brand            string     `json:"brand,omitempty"`
	Last4            string     `json:"last4,omitempty"`
	ExpMonth         int        `json:"expMonth,omitempty"`
	ExpYear          int        `json:"expYear,omitempty"`
}

// PaymentGatewayMetadata drives the alternate payment gateway integration.
type PaymentGatewayMetadata struct {
	Type     Operation               `json:"type"`
	Test     bool                    `json:"test,omitempty"`
	MemberID string                  `json:"memberId"`
	Refs     Refs                    `json:"refs,omitempty"`
	Payload  PaymentGatewayPayload   `json:"payload"`
	Response *PaymentGatewayResponse `json:"response,omitempty"`
}

func (PaymentGatewayMetadata) ItemType() Type         { return TypePaymentGateway }
func (m PaymentGatewayMetadata) Operation() Operation { return m.Type }

// ScrubPaths drops bank details once the account has been vaulted.
func (PaymentGatewayMetadata) ScrubPaths() [][]string {
	return [][]string{{"payload", "routingNumber"}, {"payload", "accountNumber"}}
}

// AccountingLine is one invoice line pushed to the accounting system.
type AccountingLine struct {
	Description string `json:"description"`
	Amount      int64  `json:"amount"`
}

// AccountingPayload is the input of an accounting sub-operation.
type AccountingPayload struct {
	CustomerID  ExternalID       `json:"customerId,omitempty"`
	InvoiceID   ExternalID       `json:"invoiceId,omitempty"`
	DisplayName string           `json:"displayName,omitempty"`
	Email       string           `json:"email,omitempty"`
	DocNumber   string           `json:"docNumber,omitempty"`
	Lines       []AccountingLine `json:"lines,omitempty"`
	Amount      int64            `json:"amount,omitempty"`
	PaidAt      string           `json:"paidAt,omitempty"`
}

// AccountingResponse is the provider's answer to an accounting sub-operation.
type AccountingResponse struct {
	ID        ExternalID `json:"id,omitempty"`
	SyncToken string     `json:"syncToken,omitempty"`
}

// AccountingMetadata drives the accounting integration.
type AccountingMetadata struct {
	Type     Operation           `json:"type"`
	Test     bool                `json:"test,omitempty"`
	MemberID string              `json:"memberId"`
	Refs     Refs                `json:"refs,omitempty"`
	Payload  AccountingPayload   `json:"payload"`
	Response *AccountingResponse `json:"response,omitempty"`
}

func (AccountingMetadata) ItemType() Type         { return TypeAccounting }
func (m AccountingMetadata) Operation() Operation { return m.Type }

// MicrositeUserSyncedMetadata records the buyer's microsite user id.
type MicrositeUserSyncedMetadata struct {
	BuyerRelID int64             `json:"buyerRelId"`
	Payload    CallbackPayload   `json:"payload"`
	Response   *CallbackResponse `json:"response,omitempty"`
}

func (MicrositeUserSyncedMetadata) ItemType() Type { return TypeMicrositeUserSynced }

// MicrositeSiteAddedMetadata records the order's microsite id.
type MicrositeSiteAddedMetadata struct {
	InternalOrderID int64             `json:"internalOrderId"`
	Payload         CallbackPayload   `json:"payload"`
	Response        *CallbackResponse `json:"response,omitempty"`
}

func (MicrositeSiteAddedMetadata) ItemType() Type { return TypeMicrositeSiteAdded }

// MicrositeDeliverableAddedMetadata records a deliverable's microsite media id.
type MicrositeDeliverableAddedMetadata struct {
	InternalOrderID       int64             `json:"internalOrderId"`
	InternalDeliverableID int64             `json:"internalDeliverableId"`
	Payload               CallbackPayload   `json:"payload"`
	Response              *CallbackResponse `json:"response,omitempty"`
}

func (MicrositeDeliverableAddedMetadata) ItemType() Type { return TypeMicrositeDeliverableAdded }

// MicrositeSitePublishedMetadata records the order's published microsite status.
type MicrositeSitePublishedMetadata struct {
	InternalOrderID int64             `json:"internalOrderId"`
	Payload         CallbackPayload   `json:"payload"`
	Response        *CallbackResponse `json:"response,omitempty"`
}

func (MicrositeSitePublishedMetadata) ItemType() Type { return TypeMicrositeSitePublished }

// PaymentSourceAddedMetadata stores a newly vaulted card or bank account.
type PaymentSourceAddedMetadata struct {
	BuyerRelID int64             `json:"buyerRelId"`
	Payload    CallbackPayload   `json:"payload"`
	Response   *CallbackResponse `json:"response,omitempty"`
}

func (PaymentSourceAddedMetadata) ItemType() Type { return TypePaymentSourceAdded }

// AccountingCustomerSyncedMetadata records the buyer's accounting customer id.
type AccountingCustomerSyncedMetadata struct {
	BuyerRelID int64             `json:"buyerRelId"`
	Payload    CallbackPayload   `json:"payload"`
	Response   *CallbackResponse `json:"response,omitempty"`
}

func (AccountingCustomerSyncedMetadata) ItemType() Type { return TypeAccountingCustomerSynced }

// AccountingInvoiceSyncedMetadata records an invoice's accounting id.
type AccountingInvoiceSyncedMetadata struct {
	InternalInvoiceID int64             `json:"internalInvoiceId"`
	Payload           CallbackPayload   `json:"payload"`
	Response          *CallbackResponse `json:"response,omitempty"`
}

func (AccountingInvoiceSyncedMetadata) ItemType() Type { return TypeAccountingInvoiceSynced }

// AccountingPaymentRecordedMetadata records an invoice payment's accounting id.
type AccountingPaymentRecordedMetadata struct {
	InternalInvoicePaymentID int64             `json:"internalInvoicePaymentId"`
	Payload                  CallbackPayload   `json:"payload"`
	Response                 *CallbackResponse `json:"response,omitempty"`
}

func (AccountingPaymentRecordedMetadata) ItemType() Type { return TypeAccountingPaymentRecorded }

// CallbackResult returns the response of any callback variant.
func CallbackResult(meta Metadata) (*CallbackResponse, bool) {
	switch m := meta.(type) {
	case MicrositeUserSyncedMetadata:
		return m.Response, m.Response != nil
	case MicrositeSiteAddedMetadata:
		return m.Response, m.Response != nil
	case MicrositeDeliverableAddedMetadata:
		return m.Response, m.Response != nil
	case MicrositeSitePublishedMetadata:
		return m.Response, m.Response != nil
	case PaymentSourceAddedMetadata:
		return m.Response, m.Response != nil
	case AccountingCustomerSyncedMetadata:
		return m.Response, m.Response != nil
	case AccountingInvoiceSyncedMetadata:
		return m.Response, m.Response != nil
	case AccountingPaymentRecordedMetadata:
		return m.Response, m.Response != nil
	default:
		return nil, false
	}
}
