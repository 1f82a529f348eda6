package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"futures/internal/api"
	"futures/internal/chains"
	"futures/internal/domain"
	"futures/internal/workitem"
)

// chainFunc is the shape shared by the single-id chain entry points.
type chainFunc func(c *chains.Chains, ctx context.Context, id int64, test bool) ([]*workitem.Item, error)

func newChainCommand(ctx *commandContext) *cobra.Command {
	var test bool
	chainCmd := &cobra.Command{
		Use:   "chain",
		Short: "Create work item chains for business events",
	}
	chainCmd.PersistentFlags().BoolVar(&test, "test", false, "Route calls to provider sandboxes")

	simple := []struct {
		use, short string
		run        chainFunc
	}{
		{"sync-buyer <member-relationship-id>", "Create or update a buyer's microsite user", (*chains.Chains).SyncBuyer},
		{"create-site <order-id>", "Create the microsite for an order", (*chains.Chains).CreateOrderSite},
		{"add-deliverable <deliverable-id>", "Upload a deliverable to its order's microsite", (*chains.Chains).AddDeliverable},
		{"publish-site <order-id>", "Publish an order's microsite with its media", (*chains.Chains).PublishOrderSite},
		{"sync-invoice <invoice-id>", "Sync an invoice and its customer to accounting", (*chains.Chains).SyncInvoice},
		{"record-payment <invoice-payment-id>", "Record an invoice payment in accounting", (*chains.Chains).RecordInvoicePayment},
	}
	for _, entry := range simple {
		run := entry.run
		chainCmd.AddCommand(&cobra.Command{
			Use:   entry.use,
			Short: entry.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				return ctx.withChains(func(c *chains.Chains) error {
					items, err := run(c, cmd.Context(), id, test)
					if err != nil {
						return err
					}
					return reportChain(cmd, ctx, items)
				})
			},
		})
	}

	chainCmd.AddCommand(newAddPaymentSourceCommand(ctx, &test))
	chainCmd.AddCommand(newChargeCommand(ctx, &test))
	return chainCmd
}

func newAddPaymentSourceCommand(ctx *commandContext, test *bool) *cobra.Command {
	var req chains.PaymentSourceRequest
	var provider, kind string
	cmd := &cobra.Command{
		Use:   "add-payment-source <member-relationship-id>",
		Short: "Vault a card or bank account for a buyer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			switch strings.ToLower(strings.TrimSpace(provider)) {
			case "card", "card_processor":
				req.Provider = workitem.TypeCardProcessor
			case "gateway", "payment_gateway":
				req.Provider = workitem.TypePaymentGateway
			default:
				return fmt.Errorf("unknown provider %q (want card_processor or payment_gateway)", provider)
			}
			switch domain.PaymentSourceKind(strings.ToLower(strings.TrimSpace(kind))) {
			case domain.PaymentSourceCard:
				req.Kind = domain.PaymentSourceCard
			case domain.PaymentSourceBankAccount:
				req.Kind = domain.PaymentSourceBankAccount
			default:
				return fmt.Errorf("unknown payment source kind %q (want card or bank_account)", kind)
			}
			req.BuyerRelID = id
			req.Test = *test
			return ctx.withChains(func(c *chains.Chains) error {
				items, err := c.AddPaymentSource(cmd.Context(), req)
				if err != nil {
					return err
				}
				return reportChain(cmd, ctx, items)
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&provider, "provider", "card_processor", "Vaulting provider: card_processor or payment_gateway")
	flags.StringVar(&kind, "kind", string(domain.PaymentSourceCard), "Source kind: card or bank_account")
	flags.StringVar(&req.CustomerID, "customer", "", "Card processor customer id")
	flags.StringVar(&req.ProfileID, "profile", "", "Payment gateway customer profile id")
	flags.StringVar(&req.Token, "token", "", "Tokenized card from the provider's client library")
	flags.StringVar(&req.RoutingNumber, "routing", "", "Bank routing number")
	flags.StringVar(&req.AccountNumber, "account", "", "Bank account number")
	flags.StringVar(&req.AccountName, "account-name", "", "Name on the bank account")
	flags.StringVar(&req.AccountType, "account-type", "checking", "Bank account type")
	flags.BoolVar(&req.SetDefault, "default", false, "Make this the buyer's default payment source")
	return cmd
}

func newChargeCommand(ctx *commandContext, test *bool) *cobra.Command {
	var req chains.ChargeRequest
	cmd := &cobra.Command{
		Use:   "charge <member-relationship-id>",
		Short: "Charge or authorize a buyer's payment source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			req.BuyerRelID = id
			req.Test = *test
			return ctx.withChains(func(c *chains.Chains) error {
				items, err := c.SubmitCharge(cmd.Context(), req)
				if err != nil {
					return err
				}
				return reportChain(cmd, ctx, items)
			})
		},
	}
	flags := cmd.Flags()
	flags.Int64Var(&req.PaymentSourceID, "source", 0, "Payment source id (default: the buyer's default source)")
	flags.Int64Var(&req.Amount, "amount", 0, "Amount in minor units")
	flags.StringVar(&req.Currency, "currency", "USD", "ISO currency code")
	flags.StringVar(&req.Description, "description", "", "Statement description")
	flags.BoolVar(&req.AuthorizeOnly, "authorize-only", false, "Authorize without capturing")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func reportChain(cmd *cobra.Command, ctx *commandContext, items []*workitem.Item) error {
	dtos := api.FromItems(items)
	if ctx.jsonOutput() {
		return writeJSON(cmd, api.ItemListResponse{Items: dtos})
	}
	out := cmd.OutOrStdout()
	if len(dtos) == 0 {
		fmt.Fprintln(out, "Nothing to do: an equivalent chain is already open")
		return nil
	}
	fmt.Fprintf(out, "Created %d work item(s)\n", len(dtos))
	fmt.Fprint(out, renderTable(
		[]string{"ID", "Type", "Operation", "Subject", "Status", "Attempts", "Created"},
		itemListRows(dtos),
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))
	return nil
}

func parseID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", value)
	}
	return id, nil
}
