package callback

import (
	"fmt"

	"futures/internal/processing"
	"futures/internal/services"
	"futures/internal/workitem"
)

// Processors returns one instance of every callback processor.
func Processors() []processing.Processor {
	return []processing.Processor{
		MicrositeUserSynced{},
		MicrositeSiteAdded{},
		MicrositeDeliverableAdded{},
		MicrositeSitePublished{},
		PaymentSourceAdded{},
		AccountingCustomerSynced{},
		AccountingInvoiceSynced{},
		AccountingPaymentRecorded{},
	}
}

func missingResponse(owner workitem.Type, dep workitem.Dependency) error {
	return services.Wrap(services.ErrContract, string(owner), "resolve dependency",
		fmt.Sprintf("dependency %s carries no response", dep.ID), nil)
}

func missingAggregate(owner workitem.Type, field string) error {
	return services.Wrap(services.ErrValidation, string(owner), "write back", field+" not set", nil)
}

func requireExternalID(owner workitem.Type, dep workitem.Dependency, id workitem.ExternalID) error {
	if id.Empty() {
		return services.Wrap(services.ErrContract, string(owner), "resolve dependency",
			fmt.Sprintf("dependency %s response has no id", dep.ID), nil)
	}
	return nil
}

// status returns the first non-empty value.
func status(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
