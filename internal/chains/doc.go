// Package chains turns business events into work item chains.
//
// Entry points (SyncBuyer, CreateOrderSite, AddDeliverable, ...) read the
// aggregates involved, create the first integration items, and link them to
// still-open items for the same buyer, order, or invoice so defaults flow
// from earlier steps. FollowOns names the callback item the orchestrator
// creates when an integration item is processed.
package chains
