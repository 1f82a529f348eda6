package callback

import (
	"context"
	"fmt"
	"log/slog"

	"futures/internal/domain"
	"futures/internal/logging"
	"futures/internal/processing"
	"futures/internal/services"
	"futures/internal/workitem"
)

var micrositeOnly = []workitem.Type{workitem.TypeMicrosite}

// micrositeResponse asserts the dependency shape and returns the
// provider's response.
func micrositeResponse(owner workitem.Type, deps []workitem.Dependency, op workitem.Operation) (*workitem.MicrositeResponse, error) {
	dep, err := processing.ExpectDependency(deps, owner, micrositeOnly, op)
	if err != nil {
		return nil, err
	}
	meta, ok := dep.Metadata.(workitem.MicrositeMetadata)
	if !ok || meta.Response == nil {
		return nil, missingResponse(owner, dep)
	}
	if err := requireExternalID(owner, dep, meta.Response.ID); err != nil {
		return nil, err
	}
	return meta.Response, nil
}

// MicrositeUserSynced stores the buyer's microsite user id.
type MicrositeUserSynced struct{}

func (MicrositeUserSynced) Type() workitem.Type { return workitem.TypeMicrositeUserSynced }

func (p MicrositeUserSynced) Handle(ctx context.Context, logger *slog.Logger, tx domain.Tx, raw workitem.Metadata, deps []workitem.Dependency) (processing.Outcome, error) {
	meta, err := workitem.MetadataAs[workitem.MicrositeUserSyncedMetadata](raw)
	if err != nil {
		return processing.Outcome{}, err
	}
	res, err := micrositeResponse(p.Type(), deps, workitem.OpEnsureUserExists)
	if err != nil {
		return processing.Outcome{}, err
	}
	if meta.BuyerRelID == 0 {
		return processing.Outcome{}, missingAggregate(p.Type(), "buyerRelId")
	}
	if err := tx.SetMicrositeUserID(ctx, meta.BuyerRelID, res.ID.String()); err != nil {
		return processing.Outcome{}, err
	}
	logger.Info("microsite user linked", logging.Int64("buyer_rel_id", meta.BuyerRelID), logging.String("microsite_user_id", res.ID.String()))
	meta.Response = &workitem.CallbackResponse{ExternalID: res.ID, InternalID: meta.BuyerRelID}
	return processing.Done(meta), nil
}

// MicrositeSiteAdded stores the order's microsite id and initial status.
type MicrositeSiteAdded struct{}

func (MicrositeSiteAdded) Type() workitem.Type { return workitem.TypeMicrositeSiteAdded }

func (p MicrositeSiteAdded) Handle(ctx context.Context, logger *slog.Logger, tx domain.Tx, raw workitem.Metadata, deps []workitem.Dependency) (processing.Outcome, error) {
	meta, err := workitem.MetadataAs[workitem.MicrositeSiteAddedMetadata](raw)
	if err != nil {
		return processing.Outcome{}, err
	}
	res, err := micrositeResponse(p.Type(), deps, workitem.OpCreateSite)
	if err != nil {
		return processing.Outcome{}, err
	}
	if meta.InternalOrderID == 0 {
		return processing.Outcome{}, missingAggregate(p.Type(), "internalOrderId")
	}
	siteStatus := status(meta.Payload.Status, res.Status, "draft")
	if err := tx.SetOrderMicrosite(ctx, meta.InternalOrderID, res.ID.String(), siteStatus); err != nil {
		return processing.Outcome{}, err
	}
	logger.Info("microsite linked to order", logging.Int64("order_id", meta.InternalOrderID), logging.String("microsite_id", res.ID.String()))
	meta.Response = &workitem.CallbackResponse{ExternalID: res.ID, Status: siteStatus, InternalID: meta.InternalOrderID}
	return processing.Done(meta), nil
}

// MicrositeDeliverableAdded stores a deliverable's microsite media id.
type MicrositeDeliverableAdded struct{}

func (MicrositeDeliverableAdded) Type() workitem.Type { return workitem.TypeMicrositeDeliverableAdded }

func (p MicrositeDeliverableAdded) Handle(ctx context.Context, logger *slog.Logger, tx domain.Tx, raw workitem.Metadata, deps []workitem.Dependency) (processing.Outcome, error) {
	meta, err := workitem.MetadataAs[workitem.MicrositeDeliverableAddedMetadata](raw)
	if err != nil {
		return processing.Outcome{}, err
	}
	res, err := micrositeResponse(p.Type(), deps, workitem.OpAddDeliverableToSite)
	if err != nil {
		return processing.Outcome{}, err
	}
	if meta.InternalDeliverableID == 0 {
		return processing.Outcome{}, missingAggregate(p.Type(), "internalDeliverableId")
	}
	deliverable, err := tx.LoadDeliverable(ctx, meta.InternalDeliverableID)
	if err != nil {
		return processing.Outcome{}, err
	}
	if meta.InternalOrderID != 0 && deliverable.OrderID != meta.InternalOrderID {
		return processing.Outcome{}, services.Wrap(services.ErrValidation, string(p.Type()), "write back",
			fmt.Sprintf("deliverable %d belongs to order %d, not %d", deliverable.ID, deliverable.OrderID, meta.InternalOrderID), nil)
	}
	mediaStatus := status(meta.Payload.Status, res.Status, "attached")
	if err := tx.SetDeliverableMicrositeMedia(ctx, deliverable.ID, res.ID.String(), mediaStatus); err != nil {
		return processing.Outcome{}, err
	}
	logger.Info("deliverable attached to microsite",
		logging.Int64("deliverable_id", deliverable.ID),
		logging.String("microsite_media_id", res.ID.String()))
	meta.Response = &workitem.CallbackResponse{ExternalID: res.ID, Status: mediaStatus, InternalID: deliverable.ID}
	return processing.Done(meta), nil
}

// MicrositeSitePublished marks the order's microsite as published.
type MicrositeSitePublished struct{}

func (MicrositeSitePublished) Type() workitem.Type { return workitem.TypeMicrositeSitePublished }

func (p MicrositeSitePublished) Handle(ctx context.Context, logger *slog.Logger, tx domain.Tx, raw workitem.Metadata, deps []workitem.Dependency) (processing.Outcome, error) {
	meta, err := workitem.MetadataAs[workitem.MicrositeSitePublishedMetadata](raw)
	if err != nil {
		return processing.Outcome{}, err
	}
	res, err := micrositeResponse(p.Type(), deps, workitem.OpPublishSite)
	if err != nil {
		return processing.Outcome{}, err
	}
	if meta.InternalOrderID == 0 {
		return processing.Outcome{}, missingAggregate(p.Type(), "internalOrderId")
	}
	order, err := tx.LoadOrder(ctx, meta.InternalOrderID)
	if err != nil {
		return processing.Outcome{}, err
	}
	if order.MicrositeID != "" && order.MicrositeID != res.ID.String() {
		return processing.Outcome{}, services.Wrap(services.ErrValidation, string(p.Type()), "write back",
			fmt.Sprintf("order %d is linked to microsite %s, publish reported %s", order.ID, order.MicrositeID, res.ID), nil)
	}
	siteStatus := status(meta.Payload.Status, res.Status, "published")
	if err := tx.SetOrderMicrositeStatus(ctx, order.ID, siteStatus); err != nil {
		return processing.Outcome{}, err
	}
	logger.Info("microsite published", logging.Int64("order_id", order.ID), logging.String("status", siteStatus))
	meta.Response = &workitem.CallbackResponse{ExternalID: res.ID, Status: siteStatus, InternalID: order.ID}
	return processing.Done(meta), nil
}
