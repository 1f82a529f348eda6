package integration

import (
	"context"
	"log/slog"
	"slices"

	"futures/internal/domain"
	"futures/internal/logging"
	"futures/internal/processing"
	"futures/internal/services/microsite"
	"futures/internal/services/tenant"
	"futures/internal/workitem"
)

// Microsite drives the microsite provider.
type Microsite struct {
	clients ClientPair[microsite.Client]
	tenants tenant.Resolver
}

// NewMicrosite constructs the microsite processor.
func NewMicrosite(live, test microsite.Client, tenants tenant.Resolver) *Microsite {
	return &Microsite{clients: ClientPair[microsite.Client]{Live: live, Test: test}, tenants: tenants}
}

func (p *Microsite) Type() workitem.Type { return workitem.TypeMicrosite }

func (p *Microsite) HealthCheck(context.Context) processing.Health {
	return p.clients.health(string(workitem.TypeMicrosite))
}

func (p *Microsite) Handle(ctx context.Context, logger *slog.Logger, _ domain.Tx, raw workitem.Metadata, deps []workitem.Dependency) (processing.Outcome, error) {
	meta, err := workitem.MetadataAs[workitem.MicrositeMetadata](raw)
	if err != nil {
		return processing.Outcome{}, err
	}
	client, err := p.clients.pick(p.Type(), meta.Test)
	if err != nil {
		return processing.Outcome{}, err
	}
	account, err := resolveAccount(ctx, p.tenants, meta.MemberID)
	if err != nil {
		return processing.Outcome{}, err
	}
	logger.Debug("microsite call", logging.String(logging.FieldOperation, string(meta.Type)), logging.Bool("test", meta.Test))

	payload := &meta.Payload
	switch meta.Type {
	case workitem.OpEnsureUserExists:
		user, err := client.EnsureUserExists(ctx, account, microsite.UserRequest{
			Email:     payload.Email,
			FirstName: payload.FirstName,
			LastName:  payload.LastName,
			Phone:     payload.Phone,
		})
		if err != nil {
			return processing.Outcome{}, err
		}
		meta.Response = &workitem.MicrositeResponse{ID: user.ID}

	case workitem.OpCreateSite:
		payload.UserID = defaultID(payload.UserID, deps, micrositeUserID)
		if err := requireID(p.Type(), meta.Type, "user id", payload.UserID); err != nil {
			return processing.Outcome{}, err
		}
		site, err := client.CreateSite(ctx, account, microsite.SiteRequest{
			UserID:  payload.UserID.String(),
			Title:   payload.Title,
			Address: payload.Address,
		})
		if err != nil {
			return processing.Outcome{}, err
		}
		meta.Response = &workitem.MicrositeResponse{ID: site.ID, Status: site.Status, URL: site.URL}

	case workitem.OpAddDeliverableToSite:
		payload.SiteID = defaultID(payload.SiteID, deps, micrositeSiteID)
		if err := requireID(p.Type(), meta.Type, "site id", payload.SiteID); err != nil {
			return processing.Outcome{}, err
		}
		media, err := client.AddDeliverableToSite(ctx, account, payload.SiteID.String(), microsite.MediaRequest{
			Name: payload.MediaName,
			Kind: payload.MediaKind,
			URL:  payload.MediaURL,
		})
		if err != nil {
			return processing.Outcome{}, err
		}
		meta.Response = &workitem.MicrositeResponse{ID: media.ID, Status: media.Status}

	case workitem.OpSortSiteDeliverables:
		payload.SiteID = defaultID(payload.SiteID, deps, micrositeSiteID)
		if err := requireID(p.Type(), meta.Type, "site id", payload.SiteID); err != nil {
			return processing.Outcome{}, err
		}
		payload.MediaIDs = mediaOrder(payload, deps)
		ids := make([]string, 0, len(payload.MediaIDs))
		for _, id := range payload.MediaIDs {
			ids = append(ids, id.String())
		}
		site, err := client.SortSiteDeliverables(ctx, account, payload.SiteID.String(), ids)
		if err != nil {
			return processing.Outcome{}, err
		}
		meta.Response = &workitem.MicrositeResponse{ID: site.ID, Status: site.Status, URL: site.URL}

	case workitem.OpPublishSite:
		payload.SiteID = defaultID(payload.SiteID, deps, micrositeSiteID)
		if err := requireID(p.Type(), meta.Type, "site id", payload.SiteID); err != nil {
			return processing.Outcome{}, err
		}
		site, err := client.PublishSite(ctx, account, payload.SiteID.String())
		if err != nil {
			return processing.Outcome{}, err
		}
		meta.Response = &workitem.MicrositeResponse{ID: site.ID, Status: site.Status, URL: site.URL}

	default:
		return processing.Outcome{}, notImplemented(p.Type(), meta.Type)
	}
	return processing.Done(meta), nil
}

func micrositeUserID(meta workitem.Metadata) workitem.ExternalID {
	if m, ok := meta.(workitem.MicrositeMetadata); ok && m.Type == workitem.OpEnsureUserExists && m.Response != nil {
		return m.Response.ID
	}
	return callbackID(meta, workitem.TypeMicrositeUserSynced)
}

func micrositeSiteID(meta workitem.Metadata) workitem.ExternalID {
	if m, ok := meta.(workitem.MicrositeMetadata); ok && m.Response != nil {
		switch m.Type {
		case workitem.OpCreateSite, workitem.OpSortSiteDeliverables:
			return m.Response.ID
		}
	}
	return callbackID(meta, workitem.TypeMicrositeSiteAdded)
}

// attachedMedia returns the media produced by add_deliverable dependencies
// (or their callbacks) in dependency order, each with its internal
// deliverable id when known.
func attachedMedia(deps []workitem.Dependency) []workitem.MediaPlacement {
	var media []workitem.MediaPlacement
	for _, dep := range deps {
		var placed workitem.MediaPlacement
		switch m := dep.Metadata.(type) {
		case workitem.MicrositeMetadata:
			if m.Type == workitem.OpAddDeliverableToSite && m.Response != nil {
				placed = workitem.MediaPlacement{DeliverableID: m.Refs.InternalDeliverableID, MediaID: m.Response.ID}
			}
		case workitem.MicrositeDeliverableAddedMetadata:
			placed = workitem.MediaPlacement{DeliverableID: m.InternalDeliverableID, MediaID: callbackID(m, workitem.TypeMicrositeDeliverableAdded)}
		}
		if !placed.MediaID.Empty() {
			media = append(media, placed)
		}
	}
	return media
}

// mediaOrder resolves the final media order for a sort. Placements are
// filled from dependency outputs and ordered by sort order; dependency media
// the placements do not mention go last, in dependency order.
func mediaOrder(payload *workitem.MicrositePayload, deps []workitem.Dependency) []workitem.ExternalID {
	attached := attachedMedia(deps)
	placements := slices.Clone(payload.Placements)
	var extra []workitem.ExternalID
	for _, a := range attached {
		idx := slices.IndexFunc(placements, func(p workitem.MediaPlacement) bool {
			return a.DeliverableID != 0 && p.DeliverableID == a.DeliverableID
		})
		if idx < 0 {
			extra = append(extra, a.MediaID)
			continue
		}
		placements[idx].MediaID = a.MediaID
	}
	if len(placements) == 0 {
		return appendMissing(payload.MediaIDs, extra)
	}

	slices.SortStableFunc(placements, func(a, b workitem.MediaPlacement) int { return a.SortOrder - b.SortOrder })
	var ids []workitem.ExternalID
	for _, p := range placements {
		if !p.MediaID.Empty() {
			ids = append(ids, p.MediaID)
		}
	}
	return appendMissing(ids, extra)
}

// appendMissing appends the ids in extra that ids does not already hold.
func appendMissing(ids, extra []workitem.ExternalID) []workitem.ExternalID {
	for _, id := range extra {
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids
}
