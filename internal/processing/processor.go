package processing

import (
	"context"
	"log/slog"

	"futures/internal/domain"
	"futures/internal/workitem"
)

// Processor executes the side effect for one work item type.
type Processor interface {
	Type() workitem.Type
	Handle(ctx context.Context, logger *slog.Logger, tx domain.Tx, meta workitem.Metadata, deps []workitem.Dependency) (Outcome, error)
}

// Outcome is the non-error result of a processor run.
type Outcome struct {
	meta  workitem.Metadata
	ready bool
}

// Done reports success with the metadata to merge into the item.
func Done(meta workitem.Metadata) Outcome {
	return Outcome{meta: meta, ready: true}
}

// NotReady asks the manager to leave the item created and try again later.
func NotReady() Outcome {
	return Outcome{}
}

// Ready reports whether the processor finished.
func (o Outcome) Ready() bool {
	return o.ready
}

// Metadata returns the updated metadata of a finished run.
func (o Outcome) Metadata() workitem.Metadata {
	return o.meta
}
