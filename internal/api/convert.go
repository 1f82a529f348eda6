package api

import (
	"time"

	"futures/internal/workflow"
	"futures/internal/workitem"
)

// FromItem converts a work item into its transport representation.
func FromItem(item *workitem.Item) Item {
	if item == nil {
		return Item{}
	}
	dto := Item{
		ID:            item.ID,
		Type:          string(item.Type),
		Family:        string(item.Type.Family()),
		Subject:       item.Subject,
		Status:        string(item.Status),
		ErrorMessage:  item.ErrorMessage,
		Retriable:     item.Retriable,
		LeaseOwner:    item.LeaseOwner,
		Attempts:      item.Attempts,
		SupersededBy:  item.SupersededBy,
		NotBefore:     formatPtr(item.NotBefore),
		LastHeartbeat: formatPtr(item.LastHeartbeat),
		CreatedAt:     formatTime(item.CreatedAt),
		UpdatedAt:     formatTime(item.UpdatedAt),
		ProcessedAt:   formatPtr(item.ProcessedAt),
		CompletedAt:   formatPtr(item.CompletedAt),
	}
	if len(item.MetadataJSON) > 0 {
		dto.Metadata = append(dto.Metadata, item.MetadataJSON...)
	}
	if meta, err := item.Metadata(); err == nil {
		if op, ok := workitem.SubOperation(meta); ok {
			dto.Operation = string(op)
		}
	}
	return dto
}

// FromItems converts a slice of work items.
func FromItems(items []*workitem.Item) []Item {
	out := make([]Item, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		out = append(out, FromItem(item))
	}
	return out
}

// FromStatusSummary converts workflow diagnostics.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	status := WorkflowStatus{
		Running:    summary.Running,
		Workers:    summary.Workers,
		QueueStats: MergeStats(summary.QueueStats),
		LastError:  summary.LastError,
		Health:     make([]Health, 0, len(summary.Health)),
	}
	if summary.LastItem != nil {
		last := FromItem(summary.LastItem)
		status.LastItem = &last
	}
	for _, h := range summary.Health {
		status.Health = append(status.Health, Health{Name: h.Name, Ready: h.Ready, Detail: h.Detail})
	}
	return status
}

// MergeStats returns counts for every status, zero-filled.
func MergeStats(stats map[workitem.Status]int) map[string]int {
	out := make(map[string]int, len(workitem.AllStatuses()))
	for _, status := range workitem.AllStatuses() {
		out[string(status)] = stats[status]
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func formatPtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}
