package workitem

import (
	"encoding/json"
	"time"

	"futures/internal/services"
)

// Item represents a work item persisted in SQLite. The stable persistence
// contract is {ID, Type, Metadata, Status}; the remaining fields are
// orchestrator bookkeeping.
type Item struct {
	ID           string
	Type         Type
	Subject      string
	Status       Status
	MetadataJSON json.RawMessage
	ErrorMessage string
	Retriable    bool
	LeaseOwner   string
	Attempts     int
	SupersededBy string

	LastHeartbeat *time.Time
	NotBefore     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ProcessedAt   *time.Time
	CompletedAt   *time.Time
}

// Metadata decodes the stored metadata into its typed variant.
func (i *Item) Metadata() (Metadata, error) {
	return DecodeMetadata(i.Type, i.MetadataJSON)
}

// Spec describes a work item to create.
type Spec struct {
	Type     Type
	Subject  string
	Metadata Metadata
	// DependsOn lists prerequisite item ids in the order processors receive them.
	DependsOn []string
}

// Dependency is a resolved prerequisite handed to a processor.
type Dependency struct {
	ID       string
	Type     Type
	Status   Status
	Metadata Metadata
}

// Failure is the persisted outcome of a failed processor run.
type Failure struct {
	Message   string
	Kind      string
	Retriable bool
}

// FailureFor classifies a processor error for persistence.
func FailureFor(err error) Failure {
	details := services.Details(err)
	message := details.Message
	if message == "" {
		message = "processor failed without error detail"
	}
	return Failure{Message: message, Kind: details.Kind, Retriable: details.Retriable}
}

// Edge is one dependency link between two items.
type Edge struct {
	ItemID      string
	DependsOnID string
}
