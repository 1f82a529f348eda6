package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Item describes a work item in a transport-friendly format.
type Item struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Family        string          `json:"family"`
	Operation     string          `json:"operation,omitempty"`
	Subject       string          `json:"subject,omitempty"`
	Status        string          `json:"status"`
	ErrorMessage  string          `json:"errorMessage,omitempty"`
	Retriable     bool            `json:"retriable"`
	LeaseOwner    string          `json:"leaseOwner,omitempty"`
	Attempts      int             `json:"attempts"`
	SupersededBy  string          `json:"supersededBy,omitempty"`
	DependsOn     []string        `json:"dependsOn,omitempty"`
	NotBefore     string          `json:"notBefore,omitempty"`
	LastHeartbeat string          `json:"lastHeartbeat,omitempty"`
	CreatedAt     string          `json:"createdAt,omitempty"`
	UpdatedAt     string          `json:"updatedAt,omitempty"`
	ProcessedAt   string          `json:"processedAt,omitempty"`
	CompletedAt   string          `json:"completedAt,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running    bool           `json:"running"`
	Workers    int            `json:"workers"`
	QueueStats map[string]int `json:"queueStats"`
	LastError  string         `json:"lastError,omitempty"`
	LastItem   *Item          `json:"lastItem,omitempty"`
	Health     []Health       `json:"health"`
}

// Health mirrors readiness reporting for processors.
type Health struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	DatabasePath string         `json:"databasePath"`
	LockFilePath string         `json:"lockFilePath"`
	NextReclaim  string         `json:"nextReclaim,omitempty"`
	NextPurge    string         `json:"nextPurge,omitempty"`
	Workflow     WorkflowStatus `json:"workflow"`
}

// StatsResponse provides normalized status counts.
type StatsResponse struct {
	Counts map[string]int `json:"counts"`
}

// ItemListResponse wraps a collection of work items.
type ItemListResponse struct {
	Items []Item `json:"items"`
}

// ItemResponse wraps a single work item with its neighbours.
type ItemResponse struct {
	Item       Item   `json:"item"`
	Dependents []Item `json:"dependents,omitempty"`
}
