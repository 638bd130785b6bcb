package library

import (
	"errors"
	"time"
)

// DocumentStatus represents the editorial state of a document in the library.
type DocumentStatus string

const (
	// StatusDraft indicates the document has been stored but not reviewed.
	StatusDraft DocumentStatus = "draft"

	// StatusStructured indicates the document tree has been reviewed.
	StatusStructured DocumentStatus = "structured"

	// StatusParametrized indicates the document has a reviewed parametrization.
	StatusParametrized DocumentStatus = "parametrized"

	// StatusPublished indicates the document and its versions are published.
	StatusPublished DocumentStatus = "published"
)

// Valid reports whether s is one of the known statuses.
func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusStructured, StatusParametrized, StatusPublished:
		return true
	}
	return false
}

var (
	// ErrNotFound is returned when a document id is not in the library.
	ErrNotFound = errors.New("document not found")

	// ErrUnknownStatus is returned by SetStatus for a status outside the
	// known set.
	ErrUnknownStatus = errors.New("unknown document status")
)

// DocumentEntry describes a document stored in the library.
type DocumentEntry struct {
	ID                 string         `json:"id"`
	Title              string         `json:"title"`
	Status             DocumentStatus `json:"status"`
	Digest             string         `json:"digest"`
	Nodes              int            `json:"nodes"`
	StoredBytes        int            `json:"stored_bytes"`
	HasParametrization bool           `json:"has_parametrization"`
	Versions           int            `json:"versions"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// LibraryStats aggregates statistics across all documents in the library.
type LibraryStats struct {
	TotalDocuments   int            `json:"total_documents"`
	TotalNodes       int            `json:"total_nodes"`
	TotalVersions    int            `json:"total_versions"`
	Parametrized     int            `json:"parametrized"`
	TotalStoredBytes int            `json:"total_stored_bytes"`
	ByStatus         map[string]int `json:"by_status"`
}

// ImportReport summarizes the results of a directory import.
type ImportReport struct {
	TotalAttempted int                `json:"total_attempted"`
	Imported       int                `json:"imported"`
	Unchanged      int                `json:"unchanged"`
	Failed         int                `json:"failed"`
	Entries        []ImportEntryState `json:"entries"`
}

// ImportEntryState records the outcome of importing a single file.
type ImportEntryState struct {
	ID     string `json:"id"`
	Status string `json:"status"` // "imported", "unchanged", "failed"
	Error  string `json:"error,omitempty"`
}
