// Package library persists structured documents, their editorial status,
// their parametrizations and their generated versions in a SQLite database.
// Values are stored as xz-compressed JSON keyed by document id.
package library

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/coolbeans/normtree/pkg/parametrization"
	"github.com/coolbeans/normtree/pkg/text"
)

const driverName = "sqlite"

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	status     TEXT NOT NULL,
	digest     TEXT NOT NULL,
	nodes      INTEGER NOT NULL,
	body       BLOB NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS parametrizations (
	document_id TEXT PRIMARY KEY REFERENCES documents(id) ON DELETE CASCADE,
	digest      TEXT NOT NULL,
	body        BLOB NOT NULL,
	updated_at  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS versions (
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	label       TEXT NOT NULL,
	digest      TEXT NOT NULL,
	body        BLOB NOT NULL,
	updated_at  TEXT NOT NULL,
	PRIMARY KEY (document_id, label)
);
`

// Library manages a persistent collection of structured documents.
type Library struct {
	mu   sync.RWMutex
	path string
	db   *sql.DB
	now  func() time.Time
}

// Open opens the library database at path, creating it and its schema when
// missing.
func Open(path string) (*Library, error) {
	if path == "" {
		return nil, fmt.Errorf("library path is required")
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open library database: %w", err)
	}
	// One connection keeps pragmas and in-memory databases consistent.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000", schema} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize library schema: %w", err)
		}
	}
	return &Library{
		path: path,
		db:   db,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close releases the database.
func (lib *Library) Close() error {
	return lib.db.Close()
}

// Path returns the library's database path.
func (lib *Library) Path() string {
	return lib.path
}

// SaveDocument stores doc under id. A document whose content digest is
// unchanged is not rewritten and changed is false. New documents start as
// drafts; re-saved documents keep their status.
func (lib *Library) SaveDocument(id string, doc *text.StructuredText) (entry *DocumentEntry, changed bool, err error) {
	if id == "" {
		return nil, false, fmt.Errorf("document ID is required")
	}
	if doc == nil {
		return nil, false, fmt.Errorf("document %s is nil", id)
	}
	blob, digest, err := encodeValue(doc)
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode document %s: %w", id, err)
	}

	lib.mu.Lock()
	defer lib.mu.Unlock()

	existing, err := lib.entryUnsafe(id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}
	if existing != nil && existing.Digest == digest {
		return existing, false, nil
	}

	now := formatTime(lib.now())
	nodes := countNodes(doc)
	if existing == nil {
		_, err = lib.db.Exec(`INSERT INTO documents (id, title, status, digest, nodes, body, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, doc.Title.Text, string(StatusDraft), digest, nodes, blob, now, now)
	} else {
		_, err = lib.db.Exec(`UPDATE documents SET title = ?, digest = ?, nodes = ?, body = ?, updated_at = ? WHERE id = ?`,
			doc.Title.Text, digest, nodes, blob, now, id)
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to save document %s: %w", id, err)
	}

	entry, err = lib.entryUnsafe(id)
	if err != nil {
		return nil, false, err
	}
	return entry, true, nil
}

// GetDocument loads the document stored under id.
func (lib *Library) GetDocument(id string) (*text.StructuredText, error) {
	lib.mu.RLock()
	defer lib.mu.RUnlock()

	var blob []byte
	err := lib.db.QueryRow(`SELECT body FROM documents WHERE id = ?`, id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", id, err)
	}
	var doc text.StructuredText
	if err := decodeValue(blob, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", id, err)
	}
	return &doc, nil
}

// Entry returns the catalog entry of a document.
func (lib *Library) Entry(id string) (*DocumentEntry, error) {
	lib.mu.RLock()
	defer lib.mu.RUnlock()
	return lib.entryUnsafe(id)
}

// ListDocuments returns all document entries, sorted by ID.
func (lib *Library) ListDocuments() ([]*DocumentEntry, error) {
	lib.mu.RLock()
	defer lib.mu.RUnlock()

	rows, err := lib.db.Query(entryQuery + ` ORDER BY d.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	entries := []*DocumentEntry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return entries, nil
}

// DeleteDocument removes a document together with its parametrization and
// versions.
func (lib *Library) DeleteDocument(id string) error {
	lib.mu.Lock()
	defer lib.mu.Unlock()

	res, err := lib.db.Exec(`DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// SetStatus records the editorial status of a document.
func (lib *Library) SetStatus(id string, status DocumentStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, status)
	}
	lib.mu.Lock()
	defer lib.mu.Unlock()

	res, err := lib.db.Exec(`UPDATE documents SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTime(lib.now()), id)
	if err != nil {
		return fmt.Errorf("failed to set status of %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// GetStatus returns the editorial status of a document.
func (lib *Library) GetStatus(id string) (DocumentStatus, error) {
	lib.mu.RLock()
	defer lib.mu.RUnlock()

	var status string
	err := lib.db.QueryRow(`SELECT status FROM documents WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read status of %s: %w", id, err)
	}
	return DocumentStatus(status), nil
}

// SaveParametrization stores the parametrization of a stored document,
// replacing any previous one.
func (lib *Library) SaveParametrization(id string, p *parametrization.Parametrization) error {
	if p == nil {
		p = parametrization.Empty()
	}
	blob, digest, err := encodeValue(p)
	if err != nil {
		return fmt.Errorf("failed to encode parametrization of %s: %w", id, err)
	}

	lib.mu.Lock()
	defer lib.mu.Unlock()

	if _, err := lib.entryUnsafe(id); err != nil {
		return err
	}
	_, err = lib.db.Exec(`INSERT INTO parametrizations (document_id, digest, body, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET digest = excluded.digest, body = excluded.body, updated_at = excluded.updated_at`,
		id, digest, blob, formatTime(lib.now()))
	if err != nil {
		return fmt.Errorf("failed to save parametrization of %s: %w", id, err)
	}
	return nil
}

// GetParametrization loads the parametrization of a document. A stored
// document without one yields an empty parametrization.
func (lib *Library) GetParametrization(id string) (*parametrization.Parametrization, error) {
	lib.mu.RLock()
	defer lib.mu.RUnlock()

	if _, err := lib.entryUnsafe(id); err != nil {
		return nil, err
	}
	var blob []byte
	err := lib.db.QueryRow(`SELECT body FROM parametrizations WHERE document_id = ?`, id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return parametrization.Empty(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read parametrization of %s: %w", id, err)
	}
	var p parametrization.Parametrization
	if err := decodeValue(blob, &p); err != nil {
		return nil, fmt.Errorf("failed to decode parametrization of %s: %w", id, err)
	}
	return &p, nil
}

// SaveVersion stores one generated version of a document under its
// combination label. It returns false when an identical version is already
// stored.
func (lib *Library) SaveVersion(id, label string, version *text.StructuredText) (bool, error) {
	blob, digest, err := encodeValue(version)
	if err != nil {
		return false, fmt.Errorf("failed to encode version %q of %s: %w", label, id, err)
	}

	lib.mu.Lock()
	defer lib.mu.Unlock()

	if _, err := lib.entryUnsafe(id); err != nil {
		return false, err
	}
	var existing string
	err = lib.db.QueryRow(`SELECT digest FROM versions WHERE document_id = ? AND label = ?`, id, label).Scan(&existing)
	if err == nil && existing == digest {
		return false, nil
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("failed to read version %q of %s: %w", label, id, err)
	}
	_, err = lib.db.Exec(`INSERT INTO versions (document_id, label, digest, body, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(document_id, label) DO UPDATE SET digest = excluded.digest, body = excluded.body, updated_at = excluded.updated_at`,
		id, label, digest, blob, formatTime(lib.now()))
	if err != nil {
		return false, fmt.Errorf("failed to save version %q of %s: %w", label, id, err)
	}
	return true, nil
}

// GetVersion loads one stored version of a document.
func (lib *Library) GetVersion(id, label string) (*text.StructuredText, error) {
	lib.mu.RLock()
	defer lib.mu.RUnlock()

	var blob []byte
	err := lib.db.QueryRow(`SELECT body FROM versions WHERE document_id = ? AND label = ?`, id, label).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: version %q of %s", ErrNotFound, label, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read version %q of %s: %w", label, id, err)
	}
	var version text.StructuredText
	if err := decodeValue(blob, &version); err != nil {
		return nil, fmt.Errorf("failed to decode version %q of %s: %w", label, id, err)
	}
	return &version, nil
}

// ListVersions returns the labels of the stored versions of a document,
// sorted.
func (lib *Library) ListVersions(id string) ([]string, error) {
	lib.mu.RLock()
	defer lib.mu.RUnlock()

	rows, err := lib.db.Query(`SELECT label FROM versions WHERE document_id = ? ORDER BY label`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions of %s: %w", id, err)
	}
	defer rows.Close()

	labels := []string{}
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, fmt.Errorf("failed to list versions of %s: %w", id, err)
		}
		labels = append(labels, label)
	}
	return labels, rows.Err()
}

// Stats returns aggregate statistics across all documents.
func (lib *Library) Stats() (*LibraryStats, error) {
	entries, err := lib.ListDocuments()
	if err != nil {
		return nil, err
	}
	stats := &LibraryStats{ByStatus: make(map[string]int)}
	for _, entry := range entries {
		stats.TotalDocuments++
		stats.TotalNodes += entry.Nodes
		stats.TotalVersions += entry.Versions
		stats.TotalStoredBytes += entry.StoredBytes
		stats.ByStatus[string(entry.Status)]++
		if entry.HasParametrization {
			stats.Parametrized++
		}
	}
	return stats, nil
}

// --- Internal helpers ---

const entryQuery = `SELECT d.id, d.title, d.status, d.digest, d.nodes, length(d.body), d.created_at, d.updated_at,
	EXISTS (SELECT 1 FROM parametrizations p WHERE p.document_id = d.id),
	(SELECT COUNT(*) FROM versions v WHERE v.document_id = d.id)
	FROM documents d`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*DocumentEntry, error) {
	var (
		entry              DocumentEntry
		status             string
		created, updated   string
		hasParametrization bool
	)
	err := row.Scan(&entry.ID, &entry.Title, &status, &entry.Digest, &entry.Nodes, &entry.StoredBytes,
		&created, &updated, &hasParametrization, &entry.Versions)
	if err != nil {
		return nil, err
	}
	entry.Status = DocumentStatus(status)
	entry.HasParametrization = hasParametrization
	if entry.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("invalid created_at for %s: %w", entry.ID, err)
	}
	if entry.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return nil, fmt.Errorf("invalid updated_at for %s: %w", entry.ID, err)
	}
	return &entry, nil
}

func (lib *Library) entryUnsafe(id string) (*DocumentEntry, error) {
	entry, err := scanEntry(lib.db.QueryRow(entryQuery+` WHERE d.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", id, err)
	}
	return entry, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func countNodes(doc *text.StructuredText) int {
	n := 0
	text.Walk(doc, func(text.Path, *text.StructuredText) bool {
		n++
		return true
	})
	return n
}
