package library

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/coolbeans/normtree/pkg/text"
)

// ImportDirectory stores every *.json structured text found in dirPath,
// keyed by file name without extension. When a document is already stored
// its node ids are carried over to the new tree by title before saving.
func ImportDirectory(lib *Library, dirPath string) (*ImportReport, error) {
	matches, err := filepath.Glob(filepath.Join(dirPath, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to glob directory: %w", err)
	}

	report := &ImportReport{
		TotalAttempted: len(matches),
		Entries:        make([]ImportEntryState, 0, len(matches)),
	}
	fail := func(id string, err error) {
		report.Failed++
		report.Entries = append(report.Entries, ImportEntryState{ID: id, Status: "failed", Error: err.Error()})
	}

	for _, sourcePath := range matches {
		documentID := DeriveDocumentID(sourcePath)

		data, err := os.ReadFile(sourcePath)
		if err != nil {
			fail(documentID, err)
			continue
		}
		var doc text.StructuredText
		if err := json.Unmarshal(data, &doc); err != nil {
			fail(documentID, fmt.Errorf("failed to parse %s: %w", filepath.Base(sourcePath), err))
			continue
		}

		if previous, err := lib.GetDocument(documentID); err == nil {
			TransferIDs(previous, &doc)
		}

		_, changed, err := lib.SaveDocument(documentID, &doc)
		if err != nil {
			fail(documentID, err)
			continue
		}
		if !changed {
			report.Unchanged++
			report.Entries = append(report.Entries, ImportEntryState{ID: documentID, Status: "unchanged"})
			continue
		}
		report.Imported++
		report.Entries = append(report.Entries, ImportEntryState{ID: documentID, Status: "imported"})
	}

	return report, nil
}

// DeriveDocumentID turns a file path into a document id: the base name
// without extension, lower-cased, spaces replaced by dashes.
func DeriveDocumentID(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(base)), " ", "-")
}
