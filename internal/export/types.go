// Package export renders lead dossiers to PDF.
package export

import (
	"errors"
	"time"

	"nexacrm/api/internal/store"
)

// Dossier is everything printed for a single lead.
type Dossier struct {
	Lead        store.Lead
	Notes       []store.Note
	OpenTasks   []store.Task
	Activity    []store.ActivityEntry
	PreparedBy  string
	GeneratedAt time.Time
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
var ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
