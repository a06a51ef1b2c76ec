// Package store is the single narrow repository contract every
// component mutates ingestion state through. Two backends implement
// it: Postgres (pgx) for service deployments and SQLite for local CLI
// use.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tradedocs/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = eris.New("store: not found")

// IngestionFilter specifies criteria for listing ingestion records.
type IngestionFilter struct {
	Status model.IngestionStatus `json:"status,omitempty"`
	SetKey string                `json:"set_key,omitempty"`
	Limit  int                   `json:"limit,omitempty"`
	Offset int                   `json:"offset,omitempty"`
}

// Store defines the persistence interface for the ingestion pipeline
// and discrepancy engine.
type Store interface {
	// Ingestion records
	CreateIngestion(ctx context.Context, rec *model.IngestionRecord) error
	GetIngestion(ctx context.Context, id string) (*model.IngestionRecord, error)
	ListIngestions(ctx context.Context, filter IngestionFilter) ([]model.IngestionRecord, error)
	// ListStuck returns processing records untouched since the cutoff.
	ListStuck(ctx context.Context, cutoff time.Time) ([]model.IngestionRecord, error)

	UpdateStatus(ctx context.Context, id string, status model.IngestionStatus, errorMessage string) error
	AppendStep(ctx context.Context, id string, step model.ProcessingStep) error
	SetExtractedText(ctx context.Context, id, text string, confidence float64) error
	SetDocumentType(ctx context.Context, id string, docType model.DocumentType) error
	SetExtractedData(ctx context.Context, id string, data map[string]string) error
	MarkCompleted(ctx context.Context, id string, at time.Time) error
	// ResetIngestion atomically clears stage history, artifacts, and
	// field rows for a forced re-run, re-seeding the upload step.
	ResetIngestion(ctx context.Context, id string) error

	// Stage artifacts
	SaveTextArtifact(ctx context.Context, a *model.TextArtifact) error
	SaveFormArtifact(ctx context.Context, a *model.FormArtifact) error

	// Field projections
	UpsertFields(ctx context.Context, rows []model.FieldExtraction) error
	GetFields(ctx context.Context, ingestionID string) ([]model.FieldExtraction, error)

	// Document sets
	GetOrCreateSet(ctx context.Context, setKey string, expected []model.DocumentType) (*model.DocumentSet, error)
	AddSetMember(ctx context.Context, setID, ingestionID string) error
	GetSet(ctx context.Context, setKey string) (*model.DocumentSet, error)
	// GetSetSnapshot resolves members with their document types and
	// field rows for discrepancy evaluation.
	GetSetSnapshot(ctx context.Context, setKey string) (*model.SetSnapshot, error)
	MarkSetEvaluated(ctx context.Context, setID string, status model.DocumentSetStatus, at time.Time) error

	// Discrepancies
	// ReplaceOpenDiscrepancies deletes the set's open rows and inserts
	// the new evaluation in one transaction; resolved rows survive.
	ReplaceOpenDiscrepancies(ctx context.Context, setID string, discs []model.Discrepancy) error
	ListDiscrepancies(ctx context.Context, setID string, status model.DiscrepancyStatus) ([]model.Discrepancy, error)
	ResolveDiscrepancy(ctx context.Context, id, notes string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
