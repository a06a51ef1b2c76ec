package model

import "time"

// Extraction methods recorded on field rows.
const (
	ExtractionMethodPattern  = "pattern"
	ExtractionMethodProvider = "provider"
)

// FieldExtraction is one normalized (name, value, confidence) triple
// extracted from a document. Rows are unique on
// (IngestionID, FormID, FieldName) and immutable after the extraction
// stage; re-running extraction upserts rather than duplicates.
type FieldExtraction struct {
	IngestionID      string    `json:"ingestion_id"`
	FormID           string    `json:"form_id"`
	FieldName        string    `json:"field_name"`
	FieldValue       string    `json:"field_value"`
	Confidence       float64   `json:"confidence"`
	ExtractionMethod string    `json:"extraction_method"`
	CreatedAt        time.Time `json:"created_at"`
}

// TextArtifact is the raw OCR output for one detected form of a
// document (ingestion_txt row).
type TextArtifact struct {
	IngestionID    string    `json:"ingestion_id"`
	FormID         string    `json:"form_id"`
	Content        string    `json:"content"`
	Confidence     float64   `json:"confidence"`
	Language       string    `json:"language"`
	CharacterCount int       `json:"character_count"`
	WordCount      int       `json:"word_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// FormArtifact is the classification result for one detected form of a
// document (ingestion_pdf row).
type FormArtifact struct {
	IngestionID     string       `json:"ingestion_id"`
	FormID          string       `json:"form_id"`
	FilePath        string       `json:"file_path"`
	DocumentType    DocumentType `json:"document_type"`
	PageRange       string       `json:"page_range"`
	FormsDetected   int          `json:"forms_detected"`
	Classification  string       `json:"classification"`
	ConfidenceScore float64      `json:"confidence_score"`
	CreatedAt       time.Time    `json:"created_at"`
}
