package model

import (
	"time"
)

// IngestionStatus represents the lifecycle state of an ingestion record.
type IngestionStatus string

const (
	IngestionStatusPending    IngestionStatus = "pending"
	IngestionStatusProcessing IngestionStatus = "processing"
	IngestionStatusCompleted  IngestionStatus = "completed"
	IngestionStatusError      IngestionStatus = "error"
)

// Stage is one step of the ingestion pipeline.
type Stage string

const (
	StageUpload         Stage = "upload"
	StageValidation     Stage = "validation"
	StageOCR            Stage = "ocr"
	StageClassification Stage = "classification"
	StageExtraction     Stage = "extraction"
)

// CanonicalStages is the complete stage sequence in execution order.
var CanonicalStages = []Stage{
	StageUpload,
	StageValidation,
	StageOCR,
	StageClassification,
	StageExtraction,
}

// StepStatus is the outcome of a single stage execution.
type StepStatus string

const (
	StepCompleted StepStatus = "completed"
	StepError     StepStatus = "error"
)

// ProcessingStep is one append-only entry in a record's stage history.
type ProcessingStep struct {
	Stage     Stage      `json:"stage"`
	Status    StepStatus `json:"status"`
	Timestamp time.Time  `json:"timestamp"`
	Note      string     `json:"note,omitempty"`
}

// IngestionRecord is the durable record of one uploaded document's
// processing lifecycle.
type IngestionRecord struct {
	ID               string            `json:"id"`
	SetKey           string            `json:"set_key"`
	OriginalFilename string            `json:"original_filename"`
	FileType         string            `json:"file_type"`
	SizeBytes        int64             `json:"size_bytes"`
	Status           IngestionStatus   `json:"status"`
	DocumentType     DocumentType      `json:"document_type,omitempty"`
	ExtractedText    string            `json:"extracted_text,omitempty"`
	Confidence       float64           `json:"confidence,omitempty"`
	ExtractedData    map[string]string `json:"extracted_data,omitempty"`
	ProcessingSteps  []ProcessingStep  `json:"processing_steps"`
	ErrorMessage     string            `json:"error_message,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
}

// StepsArePrefix reports whether steps is an ordered, non-decreasing
// prefix of the canonical stage sequence. A trailing error step is
// allowed on any stage of the prefix.
func StepsArePrefix(steps []ProcessingStep) bool {
	if len(steps) > len(CanonicalStages) {
		return false
	}
	for i, s := range steps {
		if s.Stage != CanonicalStages[i] {
			return false
		}
		// Only the final recorded step may carry an error outcome.
		if s.Status == StepError && i != len(steps)-1 {
			return false
		}
	}
	return true
}

// StatusConsistent reports whether a record's status agrees with its
// stage history: completed iff all canonical stages completed, error
// iff the last step errored.
func StatusConsistent(rec *IngestionRecord) bool {
	if !StepsArePrefix(rec.ProcessingSteps) {
		return false
	}
	allDone := len(rec.ProcessingSteps) == len(CanonicalStages)
	for _, s := range rec.ProcessingSteps {
		if s.Status != StepCompleted {
			allDone = false
		}
	}
	lastErrored := len(rec.ProcessingSteps) > 0 &&
		rec.ProcessingSteps[len(rec.ProcessingSteps)-1].Status == StepError

	switch rec.Status {
	case IngestionStatusCompleted:
		return allDone
	case IngestionStatusError:
		return lastErrored
	case IngestionStatusPending, IngestionStatusProcessing:
		return !allDone && !lastErrored
	default:
		return false
	}
}

// NextStage returns the stage that should run next given the recorded
// history, or ("", false) when every canonical stage has completed.
func NextStage(steps []ProcessingStep) (Stage, bool) {
	if len(steps) >= len(CanonicalStages) {
		return "", false
	}
	return CanonicalStages[len(steps)], true
}
