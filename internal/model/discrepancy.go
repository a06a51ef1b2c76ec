package model

import "time"

// Severity classifies how serious a discrepancy is. Severity is fixed
// per rule, never inferred.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// DiscrepancyStatus tracks the resolution workflow.
type DiscrepancyStatus string

const (
	DiscrepancyOpen     DiscrepancyStatus = "open"
	DiscrepancyResolved DiscrepancyStatus = "resolved"
)

// Discrepancy type names emitted by the rule table.
const (
	DiscrepancyAmountMismatch      = "Amount Mismatch"
	DiscrepancyDateDiscrepancy     = "Date Discrepancy"
	DiscrepancyDocumentMissing     = "Document Missing"
	DiscrepancyDescriptionMismatch = "Description Mismatch"
)

// NotProvided is the marker recorded on the missing side of a
// "Document Missing" discrepancy.
const NotProvided = "Not Provided"

// Discrepancy is a detected inconsistency between documents of a set.
type Discrepancy struct {
	ID               string            `json:"id"`
	DocumentSetID    string            `json:"document_set_id"`
	DiscrepancyType  string            `json:"discrepancy_type"`
	Severity         Severity          `json:"severity"`
	Description      string            `json:"description"`
	FieldName        string            `json:"field_name"`
	ExpectedValue    string            `json:"expected_value"`
	ActualValue      string            `json:"actual_value"`
	UCPRuleReference string            `json:"ucp_rule_reference"`
	Status           DiscrepancyStatus `json:"status"`
	CreatedAt        time.Time         `json:"created_at"`
	ResolvedAt       *time.Time        `json:"resolved_at,omitempty"`
	ResolutionNotes  string            `json:"resolution_notes,omitempty"`
}
