package model

import "time"

// DocumentSetStatus is the completeness state of a document set.
type DocumentSetStatus string

const (
	DocumentSetPending  DocumentSetStatus = "pending"
	DocumentSetComplete DocumentSetStatus = "complete"
)

// DocumentSet groups the related documents of one trade transaction.
// It is a derived cache over ingestion membership: Status flips to
// complete when every expected document type has at least one
// completed member, and EvaluatedAt records the last discrepancy
// evaluation so repeat completeness notifications are no-ops.
type DocumentSet struct {
	ID                    string            `json:"id"`
	SetKey                string            `json:"set_key"`
	ExpectedDocumentTypes []DocumentType    `json:"expected_document_types"`
	MemberIngestionIDs    []string          `json:"member_ingestion_ids"`
	Status                DocumentSetStatus `json:"status"`
	EvaluatedAt           *time.Time        `json:"evaluated_at,omitempty"`
	CreatedAt             time.Time         `json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
}

// SetMember is one member record with the extraction snapshot the
// discrepancy engine evaluates.
type SetMember struct {
	IngestionID  string
	DocumentType DocumentType
	CompletedAt  *time.Time
	Fields       []FieldExtraction
}

// SetSnapshot is the engine's immutable view of a document set.
type SetSnapshot struct {
	Set     DocumentSet
	Members []SetMember
}

// Field returns the first field with the given name among members of
// the given document type, or nil when absent.
func (s *SetSnapshot) Field(docType DocumentType, fieldName string) *FieldExtraction {
	for i := range s.Members {
		m := &s.Members[i]
		if m.DocumentType != docType {
			continue
		}
		for j := range m.Fields {
			if m.Fields[j].FieldName == fieldName {
				return &m.Fields[j]
			}
		}
	}
	return nil
}

// HasType reports whether any member of the snapshot carries the given
// document type.
func (s *SetSnapshot) HasType(docType DocumentType) bool {
	for i := range s.Members {
		if s.Members[i].DocumentType == docType {
			return true
		}
	}
	return false
}
