package documents

import (
	"time"

	"github.com/google/uuid"

	"github.com/foresight/docintel/internal/domain/classification"
	"github.com/foresight/docintel/internal/domain/extraction"
)

// Status is the lifecycle state of a document.
type Status string

const (
	StatusUploaded   Status = "uploaded"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Type is the stored document type.
type Type string

const (
	TypeInsuranceCard  Type = "insurance_card"
	TypeIDVerification Type = "id_verification"
	TypeMedicalRecord  Type = "medical_record"
	TypeOther          Type = "other"
)

func (t Type) Valid() bool {
	switch t {
	case TypeInsuranceCard, TypeIDVerification, TypeMedicalRecord, TypeOther:
		return true
	}
	return false
}

// ProcessingInfo is the bookkeeping for the analysis job behind a document.
type ProcessingInfo struct {
	Status     string     `json:"status"`
	JobID      string     `json:"job_id,omitempty"`
	JobKind    string     `json:"job_kind,omitempty"`
	Message    string     `json:"message,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// ExtractionPayload is the latest extraction result. It is replaced
// wholesale on every completed analysis.
type ExtractionPayload struct {
	Classification classification.Type `json:"classification"`
	Confidence     float64             `json:"confidence"`
	Fields         []extraction.Field  `json:"fields"`
	FullText       string              `json:"full_text"`
	ProcessedAt    time.Time           `json:"processed_at"`
	Status         string              `json:"status"`
}

// Document maps to the documents table.
type Document struct {
	ID             uuid.UUID          `db:"id" json:"id"`
	PatientID      *uuid.UUID         `db:"patient_id" json:"patient_id,omitempty"`
	OrganizationID *uuid.UUID         `db:"organization_id" json:"organization_id,omitempty"`
	Bucket         string             `db:"bucket" json:"bucket"`
	ObjectKey      string             `db:"object_key" json:"object_key"`
	FileName       string             `db:"file_name" json:"file_name"`
	DocumentType   Type               `db:"document_type" json:"document_type"`
	Status         Status             `db:"status" json:"status"`
	Processing     *ProcessingInfo    `db:"processing" json:"processing,omitempty"`
	Extraction     *ExtractionPayload `db:"extraction" json:"extraction,omitempty"`
	CreatedAt      time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `db:"updated_at" json:"updated_at"`
}

// Extraction is the input to Service.ApplyExtraction.
type Extraction struct {
	Classification classification.Result
	Fields         []extraction.Field
	FullText       string
	ProcessedAt    time.Time
}
