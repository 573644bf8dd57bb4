package quality

import (
	"context"
	"fmt"
	"strings"

	"github.com/foresight/docintel/internal/platform/storage"
)

// DocumentKind is the declared type the gate validates against.
type DocumentKind string

const (
	KindInsuranceCard   DocumentKind = "insurance_card"
	KindIDCard          DocumentKind = "id_card"
	KindMedicalDocument DocumentKind = "medical_document"
	KindGeneral         DocumentKind = "general"
)

// Text detection types.
const (
	TextWord = "WORD"
	TextLine = "LINE"
)

type TextDetection struct {
	Text       string
	Type       string
	Confidence float64
}

type FaceQuality struct {
	Brightness float64
	Sharpness  float64
}

type Face struct {
	Confidence float64
	Quality    *FaceQuality
}

type ModerationLabel struct {
	Name       string
	Confidence float64
}

// ImageAnalyzer is the image-analysis and content-moderation service.
type ImageAnalyzer interface {
	DetectText(ctx context.Context, loc storage.Location) ([]TextDetection, error)
	DetectFaces(ctx context.Context, loc storage.Location) ([]Face, error)
	DetectModerationLabels(ctx context.Context, loc storage.Location, minConfidence float64) ([]ModerationLabel, error)
}

// Options controls which checks run.
type Options struct {
	// MinTextConfidence is the mean word confidence (percent) required.
	MinTextConfidence float64
	CheckFaces        bool
	CheckModeration   bool
	// CheckStructure runs the domain keyword pass.
	CheckStructure bool
}

// DefaultOptions matches an insurance card upload.
func DefaultOptions() Options {
	return Options{MinTextConfidence: 80, CheckModeration: true, CheckStructure: true}
}

type Grade string

const (
	GradeHigh   Grade = "high"
	GradeMedium Grade = "medium"
	GradeLow    Grade = "low"
)

type Metadata struct {
	TextConfidence    *float64 `json:"text_confidence,omitempty"`
	FaceDetected      *bool    `json:"face_detected,omitempty"`
	DocumentQuality   Grade    `json:"document_quality,omitempty"`
	SuspiciousContent bool     `json:"suspicious_content"`
}

type Result struct {
	IsValid    bool     `json:"is_valid"`
	Confidence float64  `json:"confidence"`
	Issues     []string `json:"issues"`
	Metadata   Metadata `json:"metadata"`
	// ServiceErr is set when an analysis call failed. The document itself
	// was not judged.
	ServiceErr error `json:"-"`
}

// Err returns nil for a valid result, a *ServiceError when the analysis
// service failed and a *RejectedError when the document failed.
func (r *Result) Err() error {
	if r.IsValid {
		return nil
	}
	if r.ServiceErr != nil {
		return r.ServiceErr
	}
	return &RejectedError{Issues: r.Issues, Confidence: r.Confidence}
}

// QuickResult is the outcome of the text-only pre-check.
type QuickResult struct {
	IsValid    bool   `json:"is_valid"`
	Reason     string `json:"reason,omitempty"`
	ServiceErr error  `json:"-"`
}

// RejectedError carries the checks a document failed.
type RejectedError struct {
	Issues     []string
	Confidence float64
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("document failed quality checks: %s", strings.Join(e.Issues, "; "))
}

// ServiceError is a failed call to the image-analysis service. It is
// transient: the same image may pass on retry.
type ServiceError struct {
	Check string
	Err   error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Check, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }
