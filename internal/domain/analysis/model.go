package analysis

import (
	"context"
	"path"
	"strings"

	"github.com/foresight/docintel/internal/platform/storage"
)

// JobKind selects which asynchronous operation processes a document.
type JobKind string

const (
	// JobAnalysis extracts forms and tables as well as text.
	JobAnalysis JobKind = "analysis"
	// JobDetection extracts plain text lines and words.
	JobDetection JobKind = "detection"
)

func (k JobKind) Valid() bool {
	return k == JobAnalysis || k == JobDetection
}

// Job status values reported by the analysis service.
const (
	StatusInProgress     = "IN_PROGRESS"
	StatusSucceeded      = "SUCCEEDED"
	StatusFailed         = "FAILED"
	StatusPartialSuccess = "PARTIAL_SUCCESS"
)

// Block types produced by the analysis service.
const (
	BlockPage        = "PAGE"
	BlockLine        = "LINE"
	BlockWord        = "WORD"
	BlockKeyValueSet = "KEY_VALUE_SET"
	BlockTable       = "TABLE"
	BlockCell        = "CELL"
	BlockSelection   = "SELECTION_ELEMENT"
)

// Relationship and entity type values used when walking the block graph.
const (
	RelChild  = "CHILD"
	RelValue  = "VALUE"
	EntityKey = "KEY"
	EntityVal = "VALUE"
)

type BoundingBox struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
}

type Relationship struct {
	Type string
	IDs  []string
}

// Block is one node of the analysis output graph: a page, line, word, or one
// side of a form key/value pair.
type Block struct {
	ID            string
	Type          string
	Text          string
	Confidence    float64 // percent, 0..100
	EntityTypes   []string
	Relationships []Relationship
	Box           *BoundingBox
	Page          int
}

// HasEntity reports whether the block is tagged with entity type t.
func (b Block) HasEntity(t string) bool {
	for _, e := range b.EntityTypes {
		if e == t {
			return true
		}
	}
	return false
}

// Related returns the ids of related blocks of relationship type t.
func (b Block) Related(t string) []string {
	var ids []string
	for _, r := range b.Relationships {
		if r.Type == t {
			ids = append(ids, r.IDs...)
		}
	}
	return ids
}

// Page is one slice of a job's results.
type Page struct {
	Blocks        []Block
	NextToken     string
	JobStatus     string
	StatusMessage string
}

// Submission describes one asynchronous job request.
type Submission struct {
	Location storage.Location
	Tag      CorrelationTag
	Channel  *NotificationChannel
}

// NotificationChannel is where the service publishes job completion.
type NotificationChannel struct {
	TopicARN string
	RoleARN  string
}

// Client is the document-analysis service.
type Client interface {
	AnalyzeDocument(ctx context.Context, loc storage.Location) ([]Block, error)
	StartAnalysis(ctx context.Context, sub Submission) (string, error)
	StartTextDetection(ctx context.Context, sub Submission) (string, error)
	GetPage(ctx context.Context, kind JobKind, jobID, nextToken string) (*Page, error)
}

// ChooseJobKind picks full analysis for PDFs and anything that looks like an
// insurance card, plain text detection otherwise.
func ChooseJobKind(fileName string) JobKind {
	name := strings.ToLower(fileName)
	if path.Ext(name) == ".pdf" || strings.Contains(name, "insurance") || strings.Contains(name, "card") {
		return JobAnalysis
	}
	return JobDetection
}
