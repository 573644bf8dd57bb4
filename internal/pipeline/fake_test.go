package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/foresight/docintel/internal/domain/analysis"
	"github.com/foresight/docintel/internal/domain/coverage"
	"github.com/foresight/docintel/internal/domain/documents"
	"github.com/foresight/docintel/internal/domain/quality"
	"github.com/foresight/docintel/internal/platform/storage"
)

var fixedNow = time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

// -- analysis results --

type fakePages struct {
	// pages is keyed by "kind/jobID" then by continuation token.
	pages map[string]map[string]*analysis.Page
	calls int
	err   error
}

func newFakePages() *fakePages {
	return &fakePages{pages: make(map[string]map[string]*analysis.Page)}
}

func (f *fakePages) add(kind analysis.JobKind, jobID string, pages ...[]analysis.Block) {
	byToken := make(map[string]*analysis.Page)
	for i, blocks := range pages {
		token := ""
		if i > 0 {
			token = fmt.Sprintf("t%d", i)
		}
		next := ""
		if i < len(pages)-1 {
			next = fmt.Sprintf("t%d", i+1)
		}
		byToken[token] = &analysis.Page{Blocks: blocks, NextToken: next, JobStatus: analysis.StatusSucceeded}
	}
	f.pages[string(kind)+"/"+jobID] = byToken
}

func (f *fakePages) GetPage(_ context.Context, kind analysis.JobKind, jobID, token string) (*analysis.Page, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	byToken, ok := f.pages[string(kind)+"/"+jobID]
	if !ok {
		return nil, fmt.Errorf("InvalidJobIdException: %s job %s", kind, jobID)
	}
	page, ok := byToken[token]
	if !ok {
		return nil, fmt.Errorf("invalid token %q", token)
	}
	return page, nil
}

func lines(texts ...string) []analysis.Block {
	out := make([]analysis.Block, 0, len(texts))
	for i, t := range texts {
		out = append(out, analysis.Block{ID: fmt.Sprintf("%s-%d", t, i), Type: analysis.BlockLine, Text: t, Confidence: 99})
	}
	return out
}

// -- documents --

type memDocs struct {
	items map[uuid.UUID]*documents.Document
}

func newMemDocs() *memDocs {
	return &memDocs{items: make(map[uuid.UUID]*documents.Document)}
}

func (m *memDocs) Create(_ context.Context, d *documents.Document) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	d.Status = documents.StatusUploaded
	m.items[d.ID] = d
	return nil
}

func (m *memDocs) GetByID(_ context.Context, id uuid.UUID) (*documents.Document, error) {
	d, ok := m.items[id]
	if !ok {
		return nil, documents.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memDocs) UpdateProcessing(_ context.Context, id uuid.UUID, status documents.Status, info *documents.ProcessingInfo) error {
	d, ok := m.items[id]
	if !ok {
		return documents.ErrNotFound
	}
	d.Status = status
	d.Processing = info
	return nil
}

func (m *memDocs) UpdateExtraction(_ context.Context, id uuid.UUID, docType documents.Type, info *documents.ProcessingInfo, payload *documents.ExtractionPayload) error {
	d, ok := m.items[id]
	if !ok {
		return documents.ErrNotFound
	}
	d.Status = documents.StatusCompleted
	d.DocumentType = docType
	d.Processing = info
	d.Extraction = payload
	return nil
}

func newDocService() (*documents.Service, *memDocs) {
	repo := newMemDocs()
	return documents.NewService(repo, zerolog.Nop()), repo
}

func seedDoc(repo *memDocs, fileName string) *documents.Document {
	d := &documents.Document{Bucket: "docs", FileName: fileName}
	repo.Create(context.Background(), d)
	d.ObjectKey = storage.BuildDocumentKey(d.ID, fileName)
	return d
}

// -- quality --

type fakeQuickGate struct {
	result quality.QuickResult
	calls  int
}

func (f *fakeQuickGate) QuickValidate(context.Context, storage.Location) quality.QuickResult {
	f.calls++
	return f.result
}

// throttledAnalyzer fails every image-analysis call.
type throttledAnalyzer struct{ err error }

func (a throttledAnalyzer) DetectText(context.Context, storage.Location) ([]quality.TextDetection, error) {
	return nil, a.err
}

func (a throttledAnalyzer) DetectFaces(context.Context, storage.Location) ([]quality.Face, error) {
	return nil, a.err
}

func (a throttledAnalyzer) DetectModerationLabels(context.Context, storage.Location, float64) ([]quality.ModerationLabel, error) {
	return nil, a.err
}

var errThrottled = errors.New("ThrottlingException: rate exceeded")

type fakeFullGate struct {
	result *quality.Result
	kind   quality.DocumentKind
	opts   quality.Options
}

func (f *fakeFullGate) Validate(_ context.Context, _ storage.Location, kind quality.DocumentKind, opts quality.Options) *quality.Result {
	f.kind, f.opts = kind, opts
	return f.result
}

func passing() *quality.Result {
	return &quality.Result{IsValid: true, Confidence: 95, Issues: []string{}}
}

// -- dispatch --

type fakeStarter struct {
	err  error
	kind analysis.JobKind
}

func (f *fakeStarter) StartAsync(_ context.Context, _ storage.Location, documentID uuid.UUID, kind analysis.JobKind) (*analysis.Job, error) {
	f.kind = kind
	if f.err != nil {
		return nil, f.err
	}
	return &analysis.Job{ID: "job-" + string(kind), Kind: kind, Tag: analysis.NewTag(documentID, kind, fixedNow)}, nil
}

type fakeSyncAnalyzer struct {
	blocks []analysis.Block
	err    error
	calls  int
}

func (f *fakeSyncAnalyzer) AnalyzeSync(context.Context, storage.Location) ([]analysis.Block, error) {
	f.calls++
	return f.blocks, f.err
}

// -- coverage --

type fakeUpserter struct {
	card coverage.CardData
	err  error
}

func (f *fakeUpserter) UpsertFromCard(_ context.Context, _, _ uuid.UUID, card coverage.CardData) (*coverage.UpsertResult, error) {
	f.card = card
	if f.err != nil {
		return nil, f.err
	}
	if card.PolicyNumber == "" || card.PayerName == "" {
		var missing []string
		if card.PolicyNumber == "" {
			missing = append(missing, "policy_number")
		}
		if card.PayerName == "" {
			missing = append(missing, "payer_name")
		}
		return nil, &coverage.InsufficientExtractionError{Missing: missing}
	}
	return &coverage.UpsertResult{PolicyID: uuid.New(), Created: true}, nil
}

var errUnavailable = errors.New("ServiceUnavailable: try again")
