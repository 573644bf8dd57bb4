package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/foresight/docintel/internal/platform/storage"
)

type fakeClient struct {
	analyzed    []storage.Location
	submissions []Submission
	startKinds  []JobKind
	pages       map[string]*Page // keyed by continuation token
	calls       []string
	failStart   error
}

func (f *fakeClient) AnalyzeDocument(ctx context.Context, loc storage.Location) ([]Block, error) {
	f.analyzed = append(f.analyzed, loc)
	return []Block{{ID: "l1", Type: BlockLine, Text: "MEMBER ID A1"}}, nil
}

func (f *fakeClient) StartAnalysis(ctx context.Context, sub Submission) (string, error) {
	return f.start(JobAnalysis, sub)
}

func (f *fakeClient) StartTextDetection(ctx context.Context, sub Submission) (string, error) {
	return f.start(JobDetection, sub)
}

func (f *fakeClient) start(kind JobKind, sub Submission) (string, error) {
	if f.failStart != nil {
		return "", f.failStart
	}
	f.submissions = append(f.submissions, sub)
	f.startKinds = append(f.startKinds, kind)
	return fmt.Sprintf("job-%d", len(f.submissions)), nil
}

func (f *fakeClient) GetPage(ctx context.Context, kind JobKind, jobID, nextToken string) (*Page, error) {
	f.calls = append(f.calls, nextToken)
	p, ok := f.pages[nextToken]
	if !ok {
		return nil, errors.New("unknown token")
	}
	return p, nil
}
