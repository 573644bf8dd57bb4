package analysis

import (
	"context"
	"errors"
	"fmt"
)

var ErrJobNotReady = errors.New("analysis job has not finished")

// PageGetter fetches one page of job results.
type PageGetter interface {
	GetPage(ctx context.Context, kind JobKind, jobID, nextToken string) (*Page, error)
}

// Drain follows continuation tokens until the service reports no more pages
// and returns every block from every page in order.
func Drain(ctx context.Context, getter PageGetter, kind JobKind, jobID string) ([]Block, error) {
	var (
		blocks []Block
		token  string
		seen   = make(map[string]bool)
	)
	for pageNo := 1; ; pageNo++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := getter.GetPage(ctx, kind, jobID, token)
		if err != nil {
			return nil, fmt.Errorf("get %s results page %d for job %s: %w", kind, pageNo, jobID, err)
		}
		switch page.JobStatus {
		case StatusInProgress:
			return nil, fmt.Errorf("%w: job %s", ErrJobNotReady, jobID)
		case StatusFailed:
			return nil, fmt.Errorf("job %s failed: %s", jobID, page.StatusMessage)
		}

		blocks = append(blocks, page.Blocks...)

		if page.NextToken == "" {
			return blocks, nil
		}
		if seen[page.NextToken] {
			return nil, fmt.Errorf("job %s: continuation token repeated on page %d", jobID, pageNo)
		}
		seen[page.NextToken] = true
		token = page.NextToken
	}
}
