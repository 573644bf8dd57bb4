// Package textract adapts the AWS document-analysis service to the
// analysis.Client port.
package textract

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"

	"github.com/foresight/docintel/internal/domain/analysis"
	"github.com/foresight/docintel/internal/platform/storage"
)

// API is the subset of *textract.Client the adapter calls.
type API interface {
	AnalyzeDocument(ctx context.Context, params *textract.AnalyzeDocumentInput, optFns ...func(*textract.Options)) (*textract.AnalyzeDocumentOutput, error)
	StartDocumentAnalysis(ctx context.Context, params *textract.StartDocumentAnalysisInput, optFns ...func(*textract.Options)) (*textract.StartDocumentAnalysisOutput, error)
	StartDocumentTextDetection(ctx context.Context, params *textract.StartDocumentTextDetectionInput, optFns ...func(*textract.Options)) (*textract.StartDocumentTextDetectionOutput, error)
	GetDocumentAnalysis(ctx context.Context, params *textract.GetDocumentAnalysisInput, optFns ...func(*textract.Options)) (*textract.GetDocumentAnalysisOutput, error)
	GetDocumentTextDetection(ctx context.Context, params *textract.GetDocumentTextDetectionInput, optFns ...func(*textract.Options)) (*textract.GetDocumentTextDetectionOutput, error)
}

const maxResultsPerPage = 1000

var formsAndTables = []types.FeatureType{types.FeatureTypeForms, types.FeatureTypeTables}

type Client struct {
	api API
}

func New(api API) *Client {
	return &Client{api: api}
}

func (c *Client) AnalyzeDocument(ctx context.Context, loc storage.Location) ([]analysis.Block, error) {
	out, err := c.api.AnalyzeDocument(ctx, &textract.AnalyzeDocumentInput{
		Document:     &types.Document{S3Object: s3Object(loc)},
		FeatureTypes: formsAndTables,
	})
	if err != nil {
		return nil, err
	}
	return convertBlocks(out.Blocks), nil
}

func (c *Client) StartAnalysis(ctx context.Context, sub analysis.Submission) (string, error) {
	tag := sub.Tag.String()
	out, err := c.api.StartDocumentAnalysis(ctx, &textract.StartDocumentAnalysisInput{
		DocumentLocation:    &types.DocumentLocation{S3Object: s3Object(sub.Location)},
		FeatureTypes:        formsAndTables,
		JobTag:              aws.String(tag),
		ClientRequestToken:  aws.String(tag),
		NotificationChannel: channel(sub.Channel),
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(out.JobId), nil
}

func (c *Client) StartTextDetection(ctx context.Context, sub analysis.Submission) (string, error) {
	tag := sub.Tag.String()
	out, err := c.api.StartDocumentTextDetection(ctx, &textract.StartDocumentTextDetectionInput{
		DocumentLocation:    &types.DocumentLocation{S3Object: s3Object(sub.Location)},
		JobTag:              aws.String(tag),
		ClientRequestToken:  aws.String(tag),
		NotificationChannel: channel(sub.Channel),
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(out.JobId), nil
}

func (c *Client) GetPage(ctx context.Context, kind analysis.JobKind, jobID, nextToken string) (*analysis.Page, error) {
	var token *string
	if nextToken != "" {
		token = aws.String(nextToken)
	}

	switch kind {
	case analysis.JobAnalysis:
		out, err := c.api.GetDocumentAnalysis(ctx, &textract.GetDocumentAnalysisInput{
			JobId:      aws.String(jobID),
			NextToken:  token,
			MaxResults: aws.Int32(maxResultsPerPage),
		})
		if err != nil {
			return nil, err
		}
		return &analysis.Page{
			Blocks:        convertBlocks(out.Blocks),
			NextToken:     aws.ToString(out.NextToken),
			JobStatus:     string(out.JobStatus),
			StatusMessage: aws.ToString(out.StatusMessage),
		}, nil
	case analysis.JobDetection:
		out, err := c.api.GetDocumentTextDetection(ctx, &textract.GetDocumentTextDetectionInput{
			JobId:      aws.String(jobID),
			NextToken:  token,
			MaxResults: aws.Int32(maxResultsPerPage),
		})
		if err != nil {
			return nil, err
		}
		return &analysis.Page{
			Blocks:        convertBlocks(out.Blocks),
			NextToken:     aws.ToString(out.NextToken),
			JobStatus:     string(out.JobStatus),
			StatusMessage: aws.ToString(out.StatusMessage),
		}, nil
	default:
		return nil, fmt.Errorf("unknown job kind %q", kind)
	}
}

func s3Object(loc storage.Location) *types.S3Object {
	return &types.S3Object{Bucket: aws.String(loc.Bucket), Name: aws.String(loc.Key)}
}

func channel(ch *analysis.NotificationChannel) *types.NotificationChannel {
	if ch == nil {
		return nil
	}
	return &types.NotificationChannel{
		SNSTopicArn: aws.String(ch.TopicARN),
		RoleArn:     aws.String(ch.RoleARN),
	}
}

func convertBlocks(in []types.Block) []analysis.Block {
	out := make([]analysis.Block, 0, len(in))
	for _, b := range in {
		blk := analysis.Block{
			ID:         aws.ToString(b.Id),
			Type:       string(b.BlockType),
			Text:       aws.ToString(b.Text),
			Confidence: float64(aws.ToFloat32(b.Confidence)),
			Page:       int(aws.ToInt32(b.Page)),
		}
		for _, e := range b.EntityTypes {
			blk.EntityTypes = append(blk.EntityTypes, string(e))
		}
		for _, r := range b.Relationships {
			blk.Relationships = append(blk.Relationships, analysis.Relationship{Type: string(r.Type), IDs: r.Ids})
		}
		if b.Geometry != nil && b.Geometry.BoundingBox != nil {
			bb := b.Geometry.BoundingBox
			blk.Box = &analysis.BoundingBox{
				Width:  float64(bb.Width),
				Height: float64(bb.Height),
				Left:   float64(bb.Left),
				Top:    float64(bb.Top),
			}
		}
		out = append(out, blk)
	}
	return out
}
