// Package rekognition adapts the AWS image-analysis service to the
// quality.ImageAnalyzer port.
package rekognition

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"github.com/foresight/docintel/internal/domain/quality"
	"github.com/foresight/docintel/internal/platform/storage"
)

// API is the subset of *rekognition.Client the adapter calls.
type API interface {
	DetectText(ctx context.Context, params *rekognition.DetectTextInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectTextOutput, error)
	DetectFaces(ctx context.Context, params *rekognition.DetectFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error)
	DetectModerationLabels(ctx context.Context, params *rekognition.DetectModerationLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectModerationLabelsOutput, error)
}

type Analyzer struct {
	api API
}

func New(api API) *Analyzer {
	return &Analyzer{api: api}
}

func image(loc storage.Location) *types.Image {
	return &types.Image{S3Object: &types.S3Object{Bucket: aws.String(loc.Bucket), Name: aws.String(loc.Key)}}
}

func (a *Analyzer) DetectText(ctx context.Context, loc storage.Location) ([]quality.TextDetection, error) {
	out, err := a.api.DetectText(ctx, &rekognition.DetectTextInput{Image: image(loc)})
	if err != nil {
		return nil, err
	}
	detections := make([]quality.TextDetection, 0, len(out.TextDetections))
	for _, d := range out.TextDetections {
		detections = append(detections, quality.TextDetection{
			Text:       aws.ToString(d.DetectedText),
			Type:       string(d.Type),
			Confidence: float64(aws.ToFloat32(d.Confidence)),
		})
	}
	return detections, nil
}

func (a *Analyzer) DetectFaces(ctx context.Context, loc storage.Location) ([]quality.Face, error) {
	out, err := a.api.DetectFaces(ctx, &rekognition.DetectFacesInput{
		Image:      image(loc),
		Attributes: []types.Attribute{types.AttributeAll},
	})
	if err != nil {
		return nil, err
	}
	faces := make([]quality.Face, 0, len(out.FaceDetails))
	for _, f := range out.FaceDetails {
		face := quality.Face{Confidence: float64(aws.ToFloat32(f.Confidence))}
		if f.Quality != nil {
			face.Quality = &quality.FaceQuality{
				Brightness: float64(aws.ToFloat32(f.Quality.Brightness)),
				Sharpness:  float64(aws.ToFloat32(f.Quality.Sharpness)),
			}
		}
		faces = append(faces, face)
	}
	return faces, nil
}

func (a *Analyzer) DetectModerationLabels(ctx context.Context, loc storage.Location, minConfidence float64) ([]quality.ModerationLabel, error) {
	out, err := a.api.DetectModerationLabels(ctx, &rekognition.DetectModerationLabelsInput{
		Image:         image(loc),
		MinConfidence: aws.Float32(float32(minConfidence)),
	})
	if err != nil {
		return nil, err
	}
	labels := make([]quality.ModerationLabel, 0, len(out.ModerationLabels))
	for _, l := range out.ModerationLabels {
		labels = append(labels, quality.ModerationLabel{
			Name:       aws.ToString(l.Name),
			Confidence: float64(aws.ToFloat32(l.Confidence)),
		})
	}
	return labels, nil
}
