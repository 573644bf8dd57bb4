package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// HeadObjectAPI is the slice of the S3 client the store needs.
type HeadObjectAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Store reads object attributes with HeadObject.
type S3Store struct {
	client HeadObjectAPI
}

func NewS3Store(client HeadObjectAPI) *S3Store {
	return &S3Store{client: client}
}

func (s *S3Store) Stat(ctx context.Context, loc Location) (*ObjectInfo, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, loc)
		}
		return nil, fmt.Errorf("head %s: %w", loc, err)
	}

	info := &ObjectInfo{Metadata: make(map[string]string, len(out.Metadata))}
	if out.ContentLength != nil {
		info.Size = *out.ContentLength
	}
	if out.ETag != nil {
		info.ETag = strings.Trim(*out.ETag, "\"")
	}
	if out.ContentType != nil {
		info.ContentType = strings.ToLower(*out.ContentType)
	}
	for k, v := range out.Metadata {
		info.Metadata[strings.ToLower(k)] = v
	}
	return info, nil
}
