package code_dataset

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// S3Client is the subset of the S3 API the corpus reader uses. *s3.S3
// satisfies it.
type S3Client interface {
	GetObjectWithContext(ctx aws.Context, input *s3.GetObjectInput,
		opts ...request.Option) (*s3.GetObjectOutput, error)
}

// NewS3Client builds a client from the shared AWS configuration and the
// environment.
func NewS3Client() (S3Client, error) {
	sess, err := session.NewSessionWithOptions(session.Options{
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, fmt.Errorf("creating AWS session: %w", err)
	}
	return s3.New(sess), nil
}

func isS3URI(source string) bool {
	return strings.HasPrefix(source, "s3://")
}

func parseS3URI(source string) (bucket string, key string, err error) {
	u, err := url.Parse(source)
	if err != nil {
		return "", "", err
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid S3 URI %q: expected "+
			"s3://bucket/key", source)
	}
	return bucket, key, nil
}

// fetchTextFileS3 reads an object from S3 as raw bytes.
func fetchTextFileS3(ctx context.Context, svc S3Client, bucket string,
	key string) ([]byte, error) {
	output, err := svc.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("fetching s3://%s/%s: %w", bucket, key, err)
	}
	defer output.Body.Close()
	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("reading s3://%s/%s: %w", bucket, key, err)
	}
	return data, nil
}
