// pkg/catalog/s3store.go
package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store reads the catalog document from a fixed object-store location.
type S3Store struct {
	client s3API
	bucket string
	key    string
}

// NewS3Store builds a store over an SDK S3 client.
func NewS3Store(client *s3.Client, bucket, key string) *S3Store {
	return newS3Store(client, bucket, key)
}

func newS3Store(client s3API, bucket, key string) *S3Store {
	return &S3Store{client: client, bucket: bucket, key: key}
}

// FetchCatalog reads and parses the full product mapping.
func (s *S3Store) FetchCatalog(ctx context.Context) (map[ProductKey]ProductRecord, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: awsv2.String(s.bucket),
		Key:    awsv2.String(s.key),
	})
	if err != nil {
		return nil, fmt.Errorf("catalog fetch s3://%s/%s: %w", s.bucket, s.key, err)
	}
	defer out.Body.Close()

	var doc catalogDocument
	if err := json.NewDecoder(out.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("catalog parse s3://%s/%s: %w", s.bucket, s.key, err)
	}
	if doc.Products == nil {
		return nil, fmt.Errorf("catalog s3://%s/%s: missing products mapping", s.bucket, s.key)
	}
	return doc.Products, nil
}
