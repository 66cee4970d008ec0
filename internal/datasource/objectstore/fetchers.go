package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"retaildc/internal/etlerr"
)

// S3API is the subset of *s3.Client used by S3Fetcher.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Fetcher reads objects from S3. The SDK retries transient failures
// itself, so errors that survive it are reported as connectivity errors.
type S3Fetcher struct {
	Client S3API
}

func (f S3Fetcher) Fetch(ctx context.Context, a Address) ([]byte, error) {
	op := "objectstore: get " + a.String()
	out, err := f.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.Bucket),
		Key:    aws.String(a.Key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		var nsb *types.NoSuchBucket
		var nf *types.NotFound
		if errors.As(err, &nsk) || errors.As(err, &nsb) || errors.As(err, &nf) {
			return nil, etlerr.NotFound(op, err)
		}
		return nil, etlerr.Connectivity(op, err)
	}
	defer out.Body.Close()

	b, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, etlerr.Connectivity(op, err)
	}
	return b, nil
}

// BytesGetter is satisfied by *httpds.Client.
type BytesGetter interface {
	GetBytes(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher reads publicly reachable objects over HTTP(S).
type HTTPFetcher struct {
	Client BytesGetter
}

func (f HTTPFetcher) Fetch(ctx context.Context, a Address) ([]byte, error) {
	return f.Client.GetBytes(ctx, a.Raw)
}

// LocalFetcher reads file:// objects from the local disk.
type LocalFetcher struct{}

// Fetch returns the context error without touching the filesystem when ctx
// is already done. A missing file is etlerr.ErrNotFound.
func (LocalFetcher) Fetch(ctx context.Context, a Address) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	b, err := os.ReadFile(a.Key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, etlerr.NotFound("objectstore: open "+a.Key, err)
		}
		return nil, fmt.Errorf("objectstore: open %s: %w", a.Key, err)
	}
	return b, nil
}
