package fetch

import (
	"context"
	"fmt"
	"io"
	"os"

	gstorage "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSCredentialEnvKey points at a service account key. Without it the
// client connects anonymously.
const GCSCredentialEnvKey = "GOOGLE_APPLICATION_CREDENTIALS"

// GCSProvider downloads objects from Google Cloud Storage.
type GCSProvider struct {
	Client *gstorage.Client
}

var _ Provider = (*GCSProvider)(nil)

// NewGCSProvider returns a provider using application default credentials
// when GOOGLE_APPLICATION_CREDENTIALS is set. Extra options are passed to
// the client.
func NewGCSProvider(ctx context.Context, opts ...option.ClientOption) (*GCSProvider, error) {
	if _, ok := os.LookupEnv(GCSCredentialEnvKey); !ok {
		opts = append(opts, option.WithoutAuthentication())
	}
	client, err := gstorage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcs client: %w", err)
	}
	return &GCSProvider{Client: client}, nil
}

// Download implements Provider.
func (p *GCSProvider) Download(ctx context.Context, uri string, dst File) (int64, error) {
	bucket, object, err := splitBucketURI(uri, GCS)
	if err != nil {
		return 0, err
	}
	reader, err := p.Client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to create reader for object(%s) in bucket(%s): %w", object, bucket, err)
	}
	defer reader.Close()

	n, err := io.Copy(dst, reader)
	if err != nil {
		return n, fmt.Errorf("failed to read object(%s) in bucket(%s): %w", object, bucket, err)
	}
	return n, nil
}
