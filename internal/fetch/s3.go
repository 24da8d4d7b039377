package fetch

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// Environment variables read by NewS3Provider.
const (
	AWSEndpointURL         = "AWS_ENDPOINT_URL"
	AWSRegion              = "AWS_DEFAULT_REGION"
	AWSAnonymousCredential = "AWS_ANONYMOUS_CREDENTIAL"
	S3UseVirtualBucket     = "S3_USE_VIRTUAL_BUCKET"
)

// S3Provider downloads objects with the S3 multipart downloader.
type S3Provider struct {
	Downloader *s3manager.Downloader
}

var _ Provider = (*S3Provider)(nil)

// NewS3Provider returns a provider configured from the standard AWS
// environment plus the endpoint and addressing overrides above.
func NewS3Provider() (*S3Provider, error) {
	region, _ := os.LookupEnv(AWSRegion)
	useVirtualBucket := true
	if v, ok := os.LookupEnv(S3UseVirtualBucket); ok && strings.EqualFold(v, "false") {
		useVirtualBucket = false
	}

	cfg := aws.Config{
		Region:           aws.String(region),
		S3ForcePathStyle: aws.Bool(!useVirtualBucket),
	}
	if endpoint, ok := os.LookupEnv(AWSEndpointURL); ok {
		cfg.Endpoint = aws.String(endpoint)
	}
	if v, ok := os.LookupEnv(AWSAnonymousCredential); ok && strings.EqualFold(v, "true") {
		cfg.Credentials = credentials.AnonymousCredentials
	}
	return newS3Provider(&cfg)
}

func newS3Provider(cfg *aws.Config) (*S3Provider, error) {
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws session: %w", err)
	}
	return &S3Provider{Downloader: s3manager.NewDownloaderWithClient(s3.New(sess))}, nil
}

// Download implements Provider.
func (p *S3Provider) Download(ctx context.Context, uri string, dst File) (int64, error) {
	bucket, key, err := splitBucketURI(uri, S3)
	if err != nil {
		return 0, err
	}
	n, err := p.Downloader.DownloadWithContext(ctx, dst, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return n, fmt.Errorf("unable to download s3 object %s/%s: %w", bucket, key, err)
	}
	return n, nil
}
