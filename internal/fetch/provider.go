// Package fetch downloads weight files from object storage or HTTP servers
// into a local models directory.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// Protocol is a URI scheme prefix.
type Protocol string

// Supported protocols.
const (
	S3    Protocol = "s3://"
	GCS   Protocol = "gs://"
	HTTPS Protocol = "https://"
	HTTP  Protocol = "http://"
)

// SupportedProtocols lists every protocol a Fetcher can serve.
var SupportedProtocols = []Protocol{S3, GCS, HTTPS, HTTP}

// ErrUnsupportedProtocol is returned for URIs with an unknown scheme.
var ErrUnsupportedProtocol = errors.New("unsupported storage protocol")

// File is the download destination. *os.File satisfies it.
type File interface {
	io.Writer
	io.WriterAt
}

// Provider downloads a single object.
type Provider interface {
	Download(ctx context.Context, uri string, dst File) (int64, error)
}

// ProtocolOf returns the protocol prefix of uri.
func ProtocolOf(uri string) (Protocol, error) {
	for _, p := range SupportedProtocols {
		if strings.HasPrefix(uri, string(p)) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedProtocol, uri)
}

// splitBucketURI splits "s3://bucket/some/key" into bucket and key.
func splitBucketURI(uri string, p Protocol) (bucket, key string, err error) {
	rest := strings.TrimPrefix(uri, string(p))
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid object uri %q: want %sbucket/key", uri, p)
	}
	return bucket, key, nil
}

// Join appends a file name to a directory-like URI.
func Join(base, name string) (string, error) {
	p, err := ProtocolOf(base)
	if err != nil {
		return "", err
	}
	if p == HTTP || p == HTTPS {
		u, err := url.Parse(base)
		if err != nil {
			return "", fmt.Errorf("unable to parse uri: %w", err)
		}
		return u.JoinPath(name).String(), nil
	}
	return strings.TrimSuffix(base, "/") + "/" + name, nil
}
