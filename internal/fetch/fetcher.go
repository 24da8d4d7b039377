package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/born-ml/deoldify/internal/weights"
)

// ErrEmptyObject is returned when a download produced no bytes.
var ErrEmptyObject = errors.New("downloaded object is empty")

// Fetcher downloads weight files into a directory. Providers are created
// on first use unless supplied up front.
type Fetcher struct {
	Log logr.Logger
	// Checksums maps file names to their expected hex SHA-256. Files
	// without an entry are not verified.
	Checksums map[string]string

	mu        sync.Mutex
	providers map[Protocol]Provider
}

// NewFetcher returns a fetcher that uses the given providers before
// creating default ones.
func NewFetcher(log logr.Logger, providers map[Protocol]Provider) *Fetcher {
	f := &Fetcher{Log: log, providers: map[Protocol]Provider{}}
	for p, pr := range providers {
		f.providers[p] = pr
	}
	return f
}

// Provider returns the provider serving protocol p.
func (f *Fetcher) Provider(ctx context.Context, p Protocol) (Provider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.providers == nil {
		f.providers = map[Protocol]Provider{}
	}
	if pr, ok := f.providers[p]; ok {
		return pr, nil
	}

	var (
		pr  Provider
		err error
	)
	switch p {
	case S3:
		pr, err = NewS3Provider()
	case GCS:
		pr, err = NewGCSProvider(ctx)
	case HTTP, HTTPS:
		pr = &HTTPProvider{Client: &http.Client{}}
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedProtocol, p)
	}
	if err != nil {
		return nil, err
	}
	f.providers[p] = pr
	return pr, nil
}

// Fetch downloads base/name into dir/name for every name, concurrently.
// Each file is written under a temporary name and renamed once complete,
// so an interrupted fetch never leaves a truncated weight file behind.
func (f *Fetcher) Fetch(ctx context.Context, base, dir string, names ...string) error {
	p, err := ProtocolOf(base)
	if err != nil {
		return err
	}
	provider, err := f.Provider(ctx, p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create models directory: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, name := range names {
		g.Go(func() error {
			uri, err := Join(base, name)
			if err != nil {
				return err
			}
			return f.fetchOne(ctx, provider, uri, filepath.Join(dir, name))
		})
	}
	return g.Wait()
}

func (f *Fetcher) fetchOne(ctx context.Context, provider Provider, uri, path string) (err error) {
	start := time.Now()
	f.Log.Info("downloading", "uri", uri, "path", path)

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	n, err := provider.Download(ctx, uri, tmp)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", uri, ErrEmptyObject)
	}
	if want, ok := f.Checksums[filepath.Base(path)]; ok {
		if err = verify(tmp, want); err != nil {
			return fmt.Errorf("%s: %w", uri, err)
		}
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return err
	}

	f.Log.Info("downloaded", "path", path, "bytes", n, "duration", time.Since(start))
	return nil
}

func verify(f *os.File, want string) error {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	sum, err := weights.Checksum(f)
	if err != nil {
		return err
	}
	return weights.VerifyChecksum(sum, want)
}
