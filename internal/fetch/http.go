package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// HTTPProvider downloads over plain HTTP or HTTPS.
type HTTPProvider struct {
	Client *http.Client
}

var _ Provider = (*HTTPProvider)(nil)

// Download implements Provider.
func (p *HTTPProvider) Download(ctx context.Context, uri string, dst File) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, http.NoBody)
	if err != nil {
		return 0, err
	}

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to make a request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("URI: %s returned a %d response code", uri, resp.StatusCode)
	}

	n, err := io.Copy(dst, resp.Body)
	if err != nil {
		return n, fmt.Errorf("unable to copy file content: %w", err)
	}
	return n, nil
}
