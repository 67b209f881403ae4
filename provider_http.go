package worker

import (
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"
)

// HTTPProvider fetches module sources over HTTP(S), treating the
// module URL as the request URL. Responses may arrive gzip- or
// brotli-encoded; both are decoded transparently.
type HTTPProvider struct {
	Client *http.Client

	// MaxResponseBytes caps the decoded source size. Zero means no cap.
	MaxResponseBytes int64
}

func NewHTTPProvider() *HTTPProvider {
	return &HTTPProvider{
		Client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *HTTPProvider) GetModuleSource(workerID int, url string) (string, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("worker: fetch module %q: %w", url, err)
	}
	req.Header.Set("Accept-Encoding", "gzip, br")

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("worker: fetch module %q: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("worker: fetch module %q: unexpected status %s", url, resp.Status)
	}

	var body io.ReadCloser
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return "", fmt.Errorf("worker: fetch module %q: gzip: %w", url, err)
		}
		body = gz
	case "br":
		body = io.NopCloser(brotli.NewReader(resp.Body))
	default:
		body = resp.Body
	}
	defer body.Close()

	var r io.Reader = body
	if p.MaxResponseBytes > 0 {
		r = io.LimitReader(body, p.MaxResponseBytes+1)
	}
	src, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("worker: fetch module %q: %w", url, err)
	}
	if p.MaxResponseBytes > 0 && int64(len(src)) > p.MaxResponseBytes {
		return "", fmt.Errorf("worker: fetch module %q: response exceeds %d bytes", url, p.MaxResponseBytes)
	}
	return string(src), nil
}
