package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"symdir/config"
)

// HTTPSource downloads the feed files from a web mirror of the symbol
// directory (BaseURL + "/" + file).
type HTTPSource struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

func NewHTTPSource(cfg config.HTTPConfig, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "symdir/1.0"
	}
	return &HTTPSource{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: ua,
		client:    &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSource) Name() string { return config.SourceHTTP }

// Open is a no-op; the client is stateless between requests.
func (s *HTTPSource) Open(ctx context.Context) (Session, error) {
	return s, nil
}

func (s *HTTPSource) Retrieve(ctx context.Context, file string) ([]byte, error) {
	return s.httpGet(ctx, s.baseURL+"/"+file)
}

func (s *HTTPSource) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *HTTPSource) httpGet(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}
