package service

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultPreviewTimeout = 5 * time.Second
	previewUserAgent      = "Mozilla/5.0 (compatible; PulseURLBot/1.0)"
	previewMaxBody        = 512 * 1024
)

var (
	titleRe    = regexp.MustCompile(`(?i)<title[^>]*>([^<]+)</title>`)
	ogTitleRe  = regexp.MustCompile(`(?i)<meta[^>]*property="og:title"[^>]*content="([^"]+)"`)
	ogTitleRe2 = regexp.MustCompile(`(?i)<meta[^>]*content="([^"]+)"[^>]*property="og:title"`)
	ogImageRe  = regexp.MustCompile(`(?i)<meta[^>]*property="og:image"[^>]*content="([^"]+)"`)
	ogImageRe2 = regexp.MustCompile(`(?i)<meta[^>]*content="([^"]+)"[^>]*property="og:image"`)
	twImageRe  = regexp.MustCompile(`(?i)<meta[^>]*name="twitter:image"[^>]*content="([^"]+)"`)
)

// Preview holds the metadata scraped from a target page. Both fields are
// nil when the page could not be fetched in time.
type Preview struct {
	Title    *string
	ImageURL *string
}

// PreviewFetcher scrapes page title and social image from a target URL.
// The fetch is bounded by a hard timeout; a slow or unreachable target
// degrades to an empty preview instead of failing link creation.
type PreviewFetcher struct {
	logger  *zap.Logger
	client  *http.Client
	timeout time.Duration
}

// NewPreviewFetcher builds a fetcher with the given timeout; zero picks
// the default.
func NewPreviewFetcher(logger *zap.Logger, timeout time.Duration) *PreviewFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = defaultPreviewTimeout
	}
	return &PreviewFetcher{
		logger:  logger,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// Fetch returns the preview for a URL, or an empty preview on any error.
func (f *PreviewFetcher) Fetch(ctx context.Context, url string) Preview {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Preview{}
	}
	req.Header.Set("User-Agent", previewUserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Debug("link preview fetch failed", zap.String("url", url), zap.Error(err))
		return Preview{}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, previewMaxBody))
	if err != nil {
		f.logger.Debug("link preview read failed", zap.String("url", url), zap.Error(err))
		return Preview{}
	}

	return parsePreview(string(body))
}

func parsePreview(html string) Preview {
	var preview Preview

	for _, re := range []*regexp.Regexp{titleRe, ogTitleRe, ogTitleRe2} {
		if m := re.FindStringSubmatch(html); m != nil {
			title := strings.TrimSpace(m[1])
			if title != "" {
				preview.Title = &title
				break
			}
		}
	}

	for _, re := range []*regexp.Regexp{ogImageRe, ogImageRe2, twImageRe} {
		if m := re.FindStringSubmatch(html); m != nil {
			image := m[1]
			preview.ImageURL = &image
			break
		}
	}

	return preview
}
