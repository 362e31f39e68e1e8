package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github/itish2003/ragqa/config"

	"github.com/tmc/langchaingo/documentloaders"
	"go.uber.org/zap"
)

// ErrInvalidURL is returned for anything but an absolute http(s) URL.
var ErrInvalidURL = errors.New("invalid URL")

// WebScraper fetches a page and extracts its readable text.
type WebScraper struct {
	httpClient *http.Client
	userAgent  string
	timeout    time.Duration
	maxBytes   int64
	logger     *zap.Logger
}

func NewWebScraper(httpClient *http.Client, cfg config.WebConfig, logger *zap.Logger) *WebScraper {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebScraper{
		httpClient: httpClient,
		userAgent:  cfg.UserAgent,
		timeout:    cfg.Timeout,
		maxBytes:   cfg.MaxBytes,
		logger:     logger.Named("scraper"),
	}
}

// ValidateURL accepts absolute http and https URLs with a host.
func ValidateURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return u, nil
}

var blankLinesRe = regexp.MustCompile(`\n[ \t]*(\n[ \t]*)+`)

// FetchText downloads rawURL and returns the text of its HTML body.
func (w *WebScraper) FetchText(ctx context.Context, rawURL string) (string, error) {
	u, err := ValidateURL(rawURL)
	if err != nil {
		return "", err
	}
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request for %s: %w", u, err)
	}
	req.Header.Set("User-Agent", w.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching %s returned status %d", u, resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if w.maxBytes > 0 {
		body = io.LimitReader(resp.Body, w.maxBytes)
	}
	docs, err := documentloaders.NewHTML(body).Load(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to extract text from %s: %w", u, err)
	}

	var sb strings.Builder
	for _, d := range docs {
		sb.WriteString(d.PageContent)
		sb.WriteString("\n")
	}
	text := blankLinesRe.ReplaceAllString(sb.String(), "\n\n")
	w.logger.Info("fetched web page", zap.String("url", u.String()), zap.Int("chars", len(text)))
	return strings.TrimSpace(text), nil
}

// URLVariants lists the spellings a stored web source may have been saved
// under: with and without scheme, and with and without a trailing slash.
func URLVariants(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	bare := raw
	for _, p := range []string{"https://", "http://"} {
		bare = strings.TrimPrefix(bare, p)
	}
	bare = strings.TrimSuffix(bare, "/")

	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	add(raw)
	for _, base := range []string{"https://" + bare, "http://" + bare, bare} {
		add(base)
		add(base + "/")
	}
	return out
}
