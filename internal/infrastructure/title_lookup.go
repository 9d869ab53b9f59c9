package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/yourusername/ytpipe-go/internal/domain"
)

var errNoTitle = errors.New("no <title> element")

// HTTPTitleFetcher reads the <title> of a web page
type HTTPTitleFetcher struct {
	client   *http.Client
	timeout  time.Duration
	maxBytes int64
}

// NewHTTPTitleFetcher creates a fetcher bounded by the pipeline settings
func NewHTTPTitleFetcher(config *domain.PipelineConfig) *HTTPTitleFetcher {
	return &HTTPTitleFetcher{
		client:   &http.Client{},
		timeout:  config.TitleTimeout,
		maxBytes: config.TitleMaxBytes,
	}
}

// FetchTitle GETs url (following redirects) and returns the trimmed page
// title. Every failure, including an empty title, is a *domain.MetadataLookupError.
func (f *HTTPTitleFetcher) FetchTitle(ctx context.Context, url string) (string, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &domain.MetadataLookupError{URL: url, Err: err}
	}
	req.Header.Set("Accept", "text/html")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &domain.MetadataLookupError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &domain.MetadataLookupError{URL: url, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	var body io.Reader = resp.Body
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes)
	}
	title, err := ParseHTMLTitle(body)
	if err != nil {
		return "", &domain.MetadataLookupError{URL: url, Err: err}
	}
	return title, nil
}

// ParseHTMLTitle returns the trimmed, entity-decoded text of the first
// <title> element. An absent or blank title is an error.
func ParseHTMLTitle(r io.Reader) (string, error) {
	z := html.NewTokenizer(r)
	inTitle := false
	var b strings.Builder

	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != nil && !errors.Is(err, io.EOF) {
				return "", err
			}
			if inTitle {
				return finishTitle(b.String())
			}
			return "", errNoTitle
		case html.StartTagToken:
			name, _ := z.TagName()
			if string(name) == "title" {
				inTitle = true
			}
		case html.TextToken:
			if inTitle {
				b.Write(z.Text())
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if inTitle && string(name) == "title" {
				return finishTitle(b.String())
			}
		}
	}
}

func finishTitle(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errNoTitle
	}
	return s, nil
}
