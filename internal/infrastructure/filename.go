package infrastructure

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"
)

var (
	titleSiteSuffix   = regexp.MustCompile(`\s*\|.*`)
	forbiddenFileChar = regexp.MustCompile(`[\\/:*?"<>|]`)
	whitespaceRun     = regexp.MustCompile(`\s+`)
	unsafeSegmentChar = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)
)

// SanitizeTitle turns a page title into a file base name. Anything after
// the first '|' (the usual " | Site Name" suffix) is dropped unless that
// leaves nothing. Returns fallback when no usable characters remain.
func SanitizeTitle(title, fallback string) string {
	trimmed := strings.TrimSpace(title)
	normalized := strings.TrimSpace(titleSiteSuffix.ReplaceAllString(title, ""))
	if normalized == "" {
		normalized = trimmed
	}
	name := forbiddenFileChar.ReplaceAllString(normalized, "_")
	name = whitespaceRun.ReplaceAllString(name, "_")
	if strings.TrimSpace(name) == "" {
		return fallback
	}
	return name
}

// URLBaseName derives a file base name from the last path segments of
// rawURL, skipping a generic "anime" segment. Returns fallback when the
// URL has no usable path.
func URLBaseName(rawURL, fallback string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fallback
	}

	var segments []string
	for _, s := range strings.Split(u.Path, "/") {
		if s = strings.TrimSpace(s); s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) == 0 {
		return fallback
	}

	var picked []string
	for i := len(segments) - 1; i >= 0 && len(picked) < 2; i-- {
		if len(segments) > 1 && strings.EqualFold(segments[i], "anime") {
			continue
		}
		picked = append([]string{segments[i]}, picked...)
	}
	if len(picked) == 0 {
		picked = segments[len(segments)-1:]
	}

	name := unsafeSegmentChar.ReplaceAllString(strings.Join(picked, "-"), "_")
	if strings.TrimSpace(name) == "" {
		return fallback
	}
	return name
}

// Namer produces "<base>-<unix-millis>.mp4" names. Stamps are strictly
// increasing within the process, so two names never share a stamp even
// when requested in the same millisecond.
type Namer struct {
	mu       sync.Mutex
	last     int64
	now      func() time.Time
	fallback string
}

// NewNamer creates a namer using fallback for unusable titles and URLs
func NewNamer(fallback string) *Namer {
	if fallback == "" {
		fallback = "video"
	}
	return &Namer{now: time.Now, fallback: fallback}
}

// Stamp returns the next unique millisecond timestamp
func (n *Namer) Stamp() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	ts := n.now().UnixMilli()
	if ts <= n.last {
		ts = n.last + 1
	}
	n.last = ts
	return ts
}

// FromTitle names the output after a page title
func (n *Namer) FromTitle(title string) string {
	return fmt.Sprintf("%s-%d.mp4", SanitizeTitle(title, n.fallback), n.Stamp())
}

// FromURL names the output after the request URL
func (n *Namer) FromURL(rawURL string) string {
	return fmt.Sprintf("%s-%d.mp4", URLBaseName(rawURL, n.fallback), n.Stamp())
}
