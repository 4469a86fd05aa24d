package issue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
)

const (
	defaultBaseURL   = "https://api.github.com"
	defaultUserAgent = "ETLBot"

	// maxResponseBytes caps how much of an issue response is read.
	maxResponseBytes = 1 << 20
)

// Summary is the part of an issue relayed to chat.
type Summary struct {
	Title string
	URL   string
}

// String renders the summary as a chat line.
func (s Summary) String() string {
	return s.Title + " | " + s.URL
}

// LookupError reports an issue lookup that got a non-success response.
type LookupError struct {
	Reference  Reference
	StatusCode int
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("issue #%d: HTTP %d", e.Reference.Number, e.StatusCode)
}

// Config holds configuration for creating a Fetcher.
type Config struct {
	// BaseURL is the API root. Defaults to "https://api.github.com".
	BaseURL string

	// UserAgent identifies the client to the API. Defaults to "ETLBot".
	UserAgent string

	// HTTPClient is used for all requests. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Fetcher resolves issue references one request at a time.
type Fetcher struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	log        *slog.Logger
}

// NewFetcher creates a Fetcher, filling unset Config fields with defaults.
func NewFetcher(cfg Config) *Fetcher {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Fetcher{
		baseURL:    baseURL,
		userAgent:  userAgent,
		httpClient: httpClient,
		log:        log.With("component", "issue.fetcher"),
	}
}

// Resolve returns a lazy sequence of summaries for refs, in input order.
// Each lookup runs only when the consumer asks for the next value, and
// failed lookups are logged and skipped. The sequence can be ranged over
// once; later ranges yield nothing.
func (f *Fetcher) Resolve(ctx context.Context, refs []Reference, repo string) iter.Seq[Summary] {
	var used atomic.Bool

	return func(yield func(Summary) bool) {
		if used.Swap(true) {
			return
		}

		for _, ref := range refs {
			if ctx.Err() != nil {
				return
			}

			summary, err := f.Lookup(ctx, repo, ref)
			if err != nil {
				f.logFailure(repo, ref, err)
				continue
			}

			if !yield(summary) {
				return
			}
		}
	}
}

// Lookup fetches a single issue.
func (f *Fetcher) Lookup(ctx context.Context, repo string, ref Reference) (Summary, error) {
	url := f.baseURL + "/repos/" + repo + "/issues/" + strconv.Itoa(ref.Number)

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Summary{}, fmt.Errorf("issue: creating request: %w", err)
	}
	request.Header.Set("User-Agent", f.userAgent)
	request.Header.Set("Accept", "application/vnd.github+json")

	response, err := f.httpClient.Do(request)
	if err != nil {
		return Summary{}, fmt.Errorf("issue: GET %s: %w", url, err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(response.Body, maxResponseBytes))
		return Summary{}, &LookupError{Reference: ref, StatusCode: response.StatusCode}
	}

	var payload struct {
		Title   *string `json:"title"`
		HTMLURL *string `json:"html_url"`
	}
	if err := json.NewDecoder(io.LimitReader(response.Body, maxResponseBytes)).Decode(&payload); err != nil {
		return Summary{}, fmt.Errorf("issue: decoding #%d: %w", ref.Number, err)
	}
	if payload.Title == nil || payload.HTMLURL == nil {
		return Summary{}, fmt.Errorf("issue: decoding #%d: missing title or html_url", ref.Number)
	}

	return Summary{Title: *payload.Title, URL: *payload.HTMLURL}, nil
}

func (f *Fetcher) logFailure(repo string, ref Reference, err error) {
	var lookupErr *LookupError
	if errors.As(err, &lookupErr) {
		f.log.Warn("Issue lookup returned non-success status", "repository", repo, "issue", ref.Number, "status", lookupErr.StatusCode)
		return
	}

	f.log.Warn("Issue lookup failed", "repository", repo, "issue", ref.Number, "error", err)
}
