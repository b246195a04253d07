package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
)

var (
	// ErrUnsupportedLocator is returned for a locator whose scheme has no
	// registered fetcher.
	ErrUnsupportedLocator = errors.New("unsupported source locator")

	// ErrTooLarge is returned when a recording exceeds the size limit.
	ErrTooLarge = errors.New("recording exceeds size limit")

	// ErrNotFound is returned when the recording does not exist.
	ErrNotFound = errors.New("recording not found")

	// ErrFetch wraps transport and storage failures.
	ErrFetch = errors.New("failed to fetch recording")
)

// Fetcher loads the bytes of a recording.
type Fetcher interface {
	Fetch(ctx context.Context, locator string) ([]byte, error)
}

// Router dispatches Fetch calls by locator scheme. A locator without a
// scheme is handled by the "file" fetcher.
type Router struct {
	fetchers map[string]Fetcher
}

var _ Fetcher = (*Router)(nil)

// NewRouter creates an empty Router.
func NewRouter() *Router {
	return &Router{fetchers: make(map[string]Fetcher)}
}

// Register installs f for the given schemes, replacing earlier ones.
func (r *Router) Register(f Fetcher, schemes ...string) *Router {
	for _, s := range schemes {
		r.fetchers[strings.ToLower(s)] = f
	}
	return r
}

// Fetch implements Fetcher.
func (r *Router) Fetch(ctx context.Context, locator string) ([]byte, error) {
	scheme := Scheme(locator)
	f, ok := r.fetchers[scheme]
	if !ok {
		return nil, fmt.Errorf("%w: scheme %q", ErrUnsupportedLocator, scheme)
	}
	return f.Fetch(ctx, locator)
}

// Scheme returns the lower-case scheme of locator, or "file" when it has
// none. Windows drive letters are not treated as schemes.
func Scheme(locator string) string {
	u, err := url.Parse(locator)
	if err != nil || len(u.Scheme) <= 1 {
		return "file"
	}
	return strings.ToLower(u.Scheme)
}

// readLimited reads r fully, failing with ErrTooLarge past limit bytes.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
	}
	return data, nil
}
