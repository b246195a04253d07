package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"

	"github.com/dimaystinov/bot-hnushka/internal/domain"
)

// FileFetcher reads recordings from the local filesystem.
type FileFetcher struct {
	// MaxBytes defaults to domain.MaxMediaBytes.
	MaxBytes int64
}

var _ Fetcher = FileFetcher{}

// Fetch reads a plain path or a file:// URL.
func (f FileFetcher) Fetch(ctx context.Context, locator string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := locator
	if strings.HasPrefix(strings.ToLower(locator), "file://") {
		u, err := url.Parse(locator)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedLocator, err)
		}
		path = u.Path
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer file.Close()

	return readLimited(file, limitOrDefault(f.MaxBytes))
}

func limitOrDefault(limit int64) int64 {
	if limit <= 0 {
		return domain.MaxMediaBytes
	}
	return limit
}
