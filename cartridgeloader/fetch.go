package cartridgeloader

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/sweproj/onerom/errors"
	"github.com/sweproj/onerom/logger"
)

// SourceFetcher resolves a ROM descriptor's file reference to bytes. The
// default implementation handles local paths and HTTPS URLs; tests
// substitute an in-memory fetcher so config resolution can be exercised
// without touching the network or the filesystem.
type SourceFetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// fetchRetries is the bound on HTTPS fetch attempts for one source, per the
// schema's "bounded retry of up to 3 attempts on transient failure".
const fetchRetries = 3

// fetchDeadline bounds the total wall-clock time spent retrying one HTTPS
// fetch, regardless of how many attempts that leaves time for.
const fetchDeadline = 60 * time.Second

// DefaultFetcher is the SourceFetcher used outside of tests: local files
// are read directly, HTTPS URLs are fetched with bounded retry.
type DefaultFetcher struct {
	Client *http.Client
}

func (f DefaultFetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return http.DefaultClient
}

// Fetch resolves ref, which is either a local filesystem path or an https
// URL. http (non-TLS) is rejected: the schema only recognises local paths
// and HTTPS fetch as source kinds.
func (f DefaultFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	u, err := url.Parse(ref)
	if err == nil && u.Scheme == "https" {
		return f.fetchHTTPS(ctx, ref)
	}
	if err == nil && u.Scheme == "http" {
		return nil, errors.New(errors.SourceError, "fetch %s: plain http is not supported, use https", ref)
	}

	data, err := os.ReadFile(ref)
	if err != nil {
		return nil, errors.Wrap(errors.SourceError, err, "fetch %s", ref)
	}
	return data, nil
}

func (f DefaultFetcher) fetchHTTPS(ctx context.Context, ref string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchDeadline)
	defer cancel()

	var lastErr error
	backoff := 500 * time.Millisecond

	for attempt := 1; attempt <= fetchRetries; attempt++ {
		data, err := f.attemptHTTPS(ctx, ref)
		if err == nil {
			return data, nil
		}
		lastErr = err
		logger.Logf("loader", "fetch %s attempt %d/%d failed: %v", ref, attempt, fetchRetries, err)

		if attempt == fetchRetries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Wrap(errors.SourceError, ctx.Err(), "fetch %s: deadline exceeded", ref)
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return nil, errors.Wrap(errors.SourceError, lastErr, "fetch %s: all %d attempts failed", ref, fetchRetries)
}

func (f DefaultFetcher) attemptHTTPS(ctx context.Context, ref string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(errors.SourceError, "fetch %s: HTTP %d", ref, resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// extractZipMember opens the zip archive in data and returns the bytes of
// the named member.
func extractZipMember(data []byte, member string) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.Wrap(errors.SourceError, err, "open zip archive")
	}

	for _, f := range zr.File {
		if f.Name != member {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, errors.Wrap(errors.SourceError, err, "open zip member %q", member)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}

	return nil, errors.New(errors.SourceError, "zip archive has no member %q", member)
}
