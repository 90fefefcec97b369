package fetcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultCatalogURL is the OurAirports airport list.
const DefaultCatalogURL = "https://davidmegginson.github.io/ourairports-data/airports.csv"

// etagSuffix names the sidecar file that remembers the catalog's ETag.
const etagSuffix = ".etag"

// FetchCatalog downloads the airport catalog to path unless the server
// reports it unchanged since the last fetch. Returns whether path was written.
func FetchCatalog(ctx context.Context, f Fetcher, rawURL, path string) (bool, error) {
	if rawURL == "" {
		rawURL = DefaultCatalogURL
	}

	etag, err := readETag(path)
	if err != nil {
		return false, err
	}

	body, newETag, changed, err := f.DownloadIfChanged(ctx, rawURL, etag)
	if err != nil {
		return false, eris.Wrap(err, "fetcher: catalog")
	}
	if !changed {
		zap.L().Info("fetcher: catalog unchanged", zap.String("path", path), zap.String("etag", etag))
		return false, nil
	}
	defer body.Close() //nolint:errcheck

	n, err := writeFile(path, body)
	if err != nil {
		return false, err
	}

	sidecar := path + etagSuffix
	if newETag == "" {
		if err := os.Remove(sidecar); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return true, eris.Wrap(err, "fetcher: remove etag")
		}
	} else if err := os.WriteFile(sidecar, []byte(newETag+"\n"), 0o644); err != nil {
		return true, eris.Wrap(err, "fetcher: write etag")
	}

	zap.L().Info("fetcher: catalog downloaded",
		zap.String("path", path),
		zap.Int64("bytes", n),
		zap.String("etag", newETag),
	)
	return true, nil
}

// readETag returns the stored ETag for path, or "" when either the catalog
// or its sidecar is missing.
func readETag(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", eris.Wrap(err, "fetcher: stat catalog")
	}
	data, err := os.ReadFile(path + etagSuffix)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", eris.Wrap(err, "fetcher: read etag")
	}
	return strings.TrimSpace(string(data)), nil
}
