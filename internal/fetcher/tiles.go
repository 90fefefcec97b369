package fetcher

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"math"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/terrain-cli/internal/dem"
	"github.com/sells-group/terrain-cli/internal/terrain"
)

// DefaultTileURL serves gzipped 1 arc-second SRTM tiles.
const DefaultTileURL = "https://s3.amazonaws.com/elevation-tiles-prod/skadi/{band}/{tile}.hgt.gz"

// maxTileLat keeps the longitude padding finite near the poles.
const maxTileLat = 89.9

// TilesFor returns the sorted SRTM tile names covering bound grown by padKM
// in every direction. Longitudes that run past the antimeridian wrap.
func TilesFor(bound orb.Bound, padKM float64) ([]string, error) {
	if padKM < 0 {
		return nil, eris.New("fetcher: negative tile padding")
	}

	latPad := padKM * terrain.LatDegreesPerKM()
	maxAbsLat := math.Min(math.Max(math.Abs(bound.Min.Lat()), math.Abs(bound.Max.Lat()))+latPad, maxTileLat)
	lonScale, err := terrain.LonDegreesPerKM(maxAbsLat)
	if err != nil {
		return nil, err
	}
	lonPad := padKM * lonScale

	minLat := int(math.Floor(math.Max(bound.Min.Lat()-latPad, -90)))
	maxLat := int(math.Floor(math.Min(bound.Max.Lat()+latPad, maxTileLat)))
	minLon := int(math.Floor(bound.Min.Lon() - lonPad))
	maxLon := int(math.Floor(bound.Max.Lon() + lonPad))
	if maxLon-minLon >= 360 {
		minLon, maxLon = -180, 179
	}

	seen := make(map[string]struct{})
	var names []string
	for lat := minLat; lat <= maxLat; lat++ {
		for lon := minLon; lon <= maxLon; lon++ {
			name := dem.TileName(float64(lat)+0.5, float64(lon)+0.5)
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// TileURL expands {tile} (N37W082) and {band} (N37) in tmpl for a tile file name.
func TileURL(tmpl, name string) string {
	base := strings.TrimSuffix(name, ".hgt")
	band := base
	if len(base) >= 3 {
		band = base[:3]
	}
	return strings.NewReplacer("{tile}", base, "{band}", band).Replace(tmpl)
}

// TileOptions configures FetchTiles.
type TileOptions struct {
	URLTemplate string
	Dir         string
	Concurrency int
}

// TileReport lists what FetchTiles did with each tile.
type TileReport struct {
	Downloaded []string `json:"downloaded"`
	Skipped    []string `json:"skipped"`
	// Missing tiles have no data upstream, usually open ocean.
	Missing []string `json:"missing"`
}

// FetchTiles downloads the named tiles into opts.Dir. Tiles already present
// are skipped; tiles the server does not have are reported as missing.
func FetchTiles(ctx context.Context, f Fetcher, opts TileOptions, names []string) (*TileReport, error) {
	if opts.URLTemplate == "" {
		opts.URLTemplate = DefaultTileURL
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 4
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, eris.Wrap(err, "fetcher: create tile dir")
	}

	var (
		mu     sync.Mutex
		report TileReport
	)
	add := func(list *[]string, name string) {
		mu.Lock()
		*list = append(*list, name)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for _, name := range names {
		g.Go(func() error {
			dest := filepath.Join(opts.Dir, name)
			if _, err := os.Stat(dest); err == nil {
				add(&report.Skipped, name)
				return nil
			}

			rawURL := TileURL(opts.URLTemplate, name)
			err := fetchTile(gctx, f, rawURL, dest)
			switch {
			case errors.Is(err, ErrNotFound):
				zap.L().Debug("fetcher: tile not available", zap.String("tile", name))
				add(&report.Missing, name)
				return nil
			case err != nil:
				return eris.Wrapf(err, "fetcher: tile %s", name)
			}
			zap.L().Info("fetcher: tile downloaded", zap.String("tile", name))
			add(&report.Downloaded, name)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Strings(report.Downloaded)
	sort.Strings(report.Skipped)
	sort.Strings(report.Missing)
	return &report, nil
}

// fetchTile downloads rawURL to dest, unpacking .gz and .zip payloads.
func fetchTile(ctx context.Context, f Fetcher, rawURL, dest string) error {
	body, err := f.Download(ctx, rawURL)
	if err != nil {
		return err
	}
	defer body.Close() //nolint:errcheck

	switch strings.ToLower(path.Ext(urlPath(rawURL))) {
	case ".gz":
		gz, err := gzip.NewReader(body)
		if err != nil {
			return eris.Wrap(err, "fetcher: open gzip")
		}
		defer gz.Close() //nolint:errcheck
		_, err = writeFile(dest, gz)
		return err
	case ".zip":
		return unzipTile(body, dest)
	default:
		_, err = writeFile(dest, body)
		return err
	}
}

// unzipTile spools a single-file archive next to dest and extracts it as dest.
func unzipTile(r io.Reader, dest string) error {
	dir := filepath.Dir(dest)
	tmpDir, err := os.MkdirTemp(dir, ".tile-")
	if err != nil {
		return eris.Wrap(err, "fetcher: create temp dir")
	}
	defer os.RemoveAll(tmpDir) //nolint:errcheck

	archive := filepath.Join(tmpDir, "tile.zip")
	if _, err := writeFile(archive, r); err != nil {
		return err
	}

	extractDir := filepath.Join(tmpDir, "out")
	extracted, err := ExtractZIPSingle(archive, extractDir)
	if err != nil {
		return err
	}
	return eris.Wrap(os.Rename(extracted, dest), "fetcher: move extracted tile")
}

func urlPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Path
}
