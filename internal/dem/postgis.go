package dem

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/terrain-cli/internal/db"
	"github.com/sells-group/terrain-cli/internal/terrain"
)

// PostGIS samples a raster table (one rast column, EPSG:4326) with a
// single query per call.
type PostGIS struct {
	pool    db.Pool
	query   string
	closeFn func()
}

// sampleQuery keeps input order through WITH ORDINALITY and maps uncovered
// points to the nodata sentinel.
const sampleQuery = `SELECT COALESCE(ST_Value(r.rast, pt.geom), $3::float8)
FROM unnest($1::float8[], $2::float8[]) WITH ORDINALITY AS p(lon, lat, ord)
CROSS JOIN LATERAL (SELECT ST_SetSRID(ST_MakePoint(p.lon, p.lat), 4326) AS geom) pt
LEFT JOIN LATERAL (
	SELECT t.rast FROM %s t WHERE ST_Intersects(t.rast, pt.geom) LIMIT 1
) r ON true
ORDER BY p.ord`

// NewPostGIS connects to databaseURL and samples table.
func NewPostGIS(ctx context.Context, databaseURL, table string) (*PostGIS, error) {
	pgxCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, terrain.NewSourceUnavailableError("postgis", eris.Wrap(err, "dem: parse database url"))
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, terrain.NewSourceUnavailableError("postgis", eris.Wrap(err, "dem: create pool"))
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, terrain.NewSourceUnavailableError("postgis", eris.Wrap(err, "dem: ping"))
	}

	src := newPostGIS(pool, table)
	src.closeFn = pool.Close
	return src, nil
}

func newPostGIS(pool db.Pool, table string) *PostGIS {
	if table == "" {
		table = "dem"
	}
	return &PostGIS{
		pool:  pool,
		query: fmt.Sprintf(sampleQuery, sanitizeTable(table)),
	}
}

func sanitizeTable(table string) string {
	if schema, name, ok := strings.Cut(table, "."); ok {
		return pgx.Identifier{schema, name}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

// Name implements Source.
func (p *PostGIS) Name() string { return "postgis" }

// NoData implements terrain.Source.
func (p *PostGIS) NoData() float64 { return NoDataValue }

// Close releases the connection pool.
func (p *PostGIS) Close() error {
	if p.closeFn != nil {
		p.closeFn()
	}
	return nil
}

// SampleAt implements terrain.Source.
func (p *PostGIS) SampleAt(ctx context.Context, points []terrain.GeoPoint) ([]float64, error) {
	if len(points) == 0 {
		return nil, nil
	}

	lons := make([]float64, len(points))
	lats := make([]float64, len(points))
	for i, pt := range points {
		lons[i], lats[i] = pt.Lon, pt.Lat
	}

	rows, err := p.pool.Query(ctx, p.query, lons, lats, NoDataValue)
	if err != nil {
		return nil, eris.Wrap(err, "dem: postgis sample")
	}

	vals, err := pgx.CollectRows(rows, pgx.RowTo[float64])
	if err != nil {
		return nil, eris.Wrap(err, "dem: postgis scan")
	}
	return vals, nil
}
