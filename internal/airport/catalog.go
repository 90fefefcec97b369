// Package airport loads the airport catalog (OurAirports airports.csv layout).
package airport

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sells-group/terrain-cli/internal/terrain"
)

// RequiredColumns must be present in the catalog header.
var RequiredColumns = []string{"ident", "type", "latitude_deg", "longitude_deg", "elevation_ft"}

// Record is one catalog row. Columns keeps every original value, in header
// order, for pass-through output.
type Record struct {
	Ident        string   `csv:"ident" json:"ident"`
	Type         string   `csv:"type" json:"type"`
	Name         string   `csv:"name" json:"name"`
	LatitudeDeg  float64  `csv:"latitude_deg" json:"latitude_deg"`
	LongitudeDeg float64  `csv:"longitude_deg" json:"longitude_deg"`
	ElevationFt  *float64 `csv:"elevation_ft" json:"elevation_ft,omitempty"`
	LocalCode    string   `csv:"local_code" json:"local_code,omitempty"`
	Municipality string   `csv:"municipality" json:"municipality,omitempty"`
	ISORegion    string   `csv:"iso_region" json:"iso_region,omitempty"`

	Columns []string `csv:"-" json:"-"`
}

// Center returns the airport reference point.
func (r Record) Center() terrain.GeoPoint {
	return terrain.GeoPoint{Lon: r.LongitudeDeg, Lat: r.LatitudeDeg}
}

// FieldElevation returns the published field elevation in feet.
func (r Record) FieldElevation() (float64, error) {
	if r.ElevationFt == nil {
		return 0, terrain.NewInputError("elevation_ft", eris.Errorf("airport %s has no field elevation", r.Ident))
	}
	return *r.ElevationFt, nil
}

// Values returns the record's cells for header. Records read from a file
// return their original cells; others are rebuilt from the typed fields.
func (r Record) Values(header []string) []string {
	if len(r.Columns) == len(header) {
		return r.Columns
	}
	out := make([]string, len(header))
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case "ident":
			out[i] = r.Ident
		case "type":
			out[i] = r.Type
		case "name":
			out[i] = r.Name
		case "latitude_deg":
			out[i] = strconv.FormatFloat(r.LatitudeDeg, 'f', -1, 64)
		case "longitude_deg":
			out[i] = strconv.FormatFloat(r.LongitudeDeg, 'f', -1, 64)
		case "elevation_ft":
			if r.ElevationFt != nil {
				out[i] = strconv.FormatFloat(*r.ElevationFt, 'f', -1, 64)
			}
		case "local_code":
			out[i] = r.LocalCode
		case "municipality":
			out[i] = r.Municipality
		case "iso_region":
			out[i] = r.ISORegion
		}
	}
	return out
}

// Catalog is an immutable, ordered set of airport records.
type Catalog struct {
	Header  []string
	Records []Record

	byIdent map[string]int
}

// NewCatalog indexes records by ident. Later duplicates are dropped.
func NewCatalog(header []string, records []Record) *Catalog {
	c := &Catalog{Header: header, byIdent: make(map[string]int, len(records))}
	for _, r := range records {
		if _, dup := c.byIdent[r.Ident]; dup {
			zap.L().Warn("airport: duplicate ident, keeping first", zap.String("ident", r.Ident))
			continue
		}
		c.byIdent[r.Ident] = len(c.Records)
		c.Records = append(c.Records, r)
	}
	return c
}

// Find looks up a record by ident.
func (c *Catalog) Find(ident string) (Record, bool) {
	i, ok := c.byIdent[ident]
	if !ok {
		return Record{}, false
	}
	return c.Records[i], true
}

// Len returns the number of records.
func (c *Catalog) Len() int {
	return len(c.Records)
}

// Limit returns a catalog holding at most n records. n <= 0 means no limit.
func (c *Catalog) Limit(n int) *Catalog {
	if n <= 0 || n >= len(c.Records) {
		return c
	}
	return NewCatalog(c.Header, c.Records[:n])
}

// LoadOptions configures catalog loading.
type LoadOptions struct {
	// Encoding is a WHATWG encoding label such as "windows-1252". Empty or
	// "utf-8" reads the file as is.
	Encoding string
}

// Load reads a catalog CSV from path.
func Load(path string, opts LoadOptions) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "airport: open catalog %s", path)
	}
	defer f.Close() //nolint:errcheck

	return Read(f, opts)
}

// Read decodes a catalog from r. Rows that fail to decode are logged and
// skipped.
func Read(r io.Reader, opts LoadOptions) (*Catalog, error) {
	r, err := decodeReader(r, opts.Encoding)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(r)
	cr.LazyQuotes = true

	dec, err := csvutil.NewDecoder(cr)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, eris.New("airport: catalog is empty")
		}
		return nil, eris.Wrap(err, "airport: read header")
	}

	header := append([]string(nil), dec.Header()...)
	if err := checkColumns(header); err != nil {
		return nil, err
	}

	var (
		records []Record
		skipped int
	)
	for line := 2; ; line++ {
		var rec Record
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, eris.Wrapf(err, "airport: parse catalog line %d", line)
			}
			skipped++
			zap.L().Warn("airport: skipping malformed row", zap.Int("line", line), zap.Error(err))
			continue
		}
		rec.Ident = strings.TrimSpace(rec.Ident)
		if rec.Ident == "" {
			skipped++
			continue
		}
		rec.Columns = append([]string(nil), dec.Record()...)
		records = append(records, rec)
	}

	if skipped > 0 {
		zap.L().Info("airport: skipped catalog rows", zap.Int("skipped", skipped))
	}
	return NewCatalog(header, records), nil
}

func checkColumns(header []string) error {
	have := make(map[string]bool, len(header))
	for _, h := range header {
		have[strings.TrimSpace(h)] = true
	}
	for _, col := range RequiredColumns {
		if !have[col] {
			return eris.Errorf("airport: missing required column %q", col)
		}
	}
	return nil
}

func decodeReader(r io.Reader, label string) (io.Reader, error) {
	label = strings.TrimSpace(label)
	if label == "" || strings.EqualFold(label, "utf-8") || strings.EqualFold(label, "utf8") {
		return r, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, eris.Wrapf(err, "airport: unknown encoding %q", label)
	}
	return enc.NewDecoder().Reader(r), nil
}
