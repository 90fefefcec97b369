package report

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/terrain-cli/internal/airport"
	"github.com/sells-group/terrain-cli/internal/pipeline"
	"github.com/sells-group/terrain-cli/internal/terrain"
)

// Delta columns appended to the catalog header.
const (
	ColDeltaHigh = "delta_high"
	ColDeltaLow  = "delta_low"
)

// OutputHeader is the catalog header followed by the delta columns.
func OutputHeader(header []string) []string {
	out := make([]string, 0, len(header)+2)
	out = append(out, header...)
	return append(out, ColDeltaHigh, ColDeltaLow)
}

// Row returns the catalog cells for c followed by its deltas. A delta is
// blank unless c qualified for that category.
func Row(header []string, c pipeline.Classified) []string {
	vals := c.Record.Values(header)
	row := make([]string, 0, len(vals)+2)
	row = append(row, vals...)
	return append(row,
		deltaCell(c, terrain.CategoryMountain),
		deltaCell(c, terrain.CategoryMountainTop),
	)
}

func deltaCell(c pipeline.Classified, cat terrain.Category) string {
	if !terrain.Has(c.Categories, cat) {
		return ""
	}
	return formatFeet(c.Delta(cat))
}

func formatFeet(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteCSV writes one bucket with the catalog columns and both deltas.
func WriteCSV(w io.Writer, header []string, bucket []pipeline.Classified) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(OutputHeader(header)); err != nil {
		return eris.Wrap(err, "report: write csv header")
	}
	for _, c := range bucket {
		if err := cw.Write(Row(header, c)); err != nil {
			return eris.Wrapf(err, "report: write csv row %s", c.Record.Ident)
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "report: flush csv")
}

// WriteCSVFile writes one bucket to path.
func WriteCSVFile(path string, header []string, bucket []pipeline.Classified) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "report: create csv file")
	}
	defer f.Close() //nolint:errcheck

	return WriteCSV(f, header, bucket)
}

// WriteCandidates writes the screened records with the catalog columns only.
func WriteCandidates(w io.Writer, header []string, records []airport.Record) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "report: write candidates header")
	}
	for _, r := range records {
		if err := cw.Write(r.Values(header)); err != nil {
			return eris.Wrapf(err, "report: write candidate %s", r.Ident)
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "report: flush candidates")
}

// WriteCandidatesFile writes the candidate list to path.
func WriteCandidatesFile(path string, header []string, records []airport.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "report: create candidates file")
	}
	defer f.Close() //nolint:errcheck

	return WriteCandidates(f, header, records)
}
