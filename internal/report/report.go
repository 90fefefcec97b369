// Package report writes classification results and inspection reports.
package report

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/terrain-cli/internal/pipeline"
	"github.com/sells-group/terrain-cli/internal/terrain"
)

// Format is an output file format for classify results.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

// Output file names.
const (
	CandidatesFile = "candidate_airports.csv"
	XLSXFile       = "terrain_results.xlsx"
	JSONFile       = "terrain_results.json"
)

// ParseFormat parses a format name. Empty means FormatCSV.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatXLSX, FormatJSON:
		return f, nil
	default:
		return "", eris.Errorf("report: unknown format %q", s)
	}
}

// BucketFile returns the CSV file name for category c.
func BucketFile(c terrain.Category) string {
	return string(c) + "_airports.csv"
}

// WriteOutputs writes res into dir in the given format and returns the paths
// written. The candidate list is always written as CSV.
func WriteOutputs(dir string, format Format, res *pipeline.Result) ([]string, error) {
	if res == nil {
		return nil, eris.New("report: nil result")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "report: create %s", dir)
	}

	var paths []string

	candidates := filepath.Join(dir, CandidatesFile)
	if err := WriteCandidatesFile(candidates, res.Header, res.Candidates); err != nil {
		return nil, err
	}
	paths = append(paths, candidates)

	switch format {
	case FormatCSV, "":
		for _, c := range terrain.Categories {
			p := filepath.Join(dir, BucketFile(c))
			if err := WriteCSVFile(p, res.Header, res.Bucket(c)); err != nil {
				return nil, err
			}
			paths = append(paths, p)
		}
	case FormatXLSX:
		p := filepath.Join(dir, XLSXFile)
		if err := WriteXLSX(p, res); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	case FormatJSON:
		p := filepath.Join(dir, JSONFile)
		if err := WriteJSONFile(p, res); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	default:
		return nil, eris.Errorf("report: unknown format %q", format)
	}

	zap.L().Info("report: wrote outputs",
		zap.String("dir", dir),
		zap.String("format", string(format)),
		zap.Strings("files", paths),
	)
	return paths, nil
}
