package report

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/terrain-cli/internal/pipeline"
	"github.com/sells-group/terrain-cli/internal/terrain"
)

// Sheet names in the workbook.
const (
	SheetFailures = "failures"
	SheetSummary  = "summary"
)

// WriteXLSX writes a workbook with one sheet per category, a failures sheet
// and a summary sheet.
func WriteXLSX(path string, res *pipeline.Result) error {
	f := xlsx.NewFile()

	for _, c := range terrain.Categories {
		sheet, err := f.AddSheet(string(c))
		if err != nil {
			return eris.Wrapf(err, "report: add sheet %s", c)
		}
		addRow(sheet, OutputHeader(res.Header))
		for _, cl := range res.Bucket(c) {
			addRow(sheet, Row(res.Header, cl))
		}
	}

	failures, err := f.AddSheet(SheetFailures)
	if err != nil {
		return eris.Wrap(err, "report: add failures sheet")
	}
	addRow(failures, []string{"ident", "reason"})
	for _, fl := range res.Failures {
		addRow(failures, []string{fl.Ident, fl.Reason})
	}

	summary, err := f.AddSheet(SheetSummary)
	if err != nil {
		return eris.Wrap(err, "report: add summary sheet")
	}
	addRow(summary, []string{"metric", "count"})
	for _, kv := range statRows(res.Stats) {
		addRow(summary, []string{kv.name, strconv.Itoa(kv.n)})
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "report: save xlsx")
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, cells []string) {
	row := sheet.AddRow()
	for _, v := range cells {
		row.AddCell().SetString(v)
	}
}

type statRow struct {
	name string
	n    int
}

func statRows(s pipeline.Stats) []statRow {
	return []statRow{
		{"total", s.Total},
		{"out_of_region", s.OutOfRegion},
		{"excluded_type", s.ExcludedType},
		{"screened", s.Screened},
		{"failed", s.Failed},
		{"mountain", s.Mountain},
		{"mountain_top", s.MountainTop},
	}
}
