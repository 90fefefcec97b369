package report

import (
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/terrain-cli/internal/pipeline"
)

// EarthAltitudeM is the camera altitude used in Google Earth links.
const EarthAltitudeM = 1000

// GoogleEarthURL links to a Google Earth view centered on lat/lon with the
// camera distance set to radiusKM.
func GoogleEarthURL(lat, lon, radiusKM float64) string {
	return fmt.Sprintf("https://earth.google.com/web/@%s,%s,%da,%dd,0y,0h,0t,0r",
		strconv.FormatFloat(lat, 'f', -1, 64),
		strconv.FormatFloat(lon, 'f', -1, 64),
		EarthAltitudeM,
		int(radiusKM*1000),
	)
}

// FAAURL links to the FAA ADIP airport data page. Empty without a local code.
func FAAURL(localCode string) string {
	localCode = strings.TrimSpace(localCode)
	if localCode == "" {
		return ""
	}
	return "https://adip.faa.gov/agis/public/#/airportData/" + url.PathEscape(localCode)
}

// FormatInspection writes a human-readable inspection report.
func FormatInspection(w io.Writer, in *pipeline.Inspection) error {
	if in == nil {
		return eris.New("report: nil inspection")
	}
	r := in.Record
	p := in.Profile
	radius := strconv.FormatFloat(in.Spec.RadiusKM, 'f', -1, 64)

	cats := "none"
	if len(in.Categories) > 0 {
		names := make([]string, len(in.Categories))
		for i, c := range in.Categories {
			names[i] = string(c)
		}
		cats = strings.Join(names, ", ")
	}

	faa := FAAURL(r.LocalCode)
	if faa == "" {
		faa = "n/a"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Airport: %s - %s\n", r.Ident, r.Name)
	fmt.Fprintf(&b, "Latitude / Longitude      : %.6f, %.6f\n", r.LatitudeDeg, r.LongitudeDeg)
	fmt.Fprintf(&b, "Field elevation           : %.1f ft\n", p.FieldElevFt)
	fmt.Fprintf(&b, "Max elevation (%s km)     : %.1f ft\n", radius, p.MaxElevFt)
	fmt.Fprintf(&b, "Min elevation (%s km)     : %.1f ft\n", radius, p.MinElevFt)
	fmt.Fprintf(&b, "Delta High (max - field)  : %.1f ft\n", p.DeltaHighFt)
	fmt.Fprintf(&b, "Delta Low (field - min)   : %.1f ft\n", p.DeltaLowFt)
	fmt.Fprintf(&b, "Samples                   : %d (%d nodata, grid %d)\n", p.SampleCount, p.NoDataCount, in.GridSize)
	fmt.Fprintf(&b, "Categories                : %s\n", cats)
	fmt.Fprintf(&b, "Google Earth link         : %s\n", GoogleEarthURL(r.LatitudeDeg, r.LongitudeDeg, in.Spec.RadiusKM))
	fmt.Fprintf(&b, "FAA Airport Data          : %s\n", faa)

	_, err := io.WriteString(w, b.String())
	return eris.Wrap(err, "report: write inspection")
}
