package report

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
)

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "report: encode json")
}

// WriteJSONFile writes v as indented JSON to path.
func WriteJSONFile(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "report: create json file")
	}
	defer f.Close() //nolint:errcheck

	return WriteJSON(f, v)
}
