// Package store persists classify runs and their results.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/sells-group/terrain-cli/internal/pipeline"
	"github.com/sells-group/terrain-cli/internal/terrain"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// RunParams records the inputs of a classify run.
type RunParams struct {
	Catalog                string  `json:"catalog"`
	Region                 string  `json:"region"`
	DEMDriver              string  `json:"dem_driver"`
	RadiusKM               float64 `json:"radius_km"`
	StepKM                 float64 `json:"step_km"`
	MountainThresholdFt    float64 `json:"mountain_threshold_ft"`
	MountainTopThresholdFt float64 `json:"mountain_top_threshold_ft"`
	NodataPolicy           string  `json:"nodata_policy"`
	Limit                  int     `json:"limit,omitempty"`
}

// Run is a persisted classify run.
type Run struct {
	ID        string          `json:"id"`
	Status    RunStatus       `json:"status"`
	Params    RunParams       `json:"params"`
	Stats     *pipeline.Stats `json:"stats,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Result is one airport in one category. Position is the catalog-order
// index within the category.
type Result struct {
	RunID        string           `json:"run_id"`
	Category     terrain.Category `json:"category"`
	Position     int              `json:"position"`
	Ident        string           `json:"ident"`
	Name         string           `json:"name"`
	LatitudeDeg  float64          `json:"latitude_deg"`
	LongitudeDeg float64          `json:"longitude_deg"`
	FieldElevFt  float64          `json:"field_elev_ft"`
	MaxElevFt    float64          `json:"max_elev_ft"`
	MinElevFt    float64          `json:"min_elev_ft"`
	DeltaFt      float64          `json:"delta_ft"`
}

// Failure is an airport that could not be screened in a run.
type Failure struct {
	RunID  string `json:"run_id"`
	Ident  string `json:"ident"`
	Reason string `json:"reason"`
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status RunStatus `json:"status,omitempty"`
	Limit  int       `json:"limit,omitempty"`
	Offset int       `json:"offset,omitempty"`
}

// Store defines the persistence interface for classify runs.
type Store interface {
	CreateRun(ctx context.Context, params RunParams) (*Run, error)
	SaveResults(ctx context.Context, runID string, results []Result, failures []Failure) error
	CompleteRun(ctx context.Context, runID string, stats pipeline.Stats) error
	FailRun(ctx context.Context, runID string, reason string) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)
	// ListResults returns results in category then catalog order. An empty
	// category returns both.
	ListResults(ctx context.Context, runID string, category terrain.Category) ([]Result, error)

	Migrate(ctx context.Context) error
	Close() error
}

// FromResult flattens a pipeline result into rows for runID.
func FromResult(runID string, res *pipeline.Result) ([]Result, []Failure) {
	if res == nil {
		return nil, nil
	}
	var results []Result
	for _, cat := range terrain.Categories {
		for i, c := range res.Bucket(cat) {
			results = append(results, Result{
				RunID:        runID,
				Category:     cat,
				Position:     i,
				Ident:        c.Record.Ident,
				Name:         c.Record.Name,
				LatitudeDeg:  c.Record.LatitudeDeg,
				LongitudeDeg: c.Record.LongitudeDeg,
				FieldElevFt:  c.Profile.FieldElevFt,
				MaxElevFt:    c.Profile.MaxElevFt,
				MinElevFt:    c.Profile.MinElevFt,
				DeltaFt:      c.Delta(cat),
			})
		}
	}
	failures := make([]Failure, 0, len(res.Failures))
	for _, f := range res.Failures {
		failures = append(failures, Failure{RunID: runID, Ident: f.Ident, Reason: f.Reason})
	}
	return results, failures
}

func listLimit(n int) int {
	if n <= 0 {
		return 100
	}
	return n
}
