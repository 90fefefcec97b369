package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/terrain-cli/internal/airport"
	"github.com/sells-group/terrain-cli/internal/terrain"
)

// Inspection is the diagnostic report for one airport.
type Inspection struct {
	Record     airport.Record       `json:"airport"`
	Spec       terrain.SamplingSpec `json:"sampling"`
	Thresholds terrain.Thresholds   `json:"thresholds"`
	GridSize   int                  `json:"grid_size"` // points sampled, (2*steps+1)^2
	Profile    terrain.Profile      `json:"profile"`
	Categories []terrain.Category   `json:"categories"`
}

// Inspect screens a single airport by ident with the same chain as Run.
// Type exclusions do not apply. Unknown idents, airports outside the region
// and airports without a field elevation are *terrain.InputError.
func Inspect(ctx context.Context, in Input, ident string) (*Inspection, error) {
	in, err := in.validate()
	if err != nil {
		return nil, err
	}

	rec, ok := in.Catalog.Find(ident)
	if !ok {
		return nil, terrain.NewInputError("ident", eris.Errorf("airport %q not found in catalog", ident))
	}
	if !in.Region.Contains(rec.LongitudeDeg, rec.LatitudeDeg) {
		return nil, terrain.NewInputError("ident", eris.Errorf("airport %s is outside the configured region", ident))
	}

	zap.L().Info("pipeline: inspecting airport",
		zap.String("ident", ident),
		zap.Float64("radius_km", in.Spec.RadiusKM),
		zap.Float64("step_km", in.Spec.StepKM),
	)

	a, err := screen(ctx, in, rec)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: inspect %s", ident)
	}

	return &Inspection{
		Record:     rec,
		Spec:       in.Spec,
		Thresholds: in.Thresholds,
		GridSize:   len(a.Grid.Points),
		Profile:    a.Profile,
		Categories: a.Categories,
	}, nil
}
