// Package pipeline screens an airport catalog against an elevation source
// and buckets airports into mountain and mountain-top categories.
package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/terrain-cli/internal/airport"
	"github.com/sells-group/terrain-cli/internal/region"
	"github.com/sells-group/terrain-cli/internal/terrain"
)

// Input is everything a run depends on. A zero Region screens every record.
type Input struct {
	Catalog       *airport.Catalog
	Region        region.Region
	Source        terrain.Source
	Spec          terrain.SamplingSpec
	Thresholds    terrain.Thresholds
	ExcludedTypes []string
	Nodata        terrain.NodataPolicy
	Concurrency   int
	RecordTimeout time.Duration
}

func (in Input) options() terrain.Options {
	return terrain.Options{Spec: in.Spec, Thresholds: in.Thresholds, Nodata: in.Nodata}
}

func (in Input) validate() (Input, error) {
	if in.Catalog == nil {
		return in, terrain.NewInputError("catalog", eris.New("no catalog"))
	}
	if in.Source == nil {
		return in, terrain.NewInputError("source", eris.New("no elevation source"))
	}
	if err := in.Spec.Validate(); err != nil {
		return in, err
	}
	if in.Region == nil {
		in.Region = region.All{}
	}
	if in.Nodata == "" {
		in.Nodata = terrain.NodataSkip
	}
	if in.Concurrency < 1 {
		in.Concurrency = 1
	}
	return in, nil
}

// Classified is an airport that landed in at least one bucket.
type Classified struct {
	Record     airport.Record     `json:"airport"`
	Profile    terrain.Profile    `json:"profile"`
	Categories []terrain.Category `json:"categories"`
}

// Delta returns the delta that qualified the airport for c.
func (c Classified) Delta(cat terrain.Category) float64 {
	if cat == terrain.CategoryMountainTop {
		return c.Profile.DeltaLowFt
	}
	return c.Profile.DeltaHighFt
}

// Failure records an airport that could not be screened.
type Failure struct {
	Ident  string `json:"ident"`
	Reason string `json:"reason"`
}

// Stats counts what happened to each catalog record.
type Stats struct {
	Total        int `json:"total"`
	OutOfRegion  int `json:"out_of_region"`
	ExcludedType int `json:"excluded_type"`
	Screened     int `json:"screened"`
	Failed       int `json:"failed"`
	Mountain     int `json:"mountain"`
	MountainTop  int `json:"mountain_top"`
}

// Result holds both buckets in catalog order. An airport can be in both.
// Candidates are the in-region, non-excluded records that were screened.
type Result struct {
	Header      []string         `json:"-"`
	Candidates  []airport.Record `json:"-"`
	Mountain    []Classified     `json:"mountain"`
	MountainTop []Classified     `json:"mountain_top"`
	Failures    []Failure        `json:"failures,omitempty"`
	Stats       Stats            `json:"stats"`
}

// Bucket returns the airports in category c.
func (r *Result) Bucket(c terrain.Category) []Classified {
	switch c {
	case terrain.CategoryMountain:
		return r.Mountain
	case terrain.CategoryMountainTop:
		return r.MountainTop
	default:
		return nil
	}
}

type outcome struct {
	screened bool
	analysis *terrain.Analysis
	err      error
}

// Run screens every in-region, non-excluded airport. Records are processed
// concurrently, but buckets keep catalog order. A failing record is logged
// and left out of both buckets; a *terrain.SourceUnavailableError aborts the
// run.
func Run(ctx context.Context, in Input) (*Result, error) {
	in, err := in.validate()
	if err != nil {
		return nil, err
	}

	records := in.Catalog.Records
	res := &Result{Header: in.Catalog.Header}
	res.Stats.Total = len(records)

	types := airport.NewTypeFilter(in.ExcludedTypes)
	var todo []int
	for i, rec := range records {
		switch {
		case !in.Region.Contains(rec.LongitudeDeg, rec.LatitudeDeg):
			res.Stats.OutOfRegion++
		case types.Excluded(rec):
			res.Stats.ExcludedType++
		default:
			todo = append(todo, i)
			res.Candidates = append(res.Candidates, rec)
		}
	}

	zap.L().Info("pipeline: screening airports",
		zap.Int("catalog", len(records)),
		zap.Int("candidates", len(todo)),
		zap.Int("concurrency", in.Concurrency),
		zap.Float64("radius_km", in.Spec.RadiusKM),
		zap.Float64("step_km", in.Spec.StepKM),
	)

	outcomes := make([]outcome, len(records))
	var done atomic.Int64
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.Concurrency)

	for _, idx := range todo {
		if gctx.Err() != nil {
			break
		}
		rec := records[idx]
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			log := zap.L().With(zap.String("ident", rec.Ident))

			a, err := screen(gctx, in, rec)
			n := done.Add(1)
			if err != nil {
				if terrain.IsFatal(err) {
					log.Error("pipeline: elevation source unavailable", zap.Error(err))
					return eris.Wrapf(err, "pipeline: airport %s", rec.Ident)
				}
				log.Warn("pipeline: airport failed", zap.Error(err))
				outcomes[idx] = outcome{screened: true, err: err}
				return nil
			}

			log.Debug("pipeline: airport screened",
				zap.Float64("delta_high_ft", a.Profile.DeltaHighFt),
				zap.Float64("delta_low_ft", a.Profile.DeltaLowFt),
				zap.Int("nodata", a.Profile.NoDataCount),
			)
			outcomes[idx] = outcome{screened: true, analysis: a}
			if n%500 == 0 {
				zap.L().Info("pipeline: progress", zap.Int64("done", n), zap.Int("candidates", len(todo)))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "pipeline: run cancelled")
	}

	for i, o := range outcomes {
		if !o.screened {
			continue
		}
		res.Stats.Screened++
		if o.err != nil {
			res.Stats.Failed++
			res.Failures = append(res.Failures, Failure{Ident: records[i].Ident, Reason: o.err.Error()})
			continue
		}
		c := Classified{Record: records[i], Profile: o.analysis.Profile, Categories: o.analysis.Categories}
		if terrain.Has(c.Categories, terrain.CategoryMountain) {
			res.Mountain = append(res.Mountain, c)
		}
		if terrain.Has(c.Categories, terrain.CategoryMountainTop) {
			res.MountainTop = append(res.MountainTop, c)
		}
	}
	res.Stats.Mountain = len(res.Mountain)
	res.Stats.MountainTop = len(res.MountainTop)

	zap.L().Info("pipeline: screening complete",
		zap.Int("screened", res.Stats.Screened),
		zap.Int("failed", res.Stats.Failed),
		zap.Int("mountain", res.Stats.Mountain),
		zap.Int("mountain_top", res.Stats.MountainTop),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// screen runs one record through grid, sample, summarize and classify.
func screen(ctx context.Context, in Input, rec airport.Record) (*terrain.Analysis, error) {
	field, err := rec.FieldElevation()
	if err != nil {
		return nil, err
	}
	if in.RecordTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, in.RecordTimeout)
		defer cancel()
	}
	return terrain.Analyze(ctx, in.Source, rec.Center(), field, in.options())
}
