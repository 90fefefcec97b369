// Package region decides whether an airport lies in the area of interest.
package region

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/rotisserie/eris"
)

// Region is a containment test over WGS84 longitude/latitude.
type Region interface {
	Contains(lon, lat float64) bool
}

// All contains every point.
type All struct{}

// Contains always returns true.
func (All) Contains(_, _ float64) bool { return true }

// Polygon is a closed area made of one or more polygons, each with optional
// holes. Points on the boundary count as inside.
type Polygon struct {
	Name  string
	shape orb.MultiPolygon
	bound orb.Bound
}

// NewPolygon validates and wraps mp. Open rings are closed.
func NewPolygon(name string, mp orb.MultiPolygon) (*Polygon, error) {
	if len(mp) == 0 {
		return nil, eris.Errorf("region: %s has no polygons", name)
	}
	closed := make(orb.MultiPolygon, 0, len(mp))
	for i, poly := range mp {
		if len(poly) == 0 {
			continue
		}
		out := make(orb.Polygon, 0, len(poly))
		for _, ring := range poly {
			if len(ring) < 3 {
				return nil, eris.Errorf("region: %s polygon %d has a ring with %d vertices", name, i, len(ring))
			}
			out = append(out, closeRing(ring))
		}
		closed = append(closed, out)
	}
	if len(closed) == 0 {
		return nil, eris.Errorf("region: %s has no polygons", name)
	}
	return &Polygon{Name: name, shape: closed, bound: closed.Bound()}, nil
}

// FromLatLon builds a single-ring polygon from [lat, lon] vertices.
func FromLatLon(name string, vertices [][2]float64) (*Polygon, error) {
	ring := make(orb.Ring, 0, len(vertices)+1)
	for _, v := range vertices {
		ring = append(ring, orb.Point{v[1], v[0]})
	}
	return NewPolygon(name, orb.MultiPolygon{{ring}})
}

// Contains reports whether (lon, lat) is inside the polygon.
func (p *Polygon) Contains(lon, lat float64) bool {
	pt := orb.Point{lon, lat}
	if !p.bound.Contains(pt) {
		return false
	}
	return planar.MultiPolygonContains(p.shape, pt)
}

// Bound returns the bounding box.
func (p *Polygon) Bound() orb.Bound {
	return p.bound
}

// Shape returns the underlying geometry.
func (p *Polygon) Shape() orb.MultiPolygon {
	return p.shape
}

func closeRing(r orb.Ring) orb.Ring {
	if r.Closed() {
		return r
	}
	out := make(orb.Ring, len(r), len(r)+1)
	copy(out, r)
	return append(out, r[0])
}
