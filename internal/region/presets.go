package region

import (
	"sort"
	"strings"
)

// appalachiaLatLon outlines the Appalachian service area as [lat, lon].
var appalachiaLatLon = [][2]float64{
	{35.2097, -80.7056},
	{34.6513, -85.3638},
	{38.9423, -85.9351},
	{42.9082, -80.9033},
	{45.3146, -74.3994},
	{49.5619, -66.1157},
	{47.8805, -60.6445},
	{45.2682, -57.8540},
	{36.4213, -76.0254},
}

var presets = map[string][][2]float64{
	"appalachia": appalachiaLatLon,
}

// Preset returns a built-in region by name.
func Preset(name string) (*Polygon, bool) {
	verts, ok := presets[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	p, err := FromLatLon(strings.ToLower(name), verts)
	if err != nil {
		return nil, false
	}
	return p, true
}

// PresetNames lists built-in regions.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
