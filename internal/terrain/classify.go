package terrain

// Category is an output bucket an airport can fall into.
type Category string

const (
	// CategoryMountain marks terrain rising above the field.
	CategoryMountain Category = "mountain"
	// CategoryMountainTop marks a field sitting on a local prominence.
	CategoryMountainTop Category = "mountain_top"
)

// Categories lists every category in output order.
var Categories = []Category{CategoryMountain, CategoryMountainTop}

// Default classification thresholds in feet.
const (
	DefaultMountainThresholdFt    = 800.0
	DefaultMountainTopThresholdFt = 600.0
)

// Thresholds are strict lower bounds: a delta equal to the threshold does
// not qualify.
type Thresholds struct {
	MountainFt    float64 `json:"mountain_threshold_ft"`
	MountainTopFt float64 `json:"mountain_top_threshold_ft"`
}

// DefaultThresholds returns 800 ft for mountain and 600 ft for mountain-top.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MountainFt:    DefaultMountainThresholdFt,
		MountainTopFt: DefaultMountainTopThresholdFt,
	}
}

// Classify returns every category the profile qualifies for, in
// Categories order. The rules are independent.
func Classify(p Profile, t Thresholds) []Category {
	var cats []Category
	if p.DeltaHighFt > t.MountainFt {
		cats = append(cats, CategoryMountain)
	}
	if p.DeltaLowFt > t.MountainTopFt {
		cats = append(cats, CategoryMountainTop)
	}
	return cats
}

// Has reports whether c is in cats.
func Has(cats []Category, c Category) bool {
	for _, x := range cats {
		if x == c {
			return true
		}
	}
	return false
}
