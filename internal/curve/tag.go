package curve

import "sort"

type Axis string

const (
	AxisOutput Axis = "output"
	AxisSource Axis = "source"
)

// Tag is a named marker on one of the two time axes.
type Tag struct {
	Time        float64 `json:"time"`
	Axis        Axis    `json:"axis"`
	Description string  `json:"description"`
}

// OutputTags returns the output-axis tags strictly inside the curve's span,
// sorted by time. These are the tags a render section can start or end at.
func OutputTags(tags []Tag, l *NodeList) []Tag {
	var out []Tag
	for _, t := range tags {
		if t.Axis == AxisOutput && t.Time > l.StartTime() && t.Time < l.EndTime() {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}
