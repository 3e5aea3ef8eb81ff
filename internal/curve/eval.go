package curve

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Mode selects how the curve is interpolated between nodes.
type Mode int

const (
	Nearest Mode = iota
	Linear
	Bezier
)

func (m Mode) String() string {
	switch m {
	case Nearest:
		return "nearest"
	case Linear:
		return "linear"
	case Bezier:
		return "bezier"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nearest":
		return Nearest, nil
	case "linear", "":
		return Linear, nil
	case "bezier", "smooth":
		return Bezier, nil
	}
	return Linear, fmt.Errorf("unknown curve mode %q", s)
}

// Evaluate maps output time x to source time. Outside the node span the
// boundary node's value is returned. On an exact hit of several nodes sharing
// x, the first inserted wins.
func (l *NodeList) Evaluate(x float64, mode Mode) (float64, error) {
	n := len(l.nodes)
	if n == 0 {
		return 0, ErrEmptyCurve
	}
	if x < l.nodes[0].X {
		return l.nodes[0].Y, nil
	}
	if x > l.nodes[n-1].X {
		return l.nodes[n-1].Y, nil
	}

	j := sort.Search(n, func(i int) bool { return l.nodes[i].X > x })
	if lo := sort.Search(n, func(i int) bool { return l.nodes[i].X >= x }); lo < n && l.nodes[lo].X == x {
		return l.nodes[lo].Y, nil
	}
	i := j - 1
	a, b := l.nodes[i], l.nodes[j]

	switch mode {
	case Nearest:
		if x-a.X <= b.X-x {
			return a.Y, nil
		}
		return b.Y, nil
	case Bezier:
		return l.hermite(i, j, x), nil
	default:
		s := (x - a.X) / (b.X - a.X)
		return a.Y + s*(b.Y-a.Y), nil
	}
}

// hermite evaluates the cubic segment i..j with Catmull-Rom tangents, which
// keeps the first derivative continuous across nodes.
func (l *NodeList) hermite(i, j int, x float64) float64 {
	a, b := l.nodes[i], l.nodes[j]
	h := b.X - a.X
	s := (x - a.X) / h

	ma := l.tangent(i, j, i)
	mb := l.tangent(i, j, j)

	s2, s3 := s*s, s*s*s
	h00 := 2*s3 - 3*s2 + 1
	h10 := s3 - 2*s2 + s
	h01 := -2*s3 + 3*s2
	h11 := s3 - s2
	return h00*a.Y + h10*h*ma + h01*b.Y + h11*h*mb
}

// tangent at node k of segment (i, j). Neighbours outside the list fall back
// to the segment's own slope. Denominators are positive because x_i < x_j.
func (l *NodeList) tangent(i, j, k int) float64 {
	if k == i {
		if i == 0 {
			return (l.nodes[j].Y - l.nodes[i].Y) / (l.nodes[j].X - l.nodes[i].X)
		}
		p := l.nodes[i-1]
		return (l.nodes[j].Y - p.Y) / (l.nodes[j].X - p.X)
	}
	if j == len(l.nodes)-1 {
		return (l.nodes[j].Y - l.nodes[i].Y) / (l.nodes[j].X - l.nodes[i].X)
	}
	q := l.nodes[j+1]
	return (q.Y - l.nodes[i].Y) / (q.X - l.nodes[i].X)
}

const slopeStep = 1e-4

// Slope is the local playback speed (source seconds per output second) at x,
// estimated by a finite difference kept inside the curve span. Outside the
// span the curve is flat and the speed is 0.
func (l *NodeList) Slope(x float64, mode Mode) (float64, error) {
	if len(l.nodes) == 0 {
		return 0, ErrEmptyCurve
	}
	lo := math.Max(x-slopeStep/2, l.StartTime())
	hi := math.Min(x+slopeStep/2, l.EndTime())
	if hi <= lo {
		return 0, nil
	}
	y0, err := l.Evaluate(lo, mode)
	if err != nil {
		return 0, err
	}
	y1, err := l.Evaluate(hi, mode)
	if err != nil {
		return 0, err
	}
	return (y1 - y0) / (hi - lo), nil
}
