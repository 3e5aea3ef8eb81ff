package render

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/fiapx/fiapx-slowmo-service/internal/curve"
)

const (
	tagStart = "<Start>"
	tagEnd   = "<End>"
)

// ParseTime converts a time expression into an output time in seconds.
//
//	:start, :end      first / last node of the curve
//	12.5              seconds
//	01:02:03.5, 02:03 [hh:]mm:ss[.fff]
//	f:120             output frame at fps
//	p:25%             percentage of the curve span
//
// The result must lie inside the curve span.
func ParseTime(expr string, l *curve.NodeList, fps float64) (float64, error) {
	e := strings.TrimSpace(expr)
	start, end := l.StartTime(), l.EndTime()

	var t float64
	switch {
	case e == "":
		return 0, fmt.Errorf("empty time expression")
	case e == ":start":
		return start, nil
	case e == ":end":
		return end, nil
	case strings.HasPrefix(e, "f:"):
		n, err := strconv.ParseFloat(strings.TrimPrefix(e, "f:"), 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid frame expression %q", expr)
		}
		if fps <= 0 {
			return 0, fmt.Errorf("frame expression %q needs a positive fps", expr)
		}
		t = n / fps
	case strings.HasPrefix(e, "p:"):
		v := strings.TrimSuffix(strings.TrimPrefix(e, "p:"), "%")
		pct, err := strconv.ParseFloat(v, 64)
		if err != nil || pct < 0 || pct > 100 {
			return 0, fmt.Errorf("invalid percentage expression %q", expr)
		}
		t = start + pct/100*(end-start)
	case strings.Contains(e, ":"):
		v, err := parseClock(e)
		if err != nil {
			return 0, fmt.Errorf("invalid time %q: %w", expr, err)
		}
		t = v
	default:
		v, err := strconv.ParseFloat(e, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid time %q", expr)
		}
		t = v
	}

	if math.IsNaN(t) || math.IsInf(t, 0) {
		return 0, fmt.Errorf("invalid time %q", expr)
	}
	if t < start || t > end {
		return 0, fmt.Errorf("time %q (%.3fs) is outside the curve [%.3fs, %.3fs]", expr, t, start, end)
	}
	return t, nil
}

func parseClock(s string) (float64, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("expected [hh:]mm:ss")
	}
	var total float64
	for i, p := range parts {
		last := i == len(parts)-1
		var v float64
		var err error
		if last {
			v, err = strconv.ParseFloat(p, 64)
		} else {
			var n int
			n, err = strconv.Atoi(p)
			v = float64(n)
		}
		if err != nil || v < 0 {
			return 0, fmt.Errorf("bad component %q", p)
		}
		if i > 0 && v >= 60 {
			return 0, fmt.Errorf("component %q out of range", p)
		}
		total = total*60 + v
	}
	return total, nil
}

// ResolveSection returns the output time range [start, end) a section covers.
func ResolveSection(sec Section, l *curve.NodeList, tags []curve.Tag, fps float64) (float64, float64, error) {
	if l.Len() == 0 {
		return 0, 0, curve.ErrEmptyCurve
	}

	var start, end float64
	var err error
	switch sec.Mode {
	case SectionFull, "":
		start, end = l.StartTime(), l.EndTime()
	case SectionTime:
		if start, err = ParseTime(sec.Start, l, fps); err != nil {
			return 0, 0, fmt.Errorf("section start: %w", err)
		}
		if end, err = ParseTime(sec.End, l, fps); err != nil {
			return 0, 0, fmt.Errorf("section end: %w", err)
		}
	case SectionTags:
		if start, err = tagTime(sec.Start, l, tags); err != nil {
			return 0, 0, fmt.Errorf("section start: %w", err)
		}
		if end, err = tagTime(sec.End, l, tags); err != nil {
			return 0, 0, fmt.Errorf("section end: %w", err)
		}
	default:
		return 0, 0, fmt.Errorf("unknown section mode %q", sec.Mode)
	}

	if start >= end {
		return 0, 0, fmt.Errorf("section start %.3fs is not before end %.3fs", start, end)
	}
	return start, end, nil
}

func tagTime(desc string, l *curve.NodeList, tags []curve.Tag) (float64, error) {
	switch desc {
	case tagStart, "":
		return l.StartTime(), nil
	case tagEnd:
		return l.EndTime(), nil
	}
	for _, t := range curve.OutputTags(tags, l) {
		if t.Description == desc {
			return t.Time, nil
		}
	}
	return 0, fmt.Errorf("no output tag %q inside the curve", desc)
}
