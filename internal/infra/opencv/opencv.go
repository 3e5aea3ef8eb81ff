// Package opencv provides dense optical flow from OpenCV through gocv.
// The cgo binding is only compiled with the gocv build tag; other builds get
// a constructor that reports ErrUnavailable so callers can fall back to a
// pure Go estimator.
package opencv

import "errors"

var ErrUnavailable = errors.New("opencv support not compiled in (build with -tags gocv)")

// FarnebackParams are the cv::calcOpticalFlowFarneback settings.
type FarnebackParams struct {
	PyrScale   float64
	Levels     int
	WinSize    int
	Iterations int
	PolyN      int
	PolySigma  float64
}

func DefaultFarnebackParams() FarnebackParams {
	return FarnebackParams{
		PyrScale:   0.5,
		Levels:     3,
		WinSize:    15,
		Iterations: 8,
		PolyN:      5,
		PolySigma:  1.2,
	}
}
