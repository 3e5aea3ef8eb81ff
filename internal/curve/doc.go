// Package curve holds the time-remapping curve of a slow-motion project.
//
// A curve is an ordered list of nodes. X is the output time in seconds and is
// the independent axis the list is sorted by; Y is the source time shown at
// that output time. The local slope of the curve is the playback speed: 0.25
// renders four times slower than real time, 2 skips through the source.
package curve
