package motionblur

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weightSum(samples []Sample) float64 {
	var s float64
	for _, x := range samples {
		s += x.Weight
	}
	return s
}

func TestSamples_Nearest(t *testing.T) {
	s := Sampler{Type: Nearest, MaxSamples: 8, SlowmoSamples: 4}
	got := s.Samples(2.5, 7)
	assert.Equal(t, []Sample{{Pos: 2.5, Weight: 1}}, got)
}

func TestSamples_Stacking(t *testing.T) {
	s := Sampler{Type: Stacking, MaxSamples: 100, SlowmoSamples: 4}
	got := s.Samples(1, 2)
	require.Len(t, got, 4)
	for k, x := range got {
		assert.InDelta(t, 1+float64(k)*0.25, x.Pos, 1e-12)
		assert.InDelta(t, 0.25, x.Weight, 1e-12)
	}
}

func TestSamples_ConvolvingNormalizedAndSymmetric(t *testing.T) {
	s := Sampler{Type: Convolving, MaxSamples: 100, SlowmoSamples: 8}
	got := s.Samples(0, 1)
	require.Len(t, got, 8)
	assert.InDelta(t, 1.0, weightSum(got), 1e-12)
	for k := 0; k < len(got)/2; k++ {
		assert.InDelta(t, got[k].Weight, got[len(got)-1-k].Weight, 1e-12)
	}
	assert.Greater(t, got[3].Weight, got[0].Weight)
}

func TestSamples_NeverExceedsMax(t *testing.T) {
	for _, typ := range []Type{Nearest, Stacking, Convolving} {
		s := Sampler{Type: typ, MaxSamples: 5, SlowmoSamples: 1000}
		got := s.Samples(0, 40)
		assert.LessOrEqual(t, len(got), 5, typ.String())
		assert.InDelta(t, 1.0, weightSum(got), 1e-12)
	}
}

func TestSamples_DegenerateSettings(t *testing.T) {
	s := Sampler{Type: Stacking, MaxSamples: 0, SlowmoSamples: 0}
	assert.Len(t, s.Samples(0, 3), 1)

	s = Sampler{Type: Stacking, MaxSamples: 10, SlowmoSamples: 4}
	assert.Len(t, s.Samples(3, 3), 1, "empty window")
	assert.Len(t, s.Samples(3, 2), 4, "reversed window")
}

func TestParseType(t *testing.T) {
	typ, err := ParseType("Convolving")
	require.NoError(t, err)
	assert.Equal(t, Convolving, typ)
	_, err = ParseType("gaussian")
	assert.Error(t, err)
}

func TestCount_FollowsSourceSpan(t *testing.T) {
	s := Sampler{Type: Convolving, MaxSamples: 64, SlowmoSamples: 16}
	assert.Equal(t, 4, s.Count(0.25), "quarter speed: a quarter source frame per output frame")
	assert.Equal(t, 16, s.Count(1))
	assert.Equal(t, 32, s.Count(-2), "reverse playback counts by magnitude")
	assert.Equal(t, 64, s.Count(10), "capped at MaxSamples")
}
