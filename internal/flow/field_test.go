package flow

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/fiapx/fiapx-slowmo-service/internal/frames"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldAccessors(t *testing.T) {
	f := NewField(4, 3)
	require.NoError(t, f.Set(3, 2, 1.5, -2))

	dx, dy, err := f.At(3, 2)
	require.NoError(t, err)
	assert.Equal(t, float32(1.5), dx)
	assert.Equal(t, float32(-2), dy)

	_, _, err = f.At(4, 0)
	assert.ErrorIs(t, err, ErrOutOfBounds)
	_, _, err = f.At(0, -1)
	assert.ErrorIs(t, err, ErrOutOfBounds)
	assert.ErrorIs(t, f.Set(0, 3, 0, 0), ErrOutOfBounds)
}

func TestFieldRejectsNonFinite(t *testing.T) {
	f := NewField(2, 2)
	assert.ErrorIs(t, f.Set(0, 0, float32(math.NaN()), 0), ErrNonFinite)
	assert.ErrorIs(t, f.Set(0, 0, 0, float32(math.Inf(1))), ErrNonFinite)
}

func TestFieldSampleInterpolatesAndClamps(t *testing.T) {
	f := NewField(2, 1)
	require.NoError(t, f.Set(0, 0, 0, 0))
	require.NoError(t, f.Set(1, 0, 2, 4))

	dx, dy := f.Sample(0.5, 0)
	assert.InDelta(t, 1.0, dx, 1e-9)
	assert.InDelta(t, 2.0, dy, 1e-9)

	dx, _ = f.Sample(10, 10)
	assert.InDelta(t, 2.0, dx, 1e-9)
}

func TestKeyDirectionAndFileName(t *testing.T) {
	fwd := NewKey(3, 7, frames.Original)
	bwd := NewKey(7, 3, frames.Original)

	assert.Equal(t, Forward, fwd.Direction())
	assert.Equal(t, Backward, bwd.Direction())
	assert.Equal(t, "forward-3-7-orig.sVflow", fwd.FileName())
	assert.Equal(t, "backward-7-3-orig.sVflow", bwd.FileName())
	assert.NotEqual(t, fwd.FileName(), bwd.FileName())
	assert.Equal(t, bwd, fwd.Reverse())

	small := NewKey(3, 7, frames.Small)
	assert.NotEqual(t, fwd.FileName(), small.FileName())
}

func sampleField() *Field {
	f := NewField(3, 2)
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			_ = f.Set(x, y, float32(x)-0.25, float32(y)*1.5)
		}
	}
	return f
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.sVflow")
	in := sampleField()
	require.NoError(t, Save(path, in))

	out, err := Load(path)
	require.NoError(t, err)
	assert.True(t, in.Equal(out))
}

func TestReadRejectsMalformedInput(t *testing.T) {
	var good bytes.Buffer
	require.NoError(t, Write(&good, sampleField()))
	raw := good.Bytes()

	cases := map[string][]byte{
		"empty":     {},
		"bad magic": append([]byte("XXflow"), raw[6:]...),
		"version":   append(append([]byte("sVflow"), 9), raw[7:]...),
		"truncated": raw[:len(raw)-3],
		"trailing":  append(append([]byte{}, raw...), 0),
		"zero dims": append([]byte("sVflow\x01"), 0, 0, 0, 0, 1, 0, 0, 0),
	}
	nan := append([]byte{}, raw...)
	copy(nan[len(raw)-4:], []byte{0x00, 0x00, 0xc0, 0x7f})
	cases["nan"] = nan

	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Read(bytes.NewReader(data))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedFlow)
			var re *ReadError
			require.ErrorAs(t, err, &re)
			assert.NotEmpty(t, re.Msg)
		})
	}
}

func TestLoadNamesPathOnMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.sVflow")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0644))

	_, err := Load(path)
	var re *ReadError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, path, re.Path)
	assert.Contains(t, err.Error(), path)
}
