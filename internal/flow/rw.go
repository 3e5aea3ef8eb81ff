package flow

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

var magic = []byte("sVflow")

const (
	formatVersion = 1
	// maxPixels bounds the allocation made from an untrusted header (16k x 16k).
	maxPixels = 1 << 28
)

// Write encodes a field: magic, version byte, uint32 width and height, then
// (dx, dy) float32 pairs in row order. All integers are little-endian.
func Write(w io.Writer, f *Field) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(magic); err != nil {
		return err
	}
	if err := bw.WriteByte(formatVersion); err != nil {
		return err
	}

	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(f.width))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(f.height))
	if _, err := bw.Write(buf[:]); err != nil {
		return err
	}
	for i := range f.dx {
		binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(f.dx[i]))
		binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(f.dy[i]))
		if _, err := bw.Write(buf[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Read decodes a field written by Write. Any structural problem yields a *ReadError.
func Read(r io.Reader) (*Field, error) {
	br := bufio.NewReader(r)

	head := make([]byte, len(magic)+1+8)
	if _, err := io.ReadFull(br, head); err != nil {
		return nil, malformedf("header too short")
	}
	if !bytes.Equal(head[:len(magic)], magic) {
		return nil, malformedf("bad magic %q", head[:len(magic)])
	}
	if v := head[len(magic)]; v != formatVersion {
		return nil, malformedf("unsupported version %d", v)
	}
	dims := head[len(magic)+1:]
	w := binary.LittleEndian.Uint32(dims[0:4])
	h := binary.LittleEndian.Uint32(dims[4:8])
	if w == 0 || h == 0 {
		return nil, malformedf("empty dimensions %dx%d", w, h)
	}
	if uint64(w)*uint64(h) > maxPixels {
		return nil, malformedf("dimensions %dx%d too large", w, h)
	}

	f := NewField(int(w), int(h))
	var buf [8]byte
	for i := range f.dx {
		if _, err := io.ReadFull(br, buf[:]); err != nil {
			return nil, malformedf("truncated at pixel %d of %d", i, len(f.dx))
		}
		dx := math.Float32frombits(binary.LittleEndian.Uint32(buf[0:4]))
		dy := math.Float32frombits(binary.LittleEndian.Uint32(buf[4:8]))
		if !finite(dx) || !finite(dy) {
			return nil, malformedf("non-finite value at pixel %d", i)
		}
		f.dx[i], f.dy[i] = dx, dy
	}
	if _, err := br.ReadByte(); err != io.EOF {
		return nil, malformedf("trailing data after %d pixels", len(f.dx))
	}
	return f, nil
}

// Save writes a field to path, replacing any existing file.
func Save(path string, f *Field) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create flow file: %w", err)
	}
	if err := Write(out, f); err != nil {
		out.Close()
		return fmt.Errorf("write flow file: %w", err)
	}
	return out.Close()
}

// Load reads a flow file. Malformed content yields a *ReadError naming the path.
func Load(path string) (*Field, error) {
	in, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	f, err := Read(in)
	if err != nil {
		var re *ReadError
		if errors.As(err, &re) {
			re.Path = path
		}
		return nil, err
	}
	return f, nil
}
