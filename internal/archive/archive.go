// Package archive compresses patch documents kept in squash history.
package archive

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

type Options struct {
	// Payloads smaller than MinSize are stored as is
	MinSize int
	// zstd level, 1 (fastest) to 4 (best)
	Level int
}

func DefaultOptions() Options {
	return Options{MinSize: 256, Level: 2}
}

// Archiver compresses with pooled zstd encoders and decoders. It is safe
// for concurrent use.
type Archiver struct {
	opts     Options
	encoders sync.Pool
	decoders sync.Pool
}

func New(opts Options) (*Archiver, error) {
	level := zstd.EncoderLevelFromZstd(opts.Level)

	// fail early on bad options rather than inside the pool
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("creating encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("creating decoder: %w", err)
	}

	a := &Archiver{opts: opts}
	a.encoders.New = func() any {
		e, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(level), zstd.WithEncoderConcurrency(1))
		return e
	}
	a.decoders.New = func() any {
		d, _ := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		return d
	}
	a.encoders.Put(enc)
	a.decoders.Put(dec)
	return a, nil
}

// Compress returns data zstd-compressed, or unchanged when it is below
// MinSize.
func (a *Archiver) Compress(data []byte) []byte {
	if len(data) < a.opts.MinSize {
		return data
	}
	enc := a.encoders.Get().(*zstd.Encoder)
	defer a.encoders.Put(enc)
	return enc.EncodeAll(data, make([]byte, 0, len(data)/2))
}

// Decompress reverses Compress. Input without a zstd frame header is
// returned unchanged.
func (a *Archiver) Decompress(data []byte) ([]byte, error) {
	if !IsCompressed(data) {
		return data, nil
	}
	dec := a.decoders.Get().(*zstd.Decoder)
	defer a.decoders.Put(dec)

	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing: %w", err)
	}
	return out, nil
}

func IsCompressed(data []byte) bool {
	return len(data) > len(zstdMagic) && bytes.Equal(data[:len(zstdMagic)], zstdMagic)
}
