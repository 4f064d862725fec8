// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package readback decodes buffers copied back from RGBA32Float textures.
//
// Rows in a copy buffer are padded to RowAlignment bytes. Only the red
// channel of the max-weight copy carries data; the other three channels
// are skipped.
package readback

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Layout constants for RGBA32Float copies.
const (
	// RowAlignment is the required bytes-per-row alignment for
	// texture-to-buffer copies.
	RowAlignment = 256

	// PixelStride is the size of one RGBA32Float pixel.
	PixelStride = 16

	// UniformSize is the size of the padded max-weight uniform.
	UniformSize = 16
)

var (
	// ErrStride is returned when a buffer length is not a multiple of
	// PixelStride. It always indicates a layout bug.
	ErrStride = errors.New("readback: buffer length is not a multiple of the pixel stride")

	// ErrShortBuffer is returned when a buffer holds fewer rows than requested.
	ErrShortBuffer = errors.New("readback: buffer too small for image")
)

// AlignedBytesPerRow returns width*bytesPerPixel rounded up to RowAlignment.
func AlignedBytesPerRow(width, bytesPerPixel uint32) uint32 {
	row := width * bytesPerPixel
	return (row + RowAlignment - 1) / RowAlignment * RowAlignment
}

// AlignedWidth returns the pixel width whose RGBA32Float rows need no padding.
func AlignedWidth(width uint32) uint32 {
	return AlignedBytesPerRow(width, PixelStride) / PixelStride
}

// MaxWeight returns the largest red-channel value in an RGBA32Float buffer,
// clamped to at least zero. Exactly three floats are skipped after each
// red value.
func MaxWeight(data []byte) (float32, error) {
	if len(data)%PixelStride != 0 {
		return 0, fmt.Errorf("%w: %d bytes", ErrStride, len(data))
	}
	var best float32
	for off := 0; off < len(data); off += PixelStride {
		v := math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
		if v > best {
			best = v
		}
	}
	return best, nil
}

// UniformPayload encodes v as a little-endian float32 padded with zeros to
// UniformSize bytes.
func UniformPayload(v float32) []byte {
	buf := make([]byte, UniformSize)
	binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
	return buf
}

// Pixels decodes an RGBA32Float copy of width×height pixels with rows
// bytesPerRow apart. Row padding is dropped, so the result always holds
// exactly width*height*4 floats.
func Pixels(data []byte, width, height, bytesPerRow uint32) ([]float32, error) {
	if len(data)%PixelStride != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrStride, len(data))
	}
	rowBytes := uint64(width) * PixelStride
	if uint64(bytesPerRow) < rowBytes {
		return nil, fmt.Errorf("readback: bytes per row %d smaller than row %d", bytesPerRow, rowBytes)
	}
	if height > 0 && uint64(len(data)) < uint64(height-1)*uint64(bytesPerRow)+rowBytes {
		return nil, fmt.Errorf("%w: %d bytes for %dx%d", ErrShortBuffer, len(data), width, height)
	}

	out := make([]float32, 0, uint64(width)*uint64(height)*4)
	for y := uint32(0); y < height; y++ {
		row := data[uint64(y)*uint64(bytesPerRow):]
		for x := uint64(0); x < rowBytes; x += 4 {
			out = append(out, math.Float32frombits(binary.LittleEndian.Uint32(row[x:])))
		}
	}
	return out, nil
}

// EncodeRGBA32F encodes float pixels as little-endian bytes. Backends that
// keep textures on the CPU use it to fill copy buffers.
func EncodeRGBA32F(dst []byte, px []float32) []byte {
	for _, v := range px {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
	}
	return dst
}
