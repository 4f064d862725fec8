package readback

import (
	"bytes"
	"errors"
	"testing"
)

func rgba(px ...[4]float32) []byte {
	var flat []float32
	for _, p := range px {
		flat = append(flat, p[:]...)
	}
	return EncodeRGBA32F(nil, flat)
}

func TestMaxWeight(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want float32
	}{
		{
			name: "red channel only",
			data: rgba([4]float32{0, 99, 99, 99}, [4]float32{3, 0, 0, 0}, [4]float32{7, 50, 0, 1}, [4]float32{2, 0, 0, 100}),
			want: 7,
		},
		{name: "empty", data: nil, want: 0},
		{name: "negatives clamp to zero", data: rgba([4]float32{-4, 0, 0, 0}, [4]float32{-1, 0, 0, 0}), want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MaxWeight(tt.data)
			if err != nil {
				t.Fatalf("MaxWeight() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("MaxWeight() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMaxWeightStride(t *testing.T) {
	for _, n := range []int{1, 4, 15, 17, 20} {
		if _, err := MaxWeight(make([]byte, n)); !errors.Is(err, ErrStride) {
			t.Errorf("MaxWeight(%d bytes) error = %v, want ErrStride", n, err)
		}
	}
}

func TestUniformPayload(t *testing.T) {
	got := UniformPayload(7)
	if len(got) != UniformSize {
		t.Fatalf("len = %d, want %d", len(got), UniformSize)
	}
	want := append(EncodeRGBA32F(nil, []float32{7}), make([]byte, 12)...)
	if !bytes.Equal(got, want) {
		t.Errorf("UniformPayload(7) = %v, want %v", got, want)
	}
}

func TestAlignedBytesPerRow(t *testing.T) {
	tests := []struct {
		width, bpp, want uint32
	}{
		{1, 16, 256},
		{16, 16, 256},
		{17, 16, 512},
		{3200, 16, 51200},
		{800, 4, 3328},
	}
	for _, tt := range tests {
		if got := AlignedBytesPerRow(tt.width, tt.bpp); got != tt.want {
			t.Errorf("AlignedBytesPerRow(%d, %d) = %d, want %d", tt.width, tt.bpp, got, tt.want)
		}
	}
	if got := AlignedWidth(20); got != 32 {
		t.Errorf("AlignedWidth(20) = %d, want 32", got)
	}
}

func TestPixelsStripsPadding(t *testing.T) {
	const width, height = 3, 2
	bpr := AlignedBytesPerRow(width, PixelStride)
	data := make([]byte, 0, bpr*height)
	for y := 0; y < height; y++ {
		row := make([]float32, 0, width*4)
		for x := 0; x < width; x++ {
			row = append(row, float32(y*10+x), 0, 0, 1)
		}
		data = EncodeRGBA32F(data, row)
		data = append(data, make([]byte, int(bpr)-width*PixelStride)...)
	}

	px, err := Pixels(data, width, height, bpr)
	if err != nil {
		t.Fatalf("Pixels() error = %v", err)
	}
	if len(px) != width*height*4 {
		t.Fatalf("len = %d, want %d", len(px), width*height*4)
	}
	if px[4*4] != 11 {
		t.Errorf("pixel (1,1) red = %v, want 11", px[4*4])
	}

	if _, err := Pixels(data[:bpr], width, height, bpr); !errors.Is(err, ErrShortBuffer) {
		t.Errorf("short buffer error = %v, want ErrShortBuffer", err)
	}
}
