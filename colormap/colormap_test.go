package colormap

import (
	"image/color"
	"testing"
)

func luminance(c color.RGBA) float64 {
	return 0.2126*float64(c.R) + 0.7152*float64(c.G) + 0.0722*float64(c.B)
}

func TestRampImage(t *testing.T) {
	tests := []struct {
		ramp        Ramp
		first, last color.RGBA
	}{
		{Magma, color.RGBA{0, 0, 4, 255}, color.RGBA{0xfc, 0xfd, 0xbf, 255}},
		{Export, color.RGBA{0xff, 0xff, 0xb2, 255}, color.RGBA{0xbd, 0, 0x26, 255}},
	}
	for _, tt := range tests {
		t.Run(tt.ramp.Name, func(t *testing.T) {
			img := tt.ramp.Image()
			if b := img.Bounds(); b.Dx() != Width || b.Dy() != 1 {
				t.Fatalf("Bounds() = %v, want %dx1", b, Width)
			}
			if got := img.RGBAAt(0, 0); got != tt.first {
				t.Errorf("first texel = %v, want %v", got, tt.first)
			}
			if got := img.RGBAAt(Width-1, 0); got != tt.last {
				t.Errorf("last texel = %v, want %v", got, tt.last)
			}
		})
	}
}

func TestMagmaBrightens(t *testing.T) {
	img := Magma.Image()
	start, mid, end := luminance(img.RGBAAt(0, 0)), luminance(img.RGBAAt(Width/2, 0)), luminance(img.RGBAAt(Width-1, 0))
	if !(start < mid && mid < end) {
		t.Errorf("luminance %v, %v, %v is not increasing", start, mid, end)
	}
}

func TestAtClamps(t *testing.T) {
	if got, want := Magma.At(-1), Magma.At(0); got != want {
		t.Errorf("At(-1) = %v, want %v", got, want)
	}
	if got, want := Magma.At(2), Magma.At(1); got != want {
		t.Errorf("At(2) = %v, want %v", got, want)
	}
}

func TestByName(t *testing.T) {
	if _, ok := ByName("magma"); !ok {
		t.Error("ByName(magma) not found")
	}
	if _, ok := ByName("viridis"); ok {
		t.Error("ByName(viridis) found")
	}
}
