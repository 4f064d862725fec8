// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package export turns finished heatmap exports into annotated PNG images.
//
// A Compositor is a heatmap.ExportSink. It converts the float pixels of an
// export to an 8-bit image, appends a footer with the export color ramp
// and the weight range it spans, and writes the result as PNG:
//
//	c, err := export.NewCompositor(export.WithPath("heatmap.png"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	r, err := heatmap.New(heatmap.WithExportSink(c))
package export

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"sync"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/heatmap"
	"github.com/gogpu/heatmap/colormap"
)

// ErrPixels is returned when an export's pixel slice does not hold
// Width*Height RGBA values.
var ErrPixels = errors.New("export: pixel count does not match dimensions")

// Footer layout, in pixels.
const (
	minFooter = 40
	maxFooter = 160
)

// Footer rows, as fractions of the footer height from its top edge. The
// title sits above the bar and the weight labels below it.
const (
	titleTop  = 0.06
	barTop    = 0.36
	barHeight = 0.22
	labelTop  = 0.62
	textSize  = 0.22
)

type options struct {
	path   string
	writer io.Writer
	title  string
	lang   language.Tag
	ramp   colormap.Ramp
	footer bool
}

// Option configures a Compositor.
type Option func(*options)

// WithPath writes each export to path, replacing the previous one.
func WithPath(path string) Option {
	return func(o *options) { o.path = path }
}

// WithWriter writes each export to w.
func WithWriter(w io.Writer) Option {
	return func(o *options) { o.writer = w }
}

// WithTitle sets the caption drawn in the footer.
func WithTitle(title string) Option {
	return func(o *options) { o.title = title }
}

// WithLanguage selects the locale used to format legend numbers.
// The default is English.
func WithLanguage(tag language.Tag) Option {
	return func(o *options) { o.lang = tag }
}

// WithRamp sets the ramp drawn in the legend. It should match the ramp the
// export pass used, which is colormap.Export by default.
func WithRamp(r colormap.Ramp) Option {
	return func(o *options) { o.ramp = r }
}

// WithoutFooter writes the bare heatmap with no legend.
func WithoutFooter() Option {
	return func(o *options) { o.footer = false }
}

// Compositor renders exports to PNG. It implements heatmap.ExportSink.
type Compositor struct {
	opts    options
	font    *text.FontSource
	printer *message.Printer

	mu    sync.Mutex
	count int
}

var _ heatmap.ExportSink = (*Compositor)(nil)

// NewCompositor creates a Compositor. Without WithPath or WithWriter,
// exports are composed and counted but not written.
func NewCompositor(opts ...Option) (*Compositor, error) {
	o := options{
		lang:   language.English,
		ramp:   colormap.Export,
		footer: true,
	}
	for _, opt := range opts {
		opt(&o)
	}

	font, err := text.NewFontSource(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("export: load font: %w", err)
	}
	return &Compositor{
		opts:    o,
		font:    font,
		printer: message.NewPrinter(o.lang),
	}, nil
}

// Count returns the number of exports written.
func (c *Compositor) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Export composes img and writes it to the configured destination.
func (c *Compositor) Export(img heatmap.ExportImage) error {
	dc, err := c.Compose(img)
	if err != nil {
		return err
	}
	defer func() { _ = dc.Close() }()

	if c.opts.path != "" {
		if err := dc.SavePNG(c.opts.path); err != nil {
			return fmt.Errorf("export: save %s: %w", c.opts.path, err)
		}
	}
	if c.opts.writer != nil {
		if err := dc.EncodePNG(c.opts.writer); err != nil {
			return fmt.Errorf("export: encode: %w", err)
		}
	}

	c.mu.Lock()
	c.count++
	c.mu.Unlock()

	heatmap.Logger().Info("export: written",
		"path", c.opts.path, "width", img.Width, "height", img.Height, "max_weight", img.MaxWeight)
	return nil
}

// Compose draws img and its footer into a new context. The caller closes
// the returned context.
func (c *Compositor) Compose(img heatmap.ExportImage) (*gg.Context, error) {
	src, err := ToNRGBA(img)
	if err != nil {
		return nil, err
	}

	w, h := int(img.Width), int(img.Height)
	footer := 0
	if c.opts.footer {
		footer = FooterHeight(h)
	}

	dc := gg.NewContext(w, h+footer)
	dc.ClearWithColor(gg.White)
	dc.DrawImage(gg.ImageBufFromImage(src), 0, 0)
	if footer > 0 {
		if err := c.drawFooter(dc, w, h, footer, img.MaxWeight); err != nil {
			_ = dc.Close()
			return nil, err
		}
	}
	return dc, nil
}

// FooterHeight returns the height of the legend band under an export of
// the given height.
func FooterHeight(height int) int {
	return max(minFooter, min(maxFooter, height/12))
}

// LegendBar returns the rectangle of the ramp bar in a footer of height
// footer drawn under a w×h export. ok is false when the image is too
// narrow for a legend.
func LegendBar(w, h, footer int) (x, y, width, height float64, ok bool) {
	margin := float64(footer) / 2
	width = float64(w) - 2*margin
	if width < float64(footer) {
		return 0, 0, 0, 0, false
	}
	return margin, float64(h) + float64(footer)*barTop, width, float64(footer) * barHeight, true
}

func (c *Compositor) drawFooter(dc *gg.Context, w, h, footer int, maxWeight float32) error {
	x, y, bw, bh, ok := LegendBar(w, h, footer)
	if !ok {
		return nil
	}

	dc.SetFillBrush(c.opts.ramp.Brush(x, 0, x+bw, 0))
	dc.DrawRectangle(x, y, bw, bh)
	if err := dc.Fill(); err != nil {
		return fmt.Errorf("export: legend: %w", err)
	}

	dc.SetRGB(0.2, 0.2, 0.2)
	dc.SetLineWidth(1)
	dc.DrawRectangle(x, y, bw, bh)
	if err := dc.Stroke(); err != nil {
		return fmt.Errorf("export: legend outline: %w", err)
	}

	// Anchor y 0 puts the top of the text at the given row.
	f := float64(footer)
	dc.SetFont(c.font.Face(f * textSize))
	labelY := float64(h) + f*labelTop
	dc.DrawStringAnchored(c.FormatWeight(0), x, labelY, 0, 0)
	dc.DrawStringAnchored(c.FormatWeight(maxWeight/2), x+bw/2, labelY, 0.5, 0)
	dc.DrawStringAnchored(c.FormatWeight(maxWeight), x+bw, labelY, 1, 0)
	if c.opts.title != "" {
		dc.DrawStringAnchored(c.opts.title, x, float64(h)+f*titleTop, 0, 0)
	}
	return nil
}

// FormatWeight formats a legend value in the compositor's locale.
func (c *Compositor) FormatWeight(v float32) string {
	if v == float32(math.Trunc(float64(v))) {
		return c.printer.Sprintf("%d", int64(v))
	}
	return c.printer.Sprintf("%.1f", v)
}

// ToNRGBA converts float export pixels to an 8-bit image.
func ToNRGBA(img heatmap.ExportImage) (*image.NRGBA, error) {
	w, h := int(img.Width), int(img.Height)
	if len(img.Pixels) != w*h*4 {
		return nil, fmt.Errorf("%w: %d values for %dx%d", ErrPixels, len(img.Pixels), w, h)
	}
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 4
			out.SetNRGBA(x, y, color.NRGBA{
				R: unorm(img.Pixels[i]),
				G: unorm(img.Pixels[i+1]),
				B: unorm(img.Pixels[i+2]),
				A: unorm(img.Pixels[i+3]),
			})
		}
	}
	return out, nil
}

func unorm(v float32) uint8 {
	if v != v || v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}
