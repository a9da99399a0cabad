// Package media prepares uploaded images for storage: it sniffs the real
// content type, downscales oversized images and re-encodes them.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedFormat is returned for content that is not an accepted image type.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// MaxUploadSize bounds how much of an upload is read into memory.
const MaxUploadSize = 20 << 20

// MaxPixels bounds the decoded area of an image. Highly compressible
// uploads can stay under MaxUploadSize and still decode to gigabytes.
const MaxPixels = 40_000_000

var accepted = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Image is a processed image ready for upload.
type Image struct {
	Data        []byte
	ContentType string
	Ext         string
	Width       int
	Height      int
}

// Processor compresses images to a bounded size.
type Processor struct {
	maxDimension int
	quality      int
}

// NewProcessor creates a Processor. maxDimension bounds the longest side in
// pixels (0 disables resizing); quality is the JPEG quality (1-100).
func NewProcessor(maxDimension, quality int) *Processor {
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	return &Processor{maxDimension: maxDimension, quality: quality}
}

// Process reads an image from r and returns the compressed result. PNG
// sources stay PNG so transparency survives; everything else becomes JPEG.
func (p *Processor) Process(r io.Reader) (*Image, error) {
	raw, err := io.ReadAll(io.LimitReader(r, MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(raw) > MaxUploadSize {
		return nil, fmt.Errorf("image exceeds %d bytes: %w", MaxUploadSize, ErrUnsupportedFormat)
	}

	detected := mimetype.Detect(raw)
	if !accepted[detected.String()] {
		return nil, fmt.Errorf("%s: %w", detected.String(), ErrUnsupportedFormat)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", detected.String(), err)
	}
	if cfg.Width*cfg.Height > MaxPixels {
		return nil, fmt.Errorf("image is %dx%d pixels: %w", cfg.Width, cfg.Height, ErrUnsupportedFormat)
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", detected.String(), err)
	}

	img := p.resize(src)

	var out bytes.Buffer
	if detected.Is("image/png") {
		if err := png.Encode(&out, img); err != nil {
			return nil, fmt.Errorf("failed to encode png: %w", err)
		}
	} else {
		if err := jpeg.Encode(&out, flatten(img), &jpeg.Options{Quality: p.quality}); err != nil {
			return nil, fmt.Errorf("failed to encode jpeg: %w", err)
		}
	}

	result := mimetype.Detect(out.Bytes())
	b := img.Bounds()
	return &Image{
		Data:        out.Bytes(),
		ContentType: result.String(),
		Ext:         result.Extension(),
		Width:       b.Dx(),
		Height:      b.Dy(),
	}, nil
}

func (p *Processor) resize(src image.Image) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if p.maxDimension <= 0 || (w <= p.maxDimension && h <= p.maxDimension) {
		return src
	}

	var nw, nh int
	if w >= h {
		nw = p.maxDimension
		nh = max(1, h*p.maxDimension/w)
	} else {
		nh = p.maxDimension
		nw = max(1, w*p.maxDimension/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

// flatten composites img onto white so transparent areas do not turn black in JPEG.
func flatten(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}
