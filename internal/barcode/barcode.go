// Package barcode turns a value into a stampable barcode image.
//
// Symbology names are resolved when the Encoder is built, together with the
// option map, so configuration mistakes surface before anything is encoded.
//
// Supported symbologies:
//   - PDF417, Datamatrix, QR, Code128, Code39, Aztec
//
// Every symbology yields a layout.Content whose natural size is its pixel
// size; callers aspect-fit it into a field rectangle.
package barcode

import (
	"fmt"
	"image"
	"image/color"

	bc "github.com/boombuler/barcode"
	"github.com/boombuler/barcode/aztec"
	"github.com/boombuler/barcode/code128"
	"github.com/boombuler/barcode/code39"
	"github.com/boombuler/barcode/datamatrix"
	"github.com/boombuler/barcode/pdf417"
	"github.com/skip2/go-qrcode"
	"golang.org/x/image/draw"

	"go-pdfstamper/internal/layout"
)

// Symbology names a barcode encoding scheme.
type Symbology string

const (
	PDF417     Symbology = "PDF417"
	Datamatrix Symbology = "Datamatrix"
	QR         Symbology = "QR"
	Code128    Symbology = "Code128"
	Code39     Symbology = "Code39"
	Aztec      Symbology = "Aztec"
)

var symbologyNames = map[string]Symbology{
	"pdf417":     PDF417,
	"datamatrix": Datamatrix,
	"qr":         QR,
	"qrcode":     QR,
	"code128":    Code128,
	"code39":     Code39,
	"aztec":      Aztec,
}

// ParseSymbology resolves a symbology name, ignoring case, spaces and dashes.
func ParseSymbology(name string) (Symbology, error) {
	s, ok := symbologyNames[normalizeKey(name)]
	if !ok {
		return "", &ConfigError{Symbology: name, Reason: "unsupported symbology"}
	}
	return s, nil
}

// Symbologies returns the supported symbologies.
func Symbologies() []Symbology {
	return []Symbology{PDF417, Datamatrix, QR, Code128, Code39, Aztec}
}

// Encoder encodes values with one symbology and a fixed configuration.
type Encoder struct {
	symbology Symbology
	opts      Options
}

// NewEncoder validates symbology and options. Unknown names or keys fail
// with an error matching ErrConfiguration.
func NewEncoder(symbology string, options map[string]any) (*Encoder, error) {
	sym, err := ParseSymbology(symbology)
	if err != nil {
		return nil, err
	}
	opts, err := ParseOptions(sym, options)
	if err != nil {
		return nil, err
	}
	return &Encoder{symbology: sym, opts: opts}, nil
}

func (e *Encoder) Options() Options {
	return e.opts
}

// Encode renders value. It is a pure function of the encoder configuration.
func (e *Encoder) Encode(value string) (layout.Content, error) {
	var (
		img image.Image
		err error
	)
	switch e.symbology {
	case PDF417:
		img, err = e.encodePDF417(value)
	case Datamatrix:
		img, err = e.encodeDatamatrix(value)
	case QR:
		img, err = e.encodeQR(value)
	case Code128, Code39:
		img, err = e.encodeLinear(value)
	case Aztec:
		img, err = e.encodeAztec(value)
	default:
		err = &ConfigError{Symbology: string(e.symbology), Reason: "unsupported symbology"}
	}
	if err == nil {
		b := img.Bounds()
		err = checkRaster(e.symbology, b.Dx(), b.Dy())
	}
	if err != nil {
		return layout.Content{}, fmt.Errorf("encode %s: %w", e.symbology, err)
	}
	return layout.NewContent(img), nil
}

func (e *Encoder) encodePDF417(value string) (image.Image, error) {
	code, err := pdf417.Encode(value, byte(e.opts.PDF417.ErrorLevel))
	if err != nil {
		return nil, err
	}
	code, err = e.resize(code)
	if err != nil {
		return nil, err
	}

	ratio := e.opts.PDF417.AspectRatio
	b := code.Bounds()
	if ratio <= 0 {
		return code, nil
	}
	want := int(float64(b.Dx())*ratio + 0.5)
	if want <= b.Dy() {
		return code, nil
	}
	if err := checkRaster(e.symbology, b.Dx(), want); err != nil {
		return nil, err
	}
	return stretch(code, b.Dx(), want), nil
}

// encodeDatamatrix draws the symbol into an offscreen template sized to
// the module grid. Viewers blur the raw one-pixel-per-module raster, the
// template keeps module edges hard.
func (e *Encoder) encodeDatamatrix(value string) (image.Image, error) {
	code, err := datamatrix.Encode(value)
	if err != nil {
		return nil, err
	}
	code, err = e.resize(code)
	if err != nil {
		return nil, err
	}

	b := code.Bounds()
	w := b.Dx() * e.opts.Datamatrix.ModuleWidth
	h := b.Dy() * e.opts.Datamatrix.ModuleHeight
	if err := checkRaster(e.symbology, w, h); err != nil {
		return nil, err
	}
	return stretch(code, w, h), nil
}

func (e *Encoder) encodeQR(value string) (image.Image, error) {
	q, err := qrcode.New(value, e.opts.QR.RecoveryLevel)
	if err != nil {
		return nil, err
	}
	q.DisableBorder = !e.opts.QR.Border

	size := max(e.opts.Width, e.opts.Height)
	if size == 0 {
		size = -1
	}
	if err := checkRaster(e.symbology, size, size); err != nil {
		return nil, err
	}
	return q.Image(size), nil
}

func (e *Encoder) encodeLinear(value string) (image.Image, error) {
	var (
		code bc.Barcode
		err  error
	)
	if e.symbology == Code39 {
		code, err = code39.Encode(value, e.opts.Linear.Checksum, e.opts.Linear.FullASCII)
	} else {
		code, err = code128.Encode(value)
	}
	if err != nil {
		return nil, err
	}

	// Linear symbols come back one pixel tall.
	w, h := e.opts.Width, e.opts.Height
	if w == 0 {
		w = code.Bounds().Dx()
	}
	if h == 0 {
		h = e.opts.Linear.BarHeight
	}
	if err := checkRaster(e.symbology, w, h); err != nil {
		return nil, err
	}
	return bc.Scale(code, w, h)
}

func (e *Encoder) encodeAztec(value string) (image.Image, error) {
	code, err := aztec.Encode([]byte(value), e.opts.Aztec.MinECCPercent, e.opts.Aztec.Layers)
	if err != nil {
		return nil, err
	}
	return e.resize(code)
}

// resize forwards an explicit height/width to the encoder's own scaler.
func (e *Encoder) resize(code bc.Barcode) (bc.Barcode, error) {
	if e.opts.Width == 0 && e.opts.Height == 0 {
		return code, nil
	}
	b := code.Bounds()
	w, h := e.opts.Width, e.opts.Height
	if w == 0 {
		w = b.Dx()
	}
	if h == 0 {
		h = b.Dy()
	}
	if err := checkRaster(e.symbology, w, h); err != nil {
		return nil, err
	}
	return bc.Scale(code, w, h)
}

// stretch renders src onto a white w x h grayscale canvas with
// nearest-neighbour sampling.
func stretch(src image.Image, w, h int) image.Image {
	dst := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}

func (s Symbology) String() string {
	return string(s)
}

