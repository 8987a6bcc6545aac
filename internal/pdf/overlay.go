package pdf

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// kappa is the Bezier control point distance for a quarter circle.
const kappa = 0.5522847498

// Overlay collects content painted above one page's existing content.
// Nothing reaches the page until Commit.
type Overlay struct {
	doc      *Document
	page     int
	buf      bytes.Buffer
	xobjects types.Dict
}

// NewOverlay returns an empty overlay for page.
func (d *Document) NewOverlay(page int) (*Overlay, error) {
	if err := d.checkPage(page); err != nil {
		return nil, err
	}
	return &Overlay{doc: d, page: page, xobjects: types.Dict{}}, nil
}

// Empty reports whether nothing was drawn since the last commit.
func (o *Overlay) Empty() bool { return o.buf.Len() == 0 }

// AddImage draws img scaled to w x h with its lower-left corner at (x, y).
func (o *Overlay) AddImage(img image.Image, x, y, w, h float64) error {
	ref, err := o.doc.imageXObject(img)
	if err != nil {
		return fmt.Errorf("failed to embed image: %w", err)
	}
	name := o.doc.resourceName("Im")
	o.xobjects[name] = *ref
	fmt.Fprintf(&o.buf, "q %.4f 0 0 %.4f %.4f %.4f cm /%s Do Q\n", w, h, x, y, name)
	return nil
}

// Circle strokes a circle of radius r around (cx, cy).
func (o *Overlay) Circle(cx, cy, r float64) {
	o.ellipse(cx, cy, r, r)
}

// Ellipse strokes the ellipse inscribed in the box (x1, y1)-(x2, y2).
func (o *Overlay) Ellipse(x1, y1, x2, y2 float64) {
	o.ellipse((x1+x2)/2, (y1+y2)/2, abs(x2-x1)/2, abs(y2-y1)/2)
}

// Rectangle strokes the box (x1, y1)-(x2, y2).
func (o *Overlay) Rectangle(x1, y1, x2, y2 float64) {
	fmt.Fprintf(&o.buf, "q 0 G 1 w %.4f %.4f %.4f %.4f re S Q\n",
		min(x1, x2), min(y1, y2), abs(x2-x1), abs(y2-y1))
}

func (o *Overlay) ellipse(cx, cy, rx, ry float64) {
	kx, ky := rx*kappa, ry*kappa
	b := &o.buf
	b.WriteString("q 0 G 1 w\n")
	fmt.Fprintf(b, "%.4f %.4f m\n", cx+rx, cy)
	fmt.Fprintf(b, "%.4f %.4f %.4f %.4f %.4f %.4f c\n", cx+rx, cy+ky, cx+kx, cy+ry, cx, cy+ry)
	fmt.Fprintf(b, "%.4f %.4f %.4f %.4f %.4f %.4f c\n", cx-kx, cy+ry, cx-rx, cy+ky, cx-rx, cy)
	fmt.Fprintf(b, "%.4f %.4f %.4f %.4f %.4f %.4f c\n", cx-rx, cy-ky, cx-kx, cy-ry, cx, cy-ry)
	fmt.Fprintf(b, "%.4f %.4f %.4f %.4f %.4f %.4f c\n", cx+kx, cy-ry, cx+rx, cy-ky, cx+rx, cy)
	b.WriteString("S Q\n")
}

// Commit appends the collected content to the page and resets the overlay.
func (o *Overlay) Commit() error {
	if o.Empty() {
		return nil
	}
	if err := o.doc.appendContent(o.page, o.buf.Bytes(), o.xobjects); err != nil {
		return err
	}
	o.buf.Reset()
	o.xobjects = types.Dict{}
	return nil
}

// appendContent adds content as a new stream on top of page, registering
// xobjects in the page resources. The original content is isolated in a
// q/Q pair the first time.
func (d *Document) appendContent(page int, content []byte, xobjects types.Dict) error {
	pageDict, _, inh, err := d.ctx.PageDict(page, true)
	if err != nil {
		return fmt.Errorf("failed to read page %d: %w", page, err)
	}

	if len(xobjects) > 0 {
		xo := d.ownSubDict(d.resources(pageDict, inh), "XObject")
		for k, v := range xobjects {
			xo[k] = v
		}
	}

	if err := d.wrapContents(page, pageDict); err != nil {
		return err
	}
	ref, err := d.newStream(content, nil)
	if err != nil {
		return err
	}
	contents, _ := pageDict.Find("Contents")
	arr, _ := contents.(types.Array)
	pageDict["Contents"] = append(arr, *ref)
	return nil
}

func (d *Document) wrapContents(page int, pageDict types.Dict) error {
	if d.wrapped[page] {
		return nil
	}
	var orig types.Array
	if o, found := pageDict.Find("Contents"); found {
		if _, ok := d.stream(o); ok {
			orig = types.Array{o}
		} else if arr, err := d.ctx.DereferenceArray(o); err == nil {
			orig = arr
		}
	}

	arr := types.Array{}
	if len(orig) > 0 {
		push, err := d.newStream([]byte("q\n"), nil)
		if err != nil {
			return err
		}
		pop, err := d.newStream([]byte("\nQ\n"), nil)
		if err != nil {
			return err
		}
		arr = append(arr, *push)
		arr = append(arr, orig...)
		arr = append(arr, *pop)
	}
	pageDict["Contents"] = arr
	d.wrapped[page] = true
	return nil
}

// imageXObject embeds img as an image XObject. Gray images stay
// DeviceGray; everything else becomes DeviceRGB with a soft mask when any
// pixel is translucent.
func (d *Document) imageXObject(img image.Image) (*types.IndirectRef, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("empty image")
	}

	entries := types.Dict{
		"Type":             types.Name("XObject"),
		"Subtype":          types.Name("Image"),
		"Width":            types.Integer(w),
		"Height":           types.Integer(h),
		"BitsPerComponent": types.Integer(8),
	}

	if gray, ok := img.(*image.Gray); ok {
		data := make([]byte, 0, w*h)
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			off := gray.PixOffset(bounds.Min.X, y)
			data = append(data, gray.Pix[off:off+w]...)
		}
		entries["ColorSpace"] = types.Name("DeviceGray")
		return d.newStream(data, entries)
	}

	rgb := make([]byte, 0, w*h*3)
	alpha := make([]byte, 0, w*h)
	translucent := false
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			rgb = append(rgb, c.R, c.G, c.B)
			alpha = append(alpha, c.A)
			if c.A != 0xff {
				translucent = true
			}
		}
	}
	entries["ColorSpace"] = types.Name("DeviceRGB")

	if translucent {
		mask, err := d.newStream(alpha, types.Dict{
			"Type":             types.Name("XObject"),
			"Subtype":          types.Name("Image"),
			"Width":            types.Integer(w),
			"Height":           types.Integer(h),
			"BitsPerComponent": types.Integer(8),
			"ColorSpace":       types.Name("DeviceGray"),
		})
		if err != nil {
			return nil, err
		}
		entries["SMask"] = *mask
	}
	return d.newStream(rgb, entries)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
