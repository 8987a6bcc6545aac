// Package stamper fills AcroForm templates and stamps images, barcodes and
// shapes at the location of named fields.
//
// Field table operations (Text, SetFont) fail loudly on absent fields.
// Placement operations (Image, Barcode, Datamatrix) silently skip fields
// without placements so templates can evolve independently of callers.
package stamper

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"sort"

	"github.com/spf13/cast"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"go-pdfstamper/internal/barcode"
	"go-pdfstamper/internal/layout"
	"go-pdfstamper/internal/pdf"
)

// State is the lifecycle of a Session.
type State int

const (
	StateOpened State = iota
	StateFlattening
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateOpened:
		return "opened"
	case StateFlattening:
		return "flattening"
	case StateFinalized:
		return "finalized"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// PlaceOptions adjusts where an image lands.
type PlaceOptions struct {
	// Page overrides the page of the field's placement when > 0.
	Page int
	// Anchor positions the scaled image inside the placement.
	Anchor layout.Anchor
}

type options struct {
	password string
	opener   Opener
}

// Option configures Open.
type Option func(*options)

// WithPassword sets the password for encrypted templates.
func WithPassword(pw string) Option {
	return func(o *options) { o.password = pw }
}

// WithOpener replaces the document engine.
func WithOpener(fn Opener) Option {
	return func(o *options) { o.opener = fn }
}

// Session is one stamping pass over a template. It is not safe for
// concurrent use; independent sessions share nothing.
type Session struct {
	doc   Document
	state State

	overlays map[int]Overlay

	font       string
	valueBound bool
}

// Open parses the template read from r.
func Open(r io.ReadSeeker, opts ...Option) (*Session, error) {
	o := options{}
	for _, fn := range opts {
		fn(&o)
	}
	if o.opener == nil {
		o.opener = PDFOpener(pdf.Options{Password: o.password})
	}

	doc, err := o.opener(r)
	if err != nil {
		return nil, opError("open", "", fmt.Errorf("%w: %w", ErrTemplateOpen, err))
	}
	return &Session{
		doc:      doc,
		state:    StateOpened,
		overlays: make(map[int]Overlay),
	}, nil
}

// OpenBytes parses the template in b.
func OpenBytes(b []byte, opts ...Option) (*Session, error) {
	return Open(bytes.NewReader(b), opts...)
}

// OpenFile parses the template at path.
func OpenFile(path string, opts ...Option) (*Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, opError("open", "", fmt.Errorf("%w: %w", ErrTemplateOpen, err))
	}
	defer f.Close()
	return Open(f, opts...)
}

// State returns the session state.
func (s *Session) State() State {
	return s.state
}

// PageCount returns the number of pages of the template.
func (s *Session) PageCount() int {
	return s.doc.PageCount()
}

// Font returns the font set with SetFont, if any.
func (s *Session) Font() string {
	return s.font
}

func (s *Session) checkOpen(op, field string) error {
	if s.state != StateOpened {
		return opError(op, field, ErrFinalized)
	}
	return nil
}

// Locate returns every widget placement of field in document order. An
// unknown field yields nil.
func (s *Session) Locate(field string) []layout.Placement {
	if s.state != StateOpened {
		return nil
	}
	return s.doc.FieldPositions(field)
}

// FieldNames returns the names in the field table.
func (s *Session) FieldNames() []string {
	if s.state != StateOpened {
		return nil
	}
	return s.doc.FieldNames()
}

// FieldInfo describes one field of the template.
type FieldInfo struct {
	Name       string             `json:"name"`
	Type       string             `json:"type"`
	Placements []layout.Placement `json:"placements"`
	States     []string           `json:"states,omitempty"`
}

// Fields describes every field of the template in document order.
func (s *Session) Fields() []FieldInfo {
	names := s.FieldNames()
	out := make([]FieldInfo, 0, len(names))
	for _, name := range names {
		t, _ := s.FieldType(name)
		out = append(out, FieldInfo{
			Name:       name,
			Type:       t.String(),
			Placements: s.doc.FieldPositions(name),
			States:     s.CheckboxStates(name),
		})
	}
	return out
}

// FieldType returns the type of field.
func (s *Session) FieldType(field string) (pdf.FieldType, error) {
	if err := s.checkOpen("field type", field); err != nil {
		return pdf.FieldUnknown, err
	}
	t, err := s.doc.FieldType(field)
	return t, opError("field type", field, err)
}

// Text binds value, converted to text, to a text or choice field.
func (s *Session) Text(field string, value any) error {
	const op = "text"
	if err := s.checkOpen(op, field); err != nil {
		return err
	}
	t, err := s.doc.FieldType(field)
	if err != nil {
		return opError(op, field, err)
	}
	if !t.AcceptsText() {
		return opError(op, field, fmt.Errorf("%w: %s field", ErrFieldTypeMismatch, t))
	}
	if err := s.doc.SetFieldValue(field, stringify(value)); err != nil {
		return opError(op, field, err)
	}
	s.valueBound = true
	return nil
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	return fmt.Sprint(v)
}

// Checkbox checks a checkbox field by selecting its first on-state in
// sorted order. Fields that are absent, not checkboxes or have no on-state
// are left alone.
func (s *Session) Checkbox(field string) error {
	const op = "checkbox"
	if err := s.checkOpen(op, field); err != nil {
		return err
	}
	states := s.CheckboxStates(field)
	for _, st := range states {
		if st == pdf.OffState {
			continue
		}
		if err := s.doc.SetFieldAppearance(field, st); err != nil {
			return opError(op, field, err)
		}
		s.valueBound = true
		return nil
	}
	return nil
}

// CheckboxStates returns the sorted appearance states of a checkbox field,
// Off included. Other fields yield nil.
func (s *Session) CheckboxStates(field string) []string {
	if s.state != StateOpened {
		return nil
	}
	t, err := s.doc.FieldType(field)
	if err != nil || t != pdf.FieldCheckbox {
		return nil
	}
	states, err := s.doc.AppearanceStates(field)
	if err != nil {
		return nil
	}
	states = append([]string(nil), states...)
	sort.Strings(states)
	return states
}

// SetFont switches every field to font, one of the standard 14 fonts. It
// must be called before any field value is bound.
func (s *Session) SetFont(font string) error {
	const op = "set font"
	if err := s.checkOpen(op, ""); err != nil {
		return err
	}
	if s.valueBound {
		return opError(op, "", ErrFontAfterValue)
	}
	if !pdf.IsStandardFont(font) {
		return opError(op, "", fmt.Errorf("%w: unknown font %q", ErrConfiguration, font))
	}
	for _, name := range s.doc.FieldNames() {
		if err := s.doc.SetFieldFont(name, font); err != nil {
			if errors.Is(err, pdf.ErrUnknownFont) {
				err = fmt.Errorf("%w: %w", ErrConfiguration, err)
			}
			return opError(op, name, err)
		}
	}
	s.font = font
	return nil
}

// Image scales the image at path into the first placement of field. The
// image is anchored bottom-left unless opts say otherwise.
func (s *Session) Image(field, path string, opts PlaceOptions) error {
	return s.imageFile("image", field, path, opts)
}

// ImageCentered is Image with the scaled image centered in the placement.
func (s *Session) ImageCentered(field, path string, opts PlaceOptions) error {
	opts.Anchor = layout.AnchorCenter
	return s.imageFile("image centered", field, path, opts)
}

// ImageReader is Image for an already open image stream.
func (s *Session) ImageReader(field string, r io.Reader, opts PlaceOptions) error {
	const op = "image"
	if err := s.checkOpen(op, field); err != nil {
		return err
	}
	return opError(op, field, s.placeImage(field, r, opts))
}

func (s *Session) imageFile(op, field, path string, opts PlaceOptions) error {
	if err := s.checkOpen(op, field); err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return opError(op, field, fmt.Errorf("failed to open image: %w", err))
	}
	defer f.Close()
	return opError(op, field, s.placeImage(field, f, opts))
}

func (s *Session) placeImage(field string, r io.Reader, opts PlaceOptions) error {
	img, _, err := image.Decode(r)
	if err != nil {
		return fmt.Errorf("failed to decode image: %w", err)
	}
	placements := s.doc.FieldPositions(field)
	if len(placements) == 0 {
		return nil
	}
	p := placements[0]
	if opts.Page > 0 {
		p.Page = opts.Page
	}
	return s.place(p, layout.NewContent(img), opts.Anchor)
}

// Barcode encodes value and stamps one independently fitted symbol over
// every placement of field. Option "page" forces all symbols onto one page.
func (s *Session) Barcode(symbology, field, value string, options map[string]any) error {
	const op = "barcode"
	if err := s.checkOpen(op, field); err != nil {
		return err
	}
	enc, err := barcode.NewEncoder(symbology, options)
	if err != nil {
		return opError(op, field, err)
	}

	placements := s.doc.FieldPositions(field)
	if len(placements) == 0 {
		return nil
	}
	content, err := enc.Encode(value)
	if err != nil {
		return opError(op, field, err)
	}

	page := enc.Options().Page
	for _, p := range placements {
		if page > 0 {
			p.Page = page
		}
		if err := s.place(p, content, layout.AnchorBottomLeft); err != nil {
			return opError(op, field, err)
		}
	}
	return nil
}

// Datamatrix is Barcode with the Datamatrix symbology.
func (s *Session) Datamatrix(field, value string, options map[string]any) error {
	return s.Barcode(string(barcode.Datamatrix), field, value, options)
}

func (s *Session) place(p layout.Placement, content layout.Content, anchor layout.Anchor) error {
	fit := layout.FitContent(p.Rect, content.Width, content.Height, anchor)
	if fit.Empty() {
		return nil
	}
	o, err := s.overlay(p.Page)
	if err != nil {
		return err
	}
	return o.AddImage(content.Image, fit.X, fit.Y, fit.Width, fit.Height)
}

// overlay returns the cached overlay of page, creating it on first use.
func (s *Session) overlay(page int) (Overlay, error) {
	if o, ok := s.overlays[page]; ok {
		return o, nil
	}
	o, err := s.doc.NewOverlay(page)
	if err != nil {
		return nil, err
	}
	s.overlays[page] = o
	return o, nil
}

// Circle strokes a circle on page 1 in page coordinates.
func (s *Session) Circle(x, y, r float64) error {
	return s.shape("circle", func(o Overlay) { o.Circle(x, y, r) })
}

// Ellipse strokes the ellipse inscribed in the box at (x, y) of the given
// size on page 1.
func (s *Session) Ellipse(x, y, width, height float64) error {
	return s.shape("ellipse", func(o Overlay) { o.Ellipse(x, y, x+width, y+height) })
}

// Rectangle strokes a box at (x, y) of the given size on page 1.
func (s *Session) Rectangle(x, y, width, height float64) error {
	return s.shape("rectangle", func(o Overlay) { o.Rectangle(x, y, x+width, y+height) })
}

func (s *Session) shape(op string, draw func(Overlay)) error {
	if err := s.checkOpen(op, ""); err != nil {
		return err
	}
	o, err := s.overlay(1)
	if err != nil {
		return opError(op, "", err)
	}
	draw(o)
	return nil
}

// SetMetadata sets one entry of the document information dictionary.
// Producer, CreationDate and ModDate are stamped by the PDF writer when the
// session is finalized and cannot be overridden.
func (s *Session) SetMetadata(key, value string) error {
	const op = "set metadata"
	if err := s.checkOpen(op, ""); err != nil {
		return err
	}
	return opError(op, "", s.doc.SetMetadata(map[string]string{key: value}))
}

// ResetXMPMetadata drops the template's XMP metadata.
func (s *Session) ResetXMPMetadata() error {
	const op = "reset xmp metadata"
	if err := s.checkOpen(op, ""); err != nil {
		return err
	}
	return opError(op, "", s.doc.ResetXMPMetadata())
}

// finalize flattens the form, commits the overlays and serializes the
// document. It runs at most once; the session is finalized even when it
// fails.
func (s *Session) finalize(w io.Writer) error {
	const op = "finalize"
	if err := s.checkOpen(op, ""); err != nil {
		return err
	}
	s.state = StateFlattening
	defer func() { s.state = StateFinalized }()

	if err := s.doc.Flatten(); err != nil {
		return opError(op, "", err)
	}
	pages := make([]int, 0, len(s.overlays))
	for p := range s.overlays {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	for _, p := range pages {
		if err := s.overlays[p].Commit(); err != nil {
			return opError(op, "", fmt.Errorf("page %d: %w", p, err))
		}
	}
	s.overlays = nil
	return opError(op, "", s.doc.Write(w))
}

// Bytes finalizes the session and returns the output document.
func (s *Session) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := s.finalize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTo finalizes the session and writes the output document to w.
func (s *Session) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	err := s.finalize(cw)
	return cw.n, err
}

// SaveAs finalizes the session and writes the output document to path.
// Nothing is written when finalizing fails.
func (s *Session) SaveAs(path string) error {
	b, err := s.Bytes()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return opError("save", "", err)
	}
	return nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
