package stamper

import (
	"errors"
	"fmt"
	"image"
	"io"

	"go-pdfstamper/internal/layout"
	"go-pdfstamper/internal/pdf"
)

type fakeField struct {
	typ        pdf.FieldType
	placements []layout.Placement
	states     []string
	value      string
	state      string
	font       string
}

type fakeOverlay struct {
	doc  *fakeDocument
	page int
	ops  []string
}

func (o *fakeOverlay) AddImage(img image.Image, x, y, w, h float64) error {
	o.ops = append(o.ops, fmt.Sprintf("image %dx%d at %.2f,%.2f size %.2fx%.2f",
		img.Bounds().Dx(), img.Bounds().Dy(), x, y, w, h))
	return nil
}

func (o *fakeOverlay) Circle(cx, cy, r float64) {
	o.ops = append(o.ops, fmt.Sprintf("circle %g %g %g", cx, cy, r))
}

func (o *fakeOverlay) Ellipse(x1, y1, x2, y2 float64) {
	o.ops = append(o.ops, fmt.Sprintf("ellipse %g %g %g %g", x1, y1, x2, y2))
}

func (o *fakeOverlay) Rectangle(x1, y1, x2, y2 float64) {
	o.ops = append(o.ops, fmt.Sprintf("rectangle %g %g %g %g", x1, y1, x2, y2))
}

func (o *fakeOverlay) Commit() error {
	o.doc.events = append(o.doc.events, fmt.Sprintf("commit %d", o.page))
	return nil
}

type fakeDocument struct {
	pages    int
	order    []string
	fields   map[string]*fakeField
	overlays map[int]*fakeOverlay

	newOverlayCalls int
	metadata        map[string]string
	xmpReset        bool
	events          []string
	flattenErr      error
}

func newFakeDocument() *fakeDocument {
	d := &fakeDocument{
		pages:    3,
		fields:   make(map[string]*fakeField),
		overlays: make(map[int]*fakeOverlay),
		metadata: make(map[string]string),
	}
	d.add("first_name", &fakeField{typ: pdf.FieldText, placements: []layout.Placement{
		{Page: 1, Rect: layout.NewRectangle(100, 700, 300, 720)},
	}})
	d.add("flavor", &fakeField{typ: pdf.FieldChoice, placements: []layout.Placement{
		{Page: 2, Rect: layout.NewRectangle(100, 700, 300, 720)},
	}})
	d.add("hungry", &fakeField{typ: pdf.FieldCheckbox, states: []string{"Off", "Yes"}, placements: []layout.Placement{
		{Page: 1, Rect: layout.NewRectangle(100, 600, 120, 620)},
	}})
	d.add("off_only", &fakeField{typ: pdf.FieldCheckbox, states: []string{"Off"}})
	d.add("multi", &fakeField{typ: pdf.FieldCheckbox, states: []string{"Off", "b", "a"}})
	d.add("photo", &fakeField{typ: pdf.FieldButton, placements: []layout.Placement{
		{Page: 1, Rect: layout.NewRectangle(300, 400, 500, 600)},
		{Page: 2, Rect: layout.NewRectangle(0, 0, 10, 10)},
	}})
	d.add("flat", &fakeField{typ: pdf.FieldButton, placements: []layout.Placement{
		{Page: 1, Rect: layout.NewRectangle(300, 400, 500, 400)},
	}})
	d.add("APPOINTMENT_DATA", &fakeField{typ: pdf.FieldText, placements: []layout.Placement{
		{Page: 1, Rect: layout.NewRectangle(400, 50, 550, 100)},
		{Page: 3, Rect: layout.NewRectangle(50, 50, 250, 150)},
	}})
	return d
}

func (d *fakeDocument) add(name string, f *fakeField) {
	d.order = append(d.order, name)
	d.fields[name] = f
}

func (d *fakeDocument) field(name string) (*fakeField, error) {
	f, ok := d.fields[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", pdf.ErrFieldNotFound, name)
	}
	return f, nil
}

func (d *fakeDocument) PageCount() int { return d.pages }

func (d *fakeDocument) FieldNames() []string { return append([]string(nil), d.order...) }

func (d *fakeDocument) FieldPositions(name string) []layout.Placement {
	f, ok := d.fields[name]
	if !ok {
		return nil
	}
	return append([]layout.Placement(nil), f.placements...)
}

func (d *fakeDocument) FieldType(name string) (pdf.FieldType, error) {
	f, err := d.field(name)
	if err != nil {
		return pdf.FieldUnknown, err
	}
	return f.typ, nil
}

func (d *fakeDocument) AppearanceStates(name string) ([]string, error) {
	f, err := d.field(name)
	if err != nil {
		return nil, err
	}
	return f.states, nil
}

func (d *fakeDocument) SetFieldValue(name, value string) error {
	f, err := d.field(name)
	if err != nil {
		return err
	}
	f.value = value
	return nil
}

func (d *fakeDocument) SetFieldAppearance(name, state string) error {
	f, err := d.field(name)
	if err != nil {
		return err
	}
	f.state = state
	return nil
}

func (d *fakeDocument) SetFieldFont(name, font string) error {
	f, err := d.field(name)
	if err != nil {
		return err
	}
	f.font = font
	return nil
}

func (d *fakeDocument) NewOverlay(page int) (Overlay, error) {
	if page < 1 || page > d.pages {
		return nil, errors.New("invalid page")
	}
	d.newOverlayCalls++
	o := &fakeOverlay{doc: d, page: page}
	d.overlays[page] = o
	return o, nil
}

func (d *fakeDocument) SetMetadata(entries map[string]string) error {
	for k, v := range entries {
		d.metadata[k] = v
	}
	return nil
}

func (d *fakeDocument) ResetXMPMetadata() error {
	d.xmpReset = true
	return nil
}

func (d *fakeDocument) Flatten() error {
	d.events = append(d.events, "flatten")
	return d.flattenErr
}

func (d *fakeDocument) Write(w io.Writer) error {
	d.events = append(d.events, "write")
	_, err := io.WriteString(w, "%PDF-fake")
	return err
}

func openFake(d *fakeDocument) (*Session, error) {
	return Open(nil, WithOpener(func(io.ReadSeeker) (Document, error) { return d, nil }))
}
