package stamper

import (
	"image"
	"io"

	"go-pdfstamper/internal/layout"
	"go-pdfstamper/internal/pdf"
)

// Document is the document engine a Session drives.
type Document interface {
	PageCount() int
	FieldNames() []string
	FieldPositions(name string) []layout.Placement
	FieldType(name string) (pdf.FieldType, error)
	AppearanceStates(name string) ([]string, error)
	SetFieldValue(name, value string) error
	SetFieldAppearance(name, state string) error
	SetFieldFont(name, font string) error
	NewOverlay(page int) (Overlay, error)
	SetMetadata(entries map[string]string) error
	ResetXMPMetadata() error
	Flatten() error
	Write(w io.Writer) error
}

// Overlay is the drawing surface above one page. Content drawn later
// paints above content drawn earlier.
type Overlay interface {
	AddImage(img image.Image, x, y, w, h float64) error
	Circle(cx, cy, r float64)
	Ellipse(x1, y1, x2, y2 float64)
	Rectangle(x1, y1, x2, y2 float64)
	Commit() error
}

// Opener parses a template into a Document.
type Opener func(r io.ReadSeeker) (Document, error)

// pdfDocument adapts *pdf.Document to Document.
type pdfDocument struct {
	*pdf.Document
}

func (d pdfDocument) NewOverlay(page int) (Overlay, error) {
	o, err := d.Document.NewOverlay(page)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// PDFOpener opens templates with the pdfcpu backed engine.
func PDFOpener(opts pdf.Options) Opener {
	return func(r io.ReadSeeker) (Document, error) {
		doc, err := pdf.Open(r, opts)
		if err != nil {
			return nil, err
		}
		return pdfDocument{doc}, nil
	}
}
