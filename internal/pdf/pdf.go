// Package pdf is the document engine behind the stamper, built on pdfcpu.
//
// It opens an existing PDF, exposes its AcroForm field table and widget
// placements, mutates field values and appearances, collects overlay content
// per page, flattens the form and serializes the result.
//
// Types:
//   - Document: one open PDF; not safe for concurrent use.
//   - Overlay: drawing surface painted above a page's existing content.
//
// Expected outputs:
// - Field placements are reported in document order with 1-based page numbers
// - Flatten draws every widget's normal appearance into its page and drops the AcroForm
package pdf

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"go-pdfstamper/internal/layout"
)

var (
	// ErrFieldNotFound is returned when a field name is not in the field table.
	ErrFieldNotFound = errors.New("field not found")
	// ErrFieldType is returned when an operation does not apply to the field's type.
	ErrFieldType = errors.New("operation not supported for field type")
	// ErrUnknownFont is returned for fonts outside the standard 14.
	ErrUnknownFont = errors.New("unknown font")
	// ErrFlattened is returned when the form was already flattened.
	ErrFlattened = errors.New("document already flattened")
)

// Options controls how a template is opened.
type Options struct {
	// Password is used as user and owner password for encrypted templates.
	Password string
}

// Document is an open PDF together with its indexed form.
type Document struct {
	ctx *model.Context

	fields []*Field
	byName map[string]*Field

	// annotation object number -> page number
	annotPage map[int]int
	// page object number -> page number
	pageNr map[int]int

	wrapped   map[int]bool
	resCount  int
	flattened bool
}

// Open reads a PDF and indexes its form fields.
func Open(rs io.ReadSeeker, opts Options) (*Document, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if opts.Password != "" {
		conf.UserPW = opts.Password
		conf.OwnerPW = opts.Password
	}

	ctx, err := api.ReadContext(rs, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("failed to ensure page count: %w", err)
	}

	d := &Document{
		ctx:       ctx,
		byName:    make(map[string]*Field),
		annotPage: make(map[int]int),
		pageNr:    make(map[int]int),
		wrapped:   make(map[int]bool),
	}
	if err := d.indexPages(); err != nil {
		return nil, err
	}
	if err := d.loadFields(); err != nil {
		return nil, err
	}
	return d, nil
}

// OpenFile opens the PDF at path.
func OpenFile(path string, opts Options) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()
	return Open(f, opts)
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int {
	return d.ctx.PageCount
}

// Write serializes the document.
func (d *Document) Write(w io.Writer) error {
	if err := api.WriteContext(d.ctx, w); err != nil {
		return fmt.Errorf("failed to write PDF: %w", err)
	}
	return nil
}

// indexPages maps page objects and their annotations to page numbers.
func (d *Document) indexPages() error {
	for p := 1; p <= d.ctx.PageCount; p++ {
		pageDict, pageRef, _, err := d.ctx.PageDict(p, false)
		if err != nil {
			return fmt.Errorf("failed to read page %d: %w", p, err)
		}
		if pageRef != nil {
			d.pageNr[pageRef.ObjectNumber.Value()] = p
		}
		obj, found := pageDict.Find("Annots")
		if !found {
			continue
		}
		annots, err := d.ctx.DereferenceArray(obj)
		if err != nil {
			continue
		}
		for _, a := range annots {
			if nr := objNr(a); nr > 0 {
				d.annotPage[nr] = p
			}
		}
	}
	return nil
}

func (d *Document) checkPage(page int) error {
	if page < 1 || page > d.ctx.PageCount {
		return fmt.Errorf("invalid page number %d (document has %d pages)", page, d.ctx.PageCount)
	}
	return nil
}

// FieldPositions returns the placements of every widget of field in
// document order. Unknown fields yield nil.
func (d *Document) FieldPositions(name string) []layout.Placement {
	f, ok := d.byName[name]
	if !ok {
		return nil
	}
	var out []layout.Placement
	for _, w := range f.widgets {
		if w.page == 0 {
			continue
		}
		out = append(out, layout.Placement{Page: w.page, Rect: w.rect})
	}
	return out
}
