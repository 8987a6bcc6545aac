package pdf

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// Flatten draws the normal appearance of every visible widget into its
// page, removes the widget annotations and drops the AcroForm. Fields are
// no longer addressable afterwards.
func (d *Document) Flatten() error {
	if d.flattened {
		return ErrFlattened
	}

	for _, f := range d.fields {
		if !f.Type.AcceptsText() {
			continue
		}
		value, _ := d.text(f.dict, "V")
		for _, w := range f.widgets {
			if d.normalAppearance(w.dict) != nil || value == "" {
				continue
			}
			if err := d.generateTextAppearance(f, w, value); err != nil {
				return fmt.Errorf("failed to generate appearance for %q: %w", f.Name, err)
			}
		}
	}

	for p := 1; p <= d.ctx.PageCount; p++ {
		if err := d.flattenPage(p); err != nil {
			return fmt.Errorf("failed to flatten page %d: %w", p, err)
		}
	}

	cat, err := d.ctx.Catalog()
	if err != nil {
		return fmt.Errorf("failed to get catalog: %w", err)
	}
	delete(cat, "AcroForm")

	d.fields = nil
	d.byName = make(map[string]*Field)
	d.flattened = true
	return nil
}

func (d *Document) flattenPage(page int) error {
	pageDict, _, _, err := d.ctx.PageDict(page, false)
	if err != nil {
		return err
	}
	o, found := pageDict.Find("Annots")
	if !found {
		return nil
	}
	annots, err := d.ctx.DereferenceArray(o)
	if err != nil {
		return nil
	}

	var (
		keep     types.Array
		buf      bytes.Buffer
		xobjects = types.Dict{}
		removed  bool
	)
	for _, a := range annots {
		ad := d.dict(a)
		if ad == nil || d.name(ad, "Subtype") != "Widget" {
			keep = append(keep, a)
			continue
		}
		removed = true
		if d.integer(ad, "F")&annotHidden != 0 {
			continue
		}
		ap := d.normalAppearance(ad)
		if ap == nil {
			continue
		}
		rect, ok := d.rect(mustFind(ad, "Rect"))
		if !ok || rect.Empty() {
			continue
		}
		sd, ok := d.stream(ap)
		if !ok {
			continue
		}
		bbox, ok := d.rect(mustFind(sd.Dict, "BBox"))
		if !ok || bbox.Empty() {
			continue
		}
		if _, found := sd.Dict.Find("Subtype"); !found {
			sd.Dict["Type"] = types.Name("XObject")
			sd.Dict["Subtype"] = types.Name("Form")
		}

		sx, sy := rect.Width()/bbox.Width(), rect.Height()/bbox.Height()
		tx, ty := rect.Left-bbox.Left*sx, rect.Bottom-bbox.Bottom*sy
		name := d.resourceName("Flat")
		xobjects[name] = ap
		fmt.Fprintf(&buf, "q %.4f 0 0 %.4f %.4f %.4f cm /%s Do Q\n", sx, sy, tx, ty, name)
	}
	if !removed {
		return nil
	}

	if len(keep) > 0 {
		pageDict["Annots"] = keep
	} else {
		delete(pageDict, "Annots")
	}
	if buf.Len() == 0 {
		return nil
	}
	return d.appendContent(page, buf.Bytes(), xobjects)
}

// normalAppearance returns the indirect reference of the widget's normal
// appearance stream, resolving the AS state for buttons.
func (d *Document) normalAppearance(wd types.Dict) types.Object {
	apObj, found := wd.Find("AP")
	if !found {
		return nil
	}
	ap := d.dict(apObj)
	if ap == nil {
		return nil
	}
	n, found := ap.Find("N")
	if !found {
		return nil
	}
	if _, ok := d.stream(n); ok {
		return n
	}
	states := d.dict(n)
	if states == nil {
		return nil
	}
	as := d.name(wd, "AS")
	if as == "" {
		return nil
	}
	s, found := states.Find(as)
	if !found {
		return nil
	}
	if _, ok := d.stream(s); !ok {
		return nil
	}
	return s
}
