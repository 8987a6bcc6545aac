package pdf

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"go-pdfstamper/internal/layout"
)

// objNr returns the object number of an indirect reference, 0 otherwise.
func objNr(o types.Object) int {
	switch ir := o.(type) {
	case types.IndirectRef:
		return ir.ObjectNumber.Value()
	case *types.IndirectRef:
		if ir != nil {
			return ir.ObjectNumber.Value()
		}
	}
	return 0
}

func (d *Document) dict(o types.Object) types.Dict {
	if o == nil {
		return nil
	}
	dd, err := d.ctx.DereferenceDict(o)
	if err != nil {
		return nil
	}
	return dd
}

// stream dereferences o to a stream dict.
func (d *Document) stream(o types.Object) (*types.StreamDict, bool) {
	obj, err := d.ctx.Dereference(o)
	if err != nil {
		return nil, false
	}
	switch sd := obj.(type) {
	case types.StreamDict:
		return &sd, true
	case *types.StreamDict:
		return sd, sd != nil
	}
	return nil, false
}

func (d *Document) name(dict types.Dict, key string) string {
	o, found := dict.Find(key)
	if !found {
		return ""
	}
	n, err := d.ctx.DereferenceName(o, model.V10, nil)
	if err != nil {
		return ""
	}
	return string(n)
}

func (d *Document) text(dict types.Dict, key string) (string, bool) {
	o, found := dict.Find(key)
	if !found {
		return "", false
	}
	s, err := d.ctx.DereferenceStringOrHexLiteral(o, model.V10, nil)
	if err != nil {
		return "", false
	}
	return s, true
}

func (d *Document) integer(dict types.Dict, key string) int {
	o, found := dict.Find(key)
	if !found {
		return 0
	}
	i, err := d.ctx.DereferenceInteger(o)
	if err != nil || i == nil {
		return 0
	}
	return i.Value()
}

// rect reads a four number array as a normalized rectangle.
func (d *Document) rect(o types.Object) (layout.Rectangle, bool) {
	arr, err := d.ctx.DereferenceArray(o)
	if err != nil || len(arr) != 4 {
		return layout.Rectangle{}, false
	}
	var c [4]float64
	for i, v := range arr {
		f, err := d.ctx.DereferenceNumber(v)
		if err != nil {
			return layout.Rectangle{}, false
		}
		c[i] = f
	}
	return layout.NewRectangle(c[0], c[1], c[2], c[3]), true
}

// newStream stores content as a new Flate encoded stream object.
func (d *Document) newStream(content []byte, entries types.Dict) (*types.IndirectRef, error) {
	sd, err := d.ctx.NewStreamDictForBuf(content)
	if err != nil {
		return nil, err
	}
	for k, v := range entries {
		sd.Dict[k] = v
	}
	if err := sd.Encode(); err != nil {
		return nil, fmt.Errorf("failed to encode stream: %w", err)
	}
	return d.ctx.IndRefForNewObject(*sd)
}

// resourceName returns a document-unique resource name.
func (d *Document) resourceName(prefix string) string {
	d.resCount++
	return fmt.Sprintf("%s%d", prefix, d.resCount)
}

func floatArray(vals ...float64) types.Array {
	arr := make(types.Array, len(vals))
	for i, v := range vals {
		arr[i] = types.Float(v)
	}
	return arr
}

func (d *Document) acroForm() (types.Dict, error) {
	cat, err := d.ctx.Catalog()
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog: %w", err)
	}
	o, found := cat.Find("AcroForm")
	if !found {
		return nil, nil
	}
	return d.dict(o), nil
}

// resources returns a resource dict owned by the page alone. Shared or
// inherited resources are copied onto the page first so additions never
// show up on sibling pages.
func (d *Document) resources(pageDict types.Dict, inh *model.InheritedPageAttrs) types.Dict {
	var src types.Dict
	if o, found := pageDict.Find("Resources"); found {
		src = d.dict(o)
	} else if inh != nil {
		src = inh.Resources
	}
	res := make(types.Dict, len(src))
	for k, v := range src {
		res[k] = v
	}
	pageDict["Resources"] = res
	return res
}

// ownSubDict replaces res[key] with a private copy and returns it.
func (d *Document) ownSubDict(res types.Dict, key string) types.Dict {
	sub := types.Dict{}
	if o, found := res.Find(key); found {
		for k, v := range d.dict(o) {
			sub[k] = v
		}
	}
	res[key] = sub
	return sub
}

// subDict returns res[key] as a dict, creating it when missing.
func (d *Document) subDict(res types.Dict, key string) types.Dict {
	if o, found := res.Find(key); found {
		if sub := d.dict(o); sub != nil {
			return sub
		}
	}
	sub := types.Dict{}
	res[key] = sub
	return sub
}
