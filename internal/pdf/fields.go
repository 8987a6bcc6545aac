package pdf

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"go-pdfstamper/internal/layout"
)

// FieldType classifies AcroForm fields.
type FieldType int

const (
	FieldUnknown FieldType = iota
	FieldText
	FieldCheckbox
	FieldRadio
	FieldButton
	FieldChoice
	FieldSignature
)

func (t FieldType) String() string {
	switch t {
	case FieldText:
		return "text"
	case FieldCheckbox:
		return "checkbox"
	case FieldRadio:
		return "radio"
	case FieldButton:
		return "button"
	case FieldChoice:
		return "choice"
	case FieldSignature:
		return "signature"
	default:
		return "unknown"
	}
}

// AcceptsText reports whether a text value can be bound to the field.
func (t FieldType) AcceptsText() bool {
	return t == FieldText || t == FieldChoice
}

// Field flag bits (PDF 32000-1, 12.7.4).
const (
	flagRadio      = 1 << 15
	flagPushButton = 1 << 16
)

// annotation flag: Hidden
const annotHidden = 1 << 1

// OffState is the appearance state name of an unchecked button.
const OffState = "Off"

// Field is a terminal AcroForm field.
type Field struct {
	Name string
	Type FieldType

	dict    types.Dict
	da      string
	quad    int
	flags   int
	widgets []*widget
}

type widget struct {
	dict types.Dict
	page int
	rect layout.Rectangle
}

type inherited struct {
	ft string
	ff int
	da string
	q  int
}

func (d *Document) loadFields() error {
	form, err := d.acroForm()
	if err != nil {
		return err
	}
	if form == nil {
		return nil
	}
	obj, found := form.Find("Fields")
	if !found {
		return nil
	}
	fields, err := d.ctx.DereferenceArray(obj)
	if err != nil {
		return fmt.Errorf("failed to dereference Fields array: %w", err)
	}

	inh := inherited{}
	if da, ok := d.text(form, "DA"); ok {
		inh.da = da
	}
	inh.q = d.integer(form, "Q")

	visited := make(map[int]bool)
	for _, f := range fields {
		d.walkField(f, "", inh, visited)
	}
	return nil
}

func (d *Document) walkField(obj types.Object, parent string, inh inherited, visited map[int]bool) {
	if nr := objNr(obj); nr > 0 {
		if visited[nr] {
			return
		}
		visited[nr] = true
	}
	fd := d.dict(obj)
	if fd == nil {
		return
	}

	name := parent
	if partial, ok := d.text(fd, "T"); ok {
		if name != "" {
			name += "."
		}
		name += partial
	}
	if ft := d.name(fd, "FT"); ft != "" {
		inh.ft = ft
	}
	if _, found := fd.Find("Ff"); found {
		inh.ff = d.integer(fd, "Ff")
	}
	if da, ok := d.text(fd, "DA"); ok {
		inh.da = da
	}
	if _, found := fd.Find("Q"); found {
		inh.q = d.integer(fd, "Q")
	}

	var fieldKids, widgetKids []types.Object
	if o, found := fd.Find("Kids"); found {
		kids, err := d.ctx.DereferenceArray(o)
		if err == nil {
			for _, k := range kids {
				kd := d.dict(k)
				if kd == nil {
					continue
				}
				if _, named := kd.Find("T"); named {
					fieldKids = append(fieldKids, k)
				} else {
					widgetKids = append(widgetKids, k)
				}
			}
		}
	}

	if len(fieldKids) > 0 {
		for _, k := range fieldKids {
			d.walkField(k, name, inh, visited)
		}
		return
	}
	if name == "" {
		return
	}

	f := &Field{
		Name:  name,
		Type:  fieldType(inh.ft, inh.ff),
		dict:  fd,
		da:    inh.da,
		quad:  inh.q,
		flags: inh.ff,
	}
	if len(widgetKids) == 0 {
		if _, found := fd.Find("Rect"); found {
			f.widgets = append(f.widgets, d.newWidget(obj, fd))
		}
	}
	for _, k := range widgetKids {
		f.widgets = append(f.widgets, d.newWidget(k, d.dict(k)))
	}

	if _, dup := d.byName[name]; dup {
		return
	}
	d.fields = append(d.fields, f)
	d.byName[name] = f
}

func (d *Document) newWidget(obj types.Object, wd types.Dict) *widget {
	w := &widget{dict: wd}
	if o, found := wd.Find("Rect"); found {
		w.rect, _ = d.rect(o)
	}
	if nr := objNr(obj); nr > 0 {
		w.page = d.annotPage[nr]
	}
	if w.page == 0 {
		if o, found := wd.Find("P"); found {
			w.page = d.pageNr[objNr(o)]
		}
	}
	return w
}

func fieldType(ft string, ff int) FieldType {
	switch ft {
	case "Tx":
		return FieldText
	case "Ch":
		return FieldChoice
	case "Sig":
		return FieldSignature
	case "Btn":
		switch {
		case ff&flagPushButton != 0:
			return FieldButton
		case ff&flagRadio != 0:
			return FieldRadio
		default:
			return FieldCheckbox
		}
	}
	return FieldUnknown
}

func (d *Document) field(name string) (*Field, error) {
	f, ok := d.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrFieldNotFound, name)
	}
	return f, nil
}

// FieldNames returns all terminal field names in document order.
func (d *Document) FieldNames() []string {
	names := make([]string, len(d.fields))
	for i, f := range d.fields {
		names[i] = f.Name
	}
	return names
}

// FieldType returns the type of field name.
func (d *Document) FieldType(name string) (FieldType, error) {
	f, err := d.field(name)
	if err != nil {
		return FieldUnknown, err
	}
	return f.Type, nil
}

// AppearanceStates returns the sorted union of the normal and down
// appearance state names of all widgets of a button field.
func (d *Document) AppearanceStates(name string) ([]string, error) {
	f, err := d.field(name)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool)
	for _, w := range f.widgets {
		for _, s := range d.widgetStates(w) {
			set[s] = true
		}
	}
	states := make([]string, 0, len(set))
	for s := range set {
		states = append(states, s)
	}
	sort.Strings(states)
	return states, nil
}

func (d *Document) widgetStates(w *widget) []string {
	o, found := w.dict.Find("AP")
	if !found {
		return nil
	}
	ap := d.dict(o)
	if ap == nil {
		return nil
	}
	var states []string
	for _, key := range []string{"N", "D"} {
		so, found := ap.Find(key)
		if !found {
			continue
		}
		if _, isStream := d.stream(so); isStream {
			continue
		}
		if sd := d.dict(so); sd != nil {
			for s := range sd {
				states = append(states, s)
			}
		}
	}
	return states
}

// SetFieldValue sets the value of a text or choice field and regenerates
// the appearance of each of its widgets. The field is only touched once
// every appearance has been built.
func (d *Document) SetFieldValue(name, value string) error {
	if d.flattened {
		return ErrFlattened
	}
	f, err := d.field(name)
	if err != nil {
		return err
	}
	if !f.Type.AcceptsText() {
		return fmt.Errorf("%w: %q is a %s field", ErrFieldType, name, f.Type)
	}

	refs := make([]*types.IndirectRef, len(f.widgets))
	for i, w := range f.widgets {
		if refs[i], err = d.textAppearanceStream(f, w, value); err != nil {
			return fmt.Errorf("failed to generate appearance for %q: %w", name, err)
		}
	}

	f.dict["V"] = encodeTextString(value)
	for i, w := range f.widgets {
		w.dict["AP"] = types.Dict{"N": *refs[i]}
	}
	return nil
}

// SetFieldAppearance selects the appearance state of a button field. Widgets
// that lack state fall back to Off.
func (d *Document) SetFieldAppearance(name, state string) error {
	if d.flattened {
		return ErrFlattened
	}
	f, err := d.field(name)
	if err != nil {
		return err
	}
	if f.Type != FieldCheckbox && f.Type != FieldRadio {
		return fmt.Errorf("%w: %q is a %s field", ErrFieldType, name, f.Type)
	}

	f.dict["V"] = types.Name(state)
	for _, w := range f.widgets {
		as := OffState
		for _, s := range d.widgetStates(w) {
			if s == state {
				as = state
				break
			}
		}
		w.dict["AS"] = types.Name(as)
	}
	return nil
}

// FieldValue returns the current value of field name as text.
func (d *Document) FieldValue(name string) (string, error) {
	f, err := d.field(name)
	if err != nil {
		return "", err
	}
	if s, ok := d.text(f.dict, "V"); ok {
		return s, nil
	}
	return d.name(f.dict, "V"), nil
}

// SetFieldFont points the default appearance of field name at font, one of
// the standard 14 fonts. The size and color of the existing DA are kept.
func (d *Document) SetFieldFont(name, font string) error {
	if d.flattened {
		return ErrFlattened
	}
	f, err := d.field(name)
	if err != nil {
		return err
	}
	res, err := d.registerFont(font)
	if err != nil {
		return err
	}

	f.da = replaceDAFont(f.da, res)
	f.dict["DA"] = types.StringLiteral(escapeLiteral(f.da))
	for _, w := range f.widgets {
		if _, found := w.dict.Find("DA"); found {
			w.dict["DA"] = types.StringLiteral(escapeLiteral(f.da))
		}
	}
	return nil
}

var standardFonts = map[string]bool{
	"Courier": true, "Courier-Bold": true, "Courier-Oblique": true, "Courier-BoldOblique": true,
	"Helvetica": true, "Helvetica-Bold": true, "Helvetica-Oblique": true, "Helvetica-BoldOblique": true,
	"Times-Roman": true, "Times-Bold": true, "Times-Italic": true, "Times-BoldItalic": true,
	"Symbol": true, "ZapfDingbats": true,
}

// IsStandardFont reports whether font is one of the standard 14 fonts.
func IsStandardFont(font string) bool {
	return standardFonts[font]
}

// registerFont makes font available in the form's default resources and
// returns its resource name.
func (d *Document) registerFont(font string) (string, error) {
	if !standardFonts[font] {
		return "", fmt.Errorf("%w: %q", ErrUnknownFont, font)
	}
	form, err := d.acroForm()
	if err != nil {
		return "", err
	}
	if form == nil {
		return "", fmt.Errorf("%w: document has no form", ErrFieldNotFound)
	}
	fonts := d.subDict(d.subDict(form, "DR"), "Font")

	for key, o := range fonts {
		if fd := d.dict(o); fd != nil && d.name(fd, "BaseFont") == font {
			return key, nil
		}
	}

	fd := types.Dict{
		"Type":     types.Name("Font"),
		"Subtype":  types.Name("Type1"),
		"BaseFont": types.Name(font),
	}
	if font != "Symbol" && font != "ZapfDingbats" {
		fd["Encoding"] = types.Name("WinAnsiEncoding")
	}
	ref, err := d.ctx.IndRefForNewObject(fd)
	if err != nil {
		return "", err
	}
	key := strings.ReplaceAll(font, "-", "")
	fonts[key] = *ref
	return key, nil
}

// fontResource resolves a DA font name to its font object, registering
// Helvetica when the name is unknown.
func (d *Document) fontResource(res string) (string, types.Object, error) {
	form, err := d.acroForm()
	if err != nil {
		return "", nil, err
	}
	if form != nil && res != "" {
		if dr := d.dict(mustFind(form, "DR")); dr != nil {
			if fonts := d.dict(mustFind(dr, "Font")); fonts != nil {
				if o, found := fonts.Find(res); found {
					return res, o, nil
				}
			}
		}
	}
	if form == nil {
		fd := types.Dict{
			"Type":     types.Name("Font"),
			"Subtype":  types.Name("Type1"),
			"BaseFont": types.Name("Helvetica"),
			"Encoding": types.Name("WinAnsiEncoding"),
		}
		ref, err := d.ctx.IndRefForNewObject(fd)
		if err != nil {
			return "", nil, err
		}
		return "Helv", *ref, nil
	}
	key, err := d.registerFont("Helvetica")
	if err != nil {
		return "", nil, err
	}
	fonts := d.subDict(d.subDict(form, "DR"), "Font")
	return key, fonts[key], nil
}

func mustFind(d types.Dict, key string) types.Object {
	o, _ := d.Find(key)
	return o
}
