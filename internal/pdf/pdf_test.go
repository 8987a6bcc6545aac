package pdf

import (
	"bytes"
	"image"
	"image/color"
	"sort"
	"strings"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-pdfstamper/internal/layout"
	"go-pdfstamper/internal/pdf/pdftest"
)

func openTemplate(t *testing.T) *Document {
	t.Helper()
	doc, err := Open(bytes.NewReader(pdftest.FormTemplate()), Options{})
	require.NoError(t, err)
	return doc
}

func reopen(t *testing.T, doc *Document) *Document {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, doc.Write(&buf))
	out, err := Open(bytes.NewReader(buf.Bytes()), Options{})
	require.NoError(t, err)
	return out
}

func appearanceContent(t *testing.T, doc *Document, w *widget) string {
	t.Helper()
	ap := doc.normalAppearance(w.dict)
	require.NotNil(t, ap)
	sd, ok := doc.stream(ap)
	require.True(t, ok)
	if sd.Content == nil {
		require.NoError(t, sd.Decode())
	}
	return string(sd.Content)
}

func TestOpenIndexesFields(t *testing.T) {
	doc := openTemplate(t)

	assert.Equal(t, 3, doc.PageCount())
	assert.Equal(t, []string{
		pdftest.FirstName,
		pdftest.LastName,
		pdftest.Hungry,
		pdftest.OffOnly,
		pdftest.Photo,
		pdftest.Choice,
		pdftest.AppointmentData,
	}, doc.FieldNames())

	tests := map[string]FieldType{
		pdftest.FirstName:       FieldText,
		pdftest.Hungry:          FieldCheckbox,
		pdftest.Photo:           FieldButton,
		pdftest.Choice:          FieldChoice,
		pdftest.AppointmentData: FieldText,
	}
	for name, want := range tests {
		got, err := doc.FieldType(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := doc.FieldType("missing")
	assert.ErrorIs(t, err, ErrFieldNotFound)
}

func TestOpenPlainDocument(t *testing.T) {
	doc, err := Open(bytes.NewReader(pdftest.PlainDocument()), Options{})
	require.NoError(t, err)
	assert.Empty(t, doc.FieldNames())
	assert.Nil(t, doc.FieldPositions(pdftest.FirstName))
}

func TestOpenRejectsGarbage(t *testing.T) {
	_, err := Open(bytes.NewReader([]byte("not a pdf")), Options{})
	assert.Error(t, err)
}

func TestFieldPositions(t *testing.T) {
	doc := openTemplate(t)

	assert.Equal(t, []layout.Placement{
		{Page: 1, Rect: layout.Rectangle{Left: 100, Bottom: 700, Right: 300, Top: 720}},
	}, doc.FieldPositions(pdftest.FirstName))

	assert.Equal(t, []layout.Placement{
		{Page: 1, Rect: layout.Rectangle{Left: 400, Bottom: 50, Right: 550, Top: 100}},
		{Page: 3, Rect: layout.Rectangle{Left: 50, Bottom: 50, Right: 250, Top: 150}},
	}, doc.FieldPositions(pdftest.AppointmentData))

	flavor := doc.FieldPositions(pdftest.Choice)
	require.Len(t, flavor, 1)
	assert.Equal(t, 2, flavor[0].Page)

	assert.Nil(t, doc.FieldPositions("missing"))
}

func TestAppearanceStates(t *testing.T) {
	doc := openTemplate(t)

	states, err := doc.AppearanceStates(pdftest.Hungry)
	require.NoError(t, err)
	assert.Equal(t, []string{"Off", "Yes"}, states)

	states, err = doc.AppearanceStates(pdftest.OffOnly)
	require.NoError(t, err)
	assert.Equal(t, []string{"Off"}, states)

	states, err = doc.AppearanceStates(pdftest.FirstName)
	require.NoError(t, err)
	assert.Empty(t, states)

	_, err = doc.AppearanceStates("missing")
	assert.ErrorIs(t, err, ErrFieldNotFound)
}

func TestSetFieldValue(t *testing.T) {
	doc := openTemplate(t)

	require.NoError(t, doc.SetFieldValue(pdftest.FirstName, "Jason"))
	v, err := doc.FieldValue(pdftest.FirstName)
	require.NoError(t, err)
	assert.Equal(t, "Jason", v)

	f := doc.byName[pdftest.FirstName]
	content := appearanceContent(t, doc, f.widgets[0])
	assert.Contains(t, content, "/Tx BMC")
	assert.Contains(t, content, "/Helv 12.00 Tf")
	assert.Contains(t, content, "(Jason) Tj")

	require.NoError(t, doc.SetFieldValue(pdftest.AppointmentData, "Tuesday (10am)"))
	f = doc.byName[pdftest.AppointmentData]
	require.Len(t, f.widgets, 2)
	for _, w := range f.widgets {
		assert.Contains(t, appearanceContent(t, doc, w), `(Tuesday \(10am\)) Tj`)
	}
}

func TestSetFieldValueUnicode(t *testing.T) {
	doc := openTemplate(t)

	require.NoError(t, doc.SetFieldValue(pdftest.LastName, "Zoë"))
	_, isHex := doc.byName[pdftest.LastName].dict["V"].(types.HexLiteral)
	assert.True(t, isHex)

	v, err := doc.FieldValue(pdftest.LastName)
	require.NoError(t, err)
	assert.Equal(t, "Zoë", v)

	content := appearanceContent(t, doc, doc.byName[pdftest.LastName].widgets[0])
	assert.Contains(t, content, "(Zo\xeb) Tj")
}

func TestSetFieldValueErrors(t *testing.T) {
	doc := openTemplate(t)

	assert.ErrorIs(t, doc.SetFieldValue("missing", "x"), ErrFieldNotFound)
	assert.ErrorIs(t, doc.SetFieldValue(pdftest.Hungry, "x"), ErrFieldType)
	assert.ErrorIs(t, doc.SetFieldValue(pdftest.Photo, "x"), ErrFieldType)
}

func TestSetFieldValueFailureLeavesFieldUntouched(t *testing.T) {
	doc := openTemplate(t)
	require.NoError(t, doc.SetFieldValue(pdftest.AppointmentData, "Monday"))
	f := doc.byName[pdftest.AppointmentData]
	before := make([]types.Object, len(f.widgets))
	for i, w := range f.widgets {
		before[i] = w.dict["AP"]
	}

	// Without a catalog no font resource can be resolved.
	root, rootDict := doc.ctx.Root, doc.ctx.RootDict
	doc.ctx.Root, doc.ctx.RootDict = nil, nil
	err := doc.SetFieldValue(pdftest.AppointmentData, "Tuesday")
	doc.ctx.Root, doc.ctx.RootDict = root, rootDict
	require.Error(t, err)

	v, err := doc.FieldValue(pdftest.AppointmentData)
	require.NoError(t, err)
	assert.Equal(t, "Monday", v)
	for i, w := range f.widgets {
		assert.Equal(t, before[i], w.dict["AP"])
		assert.Contains(t, appearanceContent(t, doc, w), "(Monday) Tj")
	}
}

func TestSetFieldAppearance(t *testing.T) {
	doc := openTemplate(t)

	require.NoError(t, doc.SetFieldAppearance(pdftest.Hungry, "Yes"))
	f := doc.byName[pdftest.Hungry]
	assert.Equal(t, types.Name("Yes"), f.dict["V"])
	assert.Equal(t, types.Name("Yes"), f.widgets[0].dict["AS"])

	require.NoError(t, doc.SetFieldAppearance(pdftest.OffOnly, "Yes"))
	assert.Equal(t, types.Name("Off"), doc.byName[pdftest.OffOnly].widgets[0].dict["AS"])

	assert.ErrorIs(t, doc.SetFieldAppearance(pdftest.FirstName, "Yes"), ErrFieldType)
	assert.ErrorIs(t, doc.SetFieldAppearance("missing", "Yes"), ErrFieldNotFound)
}

func TestSetFieldFont(t *testing.T) {
	doc := openTemplate(t)

	require.NoError(t, doc.SetFieldFont(pdftest.FirstName, "Courier-Bold"))
	assert.Equal(t, "/CourierBold 12 Tf 0 g", doc.byName[pdftest.FirstName].da)

	form, err := doc.acroForm()
	require.NoError(t, err)
	fonts := doc.dict(doc.dict(form["DR"])["Font"])
	require.Contains(t, fonts, "CourierBold")
	assert.Equal(t, "Courier-Bold", doc.name(doc.dict(fonts["CourierBold"]), "BaseFont"))

	// Registering twice reuses the resource.
	require.NoError(t, doc.SetFieldFont(pdftest.LastName, "Courier-Bold"))
	assert.Len(t, doc.dict(doc.dict(form["DR"])["Font"]), 2)

	require.NoError(t, doc.SetFieldValue(pdftest.FirstName, "Jason"))
	content := appearanceContent(t, doc, doc.byName[pdftest.FirstName].widgets[0])
	assert.Contains(t, content, "/CourierBold 12.00 Tf")

	assert.ErrorIs(t, doc.SetFieldFont(pdftest.FirstName, "Comic Sans"), ErrUnknownFont)
	assert.ErrorIs(t, doc.SetFieldFont("missing", "Courier"), ErrFieldNotFound)
}

func TestOverlayCommit(t *testing.T) {
	doc := openTemplate(t)

	_, err := doc.NewOverlay(0)
	assert.Error(t, err)
	_, err = doc.NewOverlay(4)
	assert.Error(t, err)

	o, err := doc.NewOverlay(1)
	require.NoError(t, err)
	assert.True(t, o.Empty())

	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.NRGBA{R: 255, A: 128})
	require.NoError(t, o.AddImage(img, 300, 400, 200, 200))
	o.Circle(100, 100, 10)
	o.Ellipse(10, 10, 50, 30)
	o.Rectangle(50, 50, 10, 10)
	assert.Contains(t, o.buf.String(), "10.0000 10.0000 40.0000 40.0000 re S")
	require.NoError(t, o.Commit())
	assert.True(t, o.Empty())

	pageDict, _, _, err := doc.ctx.PageDict(1, false)
	require.NoError(t, err)
	contents, ok := pageDict["Contents"].(types.Array)
	require.True(t, ok)
	// q, original, Q, overlay
	assert.Len(t, contents, 4)

	// A second commit only appends.
	o.Rectangle(0, 0, 1, 1)
	require.NoError(t, o.Commit())
	pageDict, _, _, err = doc.ctx.PageDict(1, false)
	require.NoError(t, err)
	assert.Len(t, pageDict["Contents"].(types.Array), 5)

	out := reopen(t, doc)
	assert.Equal(t, 3, out.PageCount())
}

func TestImageXObjectGray(t *testing.T) {
	doc := openTemplate(t)

	gray := image.NewGray(image.Rect(0, 0, 3, 2))
	ref, err := doc.imageXObject(gray)
	require.NoError(t, err)
	sd, ok := doc.stream(*ref)
	require.True(t, ok)
	assert.Equal(t, "DeviceGray", doc.name(sd.Dict, "ColorSpace"))
	_, hasMask := sd.Dict.Find("SMask")
	assert.False(t, hasMask)

	opaque := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for i := range opaque.Pix {
		opaque.Pix[i] = 0xff
	}
	ref, err = doc.imageXObject(opaque)
	require.NoError(t, err)
	sd, ok = doc.stream(*ref)
	require.True(t, ok)
	assert.Equal(t, "DeviceRGB", doc.name(sd.Dict, "ColorSpace"))
	_, hasMask = sd.Dict.Find("SMask")
	assert.False(t, hasMask)

	_, err = doc.imageXObject(image.NewRGBA(image.Rect(0, 0, 0, 0)))
	assert.Error(t, err)
}

func TestFlatten(t *testing.T) {
	doc := openTemplate(t)

	require.NoError(t, doc.SetFieldValue(pdftest.FirstName, "Jason"))
	require.NoError(t, doc.SetFieldAppearance(pdftest.Hungry, "Yes"))
	require.NoError(t, doc.Flatten())

	assert.Empty(t, doc.FieldNames())
	assert.ErrorIs(t, doc.Flatten(), ErrFlattened)
	assert.ErrorIs(t, doc.SetFieldValue(pdftest.FirstName, "x"), ErrFlattened)

	cat, err := doc.ctx.Catalog()
	require.NoError(t, err)
	_, found := cat.Find("AcroForm")
	assert.False(t, found)

	for p := 1; p <= 3; p++ {
		pageDict, _, _, err := doc.ctx.PageDict(p, false)
		require.NoError(t, err)
		_, found := pageDict.Find("Annots")
		assert.False(t, found, "page %d", p)
	}

	out := reopen(t, doc)
	assert.Empty(t, out.FieldNames())
	assert.Equal(t, 3, out.PageCount())
}

func TestOverlayKeepsSharedResourcesPerPage(t *testing.T) {
	doc, err := Open(bytes.NewReader(pdftest.SharedResourcesDocument()), Options{})
	require.NoError(t, err)

	img := image.NewGray(image.Rect(0, 0, 4, 4))
	for _, page := range []int{1, 3} {
		o, err := doc.NewOverlay(page)
		require.NoError(t, err)
		require.NoError(t, o.AddImage(img, 10, 10, 40, 40))
		require.NoError(t, o.Commit())
	}

	xobjectNames := func(page int) []string {
		pageDict, _, inh, err := doc.ctx.PageDict(page, false)
		require.NoError(t, err)
		res := inh.Resources
		if o, found := pageDict.Find("Resources"); found {
			res = doc.dict(o)
		}
		var names []string
		for k := range doc.dict(res["XObject"]) {
			names = append(names, k)
		}
		sort.Strings(names)
		return names
	}

	assert.Equal(t, []string{"Logo"}, xobjectNames(2))
	p1, p3 := xobjectNames(1), xobjectNames(3)
	require.Len(t, p1, 2)
	require.Len(t, p3, 2)
	assert.Contains(t, p1, "Logo")
	assert.Contains(t, p3, "Logo")
	assert.NotEqual(t, p1, p3)

	out := reopen(t, doc)
	assert.Equal(t, 3, out.PageCount())
}

func TestFlattenDrawsAppearances(t *testing.T) {
	doc := openTemplate(t)
	require.NoError(t, doc.SetFieldValue(pdftest.FirstName, "Jason"))
	require.NoError(t, doc.Flatten())

	pageDict, _, inh, err := doc.ctx.PageDict(1, true)
	require.NoError(t, err)
	contents := pageDict["Contents"].(types.Array)
	sd, ok := doc.stream(contents[len(contents)-1])
	require.True(t, ok)
	require.NoError(t, sd.Decode())
	// first_name: BBox 200x20 placed at its Rect without scaling
	assert.Contains(t, string(sd.Content), "q 1.0000 0 0 1.0000 100.0000 700.0000 cm")

	xobjects := doc.dict(doc.resources(pageDict, inh)["XObject"])
	assert.NotEmpty(t, xobjects)
}

func TestMetadata(t *testing.T) {
	doc := openTemplate(t)

	require.NoError(t, doc.SetMetadata(map[string]string{
		"Title":  "Intake form",
		"Author": "Front desk",
	}))
	require.NoError(t, doc.ResetXMPMetadata())

	out := reopen(t, doc)
	meta, err := out.Metadata()
	require.NoError(t, err)
	assert.Equal(t, "Intake form", meta["Title"])
	assert.Equal(t, "Front desk", meta["Author"])

	require.NoError(t, out.SetMetadata(map[string]string{"Author": ""}))
	meta, err = out.Metadata()
	require.NoError(t, err)
	assert.NotContains(t, meta, "Author")
}

func TestMetadataWriterManagedKeys(t *testing.T) {
	doc := openTemplate(t)
	require.NoError(t, doc.SetMetadata(map[string]string{
		"Producer": "MyProducer",
		"Creator":  "MyCreator",
	}))

	meta, err := reopen(t, doc).Metadata()
	require.NoError(t, err)
	assert.Equal(t, "MyCreator", meta["Creator"])
	assert.True(t, strings.HasPrefix(meta["Producer"], "pdfcpu"), meta["Producer"])
	assert.NotEmpty(t, meta["ModDate"])
}

func TestParseDA(t *testing.T) {
	tests := []struct {
		da   string
		want defaultAppearance
	}{
		{"/Helv 12 Tf 0 g", defaultAppearance{font: "Helv", size: 12, color: "0 g"}},
		{"0 0 1 rg /TiRo 0 Tf", defaultAppearance{font: "TiRo", size: 0, color: "0 0 1 rg"}},
		{"/Cour 9.5 Tf 0 0 0 1 k", defaultAppearance{font: "Cour", size: 9.5, color: "0 0 0 1 k"}},
		{"", defaultAppearance{color: "0 g"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseDA(tt.da), tt.da)
	}
}

func TestReplaceDAFont(t *testing.T) {
	assert.Equal(t, "/Cour 12 Tf 0 g", replaceDAFont("/Helv 12 Tf 0 g", "Cour"))
	assert.Equal(t, "/Cour 0 Tf 0 g", replaceDAFont("", "Cour"))
	assert.Equal(t, "/Cour 0 Tf 1 0 0 rg", replaceDAFont("1 0 0 rg", "Cour"))
}

func TestTextAppearanceQuadding(t *testing.T) {
	da := defaultAppearance{font: "Helv", size: 10, color: "0 g"}

	left := string(textAppearance("abcd", da, "Helv", 0, false, 100, 20))
	assert.Contains(t, left, "1 0 0 1 2.00 ")

	// four glyphs at 10pt estimate to 20pt wide
	center := string(textAppearance("abcd", da, "Helv", 1, false, 100, 20))
	assert.Contains(t, center, "1 0 0 1 40.00 ")

	right := string(textAppearance("abcd", da, "Helv", 2, false, 100, 20))
	assert.Contains(t, right, "1 0 0 1 78.00 ")

	multi := string(textAppearance("a\nb", da, "Helv", 0, true, 100, 40))
	assert.Contains(t, multi, "(a) Tj")
	assert.Contains(t, multi, "(b) Tj")
}

func TestAutoFontSize(t *testing.T) {
	assert.Equal(t, maxAutoFontSize, autoFontSize([]string{"x"}, 200, 100))
	assert.Equal(t, minAutoFontSize, autoFontSize([]string{"a very long value indeed"}, 10, 10))
}
