// Package pdftest builds small AcroForm templates in memory for tests.
//
// The fixtures mirror the forms the stamper is used with: text fields,
// checkboxes, an image button and a text field repeated on several pages.
package pdftest

import (
	"bytes"
	"fmt"
)

// Field names of the template returned by FormTemplate.
const (
	FirstName       = "first_name"
	LastName        = "last_name"
	Hungry          = "hungry"
	OffOnly         = "off_only"
	Photo           = "photo"
	AppointmentData = "APPOINTMENT_DATA"
	Choice          = "flavor"
)

// Builder assembles a classic xref-table PDF. Object numbers start at 1.
type Builder struct {
	objects []string
}

// Reserve allocates an object number to be filled with Set.
func (b *Builder) Reserve() int {
	b.objects = append(b.objects, "null")
	return len(b.objects)
}

// Add appends an object and returns its number.
func (b *Builder) Add(body string) int {
	b.objects = append(b.objects, body)
	return len(b.objects)
}

// Set replaces the body of object num.
func (b *Builder) Set(num int, body string) {
	b.objects[num-1] = body
}

// Stream formats a stream object body.
func Stream(dict string, data string) string {
	return fmt.Sprintf("<< %s /Length %d >>\nstream\n%s\nendstream", dict, len(data), data)
}

// Ref formats an indirect reference.
func Ref(num int) string {
	return fmt.Sprintf("%d 0 R", num)
}

// Bytes serializes the document with root as catalog.
func (b *Builder) Bytes(root int) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")

	offsets := make([]int, len(b.objects))
	for i, body := range b.objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(b.objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %s >>\nstartxref\n%d\n%%%%EOF\n", len(b.objects)+1, Ref(root), xref)
	return buf.Bytes()
}

// FormTemplate returns a three page letter-size template:
//
//	first_name        text, page 1, [100 700 300 720]
//	last_name         text, page 1, [100 660 300 680]
//	hungry            checkbox {Off, Yes}, page 1, [100 600 120 620]
//	off_only          checkbox {Off}, page 1, [140 600 160 620]
//	photo             push button, page 1, [300 400 500 600]
//	flavor            choice, page 2, [100 700 300 720]
//	APPOINTMENT_DATA  text with widgets on page 1 [400 50 550 100] and page 3 [50 50 250 150]
func FormTemplate() []byte {
	b := &Builder{}

	catalog := b.Reserve()
	pages := b.Reserve()
	acroForm := b.Reserve()
	font := b.Add("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	pageNums := []int{b.Reserve(), b.Reserve(), b.Reserve()}
	content := b.Add(Stream("", "0.5 g 36 36 540 720 re S"))

	onAP := b.Add(Stream("/Type /XObject /Subtype /Form /BBox [0 0 20 20]", "0 g 4 4 12 12 re f"))
	offAP := b.Add(Stream("/Type /XObject /Subtype /Form /BBox [0 0 20 20]", "0 g 0.5 0.5 19 19 re S"))
	photoAP := b.Add(Stream("/Type /XObject /Subtype /Form /BBox [0 0 200 200]", "0.8 g 0 0 200 200 re f"))

	widget := func(page int, rect string, extra string) string {
		return fmt.Sprintf("<< /Type /Annot /Subtype /Widget /F 4 /P %s /Rect [%s] %s >>", Ref(page), rect, extra)
	}

	firstName := b.Add(widget(pageNums[0], "100 700 300 720", "/FT /Tx /T (first_name) /DA (/Helv 12 Tf 0 g)"))
	lastName := b.Add(widget(pageNums[0], "100 660 300 680", "/FT /Tx /T (last_name) /V (Default) /DA (/Helv 0 Tf 0 g)"))
	hungry := b.Add(widget(pageNums[0], "100 600 120 620",
		fmt.Sprintf("/FT /Btn /T (hungry) /V /Off /AS /Off /AP << /N << /Yes %s /Off %s >> >>", Ref(onAP), Ref(offAP))))
	offOnly := b.Add(widget(pageNums[0], "140 600 160 620",
		fmt.Sprintf("/FT /Btn /T (off_only) /V /Off /AS /Off /AP << /N << /Off %s >> >>", Ref(offAP))))
	photo := b.Add(widget(pageNums[0], "300 400 500 600",
		fmt.Sprintf("/FT /Btn /Ff 65536 /T (photo) /AP << /N %s >>", Ref(photoAP))))
	flavor := b.Add(widget(pageNums[1], "100 700 300 720", "/FT /Ch /Ff 131072 /T (flavor) /Opt [(vanilla) (chocolate)] /DA (/Helv 10 Tf 0 g)"))

	appointment := b.Reserve()
	kid1 := b.Add(fmt.Sprintf("<< /Type /Annot /Subtype /Widget /F 4 /Parent %s /P %s /Rect [400 50 550 100] >>", Ref(appointment), Ref(pageNums[0])))
	kid3 := b.Add(fmt.Sprintf("<< /Type /Annot /Subtype /Widget /F 4 /Parent %s /P %s /Rect [50 50 250 150] >>", Ref(appointment), Ref(pageNums[2])))
	b.Set(appointment, fmt.Sprintf("<< /FT /Tx /T (APPOINTMENT_DATA) /DA (/Helv 9 Tf 0 g) /Kids [%s %s] >>", Ref(kid1), Ref(kid3)))

	annots := [][]int{
		{firstName, lastName, hungry, offOnly, photo, kid1},
		{flavor},
		{kid3},
	}
	for i, num := range pageNums {
		var refs bytes.Buffer
		for _, a := range annots[i] {
			refs.WriteString(Ref(a) + " ")
		}
		b.Set(num, fmt.Sprintf("<< /Type /Page /Parent %s /MediaBox [0 0 612 792] /Resources << >> /Contents %s /Annots [%s] >>",
			Ref(pages), Ref(content), refs.String()))
	}

	b.Set(pages, fmt.Sprintf("<< /Type /Pages /Kids [%s %s %s] /Count 3 >>", Ref(pageNums[0]), Ref(pageNums[1]), Ref(pageNums[2])))
	b.Set(acroForm, fmt.Sprintf("<< /Fields [%s %s %s %s %s %s %s] /DA (/Helv 0 Tf 0 g) /DR << /Font << /Helv %s >> >> >>",
		Ref(firstName), Ref(lastName), Ref(hungry), Ref(offOnly), Ref(photo), Ref(flavor), Ref(appointment), Ref(font)))
	b.Set(catalog, fmt.Sprintf("<< /Type /Catalog /Pages %s /AcroForm %s >>", Ref(pages), Ref(acroForm)))

	return b.Bytes(catalog)
}

// PlainDocument returns a single page PDF without a form.
func PlainDocument() []byte {
	b := &Builder{}
	catalog := b.Reserve()
	pages := b.Reserve()
	page := b.Reserve()
	content := b.Add(Stream("", "0 0 m 100 100 l S"))
	b.Set(page, fmt.Sprintf("<< /Type /Page /Parent %s /MediaBox [0 0 612 792] /Contents %s >>", Ref(pages), Ref(content)))
	b.Set(pages, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count 1 >>", Ref(page)))
	b.Set(catalog, fmt.Sprintf("<< /Type /Catalog /Pages %s >>", Ref(pages)))
	return b.Bytes(catalog)
}

// SharedResourcesDocument returns three pages drawing the image /Logo from
// shared resources: pages 1 and 2 inherit them from the page tree and page 3
// references the same dictionary directly.
func SharedResourcesDocument() []byte {
	b := &Builder{}
	catalog := b.Reserve()
	pages := b.Reserve()
	kids := []int{b.Reserve(), b.Reserve(), b.Reserve()}
	logo := b.Add(Stream("/Type /XObject /Subtype /Image /Width 1 /Height 1 /ColorSpace /DeviceGray /BitsPerComponent 8", "\x00"))
	xobjects := b.Add(fmt.Sprintf("<< /Logo %s >>", Ref(logo)))
	res := b.Add(fmt.Sprintf("<< /XObject %s >>", Ref(xobjects)))
	content := b.Add(Stream("", "q 10 0 0 10 0 0 cm /Logo Do Q"))

	for i, kid := range kids {
		extra := ""
		if i == 2 {
			extra = " /Resources " + Ref(res)
		}
		b.Set(kid, fmt.Sprintf("<< /Type /Page /Parent %s /Contents %s%s >>", Ref(pages), Ref(content), extra))
	}
	b.Set(pages, fmt.Sprintf("<< /Type /Pages /Kids [%s %s %s] /Count 3 /MediaBox [0 0 612 792] /Resources %s >>",
		Ref(kids[0]), Ref(kids[1]), Ref(kids[2]), Ref(res)))
	b.Set(catalog, fmt.Sprintf("<< /Type /Catalog /Pages %s >>", Ref(pages)))
	return b.Bytes(catalog)
}
