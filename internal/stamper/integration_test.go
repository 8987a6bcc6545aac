package stamper

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-pdfstamper/internal/pdf"
	"go-pdfstamper/internal/pdf/pdftest"
)

func TestStampTemplate(t *testing.T) {
	s, err := OpenBytes(pdftest.FormTemplate())
	require.NoError(t, err)
	assert.Equal(t, 3, s.PageCount())

	require.NoError(t, s.SetFont("Helvetica-Bold"))
	require.NoError(t, s.Text(pdftest.FirstName, "Jason"))
	require.NoError(t, s.Text(pdftest.LastName, "Yates"))
	require.NoError(t, s.Checkbox(pdftest.Hungry))
	require.NoError(t, s.Checkbox(pdftest.OffOnly))
	require.NoError(t, s.ImageReader(pdftest.Photo, bytes.NewReader(pngBytes(t, 30, 40)), PlaceOptions{}))
	require.NoError(t, s.Barcode("PDF417", pdftest.AppointmentData, "2d_barcode", map[string]any{"aspect_ratio": 0.5}))
	require.NoError(t, s.Datamatrix(pdftest.AppointmentData, "Tuesday 10am", map[string]any{"module_height": 2, "module_width": 2}))
	require.NoError(t, s.Datamatrix("not_a_field", "ignored", nil))
	require.NoError(t, s.Circle(300, 300, 20))
	require.NoError(t, s.Ellipse(50, 50, 40, 20))
	require.NoError(t, s.Rectangle(20, 20, 572, 752))
	require.NoError(t, s.SetMetadata("Title", "Stamped"))
	require.NoError(t, s.ResetXMPMetadata())

	path := filepath.Join(t.TempDir(), "output.pdf")
	require.NoError(t, s.SaveAs(path))

	out, err := pdf.OpenFile(path, pdf.Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, out.PageCount())
	assert.Empty(t, out.FieldNames(), "flattened output has no fields")

	meta, err := out.Metadata()
	require.NoError(t, err)
	assert.Equal(t, "Stamped", meta["Title"])
}

func TestStampNothing(t *testing.T) {
	s, err := OpenBytes(pdftest.FormTemplate())
	require.NoError(t, err)

	b, err := s.Bytes()
	require.NoError(t, err)

	out, err := pdf.Open(bytes.NewReader(b), pdf.Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, out.PageCount())
	assert.Empty(t, out.FieldNames())
}

func TestStampPlainDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.pdf")
	require.NoError(t, os.WriteFile(path, pdftest.PlainDocument(), 0o644))

	s, err := OpenFile(path)
	require.NoError(t, err)
	assert.Empty(t, s.FieldNames())
	require.NoError(t, s.Datamatrix(pdftest.AppointmentData, "x", nil))
	require.NoError(t, s.Rectangle(10, 10, 100, 100))

	var buf bytes.Buffer
	_, err = s.WriteTo(&buf)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
}

func TestOpenGarbage(t *testing.T) {
	_, err := OpenBytes([]byte("definitely not a pdf"))
	assert.ErrorIs(t, err, ErrTemplateOpen)
}
