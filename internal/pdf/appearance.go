package pdf

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

const (
	flagMultiline = 1 << 12

	minAutoFontSize = 4.0
	maxAutoFontSize = 12.0
	textPadding     = 2.0
)

// defaultAppearance is a parsed DA string.
type defaultAppearance struct {
	font  string
	size  float64
	color string
}

// parseDA extracts the font resource, size and color operators from a
// default appearance string such as "/Helv 12 Tf 0 g".
func parseDA(da string) defaultAppearance {
	out := defaultAppearance{color: "0 g"}
	tokens := strings.Fields(da)
	for i, tok := range tokens {
		switch tok {
		case "Tf":
			if i >= 2 && strings.HasPrefix(tokens[i-2], "/") {
				out.font = strings.TrimPrefix(tokens[i-2], "/")
				out.size, _ = strconv.ParseFloat(tokens[i-1], 64)
			}
		case "g":
			if i >= 1 {
				out.color = strings.Join(tokens[i-1:i+1], " ")
			}
		case "rg":
			if i >= 3 {
				out.color = strings.Join(tokens[i-3:i+1], " ")
			}
		case "k":
			if i >= 4 {
				out.color = strings.Join(tokens[i-4:i+1], " ")
			}
		}
	}
	return out
}

// replaceDAFont swaps the font resource of a DA string, keeping everything
// else. A DA without Tf gets an auto-sized font.
func replaceDAFont(da, font string) string {
	tokens := strings.Fields(da)
	for i, tok := range tokens {
		if tok == "Tf" && i >= 2 && strings.HasPrefix(tokens[i-2], "/") {
			tokens[i-2] = "/" + font
			return strings.Join(tokens, " ")
		}
	}
	if da == "" {
		return fmt.Sprintf("/%s 0 Tf 0 g", font)
	}
	return fmt.Sprintf("/%s 0 Tf %s", font, strings.Join(tokens, " "))
}

// encodeTextString encodes s as a PDF text string: a literal for ASCII,
// UTF-16BE with byte order mark otherwise.
func encodeTextString(s string) types.Object {
	ascii := true
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			ascii = false
			break
		}
	}
	if ascii {
		return types.StringLiteral(escapeLiteral(s))
	}
	enc := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder()
	b, err := enc.Bytes([]byte(s))
	if err != nil {
		return types.StringLiteral(escapeLiteral(s))
	}
	return types.HexLiteral(hex.EncodeToString(b))
}

// escapeLiteral escapes the characters that are special inside a PDF
// literal string.
func escapeLiteral(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '(', ')', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// encodeWinAnsi converts s to WinAnsiEncoding for use with the simple
// standard fonts. Unmappable runes become '?'.
func encodeWinAnsi(s string) string {
	enc := encoding.ReplaceUnsupported(charmap.Windows1252.NewEncoder())
	out, err := enc.String(s)
	if err != nil {
		return s
	}
	return out
}

// estimateWidth approximates the advance of n glyphs at size.
func estimateWidth(n int, size float64) float64 {
	return 0.5 * size * float64(n)
}

func autoFontSize(lines []string, w, h float64) float64 {
	longest := 0
	for _, l := range lines {
		if n := utf8.RuneCountInString(l); n > longest {
			longest = n
		}
	}
	size := (h - 2*textPadding) / (1.15 * float64(max(len(lines), 1)))
	if longest > 0 {
		size = min(size, (w-2*textPadding)/(0.5*float64(longest)))
	}
	return max(minAutoFontSize, min(size, maxAutoFontSize))
}

// textAppearance renders the content stream of a text widget.
func textAppearance(value string, da defaultAppearance, font string, quad int, multiline bool, w, h float64) []byte {
	lines := []string{value}
	if multiline {
		lines = strings.Split(strings.ReplaceAll(value, "\r\n", "\n"), "\n")
	} else {
		lines[0] = strings.NewReplacer("\r", " ", "\n", " ").Replace(value)
	}

	size := da.size
	if size <= 0 {
		size = autoFontSize(lines, w, h)
	}
	leading := size * 1.15

	var buf bytes.Buffer
	buf.WriteString("/Tx BMC\nq\n")
	fmt.Fprintf(&buf, "%.2f %.2f %.2f %.2f re W n\n", 1.0, 1.0, w-2, h-2)
	buf.WriteString("BT\n")
	fmt.Fprintf(&buf, "/%s %.2f Tf\n%s\n", font, size, da.color)

	var y float64
	if multiline {
		y = h - textPadding - size
	} else {
		y = (h-size)/2 + 0.22*size
	}
	for i, line := range lines {
		tw := estimateWidth(utf8.RuneCountInString(line), size)
		x := textPadding
		switch quad {
		case 1:
			x = (w - tw) / 2
		case 2:
			x = w - textPadding - tw
		}
		fmt.Fprintf(&buf, "1 0 0 1 %.2f %.2f Tm\n", x, y-float64(i)*leading)
		fmt.Fprintf(&buf, "(%s) Tj\n", escapeLiteral(encodeWinAnsi(line)))
	}
	buf.WriteString("ET\nQ\nEMC\n")
	return buf.Bytes()
}

// generateTextAppearance replaces the normal appearance of w with a
// rendering of value.
func (d *Document) generateTextAppearance(f *Field, w *widget, value string) error {
	ref, err := d.textAppearanceStream(f, w, value)
	if err != nil {
		return err
	}
	w.dict["AP"] = types.Dict{"N": *ref}
	return nil
}

// textAppearanceStream builds the normal appearance of w showing value
// without attaching it.
func (d *Document) textAppearanceStream(f *Field, w *widget, value string) (*types.IndirectRef, error) {
	da := f.da
	if wda, ok := d.text(w.dict, "DA"); ok {
		da = wda
	}
	parsed := parseDA(da)
	fontName, fontObj, err := d.fontResource(parsed.font)
	if err != nil {
		return nil, err
	}

	quad := f.quad
	if _, found := w.dict.Find("Q"); found {
		quad = d.integer(w.dict, "Q")
	}
	multiline := f.flags&flagMultiline != 0

	width, height := w.rect.Width(), w.rect.Height()
	content := textAppearance(value, parsed, fontName, quad, multiline, width, height)

	return d.newStream(content, types.Dict{
		"Type":    types.Name("XObject"),
		"Subtype": types.Name("Form"),
		"BBox":    floatArray(0, 0, width, height),
		"Resources": types.Dict{
			"Font": types.Dict{fontName: fontObj},
		},
	})
}
