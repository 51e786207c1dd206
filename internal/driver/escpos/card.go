// internal/driver/escpos/card.go
package escpos

import (
	"bytes"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/language"

	"card-print-service/internal/card"
)

// Alignment of a printed line
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignCenter
)

// Line is one formatted text line of a thermal card
type Line struct {
	Text     string
	Align    Alignment
	Emphasis bool
}

// DefaultWidth is the character width of a CR80 card at font A
const DefaultWidth = 32

// turkishFold maps letters missing from code page 858 to their closest ASCII form
var turkishFold = strings.NewReplacer(
	"ğ", "g", "Ğ", "G",
	"ş", "s", "Ş", "S",
	"ı", "i", "İ", "I",
)

// Layout formats card content as header band, field rows and footer rule
func Layout(content card.Content, width int) []Line {
	if width <= 0 {
		width = DefaultWidth
	}
	band := strings.Repeat("=", width)

	lines := []Line{
		{Text: band, Align: AlignCenter},
		{Text: cases.Upper(language.Turkish).String(content.TeamName), Align: AlignCenter, Emphasis: true},
		{Text: band, Align: AlignCenter},
		{},
		{Text: "Ad Soyad: " + content.FullName},
		{Text: "Pozisyon: " + content.Position},
		{Text: "Numara: " + content.JerseyNumber},
		{Text: "Doğum: " + content.BirthDate},
		{Text: "Boy: " + withUnit(content.Height, "cm")},
		{Text: "Kilo: " + withUnit(content.Weight, "kg")},
		{Text: "Lisans: " + content.LicenseNumber},
		{},
		{Text: strings.Repeat("─", width), Align: AlignCenter},
	}

	for i := range lines {
		lines[i].Text = truncate(lines[i].Text, width)
	}
	return lines
}

// EncodeCard renders card content as a complete ESC/POS job ending in a cut
func EncodeCard(content card.Content, width int) []byte {
	var buf bytes.Buffer
	buf.Write(ESC_POS_COMMANDS.INITIALIZE)
	buf.Write(ESC_POS_COMMANDS.SELECT_CHARSET_PC858)

	align := Alignment(-1)
	for _, line := range Layout(content, width) {
		if line.Align != align {
			if line.Align == AlignCenter {
				buf.Write(ESC_POS_COMMANDS.ALIGN_CENTER)
			} else {
				buf.Write(ESC_POS_COMMANDS.ALIGN_LEFT)
			}
			align = line.Align
		}
		if line.Emphasis {
			buf.Write(ESC_POS_COMMANDS.TEXT_BOLD_ON)
		}
		buf.Write(EncodeText(line.Text))
		if line.Emphasis {
			buf.Write(ESC_POS_COMMANDS.TEXT_BOLD_OFF)
		}
		buf.Write(ESC_POS_COMMANDS.LINE_FEED)
	}

	buf.Write(ESC_POS_COMMANDS.FEED_LINES)
	buf.WriteByte(3)
	buf.Write(ESC_POS_COMMANDS.CUT_PARTIAL)
	return buf.Bytes()
}

// EncodeText converts text to code page 858 bytes, substituting '?' for unmappable runes
func EncodeText(s string) []byte {
	s = turkishFold.Replace(s)
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if b, ok := charmap.CodePage858.EncodeRune(r); ok {
			out = append(out, b)
		} else {
			out = append(out, '?')
		}
	}
	return out
}

func withUnit(value, unit string) string {
	if value == card.Placeholder {
		return value
	}
	return value + unit
}

func truncate(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width])
}
