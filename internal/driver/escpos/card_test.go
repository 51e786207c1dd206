package escpos

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"card-print-service/internal/card"
)

func sampleContent() card.Content {
	return card.Content{
		FullName:      "Ali Yılmaz",
		Position:      "Kaleci",
		JerseyNumber:  "1",
		BirthDate:     "07.03.2009",
		Height:        "176",
		Weight:        card.Placeholder,
		LicenseNumber: "L-42",
		TeamName:      "İstanbul Gençlik",
	}
}

func TestLayout(t *testing.T) {
	lines := Layout(sampleContent(), 32)

	require.Len(t, lines, 13)
	assert.Equal(t, "================================", lines[0].Text)
	assert.Equal(t, "İSTANBUL GENÇLİK", lines[1].Text)
	assert.True(t, lines[1].Emphasis)
	assert.Equal(t, AlignCenter, lines[1].Align)
	assert.Equal(t, "Ad Soyad: Ali Yılmaz", lines[4].Text)
	assert.Equal(t, AlignLeft, lines[4].Align)
	assert.Equal(t, "Boy: 176cm", lines[8].Text)
	assert.Equal(t, "Kilo: -", lines[9].Text)
	assert.Equal(t, 32, len([]rune(lines[12].Text)))
}

func TestLayout_TruncatesToWidth(t *testing.T) {
	c := sampleContent()
	c.FullName = "Muhammed Abdurrahman Karaosmanoğlu"

	for _, line := range Layout(c, 20) {
		assert.LessOrEqual(t, len([]rune(line.Text)), 20)
	}
}

func TestEncodeCard_FramesJob(t *testing.T) {
	job := EncodeCard(sampleContent(), 32)

	assert.True(t, bytes.HasPrefix(job, append(ESC_POS_COMMANDS.INITIALIZE, ESC_POS_COMMANDS.SELECT_CHARSET_PC858...)))
	assert.True(t, bytes.HasSuffix(job, ESC_POS_COMMANDS.CUT_PARTIAL))
	assert.Contains(t, string(job), "Ad Soyad: Ali Yilmaz")
}

func TestEncodeText(t *testing.T) {
	assert.Equal(t, []byte("Isik"), EncodeText("Işık"))
	assert.Equal(t, []byte{'G', 0x81, 'l', 's', 'e', 'n'}, EncodeText("Gülşen"))
	assert.Equal(t, []byte{0xC4, 0xC4}, EncodeText("──"))
	assert.Equal(t, []byte("?"), EncodeText("⚽"))
}
