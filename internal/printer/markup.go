// internal/printer/markup.go
package printer

import (
	"html/template"
	"io"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"card-print-service/internal/card"
)

// CR80 identification card geometry
const (
	CardWidthMM  = 85.6
	CardHeightMM = 54.0
)

var cardTemplate = template.Must(template.New("card").Funcs(template.FuncMap{
	"upper": cases.Upper(language.Turkish).String,
}).Parse(`<!DOCTYPE html>
<html lang="tr">
<head>
<meta charset="UTF-8">
<title>Futbolcu Kartı - {{.FullName}}</title>
<style>
@page { size: 85.6mm 54mm; margin: 0; }
html, body { margin: 0; padding: 0; }
body { font-family: Arial, sans-serif; }
.card { width: 85.6mm; height: 54mm; position: relative; overflow: hidden; background: #fff; }
.card-header { background: #1e3c72; color: #fff; padding: 2mm; text-align: center; font-size: 9pt; font-weight: bold; }
.card-body { padding: 2mm 3mm; display: flex; align-items: center; }
.player-photo { width: 14mm; height: 14mm; border-radius: 50%; background: #e0e0e0; border: 1px solid #ccc; margin-right: 3mm; font-size: 6pt; color: #666; display: flex; align-items: center; justify-content: center; }
.player-info { flex: 1; }
.info-row { font-size: 7pt; margin-bottom: 1mm; }
.label { font-weight: bold; color: #333; display: inline-block; width: 16mm; }
.value { color: #555; }
.card-footer { position: absolute; bottom: 0; left: 0; right: 0; background: #f8f9fa; border-top: 1px solid #e9ecef; padding: 1mm; text-align: center; font-size: 5.5pt; color: #666; }
.license-number { position: absolute; bottom: 5mm; right: 2mm; background: #28a745; color: #fff; padding: 0.5mm 1.5mm; border-radius: 1mm; font-size: 6.5pt; font-weight: bold; }
</style>
</head>
<body>
<div class="card">
  <div class="card-header">TÜRKİYE FUTBOL FEDERASYONU<br>FUTBOLCU LİSANSI</div>
  <div class="card-body">
    <div class="player-photo">FOTO</div>
    <div class="player-info">
      <div class="info-row"><span class="label">Ad Soyad:</span><span class="value">{{.FullName}}</span></div>
      <div class="info-row"><span class="label">Doğum:</span><span class="value">{{.BirthDate}}</span></div>
      <div class="info-row"><span class="label">TC No:</span><span class="value">{{.NationalID}}</span></div>
      <div class="info-row"><span class="label">Kulüp:</span><span class="value">{{upper .TeamName}}</span></div>
      <div class="info-row"><span class="label">Bölge:</span><span class="value">{{.Region}}</span></div>
    </div>
  </div>
  <div class="license-number">{{.LicenseNumber}}</div>
  <div class="card-footer">Bu kart TFF tarafından verilmiştir</div>
</div>
</body>
</html>
`))

// WriteMarkup renders the card as a standalone HTML document sized to one card
func WriteMarkup(w io.Writer, content card.Content) error {
	return cardTemplate.Execute(w, content)
}
