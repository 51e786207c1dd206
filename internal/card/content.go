// internal/card/content.go
package card

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"card-print-service/internal/model"
)

// Placeholder is printed for missing values
const Placeholder = "-"

// Content is the backend-agnostic text of one identification card.
// Every field is display-ready; backends only lay it out.
type Content struct {
	FullName      string `json:"full_name"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	NationalID    string `json:"national_id"`
	LicenseNumber string `json:"license_number"`
	BirthDate     string `json:"birth_date"`
	Position      string `json:"position"`
	JerseyNumber  string `json:"jersey_number"`
	Height        string `json:"height"`
	Weight        string `json:"weight"`
	TeamName      string `json:"team_name"`
	TeamShortName string `json:"team_short_name"`
	Region        string `json:"region"`
}

// Render builds the card content for one player of a team
func Render(player model.PlayerRecord, team model.TeamRecord) Content {
	return Content{
		FullName:      orPlaceholder(player.FullName()),
		FirstName:     orPlaceholder(player.FirstName),
		LastName:      orPlaceholder(player.LastName),
		NationalID:    orPlaceholder(player.NationalID),
		LicenseNumber: orPlaceholder(player.LicenseNumber),
		BirthDate:     formatDate(player.BirthDate),
		Position:      orPlaceholder(player.Position),
		JerseyNumber:  strconv.Itoa(player.JerseyNumber),
		Height:        formatMeasure(player.Height),
		Weight:        formatMeasure(player.Weight),
		TeamName:      orPlaceholder(team.Name),
		TeamShortName: orPlaceholder(team.ShortName),
		Region:        orPlaceholder(team.Region),
	}
}

// TestPlayer is the synthetic player used for smoke-test prints
func TestPlayer() model.PlayerRecord {
	return model.PlayerRecord{
		FirstName:     "Test",
		LastName:      "Oyuncu",
		BirthDate:     time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC),
		NationalID:    "00000000000",
		LicenseNumber: "TEST-0000",
		Position:      "Test Pozisyon",
		JerseyNumber:  0,
		Height:        decimal.NewFromInt(180),
		Weight:        decimal.NewFromInt(75),
	}
}

// TestTeam is the synthetic club used for smoke-test prints
func TestTeam() model.TeamRecord {
	return model.TeamRecord{
		Name:      "TEST TAKIMI",
		ShortName: "TEST",
		Region:    "Test Bölgesi",
	}
}

func orPlaceholder(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return Placeholder
	}
	return s
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return Placeholder
	}
	return t.Format(model.BirthDateLayout)
}

func formatMeasure(d decimal.Decimal) string {
	if !d.IsPositive() {
		return Placeholder
	}
	return d.String()
}
