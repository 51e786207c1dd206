// internal/model/roster.go
package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// BirthDateLayout is the day-first layout printed on cards
const BirthDateLayout = "02.01.2006"

// PlayerRecord is a read-only player row supplied by the roster store
type PlayerRecord struct {
	ID            int64           `json:"id"`
	TeamID        int64           `json:"team_id"`
	FirstName     string          `json:"first_name"`
	LastName      string          `json:"last_name"`
	BirthDate     time.Time       `json:"birth_date"`
	NationalID    string          `json:"national_id"`
	LicenseNumber string          `json:"license_number"`
	Position      string          `json:"position"`
	JerseyNumber  int             `json:"jersey_number"`
	Height        decimal.Decimal `json:"height"`
	Weight        decimal.Decimal `json:"weight"`
}

// FullName returns "first last" with surrounding whitespace trimmed
func (p PlayerRecord) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// TeamRecord is a read-only club row supplied by the roster store
type TeamRecord struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"short_name"`
	Region    string `json:"region"`
}
