// internal/repository/interfaces.go
package repository

import (
	"context"
	"errors"

	"card-print-service/internal/model"
)

// ErrTeamNotFound is returned when a team id has no row
var ErrTeamNotFound = errors.New("team not found")

// RosterRepository is the read-only roster store consumed by the print service
type RosterRepository interface {
	GetTeam(ctx context.Context, teamID int64) (*model.TeamRecord, error)
	// ListPlayersByTeam returns players ordered by jersey number, then first name
	ListPlayersByTeam(ctx context.Context, teamID int64) ([]model.PlayerRecord, error)
}
