// internal/repository/roster_repository.go
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"card-print-service/internal/database"
	"card-print-service/internal/model"
)

// rosterRepository implements RosterRepository on postgres
type rosterRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewRosterRepository creates a new roster repository
func NewRosterRepository(db *database.DB, logger *zap.Logger) RosterRepository {
	return &rosterRepository{
		db:     db,
		logger: logger,
	}
}

// GetTeam retrieves one team by id
func (r *rosterRepository) GetTeam(ctx context.Context, teamID int64) (*model.TeamRecord, error) {
	query := `
		SELECT id, name, COALESCE(short_name, ''), COALESCE(region, '')
		FROM teams WHERE id = $1
	`

	team := &model.TeamRecord{}
	err := r.db.QueryRowContext(ctx, query, teamID).Scan(
		&team.ID, &team.Name, &team.ShortName, &team.Region,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrTeamNotFound, teamID)
		}
		r.logger.Error("Failed to get team", zap.Error(err), zap.Int64("team_id", teamID))
		return nil, fmt.Errorf("failed to get team: %w", err)
	}

	return team, nil
}

// ListPlayersByTeam retrieves the ordered roster of a team
func (r *rosterRepository) ListPlayersByTeam(ctx context.Context, teamID int64) ([]model.PlayerRecord, error) {
	query := `
		SELECT id, team_id, first_name, last_name, birth_date,
			   COALESCE(national_id, ''), COALESCE(license_number, ''), COALESCE(position, ''),
			   jersey_number, height, weight
		FROM players
		WHERE team_id = $1
		ORDER BY jersey_number, first_name
	`

	rows, err := r.db.QueryContext(ctx, query, teamID)
	if err != nil {
		r.logger.Error("Failed to list players", zap.Error(err), zap.Int64("team_id", teamID))
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	defer rows.Close()

	players := []model.PlayerRecord{}
	for rows.Next() {
		var (
			p         model.PlayerRecord
			birthDate sql.NullTime
			height    decimal.NullDecimal
			weight    decimal.NullDecimal
		)
		if err := rows.Scan(
			&p.ID, &p.TeamID, &p.FirstName, &p.LastName, &birthDate,
			&p.NationalID, &p.LicenseNumber, &p.Position,
			&p.JerseyNumber, &height, &weight,
		); err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		if birthDate.Valid {
			p.BirthDate = birthDate.Time
		}
		if height.Valid {
			p.Height = height.Decimal
		}
		if weight.Valid {
			p.Weight = weight.Decimal
		}
		players = append(players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate players: %w", err)
	}

	return players, nil
}
