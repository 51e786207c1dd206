package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"card-print-service/internal/database"
)

func newMockRepo(t *testing.T) (RosterRepository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return NewRosterRepository(database.Wrap(sqlDB, zap.NewNop()), zap.NewNop()), mock
}

func TestGetTeam(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM teams WHERE id = $1")).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "short_name", "region"}).
			AddRow(int64(42), "Ankara Gençlik", "AGS", "Ankara"))

	team, err := repo.GetTeam(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "Ankara Gençlik", team.Name)
	assert.Equal(t, "Ankara", team.Region)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTeam_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM teams WHERE id = $1")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "short_name", "region"}))

	_, err := repo.GetTeam(context.Background(), 7)
	assert.ErrorIs(t, err, ErrTeamNotFound)
}

func TestListPlayersByTeam(t *testing.T) {
	repo, mock := newMockRepo(t)
	birth := time.Date(2009, 3, 7, 0, 0, 0, 0, time.UTC)

	cols := []string{"id", "team_id", "first_name", "last_name", "birth_date",
		"national_id", "license_number", "position", "jersey_number", "height", "weight"}
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY jersey_number, first_name")).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(int64(1), int64(42), "Ali", "Yılmaz", birth, "12345678901", "L-1", "Kaleci", int64(1), "176.5", "68.0").
			AddRow(int64(2), int64(42), "Can", "Demir", nil, "", "", "", int64(9), nil, nil))

	players, err := repo.ListPlayersByTeam(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, players, 2)

	assert.Equal(t, "Ali Yılmaz", players[0].FullName())
	assert.Equal(t, birth, players[0].BirthDate)
	assert.Equal(t, "176.5", players[0].Height.String())
	assert.True(t, players[1].BirthDate.IsZero())
	assert.True(t, players[1].Height.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPlayersByTeam_Empty(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("FROM players").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	players, err := repo.ListPlayersByTeam(context.Background(), 5)
	require.NoError(t, err)
	assert.NotNil(t, players)
	assert.Empty(t, players)
}

func TestListPlayersByTeam_QueryError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("FROM players").WillReturnError(errors.New("connection reset"))

	_, err := repo.ListPlayersByTeam(context.Background(), 5)
	assert.Error(t, err)
}
