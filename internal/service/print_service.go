// internal/service/print_service.go
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"card-print-service/internal/card"
	"card-print-service/internal/model"
	"card-print-service/internal/printer"
	"card-print-service/internal/repository"
	"card-print-service/internal/utils"
)

// Request-level failures
var (
	ErrNoPlayers      = errors.New("team has no players")
	ErrInvalidBackend = errors.New("invalid printer backend")
	ErrTeamNotFound   = repository.ErrTeamNotFound
)

// PrintOptions tunes job coordination
type PrintOptions struct {
	DefaultBackend model.BackendKind
	BatchDelay     time.Duration
	// ConnectTimeout and CardTimeout size the per-job deadline; both zero leaves jobs unbounded
	ConnectTimeout time.Duration
	CardTimeout    time.Duration
}

// TeamPrintRequest describes a team batch print. teamId/teamName are
// accepted as aliases of team_id/team_name.
type TeamPrintRequest struct {
	TeamID   int64  `json:"team_id" binding:"required,min=1"`
	TeamName string `json:"team_name,omitempty"`
	Backend  string `json:"backend,omitempty"`
}

// UnmarshalJSON accepts both key spellings; snake_case wins when both are present
func (r *TeamPrintRequest) UnmarshalJSON(data []byte) error {
	type plain TeamPrintRequest
	var aux struct {
		plain
		TeamIDAlias   *int64  `json:"teamId"`
		TeamNameAlias *string `json:"teamName"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = TeamPrintRequest(aux.plain)
	if r.TeamID == 0 && aux.TeamIDAlias != nil {
		r.TeamID = *aux.TeamIDAlias
	}
	if r.TeamName == "" && aux.TeamNameAlias != nil {
		r.TeamName = *aux.TeamNameAlias
	}
	return nil
}

// TeamRoster is a team with its ordered players
type TeamRoster struct {
	Team    model.TeamRecord     `json:"team"`
	Players []model.PlayerRecord `json:"players"`
	Count   int                  `json:"count"`
}

// PrintService coordinates connect, test, print and disconnect for print jobs.
// Each backend serves one job at a time.
type PrintService struct {
	roster   repository.RosterRepository
	backends map[model.BackendKind]printer.PrinterBackend
	order    []model.BackendKind
	locks    map[model.BackendKind]*semaphore.Weighted
	opts     PrintOptions

	statusGroup singleflight.Group

	baseLogger *zap.Logger
	logger     *utils.ServiceLogger
	events     *utils.PrintLogger
}

// NewPrintService creates a new print service instance
func NewPrintService(
	roster repository.RosterRepository,
	backends []printer.PrinterBackend,
	opts PrintOptions,
	logger *zap.Logger,
	events *utils.PrintLogger,
) *PrintService {
	s := &PrintService{
		roster:     roster,
		backends:   make(map[model.BackendKind]printer.PrinterBackend),
		locks:      make(map[model.BackendKind]*semaphore.Weighted),
		opts:       opts,
		baseLogger: logger,
		logger:     utils.NewServiceLogger(logger, "print-service"),
		events:     events,
	}
	for _, b := range backends {
		if _, exists := s.backends[b.Kind()]; !exists {
			s.order = append(s.order, b.Kind())
		}
		s.backends[b.Kind()] = b
		s.locks[b.Kind()] = semaphore.NewWeighted(1)
	}
	return s
}

// ResolveBackend maps a request selector to a registered backend; empty selects the default
func (s *PrintService) ResolveBackend(selector string) (model.BackendKind, error) {
	if selector == "" {
		selector = string(s.opts.DefaultBackend)
	}
	kind, err := model.ParseBackendKind(selector)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidBackend, err)
	}
	if _, ok := s.backends[kind]; !ok {
		return "", fmt.Errorf("%w: %s is not configured", ErrInvalidBackend, kind)
	}
	return kind, nil
}

// JobBudget is the deadline of a job printing the given number of cards:
// connect and test, then per card the pacing delay plus render and dispatch.
func (s *PrintService) JobBudget(cards int) time.Duration {
	if s.opts.ConnectTimeout <= 0 && s.opts.CardTimeout <= 0 {
		return 0
	}
	return s.opts.ConnectTimeout + time.Duration(cards)*(s.opts.BatchDelay+s.opts.CardTimeout)
}

// TeamPlayers returns a team and its players in print order
func (s *PrintService) TeamPlayers(ctx context.Context, teamID int64) (*TeamRoster, error) {
	team, err := s.roster.GetTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	players, err := s.roster.ListPlayersByTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	return &TeamRoster{Team: *team, Players: players, Count: len(players)}, nil
}

// PrintTeamCards prints one card per team player. A team without players
// fails before any device is touched.
func (s *PrintService) PrintTeamCards(ctx context.Context, req TeamPrintRequest) (*model.BatchReport, error) {
	kind, err := s.ResolveBackend(req.Backend)
	if err != nil {
		return nil, err
	}

	roster, err := s.TeamPlayers(ctx, req.TeamID)
	if err != nil {
		return nil, err
	}
	if len(roster.Players) == 0 {
		return nil, fmt.Errorf("%w: team %d", ErrNoPlayers, req.TeamID)
	}

	team := roster.Team
	if req.TeamName != "" {
		team.Name = req.TeamName
	}

	return s.PrintBatch(ctx, model.NewBatchJob(roster.Players, team, kind))
}

// PrintTestCard prints the synthetic test card
func (s *PrintService) PrintTestCard(ctx context.Context, backend string) (*model.JobResult, error) {
	kind, err := s.ResolveBackend(backend)
	if err != nil {
		return nil, err
	}
	return s.PrintSingle(ctx, model.NewSingleCardJob(card.TestPlayer(), card.TestTeam(), kind))
}

// PrintSingle runs connect, test, print and disconnect for one card.
// A card that fails to print is reported in the result, not as an error.
func (s *PrintService) PrintSingle(ctx context.Context, job *model.PrintJob) (*model.JobResult, error) {
	if len(job.Players) != 1 {
		return nil, fmt.Errorf("single card job needs exactly one player, got %d", len(job.Players))
	}

	report, err := s.run(ctx, job, "print_single")
	if err != nil {
		return nil, err
	}
	result := report.Results[0]
	return &result, nil
}

// PrintBatch connects once, prints every card in input order with the batch
// delay between dispatches and always disconnects. A card failure never
// aborts the rest of the batch.
func (s *PrintService) PrintBatch(ctx context.Context, job *model.PrintJob) (*model.BatchReport, error) {
	return s.run(ctx, job, "print_batch")
}

func (s *PrintService) run(ctx context.Context, job *model.PrintJob, opType string) (*model.BatchReport, error) {
	backend, ok := s.backends[job.Backend]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidBackend, job.Backend)
	}

	opLogger := utils.NewOperationLogger(s.baseLogger, opType, uuid.New().String())
	opLogger.Start(
		zap.String("backend", string(job.Backend)),
		zap.String("team", job.Team.Name),
		zap.Int("cards", len(job.Players)),
	)

	lock := s.locks[job.Backend]
	if err := lock.Acquire(ctx, 1); err != nil {
		opLogger.Error(err)
		return nil, fmt.Errorf("waiting for %s printer: %w", job.Backend, err)
	}
	defer lock.Release(1)

	if budget := s.JobBudget(len(job.Players)); budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	if err := s.engage(ctx, backend); err != nil {
		opLogger.Error(err, zap.String("error_kind", printer.KindName(err)))
		return nil, err
	}
	defer func() {
		if err := backend.Disconnect(); err != nil {
			utils.LogError(s.logger.Logger, "Printer disconnect failed", err,
				zap.String("backend", string(job.Backend)))
		}
	}()

	report := &model.BatchReport{
		Backend:   job.Backend,
		Team:      job.Team.Name,
		Results:   make([]model.JobResult, 0, len(job.Players)),
		StartedAt: time.Now(),
	}

	for i, player := range job.Players {
		if i > 0 {
			if err := s.pace(ctx); err != nil {
				s.abandon(report, job.Players[i:], i, err)
				break
			}
		}

		result := s.dispatch(ctx, backend, i, player, job.Team)
		report.Add(result)
		opLogger.Progress("Card processed", float64(i+1)/float64(len(job.Players))*100,
			zap.Int("index", i), zap.Bool("success", result.Success))
	}
	report.CompletedAt = time.Now()

	opLogger.Success(
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// engage moves the backend from Disconnected to Connected and runs the test handshake
func (s *PrintService) engage(ctx context.Context, backend printer.PrinterBackend) error {
	connected, err := backend.Connect(ctx)
	if err != nil {
		return fmt.Errorf("connect %s printer: %w", backend.Kind(), err)
	}
	if !connected {
		status := backend.Status()
		if status.Reason != nil {
			return status.Reason
		}
		return printer.NewPrintError(printer.ErrDeviceNotFound, backend.Kind(), status.Details, nil)
	}

	if err := backend.TestConnection(ctx); err != nil {
		if discErr := backend.Disconnect(); discErr != nil {
			s.logger.Warn("Printer disconnect failed",
				zap.String("backend", string(backend.Kind())), zap.Error(discErr))
		}
		return err
	}
	return nil
}

func (s *PrintService) dispatch(ctx context.Context, backend printer.PrinterBackend, index int, player model.PlayerRecord, team model.TeamRecord) model.JobResult {
	result := model.JobResult{
		Index:         index,
		PlayerID:      player.ID,
		PlayerName:    player.FullName(),
		LicenseNumber: player.LicenseNumber,
		DispatchedAt:  time.Now(),
	}

	err := backend.PrintCard(ctx, card.Render(player, team))
	elapsed := time.Since(result.DispatchedAt)
	result.Duration = elapsed.String()

	if err != nil {
		result.Error = err.Error()
		result.ErrorKind = printer.KindName(err)
		result.Message = "card could not be printed"
		s.events.DispatchFailure(string(backend.Kind()), result.PlayerName, err)
		return result
	}

	result.Success = true
	result.Message = "card printed"
	s.events.DispatchSuccess(string(backend.Kind()), result.PlayerName, elapsed)
	return result
}

func (s *PrintService) pace(ctx context.Context) error {
	if s.opts.BatchDelay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.opts.BatchDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// abandon records the remaining cards of a cancelled batch as failed
func (s *PrintService) abandon(report *model.BatchReport, players []model.PlayerRecord, offset int, cause error) {
	for j, player := range players {
		report.Add(model.JobResult{
			Index:         offset + j,
			PlayerID:      player.ID,
			PlayerName:    player.FullName(),
			LicenseNumber: player.LicenseNumber,
			Message:       "batch cancelled before dispatch",
			Error:         cause.Error(),
		})
	}
}

// Status probes every idle backend with a connect and disconnect. A backend
// busy with a job reports its live state instead. Concurrent callers share one probe.
func (s *PrintService) Status(ctx context.Context) ([]printer.BackendStatus, error) {
	v, err, _ := s.statusGroup.Do("status", func() (interface{}, error) {
		return s.probeAll(ctx)
	})
	if err != nil {
		return nil, err
	}
	statuses := v.([]printer.BackendStatus)
	return append([]printer.BackendStatus(nil), statuses...), nil
}

func (s *PrintService) probeAll(ctx context.Context) ([]printer.BackendStatus, error) {
	statuses := make([]printer.BackendStatus, len(s.order))

	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range s.order {
		i, kind := i, kind
		g.Go(func() error {
			statuses[i] = s.probe(gctx, kind)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return statuses, nil
}

func (s *PrintService) probe(ctx context.Context, kind model.BackendKind) printer.BackendStatus {
	backend := s.backends[kind]
	lock := s.locks[kind]

	if !lock.TryAcquire(1) {
		return backend.Status()
	}
	defer lock.Release(1)

	if _, err := backend.Connect(ctx); err != nil {
		s.logger.Warn("Status probe failed", zap.String("backend", string(kind)), zap.Error(err))
	}
	status := backend.Status()
	if err := backend.Disconnect(); err != nil {
		s.logger.Warn("Printer disconnect failed", zap.String("backend", string(kind)), zap.Error(err))
	}
	return status
}
