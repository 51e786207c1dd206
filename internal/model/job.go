// internal/model/job.go
package model

import (
	"fmt"
	"time"
)

// BackendKind selects one of the two printer backends
type BackendKind string

const (
	BackendThermal  BackendKind = "thermal"
	BackendDocument BackendKind = "document"
)

// ParseBackendKind validates a backend selector
func ParseBackendKind(s string) (BackendKind, error) {
	switch BackendKind(s) {
	case BackendThermal, BackendDocument:
		return BackendKind(s), nil
	default:
		return "", fmt.Errorf("unsupported backend: %q", s)
	}
}

// JobKind distinguishes single-card from team batch jobs
type JobKind string

const (
	JobSingleCard JobKind = "single"
	JobBatchCards JobKind = "batch"
)

// PrintJob is created per request and discarded after completion
type PrintJob struct {
	Kind    JobKind        `json:"kind"`
	Players []PlayerRecord `json:"players"`
	Team    TeamRecord     `json:"team"`
	Backend BackendKind    `json:"backend"`
}

// NewSingleCardJob builds a one-card job
func NewSingleCardJob(player PlayerRecord, team TeamRecord, backend BackendKind) *PrintJob {
	return &PrintJob{
		Kind:    JobSingleCard,
		Players: []PlayerRecord{player},
		Team:    team,
		Backend: backend,
	}
}

// NewBatchJob builds an ordered team batch
func NewBatchJob(players []PlayerRecord, team TeamRecord, backend BackendKind) *PrintJob {
	return &PrintJob{
		Kind:    JobBatchCards,
		Players: players,
		Team:    team,
		Backend: backend,
	}
}

// JobResult is the outcome for one card
type JobResult struct {
	Index         int       `json:"index"`
	PlayerID      int64     `json:"player_id"`
	PlayerName    string    `json:"player_name"`
	LicenseNumber string    `json:"license_number,omitempty"`
	Success       bool      `json:"success"`
	Message       string    `json:"message,omitempty"`
	Error         string    `json:"error,omitempty"`
	ErrorKind     string    `json:"error_kind,omitempty"`
	DispatchedAt  time.Time `json:"dispatched_at"`
	Duration      string    `json:"duration"`
}

// BatchReport aggregates per-card results in input order
type BatchReport struct {
	Backend     BackendKind `json:"backend"`
	Team        string      `json:"team"`
	Total       int         `json:"total"`
	Succeeded   int         `json:"succeeded"`
	Failed      int         `json:"failed"`
	Results     []JobResult `json:"results"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt time.Time   `json:"completed_at"`
}

// Add appends a result and updates the counters
func (r *BatchReport) Add(result JobResult) {
	r.Results = append(r.Results, result)
	r.Total++
	if result.Success {
		r.Succeeded++
	} else {
		r.Failed++
	}
}
