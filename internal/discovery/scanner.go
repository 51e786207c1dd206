// internal/discovery/scanner.go
package discovery

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"card-print-service/internal/model"
)

// DeviceScanner lists raw devices from one enumeration source
type DeviceScanner interface {
	Scan(ctx context.Context) ([]model.DeviceDescriptor, error)
	GetScannerType() model.DeviceSource
	IsAvailable() bool
}

// CandidateLister is the discovery capability consumed by printer backends
type CandidateLister interface {
	ListCandidateDevices(ctx context.Context, kind model.BackendKind) []model.DeviceDescriptor
}

// ScannerManager runs the registered scanners and filters by fingerprint
type ScannerManager struct {
	scanners     map[model.BackendKind][]DeviceScanner
	fingerprints map[model.BackendKind][]string
	timeout      time.Duration
	logger       *zap.Logger
}

// NewScannerManager creates a new scanner manager
func NewScannerManager(logger *zap.Logger, timeout time.Duration) *ScannerManager {
	return &ScannerManager{
		scanners:     make(map[model.BackendKind][]DeviceScanner),
		fingerprints: make(map[model.BackendKind][]string),
		timeout:      timeout,
		logger:       logger.With(zap.String("component", "discovery")),
	}
}

// RegisterScanner registers a scanner for a backend kind. Registration order is enumeration order.
func (sm *ScannerManager) RegisterScanner(kind model.BackendKind, scanner DeviceScanner) {
	sm.scanners[kind] = append(sm.scanners[kind], scanner)
	sm.logger.Info("Scanner registered",
		zap.String("backend", string(kind)),
		zap.String("type", string(scanner.GetScannerType())),
	)
}

// SetFingerprints sets the match tokens for a backend kind
func (sm *ScannerManager) SetFingerprints(kind model.BackendKind, tokens []string) {
	normalized := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			normalized = append(normalized, t)
		}
	}
	sm.fingerprints[kind] = normalized
}

// ListCandidateDevices returns fingerprint-matching devices for kind in enumeration order.
// Scanner failures are logged and count as an empty listing; the result is never an error.
func (sm *ScannerManager) ListCandidateDevices(ctx context.Context, kind model.BackendKind) []model.DeviceDescriptor {
	scanners := sm.scanners[kind]
	if len(scanners) == 0 {
		return []model.DeviceDescriptor{}
	}

	if sm.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, sm.timeout)
		defer cancel()
	}

	perScanner := make([][]model.DeviceDescriptor, len(scanners))
	g, gctx := errgroup.WithContext(ctx)
	for i, scanner := range scanners {
		i, scanner := i, scanner
		g.Go(func() error {
			if !scanner.IsAvailable() {
				sm.logger.Debug("Scanner not available, skipping",
					zap.String("type", string(scanner.GetScannerType())))
				return nil
			}
			devices, err := scanner.Scan(gctx)
			if err != nil {
				sm.logger.Warn("Scanner failed",
					zap.String("type", string(scanner.GetScannerType())),
					zap.Error(err),
				)
				return nil
			}
			perScanner[i] = devices
			return nil
		})
	}
	_ = g.Wait()

	tokens := sm.fingerprints[kind]
	candidates := []model.DeviceDescriptor{}
	for _, devices := range perScanner {
		for _, d := range devices {
			if Matches(d, tokens) {
				candidates = append(candidates, d)
			}
		}
	}

	sm.logger.Debug("Candidate filter applied",
		zap.String("backend", string(kind)),
		zap.Int("candidates", len(candidates)),
	)
	return candidates
}

// GetAvailableScanners returns the available scanner types per backend
func (sm *ScannerManager) GetAvailableScanners() map[model.BackendKind][]string {
	available := make(map[model.BackendKind][]string)
	for kind, scanners := range sm.scanners {
		for _, s := range scanners {
			if s.IsAvailable() {
				available[kind] = append(available[kind], string(s.GetScannerType()))
			}
		}
	}
	return available
}

// Matches reports whether any token is a case-insensitive substring of the device fingerprint
func Matches(device model.DeviceDescriptor, tokens []string) bool {
	text := device.FingerprintText()
	for _, token := range tokens {
		if token != "" && strings.Contains(text, strings.ToLower(token)) {
			return true
		}
	}
	return false
}
