// internal/discovery/system/printers.go
package system

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"

	"go.uber.org/zap"

	"card-print-service/internal/model"
)

// CommandRunner executes an OS command and returns its stdout
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands through os/exec
type ExecRunner struct{}

// Run executes name with args, folding stderr into the error
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return out, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return out, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// Scanner lists the print queues installed in the operating system
type Scanner struct {
	logger *zap.Logger
	runner CommandRunner
	goos   string
}

// NewScanner creates a print queue scanner for the running OS
func NewScanner(logger *zap.Logger, runner CommandRunner) *Scanner {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Scanner{
		logger: logger.With(zap.String("scanner", "system")),
		runner: runner,
		goos:   runtime.GOOS,
	}
}

// GetScannerType returns scanner type
func (s *Scanner) GetScannerType() model.DeviceSource {
	return model.SourceSystem
}

// IsAvailable reports whether a queue listing tool exists
func (s *Scanner) IsAvailable() bool {
	if s.goos == "windows" {
		return true
	}
	if _, ok := s.runner.(ExecRunner); !ok {
		return true
	}
	_, err := exec.LookPath("lpstat")
	return err == nil
}

// Scan lists installed print queues in the order the OS reports them
func (s *Scanner) Scan(ctx context.Context) ([]model.DeviceDescriptor, error) {
	if s.goos == "windows" {
		out, err := s.runner.Run(ctx, "wmic", "printer", "get", "name,portname,drivername", "/format:csv")
		if err != nil {
			return nil, fmt.Errorf("failed to list printers: %w", err)
		}
		return ParseWMICPrinters(out)
	}

	out, err := s.runner.Run(ctx, "lpstat", "-v")
	if err != nil {
		// lpstat exits non-zero when no destinations exist
		if len(bytes.TrimSpace(out)) == 0 {
			s.logger.Debug("lpstat returned no destinations", zap.Error(err))
			return []model.DeviceDescriptor{}, nil
		}
		return nil, fmt.Errorf("failed to list printers: %w", err)
	}
	return ParseLpstatDevices(out), nil
}

// DefaultQueue returns the system default print queue, or "" when none is set
func (s *Scanner) DefaultQueue(ctx context.Context) string {
	if s.goos == "windows" {
		return ""
	}
	out, err := s.runner.Run(ctx, "lpstat", "-d")
	if err != nil {
		return ""
	}
	return ParseLpstatDefault(out)
}

// ParseLpstatDevices parses `lpstat -v` lines of the form "device for NAME: URI"
func ParseLpstatDevices(out []byte) []model.DeviceDescriptor {
	devices := []model.DeviceDescriptor{}
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		rest, ok := strings.CutPrefix(line, "device for ")
		if !ok {
			continue
		}
		name, uri, ok := strings.Cut(rest, ": ")
		if !ok {
			name, uri = strings.TrimSuffix(rest, ":"), ""
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		devices = append(devices, model.DeviceDescriptor{
			Source:  model.SourceSystem,
			Name:    name,
			Address: strings.TrimSpace(uri),
		})
	}
	return devices
}

// ParseLpstatDefault parses "system default destination: NAME"
func ParseLpstatDefault(out []byte) string {
	line := strings.TrimSpace(string(out))
	if _, name, ok := strings.Cut(line, "destination: "); ok {
		return strings.TrimSpace(name)
	}
	return ""
}

// ParseWMICPrinters parses `wmic printer get ... /format:csv` output
func ParseWMICPrinters(out []byte) ([]model.DeviceDescriptor, error) {
	text := strings.ReplaceAll(string(out), "\r", "")
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1

	devices := []model.DeviceDescriptor{}
	var header map[string]int
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse printer list: %w", err)
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}
		if header == nil {
			header = make(map[string]int, len(record))
			for i, col := range record {
				header[strings.ToLower(strings.TrimSpace(col))] = i
			}
			continue
		}

		field := func(col string) string {
			if i, ok := header[col]; ok && i < len(record) {
				return strings.TrimSpace(record[i])
			}
			return ""
		}
		name := field("name")
		if name == "" {
			continue
		}
		devices = append(devices, model.DeviceDescriptor{
			Source:  model.SourceSystem,
			Name:    name,
			Address: field("portname"),
			Info:    field("drivername"),
		})
	}
	return devices, nil
}
