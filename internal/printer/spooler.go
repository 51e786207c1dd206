// internal/printer/spooler.go
package printer

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"card-print-service/internal/discovery/system"
)

// Spooler hands a finished document to the OS print path
type Spooler interface {
	Submit(ctx context.Context, queue, path string) error
}

// CommandSpooler submits documents through the platform print command
type CommandSpooler struct {
	runner  system.CommandRunner
	command string
	goos    string
}

// NewCommandSpooler creates a spooler; command overrides `lp` on unix
func NewCommandSpooler(runner system.CommandRunner, command string) *CommandSpooler {
	if runner == nil {
		runner = system.ExecRunner{}
	}
	return &CommandSpooler{runner: runner, command: command, goos: runtime.GOOS}
}

// Submit prints path on queue; an empty queue targets the system default
func (s *CommandSpooler) Submit(ctx context.Context, queue, path string) error {
	name, args := s.commandLine(queue, path)
	if _, err := s.runner.Run(ctx, name, args...); err != nil {
		return fmt.Errorf("print submission failed: %w", err)
	}
	return nil
}

func (s *CommandSpooler) commandLine(queue, path string) (string, []string) {
	if s.goos == "windows" {
		script := fmt.Sprintf("Start-Process -FilePath %s -Verb Print -WindowStyle Hidden -Wait", psQuote(path))
		if queue != "" {
			script = fmt.Sprintf("Start-Process -FilePath %s -Verb PrintTo -ArgumentList %s -WindowStyle Hidden -Wait",
				psQuote(path), psQuote(`"`+queue+`"`))
		}
		return "powershell", []string{"-NoProfile", "-NonInteractive", "-Command", script}
	}

	name := s.command
	if name == "" {
		name = "lp"
	}
	var args []string
	if queue != "" {
		args = append(args, "-d", queue)
	}
	args = append(args, path)
	return name, args
}

func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
