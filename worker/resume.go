package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/alecthomas/template"
)

// DefaultResumeTimeout bounds a host resume.
const DefaultResumeTimeout = 2 * time.Minute

// ErrCannotResumeHost is returned when a virtualized builder's host could not
// be brought back to a clean state.
var ErrCannotResumeHost = errors.New("cannot resume host")

type ResumeResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// HostResumer resets the virtual machine a builder runs on.
type HostResumer interface {
	Resume(ctx context.Context, vmHost string) (ResumeResult, error)
}

// CommandResumer runs a shell command rendered from a template, for example
// `ssh ppa@{{.VMHost}} ppa-reset`.
type CommandResumer struct {
	command *template.Template
	Timeout time.Duration
}

func NewCommandResumer(commandTemplate string, timeout time.Duration) (*CommandResumer, error) {
	command, err := template.New("resume").Parse(commandTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse resume command template: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultResumeTimeout
	}
	return &CommandResumer{command: command, Timeout: timeout}, nil
}

// Render returns the command that resumes vmHost.
func (r *CommandResumer) Render(vmHost string) (string, error) {
	var command bytes.Buffer
	if err := r.command.Execute(&command, struct{ VMHost string }{VMHost: vmHost}); err != nil {
		return "", err
	}
	return command.String(), nil
}

func (r *CommandResumer) Resume(ctx context.Context, vmHost string) (ResumeResult, error) {
	if vmHost == "" {
		return ResumeResult{}, fmt.Errorf("%w: builder has no vm host", ErrCannotResumeHost)
	}
	command, err := r.Render(vmHost)
	if err != nil {
		return ResumeResult{}, fmt.Errorf("%w: %v", ErrCannotResumeHost, err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	result := ResumeResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: cmd.ProcessState.ExitCode(),
	}
	if err != nil {
		return result, fmt.Errorf("%w: %q exited with %d: %s", ErrCannotResumeHost, command, result.ExitCode, result.Stderr)
	}
	return result, nil
}
