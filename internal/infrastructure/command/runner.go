// Package command runs external tools and captures their output.
package command

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/bnema/mediafetch/internal/domain"
	"github.com/bnema/mediafetch/internal/infrastructure/logger"
)

// StderrTail bounds the stderr kept in an ExecError.
const StderrTail = 2000

// Spec describes one invocation.
type Spec struct {
	Name string
	Args []string
	// Dir is the working directory, empty for the current one.
	Dir string
	// OnLine receives stdout line by line while the command runs.
	OnLine func(line string)
}

type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner abstracts process execution so adapters can be tested without
// the real tools.
type Runner interface {
	Run(ctx context.Context, spec Spec) (Result, error)
}

// ExecRunner executes commands via os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, spec Spec) (Result, error) {
	cmd := exec.CommandContext(ctx, spec.Name, spec.Args...)
	cmd.Dir = spec.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stderr = &stderr
	pipe, err := cmd.StdoutPipe()
	if err != nil {
		return Result{ExitCode: -1}, err
	}
	if err := cmd.Start(); err != nil {
		return Result{ExitCode: -1}, err
	}

	scanner := bufio.NewScanner(io.TeeReader(pipe, &stdout))
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		if spec.OnLine != nil {
			spec.OnLine(scanner.Text())
		}
	}
	// drain whatever the scanner refused so Wait does not block
	_, _ = io.Copy(io.Discard, pipe)

	err = cmd.Wait()
	result := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}
	return result, nil
}

// Error wraps a failed run into a *domain.ExecError. A cancelled context
// is returned as is.
func Error(ctx context.Context, name string, res Result, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return &domain.ExecError{
		Tool:     filepath.Base(name),
		ExitCode: res.ExitCode,
		Stderr:   logger.SanitizeTail(strings.TrimSpace(res.Stderr), StderrTail),
		Err:      err,
	}
}

// Lookup reports the resolved path of a binary, or an error when it is not
// on PATH.
func Lookup(name string) (string, error) {
	return exec.LookPath(name)
}
