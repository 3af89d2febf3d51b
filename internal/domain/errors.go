package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrJobTerminal        = errors.New("job already finished")
	ErrArtifactAlreadySet = errors.New("artifact path already set")
	ErrFormatUnavailable  = errors.New("requested format is not available")
	ErrNoOutput           = errors.New("no output file found after download")
	ErrNoSubtitle         = errors.New("no subtitle available")
	ErrInvalidURL         = errors.New("invalid url")
	ErrNotReady           = errors.New("file not ready")

	ErrInvalidCredentialID = errors.New("invalid credential id")
	ErrInvalidCredential   = errors.New("file is not a netscape cookie file")
	ErrPoolEmpty           = errors.New("credential pool is empty")
)

// ExecError describes a failed external tool run.
type ExecError struct {
	Tool     string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExecError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s failed (exit %d): %v", e.Tool, e.ExitCode, e.Err)
	}
	return fmt.Sprintf("%s failed (exit %d): %s", e.Tool, e.ExitCode, e.Stderr)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}
