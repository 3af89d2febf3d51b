package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/bnema/mediafetch/internal/domain"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 16
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := fmt.Sprintf("[%s]", statusKindLabel(kind))
	if message != "" {
		statusText += " " + message
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	default:
		return ansiBlue
	}
}

func shouldColorize(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// jobKind maps a job status to the status line colour.
func jobKind(job *domain.Job) statusKind {
	switch {
	case job.Status == domain.JobStatusError:
		return statusError
	case job.Status == domain.JobStatusDone && job.BurnError != "":
		return statusWarn
	case job.Status == domain.JobStatusDone:
		return statusOK
	default:
		return statusInfo
	}
}

func jobSummary(job *domain.Job) string {
	switch job.Status {
	case domain.JobStatusQueued:
		if job.QueuePosition > 0 {
			return fmt.Sprintf("queued, position %d", job.QueuePosition)
		}
		return "queued"
	case domain.JobStatusError:
		return job.Error
	case domain.JobStatusDone:
		return "done"
	default:
		s := fmt.Sprintf("%s %d%%", job.Status, job.Progress)
		if job.Speed != "" {
			s += " at " + job.Speed
		}
		if job.ETA != "" {
			s += ", eta " + job.ETA
		}
		return s
	}
}

func ago(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
