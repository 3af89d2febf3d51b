package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Leveled writes every line at a fixed logrus level.
type Leveled struct {
	level logrus.Level
}

func (l *Leveled) Printf(format string, args ...any) {
	base.Logf(l.level, format, args...)
}

func (l *Leveled) Println(args ...any) {
	base.Logln(l.level, args...)
}

var (
	base = logrus.New()

	Info  = &Leveled{level: logrus.InfoLevel}
	Error = &Leveled{level: logrus.ErrorLevel}
	Debug = &Leveled{level: logrus.DebugLevel}
	Warn  = &Leveled{level: logrus.WarnLevel}
)

func init() {
	base.SetOutput(os.Stdout)
	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006/01/02 15:04:05",
	})
	SetLevel(os.Getenv("LOG_LEVEL"))
}

// SetLevel changes the minimum level. Unknown names fall back to info.
func SetLevel(name string) {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(name))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	base.SetLevel(lvl)
}

// SetOutput redirects every logger, e.g. to capture lines in tests.
func SetOutput(w io.Writer) {
	base.SetOutput(w)
}

// WithJob returns an entry tagged with the job id for multi-line stages.
func WithJob(jobID string) *logrus.Entry {
	return base.WithField("job", jobID)
}
