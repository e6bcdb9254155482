// Package logger - logrus setup shared by the detector and the CLI.
package logger

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"strings"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures a logger.
type Options struct {
	// Level is a logrus level name. Empty means "info".
	Level string `json:"level" yaml:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`
	// File, when set, receives a rotated copy of every entry.
	File string `json:"file" yaml:"file"`
	// MaxSizeMB is the size at which File is rotated. 0 means 100.
	MaxSizeMB int `json:"max_size_mb" yaml:"max_size_mb" validate:"gte=0"`
	// MaxBackups is the number of rotated files kept. 0 keeps all.
	MaxBackups int `json:"max_backups" yaml:"max_backups" validate:"gte=0"`
	// NoColors disables ANSI colors in the console output.
	NoColors bool `json:"no_colors" yaml:"no_colors"`
	// ReportCaller adds file, line and function to every entry.
	ReportCaller bool `json:"report_caller" yaml:"report_caller"`
	// Output replaces os.Stderr as the console writer.
	Output io.Writer `json:"-" yaml:"-"`
}

// New creates a logger writing nested-format entries to the console and,
// optionally, to a rotating file.
//
// Arguments:
//   - opts: The logger options.
//
// Returns:
//   - *logrus.Logger: The logger.
//   - error: An error if the level name is not recognized.
func New(opts Options) (*logrus.Logger, error) {
	level := logrus.InfoLevel
	if opts.Level != "" {
		parsed, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, errors.Wrap(err, "can't parse log level")
		}
		level = parsed
	}

	l := logrus.New()
	l.SetLevel(level)
	l.SetReportCaller(opts.ReportCaller)
	l.SetFormatter(&formatter.Formatter{
		NoColors:        opts.NoColors,
		TimestampFormat: "02 Jan 06 - 15:04:05",
		HideKeys:        false,
		CallerFirst:     true,
		CustomCallerFormatter: func(f *runtime.Frame) string {
			s := strings.Split(f.Function, ".")
			return fmt.Sprintf(" [%s:%d][%s()]", path.Base(f.File), f.Line, s[len(s)-1])
		},
	})

	console := opts.Output
	if console == nil {
		console = os.Stderr
	}
	writers := []io.Writer{console}

	if opts.File != "" {
		maxSize := opts.MaxSizeMB
		if maxSize == 0 {
			maxSize = 100
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			LocalTime:  true,
			MaxSize:    maxSize,
			MaxBackups: opts.MaxBackups,
		})
	}

	l.SetOutput(io.MultiWriter(writers...))
	return l, nil
}

// Discard returns a logger that drops every entry.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
