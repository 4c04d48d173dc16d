// Package logging builds the zap logger used by the CLI.
package logging

import (
	"io"
	"os"

	"github.com/muesli/termenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a console logger writing to w at Info level, or Debug when
// verbose is set. Levels are colored unless NO_COLOR is set or w is not a
// terminal.
func New(w io.Writer, verbose bool) *zap.Logger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(EncoderConfig(colorEnabled(w))),
		zapcore.Lock(zapcore.AddSync(w)),
		level,
	)
	if verbose {
		return zap.New(core, zap.AddCaller())
	}
	return zap.New(core)
}

// EncoderConfig is the console encoder layout: no timestamps, short level
// names, message last.
func EncoderConfig(color bool) zapcore.EncoderConfig {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.TimeKey = ""
	cfg.NameKey = "N"
	cfg.CallerKey = "C"
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	if color {
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return cfg
}

func colorEnabled(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return termenv.NewOutput(f).ColorProfile() != termenv.Ascii
}
