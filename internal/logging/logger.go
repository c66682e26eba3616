package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ParseLevel maps a case-insensitive level name to a zap level. The
// "warning" and "critical" spellings used by older deployments are accepted.
func ParseLevel(name string) (zapcore.Level, error) {
	switch s := strings.ToLower(strings.TrimSpace(name)); s {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warning":
		return zapcore.WarnLevel, nil
	case "critical":
		return zapcore.FatalLevel, nil
	default:
		lvl, err := zapcore.ParseLevel(s)
		if err != nil {
			return lvl, fmt.Errorf("unknown log level %q", name)
		}
		return lvl, nil
	}
}

// New creates a console logger on stderr at the given level.
func New(level string) (*zap.Logger, error) {
	return NewWithWriter(level, os.Stderr)
}

func NewWithWriter(level string, w io.Writer) (*zap.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.AddSync(w), lvl)

	return zap.New(core, zap.Fields(zap.Int("pid", os.Getpid()))), nil
}
