package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// anpCaller renders the "[ANP] [function:line]" prefix used across all
// ANP subsystem logging.
func anpCaller(caller zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
	fn := caller.Function
	if idx := strings.LastIndex(fn, "."); idx >= 0 {
		fn = fn[idx+1:]
	}
	enc.AppendString(fmt.Sprintf("[ANP] [%s:%d]", fn, caller.Line))
}

// Init initializes the logging subsystem. All output goes to stderr, one
// line per entry, formatted as "[ANP] [function:line] message fields...".
func Init(cfg *Config) (*zap.SugaredLogger, zap.AtomicLevel, error) {
	encoderConfig := zapcore.EncoderConfig{
		MessageKey:       "M",
		CallerKey:        "C",
		LevelKey:         zapcore.OmitKey,
		TimeKey:          zapcore.OmitKey,
		NameKey:          zapcore.OmitKey,
		StacktraceKey:    "S",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeCaller:     anpCaller,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(cfg.Level),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := config.Build(zap.AddCaller())
	if err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return logger.Sugar(), config.Level, nil
}
