package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/tellor-io/layer-explorer/explorerClient/config"
)

// Init builds the process logger from the explorer config.
func Init(cfg config.Config) zerolog.Logger {
	return New(os.Stdout, cfg.LogLevel, cfg.LogFormat, cfg.LogSampler)
}

// New creates a zerolog logger writing to out. Anything other than "json"
// renders through a console writer with RFC3339 timestamps. With sampling
// enabled only one in five events is emitted.
func New(out io.Writer, logLevel int, logFormat string, logSampler bool) zerolog.Logger {
	writer := out
	if logFormat != "json" {
		writer = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}

	logger := zerolog.New(writer).
		Level(zerolog.Level(logLevel)).
		With().
		Timestamp().
		Logger()

	if logSampler {
		logger = logger.Sample(&zerolog.BasicSampler{N: 5})
	}
	return logger
}

// Component returns a child logger tagged with the component name.
func Component(parent zerolog.Logger, name string) zerolog.Logger {
	return parent.With().Str("component", name).Logger()
}
