// Package logger sets up arbor diagnostics and the user-facing console.
package logger

import (
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"
	arborcommon "github.com/ternarybob/arbor/common"
	"github.com/ternarybob/arbor/models"
	"github.com/ternarybob/quickfix/internal/config"
)

// SetupLogger builds the diagnostic logger. There is no console writer:
// stdout carries block records to the picker.
func SetupLogger(cfg *config.Config) arbor.ILogger {
	logger := arbor.NewLogger()

	if file := cfg.Logging.File; file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err == nil {
			logger = logger.WithFileWriter(createWriterConfig(cfg, models.LogWriterTypeFile, file))
		}
	}

	logger = logger.WithMemoryWriter(createWriterConfig(cfg, models.LogWriterTypeMemory, ""))
	return logger.WithLevelFromString(cfg.Logging.Level)
}

// createWriterConfig creates a writer configuration from the logging settings.
func createWriterConfig(cfg *config.Config, writerType models.LogWriterType, filename string) models.WriterConfiguration {
	timeFormat := "15:04:05.000"
	if cfg.Logging.TimeFormat != "" {
		timeFormat = cfg.Logging.TimeFormat
	}

	outputType := models.OutputFormatLogfmt
	if cfg.Logging.Format == "json" {
		outputType = models.OutputFormatJSON
	}

	var maxSize int64 = 10 * 1024 * 1024
	if cfg.Logging.MaxSizeMB > 0 {
		maxSize = int64(cfg.Logging.MaxSizeMB) * 1024 * 1024
	}

	maxBackups := 1
	if cfg.Logging.MaxBackups > 0 {
		maxBackups = cfg.Logging.MaxBackups
	}

	return models.WriterConfiguration{
		Type:       writerType,
		FileName:   filename,
		TimeFormat: timeFormat,
		OutputType: outputType,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
	}
}

// Stop flushes buffered log entries.
func Stop() {
	arborcommon.Stop()
}
