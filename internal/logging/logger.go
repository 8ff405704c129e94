/*
 * This file is part of MME (https://github.com/Sahilpatil2001/mme-fastapi).
 * Copyright (C) 2025 Sahil Patil
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

// Package logging holds the process-wide zap logger and the per-component
// helpers the service logs through. Every helper is a no-op until one of the
// Initialize functions has run.
package logging

import (
	"strings"

	"go.uber.org/zap"
)

var (
	Logger *zap.Logger
	Sugar  *zap.SugaredLogger
)

// Component names attached to helper output
const (
	ComponentMerge     = "merge_pipeline"
	ComponentAudio     = "audio_processing"
	ComponentMessaging = "messaging"
	ComponentDatabase  = "database"
	ComponentTTS       = "tts"
	ComponentLLM       = "llm"
)

// LogConfig selects the level and the encoder
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json or console
}

// Initialize installs a console logger at info level. Used by tests and
// tools that run without a loaded Config.
func Initialize() error {
	return InitializeWithConfig(LogConfig{Level: "info", Format: "console"})
}

// InitializeWithConfig installs the global logger. Unknown formats fall back
// to console and unknown levels to info.
func InitializeWithConfig(config LogConfig) error {
	zapConfig := zap.NewDevelopmentConfig()
	if strings.EqualFold(config.Format, "json") {
		zapConfig = zap.NewProductionConfig()
	}

	level, err := zap.ParseAtomicLevel(strings.ToLower(config.Level))
	if err != nil {
		level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	zapConfig.Level = level

	logger, err := zapConfig.Build(
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zap.ErrorLevel),
	)
	if err != nil {
		return err
	}

	Logger = logger
	Sugar = logger.Sugar()

	Sugar.Infow("🚀 Structured logging initialized",
		"level", level.String(),
		"format", strings.ToLower(config.Format),
	)
	return nil
}

// Close flushes buffered entries. Sync errors on stdout/stderr are ignored.
func Close() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}

// info writes message tagged with component, the given key/value pairs first
func info(component, message string, head []zap.Field, fields []zap.Field) {
	if Logger == nil {
		return
	}

	all := make([]zap.Field, 0, 1+len(head)+len(fields))
	all = append(all, zap.String("component", component))
	all = append(all, head...)
	all = append(all, fields...)
	Logger.Info(message, all...)
}

// LogMergeJob logs the outcome of a merge request. job contributes a
// job_uuid field when it exposes GetUUID.
func LogMergeJob(job interface{}, message string, fields ...zap.Field) {
	var head []zap.Field
	if j, ok := job.(interface{ GetUUID() string }); ok && j.GetUUID() != "" {
		head = append(head, zap.String("job_uuid", j.GetUUID()))
	}
	info(ComponentMerge, message, head, fields)
}

// LogAudioProcessing logs one stage of a merge request
func LogAudioProcessing(requestID, stage string, fields ...zap.Field) {
	info(ComponentAudio, "Audio processing",
		[]zap.Field{zap.String("request_id", requestID), zap.String("stage", stage)}, fields)
}

// LogNATSEvent logs a publish, subscribe or connection change
func LogNATSEvent(subject, action string, fields ...zap.Field) {
	info(ComponentMessaging, "NATS event",
		[]zap.Field{zap.String("subject", subject), zap.String("action", action)}, fields)
}

// LogDatabaseOperation logs a write against a table
func LogDatabaseOperation(operation, table string, fields ...zap.Field) {
	info(ComponentDatabase, "Database operation",
		[]zap.Field{zap.String("operation", operation), zap.String("table", table)}, fields)
}

// LogTTSOperation logs an ElevenLabs call
func LogTTSOperation(operation string, fields ...zap.Field) {
	info(ComponentTTS, "TTS operation", []zap.Field{zap.String("operation", operation)}, fields)
}

// LogLLMOperation logs a script generation call
func LogLLMOperation(operation string, fields ...zap.Field) {
	info(ComponentLLM, "LLM operation", []zap.Field{zap.String("operation", operation)}, fields)
}

// LogError logs err at error level
func LogError(err error, message string, fields ...zap.Field) {
	if Logger == nil {
		return
	}
	Logger.Error(message, append([]zap.Field{zap.Error(err)}, fields...)...)
}

// LogWarn logs at warn level
func LogWarn(message string, fields ...zap.Field) {
	if Logger == nil {
		return
	}
	Logger.Warn(message, fields...)
}
